package dag

import (
	"sync/atomic"

	"github.com/tetrisdag/internal/board"
)

// ParentEdge is a back-edge: a weak, by-index reference to a parent in
// the layer above, plus the placement and piece that produced this node
// (spec.md §3, Node.parents).
type ParentEdge struct {
	Parent index
	Move   board.Placement
	Piece  board.Piece
}

// Child is an outgoing edge summary (spec.md §3): the placement, its
// reward, the by-index reference to the resulting node, and the
// precomputed cached_eval = child.eval + reward kept so that sort
// comparisons never need to re-read the child.
type Child[E Evaluation[E]] struct {
	Move       board.Placement
	Reward     board.Reward
	CachedEval E
	Target     index
}

// Node is the DAG's vertex: a unique game state at a given depth
// (spec.md §3). Children is nil until Expand installs it; once set, it
// is never replaced, only mutated in place by backprop's single-element
// insertion-sort repair.
type Node[E Evaluation[E]] struct {
	Parents    []ParentEdge
	Eval       E
	Children   map[board.Piece][]*Child[E]
	expanding  int32
	Bag        board.Bag
	Reserve    board.Piece
	HasReserve bool
}

// tryClaim performs the acquire-swap described in spec.md §4.4: the
// first caller to observe false->true owns exclusive expansion rights.
// It is independent of the StateMap entry's read/write guard so that a
// selector holding only a read guard can still make the claim.
func (n *Node[E]) tryClaim() (alreadyClaimed bool) {
	return atomic.SwapInt32(&n.expanding, 1) != 0
}

func (n *Node[E]) isExpanding() bool {
	return atomic.LoadInt32(&n.expanding) != 0
}
