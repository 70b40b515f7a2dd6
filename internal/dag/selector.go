package dag

import (
	"math"

	"github.com/tetrisdag/internal/board"
)

// Selection is a ticket returned by Select: it pins the traversed layer
// chain (so a concurrent Advance cannot free it out from under an
// in-flight expansion) and names the frontier state to evaluate
// (spec.md §4.4).
type Selection[E Evaluation[E]] struct {
	dag           *Dag[E]
	layers        []*Layer[E] // root-to-frontier order
	frontierState board.GameState
	piece         board.Piece
	hasPiece      bool
}

// State returns the state to evaluate, and the piece to place there, if
// known (spec.md §6, Selection::state).
func (s *Selection[E]) State() (board.GameState, board.Piece, bool) {
	return s.frontierState, s.piece, s.hasPiece
}

// Select descends from the root to a frontier node, using rank-biased
// random choice over each already-sorted child list, and claims the
// frontier for exclusive expansion (spec.md §4.4). It returns false when
// another worker already claimed the frontier, the descent must pass
// through a layer whose piece is unknown while speculation is off (or the
// state's bag is empty), or an empty child list is reached. A frontier
// whose own layer piece is unknown is still returned, with State()
// reporting no piece.
func (d *Dag[E]) Select() (*Selection[E], bool) {
	d.topMu.RLock()
	top, root := d.top, d.root
	d.topMu.RUnlock()

	layers := []*Layer[E]{top}
	state := root

	for {
		layer := layers[len(layers)-1]
		idx := layer.states.GetOrInsertWith(state, func() Node[E] {
			return Node[E]{Bag: state.Bag, Reserve: state.Reserve, HasReserve: state.HasReserve}
		})

		var hasChildren bool
		layer.states.WithRead(idx, func(n *Node[E]) { hasChildren = n.Children != nil })

		if !hasChildren {
			var claimed bool
			layer.states.WithRead(idx, func(n *Node[E]) { claimed = n.tryClaim() })
			if claimed {
				return nil, false
			}
			piece, known := layer.Piece()
			return &Selection[E]{
				dag:           d,
				layers:        layers,
				frontierState: state,
				piece:         piece,
				hasPiece:      known,
			}, true
		}

		piece, known := layer.Piece()
		if !known {
			if !d.speculate {
				return nil, false
			}
			// spec.md §9 "Open questions": sample uniformly from the
			// current state's bag rather than failing the descent.
			// Sound because a node built while the layer's piece was
			// unknown has children installed for every bag piece
			// (workerpool.candidatePieces), and backprop's own eval
			// recomputation already averages over exactly this set.
			bagPieces := state.Bag.Pieces()
			if len(bagPieces) == 0 {
				return nil, false
			}
			piece = bagPieces[uniformIndex(d, len(bagPieces))]
		}

		var list []*Child[E]
		layer.states.WithRead(idx, func(n *Node[E]) { list = n.Children[piece] })
		if len(list) == 0 {
			return nil, false
		}

		i := rankBiasedIndex(d, len(list))
		choice := list[i].Move

		next, _, err := board.Apply(state, choice)
		if err != nil {
			panic("dag: select replayed an installed placement that board.Apply rejected: " + err.Error())
		}
		state = next
		layers = append(layers, layer.Next())
	}
}

// uniformIndex picks an index in [0, n) uniformly, used for speculative
// descent through an unknown-piece layer (spec.md §9 "Open questions").
func uniformIndex[E Evaluation[E]](d *Dag[E], n int) int {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return d.rng.Intn(n)
}

// rankBiasedIndex samples i = floor(-log2(uniform(0,1))) via rejection
// sampling against a sorted list of length n, giving P(i) ≈ 2^-(i+1)
// without storing visit counters (spec.md §4.4).
func rankBiasedIndex[E Evaluation[E]](d *Dag[E], n int) int {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	for {
		s := d.rng.Float64()
		if s <= 0 {
			continue
		}
		i := int(math.Floor(-math.Log2(s)))
		if i < n {
			return i
		}
	}
}
