package dag

import (
	"sort"
	"sync/atomic"

	"github.com/tetrisdag/internal/board"
)

// ChildData is what the move generator and evaluator collaborators
// produce for one candidate placement (spec.md §6): the resulting state,
// the move, its static evaluation, and its reward.
type ChildData[E Evaluation[E]] struct {
	ResultState board.GameState
	Move        board.Placement
	Eval        E
	Reward      board.Reward
}

// backpropSeed is a grandparent edge plus the index of the just-touched
// child, queued for the next backprop iteration (spec.md §4.6).
type backpropSeed struct {
	parent      index
	move        board.Placement
	piece       board.Piece
	childIndex  index
}

// Expand installs a freshly-evaluated child set into the claimed frontier
// node, then runs backprop up the pinned layer chain (spec.md §4.5).
// children is grouped by the piece placed — a node's children must cover
// every piece that could plausibly be placed next, including the
// reserve piece, since backprop's eval recomputation compares both
// (spec.md §4.6 step 5).
func (s *Selection[E]) Expand(children map[board.Piece][]ChildData[E]) {
	layers := s.layers
	startLayer := layers[len(layers)-1]
	layers = layers[:len(layers)-1]

	parentIdx, ok := startLayer.states.IndexOf(s.frontierState)
	if !ok {
		panic("dag: expand on a node the StateMap no longer has")
	}

	nextLayer := startLayer.Next()
	built := make(map[board.Piece][]*Child[E], len(children))
	var installedCount int
	var evalChanged bool

	startLayer.states.WithWrite(parentIdx, func(parent *Node[E]) {
		for piece, list := range children {
			for _, cd := range list {
				childIdx := nextLayer.states.GetOrInsertWith(cd.ResultState, func() Node[E] {
					return Node[E]{
						Eval:       cd.Eval,
						Bag:        cd.ResultState.Bag,
						Reserve:    cd.ResultState.Reserve,
						HasReserve: cd.ResultState.HasReserve,
					}
				})

				var childEval E
				nextLayer.states.WithWrite(childIdx, func(n *Node[E]) {
					n.Parents = append(n.Parents, ParentEdge{Parent: parentIdx, Move: cd.Move, Piece: piece})
					childEval = n.Eval
				})

				built[piece] = append(built[piece], &Child[E]{
					Move:       cd.Move,
					Reward:     cd.Reward,
					CachedEval: childEval.Plus(cd.Reward),
					Target:     childIdx,
				})
				installedCount++
			}
		}

		for _, list := range built {
			sort.SliceStable(list, func(i, j int) bool {
				return list[j].CachedEval.Less(list[i].CachedEval)
			})
		}
		parent.Children = built

		// The node's own eval was a leaf estimate until now (a claimed
		// frontier has no children, so it was never aggregated);
		// recompute it from the children just installed before this
		// node can act as a "child" for its own parents' backprop
		// (spec.md §3 invariant 5, §4.6 step 5).
		newEval := aggregate(startLayer, parent)
		evalChanged = !evalEqual(parent.Eval, newEval)
		parent.Eval = newEval

		atomic.AddInt64(&s.dag.newNodes, int64(installedCount))
	})

	if !evalChanged {
		return
	}

	var seeds []backpropSeed
	startLayer.states.WithRead(parentIdx, func(parent *Node[E]) {
		for _, pe := range parent.Parents {
			seeds = append(seeds, backpropSeed{parent: pe.Parent, move: pe.Move, piece: pe.Piece, childIndex: parentIdx})
		}
	})

	backprop[E](startLayer, layers, seeds)
}
