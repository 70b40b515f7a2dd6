package dag

import "github.com/tetrisdag/internal/board"

// backprop repairs sorted child-list order at each touched edge and
// propagates changed aggregate evaluations upward through parents until
// a fixed point is reached (spec.md §4.6). prevLayer holds the nodes
// whose evals the first iteration reads; layers is the remaining
// shallower-than-prevLayer stack, popped one at a time.
func backprop[E Evaluation[E]](prevLayer *Layer[E], layers []*Layer[E], seeds []backpropSeed) {
	next := seeds
	for len(layers) > 0 && len(next) > 0 {
		layer := layers[len(layers)-1]
		layers = layers[:len(layers)-1]

		var nextUp []backpropSeed
		for _, seed := range next {
			var childEval E
			prevLayer.states.WithRead(seed.childIndex, func(n *Node[E]) { childEval = n.Eval })

			layer.states.WithWrite(seed.parent, func(parent *Node[E]) {
				list := parent.Children[seed.piece]
				idx := -1
				for i, c := range list {
					if c.Move == seed.move {
						idx = i
						break
					}
				}
				if idx < 0 {
					panic("dag: backprop couldn't find the child record for a placement")
				}

				list[idx].CachedEval = childEval.Plus(list[idx].Reward)
				newIdx := repairOrder(list, idx)

				if newIdx != 0 {
					return
				}

				newEval := aggregate(layer, parent)
				if !evalEqual(parent.Eval, newEval) {
					parent.Eval = newEval
					for _, pe := range parent.Parents {
						nextUp = append(nextUp, backpropSeed{parent: pe.Parent, move: pe.Move, piece: pe.Piece, childIndex: seed.parent})
					}
				}
			})
		}

		next = nextUp
		prevLayer = layer
	}
}

// repairOrder shifts the record at idx (already re-evaluated) into its
// correct descending position via single-element insertion, returning
// its new index (spec.md §4.6 step 4).
func repairOrder[E Evaluation[E]](list []*Child[E], idx int) int {
	hole := list[idx]
	if idx > 0 && list[idx-1].CachedEval.Less(hole.CachedEval) {
		i := idx
		for i > 0 && list[i-1].CachedEval.Less(hole.CachedEval) {
			list[i] = list[i-1]
			i--
		}
		list[i] = hole
		return i
	}
	if idx < len(list)-1 && hole.CachedEval.Less(list[idx+1].CachedEval) {
		i := idx
		for i < len(list)-1 && hole.CachedEval.Less(list[i+1].CachedEval) {
			list[i] = list[i+1]
			i++
		}
		list[i] = hole
		return i
	}
	return idx
}

func bestFor[E Evaluation[E]](children map[board.Piece][]*Child[E], p board.Piece) Option[E] {
	list := children[p]
	if len(list) == 0 {
		return none[E]()
	}
	return some(list[0].CachedEval)
}

func evalEqual[E Evaluation[E]](a, b E) bool {
	return !a.Less(b) && !b.Less(a)
}
