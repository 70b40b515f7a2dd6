package dag

import (
	"gonum.org/v1/gonum/stat"

	"github.com/tetrisdag/internal/board"
)

// Evaluation is the core's generic evaluation constraint (spec.md §3,
// §9 "Generic Evaluation"): totally ordered, copyable, addable with a
// Reward, reducible to a float64 for averaging, and able to name its own
// "worst representable" sentinel and reconstruct itself from a float64.
// The self-referential type parameter (an interface naming the type
// implementing it) lets the core stay parametric over E without the
// caller juggling separate constructor functions.
type Evaluation[E any] interface {
	Less(other E) bool
	Plus(reward board.Reward) E
	Float64() float64
	FromFloat64(f float64) E
	Worst() E
}

// Option is a possibly-absent evaluation — spec.md §3's "average
// reduction over a (possibly-empty-slotted) sequence of optional
// evaluations". Absent here means "this piece's child list is empty",
// not "the whole sequence is empty" (see Average).
type Option[E any] struct {
	Has   bool
	Value E
}

func some[E any](v E) Option[E] { return Option[E]{Has: true, Value: v} }
func none[E any]() Option[E]    { var z E; return Option[E]{Value: z} }

// Average reduces a non-empty slice of optional evaluations, substituting
// each absent slot's Worst() sentinel (spec.md §7: an empty move set
// backpropagates as "the worst representable evaluation, consistent with
// a lost position"), via gonum's stat.Mean. The whole slice being empty
// is a programmer error: the bag/singleton possibility sets the core
// calls this with are never empty.
func Average[E Evaluation[E]](values []Option[E]) E {
	if len(values) == 0 {
		panic("dag: Average called with no values")
	}
	var zero E
	fs := make([]float64, len(values))
	for i, v := range values {
		if v.Has {
			fs[i] = v.Value.Float64()
		} else {
			fs[i] = zero.Worst().Float64()
		}
	}
	return zero.FromFloat64(stat.Mean(fs, nil))
}

// aggregate computes a node's aggregate evaluation from its own
// (already-sorted) children (spec.md §4.6 step 5, §3 invariant 5): for
// every piece that could plausibly be placed next — the layer's known
// piece, or the node's cached bag residue when unknown — take the max
// of that piece's best child and the reserve piece's best child (the
// player can always swap the reserve in instead), then average over
// the possibilities. Used both by Expand, to seed a freshly-installed
// node's own eval the first time, and by backprop, whenever a repaired
// child record becomes its list's new head.
func aggregate[E Evaluation[E]](layer *Layer[E], n *Node[E]) E {
	piece, known := layer.Piece()
	var possibilities []board.Piece
	if known {
		possibilities = []board.Piece{piece}
	} else {
		possibilities = n.Bag.Pieces()
	}

	var reserveBest Option[E]
	if n.HasReserve {
		reserveBest = bestFor(n.Children, n.Reserve)
	}

	values := make([]Option[E], 0, len(possibilities))
	for _, p := range possibilities {
		values = append(values, maxOption(bestFor(n.Children, p), reserveBest))
	}
	return Average(values)
}

// maxOption returns the larger of a, b under Less; an absent value loses
// to a present one, and two absent values stay absent.
func maxOption[E Evaluation[E]](a, b Option[E]) Option[E] {
	switch {
	case !a.Has:
		return b
	case !b.Has:
		return a
	case a.Value.Less(b.Value):
		return b
	default:
		return a
	}
}
