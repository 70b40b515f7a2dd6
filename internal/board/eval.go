package board

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Score is the concrete instantiation of the DAG core's generic
// Evaluation: a single float32-backed scalar, totally ordered, with a
// default zero value.
type Score float32

// WorstScore is the sentinel used when a frontier has no legal moves at
// all (spec.md §7: "define this as the worst representable evaluation,
// consistent with a lost position").
var WorstScore = Score(math32.Inf(-1))

// Less is a strict less-than over the underlying float32: -Inf sorts
// before every finite score and, like any score, is not Less than itself.
func (s Score) Less(o Score) bool {
	return float32(s) < float32(o)
}

// Plus folds a move's reward into a child's cached evaluation (spec.md
// §3, invariant 4: cached_eval == target.eval + reward).
func (s Score) Plus(r Reward) Score {
	return s + Score(r)
}

// Float64 exposes the scalar for gonum-based averaging.
func (s Score) Float64() float64 {
	return float64(s)
}

// FromFloat64 reconstructs a Score from an averaged float64.
func (s Score) FromFloat64(f float64) Score {
	return Score(f)
}

// Worst names the sentinel used for an empty move set (spec.md §7).
func (s Score) Worst() Score {
	return WorstScore
}

// Valid reports whether s is a usable (non-NaN) evaluation. Evaluator
// implementations should never return a NaN; this is the same check
// `arena.go`'s `validPolicies` runs over neural-network output.
func (s Score) Valid() bool {
	return !math32.IsNaN(float32(s))
}

// Evaluator produces a static positional estimate for a resulting state
// (spec.md §6); it is the other external collaborator the core consumes.
type Evaluator interface {
	Evaluate(s GameState) (Score, error)
}

// HeuristicEvaluator is a minimal hand-tuned stand-in: aggregate column
// height, bumpiness, and hole count, combined linearly. It builds its
// feature vector as a *tensor.Dense the way a trained evaluator's input
// layer would, even though no network consumes it here — there is no
// learned model in scope (see SPEC_FULL.md, DOMAIN STACK).
type HeuristicEvaluator struct {
	Weights [3]float32
}

// DefaultHeuristicEvaluator mirrors typical public-domain Tetris bot
// weights: penalize height and bumpiness, heavily penalize holes.
func DefaultHeuristicEvaluator() HeuristicEvaluator {
	return HeuristicEvaluator{Weights: [3]float32{-0.5, -0.3, -0.7}}
}

func (h HeuristicEvaluator) Evaluate(s GameState) (Score, error) {
	features, err := featureVector(s.Board)
	if err != nil {
		return 0, errors.Wrap(err, "board: building feature vector")
	}
	data, ok := features.Data().([]float32)
	if !ok || len(data) != 3 {
		return 0, errors.New("board: unexpected feature tensor shape")
	}
	var total float32
	for i, w := range h.Weights {
		total += w * data[i]
	}
	return Score(total), nil
}

func featureVector(b Board) (*tensor.Dense, error) {
	heights := make([]int8, Width)
	holes := 0
	for col := int8(0); col < Width; col++ {
		seenBlock := false
		for row := int8(0); row < Height; row++ {
			if b.filled(col, row) {
				if !seenBlock {
					heights[col] = Height - row
					seenBlock = true
				}
			} else if seenBlock {
				holes++
			}
		}
	}
	var aggHeight, bumpiness float32
	for i, h := range heights {
		aggHeight += float32(h)
		if i > 0 {
			diff := float32(h) - float32(heights[i-1])
			if diff < 0 {
				diff = -diff
			}
			bumpiness += diff
		}
	}
	backing := []float32{aggHeight, bumpiness, float32(holes)}
	return tensor.New(tensor.WithShape(3), tensor.WithBacking(backing)), nil
}
