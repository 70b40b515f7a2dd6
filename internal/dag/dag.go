// Package dag implements the concurrent, layered search graph: a
// transposition-table-style state store, a rank-biased selection/
// expansion protocol with atomic claim flags, and incremental
// minimax-with-expectation backpropagation over future-piece
// uncertainty. Move generation, static evaluation, and the game-state
// rules engine are external collaborators the package consumes through
// the board package's types and interfaces, never reimplements.
package dag

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"github.com/tetrisdag/internal/board"
)

// errNoNextPiece is returned by Advance when the top layer's piece is
// still unknown (spec.md §4.3 "advance" requires it to be set first).
var errNoNextPiece = errors.New("dag: cannot advance, top layer's next piece is unknown")

// Dag owns the root state and the head of the layer chain (spec.md §3).
// Only the coordinator goroutine may call New, Advance, or AddPiece;
// Select and Expand are safe to call concurrently from worker goroutines
// while no topology-mutating call is outstanding (spec.md §5).
type Dag[E Evaluation[E]] struct {
	topMu sync.RWMutex
	root  board.GameState
	top   *Layer[E]

	newNodes    int64
	lastAdvance time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	speculate bool
}

// New creates the head layer, inserts the root node with a default
// evaluation and empty parents, and consumes the known queue
// piece-by-piece by walking the lazy chain (spec.md §4.3 "new").
func New[E Evaluation[E]](root board.GameState, queue []board.Piece, speculate bool, seed uint64) *Dag[E] {
	top := newLayer[E]()
	top.states.Insert(root, Node[E]{
		Bag:        root.Bag,
		Reserve:    root.Reserve,
		HasReserve: root.HasReserve,
	})

	layer := top
	for _, p := range queue {
		layer.SetPiece(p)
		layer = layer.Next()
	}

	return &Dag[E]{
		root:        root,
		top:         top,
		lastAdvance: time.Now(),
		rng:         rand.New(rand.NewSource(seed)),
		speculate:   speculate,
	}
}

// Advance is single-threaded: the caller guarantees no outstanding
// Selection exists (spec.md §4.3 "advance"). It advances the root state,
// promotes the next layer to be the new top, and ensures the new root
// node exists there even if no prior expansion produced it.
func (d *Dag[E]) Advance(mv board.Placement) error {
	d.topMu.Lock()
	defer d.topMu.Unlock()

	if _, known := d.top.Piece(); !known {
		return errNoNextPiece
	}

	now := time.Now()
	atomic.StoreInt64(&d.newNodes, 0)
	d.lastAdvance = now

	newRoot, _, err := board.Apply(d.root, mv)
	if err != nil {
		return err
	}

	next := d.top.takeNext()
	next.states.GetOrInsertWith(newRoot, func() Node[E] {
		return Node[E]{
			Bag:        newRoot.Bag,
			Reserve:    newRoot.Reserve,
			HasReserve: newRoot.HasReserve,
		}
	})

	d.root = newRoot
	d.top = next
	return nil
}

// AddPiece sets the piece on the first layer in the chain whose piece is
// still unknown (spec.md §4.3 "add_piece").
func (d *Dag[E]) AddPiece(p board.Piece) {
	d.topMu.RLock()
	layer := d.top
	d.topMu.RUnlock()

	for {
		if layer.SetPiece(p) {
			return
		}
		layer = layer.Next()
	}
}

// Suggest returns the ordered list of best placements from the root
// (spec.md §4.3 "suggest"). If the root's next piece is known, only that
// piece's child list is consulted; otherwise every piece in the root's
// bag is speculated over, each contributing its own best child.
func (d *Dag[E]) Suggest() []board.Placement {
	d.topMu.RLock()
	top, root := d.top, d.root
	d.topMu.RUnlock()

	idx, ok := top.states.IndexOf(root)
	if !ok {
		return nil
	}
	var children map[board.Piece][]*Child[E]
	top.states.WithRead(idx, func(n *Node[E]) { children = n.Children })
	if children == nil {
		return nil
	}

	type candidate struct {
		mv   board.Placement
		eval E
	}
	var candidates []candidate
	if piece, known := top.Piece(); known {
		if list := children[piece]; len(list) > 0 {
			candidates = append(candidates, candidate{list[0].Move, list[0].CachedEval})
		}
	} else {
		for _, p := range root.Bag.Pieces() {
			if list := children[p]; len(list) > 0 {
				candidates = append(candidates, candidate{list[0].Move, list[0].CachedEval})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[j].eval.Less(candidates[i].eval)
	})
	out := make([]board.Placement, len(candidates))
	for i, c := range candidates {
		out[i] = c.mv
	}
	return out
}

// Stats reports the profiling counters spec.md §9 requires the Dag to
// already hold: nodes created since the last Advance, and an implied
// nodes-per-second rate (SUPPLEMENTED FEATURE 1, SPEC_FULL.md).
type Stats struct {
	NewNodes        int64
	SinceLastAdvance time.Duration
}

func (d *Dag[E]) Stats() Stats {
	d.topMu.RLock()
	last := d.lastAdvance
	d.topMu.RUnlock()
	return Stats{
		NewNodes:        atomic.LoadInt64(&d.newNodes),
		SinceLastAdvance: time.Since(last),
	}
}

// NodesPerSecond derives a rate from Stats(), 0 if no time has elapsed.
func (s Stats) NodesPerSecond() float64 {
	secs := s.SinceLastAdvance.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.NewNodes) / secs
}
