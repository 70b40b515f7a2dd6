// Package workerpool supplies the thread-pool bootstrap spec.md calls an
// external collaborator (§1, §5): a Coordinator that owns a *dag.Dag
// behind a lock, runs the fixed Select/evaluate/Expand worker loop, and
// exposes the outer, coordinator-thread-only operations (Start, Stop,
// Suggest, Advance, NewPiece) that must never race with worker
// goroutines walking the layer chain. This mirrors
// original_source/src/sync.rs's BotSyncronizer, built in the teacher's
// idiom: an arena-of-workers launched and quiesced with errgroup
// (mcts/search.go's runtime.NumCPU()-sized fan-out), and Close()-style
// shutdown aggregation via go-multierror (agent.go's Agent.Close).
package workerpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/tetrisdag/internal/board"
	"github.com/tetrisdag/internal/config"
	"github.com/tetrisdag/internal/dag"
)

// MoveInfo mirrors original_source/src/tbp.rs's MoveInfo: the node count
// and rate plus a human-readable statistics string (SPEC_FULL.md
// SUPPLEMENTED FEATURE 4).
type MoveInfo struct {
	Nodes int64
	NPS   float64
	Extra string
}

// Coordinator owns the Dag and the fixed worker pool. Only its exported
// methods may touch the Dag; the worker goroutines it launches never
// call Advance, AddPiece, or New directly (spec.md §5).
type Coordinator struct {
	mu   sync.RWMutex
	d    *dag.Dag[board.Score]
	opts config.BotOptions

	mover     board.MoveGenerator
	evaluator board.Evaluator

	cancel context.CancelFunc
	group  *errgroup.Group

	claims      int64
	expansions  int64
	claimsMu    sync.Mutex
}

// NewCoordinator constructs a Coordinator around a fresh Dag rooted at
// root, with the known part of the queue already set (spec.md §4.3 New).
func NewCoordinator(root board.GameState, queue []board.Piece, opts config.BotOptions, mover board.MoveGenerator, evaluator board.Evaluator) *Coordinator {
	return &Coordinator{
		d:         dag.New[board.Score](root, queue, opts.Speculate, opts.Seed),
		opts:      opts,
		mover:     mover,
		evaluator: evaluator,
	}
}

// Start launches opts.Workers goroutines running the Select -> evaluate
// -> Expand loop until ctx is cancelled or Stop is called.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	group, runCtx := errgroup.WithContext(runCtx)
	c.cancel = cancel
	c.group = group

	for i := 0; i < c.opts.Workers; i++ {
		group.Go(func() error {
			return c.workerLoop(runCtx)
		})
	}
}

// Stop cancels the worker pool and waits for every worker to return. A
// worker error other than context cancellation is returned wrapped in a
// *multierror.Error, in the style of agent.go's Agent.Close; errgroup
// keeps only the first such error, so later workers' errors are not
// reported.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	cancel, group := c.cancel, c.group
	c.cancel, c.group = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	var result error
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		result = multierror.Append(result, err)
	}
	return result
}

// workerLoop is the body each pool goroutine runs: poll Select, ask the
// move generator and evaluator for the frontier's children, and Expand.
// A nil Selection (claim contention, unknown piece, dead end) is not an
// error (spec.md §7) — the worker just loops.
func (c *Coordinator) workerLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		c.mu.RLock()
		d := c.d
		c.mu.RUnlock()

		sel, ok := d.Select()
		c.claimsMu.Lock()
		c.claims++
		c.claimsMu.Unlock()
		if !ok {
			continue
		}

		state, piece, hasPiece := sel.State()
		children, err := c.expandChildren(state, piece, hasPiece)
		if err != nil {
			return errors.Wrap(err, "workerpool: expanding frontier")
		}
		sel.Expand(children)
		c.claimsMu.Lock()
		c.expansions++
		c.claimsMu.Unlock()
	}
}

// expandChildren asks the move generator for every piece that could
// plausibly come next — the known layer piece, or every piece in the
// bag when it is unknown, plus the reserve in either case — and the evaluator for each
// resulting state's static eval. This is the "external collaborators"
// seam spec.md §6 describes; failures here are wrapped with
// errors.Wrap so the collaborator's stack survives across the
// internal/board -> internal/dag boundary.
func (c *Coordinator) expandChildren(state board.GameState, piece board.Piece, hasPiece bool) (map[board.Piece][]dag.ChildData[board.Score], error) {
	pieces := candidatePieces(state, piece, hasPiece)
	out := make(map[board.Piece][]dag.ChildData[board.Score], len(pieces))

	for _, p := range pieces {
		moves, err := c.mover.Moves(state, p)
		if err != nil {
			return nil, errors.Wrapf(err, "workerpool: generating moves for %s", p)
		}
		list := make([]dag.ChildData[board.Score], 0, len(moves))
		for _, mv := range moves {
			eval, err := c.evaluator.Evaluate(mv.Result)
			if err != nil {
				return nil, errors.Wrapf(err, "workerpool: evaluating placement %+v", mv.Placement)
			}
			list = append(list, dag.ChildData[board.Score]{
				ResultState: mv.Result,
				Move:        mv.Placement,
				Eval:        eval,
				Reward:      mv.Reward,
			})
		}
		out[p] = list
	}
	return out, nil
}

// candidatePieces is the reserve-aware set backprop's eval recomputation
// needs children for (spec.md §4.6 step 5): the piece about to be
// placed (or the whole bag if unknown) union the reserve, since the
// player can always swap the reserve in instead.
func candidatePieces(state board.GameState, piece board.Piece, hasPiece bool) []board.Piece {
	seen := make(map[board.Piece]bool, 8)
	var out []board.Piece
	add := func(p board.Piece) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if hasPiece {
		add(piece)
	} else {
		for _, p := range state.Bag.Pieces() {
			add(p)
		}
	}
	if state.HasReserve {
		add(state.Reserve)
	}
	return out
}

// Advance replays mv at the root (coordinator-thread only; callers must
// ensure Stop/quiescence before calling per spec.md §5).
func (c *Coordinator) Advance(mv board.Placement) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.d.Advance(mv)
}

// NewPiece forwards to Dag.AddPiece once the upcoming piece becomes
// known (spec.md §4.3).
func (c *Coordinator) NewPiece(p board.Piece) {
	c.mu.RLock()
	d := c.d
	c.mu.RUnlock()
	d.AddPiece(p)
}

// Suggest returns the root's ordered placements plus a MoveInfo
// statistics string, mirroring original_source/src/sync.rs's
// suggest()'s percentage-formatted extra field (SPEC_FULL.md
// SUPPLEMENTED FEATURE 4).
func (c *Coordinator) Suggest() ([]board.Placement, MoveInfo) {
	c.mu.RLock()
	d := c.d
	c.mu.RUnlock()

	moves := d.Suggest()
	stats := d.Stats()

	c.claimsMu.Lock()
	claims, expansions := c.claims, c.expansions
	c.claimsMu.Unlock()

	var expandedPct float64
	if claims > 0 {
		expandedPct = float64(expansions) / float64(claims) * 100
	}

	info := MoveInfo{
		Nodes: stats.NewNodes,
		NPS:   stats.NodesPerSecond(),
		Extra: fmt.Sprintf("%.1f%% of selections expanded, overall speed: %.1f knps",
			expandedPct, stats.NodesPerSecond()/1000),
	}
	return moves, info
}
