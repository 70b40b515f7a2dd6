package dag

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetrisdag/internal/board"
)

// mark returns a GameState distinguishable from others only by its
// combo counter — these tests never touch real board contents, only
// the DAG's bookkeeping around a given state.
func mark(n uint8, bag board.Bag, reserve board.Piece, hasReserve bool) board.GameState {
	return board.GameState{Combo: n, Bag: bag, Reserve: reserve, HasReserve: hasReserve}
}

func bagOf(pieces ...board.Piece) board.Bag {
	var b board.Bag
	for _, p := range pieces {
		b = b.Add(p)
	}
	return b
}

// S1 — single-leaf expand (spec.md §8).
func TestExpand_SingleLeaf(t *testing.T) {
	root := mark(0, bagOf(board.I, board.O), board.I, false)
	d := New[board.Score](root, []board.Piece{board.T}, false, 1)

	sel, ok := d.Select()
	require.True(t, ok)
	state, piece, hasPiece := sel.State()
	assert.Equal(t, root, state)
	assert.True(t, hasPiece)
	assert.Equal(t, board.T, piece)

	s1 := mark(1, bagOf(board.I, board.O), board.I, false)
	m1 := board.Placement{Piece: board.T, Column: 0}
	sel.Expand(map[board.Piece][]ChildData[board.Score]{
		board.T: {{ResultState: s1, Move: m1, Eval: 10, Reward: 2}},
	})

	suggestions := d.Suggest()
	require.Len(t, suggestions, 1)
	assert.Equal(t, m1, suggestions[0])

	idx, ok := d.top.states.IndexOf(root)
	require.True(t, ok)
	var rootEval board.Score
	d.top.states.WithRead(idx, func(n *Node[board.Score]) { rootEval = n.Eval })
	assert.Equal(t, board.Score(12), rootEval)

	next := d.top.Next()
	childIdx, ok := next.states.IndexOf(s1)
	require.True(t, ok)
	var parents []ParentEdge
	next.states.WithRead(childIdx, func(n *Node[board.Score]) { parents = n.Parents })
	require.Len(t, parents, 1)
	assert.Equal(t, ParentEdge{Parent: idx, Move: m1, Piece: board.T}, parents[0])
}

// S2 — reorder/propagation on a second, unknown-piece expand (spec.md §8).
// Select() replays stored placements through board.Apply to re-derive
// the state at each descent step, so the children below must be built
// from real movegen output rather than hand-invented GameStates, or the
// second Select call would land on a freshly-inserted node instead of
// the one this test just installed.
func TestExpand_PropagatesThroughUnknownLayer(t *testing.T) {
	root := board.GameState{Bag: bagOf(board.T, board.I, board.O)}
	d := New[board.Score](root, []board.Piece{board.T}, false, 1)

	sel, ok := d.Select()
	require.True(t, ok)

	gen := board.SimpleGenerator{}
	tMoves, err := gen.Moves(root, board.T)
	require.NoError(t, err)
	require.NotEmpty(t, tMoves)
	m1 := tMoves[0].Placement
	s1 := tMoves[0].Result
	sel.Expand(map[board.Piece][]ChildData[board.Score]{
		board.T: {{ResultState: s1, Move: m1, Eval: 10, Reward: 2}},
	})

	sel2, ok := d.Select()
	require.True(t, ok)
	state, _, hasPiece := sel2.State()
	assert.Equal(t, s1, state)
	assert.False(t, hasPiece)

	iMoves, err := gen.Moves(s1, board.I)
	require.NoError(t, err)
	require.True(t, len(iMoves) >= 2)
	oMoves, err := gen.Moves(s1, board.O)
	require.NoError(t, err)
	require.NotEmpty(t, oMoves)

	sel2.Expand(map[board.Piece][]ChildData[board.Score]{
		board.I: {
			{ResultState: iMoves[0].Result, Move: iMoves[0].Placement, Eval: 5, Reward: 0},
			{ResultState: iMoves[1].Result, Move: iMoves[1].Placement, Eval: 1, Reward: 0},
		},
		board.O: {
			{ResultState: oMoves[0].Result, Move: oMoves[0].Placement, Eval: 9, Reward: 0},
		},
	})

	next := d.top.Next()
	s1Idx, ok := next.states.IndexOf(s1)
	require.True(t, ok)
	var s1Eval board.Score
	next.states.WithRead(s1Idx, func(n *Node[board.Score]) { s1Eval = n.Eval })
	assert.Equal(t, board.Score(7), s1Eval)

	var rootEval board.Score
	rootIdx, _ := d.top.states.IndexOf(root)
	d.top.states.WithRead(rootIdx, func(n *Node[board.Score]) { rootEval = n.Eval })
	assert.Equal(t, board.Score(9), rootEval)

	var cached board.Score
	d.top.states.WithRead(rootIdx, func(n *Node[board.Score]) {
		cached = n.Children[board.T][0].CachedEval
	})
	assert.Equal(t, board.Score(9), cached)
}

// S3 — reserve/hold participates in the aggregate eval (spec.md §8).
func TestExpand_ReserveParticipatesInAggregate(t *testing.T) {
	root := mark(0, bagOf(board.I, board.T), board.O, true)
	d := New[board.Score](root, nil, false, 1)

	sel, ok := d.Select()
	require.True(t, ok)
	_, _, hasPiece := sel.State()
	assert.False(t, hasPiece)

	sI := mark(1, board.Bag(0), 0, false)
	sO := mark(2, board.Bag(0), 0, false)
	sT := mark(3, board.Bag(0), 0, false)
	sel.Expand(map[board.Piece][]ChildData[board.Score]{
		board.I: {{ResultState: sI, Move: board.Placement{Piece: board.I}, Eval: 3, Reward: 0}},
		board.O: {{ResultState: sO, Move: board.Placement{Piece: board.O}, Eval: 10, Reward: 0}},
		board.T: {{ResultState: sT, Move: board.Placement{Piece: board.T}, Eval: 4, Reward: 0}},
	})

	idx, _ := d.top.states.IndexOf(root)
	var rootEval board.Score
	d.top.states.WithRead(idx, func(n *Node[board.Score]) { rootEval = n.Eval })
	assert.Equal(t, board.Score(10), rootEval)
}

// S4 — exactly one of two concurrent Select calls on the same
// unexpanded frontier receives a Selection (spec.md §8).
func TestSelect_ClaimContention(t *testing.T) {
	root := mark(0, bagOf(board.I), 0, false)
	d := New[board.Score](root, []board.Piece{board.T}, false, 1)

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok := d.Select()
			results[i] = ok
		}(i)
	}
	wg.Wait()

	claimed := 0
	for _, ok := range results {
		if ok {
			claimed++
		}
	}
	assert.Equal(t, 1, claimed)
}

// S6 — a single-element repair moves a reordered child to its new
// position without disturbing the rest of the list (spec.md §8).
func TestBackprop_ReorderOnRepeatedReeval(t *testing.T) {
	root := mark(0, bagOf(board.I), 0, false)
	d := New[board.Score](root, []board.Piece{board.I}, false, 1)

	sel, ok := d.Select()
	require.True(t, ok)

	a := mark(1, board.Bag(0), 0, false)
	b := mark(2, board.Bag(0), 0, false)
	ma := board.Placement{Piece: board.I, Column: 0}
	mb := board.Placement{Piece: board.I, Column: 1}
	sel.Expand(map[board.Piece][]ChildData[board.Score]{
		board.I: {
			{ResultState: a, Move: ma, Eval: 5, Reward: 0},
			{ResultState: b, Move: mb, Eval: 7, Reward: 0},
		},
	})

	idx, _ := d.top.states.IndexOf(root)
	var order []board.Placement
	d.top.states.WithRead(idx, func(n *Node[board.Score]) {
		for _, c := range n.Children[board.I] {
			order = append(order, c.Move)
		}
	})
	assert.Equal(t, []board.Placement{mb, ma}, order)

	next := d.top.Next()
	aIdx, _ := next.states.IndexOf(a)
	next.states.WithWrite(aIdx, func(n *Node[board.Score]) { n.Eval = 9 })
	backprop[board.Score](next, []*Layer[board.Score]{d.top}, []backpropSeed{
		{parent: idx, move: ma, piece: board.I, childIndex: aIdx},
	})

	order = nil
	d.top.states.WithRead(idx, func(n *Node[board.Score]) {
		for _, c := range n.Children[board.I] {
			order = append(order, c.Move)
		}
	})
	assert.Equal(t, []board.Placement{ma, mb}, order)
}

// Property test (spec.md §8, invariant 1/2): after expanding the root
// with three children, the per-piece child list is sorted
// descending by cached eval, and every cached eval matches target.eval
// + reward.
func TestInvariants_SortedAndCachedEvalConsistent(t *testing.T) {
	root := mark(0, bagOf(board.I, board.O, board.T), 0, false)
	d := New[board.Score](root, []board.Piece{board.I}, false, 1)

	sel, ok := d.Select()
	require.True(t, ok)

	children := map[board.Piece][]ChildData[board.Score]{
		board.I: {
			{ResultState: mark(1, board.Bag(0), 0, false), Move: board.Placement{Piece: board.I, Column: 0}, Eval: 3, Reward: 1},
			{ResultState: mark(2, board.Bag(0), 0, false), Move: board.Placement{Piece: board.I, Column: 1}, Eval: 8, Reward: 0},
			{ResultState: mark(3, board.Bag(0), 0, false), Move: board.Placement{Piece: board.I, Column: 2}, Eval: 1, Reward: 2},
		},
	}
	sel.Expand(children)

	idx, _ := d.top.states.IndexOf(root)
	d.top.states.WithRead(idx, func(n *Node[board.Score]) {
		list := n.Children[board.I]
		require.Len(t, list, 3)
		for i := 1; i < len(list); i++ {
			assert.False(t, list[i-1].CachedEval.Less(list[i].CachedEval),
				"list must be sorted descending")
		}
		for _, c := range list {
			var targetEval board.Score
			next := d.top.Next()
			next.states.WithRead(c.Target, func(tn *Node[board.Score]) { targetEval = tn.Eval })
			assert.Equal(t, targetEval.Plus(c.Reward), c.CachedEval)
		}
	})
}

// Concurrency stress: many goroutines hammering Select/Expand on a
// shared Dag must complete without panicking or deadlocking (spec.md §5);
// the test makes no assertions on the resulting graph.
// Children are built from the real move generator so that Select's
// board.Apply replay always re-derives a state already present in the
// next layer's StateMap, exactly as workerpool.Coordinator's worker
// loop would drive it.
func TestConcurrentSelectExpand(t *testing.T) {
	root := board.NewGame()
	d := New[board.Score](root, []board.Piece{board.I, board.O}, false, 7)
	gen := board.SimpleGenerator{}

	const workers = 8
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				sel, ok := d.Select()
				if !ok {
					continue
				}
				state, piece, hasPiece := sel.State()

				var pieces []board.Piece
				if hasPiece {
					pieces = []board.Piece{piece}
				} else {
					pieces = state.Bag.Pieces()
				}

				children := make(map[board.Piece][]ChildData[board.Score], len(pieces))
				for _, p := range pieces {
					moves, err := gen.Moves(state, p)
					if err != nil || len(moves) == 0 {
						continue
					}
					children[p] = []ChildData[board.Score]{{
						ResultState: moves[0].Result,
						Move:        moves[0].Placement,
						Eval:        board.Score(w),
						Reward:      moves[0].Reward,
					}}
				}
				sel.Expand(children)
			}
		}(w)
	}
	wg.Wait()
}
