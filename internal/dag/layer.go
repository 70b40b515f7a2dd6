package dag

import (
	"sync"

	"github.com/tetrisdag/internal/board"
)

// Layer is a single depth in the DAG (spec.md §3, §4.2): a StateMap
// paired with the piece that will be placed moving into the next depth
// (unknown until AddPiece/the construction queue sets it), and a
// lazily-materialized successor so the chain doesn't eagerly allocate to
// infinite depth.
type Layer[E Evaluation[E]] struct {
	mu       sync.Mutex
	piece    board.Piece
	hasPiece bool
	next     *Layer[E]

	states *StateMap[board.GameState, Node[E]]
}

func newLayer[E Evaluation[E]]() *Layer[E] {
	return &Layer[E]{states: newStateMap[board.GameState, Node[E]]()}
}

// Next materializes (on first access) and returns the successor layer.
func (l *Layer[E]) Next() *Layer[E] {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.next == nil {
		l.next = newLayer[E]()
	}
	return l.next
}

// takeNext detaches and returns the successor layer, allocating an empty
// one first if none exists yet — used by Dag.Advance, which is the only
// operation allowed to consume a layer (spec.md §3 "Lifecycle").
func (l *Layer[E]) takeNext() *Layer[E] {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.next == nil {
		l.next = newLayer[E]()
	}
	n := l.next
	l.next = nil
	return n
}

// Piece returns the piece that will be placed moving out of this layer,
// and whether it is known yet.
func (l *Layer[E]) Piece() (board.Piece, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.piece, l.hasPiece
}

// SetPiece sets the piece for this layer if it is not already known,
// returning whether it made the assignment (spec.md §4.3 add_piece walks
// layers looking for the first one with piece == None).
func (l *Layer[E]) SetPiece(p board.Piece) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hasPiece {
		return false
	}
	l.piece = p
	l.hasPiece = true
	return true
}
