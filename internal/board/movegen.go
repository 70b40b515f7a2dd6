package board

import "github.com/pkg/errors"

// Placement is a move descriptor: a piece placed at a column and
// rotation. Equality-comparable (spec.md §3).
type Placement struct {
	Piece    Piece
	Rotation uint8
	Column   int8
}

// Move is what the external move generator collaborator hands back to
// the core (spec.md §6): a placement, the resulting state, and the
// reward to fold into the child's cached_eval.
type Move struct {
	Placement Placement
	Result    GameState
	Reward    Reward
}

// MoveGenerator enumerates legal placements of a piece from a state. It
// is one of the core's external collaborators (spec.md §1, §6); the
// core never inspects board contents directly.
type MoveGenerator interface {
	Moves(s GameState, piece Piece) ([]Move, error)
}

// SimpleGenerator hard-drops a piece straight down at every column/
// rotation combination. It is a minimal stand-in for a real SRS movegen
// (no wall kicks, no T-spins) — just enough surface for the DAG core to
// be exercised end to end.
type SimpleGenerator struct{}

func (SimpleGenerator) Moves(s GameState, piece Piece) ([]Move, error) {
	if piece >= numPieces {
		return nil, errors.Errorf("board: invalid piece %d", piece)
	}
	var moves []Move
	for rot := 0; rot < Rotations(piece); rot++ {
		footprint := Footprint(piece, rot)
		minCol, maxCol := int8(3), int8(0)
		for _, c := range footprint {
			if c.col < minCol {
				minCol = c.col
			}
			if c.col > maxCol {
				maxCol = c.col
			}
		}
		for col := -minCol; col+maxCol < Width; col++ {
			mv, ok := dropAt(s, piece, uint8(rot), col, footprint)
			if ok {
				moves = append(moves, mv)
			}
		}
	}
	return moves, nil
}

// Apply replays a previously-enumerated placement against state s,
// reproducing exactly the state transition SimpleGenerator.Moves would have
// reported for it. This is the GameState.advance collaborator spec.md
// §6 describes: the selector uses it to re-derive the state at each step
// of a descent without re-enumerating every legal move along the way.
func Apply(s GameState, p Placement) (GameState, Reward, error) {
	if p.Piece >= numPieces {
		return GameState{}, 0, errors.Errorf("board: invalid piece %d", p.Piece)
	}
	footprint := Footprint(p.Piece, int(p.Rotation))
	mv, ok := dropAt(s, p.Piece, p.Rotation, p.Column, footprint)
	if !ok {
		return GameState{}, 0, errors.Errorf("board: placement %+v no longer lands", p)
	}
	return mv.Result, mv.Reward, nil
}

func dropAt(s GameState, piece Piece, rot uint8, col int8, footprint [4]cell) (Move, bool) {
	// Find the lowest row offset at which the footprint doesn't collide,
	// scanning from the top (row offset 0) down.
	best := int8(-1)
	for rowOffset := int8(0); rowOffset < Height; rowOffset++ {
		if collides(s.Board, footprint, col, rowOffset) {
			break
		}
		best = rowOffset
	}
	if best < 0 {
		return Move{}, false
	}
	next := s.Board
	for _, c := range footprint {
		next.set(col+c.col, best+c.row)
	}
	cleared := next.clearLines()

	result := s
	result.Board = next
	result.Bag = s.drawFromBag(piece)
	result.Combo, result.BackToBack = updateComboAndB2B(s, cleared)

	return Move{
		Placement: Placement{Piece: piece, Rotation: rot, Column: col},
		Result:    result,
		Reward:    rewardFor(cleared, result.Combo, s.BackToBack),
	}, true
}

func collides(b Board, footprint [4]cell, col, rowOffset int8) bool {
	for _, c := range footprint {
		if b.filled(col+c.col, rowOffset+c.row) {
			return true
		}
	}
	return false
}

func updateComboAndB2B(prev GameState, cleared int) (combo uint8, b2b bool) {
	if cleared == 0 {
		return 0, prev.BackToBack
	}
	combo = prev.Combo + 1
	b2b = cleared == 4 || (cleared > 0 && prev.BackToBack && cleared >= 4)
	return combo, b2b
}

// rewardFor scores a single placement's immediate effect: line clears
// dominate, with combo and back-to-back bonuses, matching the informal
// scoring real Tetris bots use for the move-generator's reward term.
func rewardFor(cleared int, combo uint8, b2b bool) Reward {
	r := Reward(0)
	switch cleared {
	case 1:
		r = 1
	case 2:
		r = 3
	case 3:
		r = 5
	case 4:
		r = 8
		if b2b {
			r += 2
		}
	}
	if combo > 1 {
		r += Reward(combo-1) * 0.5
	}
	return r
}
