package board

// cell is a (col, row) offset within a piece's 4x4 bounding box, row 0 at
// the top of the box.
type cell struct{ col, row int8 }

// shapes holds, per piece and rotation state, the occupied cells within a
// 4x4 bounding box. Only 2 distinct rotation states are modeled for I, S,
// Z (they look the same rotated 180) and 1 for O; this is a simplified
// stand-in, not a full SRS implementation.
var shapes = map[Piece][][4]cell{
	I: {
		{{0, 1}, {1, 1}, {2, 1}, {3, 1}},
		{{2, 0}, {2, 1}, {2, 2}, {2, 3}},
	},
	O: {
		{{1, 0}, {2, 0}, {1, 1}, {2, 1}},
	},
	T: {
		{{1, 0}, {0, 1}, {1, 1}, {2, 1}},
		{{1, 0}, {1, 1}, {2, 1}, {1, 2}},
		{{0, 1}, {1, 1}, {2, 1}, {1, 2}},
		{{1, 0}, {0, 1}, {1, 1}, {1, 2}},
	},
	L: {
		{{2, 0}, {0, 1}, {1, 1}, {2, 1}},
		{{1, 0}, {1, 1}, {1, 2}, {2, 2}},
		{{0, 1}, {1, 1}, {2, 1}, {0, 2}},
		{{0, 0}, {1, 0}, {1, 1}, {1, 2}},
	},
	J: {
		{{0, 0}, {0, 1}, {1, 1}, {2, 1}},
		{{1, 0}, {2, 0}, {1, 1}, {1, 2}},
		{{0, 1}, {1, 1}, {2, 1}, {2, 2}},
		{{1, 0}, {1, 1}, {0, 2}, {1, 2}},
	},
	S: {
		{{1, 0}, {2, 0}, {0, 1}, {1, 1}},
		{{1, 0}, {1, 1}, {2, 1}, {2, 2}},
	},
	Z: {
		{{0, 0}, {1, 0}, {1, 1}, {2, 1}},
		{{2, 0}, {1, 1}, {2, 1}, {1, 2}},
	},
}

// Rotations returns the number of distinct rotation states modeled for p.
func Rotations(p Piece) int {
	return len(shapes[p])
}

// Footprint returns the occupied cells for piece p at rotation r.
func Footprint(p Piece, r int) [4]cell {
	states := shapes[p]
	return states[r%len(states)]
}
