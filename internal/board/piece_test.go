package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBag_FullBagHasAllSeven(t *testing.T) {
	b := FullBag()
	for _, p := range AllPieces {
		assert.True(t, b.Has(p), "full bag should contain %s", p)
	}
	assert.Equal(t, AllPieces[:], b.Pieces())
}

func TestBag_RemoveThenEmpty(t *testing.T) {
	b := FullBag()
	for _, p := range AllPieces {
		b = b.Remove(p)
	}
	assert.True(t, b.Empty())
	assert.Empty(t, b.Pieces())
}

func TestBag_PiecesPreservesAllPiecesOrder(t *testing.T) {
	b := Bag(0).Add(Z).Add(I).Add(T)
	assert.Equal(t, []Piece{I, T, Z}, b.Pieces())
}

func TestPiece_String(t *testing.T) {
	assert.Equal(t, "I", I.String())
	assert.Equal(t, "Z", Z.String())
	assert.Equal(t, "?", numPieces.String())
}
