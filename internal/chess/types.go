// Package chess holds the minimal board model the training-data pipeline
// needs: piece placement, side to move, castling rights, en passant, and
// move counters, plus FEN conversion and basic legality validation. Move
// generation is deliberately not part of this package; collaborators that
// need it bring their own rules engine.
package chess

import "fmt"

// Color identifies a side. White is 0 so it can double as an array index
// and as the wire encoding of the side-to-move byte.
type Color uint8

const (
	White Color = 0
	Black Color = 1
)

func (c Color) Other() Color {
	return c ^ 1
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// Piece is a piece kind without color.
type Piece uint8

const (
	Pawn Piece = iota
	Knight
	Bishop
	Rook
	Queen
	King
	PieceCount = 6
)

var pieceChars = [PieceCount]byte{'p', 'n', 'b', 'r', 'q', 'k'}

// Char returns the FEN character for the piece in the given color.
func (p Piece) Char(c Color) byte {
	ch := pieceChars[p]
	if c == White {
		ch -= 'a' - 'A'
	}
	return ch
}

// File is a board file, 0 = a-file .. 7 = h-file.
type File uint8

const (
	FileA File = iota
	FileB
	FileC
	FileD
	FileE
	FileF
	FileG
	FileH
)

// Rank is a board rank, 0 = rank 1 .. 7 = rank 8.
type Rank uint8

const (
	Rank1 Rank = iota
	Rank2
	Rank3
	Rank4
	Rank5
	Rank6
	Rank7
	Rank8
)

// BackRank is the home rank for the color's king and rooks.
func BackRank(c Color) Rank {
	if c == White {
		return Rank1
	}
	return Rank8
}

// Square is a board square index, A1 = 0, B1 = 1, .., H8 = 63.
type Square uint8

// NoSquare marks an absent square (for example no en-passant target).
const NoSquare Square = 64

func SquareAt(f File, r Rank) Square {
	return Square(uint8(r)*8 + uint8(f))
}

func (s Square) File() File {
	return File(s & 7)
}

func (s Square) Rank() Rank {
	return Rank(s >> 3)
}

// FlipVertical mirrors the square top to bottom (A1 <-> A8).
func (s Square) FlipVertical() Square {
	return s ^ 56
}

func (s Square) Bit() uint64 {
	return 1 << s
}

func (s Square) String() string {
	if s >= NoSquare {
		return "-"
	}
	return fmt.Sprintf("%c%c", 'a'+byte(s.File()), '1'+byte(s.Rank()))
}

// ParseSquare parses algebraic notation like "e3".
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return NoSquare, fmt.Errorf("invalid square %q", s)
	}
	return SquareAt(File(s[0]-'a'), Rank(s[1]-'1')), nil
}

// Castling holds the castling-eligible rook files for one color. Files are
// stored biased by one so the zero value means no rights on either side.
type Castling struct {
	kingSide  uint8
	queenSide uint8
}

func (c *Castling) SetKingSide(f File) {
	c.kingSide = uint8(f) + 1
}

func (c *Castling) SetQueenSide(f File) {
	c.queenSide = uint8(f) + 1
}

func (c Castling) KingSide() (File, bool) {
	return File(c.kingSide - 1), c.kingSide != 0
}

func (c Castling) QueenSide() (File, bool) {
	return File(c.queenSide - 1), c.queenSide != 0
}

// Contains reports whether a rook on file f still carries a castling right.
func (c Castling) Contains(f File) bool {
	return c.kingSide == uint8(f)+1 || c.queenSide == uint8(f)+1
}

func (c Castling) Any() bool {
	return c.kingSide != 0 || c.queenSide != 0
}
