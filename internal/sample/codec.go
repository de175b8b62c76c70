// Package sample defines the training example and its fixed-width 32-byte
// on-disk record. The byte layout is shared with other implementations and
// must not change:
//
//	off 0  16B  piece table, 32 nibbles, low nibble first, one per
//	            occupied square in ascending square order
//	off 16  8B  occupancy bitboard, little endian, A1 = bit 0
//	off 24  2B  eval, int16 centipawns, -32768 = absent
//	off 26  2B  fullmove number, uint16
//	off 28  1B  halfmove clock, saturated at 255
//	off 29  1B  en-passant square, 0 = none
//	off 30  1B  side to move, 0 = white
//	off 31  1B  outcome, 0b11 draw / 0b10 white wins / 0b01 black wins
//
// Nibble: bit 3 = color (1 white), bits 0-2 = tag, 1..6 pawn..king and 7 a
// rook that still carries a castling right. The decoder resolves a sentinel
// rook to the queen side when it appears before its color's king and to the
// king side after, so both encoder and decoder must visit occupied squares
// in strictly ascending index order.
package sample

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/freeeve/chessdata/internal/chess"
)

// RecordSize is the width of one packed record in bytes.
const RecordSize = 32

// NoEval is the wire sentinel for an absent evaluation.
const NoEval int16 = math.MinInt16

var (
	ErrTooManyPieces     = errors.New("position has more than 32 pieces")
	ErrInvalidOutcome    = errors.New("invalid outcome field")
	ErrInvalidSideToMove = errors.New("invalid side-to-move field")
	ErrInvalidEnPassant  = errors.New("invalid en-passant field")
	ErrInvalidPosition   = errors.New("invalid position")
)

// Outcome is the game result, encoded exactly as stored on disk.
type Outcome uint8

const (
	OutcomeBlackWins Outcome = 0b01
	OutcomeWhiteWins Outcome = 0b10
	OutcomeDraw      Outcome = 0b11
)

// Winner returns the winning color, or false for a draw.
func (o Outcome) Winner() (chess.Color, bool) {
	switch o {
	case OutcomeWhiteWins:
		return chess.White, true
	case OutcomeBlackWins:
		return chess.Black, true
	}
	return 0, false
}

func (o Outcome) Valid() bool {
	return o >= OutcomeBlackWins && o <= OutcomeDraw
}

func (o Outcome) String() string {
	switch o {
	case OutcomeWhiteWins:
		return "white wins"
	case OutcomeBlackWins:
		return "black wins"
	case OutcomeDraw:
		return "draw"
	}
	return fmt.Sprintf("invalid(%d)", uint8(o))
}

// Sample is one labeled training example.
type Sample struct {
	Pos     chess.Position
	Outcome Outcome
	Eval    int16 // centipawns from the side to move, meaningful iff HasEval
	HasEval bool
}

// PackedSample is the raw on-disk record.
type PackedSample [RecordSize]byte

const (
	pieceColorWhite = 0b1000
	pieceTagMask    = 0b0111
	castlingRookTag = 0b0111
)

// Pack encodes the sample. The only failure mode is a board with more than
// 32 pieces; the halfmove clock is clamped instead of failing.
func (s *Sample) Pack() (PackedSample, error) {
	var rec PackedSample
	pos := &s.Pos

	occ := pos.Occupied()
	if bits.OnesCount64(occ) > 32 {
		return rec, ErrTooManyPieces
	}

	n := 0
	for rest := occ; rest != 0; rest &= rest - 1 {
		sq := chess.Square(bits.TrailingZeros64(rest))
		piece, color, _ := pos.PieceAt(sq)

		tag := byte(piece) + 1
		if piece == chess.Rook &&
			sq.Rank() == chess.BackRank(color) &&
			pos.Castling[color].Contains(sq.File()) {
			tag = castlingRookTag
		}
		nibble := tag
		if color == chess.White {
			nibble |= pieceColorWhite
		}
		rec[n/2] |= nibble << (4 * (n % 2))
		n++
	}

	binary.LittleEndian.PutUint64(rec[16:24], occ)

	eval := NoEval
	if s.HasEval {
		eval = s.Eval
	}
	binary.LittleEndian.PutUint16(rec[24:26], uint16(eval))
	binary.LittleEndian.PutUint16(rec[26:28], pos.FullmoveNumber)
	rec[28] = uint8(min(pos.HalfmoveClock, 255))
	if pos.EnPassant != chess.NoSquare {
		rec[29] = uint8(pos.EnPassant)
	}
	rec[30] = uint8(pos.SideToMove)
	rec[31] = uint8(s.Outcome)
	return rec, nil
}

// Unpack decodes a record, rebuilding the board square by square in
// ascending index order and validating the result through the board model.
func (p *PackedSample) Unpack() (Sample, error) {
	var s Sample
	pos := &s.Pos
	pos.EnPassant = chess.NoSquare

	occ := binary.LittleEndian.Uint64(p[16:24])
	if bits.OnesCount64(occ) > 32 {
		return s, ErrTooManyPieces
	}

	stm := p[30]
	if stm > uint8(chess.Black) {
		return s, ErrInvalidSideToMove
	}
	pos.SideToMove = chess.Color(stm)

	if ep := p[29]; ep != 0 {
		if ep > 63 {
			return s, ErrInvalidEnPassant
		}
		pos.EnPassant = chess.Square(ep)
	}

	pos.FullmoveNumber = binary.LittleEndian.Uint16(p[26:28])
	pos.HalfmoveClock = uint16(p[28])

	var sawKing [2]bool
	n := 0
	for rest := occ; rest != 0; rest &= rest - 1 {
		sq := chess.Square(bits.TrailingZeros64(rest))
		nibble := p[n/2] >> (4 * (n % 2)) & 0xF
		n++

		color := chess.Black
		if nibble&pieceColorWhite != 0 {
			color = chess.White
		}
		tag := nibble & pieceTagMask

		piece := chess.Rook
		switch {
		case tag == castlingRookTag:
			// Sentinel rook: the side of the right follows from whether
			// this color's king has been seen yet.
			if sawKing[color] {
				pos.Castling[color].SetKingSide(sq.File())
			} else {
				pos.Castling[color].SetQueenSide(sq.File())
			}
		case tag == 0:
			return s, fmt.Errorf("%w: empty piece slot for occupied square %v", ErrInvalidPosition, sq)
		default:
			piece = chess.Piece(tag - 1)
			if piece == chess.King {
				sawKing[color] = true
			}
		}
		pos.Put(sq, color, piece)
	}

	if err := pos.Validate(); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}

	s.Outcome = Outcome(p[31])
	if !s.Outcome.Valid() {
		return s, ErrInvalidOutcome
	}

	if eval := int16(binary.LittleEndian.Uint16(p[24:26])); eval != NoEval {
		s.Eval = eval
		s.HasEval = true
	}
	return s, nil
}
