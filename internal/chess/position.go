package chess

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// Position is a full board state. All fields are plain values so positions
// compare with ==.
type Position struct {
	Pieces         [PieceCount]uint64 // by piece kind, both colors
	Colors         [2]uint64          // occupancy by color
	SideToMove     Color
	Castling       [2]Castling
	EnPassant      Square // NoSquare when there is no target
	HalfmoveClock  uint16
	FullmoveNumber uint16
}

func (p *Position) Occupied() uint64 {
	return p.Colors[White] | p.Colors[Black]
}

// PieceAt returns the piece and color on sq.
func (p *Position) PieceAt(sq Square) (Piece, Color, bool) {
	bit := sq.Bit()
	if p.Occupied()&bit == 0 {
		return 0, 0, false
	}
	color := White
	if p.Colors[Black]&bit != 0 {
		color = Black
	}
	for piece := Pawn; piece <= King; piece++ {
		if p.Pieces[piece]&bit != 0 {
			return piece, color, true
		}
	}
	return 0, 0, false
}

// Put places a piece on an empty square. Callers own the no-overlap
// invariant; Validate catches violations after the fact.
func (p *Position) Put(sq Square, c Color, piece Piece) {
	bit := sq.Bit()
	p.Pieces[piece] |= bit
	p.Colors[c] |= bit
}

// KingSquare returns the square of c's king.
func (p *Position) KingSquare(c Color) (Square, bool) {
	kings := p.Pieces[King] & p.Colors[c]
	if kings == 0 {
		return NoSquare, false
	}
	return Square(bits.TrailingZeros64(kings)), true
}

// InCheck reports whether the side to move's king is attacked.
func (p *Position) InCheck() bool {
	king, ok := p.KingSquare(p.SideToMove)
	if !ok {
		return false
	}
	return p.Attacked(king, p.SideToMove.Other())
}

const rankEdges = uint64(0xFF) | uint64(0xFF)<<56

// Validate checks basic chess legality: piece sets consistent, one king
// per color, no pawns on the edge ranks, the side not to move not in
// check, and en-passant / castling state consistent with the placement.
func (p *Position) Validate() error {
	if p.Colors[White]&p.Colors[Black] != 0 {
		return errors.New("white and black occupancy overlap")
	}
	var all uint64
	for piece := Pawn; piece <= King; piece++ {
		if all&p.Pieces[piece] != 0 {
			return errors.New("piece boards overlap")
		}
		all |= p.Pieces[piece]
	}
	if all != p.Occupied() {
		return errors.New("piece boards do not match occupancy")
	}
	for c := White; c <= Black; c++ {
		if n := bits.OnesCount64(p.Pieces[King] & p.Colors[c]); n != 1 {
			return fmt.Errorf("%v has %d kings", c, n)
		}
	}
	if p.Pieces[Pawn]&rankEdges != 0 {
		return errors.New("pawn on back rank")
	}
	if p.SideToMove > Black {
		return fmt.Errorf("invalid side to move %d", p.SideToMove)
	}
	// The player who just moved may not have left their king en prise.
	opponent := p.SideToMove.Other()
	if king, ok := p.KingSquare(opponent); ok && p.Attacked(king, p.SideToMove) {
		return errors.New("side not to move is in check")
	}
	if err := p.validateEnPassant(); err != nil {
		return err
	}
	return p.validateCastling()
}

func (p *Position) validateEnPassant() error {
	ep := p.EnPassant
	if ep == NoSquare {
		return nil
	}
	if ep > 63 {
		return fmt.Errorf("invalid en-passant square %d", ep)
	}
	// The target sits behind the pawn that just made a double push.
	mover := p.SideToMove.Other()
	wantRank, pawnSq := Rank6, ep-8
	if mover == White {
		wantRank, pawnSq = Rank3, ep+8
	}
	if ep.Rank() != wantRank {
		return fmt.Errorf("en-passant target %v on wrong rank", ep)
	}
	if p.Occupied()&ep.Bit() != 0 {
		return fmt.Errorf("en-passant target %v is occupied", ep)
	}
	if p.Pieces[Pawn]&p.Colors[mover]&pawnSq.Bit() == 0 {
		return fmt.Errorf("no pawn behind en-passant target %v", ep)
	}
	return nil
}

func (p *Position) validateCastling() error {
	for c := White; c <= Black; c++ {
		rights := p.Castling[c]
		if !rights.Any() {
			continue
		}
		back := BackRank(c)
		if king, _ := p.KingSquare(c); king.Rank() != back {
			return fmt.Errorf("%v has castling rights but king is off the back rank", c)
		}
		rooks := p.Pieces[Rook] & p.Colors[c]
		for _, side := range [2]func() (File, bool){rights.KingSide, rights.QueenSide} {
			if file, ok := side(); ok {
				if rooks&SquareAt(file, back).Bit() == 0 {
					return fmt.Errorf("%v castling right on file %c without a rook", c, 'a'+byte(file))
				}
			}
		}
	}
	return nil
}

// String renders the board from White's point of view, for inspection
// tooling and test failures.
func (p *Position) String() string {
	var sb strings.Builder
	for r := Rank8; ; r-- {
		sb.WriteByte('1' + byte(r))
		for f := FileA; f <= FileH; f++ {
			sb.WriteByte(' ')
			if piece, color, ok := p.PieceAt(SquareAt(f, r)); ok {
				sb.WriteByte(piece.Char(color))
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
		if r == Rank1 {
			break
		}
	}
	sb.WriteString("  a b c d e f g h")
	return sb.String()
}
