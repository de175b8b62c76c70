package chess

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN parses a FEN string into a validated Position. Castling accepts
// both letter style (KQkq) and Shredder file style (HAha).
func ParseFEN(fen string) (Position, error) {
	var p Position
	p.EnPassant = NoSquare
	p.FullmoveNumber = 1

	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return p, fmt.Errorf("fen %q: want at least 4 fields, got %d", fen, len(fields))
	}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return p, fmt.Errorf("fen %q: want 8 ranks, got %d", fen, len(ranks))
	}
	for i, row := range ranks {
		r := Rank8 - Rank(i)
		f := FileA
		for j := 0; j < len(row); j++ {
			ch := row[j]
			if ch >= '1' && ch <= '8' {
				f += File(ch - '0')
				continue
			}
			if f > FileH {
				return p, fmt.Errorf("fen %q: rank %d overflows", fen, r+1)
			}
			piece, color, err := pieceFromChar(ch)
			if err != nil {
				return p, fmt.Errorf("fen %q: %w", fen, err)
			}
			p.Put(SquareAt(f, r), color, piece)
			f++
		}
		if f != FileH+1 {
			return p, fmt.Errorf("fen %q: rank %d has %d files", fen, r+1, f)
		}
	}

	switch fields[1] {
	case "w":
		p.SideToMove = White
	case "b":
		p.SideToMove = Black
	default:
		return p, fmt.Errorf("fen %q: invalid side to move %q", fen, fields[1])
	}

	if err := p.parseCastling(fields[2]); err != nil {
		return p, fmt.Errorf("fen %q: %w", fen, err)
	}

	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil {
			return p, fmt.Errorf("fen %q: %w", fen, err)
		}
		p.EnPassant = sq
	}

	if len(fields) > 4 {
		n, err := strconv.ParseUint(fields[4], 10, 16)
		if err != nil {
			return p, fmt.Errorf("fen %q: halfmove clock: %w", fen, err)
		}
		p.HalfmoveClock = uint16(n)
	}
	if len(fields) > 5 {
		n, err := strconv.ParseUint(fields[5], 10, 16)
		if err != nil {
			return p, fmt.Errorf("fen %q: fullmove number: %w", fen, err)
		}
		p.FullmoveNumber = uint16(n)
	}

	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("fen %q: %w", fen, err)
	}
	return p, nil
}

func pieceFromChar(ch byte) (Piece, Color, error) {
	color := Black
	if ch >= 'A' && ch <= 'Z' {
		color = White
		ch += 'a' - 'A'
	}
	for piece := Pawn; piece <= King; piece++ {
		if pieceChars[piece] == ch {
			return piece, color, nil
		}
	}
	return 0, 0, fmt.Errorf("invalid piece character %q", ch)
}

func (p *Position) parseCastling(s string) error {
	if s == "-" {
		return nil
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		color := White
		if ch >= 'a' && ch <= 'z' {
			color = Black
			ch -= 'a' - 'A'
		}
		switch {
		case ch == 'K':
			p.Castling[color].SetKingSide(FileH)
		case ch == 'Q':
			p.Castling[color].SetQueenSide(FileA)
		case ch >= 'A' && ch <= 'H':
			// Shredder style: side is relative to the king's file.
			king, ok := p.KingSquare(color)
			if !ok {
				return fmt.Errorf("castling %q without a %v king", s, color)
			}
			file := File(ch - 'A')
			if file > king.File() {
				p.Castling[color].SetKingSide(file)
			} else {
				p.Castling[color].SetQueenSide(file)
			}
		default:
			return fmt.Errorf("invalid castling field %q", s)
		}
	}
	return nil
}

// FEN renders the position. Standard rook files come out in letter style,
// anything else in Shredder file style.
func (p *Position) FEN() string {
	var sb strings.Builder
	for r := Rank8; ; r-- {
		empty := 0
		for f := FileA; f <= FileH; f++ {
			if piece, color, ok := p.PieceAt(SquareAt(f, r)); ok {
				if empty > 0 {
					sb.WriteByte('0' + byte(empty))
					empty = 0
				}
				sb.WriteByte(piece.Char(color))
			} else {
				empty++
			}
		}
		if empty > 0 {
			sb.WriteByte('0' + byte(empty))
		}
		if r == Rank1 {
			break
		}
		sb.WriteByte('/')
	}

	sb.WriteByte(' ')
	if p.SideToMove == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	sb.WriteByte(' ')
	sb.WriteString(p.castlingString())

	sb.WriteByte(' ')
	sb.WriteString(p.EnPassant.String())

	fmt.Fprintf(&sb, " %d %d", p.HalfmoveClock, p.FullmoveNumber)
	return sb.String()
}

func (p *Position) castlingString() string {
	var sb strings.Builder
	for c := White; c <= Black; c++ {
		put := func(ch byte) {
			if c == Black {
				ch += 'a' - 'A'
			}
			sb.WriteByte(ch)
		}
		if file, ok := p.Castling[c].KingSide(); ok {
			if file == FileH {
				put('K')
			} else {
				put('A' + byte(file))
			}
		}
		if file, ok := p.Castling[c].QueenSide(); ok {
			if file == FileA {
				put('Q')
			} else {
				put('A' + byte(file))
			}
		}
	}
	if sb.Len() == 0 {
		return "-"
	}
	return sb.String()
}
