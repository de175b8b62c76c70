package chess

// Attack lookup used by validation and the extract tool's quiet filter.
// Plain ray walks, no magic bitboards: nothing here is on a search path.

var (
	knightAttacks [64]uint64
	kingAttacks   [64]uint64
)

func init() {
	knightDeltas := [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingDeltas := [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	for sq := 0; sq < 64; sq++ {
		f, r := sq%8, sq/8
		for _, d := range knightDeltas {
			if tf, tr := f+d[0], r+d[1]; tf >= 0 && tf < 8 && tr >= 0 && tr < 8 {
				knightAttacks[sq] |= 1 << (tr*8 + tf)
			}
		}
		for _, d := range kingDeltas {
			if tf, tr := f+d[0], r+d[1]; tf >= 0 && tf < 8 && tr >= 0 && tr < 8 {
				kingAttacks[sq] |= 1 << (tr*8 + tf)
			}
		}
	}
}

// pawnAttacks returns the squares a pawn of the given color on sq attacks.
func pawnAttacks(c Color, sq Square) uint64 {
	var attacks uint64
	f, r := int(sq.File()), int(sq.Rank())
	dr := 1
	if c == Black {
		dr = -1
	}
	for _, df := range [2]int{-1, 1} {
		if tf, tr := f+df, r+dr; tf >= 0 && tf < 8 && tr >= 0 && tr < 8 {
			attacks |= 1 << (tr*8 + tf)
		}
	}
	return attacks
}

// slidingAttacks walks each direction until a blocker in occ is hit.
func slidingAttacks(sq Square, occ uint64, deltas [4][2]int) uint64 {
	var attacks uint64
	f, r := int(sq.File()), int(sq.Rank())
	for _, d := range deltas {
		tf, tr := f+d[0], r+d[1]
		for tf >= 0 && tf < 8 && tr >= 0 && tr < 8 {
			bit := uint64(1) << (tr*8 + tf)
			attacks |= bit
			if occ&bit != 0 {
				break
			}
			tf += d[0]
			tr += d[1]
		}
	}
	return attacks
}

func bishopAttacks(sq Square, occ uint64) uint64 {
	return slidingAttacks(sq, occ, [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}})
}

func rookAttacks(sq Square, occ uint64) uint64 {
	return slidingAttacks(sq, occ, [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}})
}

// Attacked reports whether sq is attacked by any piece of color by.
func (p *Position) Attacked(sq Square, by Color) bool {
	them := p.Colors[by]
	occ := p.Occupied()
	if pawnAttacks(by.Other(), sq)&p.Pieces[Pawn]&them != 0 {
		return true
	}
	if knightAttacks[sq]&p.Pieces[Knight]&them != 0 {
		return true
	}
	if kingAttacks[sq]&p.Pieces[King]&them != 0 {
		return true
	}
	if bishopAttacks(sq, occ)&(p.Pieces[Bishop]|p.Pieces[Queen])&them != 0 {
		return true
	}
	if rookAttacks(sq, occ)&(p.Pieces[Rook]|p.Pieces[Queen])&them != 0 {
		return true
	}
	return false
}
