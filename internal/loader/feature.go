package loader

import "github.com/freeeve/chessdata/internal/chess"

// The network input is a 768-way one-hot scheme: for each perspective, every
// (ownership, piece kind, square) triple gets its own input index, with the
// board flipped vertically so both perspectives see their own pieces moving
// up the board.
const (
	SquareCount  = 64
	FeatureCount = 2 * chess.PieceCount * SquareCount

	// MaxActiveFeatures bounds active inputs per position, one per piece.
	MaxActiveFeatures = 32
)

// FeatureIndex maps a piece on a square to its input index from the given
// perspective. Ownership comes first (0 own, 1 enemy), then piece kind, then
// the perspective-relative square.
func FeatureIndex(perspective, color chess.Color, piece chess.Piece, sq chess.Square) int32 {
	ownership := int32(0)
	if color != perspective {
		ownership = 1
	}
	if perspective == chess.Black {
		sq = sq.FlipVertical()
	}
	return (ownership*chess.PieceCount+int32(piece))*SquareCount + int32(sq)
}
