package loader

import (
	"math"
	"math/bits"

	"github.com/freeeve/chessdata/internal/chess"
	"github.com/freeeve/chessdata/internal/sample"
)

// Batch accumulates decoded samples in the flat layout a training step
// consumes directly: sparse feature coordinates per perspective plus dense
// target vectors. Batches are recycled between the loader and its caller,
// so all storage is allocated once at construction.
type Batch struct {
	capacity int
	n        int

	// Feature coordinates are (row, column) pairs flattened into one slice,
	// where row is the position index within the batch and column the
	// feature index. Both perspectives always carry the same pair count.
	stmCoords  []int32
	nstmCoords []int32

	evals    []float32
	outcomes []float32
}

// NewBatch allocates a batch for up to capacity positions.
func NewBatch(capacity int) *Batch {
	return &Batch{
		capacity:   capacity,
		stmCoords:  make([]int32, 0, 2*MaxActiveFeatures*capacity),
		nstmCoords: make([]int32, 0, 2*MaxActiveFeatures*capacity),
		evals:      make([]float32, 0, capacity),
		outcomes:   make([]float32, 0, capacity),
	}
}

// Clear resets the batch for reuse without releasing storage.
func (b *Batch) Clear() {
	b.n = 0
	b.stmCoords = b.stmCoords[:0]
	b.nstmCoords = b.nstmCoords[:0]
	b.evals = b.evals[:0]
	b.outcomes = b.outcomes[:0]
}

// Add appends one sample. It panics when the batch is full or the position
// has more pieces than the feature scheme admits; callers gate on Len and
// the codec already bounds the piece count.
func (b *Batch) Add(s *sample.Sample) {
	if b.n >= b.capacity {
		panic("batch is full")
	}

	stm := s.Pos.SideToMove
	row := int32(b.n)
	features := 0
	for rest := s.Pos.Occupied(); rest != 0; rest &= rest - 1 {
		sq := chess.Square(bits.TrailingZeros64(rest))
		piece, color, _ := s.Pos.PieceAt(sq)
		if features >= MaxActiveFeatures {
			panic("position exceeds the active feature bound")
		}
		b.stmCoords = append(b.stmCoords, row, FeatureIndex(stm, color, piece, sq))
		b.nstmCoords = append(b.nstmCoords, row, FeatureIndex(stm.Other(), color, piece, sq))
		features++
	}

	b.evals = append(b.evals, evalTarget(s))
	b.outcomes = append(b.outcomes, outcomeTarget(s))
	b.n++
}

// evalTarget is the stored eval from the side to move's view, or an infinity
// toward the winner when the record carries no eval. An eval-less draw maps
// to zero.
func evalTarget(s *sample.Sample) float32 {
	if s.HasEval {
		return float32(s.Eval)
	}
	winner, ok := s.Outcome.Winner()
	if !ok {
		return 0
	}
	if winner == s.Pos.SideToMove {
		return float32(math.Inf(1))
	}
	return float32(math.Inf(-1))
}

// outcomeTarget is the game result from the side to move's view: 1 win,
// 0.5 draw, 0 loss.
func outcomeTarget(s *sample.Sample) float32 {
	winner, ok := s.Outcome.Winner()
	if !ok {
		return 0.5
	}
	if winner == s.Pos.SideToMove {
		return 1
	}
	return 0
}

// Len returns the number of positions in the batch.
func (b *Batch) Len() int {
	return b.n
}

// Cap returns the batch capacity in positions.
func (b *Batch) Cap() int {
	return b.capacity
}

// TotalFeatures returns the number of active features across the batch,
// identical for both perspectives.
func (b *Batch) TotalFeatures() int {
	return len(b.stmCoords) / 2
}

// StmCoords returns the (row, feature) pairs for the side to move.
func (b *Batch) StmCoords() []int32 {
	return b.stmCoords
}

// NstmCoords returns the (row, feature) pairs for the side not to move.
func (b *Batch) NstmCoords() []int32 {
	return b.nstmCoords
}

// Evals returns the eval target per position.
func (b *Batch) Evals() []float32 {
	return b.evals
}

// Outcomes returns the outcome target per position.
func (b *Batch) Outcomes() []float32 {
	return b.outcomes
}
