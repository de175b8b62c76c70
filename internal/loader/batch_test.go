package loader

import (
	"math"
	"testing"

	"github.com/freeeve/chessdata/internal/chess"
	"github.com/freeeve/chessdata/internal/sample"
)

func mustSample(t *testing.T, fen string, outcome sample.Outcome) *sample.Sample {
	t.Helper()
	pos, err := chess.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return &sample.Sample{Pos: pos, Outcome: outcome}
}

func TestBatchAddCoords(t *testing.T) {
	b := NewBatch(4)
	b.Add(mustSample(t, "8/8/8/4k3/8/8/4P3/4K3 w - - 0 1", sample.OutcomeDraw))

	if b.Len() != 1 || b.TotalFeatures() != 3 {
		t.Fatalf("Len = %d, TotalFeatures = %d", b.Len(), b.TotalFeatures())
	}
	// Ascending square order: Ke1, Pe2, ke5.
	wantStm := []int32{0, 5*64 + 4, 0, 12, 0, (6+5)*64 + 36}
	wantNstm := []int32{0, (6+5)*64 + 60, 0, 6*64 + 52, 0, 5*64 + 28}
	checkCoords(t, "stm", b.StmCoords(), wantStm)
	checkCoords(t, "nstm", b.NstmCoords(), wantNstm)

	// The second position lands on row 1 with its own coordinates appended.
	b.Add(mustSample(t, "8/8/8/4k3/8/8/4P3/4K3 b - - 0 1", sample.OutcomeDraw))
	if b.Len() != 2 || b.TotalFeatures() != 6 {
		t.Fatalf("Len = %d, TotalFeatures = %d", b.Len(), b.TotalFeatures())
	}
	if got := b.StmCoords()[6]; got != 1 {
		t.Errorf("second position row = %d, want 1", got)
	}
	// With black to move the perspectives swap.
	checkCoords(t, "swapped stm", b.StmCoords()[6:], wantNstm)
	checkCoords(t, "swapped nstm", b.NstmCoords()[6:], wantStm)
}

func checkCoords(t *testing.T, name string, got, want []int32) {
	t.Helper()
	if len(got) < len(want) {
		t.Fatalf("%s: %d values, want at least %d", name, len(got), len(want))
	}
	for i := range want {
		w := want[i]
		if i%2 == 0 {
			// Row index: compare only the feature column below, rows are
			// checked by the caller where they matter.
			continue
		}
		if got[i] != w {
			t.Errorf("%s[%d] = %d, want %d", name, i, got[i], w)
		}
	}
}

func TestBatchTargets(t *testing.T) {
	const kings = "8/8/8/4k3/8/8/8/4K3"
	cases := []struct {
		fen         string
		outcome     sample.Outcome
		eval        int16
		hasEval     bool
		wantEval    float32
		wantOutcome float32
	}{
		{kings + " w - - 0 1", sample.OutcomeWhiteWins, 150, true, 150, 1},
		{kings + " b - - 0 1", sample.OutcomeWhiteWins, -150, true, -150, 0},
		{kings + " w - - 0 1", sample.OutcomeDraw, 0, true, 0, 0.5},
		{kings + " w - - 0 1", sample.OutcomeWhiteWins, 0, false, float32(math.Inf(1)), 1},
		{kings + " b - - 0 1", sample.OutcomeWhiteWins, 0, false, float32(math.Inf(-1)), 0},
		{kings + " w - - 0 1", sample.OutcomeBlackWins, 0, false, float32(math.Inf(-1)), 0},
		{kings + " b - - 0 1", sample.OutcomeBlackWins, 0, false, float32(math.Inf(1)), 1},
		{kings + " w - - 0 1", sample.OutcomeDraw, 0, false, 0, 0.5},
	}

	b := NewBatch(len(cases))
	for _, tc := range cases {
		s := mustSample(t, tc.fen, tc.outcome)
		s.Eval = tc.eval
		s.HasEval = tc.hasEval
		b.Add(s)
	}

	for i, tc := range cases {
		if got := b.Evals()[i]; got != tc.wantEval {
			t.Errorf("case %d: eval target = %v, want %v", i, got, tc.wantEval)
		}
		if got := b.Outcomes()[i]; got != tc.wantOutcome {
			t.Errorf("case %d: outcome target = %v, want %v", i, got, tc.wantOutcome)
		}
	}
}

func TestBatchClearKeepsStorage(t *testing.T) {
	b := NewBatch(2)
	b.Add(mustSample(t, chess.StartFEN, sample.OutcomeDraw))
	b.Add(mustSample(t, chess.StartFEN, sample.OutcomeDraw))
	if b.Len() != 2 {
		t.Fatalf("Len = %d", b.Len())
	}

	b.Clear()
	if b.Len() != 0 || b.TotalFeatures() != 0 || len(b.Evals()) != 0 {
		t.Errorf("Clear left data behind")
	}
	b.Add(mustSample(t, chess.StartFEN, sample.OutcomeDraw))
	if b.Len() != 1 || b.TotalFeatures() != 32 {
		t.Errorf("reuse after Clear: Len = %d, features = %d", b.Len(), b.TotalFeatures())
	}
}

func TestBatchAddFullPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Add past capacity did not panic")
		}
	}()
	b := NewBatch(1)
	b.Add(mustSample(t, chess.StartFEN, sample.OutcomeDraw))
	b.Add(mustSample(t, chess.StartFEN, sample.OutcomeDraw))
}
