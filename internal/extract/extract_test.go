package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessdata/internal/chess"
	"github.com/freeeve/chessdata/internal/sample"
)

const testPGN = `[Event "test"]
[Result "1-0"]
[Termination "Normal"]

1. e4 e5 1-0

[Event "test"]
[Result "1/2-1/2"]

1. e4 d5 2. exd5 Qxd5 1/2-1/2

[Event "unfinished, skipped"]
[Result "*"]

1. d4 *

[Event "time forfeit, skipped"]
[Result "0-1"]
[Termination "Time forfeit"]

1. e4 e5 0-1
`

func readAll(t *testing.T, path string) []sample.Sample {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var out []sample.Sample
	r := sample.NewReader(f)
	for {
		rec, err := r.Next()
		if err != nil {
			break
		}
		s, err := rec.Unpack()
		if err != nil {
			t.Fatalf("record %d: %v", len(out), err)
		}
		out = append(out, s)
	}
	return out
}

func runExtract(t *testing.T, cfg Config) {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	ex, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := ex.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestExtractQuietPositions(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "games.pgn")
	out := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(in, []byte(testPGN), 0644); err != nil {
		t.Fatal(err)
	}

	runExtract(t, Config{Inputs: []string{in}, Output: out})
	samples := readAll(t, out)

	// Game one contributes the positions before e4 and e5; game two the
	// positions before e4 and d5, its captures filtered out. The starred
	// and time-forfeit games contribute nothing.
	if len(samples) != 4 {
		t.Fatalf("extracted %d records, want 4", len(samples))
	}
	wantOutcomes := []sample.Outcome{
		sample.OutcomeWhiteWins, sample.OutcomeWhiteWins,
		sample.OutcomeDraw, sample.OutcomeDraw,
	}
	for i, s := range samples {
		if s.Outcome != wantOutcomes[i] {
			t.Errorf("record %d outcome = %v, want %v", i, s.Outcome, wantOutcomes[i])
		}
		if s.HasEval {
			t.Errorf("record %d has an eval", i)
		}
	}

	start, err := chess.ParseFEN(chess.StartFEN)
	if err != nil {
		t.Fatal(err)
	}
	if samples[0].Pos != start {
		t.Errorf("record 0 is not the starting position:\n%v", samples[0].Pos.FEN())
	}
	if samples[1].Pos.SideToMove != chess.Black {
		t.Errorf("record 1 side to move = %v", samples[1].Pos.SideToMove)
	}
}

// An en-passant capture lands on an empty square, so the quiet filter has
// to recognize it through the en-passant target rather than the occupancy.
func TestExtractSkipsEnPassantCapture(t *testing.T) {
	const epPGN = `[Event "test"]
[Result "1-0"]

1. e4 Nf6 2. e5 d5 3. exd6 1-0
`
	dir := t.TempDir()
	in := filepath.Join(dir, "games.pgn")
	out := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(in, []byte(epPGN), 0644); err != nil {
		t.Fatal(err)
	}

	runExtract(t, Config{Inputs: []string{in}, Output: out})
	samples := readAll(t, out)

	// The positions before e4, Nf6, e5, and d5 are quiet; the one before
	// exd6 is not.
	if len(samples) != 5 {
		t.Fatalf("extracted %d records, want 5", len(samples))
	}
	d6 := chess.SquareAt(chess.FileD, chess.Rank6)
	for i, s := range samples {
		if s.Pos.EnPassant == d6 {
			t.Errorf("record %d is the position before the en-passant capture", i)
		}
	}
}

func TestExtractAppend(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "games.pgn")
	out := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(in, []byte(testPGN), 0644); err != nil {
		t.Fatal(err)
	}

	runExtract(t, Config{Inputs: []string{in}, Output: out})
	runExtract(t, Config{Inputs: []string{in}, Output: out, Append: true})
	if got := readAll(t, out); len(got) != 8 {
		t.Errorf("after append: %d records, want 8", len(got))
	}

	// Without append the second run truncates.
	runExtract(t, Config{Inputs: []string{in}, Output: out})
	if got := readAll(t, out); len(got) != 4 {
		t.Errorf("after truncate: %d records, want 4", len(got))
	}
}

func TestExtractConfigValidation(t *testing.T) {
	if _, err := New(Config{Output: "out.bin"}); err == nil {
		t.Error("New without inputs: expected error")
	}
	if _, err := New(Config{Inputs: []string{"in.pgn"}}); err == nil {
		t.Error("New without output: expected error")
	}
}
