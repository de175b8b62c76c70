package shuffle

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessdata/internal/sample"
)

// writeSequence writes n records whose first eight bytes carry their
// original index. The engine treats records as opaque blobs, so no valid
// chess payload is needed here.
func writeSequence(t *testing.T, path string, n int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := sample.NewWriter(f)
	for i := 0; i < n; i++ {
		var rec sample.PackedSample
		binary.LittleEndian.PutUint64(rec[:8], uint64(i))
		if err := w.Write(rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
}

// readIndices returns the embedded index of every record in file order.
func readIndices(t *testing.T, path string) []int64 {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var out []int64
	r := sample.NewReader(f)
	for {
		rec, err := r.Next()
		if err != nil {
			break
		}
		out = append(out, int64(binary.LittleEndian.Uint64(rec[:8])))
	}
	return out
}

func newTestEngine(t *testing.T, bucketCap int) *Engine {
	t.Helper()
	return New(Config{
		TempDir:   t.TempDir(),
		BucketCap: bucketCap,
		Seed:      7,
		Logger:    zerolog.Nop(),
	})
}

func TestShuffleIsPermutation(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	out := filepath.Join(dir, "out.bin")
	const n = 1000

	writeSequence(t, in, n)
	// Small buckets force several spill files and a real interleave.
	if err := newTestEngine(t, 64).Shuffle(in, out); err != nil {
		t.Fatal(err)
	}

	got := readIndices(t, out)
	if len(got) != n {
		t.Fatalf("output has %d records, want %d", len(got), n)
	}
	seen := make([]bool, n)
	for _, idx := range got {
		if idx < 0 || idx >= n || seen[idx] {
			t.Fatalf("output is not a permutation: index %d", idx)
		}
		seen[idx] = true
	}

	// The input must be untouched.
	orig := readIndices(t, in)
	for i, idx := range orig {
		if idx != int64(i) {
			t.Fatalf("input modified at record %d", i)
		}
	}
}

func TestShuffleInPlace(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	const n = 300

	writeSequence(t, in, n)
	if err := newTestEngine(t, 128).Shuffle(in, ""); err != nil {
		t.Fatal(err)
	}

	got := readIndices(t, in)
	if len(got) != n {
		t.Fatalf("file has %d records, want %d", len(got), n)
	}
	seen := make([]bool, n)
	moved := 0
	for i, idx := range got {
		if idx < 0 || idx >= n || seen[idx] {
			t.Fatalf("output is not a permutation: index %d", idx)
		}
		seen[idx] = true
		if idx != int64(i) {
			moved++
		}
	}
	if moved == 0 {
		t.Error("in-place shuffle left every record where it was")
	}
}

func TestShuffleEmptyFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	out := filepath.Join(dir, "out.bin")
	writeSequence(t, in, 0)

	if err := newTestEngine(t, 64).Shuffle(in, out); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("output size = %d, want 0", info.Size())
	}
}

func TestShuffleRejectsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	if err := os.WriteFile(in, make([]byte, sample.RecordSize+5), 0644); err != nil {
		t.Fatal(err)
	}
	err := newTestEngine(t, 64).Shuffle(in, filepath.Join(dir, "out.bin"))
	if err == nil || !strings.Contains(err.Error(), "record size") {
		t.Errorf("expected record size error, got %v", err)
	}
}

func TestShuffleCleansUpBuckets(t *testing.T) {
	dir := t.TempDir()
	tmpDir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	writeSequence(t, in, 500)

	eng := New(Config{TempDir: tmpDir, BucketCap: 64, Seed: 3, Logger: zerolog.Nop()})
	if err := eng.Shuffle(in, filepath.Join(dir, "out.bin")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("%d bucket files left behind", len(entries))
	}
}

// Spearman rank correlation between original and shuffled order. A uniform
// shuffle of 10k distinct records concentrates |rho| well below 0.05; a
// bucket-local shuffle that never interleaves stays strongly positive.
func TestShuffleDecorrelatesOrder(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	out := filepath.Join(dir, "out.bin")
	const n = 10000

	writeSequence(t, in, n)
	if err := newTestEngine(t, 1024).Shuffle(in, out); err != nil {
		t.Fatal(err)
	}

	got := readIndices(t, out)
	if len(got) != n {
		t.Fatalf("output has %d records, want %d", len(got), n)
	}
	var sum float64
	for i, idx := range got {
		d := float64(idx - int64(i))
		sum += d * d
	}
	rho := 1 - 6*sum/(float64(n)*(float64(n)*float64(n)-1))
	if math.Abs(rho) > 0.05 {
		t.Errorf("rank correlation = %f, want |rho| < 0.05", rho)
	}
}
