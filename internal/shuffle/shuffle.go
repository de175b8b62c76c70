// Package shuffle produces an approximately uniform random permutation of a
// record file that may be much larger than memory. The source is cut into
// bounded buckets that are shuffled in memory and spilled to compressed
// temporary files, then drained by weighted rejection sampling so that every
// interleaving of the buckets is equally likely at the record level.
package shuffle

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/chessdata/internal/sample"
)

// DefaultBucketCap is the maximum number of records per bucket (64 MiB of
// uncompressed records).
const DefaultBucketCap = 1 << 21

// Config configures a shuffle engine.
type Config struct {
	TempDir   string // bucket directory, default os.TempDir()
	BucketCap int    // records per bucket, default DefaultBucketCap
	Seed      uint64 // 0 seeds from the clock
	Logger    zerolog.Logger
}

// Engine runs shuffle passes. Not safe for concurrent use.
type Engine struct {
	cfg Config
	log zerolog.Logger
	rng *rand.Rand
}

func New(cfg Config) *Engine {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.BucketCap == 0 {
		cfg.BucketCap = DefaultBucketCap
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Engine{
		cfg: cfg,
		log: cfg.Logger,
		rng: rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
	}
}

// bucket is one spilled slice of the source, already shuffled internally.
type bucket struct {
	file  *os.File
	count int64
}

// Shuffle randomizes the record order of input. With an empty output the
// file is shuffled in place. The result is staged in a temporary file and
// renamed over the destination, so a failed pass leaves no partial output.
func (e *Engine) Shuffle(input, output string) error {
	in, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	total, err := sample.RecordCount(info.Size())
	if err != nil {
		return fmt.Errorf("input %s: %w", input, err)
	}

	dest := output
	if dest == "" {
		dest = input
	}
	e.log.Info().
		Str("input", input).
		Str("output", dest).
		Int64("records", total).
		Msg("shuffle started")

	buckets, err := e.partition(in, total)
	defer func() {
		for _, b := range buckets {
			name := b.file.Name()
			b.file.Close()
			os.Remove(name)
		}
	}()
	if err != nil {
		return err
	}

	if err := e.interleave(buckets, total, dest); err != nil {
		return err
	}
	e.log.Info().Int64("records", total).Msg("shuffle complete")
	return nil
}

// partition reads the source in bucket-sized windows, shuffles each window
// in memory, and spills it to a compressed temporary file.
func (e *Engine) partition(in *os.File, total int64) ([]bucket, error) {
	var buckets []bucket
	cap64 := int64(e.cfg.BucketCap)
	buf := make([]byte, 0, cap64*sample.RecordSize)

	for remaining := total; remaining > 0; {
		count := min(remaining, cap64)
		buf = buf[:count*sample.RecordSize]
		if _, err := io.ReadFull(in, buf); err != nil {
			return buckets, fmt.Errorf("read window: %w", err)
		}
		e.shuffleRecords(buf)

		f, err := os.CreateTemp(e.cfg.TempDir, "chessdata-bucket-*")
		if err != nil {
			return buckets, fmt.Errorf("create bucket: %w", err)
		}
		buckets = append(buckets, bucket{file: f, count: count})
		if err := writeCompressed(f, buf); err != nil {
			return buckets, fmt.Errorf("write bucket %d: %w", len(buckets)-1, err)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return buckets, err
		}

		remaining -= count
		e.log.Debug().
			Int("bucket", len(buckets)-1).
			Int64("records", count).
			Msg("bucket spilled")
	}
	return buckets, nil
}

// shuffleRecords runs a Fisher-Yates shuffle over record-sized strides.
func (e *Engine) shuffleRecords(buf []byte) {
	var tmp [sample.RecordSize]byte
	e.rng.Shuffle(len(buf)/sample.RecordSize, func(i, j int) {
		a := buf[i*sample.RecordSize : (i+1)*sample.RecordSize]
		b := buf[j*sample.RecordSize : (j+1)*sample.RecordSize]
		copy(tmp[:], a)
		copy(a, b)
		copy(b, tmp[:])
	})
}

func writeCompressed(w io.Writer, buf []byte) error {
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.SpeedFastest),
		zstd.WithEncoderConcurrency(1),
		zstd.WithWindowSize(1<<20))
	if err != nil {
		return err
	}
	if _, err := enc.Write(buf); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// interleave drains the buckets into dest. Drawing a record index uniformly
// from the original total and mapping it through the original bucket sizes
// keeps the draw distribution over still-live buckets proportional to their
// size; draws landing on an exhausted bucket are simply retried. Sampling
// and writing run on separate goroutines so disk reads overlap the output.
func (e *Engine) interleave(buckets []bucket, total int64, dest string) error {
	if total == 0 {
		return writeEmpty(dest)
	}

	readers := make([]*bufio.Reader, len(buckets))
	for i, b := range buckets {
		dec, err := zstd.NewReader(b.file,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(true))
		if err != nil {
			return fmt.Errorf("open bucket %d: %w", i, err)
		}
		defer dec.Close()
		readers[i] = bufio.NewReaderSize(dec, 1<<16)
	}

	remaining := make([]int64, len(buckets))
	for i, b := range buckets {
		remaining[i] = b.count
	}
	cap64 := int64(e.cfg.BucketCap)
	// Records before this index map to a full bucket; the tail maps to the
	// final, possibly short, bucket.
	lastStart := cap64 * int64(len(buckets)-1)

	var g errgroup.Group
	records := make(chan sample.PackedSample, 1<<13)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(records)
		live := len(buckets)
		for live > 0 {
			draw := e.rng.Int64N(total)
			idx := int(draw / cap64)
			if draw >= lastStart {
				idx = len(buckets) - 1
			}
			if remaining[idx] == 0 {
				continue
			}

			var rec sample.PackedSample
			if _, err := io.ReadFull(readers[idx], rec[:]); err != nil {
				return fmt.Errorf("read bucket %d: %w", idx, err)
			}
			remaining[idx]--
			if remaining[idx] == 0 {
				live--
			}

			select {
			case records <- rec:
			case <-done:
				return nil
			}
		}
		return nil
	})

	g.Go(func() error {
		defer close(done)
		return e.writeOutput(records, total, dest)
	})

	return g.Wait()
}

func (e *Engine) writeOutput(records <-chan sample.PackedSample, total int64, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".shuffle-*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		tmp.Close()
		if !committed {
			os.Remove(tmpName)
		}
	}()

	w := sample.NewWriter(tmp)
	lastLog := time.Now()
	for rec := range records {
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		if time.Since(lastLog) > 10*time.Second {
			e.log.Info().
				Int64("written", w.Written()).
				Int64("total", total).
				Msg("shuffle progress")
			lastLog = time.Now()
		}
	}
	if w.Written() != total {
		// The sampler stopped early; its error is the interesting one, but
		// the short file must never be renamed into place.
		return fmt.Errorf("short output: %d of %d records", w.Written(), total)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return err
	}
	committed = true
	return nil
}

// writeEmpty handles the zero-record edge: the destination still gets a
// fresh empty file through the same staging path.
func writeEmpty(dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".shuffle-*")
	if err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
