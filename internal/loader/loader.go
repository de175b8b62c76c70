// Package loader streams training batches from a packed record file. A
// single background goroutine owns the file: it refills a large in-memory
// buffer, shuffles it, decodes records into batches, and hands finished
// batches to the caller over a bounded channel. The stream is infinite; the
// reader rewinds at end of file, so one pass of the source never ends the
// stream.
package loader

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessdata/internal/sample"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("loader is closed")

const (
	// DefaultBufferRecords is the in-memory shuffle window (64 MiB).
	DefaultBufferRecords = 1 << 21

	// DefaultHandoffDepth is the number of batches in flight between the
	// worker and the caller.
	DefaultHandoffDepth = 4
)

// Config configures a Loader.
type Config struct {
	Path          string
	BatchSize     int
	BufferRecords int    // default DefaultBufferRecords
	HandoffDepth  int    // default DefaultHandoffDepth
	Seed          uint64 // 0 seeds from the clock
	Logger        zerolog.Logger
}

// Loader produces an endless stream of training batches.
type Loader struct {
	cfg  Config
	log  zerolog.Logger
	file *os.File

	ready chan *Batch   // worker -> caller, filled batches
	free  chan *Batch   // caller -> worker, recycled batches
	done  chan struct{} // closed by Close or by the failing worker

	closeOnce sync.Once
	workerErr error // set before done is closed on worker failure
}

// Open validates the source file and starts the background worker. The file
// must be non-empty and an exact multiple of the record size.
func Open(cfg Config) (*Loader, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size %d must be positive", cfg.BatchSize)
	}
	if cfg.BufferRecords == 0 {
		cfg.BufferRecords = DefaultBufferRecords
	}
	if cfg.HandoffDepth == 0 {
		cfg.HandoffDepth = DefaultHandoffDepth
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	total, err := sample.RecordCount(info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("source %s: %w", cfg.Path, err)
	}
	if total == 0 {
		f.Close()
		return nil, fmt.Errorf("source %s is empty", cfg.Path)
	}

	l := &Loader{
		cfg:   cfg,
		log:   cfg.Logger,
		file:  f,
		ready: make(chan *Batch, cfg.HandoffDepth),
		free:  make(chan *Batch, cfg.HandoffDepth+1),
		done:  make(chan struct{}),
	}
	for i := 0; i < cfg.HandoffDepth+1; i++ {
		l.free <- NewBatch(cfg.BatchSize)
	}

	l.log.Info().
		Str("path", cfg.Path).
		Int64("records", total).
		Int("batch_size", cfg.BatchSize).
		Int("buffer_records", cfg.BufferRecords).
		Msg("loader started")
	go l.run()
	return l, nil
}

// Next returns the next filled batch. The batch stays valid until it is
// passed back through Recycle. Next blocks while the worker refills and
// shuffles its buffer.
func (l *Loader) Next() (*Batch, error) {
	// done wins over a buffered batch so Next fails promptly after Close.
	select {
	case <-l.done:
		return nil, l.closedErr()
	default:
	}
	select {
	case b := <-l.ready:
		return b, nil
	case <-l.done:
		return nil, l.closedErr()
	}
}

func (l *Loader) closedErr() error {
	if l.workerErr != nil {
		return l.workerErr
	}
	return ErrClosed
}

// Recycle returns a consumed batch to the worker. Recycling after Close is
// a no-op.
func (l *Loader) Recycle(b *Batch) {
	select {
	case l.free <- b:
	case <-l.done:
	}
}

// Close stops the worker and releases the source file. Safe to call more
// than once.
func (l *Loader) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}

func (l *Loader) fail(err error) {
	l.closeOnce.Do(func() {
		l.workerErr = err
		close(l.done)
	})
	l.log.Error().Err(err).Msg("loader worker failed")
}

// run owns the file and the shuffle buffer. It loops forever: refill,
// shuffle, decode into batches, hand off.
func (l *Loader) run() {
	defer l.file.Close()

	rng := rand.New(rand.NewPCG(l.cfg.Seed, l.cfg.Seed^0xD1B54A32D192ED03))
	buf := make([]byte, l.cfg.BufferRecords*sample.RecordSize)

	var batch *Batch
	skipped := int64(0)
	for {
		n, err := l.refill(buf)
		if err != nil {
			l.fail(fmt.Errorf("refill: %w", err))
			return
		}
		shuffleRecords(rng, buf[:n*sample.RecordSize])

		for i := 0; i < n; i++ {
			rec := (*sample.PackedSample)(buf[i*sample.RecordSize : (i+1)*sample.RecordSize])
			s, err := rec.Unpack()
			if err != nil {
				// Corrupt records are dropped, not fatal; the stream is
				// too large to stop over one bad entry.
				skipped++
				l.log.Warn().Err(err).Int64("skipped", skipped).Msg("skipping bad record")
				continue
			}

			if batch == nil {
				select {
				case batch = <-l.free:
					batch.Clear()
				case <-l.done:
					return
				}
			}
			batch.Add(&s)
			if batch.Len() == batch.Cap() {
				select {
				case l.ready <- batch:
					batch = nil
				case <-l.done:
					return
				}
			}
		}
	}
}

// refill fills buf with whole records, rewinding to the start of the file
// whenever the end is reached. Returns the number of records read.
func (l *Loader) refill(buf []byte) (int, error) {
	filled := 0
	for filled < len(buf) {
		n, err := l.file.Read(buf[filled:])
		filled += n
		switch {
		case err == io.EOF:
			if _, err := l.file.Seek(0, io.SeekStart); err != nil {
				return 0, err
			}
		case err != nil:
			return 0, err
		}
	}
	return filled / sample.RecordSize, nil
}

func shuffleRecords(rng *rand.Rand, buf []byte) {
	var tmp [sample.RecordSize]byte
	rng.Shuffle(len(buf)/sample.RecordSize, func(i, j int) {
		a := buf[i*sample.RecordSize : (i+1)*sample.RecordSize]
		b := buf[j*sample.RecordSize : (j+1)*sample.RecordSize]
		copy(tmp[:], a)
		copy(a, b)
		copy(b, tmp[:])
	})
}
