package sample

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Record files are flat, headerless sequences of PackedSamples. A size that
// is not an exact multiple of the record width means the file is corrupt or
// is not a record file at all.

// RecordCount converts a file size in bytes to a record count.
func RecordCount(size int64) (int64, error) {
	if size%RecordSize != 0 {
		return 0, fmt.Errorf("file size %d is not a multiple of the %d-byte record size", size, RecordSize)
	}
	return size / RecordSize, nil
}

// FileRecordCount stats path and returns its record count.
func FileRecordCount(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return RecordCount(info.Size())
}

// Reader reads packed records sequentially.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 1<<16)}
}

// Next returns the next record. io.EOF marks a clean end of file; a partial
// trailing record surfaces as io.ErrUnexpectedEOF.
func (r *Reader) Next() (PackedSample, error) {
	var rec PackedSample
	_, err := io.ReadFull(r.r, rec[:])
	return rec, err
}

// Writer appends packed records through a buffer. Callers must Flush.
type Writer struct {
	w *bufio.Writer
	n int64
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 1<<16)}
}

func (w *Writer) Write(rec PackedSample) error {
	_, err := w.w.Write(rec[:])
	if err == nil {
		w.n++
	}
	return err
}

// Written returns the number of records written so far.
func (w *Writer) Written() int64 {
	return w.n
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}
