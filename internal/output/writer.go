package output

import (
	"os"

	"golang.org/x/sys/unix"
)

// Writer writes to a file descriptor using writev for batching.
type Writer struct {
	fd int
}

// NewWriter creates a Writer that writes to stdout.
func NewWriter() *Writer {
	return &Writer{fd: int(os.Stdout.Fd())}
}

// NewFdWriter creates a Writer for an already-open descriptor. The caller keeps ownership of fd.
func NewFdWriter(fd int) *Writer {
	return &Writer{fd: fd}
}

// Write writes the given bytes using writev for scatter-gather I/O.
func (w *Writer) Write(data []byte) error {
	return w.WriteVec(data)
}

// WriteVec writes all parts in order, resubmitting whatever a short writev left behind.
func (w *Writer) WriteVec(parts ...[]byte) error {
	iovs := make([][]byte, 0, len(parts))
	for _, p := range parts {
		if len(p) > 0 {
			iovs = append(iovs, p)
		}
	}

	for len(iovs) > 0 {
		n, err := unix.Writev(w.fd, iovs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		for n > 0 && len(iovs) > 0 {
			if n >= len(iovs[0]) {
				n -= len(iovs[0])
				iovs = iovs[1:]
				continue
			}
			iovs[0] = iovs[0][n:]
			n = 0
		}
	}
	return nil
}

// OrderedWriter receives results from a channel and writes them in sequence order.
// This ensures output is deterministic even with parallel workers.
type OrderedWriter struct {
	writer    *Writer
	formatter Formatter
	buf       []byte
}

// NewOrderedWriter creates an OrderedWriter.
func NewOrderedWriter(w *Writer, f Formatter) *OrderedWriter {
	return &OrderedWriter{
		writer:    w,
		formatter: f,
	}
}

// WriteOrdered consumes results from the channel, buffering out-of-order results
// and writing them in sequence-number order. onResult, if set, sees every result
// in the order it is written.
func (ow *OrderedWriter) WriteOrdered(results <-chan Result, onResult func(Result)) error {
	nextSeq := 1
	pending := make(map[int]Result)
	var firstErr error

	emit := func(r Result) {
		if onResult != nil {
			onResult(r)
		}
		ow.buf = ow.formatter.Format(ow.buf[:0], r)
		if err := ow.writer.Write(ow.buf); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for r := range results {
		if r.SeqNum != nextSeq {
			pending[r.SeqNum] = r
			continue
		}
		emit(r)
		nextSeq++
		// Flush any consecutive pending results
		for {
			p, ok := pending[nextSeq]
			if !ok {
				break
			}
			emit(p)
			delete(pending, nextSeq)
			nextSeq++
		}
	}
	return firstErr
}
