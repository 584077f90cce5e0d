package input

import (
	"io"

	"golang.org/x/sys/unix"
)

// DefaultChunkSize is used when ReadChunk is called with a zero chunk size.
const DefaultChunkSize = 1 << 20

// ReadChunk reads at most chunkSize bytes starting at offset.
// A zero chunkSize means DefaultChunkSize. The returned slice is shorter near
// EOF and empty at or past EOF; an empty slice is not an error.
// Each call opens its own handle and issues a single read.
func (r *FileReader) ReadChunk(path string, chunkSize int, offset int64) ([]byte, error) {
	if offset < 0 {
		return nil, &InvalidArgumentError{Name: "offset", Value: offset}
	}
	if chunkSize < 0 {
		return nil, &InvalidArgumentError{Name: "chunk size", Value: int64(chunkSize)}
	}
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}

	fd, err := openFile(path)
	if err != nil {
		return nil, &OpenError{Path: path, Cause: err}
	}
	defer unix.Close(fd)

	if offset > 0 {
		if _, err := unix.Seek(fd, offset, io.SeekStart); err != nil {
			return nil, &SeekError{Path: path, Offset: offset, Cause: err}
		}
	}

	buf, err := r.alloc(path, int64(chunkSize))
	if err != nil {
		return nil, err
	}

	n, err := readOnce(fd, buf)
	if err != nil {
		return nil, classify(path, int64(chunkSize), err)
	}
	return buf[:n], nil
}

// readOnce issues one read, repeating it only when interrupted before any transfer.
func readOnce(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}
