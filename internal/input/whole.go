package input

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// ReadWhole reads the entire file at path into one buffer.
// The result is exactly as long as the probed size; anything else is an error.
func (r *FileReader) ReadWhole(path string) ([]byte, error) {
	info, err := r.sizeOf(path)
	if err != nil {
		return nil, err
	}
	r.advise(info)

	fd, err := openFile(path)
	if err != nil {
		return nil, classify(path, info.Size, err)
	}
	defer unix.Close(fd)

	buf, err := r.alloc(path, info.Size)
	if err != nil {
		return nil, err
	}

	n, err := preadFull(fd, buf)
	if err != nil {
		return nil, classify(path, info.Size, err)
	}
	if int64(n) != info.Size {
		return nil, &IncompleteReadError{Path: path, Expected: info.Size, Actual: int64(n)}
	}

	// One extra byte at the probed end tells us the file grew after the probe.
	var extra [1]byte
	if m, err := pread(fd, extra[:], info.Size); err == nil && m > 0 {
		actual := info.Size + int64(m)
		var stat unix.Stat_t
		if unix.Fstat(fd, &stat) == nil && stat.Size > actual {
			actual = stat.Size
		}
		return nil, &IncompleteReadError{Path: path, Expected: info.Size, Actual: actual}
	}

	r.logger.Debug("file read", "path", path, "bytes", n, "human", humanize.IBytes(uint64(n)))
	return buf, nil
}

// preadFull fills buf from offset 0, stopping early only at EOF.
func preadFull(fd int, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := pread(fd, buf[total:], int64(total))
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		total += n
	}
	return total, nil
}

func pread(fd int, buf []byte, off int64) (int, error) {
	for {
		n, err := unix.Pread(fd, buf, off)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

// allocate returns a zeroed buffer of size bytes. Sizes the runtime refuses
// surface as OutOfMemoryError; true heap exhaustion still aborts the process.
func allocate(path string, size int64) (buf []byte, err error) {
	if size < 0 || uint64(size) > math.MaxInt {
		return nil, &OutOfMemoryError{Path: path, Size: size, Cause: unix.ENOMEM}
	}
	defer func() {
		if p := recover(); p != nil {
			buf = nil
			err = &OutOfMemoryError{Path: path, Size: size, Cause: fmt.Errorf("allocation failed: %v", p)}
		}
	}()
	return make([]byte, size), nil
}
