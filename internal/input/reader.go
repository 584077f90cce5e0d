package input

import (
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// FileInfo describes a probed file. It is a snapshot taken at probe time.
type FileInfo struct {
	Path      string
	Size      int64
	SizeLabel string
}

// Reader is the read surface used by the scheduler and the CLI.
type Reader interface {
	Probe(path string) (FileInfo, error)
	ReadWhole(path string) ([]byte, error)
	ReadChunk(path string, chunkSize int, offset int64) ([]byte, error)
}

// Options configures a FileReader. The zero value is usable.
type Options struct {
	// Logger receives advisories and read diagnostics. Nil discards them.
	Logger *log.Logger
	// Estimator supplies the available-memory figure used for advisories.
	// Nil means FixedEstimator(DefaultAvailableMemory).
	Estimator MemoryEstimator
	// Thresholds overrides the advisory limits. Zero fields take the defaults.
	Thresholds Thresholds
}

// FileReader implements Reader on the local filesystem. It holds no per-call
// state, so one value can serve concurrent calls.
type FileReader struct {
	logger     *log.Logger
	estimator  MemoryEstimator
	thresholds Thresholds

	// alloc and sizeOf are swapped in tests to simulate allocation failure
	// and files that change size before they are read.
	alloc  func(path string, size int64) ([]byte, error)
	sizeOf func(path string) (FileInfo, error)
}

// NewFileReader creates a FileReader from opts.
func NewFileReader(opts Options) *FileReader {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	estimator := opts.Estimator
	if estimator == nil {
		estimator = FixedEstimator(DefaultAvailableMemory)
	}
	r := &FileReader{
		logger:     logger,
		estimator:  estimator,
		thresholds: opts.Thresholds.withDefaults(),
		alloc:      allocate,
	}
	r.sizeOf = r.Probe
	return r
}

var _ Reader = (*FileReader)(nil)

// openFile opens a regular file with O_NOATIME, falling back without it.
// O_NONBLOCK keeps the open itself from waiting on a FIFO writer; anything
// that is not a regular file is closed again and rejected with ErrNotRegular.
func openFile(path string) (int, error) {
	const flags = unix.O_RDONLY | unix.O_CLOEXEC | unix.O_NONBLOCK
	fd, err := unix.Open(path, flags|unix.O_NOATIME, 0)
	if err != nil {
		fd, err = unix.Open(path, flags, 0)
		if err != nil {
			return -1, err
		}
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if stat.Mode&unix.S_IFMT != unix.S_IFREG {
		unix.Close(fd)
		return -1, ErrNotRegular
	}
	return fd, nil
}
