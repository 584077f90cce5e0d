package input

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

// ErrNotRegular is the cause reported for paths that are not regular files,
// such as FIFOs and devices, whose reads could block indefinitely.
var ErrNotRegular = errors.New("not a regular file")

// Kind classifies a read failure so callers can render it without type switches.
type Kind int

const (
	KindUnknown Kind = iota
	KindMetadata
	KindNotFound
	KindPermission
	KindOutOfMemory
	KindIncompleteRead
	KindOpen
	KindSeek
	KindIO
	KindInvalidArgument
)

var kindNames = [...]string{
	KindUnknown:         "unknown",
	KindMetadata:        "metadata",
	KindNotFound:        "not-found",
	KindPermission:      "permission",
	KindOutOfMemory:     "out-of-memory",
	KindIncompleteRead:  "incomplete-read",
	KindOpen:            "open",
	KindSeek:            "seek",
	KindIO:              "io",
	KindInvalidArgument: "invalid-argument",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// KindOf returns the Kind of the first typed read error in err's chain.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// MetadataError is returned when a path cannot be stat'ed.
type MetadataError struct {
	Path  string
	Cause error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("cannot get file info for %s: %v", e.Path, e.Cause)
}

func (e *MetadataError) Unwrap() error { return e.Cause }
func (e *MetadataError) Kind() Kind    { return KindMetadata }

// NotFoundError is returned when the file disappeared between probe and read.
type NotFoundError struct {
	Path  string
	Cause error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s (check the file path; it may have been moved or deleted)", e.Path)
}

func (e *NotFoundError) Unwrap() error { return e.Cause }
func (e *NotFoundError) Kind() Kind    { return KindNotFound }

// PermissionError is returned when the file exists but cannot be read.
type PermissionError struct {
	Path  string
	Cause error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied reading %s: check the file permissions or run with elevated privileges", e.Path)
}

func (e *PermissionError) Unwrap() error { return e.Cause }
func (e *PermissionError) Kind() Kind    { return KindPermission }

// OutOfMemoryError is returned when the host cannot provide a buffer for the read.
type OutOfMemoryError struct {
	Path  string
	Size  int64
	Cause error
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("not enough memory to load %s (%s). Try: "+
		"1) close other applications to free memory; "+
		"2) restart the application; "+
		"3) use a smaller file; "+
		"4) open the file with a dedicated PDF tool",
		e.Path, FormatSize(e.Size))
}

func (e *OutOfMemoryError) Unwrap() error { return e.Cause }
func (e *OutOfMemoryError) Kind() Kind    { return KindOutOfMemory }

// IncompleteReadError is returned when the bytes read differ from the probed size,
// usually because the file was truncated or grew while being read.
type IncompleteReadError struct {
	Path     string
	Expected int64
	Actual   int64
}

func (e *IncompleteReadError) Error() string {
	return fmt.Sprintf("incomplete read of %s: expected %d bytes, got %d (the file may have changed during the read)",
		e.Path, e.Expected, e.Actual)
}

func (e *IncompleteReadError) Kind() Kind { return KindIncompleteRead }

// OpenError is returned when a chunked read cannot open its file.
type OpenError struct {
	Path  string
	Cause error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("cannot open %s: %v", e.Path, e.Cause)
}

func (e *OpenError) Unwrap() error { return e.Cause }
func (e *OpenError) Kind() Kind    { return KindOpen }

// SeekError is returned when a chunked read cannot position its file handle.
type SeekError struct {
	Path   string
	Offset int64
	Cause  error
}

func (e *SeekError) Error() string {
	return fmt.Sprintf("cannot seek %s to offset %d: %v", e.Path, e.Offset, e.Cause)
}

func (e *SeekError) Unwrap() error { return e.Cause }
func (e *SeekError) Kind() Kind    { return KindSeek }

// IOError covers every read failure without a more specific kind.
// Size is the number of bytes the failed read asked for.
type IOError struct {
	Path  string
	Size  int64
	Cause error
}

func (e *IOError) Error() string {
	msg := fmt.Sprintf("failed to read %s: %v", e.Path, e.Cause)
	if e.Size > ChunkedReadThreshold {
		msg += fmt.Sprintf(" (reading %s at once; large reads can fail for memory-related reasons, try a chunked read)",
			FormatSize(e.Size))
	}
	return msg
}

func (e *IOError) Unwrap() error { return e.Cause }
func (e *IOError) Kind() Kind    { return KindIO }

// InvalidArgumentError is returned for negative offsets and similar caller mistakes.
type InvalidArgumentError struct {
	Name  string
	Value int64
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s cannot be negative: %d", e.Name, e.Value)
}

func (e *InvalidArgumentError) Kind() Kind { return KindInvalidArgument }

// classify converts a raw I/O failure into the matching typed error.
func classify(path string, size int64, err error) error {
	switch {
	case errors.Is(err, unix.ENOMEM):
		return &OutOfMemoryError{Path: path, Size: size, Cause: err}
	case errors.Is(err, fs.ErrPermission):
		return &PermissionError{Path: path, Cause: err}
	case errors.Is(err, fs.ErrNotExist):
		return &NotFoundError{Path: path, Cause: err}
	default:
		return &IOError{Path: path, Size: size, Cause: err}
	}
}
