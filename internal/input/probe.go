package input

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FormatSize renders a byte count in binary megabytes with two decimals, e.g. "12.50 MB".
func FormatSize(size int64) string {
	return fmt.Sprintf("%.2f MB", float64(size)/1024/1024)
}

// Probe stats path (following symlinks) and returns its size without reading it.
// Only regular files have a document size; anything else is a MetadataError.
func (r *FileReader) Probe(path string) (FileInfo, error) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return FileInfo{}, &MetadataError{Path: path, Cause: err}
	}
	switch stat.Mode & unix.S_IFMT {
	case unix.S_IFREG:
	case unix.S_IFDIR:
		return FileInfo{}, &MetadataError{Path: path, Cause: unix.EISDIR}
	default:
		return FileInfo{}, &MetadataError{Path: path, Cause: ErrNotRegular}
	}
	return FileInfo{
		Path:      path,
		Size:      stat.Size,
		SizeLabel: FormatSize(stat.Size),
	}, nil
}
