package input

import (
	"github.com/dustin/go-humanize"
)

const (
	// ChunkedReadThreshold is the size above which a chunked read is recommended.
	ChunkedReadThreshold int64 = 50 << 20
	// VeryLargeThreshold is the size above which a file is reported as very large.
	VeryLargeThreshold int64 = 1 << 30
)

// Thresholds holds the size limits that trigger advisories.
type Thresholds struct {
	ChunkedRead int64
	VeryLarge   int64
}

// DefaultThresholds returns the standard advisory limits.
func DefaultThresholds() Thresholds {
	return Thresholds{ChunkedRead: ChunkedReadThreshold, VeryLarge: VeryLargeThreshold}
}

func (t Thresholds) withDefaults() Thresholds {
	if t.ChunkedRead <= 0 {
		t.ChunkedRead = ChunkedReadThreshold
	}
	if t.VeryLarge <= 0 {
		t.VeryLarge = VeryLargeThreshold
	}
	return t
}

// AdvisoryKind identifies an advisory.
type AdvisoryKind int

const (
	AdvisePreferChunked AdvisoryKind = iota
	AdviseMemoryPressure
	AdviseVeryLarge
)

// Advisory is a diagnostic about a pending read. It never changes the read's outcome.
type Advisory struct {
	Kind    AdvisoryKind
	Message string
}

// Advise lists the advisories for a file of size bytes given available memory.
func Advise(size int64, available uint64, t Thresholds) []Advisory {
	t = t.withDefaults()
	var out []Advisory
	if size > t.ChunkedRead {
		out = append(out, Advisory{
			Kind:    AdvisePreferChunked,
			Message: "large file, a chunked read is recommended",
		})
	}
	if size > 0 && uint64(size) > available/2 {
		out = append(out, Advisory{
			Kind:    AdviseMemoryPressure,
			Message: "file exceeds half of the estimated available memory, the read may cause high memory pressure",
		})
	}
	if size > t.VeryLarge {
		out = append(out, Advisory{
			Kind:    AdviseVeryLarge,
			Message: "very large file, loading may take a long time",
		})
	}
	return out
}

func (r *FileReader) advise(info FileInfo) {
	available := r.estimator.AvailableMemory()
	r.logger.Info("reading file", "path", info.Path, "size", info.SizeLabel)
	for _, a := range Advise(info.Size, available, r.thresholds) {
		r.logger.Warn(a.Message,
			"path", info.Path,
			"size", humanize.IBytes(uint64(info.Size)),
			"available", humanize.IBytes(available))
	}
}
