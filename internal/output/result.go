package output

import (
	"github.com/google/uuid"

	"github.com/dl/pdfload/internal/input"
)

// Op identifies the read operation that produced a Result.
type Op int

const (
	OpProbe Op = iota
	OpWhole
	OpChunk
)

func (o Op) String() string {
	switch o {
	case OpProbe:
		return "probe"
	case OpWhole:
		return "read"
	case OpChunk:
		return "chunk"
	}
	return "unknown"
}

// Result is the outcome of one read job.
type Result struct {
	JobID  uuid.UUID
	SeqNum int
	Op     Op
	Path   string
	// Info is set by probes and whole reads.
	Info input.FileInfo
	// Offset is the starting offset of a chunk read.
	Offset int64
	Data   []byte
	Err    error
}

// OK reports whether the job succeeded.
func (r *Result) OK() bool {
	return r.Err == nil
}
