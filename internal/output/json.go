package output

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/dl/pdfload/internal/input"
)

// JSONFormatter formats results as JSON Lines (one JSON object per result).
type JSONFormatter struct{}

// NewJSONFormatter creates a JSONFormatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// jsonResult is the JSON serialization format for a result.
type jsonResult struct {
	Type      string `json:"type"`
	Path      string `json:"path"`
	Size      *int64 `json:"size,omitempty"`
	SizeLabel string `json:"size_label,omitempty"`
	Offset    *int64 `json:"offset,omitempty"`
	Length    *int   `json:"length,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

func (f *JSONFormatter) Format(buf []byte, result Result) []byte {
	jr := jsonResult{
		Type: result.Op.String(),
		Path: result.Path,
	}

	switch {
	case result.Err != nil:
		jr.Type = "error"
		jr.Error = result.Err.Error()
		jr.ErrorKind = input.KindOf(result.Err).String()
	case result.Op == OpChunk:
		offset, length := result.Offset, len(result.Data)
		jr.Offset = &offset
		jr.Length = &length
	default:
		size := result.Info.Size
		jr.Size = &size
		jr.SizeLabel = result.Info.SizeLabel
		if result.Op == OpWhole {
			length := len(result.Data)
			jr.Length = &length
			sum := sha256.Sum256(result.Data)
			jr.SHA256 = hex.EncodeToString(sum[:])
		}
	}

	data, _ := json.Marshal(jr)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	return buf
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)
