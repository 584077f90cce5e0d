package output

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/dl/pdfload/internal/input"
)

// TextFormatter formats results as one human-readable line each.
type TextFormatter struct {
	styles   Styles
	checksum bool
}

// NewTextFormatter creates a TextFormatter. With checksum set, whole reads
// print the SHA-256 of the bytes read.
func NewTextFormatter(styles Styles, checksum bool) *TextFormatter {
	return &TextFormatter{styles: styles, checksum: checksum}
}

func (f *TextFormatter) Format(buf []byte, result Result) []byte {
	buf = append(buf, f.styles.Path.Render(result.Path)...)
	buf = append(buf, ": "...)

	if result.Err != nil {
		kind := input.KindOf(result.Err)
		buf = append(buf, f.styles.Error.Render("error["+kind.String()+"]")...)
		buf = append(buf, ' ')
		buf = append(buf, result.Err.Error()...)
		buf = append(buf, '\n')
		return buf
	}

	switch result.Op {
	case OpProbe:
		buf = f.appendSize(buf, result.Info)
	case OpWhole:
		buf = f.appendSize(buf, result.Info)
		buf = append(buf, ", "...)
		buf = append(buf, f.styles.Detail.Render(strconv.Itoa(len(result.Data))+" bytes read")...)
		if f.checksum {
			sum := sha256.Sum256(result.Data)
			buf = append(buf, ", sha256 "...)
			buf = append(buf, hex.EncodeToString(sum[:])...)
		}
	case OpChunk:
		detail := "offset " + strconv.FormatInt(result.Offset, 10) + ", " + strconv.Itoa(len(result.Data)) + " bytes"
		if len(result.Data) == 0 {
			detail += " (EOF)"
		}
		buf = append(buf, f.styles.Detail.Render(detail)...)
	}
	buf = append(buf, '\n')
	return buf
}

func (f *TextFormatter) appendSize(buf []byte, info input.FileInfo) []byte {
	buf = append(buf, f.styles.Size.Render(info.SizeLabel)...)
	buf = append(buf, " ("...)
	buf = strconv.AppendInt(buf, info.Size, 10)
	buf = append(buf, " bytes)"...)
	return buf
}

var _ Formatter = (*TextFormatter)(nil)
