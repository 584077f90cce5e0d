package picker

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Filter restricts picked paths to a set of extensions, like a file dialog's type filter.
type Filter struct {
	Name       string
	Extensions []string // without the leading dot
}

// PDFFilter accepts PDF documents.
var PDFFilter = Filter{Name: "PDF Files", Extensions: []string{"pdf"}}

// Match reports whether path has one of the filter's extensions, ignoring case.
// A filter without extensions accepts every path.
func (f Filter) Match(path string) bool {
	if len(f.Extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	for _, want := range f.Extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

func (f Filter) String() string {
	patterns := make([]string, len(f.Extensions))
	for i, ext := range f.Extensions {
		patterns[i] = "*." + ext
	}
	return f.Name + " (" + strings.Join(patterns, ", ") + ")"
}

var pdfMagic = []byte("%PDF-")

// IsPDF checks for the %PDF- header in the first 1KB. Readers tolerate junk
// before the header, so the search is not anchored at offset 0.
func IsPDF(data []byte) bool {
	limit := min(len(data), 1024)
	return bytes.Index(data[:limit], pdfMagic) >= 0
}
