package picker

import "fmt"

// Picker yields a path chosen by the user. ok is false when the user cancelled.
type Picker interface {
	Pick() (path string, ok bool, err error)
}

// FilterError is returned when a picked path does not pass the filter.
type FilterError struct {
	Path   string
	Filter Filter
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("%s does not match %s", e.Path, e.Filter)
}

// Static is a Picker whose choice was made up front, e.g. on the command line.
// An empty Path means the user made no choice.
type Static struct {
	Path   string
	Filter Filter
}

func (s Static) Pick() (string, bool, error) {
	if s.Path == "" {
		return "", false, nil
	}
	if !s.Filter.Match(s.Path) {
		return "", false, &FilterError{Path: s.Path, Filter: s.Filter}
	}
	return s.Path, true, nil
}
