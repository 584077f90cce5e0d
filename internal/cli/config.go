package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// ColorMode controls when colored output is used.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // color when stdout is a terminal
	ColorAlways                  // always use color
	ColorNever                   // never use color
)

// ParseColorMode parses "auto", "always" or "never".
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "auto", "":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	}
	return ColorAuto, fmt.Errorf("invalid color mode %q (want auto, always or never)", s)
}

// Config holds all configuration for a pdfload invocation.
type Config struct {
	Paths      []string
	JSONOutput bool
	Color      ColorMode
	Workers    int
	LogLevel   string
	// AnyFile lifts the .pdf extension filter.
	AnyFile bool

	// SystemMemory queries the host for available memory instead of using
	// the fixed estimate. AvailableMemory, when non-zero, overrides both.
	SystemMemory    bool
	AvailableMemory uint64

	// Raw writes document bytes instead of a summary line.
	Raw bool

	// chunk / cat
	ChunkSize int
	Offset    int64

	// range
	Start    int64
	Length   int64
	Prefetch int64

	// find
	NoIgnore bool
	Hidden   bool

	// watch
	Debounce time.Duration
}

// Validate checks that the config is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("invalid worker count: %d", c.Workers)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("invalid chunk size: %d", c.ChunkSize)
	}
	if c.Offset < 0 {
		return fmt.Errorf("invalid offset: %d", c.Offset)
	}
	if c.Start < 0 {
		return fmt.Errorf("invalid range start: %d", c.Start)
	}
	if c.Length < 0 {
		return fmt.Errorf("invalid range length: %d", c.Length)
	}
	if c.Prefetch < 0 {
		return fmt.Errorf("invalid prefetch count: %d", c.Prefetch)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("invalid debounce: %v", c.Debounce)
	}
	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
		}
	}
	return nil
}
