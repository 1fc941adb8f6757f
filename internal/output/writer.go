// Package output renders scan results and scan history.
package output

import (
	"fmt"
	"io"

	"github.com/PentesterFlow/apisurface/internal/state"
	"github.com/PentesterFlow/apisurface/pkg/surface"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Writer defines the interface for output writers.
type Writer interface {
	// WriteResult writes one scan result
	WriteResult(result *surface.Result) error

	// WriteHistory writes stored scan records
	WriteHistory(records []*state.ScanRecord) error

	// Flush flushes any buffered output
	Flush() error

	// Close closes the writer
	Close() error
}

// Config holds output configuration.
type Config struct {
	Format string
	Pretty bool
	// Stream emits one JSON line per endpoint before the result.
	Stream bool
}

// NewWriter creates a new output writer.
func NewWriter(w io.Writer, config Config) (Writer, error) {
	switch config.Format {
	case "", FormatJSON:
		return NewJSONWriter(w, config.Pretty, config.Stream), nil
	case FormatText:
		return NewTextWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", config.Format)
	}
}
