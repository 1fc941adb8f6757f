package output

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/PentesterFlow/apisurface/internal/state"
	"github.com/PentesterFlow/apisurface/pkg/surface"
)

// TextWriter writes aligned, human-readable tables.
type TextWriter struct {
	mu     sync.Mutex
	writer io.Writer
	closed bool
}

// NewTextWriter creates a new text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{writer: w}
}

func (t *TextWriter) table() *tabwriter.Writer {
	return tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
}

// WriteResult writes a scan summary followed by the endpoint table.
func (t *TextWriter) WriteResult(result *surface.Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	w := t.table()
	fmt.Fprintf(w, "Target:\t%s\n", result.Origin)
	fmt.Fprintf(w, "Initial path:\t%s\n", result.InitialPath)
	fmt.Fprintf(w, "Scan:\t%s (token %d, %s)\n", result.ID, result.Token, result.Duration().Round(time.Millisecond))
	if result.Selected != nil {
		fmt.Fprintf(w, "Selected:\t%s %s [%s]\n", result.Selected.Method, result.Selected.Path, result.Selected.APIType)
	}
	fmt.Fprintf(w, "Probes:\t%d issued, %d succeeded, %d deduped, %d suppressed, %d unexpected\n",
		result.Stats.ProbesIssued, result.Stats.ProbesSucceeded, result.Stats.ProbesDeduped,
		result.Stats.Suppressed, result.Stats.Unexpected)
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(t.writer)

	w = t.table()
	fmt.Fprintln(w, "METHOD\tPATH\tTYPE\tDESCRIPTION")
	for _, ep := range result.Endpoints {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ep.Method, ep.Path, ep.APIType, ep.Description)
	}
	return w.Flush()
}

// WriteHistory writes one row per stored scan.
func (t *TextWriter) WriteHistory(records []*state.ScanRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(t.writer, "No scans recorded.")
		return err
	}

	w := t.table()
	fmt.Fprintln(w, "STARTED\tORIGIN\tINPUT\tENDPOINTS\tSELECTED\tDURATION")
	for _, r := range records {
		selected := "-"
		if r.Selected != nil {
			selected = r.Selected.Method + " " + r.Selected.Path
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Origin,
			r.Input,
			len(r.Endpoints),
			selected,
			r.Duration().Round(time.Millisecond),
		)
	}
	return w.Flush()
}

// Flush is a no-op; tables are flushed as they are written.
func (t *TextWriter) Flush() error {
	return nil
}

// Close closes the writer.
func (t *TextWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true

	if closer, ok := t.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
