package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/PentesterFlow/apisurface/internal/state"
	"github.com/PentesterFlow/apisurface/pkg/surface"
)

// StreamEvent represents a streaming output event.
type StreamEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// JSONWriter writes output in JSON format.
type JSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
	stream bool
	closed bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer, pretty, stream bool) *JSONWriter {
	return &JSONWriter{
		writer: w,
		pretty: pretty,
		stream: stream,
	}
}

// WriteResult writes a scan result. In stream mode every endpoint is
// written as its own event first.
func (j *JSONWriter) WriteResult(result *surface.Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	if !j.stream {
		return j.write(result)
	}

	for i := range result.Endpoints {
		if err := j.write(StreamEvent{Type: "endpoint", Data: &result.Endpoints[i]}); err != nil {
			return err
		}
	}
	return j.write(StreamEvent{Type: "result", Data: result})
}

// WriteHistory writes stored scan records as one JSON array.
func (j *JSONWriter) WriteHistory(records []*state.ScanRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	if records == nil {
		records = []*state.ScanRecord{}
	}
	return j.write(records)
}

// write marshals v followed by a newline.
func (j *JSONWriter) write(v interface{}) error {
	var data []byte
	var err error

	if j.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return err
	}

	_, err = j.writer.Write(data)
	if err != nil {
		return err
	}

	// Add newline
	_, err = j.writer.Write([]byte("\n"))
	return err
}

// Flush flushes the writer.
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if flusher, ok := j.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the writer.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true

	if closer, ok := j.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
