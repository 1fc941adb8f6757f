// Package state provides per-scan probe deduplication and scan history storage.
package state

import (
	"time"
)

// EndpointRecord is a stored discovered endpoint.
type EndpointRecord struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	APIType     string `json:"api_type"`
	Description string `json:"description"`
}

// ScanRecord is the stored outcome of one completed scan.
type ScanRecord struct {
	ID          string           `json:"id"`
	Token       uint64           `json:"token"`
	Input       string           `json:"input"`
	Origin      string           `json:"origin"`
	InitialPath string           `json:"initial_path"`
	Selected    *EndpointRecord  `json:"selected,omitempty"`
	Endpoints   []EndpointRecord `json:"endpoints"`
	Candidates  int              `json:"candidates"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Duration returns how long the scan took.
func (r *ScanRecord) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Store persists scan records keyed by origin.
type Store interface {
	// Save appends a record to its origin's history.
	Save(record *ScanRecord) error
	// List returns an origin's records, oldest first.
	List(origin string) ([]*ScanRecord, error)
	// Origins returns every origin with at least one record, sorted.
	Origins() ([]string, error)
	Close() error
}
