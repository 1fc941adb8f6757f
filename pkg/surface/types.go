// Package surface discovers the API endpoints behind a user-supplied URL.
//
// A Scanner fetches the root page and well-known API descriptors, expands
// the paths it finds, probes them and returns the successful ones ranked by
// how likely they are to be the API the user meant.
package surface

import (
	"time"

	"github.com/PentesterFlow/apisurface/internal/discovery"
	"github.com/PentesterFlow/apisurface/internal/metrics"
	"github.com/PentesterFlow/apisurface/internal/state"
)

// DiscoveredEndpoint is an API endpoint found by a scan.
type DiscoveredEndpoint = discovery.Endpoint

// APIType labels the kind of API an endpoint serves.
type APIType = discovery.APIType

// API types.
const (
	REST    = discovery.REST
	GraphQL = discovery.GraphQL
)

// Result is the outcome of one scan.
type Result struct {
	// Token orders scans started by the same Scanner. Only the result
	// carrying the latest token may be applied.
	Token       uint64               `json:"token"`
	ID          string               `json:"id"`
	Input       string               `json:"input"`
	Origin      string               `json:"origin"`
	InitialPath string               `json:"initial_path"`
	Endpoints   []DiscoveredEndpoint `json:"endpoints"`
	Selected    *DiscoveredEndpoint  `json:"selected,omitempty"`
	Candidates  int                  `json:"candidates"`
	Stats       metrics.Snapshot     `json:"stats"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt time.Time            `json:"completed_at"`
}

// Duration returns how long the scan took.
func (r *Result) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Prefill returns the form values derived from the selected endpoint.
func (r *Result) Prefill() Prefill {
	if r.Selected == nil {
		return Prefill{HTTPMethod: discovery.MethodGET, APIType: string(REST)}
	}
	return Prefill{
		Endpoint:   r.Selected.Path,
		HTTPMethod: r.Selected.Method,
		APIType:    string(r.Selected.APIType),
	}
}

// Record converts the result into a history record.
func (r *Result) Record() *state.ScanRecord {
	rec := &state.ScanRecord{
		ID:          r.ID,
		Token:       r.Token,
		Input:       r.Input,
		Origin:      r.Origin,
		InitialPath: r.InitialPath,
		Endpoints:   make([]state.EndpointRecord, 0, len(r.Endpoints)),
		Candidates:  r.Candidates,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
	for _, ep := range r.Endpoints {
		rec.Endpoints = append(rec.Endpoints, endpointRecord(ep))
	}
	if r.Selected != nil {
		sel := endpointRecord(*r.Selected)
		rec.Selected = &sel
	}
	return rec
}

func endpointRecord(ep DiscoveredEndpoint) state.EndpointRecord {
	return state.EndpointRecord{
		Path:        ep.Path,
		Method:      ep.Method,
		APIType:     string(ep.APIType),
		Description: ep.Description,
	}
}

// Prefill holds the values a consumer form is populated with.
type Prefill struct {
	Endpoint   string `json:"endpoint"`
	HTTPMethod string `json:"http_method"`
	APIType    string `json:"api_type"`
}
