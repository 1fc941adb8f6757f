// Package discovery expands candidate paths, probes them and turns the
// successful responses into ranked API endpoints.
package discovery

// APIType labels the kind of API an endpoint serves.
type APIType string

// API types.
const (
	REST    APIType = "REST"
	GraphQL APIType = "GraphQL"
)

// MethodGET is the only method discovery probes with.
const MethodGET = "GET"

// Endpoint is a discovered API endpoint.
type Endpoint struct {
	Path        string  `json:"path" yaml:"path"`
	Method      string  `json:"method" yaml:"method"`
	APIType     APIType `json:"api_type" yaml:"api_type"`
	Description string  `json:"description" yaml:"description"`
}

// Key identifies an endpoint for display purposes.
func (e Endpoint) Key() string {
	return e.Method + " " + e.Path
}

// FallbackPaths seed discovery when the root page yields nothing.
var FallbackPaths = []string{"/api", "/api/cats", "/api/tags", "/cat", "/cat/gif", "/docs", "/swagger"}

// DetectedFromURL describes the endpoint synthesized from the input URL.
const DetectedFromURL = "Detected from URL"
