package surface

import (
	"context"
	"errors"
	"sync"

	apierrors "github.com/PentesterFlow/apisurface/internal/errors"
)

// Form is the consumer state a scan pre-fills.
type Form struct {
	Endpoint   string               `json:"endpoint"`
	HTTPMethod string               `json:"http_method"`
	APIType    string               `json:"api_type"`
	Endpoints  []DiscoveredEndpoint `json:"endpoints"`
}

// Prefiller applies scan results to a Form, discarding results of scans
// superseded by a newer one.
type Prefiller struct {
	scanner *Scanner

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	form    Form
	applied uint64
}

// NewPrefiller creates a prefiller backed by scanner.
func NewPrefiller(scanner *Scanner) *Prefiller {
	return &Prefiller{scanner: scanner}
}

// Scan cancels any scan this prefiller still has in flight, scans urlText
// and applies the result if no newer scan started meanwhile. It reports
// whether the form was updated. Invalid input is returned as an error for
// display; a superseded scan is not an error.
func (p *Prefiller) Scan(ctx context.Context, urlText string) (bool, error) {
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	result, err := p.scanner.Scan(scanCtx, urlText)
	if err != nil {
		if apierrors.IsInvalidURL(err) {
			return false, err
		}
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return false, nil
		}
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen || !p.scanner.IsCurrent(result.Token) {
		return false, nil
	}

	prefill := result.Prefill()
	p.form = Form{
		Endpoint:   prefill.Endpoint,
		HTTPMethod: prefill.HTTPMethod,
		APIType:    prefill.APIType,
		Endpoints:  append([]DiscoveredEndpoint(nil), result.Endpoints...),
	}
	p.applied = result.Token
	return true, nil
}

// Form returns a copy of the current form state.
func (p *Prefiller) Form() Form {
	p.mu.Lock()
	defer p.mu.Unlock()

	form := p.form
	form.Endpoints = append([]DiscoveredEndpoint(nil), p.form.Endpoints...)
	return form
}

// Applied returns the token of the last applied scan, or zero.
func (p *Prefiller) Applied() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applied
}
