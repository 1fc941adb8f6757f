// Package mock provides function-field test doubles for discovery interfaces.
package mock

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	apihttp "github.com/PentesterFlow/apisurface/internal/http"
)

var _ apihttp.Getter = (*Getter)(nil)

// Getter is a mock implementation of http.Getter that counts calls and
// records every request it receives.
type Getter struct {
	GetFn func(ctx context.Context, req *apihttp.Request) (*apihttp.Response, error)

	calls    atomic.Int64
	mu       sync.Mutex
	requests []apihttp.Request
}

// Get records req and delegates to GetFn.
func (g *Getter) Get(ctx context.Context, req *apihttp.Request) (*apihttp.Response, error) {
	g.calls.Add(1)

	g.mu.Lock()
	g.requests = append(g.requests, *req)
	g.mu.Unlock()

	return g.GetFn(ctx, req)
}

// Calls returns how many times Get was invoked.
func (g *Getter) Calls() int {
	return int(g.calls.Load())
}

// Requests returns a copy of the recorded requests in arrival order.
func (g *Getter) Requests() []apihttp.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]apihttp.Request(nil), g.requests...)
}

// URLs returns the recorded request URLs in arrival order.
func (g *Getter) URLs() []string {
	reqs := g.Requests()
	urls := make([]string, len(reqs))
	for i, r := range reqs {
		urls[i] = r.URL
	}
	return urls
}

// Respond builds a buffered response.
func Respond(url string, status int, contentType, body string) *apihttp.Response {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &apihttp.Response{
		URL:        url,
		StatusCode: status,
		Header:     header,
		Body:       []byte(body),
	}
}
