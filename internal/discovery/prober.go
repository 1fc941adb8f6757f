package discovery

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PentesterFlow/apisurface/internal/errors"
	apihttp "github.com/PentesterFlow/apisurface/internal/http"
	"github.com/PentesterFlow/apisurface/internal/logger"
	"github.com/PentesterFlow/apisurface/internal/metrics"
	"github.com/PentesterFlow/apisurface/internal/state"
)

// Probe defaults.
const (
	DefaultProbeTimeout     = 3 * time.Second
	DefaultProbeConcurrency = 16
	DefaultAccept           = "application/json, */*"
	JSONAccept              = "application/json"
)

// Probe is one planned GET request.
type Probe struct {
	// Path is the request path including any query.
	Path string
	URL  string
	// Headers are the probe-specific headers. They take precedence over
	// the default Accept header.
	Headers map[string]string
	Key     string
}

// Hit is a probe that returned a 2xx response.
type Hit struct {
	Probe    Probe
	Response *apihttp.Response
}

// ProbeKey identifies a probe by URL and extra headers. Header maps are
// encoded with sorted keys so equal maps give equal keys.
func ProbeKey(url string, headers map[string]string) string {
	if len(headers) == 0 {
		return url + "_{}"
	}
	b, err := json.Marshal(headers)
	if err != nil {
		return url + "_{}"
	}
	return url + "_" + string(b)
}

func newProbe(origin, path string, headers map[string]string) Probe {
	u := origin + path
	return Probe{Path: path, URL: u, Headers: headers, Key: ProbeKey(u, headers)}
}

// PlanProbes returns the probes for paths in path order. A path yields a
// plain probe, an Accept: application/json probe for API-looking paths,
// and query variants for cat-style paths without a query.
func PlanProbes(origin string, paths []string) []Probe {
	probes := make([]Probe, 0, len(paths)*2)

	for _, p := range paths {
		probes = append(probes, newProbe(origin, p, nil))

		if strings.Contains(p, "/api/") || strings.Contains(p, "/cat") || strings.Contains(p, "/tags") {
			probes = append(probes, newProbe(origin, p, map[string]string{"Accept": JSONAccept}))
		}

		if strings.Contains(p, "?") {
			continue
		}
		if strings.Contains(p, "/cat") {
			probes = append(probes, newProbe(origin, p+"?json=true", nil))
		}
		if strings.Contains(p, "/api/cats") || strings.Contains(p, "/cats") {
			probes = append(probes,
				newProbe(origin, p+"?limit=1", nil),
				newProbe(origin, p+"?limit=10", nil),
			)
		}
	}

	return probes
}

// ProberConfig configures a Prober.
type ProberConfig struct {
	// Concurrency caps in-flight probes. Zero means unbounded.
	Concurrency int
	Timeout     time.Duration
	Logger      *logger.Logger
	Metrics     *metrics.Collector
}

// DefaultProberConfig returns the default prober configuration.
func DefaultProberConfig() ProberConfig {
	return ProberConfig{
		Concurrency: DefaultProbeConcurrency,
		Timeout:     DefaultProbeTimeout,
	}
}

// Prober issues planned probes against a target.
type Prober struct {
	getter      apihttp.Getter
	concurrency int
	timeout     time.Duration
	log         *logger.Logger
	metrics     *metrics.Collector
}

// NewProber creates a prober.
func NewProber(getter apihttp.Getter, cfg ProberConfig) *Prober {
	if cfg.Concurrency < 0 {
		cfg.Concurrency = DefaultProbeConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	return &Prober{
		getter:      getter,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		log:         cfg.Logger.WithComponent("prober"),
		metrics:     cfg.Metrics,
	}
}

// Run plans probes for paths, drops duplicates and issues the rest
// concurrently. Hits are returned in plan order; failures are dropped.
func (p *Prober) Run(ctx context.Context, origin string, paths []string) []Hit {
	planned := PlanProbes(origin, paths)
	p.metrics.RecordPlanned(len(planned))

	// Dedup before launching so identical probes never race.
	dedup := state.NewDeduplicator(len(planned))
	launch := make([]Probe, 0, len(planned))
	for _, pr := range planned {
		if dedup.Seen(pr.Key) {
			p.metrics.RecordDeduped()
			continue
		}
		launch = append(launch, pr)
	}
	p.log.WithField("unique", dedup.Count()).Debug("Probes deduplicated")

	responses := make([]*apihttp.Response, len(launch))

	var g errgroup.Group
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for i, pr := range launch {
		i, pr := i, pr
		g.Go(func() error {
			responses[i] = p.probe(ctx, pr)
			return nil
		})
	}
	_ = g.Wait()

	var hits []Hit
	for i, resp := range responses {
		if resp != nil {
			hits = append(hits, Hit{Probe: launch[i], Response: resp})
		}
	}
	return hits
}

func (p *Prober) probe(ctx context.Context, pr Probe) *apihttp.Response {
	if ctx.Err() != nil {
		p.metrics.RecordSkipped()
		return nil
	}

	headers := map[string]string{"Accept": DefaultAccept}
	for k, v := range pr.Headers {
		headers[k] = v
	}

	p.metrics.RecordIssued()
	resp, err := p.getter.Get(ctx, &apihttp.Request{
		URL:     pr.URL,
		Headers: headers,
		Timeout: p.timeout,
	})
	if err != nil {
		p.recordFailure(err, pr.URL)
		return nil
	}

	p.metrics.RecordStatusCode(resp.StatusCode)
	p.metrics.RecordResponseTime(resp.Duration)
	p.metrics.RecordBytes(int64(len(resp.Body)))
	p.log.ProbeEvent(pr.URL, pr.Key, resp.StatusCode, resp.Duration)

	if !resp.OK() {
		return nil
	}
	p.metrics.RecordSuccess()
	return resp
}

func (p *Prober) recordFailure(err error, url string) {
	errType := errors.GetErrorType(err).String()
	if errors.IsSuppressed(err) {
		p.metrics.RecordSuppressed()
		p.log.FailureEvent(err, url, errors.KindSuppressed.String(), errType)
		return
	}
	p.metrics.RecordUnexpected()
	p.log.FailureEvent(err, url, errors.KindUnexpected.String(), errType)
}
