package surface

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/PentesterFlow/apisurface/internal/descriptor"
	"github.com/PentesterFlow/apisurface/internal/discovery"
	apihttp "github.com/PentesterFlow/apisurface/internal/http"
	"github.com/PentesterFlow/apisurface/internal/logger"
	"github.com/PentesterFlow/apisurface/internal/metrics"
	"github.com/PentesterFlow/apisurface/internal/parser"
	"github.com/PentesterFlow/apisurface/internal/ratelimit"
	"github.com/PentesterFlow/apisurface/internal/scope"
	"github.com/PentesterFlow/apisurface/internal/state"
)

// RootAccept is the Accept header sent with the root page request.
const RootAccept = "text/html, application/json, */*"

// Scanner runs API surface discovery scans.
type Scanner struct {
	config    *Config
	getter    apihttp.Getter
	client    *apihttp.Client
	limiter   *ratelimit.Limiter
	rules     []parser.Rule
	extractor *parser.Extractor
	checker   *scope.Checker
	logger    *logger.Logger
	metrics   *metrics.Collector
	store     state.Store
	ownsStore bool

	token atomic.Uint64
}

// New creates a new scanner with the given options.
func New(opts ...Option) (*Scanner, error) {
	s := &Scanner{config: DefaultConfig()}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	// Validate config
	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if s.logger == nil {
		lcfg, err := s.config.LoggerConfig()
		if err != nil {
			return nil, err
		}
		lcfg.Component = "scanner"
		s.logger = logger.New(lcfg)
	}

	checker, err := scope.NewChecker(scope.Rules{
		IncludePatterns: s.config.IncludePatterns,
		ExcludePatterns: s.config.ExcludePatterns,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid scope pattern: %w", err)
	}
	s.checker = checker
	s.extractor = parser.NewExtractor(s.rules...)

	if s.getter == nil {
		s.limiter = ratelimit.NewLimiter(s.config.RequestsPerSecond, s.config.Burst)

		ccfg := apihttp.DefaultClientConfig()
		ccfg.Timeout = s.config.RootTimeout
		ccfg.MaxBodySize = s.config.MaxBodySize
		ccfg.UserAgent = s.config.UserAgent
		ccfg.Headers = s.config.Headers
		ccfg.SkipTLSVerify = s.config.SkipTLSVerify
		ccfg.Limiter = s.limiter
		if s.config.Concurrency > ccfg.MaxConnsPerHost {
			ccfg.MaxConnsPerHost = s.config.Concurrency
			ccfg.MaxIdleConnsPerHost = s.config.Concurrency
		}

		s.client = apihttp.NewClient(ccfg)
		s.getter = s.client
	}

	if s.store == nil && s.config.HistoryPath != "" {
		store, err := state.Open(s.config.HistoryPath)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}

	return s, nil
}

// Config returns a copy of the scanner configuration.
func (s *Scanner) Config() *Config {
	return s.config.Clone()
}

// Latest returns the token of the most recently started scan.
func (s *Scanner) Latest() uint64 {
	return s.token.Load()
}

// IsCurrent reports whether token belongs to the most recently started
// scan. Results of any other scan are stale.
func (s *Scanner) IsCurrent(token uint64) bool {
	return token != 0 && token == s.token.Load()
}

// Scan discovers the API endpoints behind urlText. Input that is not an
// http(s) URL fails with an InvalidURLError before any request is made.
// Every other failure degrades the result instead of failing the scan;
// only cancellation of ctx is returned as an error.
func (s *Scanner) Scan(ctx context.Context, urlText string) (*Result, error) {
	result := &Result{
		Token:     s.token.Add(1),
		ID:        uuid.NewString(),
		Input:     urlText,
		StartedAt: time.Now(),
	}
	log := s.logger.WithScan(result.ID, result.Token)

	target, err := scope.Normalize(urlText)
	if err != nil {
		log.WithError(err).Debug("Rejected scan input")
		return nil, err
	}
	result.Origin = target.Origin
	result.InitialPath = target.InitialPath
	log = log.WithURL(target.Origin)
	log.Info("Scan started")

	collector := metrics.New()
	collector.RecordScan()
	defer func() {
		if s.metrics != nil {
			s.metrics.Add(collector.Snapshot())
		}
	}()

	candidates := s.collect(ctx, target, log, collector)

	paths := s.checker.Filter(discovery.Expand(candidates).Sorted())
	result.Candidates = len(paths)
	collector.RecordCandidates(len(paths))
	log.WithField("candidates", len(paths)).Debug("Probing candidate paths")

	prober := discovery.NewProber(s.getter, discovery.ProberConfig{
		Concurrency: s.config.Concurrency,
		Timeout:     s.config.ProbeTimeout,
		Logger:      log,
		Metrics:     collector,
	})
	hits := prober.Run(ctx, target.Origin, paths)

	if err := ctx.Err(); err != nil {
		log.Debug("Scan cancelled")
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}

	result.Endpoints = discovery.Rank(discovery.ClassifyHits(hits), target.InitialPath)
	result.Selected = discovery.Select(result.Endpoints)
	collector.RecordEndpoints(len(result.Endpoints))
	for _, ep := range result.Endpoints {
		log.DiscoveryEvent(ep.Path, string(ep.APIType), ep.Description)
	}

	result.CompletedAt = time.Now()
	result.Stats = collector.Snapshot()
	log.StatsEvent(result.Stats.Summary())
	if s.limiter.Enabled() {
		log.WithField("rate_limit", s.limiter.Stats()).Debug("Rate limiter statistics")
	}

	if s.store != nil {
		if err := s.store.Save(result.Record()); err != nil {
			log.WithError(err).Warn("Failed to save scan history")
		}
	}

	return result, nil
}

// collect builds the candidate set from the root page and the well-known
// descriptors, fetched concurrently.
func (s *Scanner) collect(ctx context.Context, target scope.Target, log *logger.Logger, collector *metrics.Collector) *discovery.CandidateSet {
	fetcher := descriptor.NewFetcher(s.getter, descriptor.Config{
		Paths:   s.config.DescriptorPaths,
		Timeout: s.config.DescriptorTimeout,
		Logger:  log,
		Metrics: collector,
	})

	var rootPaths, descriptorPaths []string

	var g errgroup.Group
	g.Go(func() error {
		rootPaths = s.extractRoot(ctx, target, log)
		return nil
	})
	g.Go(func() error {
		descriptorPaths = fetcher.Fetch(ctx, target.Origin)
		return nil
	})
	_ = g.Wait()

	candidates := discovery.NewCandidateSet(s.checker.Filter(rootPaths)...)
	candidates.AddAll(s.checker.Filter(descriptorPaths))
	log.Debugf("Root page yielded %d paths, descriptors %d, %d in scope",
		len(rootPaths), len(descriptorPaths), candidates.Len())

	if discovery.SeedFallback(candidates, s.config.FallbackPaths) {
		log.Debug("No paths found, seeding fallback paths")
	}
	if p, ok := parser.CleanPath(target.InitialPath); ok {
		candidates.Add(p)
	}

	return candidates
}

// extractRoot fetches the root page and extracts its candidate paths. A
// failed fetch is treated as an empty document.
func (s *Scanner) extractRoot(ctx context.Context, target scope.Target, log *logger.Logger) []string {
	rootURL := target.URL("/")

	resp, err := s.getter.Get(ctx, &apihttp.Request{
		URL:     rootURL,
		Headers: map[string]string{"Accept": RootAccept},
		Timeout: s.config.RootTimeout,
	})
	if err != nil {
		log.WithError(err).WithURL(rootURL).Warn("Root page fetch failed")
		return nil
	}

	return s.extractor.Extract(string(resp.Body))
}

// Close releases the HTTP client and any history store the scanner opened.
func (s *Scanner) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	if s.ownsStore && s.store != nil {
		return s.store.Close()
	}
	return nil
}
