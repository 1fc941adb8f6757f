package surface

import (
	"fmt"
	"time"

	apihttp "github.com/PentesterFlow/apisurface/internal/http"
	"github.com/PentesterFlow/apisurface/internal/logger"
	"github.com/PentesterFlow/apisurface/internal/metrics"
	"github.com/PentesterFlow/apisurface/internal/parser"
	"github.com/PentesterFlow/apisurface/internal/state"
)

// Option is a functional option for configuring the Scanner.
type Option func(*Scanner) error

// WithConfig replaces the whole configuration.
func WithConfig(config *Config) Option {
	return func(s *Scanner) error {
		if config == nil {
			return fmt.Errorf("config is nil")
		}
		s.config = config.Clone()
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scanner) error {
		s.logger = l
		return nil
	}
}

// WithGetter replaces the HTTP client. The scanner does not close it.
func WithGetter(g apihttp.Getter) Option {
	return func(s *Scanner) error {
		if g == nil {
			return fmt.Errorf("getter is nil")
		}
		s.getter = g
		return nil
	}
}

// WithConcurrency caps in-flight probes. Zero means unbounded.
func WithConcurrency(n int) Option {
	return func(s *Scanner) error {
		if n < 0 {
			n = 0
		}
		s.config.Concurrency = n
		return nil
	}
}

// WithTimeouts sets the root, probe and descriptor timeouts. Zero values
// keep the current setting.
func WithTimeouts(root, probe, descriptor time.Duration) Option {
	return func(s *Scanner) error {
		if root > 0 {
			s.config.RootTimeout = root
		}
		if probe > 0 {
			s.config.ProbeTimeout = probe
		}
		if descriptor > 0 {
			s.config.DescriptorTimeout = descriptor
		}
		return nil
	}
}

// WithHeaders adds headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(s *Scanner) error {
		if s.config.Headers == nil {
			s.config.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			s.config.Headers[k] = v
		}
		return nil
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Scanner) error {
		s.config.UserAgent = ua
		return nil
	}
}

// WithExcludePatterns adds candidate path patterns that are never probed.
func WithExcludePatterns(patterns ...string) Option {
	return func(s *Scanner) error {
		s.config.ExcludePatterns = append(s.config.ExcludePatterns, patterns...)
		return nil
	}
}

// WithIncludePatterns restricts probing to candidate paths matching at
// least one pattern.
func WithIncludePatterns(patterns ...string) Option {
	return func(s *Scanner) error {
		s.config.IncludePatterns = append(s.config.IncludePatterns, patterns...)
		return nil
	}
}

// WithRateLimit paces outgoing requests. A zero rate disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Scanner) error {
		s.config.RequestsPerSecond = rps
		s.config.Burst = burst
		return nil
	}
}

// WithMetrics sets a collector every scan's metrics are added to.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Scanner) error {
		s.metrics = m
		return nil
	}
}

// WithHistory saves every completed scan into store.
func WithHistory(store state.Store) Option {
	return func(s *Scanner) error {
		s.store = store
		return nil
	}
}

// WithRules replaces the link extraction rules.
func WithRules(rules ...parser.Rule) Option {
	return func(s *Scanner) error {
		s.rules = rules
		return nil
	}
}
