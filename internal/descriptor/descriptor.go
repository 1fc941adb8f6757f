// Package descriptor fetches well-known API description documents and
// extracts the paths they declare.
package descriptor

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/PentesterFlow/apisurface/internal/http"
	"github.com/PentesterFlow/apisurface/internal/logger"
	"github.com/PentesterFlow/apisurface/internal/metrics"
	"github.com/PentesterFlow/apisurface/internal/parser"
)

// DefaultPaths are the conventional documentation locations.
var DefaultPaths = []string{"/openapi.json", "/swagger.json", "/api-docs", "/swagger", "/docs"}

// DefaultTimeout bounds each descriptor request.
const DefaultTimeout = 3 * time.Second

var (
	pathsExpr      = jp.MustParseString("$.paths")
	basePathExpr   = jp.MustParseString("$.basePath")
	openAPIExpr    = jp.MustParseString("$.openapi")
	serverURLsExpr = jp.MustParseString("$.servers[*].url")
)

// Config configures a Fetcher.
type Config struct {
	Paths   []string
	Timeout time.Duration
	Logger  *logger.Logger
	Metrics *metrics.Collector
}

// Fetcher requests descriptor documents from a target origin.
type Fetcher struct {
	getter  apihttp.Getter
	paths   []string
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Collector
}

// NewFetcher creates a descriptor fetcher.
func NewFetcher(getter apihttp.Getter, cfg Config) *Fetcher {
	if len(cfg.Paths) == 0 {
		cfg.Paths = DefaultPaths
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return &Fetcher{
		getter:  getter,
		paths:   cfg.Paths,
		timeout: cfg.Timeout,
		log:     cfg.Logger.WithComponent("descriptor"),
		metrics: cfg.Metrics,
	}
}

// Fetch requests every descriptor path concurrently and returns the
// declared paths in descriptor-list order. Failures contribute nothing.
func (f *Fetcher) Fetch(ctx context.Context, origin string) []string {
	results := make([][]string, len(f.paths))

	var g errgroup.Group
	for i, p := range f.paths {
		i, p := i, p
		g.Go(func() error {
			results[i] = f.fetchOne(ctx, origin+p)
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	var out []string
	for _, paths := range results {
		for _, p := range paths {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func (f *Fetcher) fetchOne(ctx context.Context, target string) []string {
	resp, err := f.getter.Get(ctx, &apihttp.Request{
		URL:     target,
		Headers: map[string]string{"Accept": "application/json"},
		Timeout: f.timeout,
	})
	if err != nil {
		f.log.WithError(err).WithURL(target).Debug("Descriptor fetch failed")
		return nil
	}
	if !resp.OK() {
		f.log.WithURL(target).Debugf("Descriptor returned status %d", resp.StatusCode)
		return nil
	}

	paths := Parse(resp.Body)
	if len(paths) > 0 {
		f.log.WithURL(target).Infof("Descriptor declared %d paths", len(paths))
		if f.metrics != nil {
			f.metrics.RecordDescriptorHit()
		}
	}
	return paths
}

// Parse extracts the keys of a top-level "paths" object from a JSON
// document. Keys are also joined with any Swagger 2 basePath or OpenAPI 3
// server path. Anything that is not such a document yields nil.
func Parse(body []byte) []string {
	var data any
	if err := oj.Unmarshal(body, &data); err != nil {
		return nil
	}

	found := pathsExpr.Get(data)
	if len(found) == 0 {
		return nil
	}
	pathsObj, ok := found[0].(map[string]any)
	if !ok || len(pathsObj) == 0 {
		return nil
	}

	keys := make([]string, 0, len(pathsObj))
	for k := range pathsObj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bases := basePaths(body, data)
	seen := make(map[string]struct{})
	out := make([]string, 0, len(keys)*(1+len(bases)))

	add := func(p string) {
		cleaned, ok := parser.CleanPath(p)
		if !ok {
			return
		}
		if _, dup := seen[cleaned]; dup {
			return
		}
		seen[cleaned] = struct{}{}
		out = append(out, cleaned)
	}

	for _, key := range keys {
		rooted := key
		if !strings.HasPrefix(rooted, "/") {
			rooted = "/" + rooted
		}
		add(rooted)
		for _, base := range bases {
			add(base + rooted)
		}
	}

	return out
}

// basePaths returns path prefixes declared by the document, without a
// trailing slash. The root prefix is omitted.
func basePaths(body []byte, data any) []string {
	var bases []string

	for _, v := range basePathExpr.Get(data) {
		if s, ok := v.(string); ok {
			bases = appendBase(bases, s)
		}
	}

	if len(openAPIExpr.Get(data)) == 0 {
		return bases
	}

	loader := openapi3.NewLoader()
	if doc, err := loader.LoadFromData(body); err == nil {
		for _, srv := range doc.Servers {
			if srv != nil {
				bases = appendBase(bases, serverPath(srv.URL))
			}
		}
		return bases
	}

	// Loader rejected the document; read servers directly.
	for _, v := range serverURLsExpr.Get(data) {
		if s, ok := v.(string); ok {
			bases = appendBase(bases, serverPath(s))
		}
	}
	return bases
}

// serverPath returns the path component of a server URL. Templated URLs
// are skipped.
func serverPath(raw string) string {
	if strings.Contains(raw, "{") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}

func appendBase(bases []string, base string) []string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return bases
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	for _, b := range bases {
		if b == base {
			return bases
		}
	}
	return append(bases, base)
}
