// Package scope provides target URL normalization and candidate path scoping.
package scope

import (
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PentesterFlow/apisurface/internal/errors"
)

// Target is the normalized form of a user-supplied URL.
type Target struct {
	// Origin is scheme://host[:port] with no trailing slash.
	Origin string
	// InitialPath is the URL path, or "/" when empty.
	InitialPath string
}

// URL joins the origin with a rooted path (which may carry a query).
func (t Target) URL(path string) string {
	return t.Origin + path
}

// Normalize parses free-text input into a Target.
// Query and fragment are discarded. Any failure is an *errors.InvalidURLError.
func Normalize(raw string) (Target, error) {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)

	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return Target{}, errors.NewInvalidURLError(raw, "", nil)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return Target{}, errors.NewInvalidURLError(raw, "URL could not be parsed", err)
	}

	if parsed.Host == "" || parsed.Hostname() == "" {
		return Target{}, errors.NewInvalidURLError(raw, "URL has no host", nil)
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}

	return Target{
		Origin:      strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host),
		InitialPath: path,
	}, nil
}

// Rules defines which candidate paths may be probed.
type Rules struct {
	IncludePatterns []string
	ExcludePatterns []string
}

// Checker validates candidate paths against scope rules.
type Checker struct {
	mu             sync.RWMutex
	rules          Rules
	includeRegexps []*regexp.Regexp
	excludeRegexps []*regexp.Regexp
}

// NewChecker creates a new scope checker.
func NewChecker(rules Rules) (*Checker, error) {
	c := &Checker{}

	for _, pattern := range rules.IncludePatterns {
		if err := c.AddIncludePattern(pattern); err != nil {
			return nil, err
		}
	}
	for _, pattern := range rules.ExcludePatterns {
		if err := c.AddExcludePattern(pattern); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Allows checks if a candidate path may be probed.
func (c *Checker) Allows(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Exclude patterns have priority
	for _, re := range c.excludeRegexps {
		if re.MatchString(path) {
			return false
		}
	}

	if len(c.includeRegexps) == 0 {
		return true
	}
	for _, re := range c.includeRegexps {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Filter returns the paths that pass Allows, preserving order.
func (c *Checker) Filter(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if c.Allows(p) {
			out = append(out, p)
		}
	}
	return out
}

// AddIncludePattern adds an include pattern.
func (c *Checker) AddIncludePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.includeRegexps = append(c.includeRegexps, re)
	c.rules.IncludePatterns = append(c.rules.IncludePatterns, pattern)
	return nil
}

// AddExcludePattern adds an exclude pattern.
func (c *Checker) AddExcludePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.excludeRegexps = append(c.excludeRegexps, re)
	c.rules.ExcludePatterns = append(c.rules.ExcludePatterns, pattern)
	return nil
}

// Rules returns a copy of the checker's rules.
func (c *Checker) Rules() Rules {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Rules{
		IncludePatterns: append([]string(nil), c.rules.IncludePatterns...),
		ExcludePatterns: append([]string(nil), c.rules.ExcludePatterns...),
	}
}
