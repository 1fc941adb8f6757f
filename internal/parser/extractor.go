// Package parser extracts candidate API paths from HTML documents.
package parser

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Document is one HTML page under extraction. The DOM is parsed lazily and
// shared by every rule that needs it.
type Document struct {
	Raw string

	once sync.Once
	dom  *goquery.Document
}

// NewDocument wraps a raw HTML string.
func NewDocument(raw string) *Document {
	return &Document{Raw: raw}
}

// DOM returns the parsed document, or nil when parsing failed.
func (d *Document) DOM() *goquery.Document {
	d.once.Do(func() {
		dom, err := goquery.NewDocumentFromReader(strings.NewReader(d.Raw))
		if err == nil {
			d.dom = dom
		}
	})
	return d.dom
}

// Rule is one extraction heuristic. Rules return raw matches; the
// Extractor cleans and deduplicates them.
type Rule interface {
	Name() string
	Extract(doc *Document) []string
}

// Match is a cleaned path and the rule that produced it first.
type Match struct {
	Path string
	Rule string
}

// Extractor applies an ordered list of rules to a document.
type Extractor struct {
	rules []Rule
}

// NewExtractor creates an extractor. With no rules, DefaultRules is used.
func NewExtractor(rules ...Rule) *Extractor {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Extractor{rules: rules}
}

// Rules returns the rule names in application order.
func (e *Extractor) Rules() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// Extract returns the ordered-unique candidate paths found in html.
func (e *Extractor) Extract(html string) []string {
	matches := e.ExtractMatches(html)
	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = m.Path
	}
	return paths
}

// ExtractMatches is Extract with the producing rule attached to each path.
func (e *Extractor) ExtractMatches(html string) []Match {
	if strings.TrimSpace(html) == "" {
		return nil
	}

	doc := NewDocument(html)
	seen := make(map[string]struct{})
	matches := make([]Match, 0, 32)

	for _, rule := range e.rules {
		for _, raw := range rule.Extract(doc) {
			p, ok := CleanPath(raw)
			if !ok {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			matches = append(matches, Match{Path: p, Rule: rule.Name()})
		}
	}

	return matches
}
