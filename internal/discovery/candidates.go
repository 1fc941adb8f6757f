package discovery

import (
	"sort"
	"strings"
)

// CandidateSet is a deduplicating set of candidate paths.
type CandidateSet struct {
	items map[string]struct{}
}

// NewCandidateSet creates a set holding paths.
func NewCandidateSet(paths ...string) *CandidateSet {
	s := &CandidateSet{items: make(map[string]struct{}, len(paths))}
	s.AddAll(paths)
	return s
}

// Add inserts p and reports whether it was new. Empty strings are ignored.
func (s *CandidateSet) Add(p string) bool {
	if p == "" {
		return false
	}
	if _, ok := s.items[p]; ok {
		return false
	}
	s.items[p] = struct{}{}
	return true
}

// AddAll inserts every path and returns how many were new.
func (s *CandidateSet) AddAll(paths []string) int {
	added := 0
	for _, p := range paths {
		if s.Add(p) {
			added++
		}
	}
	return added
}

// Has reports whether p is in the set.
func (s *CandidateSet) Has(p string) bool {
	_, ok := s.items[p]
	return ok
}

// Len returns the number of paths.
func (s *CandidateSet) Len() int {
	return len(s.items)
}

// Sorted returns the paths in lexicographic order.
func (s *CandidateSet) Sorted() []string {
	out := make([]string, 0, len(s.items))
	for p := range s.items {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SeedFallback fills an empty set with fallback and reports whether it did.
func SeedFallback(s *CandidateSet, fallback []string) bool {
	if s.Len() > 0 {
		return false
	}
	s.AddAll(fallback)
	return true
}

// splitQuery separates a candidate into path and raw query.
func splitQuery(p string) (string, string) {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i], p[i+1:]
	}
	return p, ""
}

// prefixes returns the proper path prefixes of p in segment order:
// /a/b/c gives /a and /a/b.
func prefixes(p string) []string {
	var segs []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}

	out := make([]string, 0, len(segs))
	for i := 1; i < len(segs); i++ {
		out = append(out, "/"+strings.Join(segs[:i], "/"))
	}
	return out
}

// Expand returns a new set holding every path of s plus synthesized
// prefixes and parameterized variants. The input is not modified and
// expanding the result again adds nothing.
func Expand(s *CandidateSet) *CandidateSet {
	out := NewCandidateSet()

	// Prefix closure first so variants also cover synthesized prefixes.
	for _, p := range s.Sorted() {
		out.Add(p)
		path, _ := splitQuery(p)
		for _, prefix := range prefixes(path) {
			out.Add(prefix)
		}
	}

	for _, p := range out.Sorted() {
		if strings.Contains(p, "?") {
			continue
		}
		if strings.Contains(p, "/api/") {
			out.Add(p + "?limit=10")
			out.Add(p + "?limit=1")
		}
		if strings.Contains(p, "/cat") {
			out.Add(p + "?json=true")
		}
	}

	return out
}
