package discovery

import (
	"sort"
	"strings"
)

func rankTier(path string) int {
	switch {
	case path == "/api/cats", path == "/api/tags":
		return 0
	case path == "/cat":
		return 1
	default:
		return 2
	}
}

// Rank drops duplicate (path, method) pairs, keeping the first, and orders
// the rest by priority tier then path. An empty input yields a single
// endpoint built from initialPath.
func Rank(endpoints []Endpoint, initialPath string) []Endpoint {
	seen := make(map[string]struct{}, len(endpoints))
	ranked := make([]Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		key := ep.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ranked = append(ranked, ep)
	}

	if len(ranked) == 0 {
		return []Endpoint{{
			Path:        initialPath,
			Method:      MethodGET,
			APIType:     REST,
			Description: DetectedFromURL,
		}}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		ti, tj := rankTier(ranked[i].Path), rankTier(ranked[j].Path)
		if ti != tj {
			return ti < tj
		}
		return ranked[i].Path < ranked[j].Path
	})
	return ranked
}

// Select picks the first ranked endpoint under /api/, else the first
// endpoint. It returns nil for an empty list.
func Select(ranked []Endpoint) *Endpoint {
	if len(ranked) == 0 {
		return nil
	}
	for _, ep := range ranked {
		if strings.Contains(ep.Path, "/api/") {
			selected := ep
			return &selected
		}
	}
	selected := ranked[0]
	return &selected
}
