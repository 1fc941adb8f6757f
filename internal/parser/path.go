package parser

import (
	"path"
	"strings"
)

// assetExtensions are static file types that are never API endpoints.
var assetExtensions = map[string]struct{}{
	".css":   {},
	".js":    {},
	".png":   {},
	".jpg":   {},
	".jpeg":  {},
	".gif":   {},
	".svg":   {},
	".ico":   {},
	".woff":  {},
	".woff2": {},
	".ttf":   {},
	".eot":   {},
}

// CleanPath turns a raw match into a candidate path.
// Query and fragment are stripped. Protocol-relative, unrooted and
// whitespace-bearing values are rejected, as is the bare root.
func CleanPath(raw string) (string, bool) {
	p := strings.TrimSpace(raw)

	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	if len(p) < 2 || p[0] != '/' || p[1] == '/' {
		return "", false
	}
	if strings.ContainsAny(p, " \t\r\n\"'<>`\\") {
		return "", false
	}

	return p, true
}

// IsAssetPath reports whether p ends in a static-asset extension.
func IsAssetPath(p string) bool {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	_, ok := assetExtensions[strings.ToLower(path.Ext(p))]
	return ok
}
