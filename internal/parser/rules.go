package parser

import (
	"regexp"
	"strings"

	"github.com/BishopFox/jsluice"
	"github.com/PuerkitoBio/goquery"
)

// Rule names, in default application order.
const (
	RuleAnchorHref    = "anchor_href"
	RuleAPIString     = "api_string"
	RuleRootedString  = "rooted_string"
	RuleCellText      = "cell_text"
	RuleBoldMarkdown  = "bold_markdown"
	RuleBareToken     = "bare_token"
	RuleScriptLiteral = "script_literal"
)

// DefaultRules returns the standard rule list in application order.
func DefaultRules() []Rule {
	return []Rule{
		AnchorHrefRule{},
		APIStringRule{},
		RootedStringRule{},
		CellTextRule{},
		BoldMarkdownRule{},
		BareTokenRule{},
		ScriptLiteralRule{},
	}
}

var (
	anchorHrefRe   = regexp.MustCompile(`(?i)<a\b[^>]*?\bhref\s*=\s*["']([^"']*)["']`)
	apiStringRe    = regexp.MustCompile(`["'](/api/[^"'\s<>]*)["']`)
	rootedStringRe = regexp.MustCompile(`["'](/[^/"'\s<>][^"'\s<>]*)["']`)
	cellPathRe     = regexp.MustCompile(`^(?:(?i:GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)\s+)?(/\S*)$`)
	boldMarkdownRe = regexp.MustCompile(`\*\*(/[^*\s]+)\*\*`)
	bareTokenRe    = regexp.MustCompile(`(?:^|[\s>(\[,;])(/[A-Za-z0-9_\-~%{}][A-Za-z0-9_\-~%{}:./]*)`)
)

// AnchorHrefRule collects href="/path" attributes on anchor tags.
type AnchorHrefRule struct{}

// Name implements Rule.
func (AnchorHrefRule) Name() string { return RuleAnchorHref }

// Extract implements Rule.
func (AnchorHrefRule) Extract(doc *Document) []string {
	var out []string
	for _, m := range anchorHrefRe.FindAllStringSubmatch(doc.Raw, -1) {
		href := strings.TrimSpace(m[1])
		lower := strings.ToLower(href)
		if strings.HasPrefix(href, "//") ||
			strings.HasPrefix(lower, "mailto:") ||
			strings.HasPrefix(lower, "tel:") {
			continue
		}
		out = append(out, href)
	}
	return out
}

// APIStringRule collects quoted "/api/..." strings.
type APIStringRule struct{}

// Name implements Rule.
func (APIStringRule) Name() string { return RuleAPIString }

// Extract implements Rule.
func (APIStringRule) Extract(doc *Document) []string {
	return submatches(apiStringRe, doc.Raw)
}

// RootedStringRule collects quoted strings starting with a single slash,
// skipping static assets.
type RootedStringRule struct{}

// Name implements Rule.
func (RootedStringRule) Name() string { return RuleRootedString }

// Extract implements Rule.
func (RootedStringRule) Extract(doc *Document) []string {
	return withoutAssets(submatches(rootedStringRe, doc.Raw))
}

// CellTextRule collects <td> and <code> text that looks like a path,
// optionally prefixed with an HTTP verb.
type CellTextRule struct{}

// Name implements Rule.
func (CellTextRule) Name() string { return RuleCellText }

// Extract implements Rule.
func (CellTextRule) Extract(doc *Document) []string {
	dom := doc.DOM()
	if dom == nil {
		return nil
	}

	var out []string
	dom.Find("td, code").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if m := cellPathRe.FindStringSubmatch(text); m != nil {
			out = append(out, m[1])
		}
	})
	return out
}

// BoldMarkdownRule collects **/path** spans left in rendered documentation.
type BoldMarkdownRule struct{}

// Name implements Rule.
func (BoldMarkdownRule) Name() string { return RuleBoldMarkdown }

// Extract implements Rule.
func (BoldMarkdownRule) Extract(doc *Document) []string {
	return submatches(boldMarkdownRe, doc.Raw)
}

// BareTokenRule collects absolute-path tokens anywhere in the text,
// skipping static assets.
type BareTokenRule struct{}

// Name implements Rule.
func (BareTokenRule) Name() string { return RuleBareToken }

// Extract implements Rule.
func (BareTokenRule) Extract(doc *Document) []string {
	raw := submatches(bareTokenRe, doc.Raw)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.TrimRight(tok, ".:,")
		out = append(out, tok)
	}
	return withoutAssets(out)
}

// ScriptLiteralRule runs jsluice over inline scripts and keeps rooted URLs.
type ScriptLiteralRule struct{}

// Name implements Rule.
func (ScriptLiteralRule) Name() string { return RuleScriptLiteral }

// Extract implements Rule.
func (ScriptLiteralRule) Extract(doc *Document) []string {
	dom := doc.DOM()
	if dom == nil {
		return nil
	}

	var out []string
	dom.Find("script:not([src])").Each(func(_ int, s *goquery.Selection) {
		src := s.Text()
		if strings.TrimSpace(src) == "" {
			return
		}
		analyzer := jsluice.NewAnalyzer([]byte(src))
		for _, u := range analyzer.GetURLs() {
			if strings.HasPrefix(u.URL, "/") && !IsAssetPath(u.URL) {
				out = append(out, u.URL)
			}
		}
	})
	return out
}

func submatches(re *regexp.Regexp, s string) []string {
	found := re.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(found))
	for _, m := range found {
		out = append(out, m[1])
	}
	return out
}

func withoutAssets(paths []string) []string {
	out := paths[:0]
	for _, p := range paths {
		if !IsAssetPath(p) {
			out = append(out, p)
		}
	}
	return out
}
