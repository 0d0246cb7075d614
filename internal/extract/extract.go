// Package extract mines captured child stdout for artifact references. No
// structured output channel exists between parent and child beyond plain
// text, so this is explicitly best-effort scraping, not a protocol.
package extract

import (
	"regexp"
	"strings"
)

var (
	prefixPattern = regexp.MustCompile(`(?i)^\s*(?:created|generated|saved|output|file|path)\s*[:=]\s*(.+)$`)
	urlPattern    = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)
	// absolute or relative tokens that look like file paths: either rooted,
	// dot-relative, or containing a directory separator
	pathPattern = regexp.MustCompile(`(?:\.{1,2}/|/)[\w.\-/]+|[\w.\-]+(?:/[\w.\-]+)+`)

	noiseFragments = []string{
		"/.git/", ".git/", "node_modules", "__pycache__", "/vendor/",
	}
	noiseHosts = []string{"localhost", "127.0.0.1", "0.0.0.0"}
)

// Extractor scans captured output text for file and URL references.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the ordered, de-duplicated artifact references found in
// text: prefixed announcement lines, http(s) URLs, and path-like tokens.
func (e *Extractor) Extract(text string) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(candidate string) {
		candidate = strings.Trim(strings.TrimSpace(candidate), `"'`)
		candidate = strings.TrimRight(candidate, ".,;:")
		if candidate == "" || seen[candidate] || isNoise(candidate) {
			return
		}
		seen[candidate] = true
		out = append(out, candidate)
	}

	for _, line := range strings.Split(text, "\n") {
		if m := prefixPattern.FindStringSubmatch(line); m != nil {
			add(m[1])
		}
		for _, url := range urlPattern.FindAllString(line, -1) {
			add(url)
		}
		// strip URLs before path matching so scheme-relative fragments of
		// URLs are not re-reported as paths
		stripped := urlPattern.ReplaceAllString(line, "")
		for _, p := range pathPattern.FindAllString(stripped, -1) {
			add(p)
		}
	}
	return out
}

func isNoise(candidate string) bool {
	lower := strings.ToLower(candidate)
	for _, fragment := range noiseFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		for _, host := range noiseHosts {
			if strings.Contains(lower, "://"+host) {
				return true
			}
		}
	}
	return false
}
