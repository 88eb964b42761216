package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// DomainWhitelist restricts which hosts the automation may navigate to.
// Patterns are globs matched against the URL host ("*.carrier.example",
// "quotes-?.example.com"). An empty whitelist allows everything — the
// restriction is opt-in.
type DomainWhitelist struct {
	patterns []string
	globs    []glob.Glob
}

// NewDomainWhitelist compiles the patterns. Invalid globs fail fast at
// config time rather than at navigation time.
func NewDomainWhitelist(patterns []string) (*DomainWhitelist, error) {
	w := &DomainWhitelist{patterns: patterns}
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p), '.')
		if err != nil {
			return nil, fmt.Errorf("invalid allowed_domains pattern %q: %w", p, err)
		}
		w.globs = append(w.globs, g)
	}
	return w, nil
}

// Allows reports whether navigation to rawURL is permitted.
func (w *DomainWhitelist) Allows(rawURL string) bool {
	if len(w.globs) == 0 {
		return true
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	for _, g := range w.globs {
		if g.Match(host) {
			return true
		}
	}
	return false
}

// Patterns returns the configured pattern list.
func (w *DomainWhitelist) Patterns() []string {
	return w.patterns
}
