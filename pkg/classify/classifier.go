// Package classify resolves which logical form step a page snapshot shows.
// Rules are evaluated in a fixed priority order: combined-step detectors
// first, then URL substrings, then title markers, then visible-text
// keywords. The ordering is load-bearing — carriers sometimes keep one URL
// across steps, and a merged page would otherwise classify as only one of
// its two halves.
package classify

import (
	"strings"

	"github.com/quotelane/quotelane/pkg/snapshot"
)

// StepUnknown is returned when no rule matches. Callers treat it as a
// recoverable error, not a crash.
const StepUnknown = "unknown"

// CombinedRule detects a page that merges two logical steps: it fires only
// when every marker group has at least one field-marker hit in the same
// snapshot. Groups list keywords matched against form-element
// name/id/placeholder attributes.
type CombinedRule struct {
	Step   string
	Groups [][]string
}

func (r CombinedRule) matches(snap *snapshot.Snapshot) bool {
	for _, group := range r.Groups {
		hit := false
		for _, kw := range group {
			if snap.HasFieldMarker(kw) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// Marker maps a substring of the URL or title to a step.
type Marker struct {
	Contains string
	Step     string
}

// TextRule maps visible-text keywords to a step; every keyword must be
// present.
type TextRule struct {
	Keywords []string
	Step     string
}

// Classifier holds one carrier's rule set.
type Classifier struct {
	combined []CombinedRule
	urls     []Marker
	titles   []Marker
	texts    []TextRule
}

// New creates an empty classifier. Rules are added with the With* builders
// in priority order within each tier; across tiers the fixed
// combined > URL > title > text ordering always applies.
func New() *Classifier {
	return &Classifier{}
}

// WithCombined adds a combined-step detector.
func (c *Classifier) WithCombined(step string, groups ...[]string) *Classifier {
	c.combined = append(c.combined, CombinedRule{Step: step, Groups: groups})
	return c
}

// WithURL adds a URL substring marker.
func (c *Classifier) WithURL(contains, step string) *Classifier {
	c.urls = append(c.urls, Marker{Contains: contains, Step: step})
	return c
}

// WithTitle adds a page-title marker.
func (c *Classifier) WithTitle(contains, step string) *Classifier {
	c.titles = append(c.titles, Marker{Contains: contains, Step: step})
	return c
}

// WithText adds a visible-text keyword rule.
func (c *Classifier) WithText(step string, keywords ...string) *Classifier {
	c.texts = append(c.texts, TextRule{Step: step, Keywords: keywords})
	return c
}

// Classify returns the symbolic step name for the snapshot, or StepUnknown.
// Classification is deterministic: identical snapshots always yield the
// same step.
func (c *Classifier) Classify(snap *snapshot.Snapshot) string {
	// Tier 1: combined-step detection overrides everything. A page showing
	// both vehicle and address fields must not classify as just one.
	for _, rule := range c.combined {
		if rule.matches(snap) {
			return rule.Step
		}
	}

	// Tier 2: URL substrings are cheap and usually specific.
	for _, m := range c.urls {
		if containsFold(snap.URL, m.Contains) {
			return m.Step
		}
	}

	// Tier 3: title markers.
	for _, m := range c.titles {
		if containsFold(snap.Title, m.Contains) {
			return m.Step
		}
	}

	// Tier 4: text keywords, the fallback for carriers that never change
	// URL or title between steps.
	for _, rule := range c.texts {
		all := true
		for _, kw := range rule.Keywords {
			if !snap.ContainsText(kw) {
				all = false
				break
			}
		}
		if all && len(rule.Keywords) > 0 {
			return rule.Step
		}
	}

	return StepUnknown
}

func containsFold(haystack, needle string) bool {
	return needle != "" && strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
