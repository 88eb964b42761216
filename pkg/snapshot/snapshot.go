// Package snapshot models a point-in-time, read-only description of a
// rendered page. Snapshots exist only to feed step classification and field
// resolution; they are recomputed on demand and never persisted.
package snapshot

import "strings"

// Element is one structural element captured from the page: its tag, the
// attributes useful for targeting, and its visible text.
type Element struct {
	Tag   string            `json:"tag"`
	Attrs map[string]string `json:"attrs,omitempty"`
	Text  string            `json:"text,omitempty"`
}

// Attr returns the named attribute, or "" when absent.
func (e Element) Attr(name string) string {
	return e.Attrs[name]
}

// Snapshot is the page state used by the classifier and resolver. All
// fields are value copies; holding a Snapshot never pins browser resources.
type Snapshot struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Text     string    `json:"text"`
	Elements []Element `json:"elements"`
}

// ContainsText reports whether the visible page text contains the keyword,
// case-insensitively.
func (s *Snapshot) ContainsText(keyword string) bool {
	return strings.Contains(strings.ToLower(s.Text), strings.ToLower(keyword))
}

// FormElements returns the input, select and textarea elements in document
// order. This is the search space for secondary field discovery.
func (s *Snapshot) FormElements() []Element {
	var out []Element
	for _, el := range s.Elements {
		switch el.Tag {
		case "input", "select", "textarea":
			out = append(out, el)
		}
	}
	return out
}

// HasFieldMarker reports whether any form element carries the keyword in
// its name, id or placeholder. Marker fields are how combined-step
// detection recognizes a field group regardless of page copy.
func (s *Snapshot) HasFieldMarker(keyword string) bool {
	keyword = strings.ToLower(keyword)
	for _, el := range s.FormElements() {
		for _, attr := range []string{"name", "id", "placeholder"} {
			if strings.Contains(strings.ToLower(el.Attr(attr)), keyword) {
				return true
			}
		}
	}
	return false
}
