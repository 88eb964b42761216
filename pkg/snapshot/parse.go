package snapshot

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Parse builds a Snapshot from raw page HTML. Scripts, styles and other
// non-visible noise are dropped; element attributes are filtered to the set
// useful for targeting and classification.
func Parse(url, rawHTML string) (*Snapshot, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	snap := &Snapshot{URL: url}

	var text strings.Builder
	collect(doc, snap, &text)
	snap.Text = strings.Join(strings.Fields(text.String()), " ")

	return snap, nil
}

// collect walks the node tree gathering the title, targetable elements and
// visible text in a single pass.
func collect(n *html.Node, snap *Snapshot, text *strings.Builder) {
	switch n.Type {
	case html.CommentNode:
		return

	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			text.WriteString(t)
			text.WriteByte(' ')
		}
		return

	case html.ElementNode:
		tag := strings.ToLower(n.Data)

		if isSkippedElement(tag) {
			return
		}

		if tag == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				snap.Title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}

		if isCapturedElement(tag) {
			snap.Elements = append(snap.Elements, Element{
				Tag:   tag,
				Attrs: capturedAttrs(tag, n.Attr),
				Text:  elementText(n),
			})
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, snap, text)
	}
}

// elementText returns the trimmed text directly inside an element,
// flattened to one line.
func elementText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			if t := strings.TrimSpace(node.Data); t != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(t)
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func isSkippedElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "iframe", "embed", "object", "svg":
		return true
	}
	return false
}

// isCapturedElement lists the tags that matter for classification and field
// resolution. Everything else contributes only visible text.
func isCapturedElement(tag string) bool {
	switch tag {
	case "input", "select", "textarea", "button", "a", "form", "label",
		"h1", "h2", "h3", "option":
		return true
	}
	return false
}

// capturedAttrs filters attributes to the targeting set: globals plus
// data-* plus tag-specific form attributes.
func capturedAttrs(tag string, attrs []html.Attribute) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if keepAttr(tag, key) {
			out[key] = a.Val
		}
	}
	return out
}

func keepAttr(tag, key string) bool {
	switch key {
	case "id", "class", "role", "aria-label", "aria-describedby", "disabled":
		return true
	}
	if strings.HasPrefix(key, "data-") {
		return true
	}
	switch tag {
	case "input", "textarea", "select":
		return key == "name" || key == "type" || key == "placeholder" ||
			key == "value" || key == "autocomplete"
	case "option":
		return key == "value" || key == "selected"
	case "button":
		return key == "type" || key == "name"
	case "a":
		return key == "href"
	case "form":
		return key == "action" || key == "method"
	case "label":
		return key == "for"
	}
	return false
}
