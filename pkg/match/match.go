// Package match evaluates declarative attribute expressions against element
// attribute maps. It is the atomic primitive under the field resolver's
// candidate tables: a resilient selector chain is just an ordered list of
// these expressions, with no hard-coded site markup anywhere else.
package match

import (
	"fmt"
	"strings"
)

// Expression is a parsed attribute predicate.
//
// Two forms are supported, mirroring CSS attribute selector syntax:
//
//	attr=value    exact match
//	attr*=value   substring match
type Expression struct {
	Attr      string
	Value     string
	Substring bool
}

// Parse parses an expression string. The first unescaped "=" (or "*=")
// separates attribute from value; values may contain further "=" characters.
func Parse(expr string) (Expression, error) {
	idx := strings.Index(expr, "=")
	if idx <= 0 {
		return Expression{}, fmt.Errorf("invalid match expression %q: want attr=value or attr*=value", expr)
	}

	attr := expr[:idx]
	value := expr[idx+1:]
	substring := false

	if strings.HasSuffix(attr, "*") {
		attr = strings.TrimSuffix(attr, "*")
		substring = true
	}

	attr = strings.TrimSpace(attr)
	if attr == "" {
		return Expression{}, fmt.Errorf("invalid match expression %q: empty attribute name", expr)
	}

	return Expression{
		Attr:      attr,
		Value:     value,
		Substring: substring,
	}, nil
}

// Matches reports whether the element attributes satisfy the expression.
// A missing attribute never matches; it is not an error. Comparison is
// case-insensitive on both sides, matching how browsers treat attribute
// values in practice across carrier sites.
func (e Expression) Matches(attrs map[string]string) bool {
	actual, ok := attrs[e.Attr]
	if !ok {
		return false
	}

	actual = strings.ToLower(actual)
	want := strings.ToLower(e.Value)

	if e.Substring {
		return strings.Contains(actual, want)
	}
	return actual == want
}

// Selector renders the expression as a CSS attribute selector, optionally
// scoped to a tag. This is how a matched candidate becomes the concrete
// locator handed to the transport.
func (e Expression) Selector(tag string) string {
	op := "="
	if e.Substring {
		op = "*="
	}
	return fmt.Sprintf("%s[%s%s%q]", tag, e.Attr, op, e.Value)
}

// Evaluate parses and evaluates an expression in one call. Malformed
// expressions evaluate to false rather than failing the caller; candidate
// tables are static data and are validated by their own tests.
func Evaluate(expr string, attrs map[string]string) bool {
	parsed, err := Parse(expr)
	if err != nil {
		return false
	}
	return parsed.Matches(attrs)
}
