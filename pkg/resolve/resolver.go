// Package resolve locates form fields by semantic purpose. A purpose like
// "zipcode" maps to an ordered list of attribute-expression candidates
// reflecting common name/id/placeholder conventions; the first candidate
// satisfied by an element in the snapshot wins. When the whole table
// misses, a secondary keyword scan over all form elements takes over.
package resolve

import (
	"fmt"
	"strings"

	"github.com/quotelane/quotelane/pkg/match"
	"github.com/quotelane/quotelane/pkg/snapshot"
)

// Candidate pairs a tag constraint with a match expression. An empty Tag
// matches any captured element.
type Candidate struct {
	Tag  string
	Expr string
}

// Resolution is a successful lookup: the concrete selector plus the
// element it targets, so callers can branch on element kind without
// another scan.
type Resolution struct {
	Selector string
	Element  snapshot.Element
}

// Resolver evaluates purpose candidate tables against page snapshots.
// Resolution is deterministic: the same snapshot and purpose always yield
// the same selector for a given table.
type Resolver struct {
	table map[string][]Candidate
}

// New creates a resolver with the default candidate table.
func New() *Resolver {
	return &Resolver{table: defaultTable()}
}

// NewWithTable creates a resolver backed by a custom table. Carrier flows
// use this to extend the defaults with site-specific purposes.
func NewWithTable(table map[string][]Candidate) *Resolver {
	return &Resolver{table: table}
}

// Extend merges extra candidates for a purpose ahead of the defaults, so
// carrier-specific conventions are tried first.
func (r *Resolver) Extend(purpose string, candidates ...Candidate) {
	r.table[purpose] = append(append([]Candidate{}, candidates...), r.table[purpose]...)
}

// Resolve returns the concrete selector for the purpose, or ok=false when
// no candidate matches. A miss is a soft failure: callers proceed to
// Discover, and only when both strategies exhaust is the field reported
// unresolvable.
func (r *Resolver) Resolve(snap *snapshot.Snapshot, purpose string) (string, bool) {
	res, ok := r.fromTable(snap, purpose)
	return res.Selector, ok
}

func (r *Resolver) fromTable(snap *snapshot.Snapshot, purpose string) (Resolution, bool) {
	for _, c := range r.table[purpose] {
		expr, err := match.Parse(c.Expr)
		if err != nil {
			continue
		}
		for _, el := range snap.Elements {
			if c.Tag != "" && el.Tag != c.Tag {
				continue
			}
			if expr.Matches(el.Attrs) {
				return Resolution{Selector: expr.Selector(c.Tag), Element: el}, true
			}
		}
	}
	return Resolution{}, false
}

// Discover is the secondary strategy: scan every input/select/textarea for
// a partial keyword hit in name, id, placeholder or aria-label. Keywords
// are derived from the purpose itself ("vehicleYear" -> "vehicle", "year"),
// so it works for purposes the candidate table has never heard of.
func (r *Resolver) Discover(snap *snapshot.Snapshot, purpose string) (string, bool) {
	res, ok := r.fromScan(snap, purpose)
	return res.Selector, ok
}

func (r *Resolver) fromScan(snap *snapshot.Snapshot, purpose string) (Resolution, bool) {
	keywords := keywordsFor(purpose)

	for _, el := range snap.FormElements() {
		for _, attr := range []string{"name", "id", "placeholder", "aria-label"} {
			value := strings.ToLower(el.Attr(attr))
			if value == "" {
				continue
			}
			for _, kw := range keywords {
				if strings.Contains(value, kw) {
					return Resolution{Selector: elementSelector(el), Element: el}, true
				}
			}
		}
	}
	return Resolution{}, false
}

// Locate runs the full in-process strategy chain: candidate table first,
// keyword discovery second.
func (r *Resolver) Locate(snap *snapshot.Snapshot, purpose string) (Resolution, bool) {
	if res, ok := r.fromTable(snap, purpose); ok {
		return res, true
	}
	return r.fromScan(snap, purpose)
}

// elementSelector builds the most specific stable selector available for a
// discovered element: id first, then name, then placeholder.
func elementSelector(el snapshot.Element) string {
	if id := el.Attr("id"); id != "" {
		return fmt.Sprintf("#%s", id)
	}
	if name := el.Attr("name"); name != "" {
		return fmt.Sprintf("%s[name=%q]", el.Tag, name)
	}
	if ph := el.Attr("placeholder"); ph != "" {
		return fmt.Sprintf("%s[placeholder=%q]", el.Tag, ph)
	}
	return el.Tag
}

// keywordsFor splits a camelCase or snake_case purpose into lowercase
// keywords, longest first. Fragments shorter than three characters are too
// ambiguous to scan with and are dropped.
func keywordsFor(purpose string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() >= 3 {
			words = append(words, strings.ToLower(current.String()))
		}
		current.Reset()
	}

	for _, r := range purpose {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case r >= 'A' && r <= 'Z':
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	flush()

	// The whole purpose, lowercased, is the strongest keyword.
	whole := strings.ToLower(strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r == ' ' {
			return -1
		}
		return r
	}, purpose))
	if len(whole) >= 3 && (len(words) != 1 || words[0] != whole) {
		words = append([]string{whole}, words...)
	}
	return words
}
