package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Reader turns the elements a strategy matched into raw candidate strings,
// in the order they should be tried.
type Reader func(sel *goquery.Selection) []string

// Strategy is one named rule for one field: a compiled selector, a reader
// and a transform that validates and converts a raw candidate.
type Strategy[T any] struct {
	Name      string
	Selector  string
	Read      Reader
	Transform func(raw string) (T, bool)

	matcher cascadia.Selector
}

// NewStrategy compiles selector and returns the strategy.
func NewStrategy[T any](name, selector string, read Reader, transform func(string) (T, bool)) (Strategy[T], error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return Strategy[T]{}, fmt.Errorf("extract: strategy %q: invalid selector %q: %w", name, selector, err)
	}
	return Strategy[T]{
		Name:      name,
		Selector:  selector,
		Read:      read,
		Transform: transform,
		matcher:   m,
	}, nil
}

// MustStrategy is NewStrategy for built-in tables. It panics on an invalid
// selector.
func MustStrategy[T any](name, selector string, read Reader, transform func(string) (T, bool)) Strategy[T] {
	s, err := NewStrategy(name, selector, read, transform)
	if err != nil {
		panic(err)
	}
	return s
}

// Apply returns the first raw candidate that the transform accepts.
func (s Strategy[T]) Apply(doc *goquery.Document) (T, bool) {
	return s.applyFunc(doc, nil)
}

// Values returns every candidate the transform accepts, in reader order.
func (s Strategy[T]) Values(doc *goquery.Document) []T {
	var out []T
	s.applyFunc(doc, func(v T) bool {
		out = append(out, v)
		return false
	})
	return out
}

// applyFunc returns the first transformed candidate that keep accepts. A
// nil keep accepts everything.
func (s Strategy[T]) applyFunc(doc *goquery.Document, keep func(T) bool) (T, bool) {
	var zero T
	if s.matcher == nil || doc == nil {
		return zero, false
	}
	sel := doc.FindMatcher(s.matcher)
	if sel.Length() == 0 {
		return zero, false
	}
	for _, raw := range s.Read(sel) {
		v, ok := s.Transform(raw)
		if ok && (keep == nil || keep(v)) {
			return v, true
		}
	}
	return zero, false
}

// Chain is an ordered list of strategies for one field.
type Chain[T any] []Strategy[T]

// Resolve tries each strategy in order and stops at the first success. It
// returns the value and the name of the winning strategy.
func (c Chain[T]) Resolve(doc *goquery.Document) (T, string, bool) {
	return c.ResolveFunc(doc, nil)
}

// ResolveFunc is Resolve restricted to values keep accepts.
func (c Chain[T]) ResolveFunc(doc *goquery.Document, keep func(T) bool) (T, string, bool) {
	for _, s := range c {
		if v, ok := s.applyFunc(doc, keep); ok {
			return v, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}

// Values collects the accepted candidates of every strategy.
func (c Chain[T]) Values(doc *goquery.Document) []T {
	var out []T
	for _, s := range c {
		out = append(out, s.Values(doc)...)
	}
	return out
}

// Locator is a compiled selector used to find controls rather than values.
type Locator struct {
	Selector string
	matcher  cascadia.Selector
}

// NewLocator compiles selector.
func NewLocator(selector string) (Locator, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return Locator{}, fmt.Errorf("extract: invalid selector %q: %w", selector, err)
	}
	return Locator{Selector: selector, matcher: m}, nil
}

// MustLocators compiles every selector and panics on the first invalid one.
func MustLocators(selectors ...string) []Locator {
	out := make([]Locator, 0, len(selectors))
	for _, s := range selectors {
		l, err := NewLocator(s)
		if err != nil {
			panic(err)
		}
		out = append(out, l)
	}
	return out
}

// Find returns the elements l matches in doc.
func (l Locator) Find(doc *goquery.Document) *goquery.Selection {
	return doc.FindMatcher(l.matcher)
}

// Present reports whether l matches at least one element.
func (l Locator) Present(doc *goquery.Document) bool {
	return l.matcher != nil && doc != nil && l.Find(doc).Length() > 0
}

// FirstPresent returns the first locator that matches in doc.
func FirstPresent(doc *goquery.Document, locators []Locator) (Locator, bool) {
	for _, l := range locators {
		if l.Present(doc) {
			return l, true
		}
	}
	return Locator{}, false
}

// --- readers ---

// FirstText reads the first matched element's text.
func FirstText(sel *goquery.Selection) []string {
	return []string{sel.First().Text()}
}

// AttrOrText reads attr from the first matched element, falling back to its
// text when the attribute is missing or empty.
func AttrOrText(attr string) Reader {
	return func(sel *goquery.Selection) []string {
		first := sel.First()
		if v, ok := first.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return []string{v}
		}
		return []string{first.Text()}
	}
}

// EachText reads every matched element's text, in document order.
func EachText(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s.Text())
	})
	return out
}

// Joined reads every non-empty element text and joins them into a single
// candidate.
func Joined(sep string) Reader {
	return func(sel *goquery.Selection) []string {
		parts := nonEmpty(EachText(sel), nil)
		if len(parts) == 0 {
			return nil
		}
		return []string{strings.Join(parts, sep)}
	}
}

// Tail joins the texts of the last n matched elements, dropping those that
// contain any of the drop markers.
func Tail(n int, sep string, drop ...string) Reader {
	return func(sel *goquery.Selection) []string {
		texts := EachText(sel)
		if len(texts) > n {
			texts = texts[len(texts)-n:]
		}
		parts := nonEmpty(texts, drop)
		if len(parts) == 0 {
			return nil
		}
		return []string{strings.Join(parts, sep)}
	}
}

func nonEmpty(texts []string, drop []string) []string {
	out := make([]string, 0, len(texts))
next:
	for _, t := range texts {
		t = CollapseSpace(t)
		if t == "" {
			continue
		}
		for _, d := range drop {
			if strings.Contains(t, d) {
				continue next
			}
		}
		out = append(out, t)
	}
	return out
}
