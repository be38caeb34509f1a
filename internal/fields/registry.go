// Package fields maps logical issue fields to the page elements that show
// them and to the API attribute an edit is written to.
package fields

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/jbeckham/redmine-quickedit/internal/page"
	"github.com/jbeckham/redmine-quickedit/internal/redmine"
)

// Kind is the editing control family of a field.
type Kind int

const (
	Selection Kind = iota
	Date
	Number
	Text
)

func (k Kind) String() string {
	switch k {
	case Selection:
		return "selection"
	case Date:
		return "date"
	case Number:
		return "number"
	case Text:
		return "text"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// NumberFormat says how a number field is displayed on the page.
type NumberFormat int

const (
	Plain NumberFormat = iota
	// Duration values render as "H:MM h".
	Duration
	// Percent values render with a trailing "%".
	Percent
)

// Bounds limits a number field.
type Bounds struct {
	Min, Max, Step float64
}

// Contains reports whether v is within the bounds.
func (b *Bounds) Contains(v float64) bool {
	return b == nil || (v >= b.Min && v <= b.Max)
}

// Descriptor describes one editable field.
type Descriptor struct {
	Name           string
	LabelSelectors []string
	ValueSelectors []string
	Kind           Kind
	APIAttribute   string
	OptionsSource  redmine.OptionKind
	Bounds         *Bounds
	Format         NumberFormat

	labels []cascadia.Selector
	values []cascadia.Selector
}

// ValueElement returns the first element matched by the value selectors, or
// nil.
func (d *Descriptor) ValueElement(doc *page.Document) *html.Node {
	return first(doc, d.values)
}

// LabelElement returns the first element matched by the label selectors, or
// nil.
func (d *Descriptor) LabelElement(doc *page.Document) *html.Node {
	return first(doc, d.labels)
}

func first(doc *page.Document, sels []cascadia.Selector) *html.Node {
	for _, sel := range sels {
		if n := doc.First(sel); n != nil {
			return n
		}
	}
	return nil
}

// matches reports whether the first element of any label or value selector is
// n or contains it. Label selectors are tried before value selectors.
func (d *Descriptor) matches(doc *page.Document, n *html.Node) bool {
	for _, sels := range [][]cascadia.Selector{d.labels, d.values} {
		for _, sel := range sels {
			if el := doc.First(sel); el != nil && page.Contains(el, n) {
				return true
			}
		}
	}
	return false
}

// Resolver finds the field a page node belongs to.
type Resolver interface {
	Resolve(doc *page.Document, n *html.Node) (*Descriptor, bool)
}

// Registry is an ordered, immutable set of field descriptors.
type Registry struct {
	fields []*Descriptor
}

// New compiles the selectors of each descriptor.
func New(descs ...Descriptor) (*Registry, error) {
	r := &Registry{}
	for _, d := range descs {
		d := d
		if len(d.LabelSelectors) == 0 || len(d.ValueSelectors) == 0 {
			return nil, fmt.Errorf("field %q: label and value selectors are required", d.Name)
		}
		if d.Kind == Selection && d.OptionsSource == "" {
			return nil, fmt.Errorf("field %q: selection fields need an options source", d.Name)
		}
		var err error
		if d.labels, err = compile(d.LabelSelectors); err != nil {
			return nil, fmt.Errorf("field %q: %w", d.Name, err)
		}
		if d.values, err = compile(d.ValueSelectors); err != nil {
			return nil, fmt.Errorf("field %q: %w", d.Name, err)
		}
		r.fields = append(r.fields, &d)
	}
	return r, nil
}

func compile(exprs []string) ([]cascadia.Selector, error) {
	sels := make([]cascadia.Selector, 0, len(exprs))
	for _, expr := range exprs {
		sel, err := cascadia.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("selector %q: %w", expr, err)
		}
		sels = append(sels, sel)
	}
	return sels, nil
}

// Fields returns the descriptors in resolution order.
func (r *Registry) Fields() []*Descriptor {
	return r.fields
}

// Resolve returns the first descriptor whose label or value element is n or
// an ancestor of n.
func (r *Registry) Resolve(doc *page.Document, n *html.Node) (*Descriptor, bool) {
	if n == nil {
		return nil, false
	}
	for _, d := range r.fields {
		if d.matches(doc, n) {
			return d, true
		}
	}
	return nil, false
}

// Lookup finds a descriptor by display name or API attribute, ignoring case.
// "estimated_hours" and "Estimated time" both name the same field.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	for _, d := range r.fields {
		if strings.EqualFold(d.Name, name) || strings.EqualFold(d.APIAttribute, name) {
			return d, true
		}
	}
	return nil, false
}

// Editable pairs a descriptor with the label element found on a page.
type Editable struct {
	Field *Descriptor
	Label *html.Node
}

// Editable lists the fields whose label is present on the page, in
// registry order.
func (r *Registry) Editable(doc *page.Document) []Editable {
	var out []Editable
	for _, d := range r.fields {
		if label := d.LabelElement(doc); label != nil {
			out = append(out, Editable{Field: d, Label: label})
		}
	}
	return out
}
