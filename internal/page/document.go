// Package page models a rendered issue-detail page as an HTML node tree.
//
// The inline editor never touches markup directly; it goes through the
// helpers here to query, snapshot, hide and restore elements.
package page

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	issuePathRe   = regexp.MustCompile(`/issues/(\d+)`)
	projectHrefRe = regexp.MustCompile(`/projects/([^/?#]+)`)

	issuePageSel  = cascadia.MustCompile(".controller-issues.action-show")
	breadcrumbSel = cascadia.MustCompile(`.breadcrumb a[href*="/projects/"]`)
	bodySel       = cascadia.MustCompile("body")
)

// Document is a parsed page plus the URL path it was loaded from.
type Document struct {
	root   *html.Node
	path   string
	styles map[*html.Node]savedStyle
}

// savedStyle remembers an element's style attribute from before Hide.
type savedStyle struct {
	value string
	set   bool
}

// New wraps an already parsed tree.
func New(root *html.Node, path string) *Document {
	return &Document{root: root, path: path, styles: make(map[*html.Node]savedStyle)}
}

// Parse reads an HTML page. path is the URL path the page was served from and
// is where the issue id is taken from.
func Parse(r io.Reader, path string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}
	return New(root, path), nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Path returns the URL path of the page.
func (d *Document) Path() string { return d.path }

// Body returns the <body> element, or the root if there is none.
func (d *Document) Body() *html.Node {
	if body := bodySel.MatchFirst(d.root); body != nil {
		return body
	}
	return d.root
}

// First returns the first element in document order matching sel.
func (d *Document) First(sel cascadia.Selector) *html.Node {
	return sel.MatchFirst(d.root)
}

// IssueID returns the ticket number in the page path, or 0 when the path is
// not an issue path.
func (d *Document) IssueID() int {
	m := issuePathRe.FindStringSubmatch(d.path)
	if m == nil {
		return 0
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return id
}

// ProjectID returns the project identifier from the breadcrumb link, or "".
func (d *Document) ProjectID() string {
	a := d.First(breadcrumbSel)
	if a == nil {
		return ""
	}
	m := projectHrefRe.FindStringSubmatch(Attr(a, "href"))
	if m == nil {
		return ""
	}
	return m[1]
}

// IsIssuePage reports whether the page looks like an issue-detail page.
func (d *Document) IsIssuePage() bool {
	return d.First(issuePageSel) != nil || issuePathRe.MatchString(d.path)
}

// Hide sets display:none on n, remembering its previous style attribute.
func (d *Document) Hide(n *html.Node) {
	if _, ok := d.styles[n]; !ok {
		v, set := lookupAttr(n, "style")
		d.styles[n] = savedStyle{value: v, set: set}
	}
	setAttr(n, "style", "display: none;")
}

// Show undoes Hide, restoring the style attribute exactly.
func (d *Document) Show(n *html.Node) {
	saved, ok := d.styles[n]
	if !ok {
		return
	}
	delete(d.styles, n)
	if saved.set {
		setAttr(n, "style", saved.value)
	} else {
		removeAttr(n, "style")
	}
}

// Hidden reports whether n or one of its ancestors is styled display:none.
func Hidden(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && styleHidden(Attr(n, "style")) {
			return true
		}
	}
	return false
}

func styleHidden(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "display") &&
			strings.EqualFold(strings.TrimSpace(value), "none") {
			return true
		}
	}
	return false
}

// Contains reports whether b is a or a descendant of a.
func Contains(a, b *html.Node) bool {
	if a == nil {
		return false
	}
	for n := b; n != nil; n = n.Parent {
		if n == a {
			return true
		}
	}
	return false
}

// InnerHTML renders the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		// Render only fails on writer errors; bytes.Buffer does not fail.
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// SetInnerHTML replaces the children of n with the parsed markup.
func SetInnerHTML(n *html.Node, markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return fmt.Errorf("parsing fragment: %w", err)
	}
	removeChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

// Text returns the concatenated text content of n.
func Text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// SetText replaces the children of n with a single text node.
func SetText(n *html.Node, text string) {
	removeChildren(n)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// InsertAfter places n directly after ref.
func InsertAfter(ref, n *html.Node) {
	ref.Parent.InsertBefore(n, ref.NextSibling)
}

// Remove detaches n from its parent, if any.
func Remove(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Element creates a detached element with the given class and text.
func Element(tag, class, text string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	if class != "" {
		setAttr(n, "class", class)
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}

// HasClass reports whether n carries the CSS class.
func HasClass(n *html.Node, class string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		attrs = append(attrs, a)
	}
	n.Attr = attrs
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}
