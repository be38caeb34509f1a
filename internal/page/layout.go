package page

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Segment is a run of text on one layout line together with the element it
// came from.
type Segment struct {
	Text  string
	Node  *html.Node
	Col   int
	Width int
}

// Line is one terminal row of laid out page content.
type Line struct {
	Segments []Segment
}

// String returns the plain text of the line.
func (l Line) String() string {
	var b strings.Builder
	col := 0
	for _, s := range l.Segments {
		if s.Col > col {
			b.WriteString(strings.Repeat(" ", s.Col-col))
			col = s.Col
		}
		b.WriteString(s.Text)
		col += s.Width
	}
	return b.String()
}

// Layout is a page rendered into terminal lines.
type Layout struct {
	Lines []Line
}

// NodeAt returns the element under the cell at (col, row), or nil for empty
// space.
func (l *Layout) NodeAt(col, row int) *html.Node {
	if row < 0 || row >= len(l.Lines) {
		return nil
	}
	for _, s := range l.Lines[row].Segments {
		if col >= s.Col && col < s.Col+s.Width {
			return s.Node
		}
	}
	return nil
}

// LineOf returns the first row that shows n or one of its descendants, or -1.
func (l *Layout) LineOf(n *html.Node) int {
	for i, line := range l.Lines {
		for _, s := range line.Segments {
			if Contains(n, s.Node) {
				return i
			}
		}
	}
	return -1
}

// String returns the plain text of the whole layout.
func (l *Layout) String() string {
	lines := make([]string, len(l.Lines))
	for i, line := range l.Lines {
		lines[i] = line.String()
	}
	return strings.Join(lines, "\n")
}

// LayoutOptions configures Lay.
type LayoutOptions struct {
	// Width wraps text; zero disables wrapping.
	Width int
	// LabelWidth is the column the value cell of an attribute row starts at.
	LabelWidth int
	// Embed returns pre-rendered content for elements drawn by the caller
	// (the inline edit control). Every embedded line maps to the element.
	Embed func(n *html.Node) (string, bool)
	// EmbedWidth measures embedded lines, which may carry terminal escape
	// sequences. Defaults to runewidth.StringWidth.
	EmbedWidth func(string) int
}

// Lay renders the visible body of doc into lines. Hidden elements are
// skipped; attribute rows (".attribute" blocks and table rows) are kept on one
// line with the label cell padded to LabelWidth.
func Lay(doc *Document, opts LayoutOptions) *Layout {
	if opts.LabelWidth == 0 {
		opts.LabelWidth = 16
	}
	if opts.EmbedWidth == nil {
		opts.EmbedWidth = runewidth.StringWidth
	}
	b := &layoutBuilder{opts: opts}
	b.walk(doc.Body(), false)
	b.flush()
	// Drop leading and doubled blank lines left by nested blocks.
	var lines []Line
	for _, l := range b.lines {
		blank := len(l.Segments) == 0
		if blank && (len(lines) == 0 || len(lines[len(lines)-1].Segments) == 0) {
			continue
		}
		lines = append(lines, l)
	}
	for len(lines) > 0 && len(lines[len(lines)-1].Segments) == 0 {
		lines = lines[:len(lines)-1]
	}
	return &Layout{Lines: lines}
}

type layoutBuilder struct {
	opts   LayoutOptions
	lines  []Line
	cur    Line
	col    int
	indent int
}

var skipped = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Title: true,
	atom.Meta: true, atom.Link: true, atom.Noscript: true, atom.Template: true,
}

var blocks = map[atom.Atom]bool{
	atom.Div: true, atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Ul: true, atom.Ol: true,
	atom.Li: true, atom.Table: true, atom.Tbody: true, atom.Thead: true,
	atom.Form: true, atom.Section: true, atom.Pre: true, atom.Blockquote: true,
	atom.Select: true,
}

// rowLike reports whether n lays its children out side by side.
func rowLike(n *html.Node) bool {
	return n.DataAtom == atom.Tr || HasClass(n, "attribute")
}

// labelCell reports whether n is the label column of an attribute row.
func labelCell(n *html.Node) bool {
	if n.DataAtom == atom.Th || HasClass(n, "label") {
		return true
	}
	return n.DataAtom == atom.Td && n.Parent != nil && n.Parent.DataAtom == atom.Tr && firstElementChild(n.Parent) == n
}

func firstElementChild(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

func (b *layoutBuilder) walk(n *html.Node, inRow bool) {
	switch n.Type {
	case html.TextNode:
		b.text(n.Data, n.Parent)
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c, inRow)
		}
		return
	}

	if skipped[n.DataAtom] || Hidden(n) {
		return
	}

	if b.opts.Embed != nil {
		if content, ok := b.opts.Embed(n); ok {
			b.embed(content, n)
			return
		}
	}

	switch n.DataAtom {
	case atom.Br:
		b.flush()
		return
	case atom.Hr:
		b.flush()
		width := b.opts.Width
		if width <= 0 || width > 60 {
			width = 60
		}
		b.emit(strings.Repeat("─", width), n)
		b.flush()
		return
	case atom.Button:
		if b.col > b.indent {
			b.col++
		}
		b.emit("["+strings.TrimSpace(collapse(Text(n)))+"]", n)
		return
	}

	if rowLike(n) {
		b.flush()
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c, true)
		}
		b.flush()
		return
	}

	block := blocks[n.DataAtom] && !inRow
	if block {
		b.flush()
		if n.DataAtom == atom.H2 || n.DataAtom == atom.H3 {
			defer b.blank()
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.walk(c, inRow)
	}
	if inRow && labelCell(n) {
		b.padTo(b.opts.LabelWidth)
	}
	if block {
		b.flush()
	}
}

// text emits a text node with HTML whitespace collapsing.
func (b *layoutBuilder) text(data string, owner *html.Node) {
	s := collapse(data)
	if s == "" {
		return
	}
	if b.col == b.indent || b.endsWithSpace() {
		s = strings.TrimLeft(s, " ")
	}
	if s == "" {
		return
	}
	for _, word := range splitKeepSpaces(s) {
		w := runewidth.StringWidth(word)
		if b.opts.Width > 0 && b.col+w > b.opts.Width && b.col > b.indent && strings.TrimSpace(word) != "" {
			b.flush()
			word = strings.TrimLeft(word, " ")
		}
		b.emit(word, owner)
	}
}

func (b *layoutBuilder) endsWithSpace() bool {
	segs := b.cur.Segments
	if len(segs) == 0 {
		return false
	}
	return strings.HasSuffix(segs[len(segs)-1].Text, " ")
}

// emit appends text to the current line, merging with the previous segment
// when it belongs to the same element.
func (b *layoutBuilder) emit(text string, owner *html.Node) {
	b.emitWidth(text, owner, runewidth.StringWidth(text))
}

func (b *layoutBuilder) emitWidth(text string, owner *html.Node, w int) {
	if text == "" {
		return
	}
	segs := b.cur.Segments
	if n := len(segs); n > 0 && segs[n-1].Node == owner && segs[n-1].Col+segs[n-1].Width == b.col {
		segs[n-1].Text += text
		segs[n-1].Width += w
	} else {
		b.cur.Segments = append(segs, Segment{Text: text, Node: owner, Col: b.col, Width: w})
	}
	b.col += w
}

// embed places caller-rendered content. Continuation lines start at the
// column the content started at.
func (b *layoutBuilder) embed(content string, owner *html.Node) {
	start := b.col
	for i, line := range strings.Split(content, "\n") {
		if i > 0 {
			b.flush()
			b.col = start
		}
		b.emitWidth(line, owner, b.opts.EmbedWidth(line))
	}
}

func (b *layoutBuilder) padTo(col int) {
	if b.col < col {
		b.col = col
	} else {
		b.col++
	}
}

func (b *layoutBuilder) blank() {
	b.flush()
	b.lines = append(b.lines, Line{})
}

func (b *layoutBuilder) flush() {
	if segs := b.cur.Segments; len(segs) > 0 {
		last := &segs[len(segs)-1]
		trimmed := strings.TrimRight(last.Text, " ")
		last.Width -= runewidth.StringWidth(last.Text) - runewidth.StringWidth(trimmed)
		last.Text = trimmed
		b.lines = append(b.lines, b.cur)
	} else if b.col > b.indent {
		b.lines = append(b.lines, b.cur)
	}
	b.cur = Line{}
	b.col = b.indent
}

// collapse folds runs of HTML whitespace into single spaces.
func collapse(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			if !space {
				b.WriteByte(' ')
			}
			space = true
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return b.String()
}

// splitKeepSpaces splits s into words, each keeping its leading space.
func splitKeepSpaces(s string) []string {
	var out []string
	start := 0
	for i := 1; i < len(s); i++ {
		if s[i] == ' ' {
			out = append(out, s[start:i])
			start = i
		}
	}
	return append(out, s[start:])
}
