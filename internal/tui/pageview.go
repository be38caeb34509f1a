package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/net/html"

	"github.com/jbeckham/redmine-quickedit/internal/page"
)

// pageView shows the laid out issue page in a scrollable viewport and maps
// screen cells back to page elements.
type pageView struct {
	viewport viewport.Model
	layout   *page.Layout
	width    int
	height   int
}

func newPageView(width, height int) *pageView {
	vp := viewport.New(width, max(height, 1))
	// Use j/k for scrolling
	vp.KeyMap.Up.SetKeys("up", "k")
	vp.KeyMap.Down.SetKeys("down", "j")
	return &pageView{viewport: vp, layout: &page.Layout{}, width: width, height: height}
}

// styler returns the style of a page element, or false to draw it plain.
type styler func(n *html.Node) (lipgloss.Style, bool)

// render lays out doc and replaces the viewport content, keeping the scroll
// position.
func (v *pageView) render(doc *page.Document, embed func(*html.Node) (string, bool), style styler) {
	width := v.width - 2 // small margin
	if width < 20 {
		width = 20
	}
	v.layout = page.Lay(doc, page.LayoutOptions{
		Width:      width,
		Embed:      embed,
		EmbedWidth: lipgloss.Width,
	})

	lines := make([]string, len(v.layout.Lines))
	for i, line := range v.layout.Lines {
		lines[i] = renderLine(line, style)
		// Unbreakable words and wide controls must not wrap the viewport.
		if v.width > 0 {
			lines[i] = ansi.Truncate(lines[i], v.width, "")
		}
	}

	offset := v.viewport.YOffset
	v.viewport.SetContent(strings.Join(lines, "\n"))
	v.viewport.SetYOffset(offset)
}

// renderLine draws one layout line, padding segments to their columns.
func renderLine(line page.Line, style styler) string {
	var b strings.Builder
	col := 0
	for _, s := range line.Segments {
		if s.Col > col {
			b.WriteString(strings.Repeat(" ", s.Col-col))
			col = s.Col
		}
		text := s.Text
		if style != nil {
			if st, ok := style(s.Node); ok {
				text = st.Render(text)
			}
		}
		b.WriteString(text)
		col += s.Width
	}
	return b.String()
}

// nodeAt returns the element drawn at viewport cell (x, y).
func (v *pageView) nodeAt(x, y int) *html.Node {
	if y < 0 || y >= v.viewport.Height {
		return nil
	}
	return v.layout.NodeAt(x, y+v.viewport.YOffset)
}

// rowOf returns the viewport row y as a row relative to the first line
// showing n, or -1 when y is above it.
func (v *pageView) rowOf(n *html.Node, y int) int {
	first := v.layout.LineOf(n)
	if first < 0 {
		return -1
	}
	row := y + v.viewport.YOffset - first
	if row < 0 {
		return -1
	}
	return row
}

// reveal scrolls the viewport so the first line showing n is visible.
func (v *pageView) reveal(n *html.Node) {
	line := v.layout.LineOf(n)
	if line < 0 {
		return
	}
	switch {
	case line < v.viewport.YOffset:
		v.viewport.SetYOffset(line)
	case line >= v.viewport.YOffset+v.viewport.Height:
		v.viewport.SetYOffset(line - v.viewport.Height + 1)
	}
}

// Update processes scroll keys and mouse wheel events.
func (v *pageView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return cmd
}

// View renders the viewport.
func (v *pageView) View() string {
	return v.viewport.View()
}

// setSize updates the viewport dimensions.
func (v *pageView) setSize(width, height int) {
	v.width = width
	v.height = height
	v.viewport.Width = width
	v.viewport.Height = max(height, 1)
}
