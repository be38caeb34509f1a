package tui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/net/html"

	"github.com/jbeckham/redmine-quickedit/internal/page"
)

func longPage(t *testing.T) *page.Document {
	t.Helper()
	var b strings.Builder
	b.WriteString("<body>")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, `<p class="row%d">line %d</p>`, i, i)
	}
	b.WriteString("</body>")
	doc, err := page.Parse(strings.NewReader(b.String()), "/issues/1")
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestPageViewNodeAtFollowsScroll(t *testing.T) {
	doc := longPage(t)
	v := newPageView(40, 10)
	v.render(doc, nil, nil)

	row3 := doc.First(cascadia.MustCompile(".row3"))
	if got := v.nodeAt(0, 3); got != row3 {
		t.Fatalf("expected row3 at top, got %v", got)
	}

	v.viewport.SetYOffset(5)
	if got := v.nodeAt(0, 3); got != doc.First(cascadia.MustCompile(".row8")) {
		t.Errorf("expected row8 after scrolling, got %v", got)
	}
	if v.nodeAt(0, 10) != nil || v.nodeAt(0, -1) != nil {
		t.Error("expected cells outside the viewport to miss")
	}
	if got := v.rowOf(row3, 0); got != 2 {
		t.Errorf("expected row offset 2, got %d", got)
	}
}

func TestPageViewReveal(t *testing.T) {
	doc := longPage(t)
	v := newPageView(40, 10)
	v.render(doc, nil, nil)

	v.reveal(doc.First(cascadia.MustCompile(".row25")))
	if v.viewport.YOffset != 16 {
		t.Errorf("expected offset 16, got %d", v.viewport.YOffset)
	}
	v.reveal(doc.First(cascadia.MustCompile(".row2")))
	if v.viewport.YOffset != 2 {
		t.Errorf("expected offset 2, got %d", v.viewport.YOffset)
	}
}

func TestPageViewRenderKeepsScrollAndStyles(t *testing.T) {
	doc := longPage(t)
	v := newPageView(40, 10)
	v.render(doc, nil, nil)
	v.viewport.SetYOffset(4)

	row5 := doc.First(cascadia.MustCompile(".row5"))
	styled := 0
	v.render(doc, func(n *html.Node) (string, bool) {
		if n == row5 {
			return "embedded", true
		}
		return "", false
	}, func(n *html.Node) (lipgloss.Style, bool) {
		styled++
		return lipgloss.NewStyle(), true
	})

	if v.viewport.YOffset != 4 {
		t.Errorf("expected scroll kept, got %d", v.viewport.YOffset)
	}
	if styled == 0 {
		t.Error("expected styler to be consulted")
	}
	if !strings.Contains(v.View(), "embedded") || strings.Contains(v.View(), "line 5") {
		t.Errorf("expected embedded content in place of row5, got:\n%s", v.View())
	}
}

func TestPageViewClipsLongLines(t *testing.T) {
	markup := "<body><p>" + strings.Repeat("x", 60) + "</p></body>"
	doc, err := page.Parse(strings.NewReader(markup), "/issues/1")
	if err != nil {
		t.Fatal(err)
	}
	v := newPageView(30, 5)
	v.render(doc, nil, nil)
	for _, line := range strings.Split(v.View(), "\n") {
		if w := lipgloss.Width(line); w > 30 {
			t.Errorf("line wider than the view: %d", w)
		}
	}
}
