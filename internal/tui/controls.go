package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/jbeckham/redmine-quickedit/internal/editor"
	"github.com/jbeckham/redmine-quickedit/internal/fields"
	"github.com/jbeckham/redmine-quickedit/internal/redmine"
)

// fieldControl is an edit control drawn inline in the page, in place of the
// hidden field value. Its view never contains empty lines.
type fieldControl interface {
	editor.Control
	Update(tea.Msg) tea.Cmd
	View() string
}

// controlFactory builds the terminal controls for the editor.
type controlFactory struct{}

func (controlFactory) NewControl(spec editor.ControlSpec) editor.Control {
	if spec.Field.Kind == fields.Selection {
		return newSelectionControl(spec)
	}
	return newInputControl(spec)
}

// --- Selection control ---

// selectionRows is how many options are visible at once.
const selectionRows = 6

// selectionItem is a single option in the selection list.
type selectionItem struct {
	ID    string
	Label string
}

// selectionSource adapts the options for the fuzzy matcher.
type selectionSource []selectionItem

func (s selectionSource) String(i int) string { return s[i].Label }
func (s selectionSource) Len() int            { return len(s) }

// selectionControl is a filterable option list. The first item is always
// the empty option.
type selectionControl struct {
	items    []selectionItem
	filtered []int // indices into items
	cursor   int
	initial  string
	filter   textinput.Model
	priority bool
}

func newSelectionControl(spec editor.ControlSpec) *selectionControl {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "Type to filter..."
	ti.CharLimit = 100

	items := make([]selectionItem, 0, len(spec.Options)+1)
	items = append(items, selectionItem{ID: "", Label: editor.EmptyLabel})
	for _, o := range spec.Options {
		items = append(items, selectionItem{ID: strconv.Itoa(o.ID), Label: o.Name})
	}

	s := &selectionControl{
		items:    items,
		initial:  spec.Initial,
		filter:   ti,
		priority: spec.Field.OptionsSource == redmine.OptionPriority,
	}
	s.applyFilter()
	for i, idx := range s.filtered {
		if items[idx].ID == spec.Initial {
			s.cursor = i
			break
		}
	}
	return s
}

// applyFilter ranks options against the filter text. The empty option is
// only offered while the filter is empty.
func (s *selectionControl) applyFilter() {
	query := strings.TrimSpace(s.filter.Value())
	s.filtered = s.filtered[:0]
	if query == "" {
		for i := range s.items {
			s.filtered = append(s.filtered, i)
		}
	} else {
		// FindFrom returns matches best first.
		for _, m := range fuzzy.FindFrom(query, selectionSource(s.items[1:])) {
			s.filtered = append(s.filtered, m.Index+1)
		}
	}
	if s.cursor >= len(s.filtered) {
		s.cursor = max(0, len(s.filtered)-1)
	}
}

// Value returns the id under the cursor, or the initial id when nothing
// matches the filter.
func (s *selectionControl) Value() string {
	if len(s.filtered) == 0 {
		return s.initial
	}
	return s.items[s.filtered[s.cursor]].ID
}

func (s *selectionControl) Focus() { s.filter.Focus() }

// SelectAll is a no-op; the filter starts empty.
func (s *selectionControl) SelectAll() {}

func (s *selectionControl) Update(msg tea.Msg) tea.Cmd {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "up", "ctrl+p":
			if s.cursor > 0 {
				s.cursor--
			}
			return nil
		case "down", "ctrl+n":
			if s.cursor < len(s.filtered)-1 {
				s.cursor++
			}
			return nil
		}
	}

	before := s.filter.Value()
	var cmd tea.Cmd
	s.filter, cmd = s.filter.Update(msg)
	if s.filter.Value() != before {
		s.cursor = 0
		s.applyFilter()
	}
	return cmd
}

// window returns the range of filtered rows currently shown.
func (s *selectionControl) window() (start, end int) {
	if s.cursor >= selectionRows {
		start = s.cursor - selectionRows + 1
	}
	end = min(start+selectionRows, len(s.filtered))
	return start, end
}

// clickRow moves the cursor to the option shown on row of the control view,
// where row 0 is the filter line. It reports whether an option was hit.
func (s *selectionControl) clickRow(row int) bool {
	start, end := s.window()
	i := start + row - 1
	if row < 1 || i >= end {
		return false
	}
	s.cursor = i
	return true
}

func (s *selectionControl) label(item selectionItem) string {
	if s.priority && item.ID != "" {
		return priorityLabel(item.Label)
	}
	return item.Label
}

func (s *selectionControl) View() string {
	lines := []string{s.filter.View()}

	start, end := s.window()
	for i := start; i < end; i++ {
		item := s.items[s.filtered[i]]
		if i == s.cursor {
			label := item.Label
			if icon := priorityIcon(item.Label); s.priority && icon != "" {
				label = icon + " " + label
			}
			lines = append(lines, controlSelectedStyle.Render("> "+label))
		} else {
			lines = append(lines, "  "+s.label(item))
		}
	}
	if len(s.filtered) == 0 {
		lines = append(lines, controlDimStyle.Render("  No matches"))
	}

	lines = append(lines, controlDimStyle.Render("↑/↓: choose  enter: save  esc: cancel"))
	return strings.Join(lines, "\n")
}

// --- Input control ---

// inputControl is a single-line input for dates, numbers and text.
type inputControl struct {
	input textinput.Model
	kind  fields.Kind
	// replace is set by SelectAll: the next typed text replaces the value.
	replace bool
}

func newInputControl(spec editor.ControlSpec) *inputControl {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 255
	ti.Width = 30
	switch spec.Field.Kind {
	case fields.Date:
		ti.Placeholder = "YYYY-MM-DD"
		ti.CharLimit = 10
		ti.Width = 12
	case fields.Number:
		ti.CharLimit = 20
		ti.Width = 12
	}
	ti.SetValue(spec.Initial)
	ti.CursorEnd()
	return &inputControl{input: ti, kind: spec.Field.Kind}
}

// Value returns text verbatim. Dates and numbers are trimmed.
func (c *inputControl) Value() string {
	if c.kind == fields.Text {
		return c.input.Value()
	}
	return strings.TrimSpace(c.input.Value())
}

func (c *inputControl) Focus() { c.input.Focus() }

func (c *inputControl) SelectAll() {
	c.replace = c.input.Value() != ""
}

func (c *inputControl) Update(msg tea.Msg) tea.Cmd {
	if km, ok := msg.(tea.KeyMsg); ok && c.replace {
		c.replace = false
		switch km.Type {
		case tea.KeyRunes, tea.KeySpace:
			c.input.SetValue("")
		case tea.KeyBackspace, tea.KeyDelete:
			c.input.SetValue("")
			return nil
		}
	}
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return cmd
}

func (c *inputControl) View() string {
	v := c.input.View()
	if c.replace {
		v = controlSelectedStyle.Render(c.input.Prompt+c.input.Value()) + " "
	}
	return v + "\n" + controlDimStyle.Render("enter: save  esc: cancel")
}
