package editor

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/jbeckham/redmine-quickedit/internal/fields"
	"github.com/jbeckham/redmine-quickedit/internal/page"
	"github.com/jbeckham/redmine-quickedit/internal/relay"
)

const issuePage = `<html><body class="controller-issues action-show">
<p class="breadcrumb"><a href="/projects/web">Web</a></p>
<div class="attributes">
<div class="status attribute"><div class="label">Status:</div><div class="value"><span class="badge">New</span></div></div>
<div class="category attribute"><div class="label">Category:</div><div class="value">-</div></div>
<div class="start-date attribute"><div class="label">Start date:</div><div class="value" style="color: red">2024/03/05</div></div>
<div class="estimated-hours attribute"><div class="label">Estimated time:</div><div class="value">40:30 h</div></div>
<div class="progress attribute"><div class="label">% Done:</div><div class="value"><p class="percent">45%</p></div></div>
</div>
<p class="author">Added by Ann</p>
</body></html>`

// fakeControl is a Control whose value tests set directly.
type fakeControl struct {
	spec     ControlSpec
	value    string
	focused  bool
	selected bool
}

func (c *fakeControl) Value() string { return c.value }
func (c *fakeControl) Focus()        { c.focused = true }
func (c *fakeControl) SelectAll()    { c.selected = true }

type fakeFactory struct {
	controls []*fakeControl
}

func (f *fakeFactory) NewControl(spec ControlSpec) Control {
	c := &fakeControl{spec: spec, value: spec.Initial}
	f.controls = append(f.controls, c)
	return c
}

func (f *fakeFactory) last() *fakeControl {
	return f.controls[len(f.controls)-1]
}

type fixture struct {
	doc     *page.Document
	editor  *Editor
	factory *fakeFactory
}

func newFixture(t *testing.T, path string, opts Options) *fixture {
	t.Helper()
	doc, err := page.Parse(strings.NewReader(issuePage), path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	}
	f := &fakeFactory{}
	return &fixture{doc: doc, editor: New(doc, fields.Default(), f, opts, nil), factory: f}
}

func (fx *fixture) node(t *testing.T, expr string) *html.Node {
	t.Helper()
	n := fx.doc.First(cascadia.MustCompile(expr))
	if n == nil {
		t.Fatalf("no element for %q", expr)
	}
	return n
}

func (fx *fixture) pageHTML(t *testing.T) string {
	t.Helper()
	return page.InnerHTML(fx.doc.Root())
}

func okResponse(data string) relay.Response {
	return relay.Response{Success: true, Data: json.RawMessage(data)}
}

const statuses = `{"issue_statuses":[{"id":1,"name":"New"},{"id":2,"name":"In Progress"},{"id":5,"name":"Closed"}]}`

func TestBeginThenCancelRestoresMarkup(t *testing.T) {
	for _, selector := range []string{
		".status .value",
		".category .label",
		".start-date .value",
		".estimated-hours .value",
		".progress .percent",
	} {
		t.Run(selector, func(t *testing.T) {
			fx := newFixture(t, "/issues/123", Options{})
			before := fx.pageHTML(t)

			req, err := fx.editor.Begin(fx.node(t, selector))
			if err != nil {
				t.Fatalf("Begin: %v", err)
			}
			if req != nil {
				// Selection field: answer with a list.
				if err := fx.editor.OptionsLoaded(req, okResponse(statuses)); err != nil {
					t.Fatalf("OptionsLoaded: %v", err)
				}
			}
			if fx.editor.State() != Editing {
				t.Fatalf("expected editing, got %s", fx.editor.State())
			}
			if fx.pageHTML(t) == before {
				t.Fatal("expected the page to change while editing")
			}

			fx.editor.Cancel()
			if fx.editor.State() != Idle || fx.editor.Active() {
				t.Fatalf("expected idle after cancel, got %s", fx.editor.State())
			}
			if after := fx.pageHTML(t); after != before {
				t.Errorf("markup not restored\nbefore: %s\nafter:  %s", before, after)
			}
		})
	}
}

func TestBeginHidesValueAndInsertsControl(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	value := fx.node(t, ".start-date .value")

	if _, err := fx.editor.Begin(value); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !page.Hidden(value) {
		t.Error("expected value element hidden")
	}
	container := fx.editor.Container()
	if container == nil || value.NextSibling != container {
		t.Fatal("expected control container right after the value element")
	}
	c := fx.factory.last()
	if c.spec.Initial != "2024-03-05" {
		t.Errorf("expected ISO initial value, got %q", c.spec.Initial)
	}
	if !c.focused {
		t.Error("expected control focused")
	}
	if c.selected {
		t.Error("date controls do not select all")
	}
}

func TestNumberControlsSelectAll(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{PackedDurations: true})
	if _, err := fx.editor.Begin(fx.node(t, ".estimated-hours .value")); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	c := fx.factory.last()
	if c.spec.Initial != "40.5" || !c.selected {
		t.Errorf("expected 40.5 with select-all, got %q selected=%v", c.spec.Initial, c.selected)
	}
}

func TestSecondBeginIsIgnored(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	if _, err := fx.editor.Begin(fx.node(t, ".start-date .value")); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	field := fx.editor.Field()

	req, err := fx.editor.Begin(fx.node(t, ".status .value"))
	if req != nil || err != nil {
		t.Fatalf("expected second Begin to be a no-op, got %v, %v", req, err)
	}
	if fx.editor.Field() != field || len(fx.factory.controls) != 1 {
		t.Error("expected the first session untouched")
	}
}

func TestBeginIgnoresUneditableTargetsAndPagesWithoutIssue(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	if req, err := fx.editor.Begin(fx.node(t, ".author")); req != nil || err != nil || fx.editor.Active() {
		t.Error("expected non-field click ignored")
	}

	fx = newFixture(t, "/projects/web", Options{})
	if _, err := fx.editor.Begin(fx.node(t, ".start-date .value")); err != nil || fx.editor.Active() {
		t.Error("expected editing disabled without an issue id")
	}
}

func TestOpenMissingValueElement(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	due, _ := fields.Default().Lookup("Due date")

	_, err := fx.editor.Open(due)
	var nf *FieldNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected FieldNotFoundError, got %v", err)
	}
	if fx.editor.State() != Idle {
		t.Errorf("expected idle, got %s", fx.editor.State())
	}
}

func TestSelectionOptionsRequest(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	req, err := fx.editor.Begin(fx.node(t, ".category .value"))
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if req == nil || req.Action != relay.ActionGetSelectOptions || req.Kind != "categories" || req.ProjectID != "web" {
		t.Fatalf("unexpected request %+v", req)
	}
	if fx.editor.State() != Opening || len(fx.factory.controls) != 0 {
		t.Error("expected opening with no control yet")
	}

	// The session is reserved while options load.
	if again, _ := fx.editor.Begin(fx.node(t, ".start-date .value")); again != nil || fx.editor.Field().Name != "Category" {
		t.Error("expected second edit ignored while opening")
	}
}

func TestOptionsLoadFailureReturnsToIdle(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	before := fx.pageHTML(t)
	req, _ := fx.editor.Begin(fx.node(t, ".status .value"))

	err := fx.editor.OptionsLoaded(req, relay.Response{Success: false, Error: "HTTP 500: Internal Server Error"})
	var le *OptionsLoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected OptionsLoadError, got %v", err)
	}
	if fx.editor.State() != Idle || fx.editor.Active() {
		t.Errorf("expected idle, got %s", fx.editor.State())
	}
	if fx.pageHTML(t) != before {
		t.Error("expected page untouched")
	}
}

func TestStaleOptionsResponseIgnored(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	stale, _ := fx.editor.Begin(fx.node(t, ".status .value"))
	fx.editor.Cancel()
	current, _ := fx.editor.Begin(fx.node(t, ".category .value"))

	if err := fx.editor.OptionsLoaded(stale, okResponse(statuses)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.editor.State() != Opening {
		t.Fatalf("expected still opening, got %s", fx.editor.State())
	}
	if err := fx.editor.OptionsLoaded(current, okResponse(`{"issue_categories":[{"id":3,"name":"UI"}]}`)); err != nil {
		t.Fatalf("OptionsLoaded: %v", err)
	}
	if got := fx.factory.last().spec.Options; len(got) != 1 || got[0].Name != "UI" {
		t.Errorf("unexpected options %+v", got)
	}
}

func TestSelectionPreselectsAndCommitsLabel(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	value := fx.node(t, ".status .value")
	req, _ := fx.editor.Begin(value)
	if err := fx.editor.OptionsLoaded(req, okResponse(statuses)); err != nil {
		t.Fatalf("OptionsLoaded: %v", err)
	}

	c := fx.factory.last()
	if c.spec.Initial != "1" {
		t.Fatalf("expected New (1) pre-selected, got %q", c.spec.Initial)
	}

	c.value = "5"
	update, err := fx.editor.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if update.Action != relay.ActionUpdateIssue || update.IssueID != 123 {
		t.Fatalf("unexpected request %+v", update)
	}
	if got := update.UpdateData["status_id"]; got != 5 {
		t.Errorf("expected status_id 5, got %#v", got)
	}
	if fx.editor.State() != Committing {
		t.Fatalf("expected committing, got %s", fx.editor.State())
	}

	if err := fx.editor.Committed(okResponse(`{"success":true}`)); err != nil {
		t.Fatalf("Committed: %v", err)
	}
	if got := page.Text(value); got != "Closed" {
		t.Errorf("expected Closed shown, got %q", got)
	}
	if page.Hidden(value) || fx.editor.Active() {
		t.Error("expected value shown and session gone")
	}
	if fx.doc.First(cascadia.MustCompile("." + ContainerClass)) != nil {
		t.Error("expected control container removed")
	}
}

func TestCommitEmptySelectionShowsPlaceholder(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	value := fx.node(t, ".status .value")
	req, _ := fx.editor.Begin(value)
	_ = fx.editor.OptionsLoaded(req, okResponse(statuses))

	fx.factory.last().value = ""
	update, err := fx.editor.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if v, ok := update.UpdateData["status_id"]; !ok || v != nil {
		t.Errorf("expected explicit null, got %#v", update.UpdateData)
	}
	_ = fx.editor.Committed(okResponse(`{"success":true}`))
	if got := page.Text(value); got != "-" {
		t.Errorf("expected placeholder, got %q", got)
	}
}

func TestCommitEmptyOptionClearsUnmatchedSelection(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	req, _ := fx.editor.Begin(fx.node(t, ".status .value"))
	// "New" is not offered, so nothing is preselected.
	if err := fx.editor.OptionsLoaded(req, okResponse(`{"issue_statuses":[{"id":2,"name":"In Progress"}]}`)); err != nil {
		t.Fatalf("OptionsLoaded: %v", err)
	}
	if got := fx.factory.last().spec.Initial; got != "" {
		t.Fatalf("expected no preselection, got %q", got)
	}

	update, err := fx.editor.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if update == nil {
		t.Fatal("expected an update clearing the field")
	}
	if v, ok := update.UpdateData["status_id"]; !ok || v != nil {
		t.Errorf("expected explicit null, got %#v", update.UpdateData)
	}
}

func TestCommitEmptyOptionOnPlaceholderIsCancel(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	before := fx.pageHTML(t)
	req, _ := fx.editor.Begin(fx.node(t, ".category .value"))
	if err := fx.editor.OptionsLoaded(req, okResponse(`{"issue_categories":[{"id":4,"name":"UI"}]}`)); err != nil {
		t.Fatalf("OptionsLoaded: %v", err)
	}

	update, err := fx.editor.Commit()
	if update != nil || err != nil {
		t.Fatalf("expected no-op for an already empty field, got %v, %v", update, err)
	}
	if fx.pageHTML(t) != before {
		t.Error("expected page restored")
	}
}

func TestCommitUnchangedIsCancel(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	before := fx.pageHTML(t)
	_, _ = fx.editor.Begin(fx.node(t, ".start-date .value"))

	req, err := fx.editor.Commit()
	if req != nil || err != nil {
		t.Fatalf("expected no-op, got %v, %v", req, err)
	}
	if fx.editor.Active() || fx.pageHTML(t) != before {
		t.Error("expected unchanged commit to restore the page")
	}
}

func TestCommitNumberAndDate(t *testing.T) {
	tests := []struct {
		selector string
		value    string
		attr     string
		want     any
	}{
		{".estimated-hours .value", "12.25", "estimated_hours", 12.25},
		{".progress .value", "80", "done_ratio", 80.0},
		{".start-date .value", "2024-04-01", "start_date", "2024-04-01"},
		{".start-date .value", "", "start_date", nil},
	}
	for _, tt := range tests {
		t.Run(tt.attr+"="+tt.value, func(t *testing.T) {
			fx := newFixture(t, "/issues/7", Options{})
			value := fx.node(t, tt.selector)
			_, _ = fx.editor.Begin(value)
			fx.factory.last().value = tt.value

			req, err := fx.editor.Commit()
			if err != nil {
				t.Fatalf("Commit: %v", err)
			}
			if got := req.UpdateData[tt.attr]; got != tt.want {
				t.Errorf("expected %#v, got %#v", tt.want, got)
			}
			_ = fx.editor.Committed(okResponse(`{"success":true}`))
			want := tt.value
			if want == "" {
				want = "-"
			}
			if got := page.Text(value); got != want {
				t.Errorf("expected %q shown, got %q", want, got)
			}
		})
	}
}

func TestCommitRejectsInvalidValues(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	_, _ = fx.editor.Begin(fx.node(t, ".progress .value"))

	fx.factory.last().value = "150"
	_, err := fx.editor.Commit()
	var iv *InvalidValueError
	if !errors.As(err, &iv) {
		t.Fatalf("expected InvalidValueError, got %v", err)
	}
	if fx.editor.State() != Editing {
		t.Errorf("expected editing, got %s", fx.editor.State())
	}

	fx.factory.last().value = "abc"
	if _, err := fx.editor.Commit(); !errors.As(err, &iv) {
		t.Errorf("expected InvalidValueError, got %v", err)
	}
}

func TestCommitFailureKeepsSession(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	value := fx.node(t, ".start-date .value")
	_, _ = fx.editor.Begin(value)
	c := fx.factory.last()
	c.value = "2024-05-01"
	_, _ = fx.editor.Commit()

	err := fx.editor.Committed(relay.Response{Success: false, Error: "HTTP 403: Forbidden (you do not have permission to edit this issue)"})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected update error, got %v", err)
	}
	if fx.editor.State() != Editing || fx.editor.Control() != Control(c) {
		t.Fatalf("expected session kept, got %s", fx.editor.State())
	}
	if !page.Hidden(value) {
		t.Error("expected value still hidden behind the control")
	}

	// Retry succeeds with the same control.
	if _, err := fx.editor.Commit(); err != nil {
		t.Fatalf("retry Commit: %v", err)
	}
	if err := fx.editor.Committed(okResponse(`{"success":true}`)); err != nil {
		t.Fatalf("retry Committed: %v", err)
	}
	if page.Text(value) != "2024-05-01" {
		t.Errorf("unexpected text %q", page.Text(value))
	}
}

func TestCancelIgnoredWhileCommitting(t *testing.T) {
	fx := newFixture(t, "/issues/123", Options{})
	_, _ = fx.editor.Begin(fx.node(t, ".start-date .value"))
	fx.factory.last().value = "2024-05-01"
	_, _ = fx.editor.Commit()

	fx.editor.Cancel()
	if fx.editor.State() != Committing {
		t.Errorf("expected committing, got %s", fx.editor.State())
	}
}

func TestClick(t *testing.T) {
	tests := []struct {
		name      string
		outside   OutsideClick
		target    func(t *testing.T, fx *fixture) *html.Node
		wantState State
		wantReq   bool
	}{
		{
			name:      "outside commits by default",
			target:    func(t *testing.T, fx *fixture) *html.Node { return fx.node(t, ".author") },
			wantState: Committing,
			wantReq:   true,
		},
		{
			name:      "outside cancels when configured",
			outside:   OutsideCancel,
			target:    func(t *testing.T, fx *fixture) *html.Node { return fx.node(t, ".author") },
			wantState: Idle,
		},
		{
			name:      "save button",
			outside:   OutsideCancel,
			target:    func(t *testing.T, fx *fixture) *html.Node { return fx.node(t, "."+SaveClass) },
			wantState: Committing,
			wantReq:   true,
		},
		{
			name:      "cancel button",
			target:    func(t *testing.T, fx *fixture) *html.Node { return fx.node(t, "."+CancelClass) },
			wantState: Idle,
		},
		{
			name:      "inside control",
			target:    func(t *testing.T, fx *fixture) *html.Node { return fx.node(t, "."+ControlClass) },
			wantState: Editing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, "/issues/123", Options{OutsideClick: tt.outside})
			_, _ = fx.editor.Begin(fx.node(t, ".start-date .value"))
			fx.factory.last().value = "2024-06-01"

			req, err := fx.editor.Click(tt.target(t, fx))
			if err != nil {
				t.Fatalf("Click: %v", err)
			}
			if (req != nil) != tt.wantReq {
				t.Errorf("expected request=%v, got %+v", tt.wantReq, req)
			}
			if fx.editor.State() != tt.wantState {
				t.Errorf("expected %s, got %s", tt.wantState, fx.editor.State())
			}
		})
	}
}
