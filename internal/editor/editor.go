// Package editor implements the inline edit state machine for a single page.
//
// The editor owns at most one edit session. It mutates the page document
// directly (snapshot, hide, insert control container, restore) but leaves
// drawing and input to a ControlFactory, and it never performs I/O: every
// transition that needs the tracker returns a relay.Request for the caller to
// dispatch, and the caller feeds the response back in.
package editor

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/jbeckham/redmine-quickedit/internal/codec"
	"github.com/jbeckham/redmine-quickedit/internal/fields"
	"github.com/jbeckham/redmine-quickedit/internal/page"
	"github.com/jbeckham/redmine-quickedit/internal/redmine"
	"github.com/jbeckham/redmine-quickedit/internal/relay"
)

// State is the editor's lifecycle state.
type State int

const (
	Idle State = iota
	// Opening means a selection field is waiting for its options.
	Opening
	Editing
	Committing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Opening:
		return "opening"
	case Editing:
		return "editing"
	case Committing:
		return "committing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// OutsideClick selects what a click outside the control does.
type OutsideClick string

const (
	OutsideCommit OutsideClick = "commit"
	OutsideCancel OutsideClick = "cancel"
)

// Options tunes editor behaviour.
type Options struct {
	OutsideClick OutsideClick
	// PackedDurations reads bare numbers of 1000 or more as HHMM when
	// decoding duration fields.
	PackedDurations bool
	// Now is used for dates shown without a year.
	Now func() time.Time
}

// Class names of the elements the editor inserts into the page.
const (
	ContainerClass = "quick-edit-container"
	ControlClass   = "quick-edit-control"
	SaveClass      = "quick-edit-save"
	CancelClass    = "quick-edit-cancel"
)

// EmptyLabel is shown for the empty option of a selection control.
const EmptyLabel = "-- none --"

// ControlSpec describes the control to build for a session.
type ControlSpec struct {
	Field *fields.Descriptor
	// Initial is the decoded starting value: an ISO date, a number, text, or
	// for selections the id of the pre-selected option ("" for none).
	Initial string
	// Options lists the choices of a selection control, without the empty
	// option.
	Options []redmine.Option
}

// Control is a live editing widget.
type Control interface {
	// Value returns the control value in the form ControlSpec.Initial uses.
	Value() string
	Focus()
	// SelectAll selects the whole value so typing replaces it.
	SelectAll()
}

// ControlFactory builds controls. Implementations draw them wherever the
// ControlClass placeholder element is laid out.
type ControlFactory interface {
	NewControl(spec ControlSpec) Control
}

// session is one in-progress edit.
type session struct {
	field     *fields.Descriptor
	value     *html.Node
	markup    string
	text      string
	initial   string
	options   []redmine.Option
	container *html.Node
	save      *html.Node
	cancel    *html.Node
	control   Control
	submitted string
	// pending is the options request the session waits on.
	pending *relay.Request
	// decoded is false when a selection's text matched no option, so
	// initial does not describe the current value.
	decoded bool
}

// Editor is the inline edit state machine for one page.
type Editor struct {
	doc      *page.Document
	resolver fields.Resolver
	factory  ControlFactory
	opts     Options
	logger   *slog.Logger

	state   State
	session *session
}

// New creates an editor for doc. A nil logger uses slog.Default.
func New(doc *page.Document, resolver fields.Resolver, factory ControlFactory, opts Options, logger *slog.Logger) *Editor {
	if opts.OutsideClick == "" {
		opts.OutsideClick = OutsideCommit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{doc: doc, resolver: resolver, factory: factory, opts: opts, logger: logger}
}

// State returns the current state.
func (e *Editor) State() State { return e.state }

// Active reports whether a session exists.
func (e *Editor) Active() bool { return e.session != nil }

// Field returns the field of the current session, or nil.
func (e *Editor) Field() *fields.Descriptor {
	if e.session == nil {
		return nil
	}
	return e.session.field
}

// Control returns the live control, or nil when none is shown.
func (e *Editor) Control() Control {
	if e.session == nil {
		return nil
	}
	return e.session.control
}

// Container returns the inserted control container, or nil.
func (e *Editor) Container() *html.Node {
	if e.session == nil {
		return nil
	}
	return e.session.container
}

// Begin starts editing the field that target belongs to. It is a no-op while
// a session exists, when the page has no issue id, or when target is not part
// of an editable field. Selection fields return the options request to
// dispatch; pass its response to OptionsLoaded.
func (e *Editor) Begin(target *html.Node) (*relay.Request, error) {
	if e.session != nil {
		e.logger.Debug("edit already active, ignoring", "state", e.state)
		return nil, nil
	}
	field, ok := e.resolver.Resolve(e.doc, target)
	if !ok {
		return nil, nil
	}
	return e.Open(field)
}

// Open starts editing field directly.
func (e *Editor) Open(field *fields.Descriptor) (*relay.Request, error) {
	if e.session != nil || e.doc.IssueID() == 0 {
		return nil, nil
	}

	value := field.ValueElement(e.doc)
	if value == nil {
		return nil, &FieldNotFoundError{Field: field.Name}
	}

	e.session = &session{
		field:  field,
		value:  value,
		markup: page.InnerHTML(value),
		text:   strings.TrimSpace(page.Text(value)),
	}
	e.logger.Debug("edit started", "field", field.Name, "kind", field.Kind, "text", e.session.text)

	if field.Kind == fields.Selection {
		e.state = Opening
		e.session.pending = &relay.Request{
			Action:    relay.ActionGetSelectOptions,
			Kind:      string(field.OptionsSource),
			ProjectID: e.doc.ProjectID(),
		}
		return e.session.pending, nil
	}

	e.session.decoded = true
	e.mount(strategyFor(field.Kind).decode(e.session.text, field, e.opts))
	return nil, nil
}

// OptionsLoaded completes opening a selection field with the response to req,
// the request Begin returned. Responses to requests of an abandoned session
// are ignored. A failed response aborts the edit and returns an
// *OptionsLoadError.
func (e *Editor) OptionsLoaded(req *relay.Request, resp relay.Response) error {
	if e.state != Opening || e.session.pending != req {
		return nil
	}
	s := e.session

	abort := func(err error) error {
		e.session = nil
		e.state = Idle
		return &OptionsLoadError{Field: s.field.Name, Err: err}
	}

	if err := resp.Err(); err != nil {
		return abort(err)
	}
	opts, err := redmine.ExtractOptions(s.field.OptionsSource, resp.Data)
	if err != nil {
		return abort(err)
	}

	s.options = opts
	initial, ok := preselect(opts, s.text)
	s.decoded = ok || s.text == "" || s.text == "-"
	e.mount(initial)
	return nil
}

// preselect returns the id of the option whose name or id is text.
func preselect(opts []redmine.Option, text string) (string, bool) {
	for _, o := range opts {
		id := strconv.Itoa(o.ID)
		if o.Name == text || id == text {
			return id, true
		}
	}
	return "", false
}

// mount hides the value element and shows the control after it.
func (e *Editor) mount(initial string) {
	s := e.session
	s.initial = initial

	s.container = page.Element("div", ContainerClass, "")
	s.container.AppendChild(page.Element("div", ControlClass, ""))
	buttons := page.Element("div", "quick-edit-buttons", "")
	s.save = page.Element("button", SaveClass, "Save")
	s.cancel = page.Element("button", CancelClass, "Cancel")
	buttons.AppendChild(s.save)
	buttons.AppendChild(s.cancel)
	s.container.AppendChild(buttons)

	e.doc.Hide(s.value)
	page.InsertAfter(s.value, s.container)

	s.control = e.factory.NewControl(ControlSpec{Field: s.field, Initial: initial, Options: s.options})
	s.control.Focus()
	if s.field.Kind == fields.Text || s.field.Kind == fields.Number {
		s.control.SelectAll()
	}
	e.state = Editing
}

// Commit submits the control value. An unchanged value cancels the edit
// instead. Values that cannot be encoded return an error and keep the session.
func (e *Editor) Commit() (*relay.Request, error) {
	if e.state != Editing {
		return nil, nil
	}
	s := e.session
	v := s.control.Value()
	if v == s.text || (s.decoded && v == s.initial) {
		e.logger.Debug("value unchanged, cancelling", "field", s.field.Name)
		e.Cancel()
		return nil, nil
	}

	encoded, err := strategyFor(s.field.Kind).encode(v)
	if err != nil {
		return nil, &InvalidValueError{Field: s.field.Name, Err: err}
	}
	if f, ok := encoded.(float64); ok && !s.field.Bounds.Contains(f) {
		return nil, &InvalidValueError{
			Field: s.field.Name,
			Err:   fmt.Errorf("%s is outside %s..%s", codec.FormatNumber(f), codec.FormatNumber(s.field.Bounds.Min), codec.FormatNumber(s.field.Bounds.Max)),
		}
	}

	s.submitted = v
	e.state = Committing
	e.logger.Debug("committing", "field", s.field.Name, "attr", s.field.APIAttribute, "value", encoded)
	return &relay.Request{
		Action:     relay.ActionUpdateIssue,
		IssueID:    e.doc.IssueID(),
		UpdateData: map[string]any{s.field.APIAttribute: encoded},
	}, nil
}

// Committed applies the update response. On success the value element shows
// the new value and the session ends. On failure the control stays up so the
// user can retry or cancel.
func (e *Editor) Committed(resp relay.Response) error {
	if e.state != Committing {
		return nil
	}
	s := e.session
	if err := resp.Err(); err != nil {
		e.state = Editing
		return fmt.Errorf("updating %s: %w", s.field.Name, err)
	}

	page.SetText(s.value, strategyFor(s.field.Kind).display(s, s.submitted))
	e.teardown()
	return nil
}

// Cancel restores the value element exactly as it was and ends the session.
// An update already submitted cannot be cancelled.
func (e *Editor) Cancel() {
	switch e.state {
	case Opening:
		e.session = nil
		e.state = Idle
	case Editing:
		s := e.session
		if page.InnerHTML(s.value) != s.markup {
			if err := page.SetInnerHTML(s.value, s.markup); err != nil {
				e.logger.Error("restoring field markup", "field", s.field.Name, "err", err)
			}
		}
		e.teardown()
	}
}

func (e *Editor) teardown() {
	s := e.session
	e.doc.Show(s.value)
	page.Remove(s.container)
	e.session = nil
	e.state = Idle
}

// Click handles a single click on target while editing. The Save and Cancel
// buttons do what they say; clicks elsewhere in the container are left to the
// control; clicks outside it commit or cancel per Options.OutsideClick.
func (e *Editor) Click(target *html.Node) (*relay.Request, error) {
	if e.state != Editing {
		return nil, nil
	}
	s := e.session
	switch {
	case page.Contains(s.save, target):
		return e.Commit()
	case page.Contains(s.cancel, target):
		e.Cancel()
		return nil, nil
	case page.Contains(s.container, target):
		return nil, nil
	}
	if e.opts.OutsideClick == OutsideCancel {
		e.Cancel()
		return nil, nil
	}
	return e.Commit()
}
