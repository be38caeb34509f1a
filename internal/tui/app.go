package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jbeckham/redmine-quickedit/internal/editor"
	"github.com/jbeckham/redmine-quickedit/internal/fields"
	"github.com/jbeckham/redmine-quickedit/internal/page"
	"github.com/jbeckham/redmine-quickedit/internal/redmine"
	"github.com/jbeckham/redmine-quickedit/internal/relay"
)

// flashDuration is how long a status message stays up.
const flashDuration = 3 * time.Second

// doubleClickWindow is the longest gap between two presses on the same
// element that still counts as a double-click.
const doubleClickWindow = 400 * time.Millisecond

// headerHeight is the number of rows above the page viewport.
const headerHeight = 1

// --- Messages ---

// pageLoadedMsg delivers the page to show (or an error).
type pageLoadedMsg struct {
	doc *page.Document
	err error
}

// optionsLoadedMsg delivers the response to a selection options request.
type optionsLoadedMsg struct {
	req  *relay.Request
	resp relay.Response
}

// committedMsg delivers the response to an issue update.
type committedMsg struct {
	field string
	resp  relay.Response
}

// flashMsg sets a temporary status message.
type flashMsg struct {
	text  string
	isErr bool
}

// clearFlashMsg clears the flash it was scheduled for.
type clearFlashMsg struct {
	seq int
}

// pageChangedMsg is sent when the page source changes on disk.
type pageChangedMsg struct{}

// --- App model ---

// Options configures the App.
type Options struct {
	// IssueID is the issue to load when Load is nil.
	IssueID int
	// Load produces the page to edit. When nil the issue is fetched through
	// the relay and rendered.
	Load func(ctx context.Context) (*page.Document, error)
	// Registry lists the editable fields. Defaults to fields.Default().
	Registry *fields.Registry
	Editor   editor.Options
	Render   page.RenderOptions
	// IssueURL is what the copy key puts on the clipboard.
	IssueURL string
	// Changes signals that the page source changed. The page is reloaded
	// unless an edit is in progress.
	Changes <-chan struct{}
	Logger  *slog.Logger
}

// App is the root bubbletea model for redmine-quickedit.
type App struct {
	width  int
	height int
	ready  bool

	relay    *relay.Relay
	opts     Options
	registry *fields.Registry
	logger   *slog.Logger
	keys     KeyMap

	doc     *page.Document
	editor  *editor.Editor
	view    *pageView
	loading bool
	loadErr error

	editable []fields.Editable
	focus    int // index into editable, -1 for none

	now           func() time.Time
	lastClick     time.Time
	lastClickNode *html.Node

	flash      string // transient status message
	flashIsErr bool   // true if the flash is an error
	flashSeq   int    // bumped for every new flash
}

// NewApp creates a new App model.
// Pass a nil relay and no Load func to run without a tracker (for testing).
func NewApp(r *relay.Relay, opts Options) App {
	if opts.Registry == nil {
		opts.Registry = fields.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Load == nil && r != nil {
		opts.Load = RelayLoader(r, opts.IssueID, opts.Render)
	}
	return App{
		relay:    r,
		opts:     opts,
		registry: opts.Registry,
		logger:   opts.Logger,
		keys:     DefaultKeyMap,
		view:     newPageView(0, 0),
		loading:  opts.Load != nil,
		focus:    -1,
		now:      time.Now,
	}
}

// RelayLoader returns a loader that fetches an issue and its project through
// the relay and renders the issue page. The project only improves the
// breadcrumb, so failing to load it is not an error.
func RelayLoader(r *relay.Relay, issueID int, opts page.RenderOptions) func(context.Context) (*page.Document, error) {
	return func(ctx context.Context) (*page.Document, error) {
		resp := <-r.Dispatch(ctx, relay.Request{Action: relay.ActionGetIssueData, IssueID: issueID})
		if err := resp.Err(); err != nil {
			return nil, fmt.Errorf("loading issue %d: %w", issueID, err)
		}
		issue, err := redmine.DecodeIssue(resp.Data)
		if err != nil {
			return nil, err
		}

		var project *redmine.Project
		if issue.Project != nil {
			presp := <-r.Dispatch(ctx, relay.Request{
				Action:    relay.ActionGetProject,
				ProjectID: strconv.Itoa(issue.Project.ID),
			})
			if presp.Err() == nil {
				project, _ = redmine.DecodeProject(presp.Data)
			}
		}
		return page.Render(issue, project, opts)
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	if a.opts.Changes == nil {
		return a.cmdLoad()
	}
	return tea.Batch(a.cmdLoad(), a.waitForChange())
}

// waitForChange returns a Cmd that waits for the next page source change.
func (a App) waitForChange() tea.Cmd {
	changes := a.opts.Changes
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return pageChangedMsg{}
	}
}

// cmdLoad returns a Cmd that produces the page.
func (a App) cmdLoad() tea.Cmd {
	load := a.opts.Load
	if load == nil {
		return nil
	}
	return func() tea.Msg {
		doc, err := load(context.Background())
		return pageLoadedMsg{doc: doc, err: err}
	}
}

// Update implements tea.Model. Every new flash message schedules its own
// removal.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m, ok := msg.(clearFlashMsg); ok {
		if m.seq == a.flashSeq {
			a.flash = ""
		}
		return a, nil
	}

	prev := a.flash
	model, cmd := a.update(msg)
	next := model.(App)
	if next.flash != "" && next.flash != prev {
		next.flashSeq++
		cmd = tea.Batch(cmd, clearFlashAfter(next.flashSeq))
	}
	return next, cmd
}

func clearFlashAfter(seq int) tea.Cmd {
	return tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return clearFlashMsg{seq: seq}
	})
}

func (a App) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.view.setSize(a.width, a.viewHeight())
		a.render()

	case pageLoadedMsg:
		a.loading = false
		if msg.err != nil {
			a.loadErr = msg.err
			return a, nil
		}
		a.setPage(msg.doc)

	case optionsLoadedMsg:
		if a.editor == nil {
			return a, nil
		}
		if err := a.editor.OptionsLoaded(msg.req, msg.resp); err != nil {
			a.flash = err.Error()
			a.flashIsErr = true
		}
		return a.afterOpen()

	case committedMsg:
		if a.editor == nil {
			return a, nil
		}
		a.flash = ""
		if err := a.editor.Committed(msg.resp); err != nil {
			a.flash = err.Error()
			a.flashIsErr = true
		} else if a.editor.State() == editor.Idle {
			a.flash = msg.field + " updated"
			a.flashIsErr = false
		}
		a.render()

	case flashMsg:
		a.flash = msg.text
		a.flashIsErr = msg.isErr

	case pageChangedMsg:
		if a.editor != nil && a.editor.Active() {
			a.flash = "Page changed on disk, press r to reload"
			a.flashIsErr = false
			return a, a.waitForChange()
		}
		if a.opts.Load == nil {
			return a, a.waitForChange()
		}
		a.logger.Debug("page changed, reloading")
		a.loading = true
		return a, tea.Batch(a.cmdLoad(), a.waitForChange())

	case tea.MouseMsg:
		return a.handleMouse(msg)

	case tea.KeyMsg:
		return a.handleKey(msg)

	default:
		// Cursor blinks and other control messages.
		if ctrl := a.control(); ctrl != nil {
			cmd := ctrl.Update(msg)
			a.render()
			return a, cmd
		}
	}
	return a, nil
}

// setPage installs a freshly loaded page and a new editor for it.
func (a *App) setPage(doc *page.Document) {
	a.doc = doc
	a.loadErr = nil
	a.editor = editor.New(doc, a.registry, controlFactory{}, a.opts.Editor, a.logger)
	a.focus = -1
	a.editable = nil
	if doc.IssueID() == 0 {
		a.flash = "No issue id in page path, editing disabled"
		a.flashIsErr = false
	} else {
		a.editable = a.registry.Editable(doc)
	}
	a.render()
}

// control returns the live edit control, or nil.
func (a App) control() fieldControl {
	if a.editor == nil || a.editor.State() != editor.Editing {
		return nil
	}
	ctrl, _ := a.editor.Control().(fieldControl)
	return ctrl
}

// viewHeight returns the height available for the page viewport.
func (a App) viewHeight() int {
	// Reserve: header (1) + status/help line (1)
	h := a.height - headerHeight - 1
	if h < 3 {
		h = 3
	}
	return h
}

// render lays the page out again after the document or control changed.
func (a App) render() {
	if a.doc == nil {
		return
	}
	a.view.render(a.doc, a.embed, a.styleFor)
}

// embed draws the live control in place of its placeholder element. While
// the update is in flight the control stays up, read-only, with a saving
// notice in place of its key hint.
func (a App) embed(n *html.Node) (string, bool) {
	if !page.HasClass(n, editor.ControlClass) || a.editor == nil {
		return "", false
	}
	ctrl, ok := a.editor.Control().(fieldControl)
	if !ok {
		return "", false
	}
	switch a.editor.State() {
	case editor.Editing:
		return ctrl.View(), true
	case editor.Committing:
		lines := strings.Split(ctrl.View(), "\n")
		lines[len(lines)-1] = loadingStyle.Render("saving...")
		return strings.Join(lines, "\n"), true
	}
	return "", false
}

// styleFor marks editable labels, the focused label and the edit buttons.
func (a App) styleFor(n *html.Node) (lipgloss.Style, bool) {
	if a.editor != nil && n != nil && n.DataAtom == atom.Button && page.Contains(a.editor.Container(), n) {
		return buttonStyle, true
	}
	for i, e := range a.editable {
		if page.Contains(e.Label, n) {
			if i == a.focus {
				return focusedStyle, true
			}
			return editableStyle, true
		}
	}
	return lipgloss.Style{}, false
}

// handleKey processes key input.
func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global keys always work
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}
	if a.editor == nil {
		if key.Matches(msg, a.keys.Quit) {
			return a, tea.Quit
		}
		return a, nil
	}

	switch a.editor.State() {
	case editor.Editing:
		switch {
		case key.Matches(msg, a.keys.Cancel):
			a.editor.Cancel()
			a.render()
			return a, nil
		case key.Matches(msg, a.keys.Commit, a.keys.Save):
			return a.commit()
		}
		// Everything else goes to the control
		ctrl := a.control()
		if ctrl == nil {
			return a, nil
		}
		cmd := ctrl.Update(msg)
		a.render()
		return a, cmd

	case editor.Opening:
		if key.Matches(msg, a.keys.Cancel) {
			a.editor.Cancel()
			a.flash = ""
			a.render()
		}
		return a, nil

	case editor.Committing:
		return a, nil
	}

	a.flash = "" // clear flash on any keypress

	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.NextField):
		a.moveFocus(1)

	case key.Matches(msg, a.keys.PrevField):
		a.moveFocus(-1)

	case key.Matches(msg, a.keys.Edit, a.keys.Commit):
		if a.focus >= 0 && a.focus < len(a.editable) {
			return a.begin(a.editor.Open(a.editable[a.focus].Field))
		}

	case key.Matches(msg, a.keys.Reload):
		if a.opts.Load != nil {
			a.loading = true
			return a, a.cmdLoad()
		}

	case key.Matches(msg, a.keys.CopyURL):
		a.copyURL()

	default:
		// Delegate to viewport for j/k/up/down scrolling
		return a, a.view.Update(msg)
	}
	return a, nil
}

// moveFocus cycles the focused editable label.
func (a *App) moveFocus(delta int) {
	n := len(a.editable)
	if n == 0 {
		return
	}
	if a.focus < 0 {
		if delta > 0 {
			a.focus = 0
		} else {
			a.focus = n - 1
		}
	} else {
		a.focus = (a.focus + delta + n) % n
	}
	a.render()
	a.view.reveal(a.editable[a.focus].Label)
}

func (a *App) copyURL() {
	url := a.opts.IssueURL
	if url == "" {
		a.flash = "No issue URL"
		a.flashIsErr = true
		return
	}
	if err := clipboard.WriteAll(url); err != nil {
		a.flash = "Clipboard unavailable"
		a.flashIsErr = true
		return
	}
	a.flash = "Copied " + url
	a.flashIsErr = false
}

// handleMouse processes clicks and wheel scrolling. A double-click on an
// editable field opens it; while editing, single clicks go to the editor.
func (a App) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown {
		return a, a.view.Update(msg)
	}
	if a.editor == nil || msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return a, nil
	}

	y := msg.Y - headerHeight
	target := a.view.nodeAt(msg.X, y)

	now := a.now()
	double := target != nil && target == a.lastClickNode && now.Sub(a.lastClick) < doubleClickWindow
	if double {
		a.lastClickNode = nil
	} else {
		a.lastClick = now
		a.lastClickNode = target
	}

	switch a.editor.State() {
	case editor.Editing:
		if sel, ok := a.control().(*selectionControl); ok && page.HasClass(target, editor.ControlClass) {
			if sel.clickRow(a.view.rowOf(target, y)) && double {
				return a.commit()
			}
			a.render()
			return a, nil
		}
		field := a.editor.Field()
		req, err := a.editor.Click(target)
		return a.afterCommit(field, req, err)

	case editor.Idle:
		if double {
			return a.begin(a.editor.Begin(target))
		}
	}
	return a, nil
}

// begin handles the result of opening a field.
func (a App) begin(req *relay.Request, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		a.flash = err.Error()
		a.flashIsErr = true
		return a, nil
	}
	if req != nil {
		return a, a.cmdOptions(req)
	}
	return a.afterOpen()
}

// afterOpen shows the control once the editor has mounted it.
func (a App) afterOpen() (tea.Model, tea.Cmd) {
	a.render()
	if a.editor.State() != editor.Editing {
		return a, nil
	}
	a.view.reveal(a.editor.Container())
	return a, textinput.Blink
}

// commit submits the control value.
func (a App) commit() (tea.Model, tea.Cmd) {
	field := a.editor.Field()
	req, err := a.editor.Commit()
	return a.afterCommit(field, req, err)
}

// afterCommit dispatches an update request, if the editor produced one.
func (a App) afterCommit(field *fields.Descriptor, req *relay.Request, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		a.flash = err.Error()
		a.flashIsErr = true
		a.render()
		return a, nil
	}
	a.render()
	if req == nil {
		return a, nil
	}
	return a, a.cmdCommit(field.Name, req)
}

// --- Relay commands ---

// cmdOptions fetches the options of a selection field.
func (a App) cmdOptions(req *relay.Request) tea.Cmd {
	if a.relay == nil {
		return nil
	}
	r := a.relay
	return func() tea.Msg {
		resp := <-r.Dispatch(context.Background(), *req)
		return optionsLoadedMsg{req: req, resp: resp}
	}
}

// cmdCommit sends an issue update.
func (a App) cmdCommit(field string, req *relay.Request) tea.Cmd {
	if a.relay == nil {
		return nil
	}
	r := a.relay
	return func() tea.Msg {
		resp := <-r.Dispatch(context.Background(), *req)
		return committedMsg{field: field, resp: resp}
	}
}

// --- View ---

// View implements tea.Model.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	var sections []string
	sections = append(sections, a.renderHeader())

	switch {
	case a.loading:
		sections = append(sections, loadingStyle.Render("Loading issue..."))
	case a.loadErr != nil:
		sections = append(sections, errorStyle.Render(fmt.Sprintf("Failed to load page: %v", a.loadErr)))
	case a.doc != nil:
		sections = append(sections, a.view.View())
	}

	sections = append(sections, a.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader draws the title line.
func (a App) renderHeader() string {
	title := titleStyle.Render("redmine-quickedit")
	if a.doc != nil && a.doc.IssueID() != 0 {
		title += helpStyle.Render(fmt.Sprintf("  #%d", a.doc.IssueID()))
	}
	if a.opts.IssueURL != "" {
		title += helpStyle.Render("  " + a.opts.IssueURL)
	}
	return title
}

// renderStatusBar draws the bottom help/status line.
func (a App) renderStatusBar() string {
	var parts []string

	if a.editor != nil {
		switch a.editor.State() {
		case editor.Opening:
			parts = append(parts, loadingStyle.Render("Loading "+a.editor.Field().Name+" options..."))
		case editor.Editing:
			parts = append(parts, successStyle.Render("Editing "+a.editor.Field().Name))
		case editor.Committing:
			parts = append(parts, loadingStyle.Render("Saving "+a.editor.Field().Name+"..."))
		}
	}

	// Flash message (transient feedback)
	if a.flash != "" {
		if a.flashIsErr {
			parts = append(parts, errorStyle.Render(a.flash))
		} else {
			parts = append(parts, successStyle.Render(a.flash))
		}
	}

	parts = append(parts, a.helpText())

	return lipgloss.JoinHorizontal(lipgloss.Top,
		strings.Join(parts, helpStyle.Render("  │  ")),
	)
}

func (a App) helpText() string {
	if a.editor == nil {
		return helpLine(a.keys.Reload, a.keys.Quit)
	}
	switch a.editor.State() {
	case editor.Editing:
		return helpLine(a.keys.Commit, a.keys.Cancel)
	case editor.Opening:
		return helpLine(a.keys.Cancel)
	case editor.Committing:
		return ""
	}
	if len(a.editable) == 0 {
		return helpLine(a.keys.Reload, a.keys.CopyURL, a.keys.Quit)
	}
	return helpLine(a.keys.NextField, a.keys.Edit, a.keys.Reload, a.keys.CopyURL, a.keys.Quit)
}
