package page

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/jbeckham/redmine-quickedit/internal/redmine"
)

// RenderOptions controls how issue values are displayed.
type RenderOptions struct {
	// DateFormat is a Go time layout for start/due dates. Redmine's
	// "%Y/%m/%d" user setting is the default.
	DateFormat string
}

// DefaultDateFormat matches Redmine's YYYY/MM/DD date display.
const DefaultDateFormat = "2006/01/02"

// issueView is the template data for one issue page.
type issueView struct {
	ID           int
	Tracker      string
	Subject      string
	ProjectName  string
	ProjectIdent string
	Author       string
	Created      string
	Updated      string
	Status       string
	Priority     string
	Assignee     string
	Category     string
	Version      string
	StartDate    string
	DueDate      string
	DoneRatio    int
	Estimated    string
	Spent        string
	Description  []string
	Journals     []journalView
}

type journalView struct {
	User    string
	Created string
	Notes   []string
}

var issueTemplate = template.Must(template.New("issue").Parse(`<!DOCTYPE html>
<html><head><title>{{.Tracker}} #{{.ID}}: {{.Subject}}</title></head>
<body class="controller-issues action-show">
<div id="content">
{{if .ProjectIdent}}<p class="breadcrumb"><a href="/projects/{{.ProjectIdent}}">{{.ProjectName}}</a></p>{{end}}
<h2>{{.Tracker}} #{{.ID}}</h2>
<div class="issue details">
<div class="subject"><div><h3>{{.Subject}}</h3></div></div>
<p class="author">Added by {{.Author}} {{.Created}}. Updated {{.Updated}}.</p>
<div class="attributes">
<div class="splitcontent">
<div class="splitcontentleft">
<div class="status attribute"><div class="label">Status:</div><div class="value">{{.Status}}</div></div>
<div class="priority attribute"><div class="label">Priority:</div><div class="value">{{.Priority}}</div></div>
<div class="assigned-to attribute"><div class="label">Assignee:</div><div class="value">{{.Assignee}}</div></div>
<div class="category attribute"><div class="label">Category:</div><div class="value">{{.Category}}</div></div>
<div class="fixed-version attribute"><div class="label">Target version:</div><div class="value">{{.Version}}</div></div>
</div>
<div class="splitcontentright">
<div class="start-date attribute"><div class="label">Start date:</div><div class="value">{{.StartDate}}</div></div>
<div class="due-date attribute"><div class="label">Due date:</div><div class="value">{{.DueDate}}</div></div>
<div class="progress attribute"><div class="label">% Done:</div><div class="value"><p class="percent">{{.DoneRatio}}%</p></div></div>
<div class="spent-time attribute"><div class="label">Spent time:</div><div class="value">{{.Spent}}</div></div>
<div class="estimated-hours attribute"><div class="label">Estimated time:</div><div class="value">{{.Estimated}}</div></div>
</div>
</div>
</div>
<hr>
<div class="description">
<p><strong>Description</strong></p>
<div class="wiki">{{range .Description}}<p>{{.}}</p>{{end}}</div>
</div>
</div>
{{if .Journals}}<div id="history">
<h3>History</h3>
{{range .Journals}}<div class="journal"><h4>Updated by {{.User}} {{.Created}}</h4><div class="wiki">{{range .Notes}}<p>{{.}}</p>{{end}}</div></div>
{{end}}</div>{{end}}
</div>
</body></html>
`))

// Render builds the issue-detail page for issue the way the tracker's web
// UI lays it out. project may be nil, in which case the numeric project id
// is used for the breadcrumb.
func Render(issue *redmine.Issue, project *redmine.Project, opts RenderOptions) (*Document, error) {
	if opts.DateFormat == "" {
		opts.DateFormat = DefaultDateFormat
	}

	v := issueView{
		ID:          issue.ID,
		Tracker:     nameOr(issue.Tracker, "Issue"),
		Subject:     issue.Subject,
		Author:      nameOr(issue.Author, "Anonymous"),
		Created:     formatTimestamp(issue.CreatedOn),
		Updated:     formatTimestamp(issue.UpdatedOn),
		Status:      nameOr(issue.Status, "-"),
		Priority:    nameOr(issue.Priority, "-"),
		Assignee:    nameOr(issue.AssignedTo, "-"),
		Category:    nameOr(issue.Category, "-"),
		Version:     nameOr(issue.FixedVersion, "-"),
		StartDate:   formatDate(issue.StartDate, opts.DateFormat),
		DueDate:     formatDate(issue.DueDate, opts.DateFormat),
		DoneRatio:   issue.DoneRatio,
		Estimated:   formatHours(issue.EstimatedHours),
		Spent:       formatHours(issue.SpentHours),
		Description: paragraphs(issue.Description),
	}
	if issue.Project != nil {
		v.ProjectName = issue.Project.Name
		v.ProjectIdent = strconv.Itoa(issue.Project.ID)
	}
	if project != nil && project.Identifier != "" {
		v.ProjectName = project.Name
		v.ProjectIdent = project.Identifier
	}
	for _, j := range issue.Journals {
		if strings.TrimSpace(j.Notes) == "" {
			continue
		}
		v.Journals = append(v.Journals, journalView{
			User:    nameOr(j.User, "Anonymous"),
			Created: formatTimestamp(j.CreatedOn),
			Notes:   paragraphs(j.Notes),
		})
	}

	var buf bytes.Buffer
	if err := issueTemplate.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("rendering issue %d: %w", issue.ID, err)
	}
	return Parse(&buf, fmt.Sprintf("/issues/%d", issue.ID))
}

func nameOr(n *redmine.Named, fallback string) string {
	if n == nil || n.Name == "" {
		return fallback
	}
	return n.Name
}

// formatDate turns an API date (YYYY-MM-DD) into the display layout.
func formatDate(s, layout string) string {
	if s == "" {
		return "-"
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return s
	}
	return t.Format(layout)
}

func formatTimestamp(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Local().Format("2006/01/02 15:04")
}

// formatHours renders hours the way Redmine's "0:45 h" time format does.
func formatHours(h *float64) string {
	if h == nil {
		return "-"
	}
	total := int(*h*60 + 0.5)
	return fmt.Sprintf("%d:%02d h", total/60, total%60)
}

func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
