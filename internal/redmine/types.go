package redmine

import (
	"encoding/json"
	"fmt"
)

// Payload is a successful response body. JSON is set for structured bodies,
// Text for bodies that did not parse, and neither for empty bodies.
type Payload struct {
	JSON json.RawMessage
	Text string
}

// Empty reports whether the response carried no body.
func (p *Payload) Empty() bool {
	return p == nil || (len(p.JSON) == 0 && p.Text == "")
}

// Data renders the payload as a JSON document for the relay.
func (p *Payload) Data() json.RawMessage {
	switch {
	case p == nil || p.Empty():
		return json.RawMessage(`{"success":true}`)
	case len(p.JSON) > 0:
		return p.JSON
	}
	data, err := json.Marshal(struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{true, p.Text})
	if err != nil {
		return json.RawMessage(`{"success":true}`)
	}
	return data
}

// Named is a Redmine reference with an ID and a display name.
type Named struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// User represents a Redmine user as returned by /users.json.
type User struct {
	ID        int    `json:"id"`
	Login     string `json:"login"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Mail      string `json:"mail"`
}

// Issue represents a Redmine issue.
type Issue struct {
	ID             int       `json:"id"`
	Project        *Named    `json:"project"`
	Tracker        *Named    `json:"tracker"`
	Status         *Named    `json:"status"`
	Priority       *Named    `json:"priority"`
	Author         *Named    `json:"author"`
	AssignedTo     *Named    `json:"assigned_to"`
	Category       *Named    `json:"category"`
	FixedVersion   *Named    `json:"fixed_version"`
	Subject        string    `json:"subject"`
	Description    string    `json:"description"`
	StartDate      string    `json:"start_date"`
	DueDate        string    `json:"due_date"`
	DoneRatio      int       `json:"done_ratio"`
	EstimatedHours *float64  `json:"estimated_hours"`
	SpentHours     *float64  `json:"spent_hours"`
	CreatedOn      string    `json:"created_on"`
	UpdatedOn      string    `json:"updated_on"`
	Journals       []Journal `json:"journals"`
}

// Journal is one history entry of an issue.
type Journal struct {
	ID        int    `json:"id"`
	User      *Named `json:"user"`
	Notes     string `json:"notes"`
	CreatedOn string `json:"created_on"`
}

// Project represents a Redmine project.
type Project struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Identifier  string `json:"identifier"`
	Description string `json:"description"`
}

// DecodeIssue parses the body of GET /issues/{id}.json.
func DecodeIssue(raw json.RawMessage) (*Issue, error) {
	var envelope struct {
		Issue *Issue `json:"issue"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("parsing issue: %w", err)
	}
	if envelope.Issue == nil {
		return nil, fmt.Errorf("parsing issue: response has no issue")
	}
	return envelope.Issue, nil
}

// DecodeProject parses the body of GET /projects/{id}.json.
func DecodeProject(raw json.RawMessage) (*Project, error) {
	var envelope struct {
		Project *Project `json:"project"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("parsing project: %w", err)
	}
	if envelope.Project == nil {
		return nil, fmt.Errorf("parsing project: response has no project")
	}
	return envelope.Project, nil
}
