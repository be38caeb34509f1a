// Package relay brokers typed action requests from the page editor to the
// tracker API. Every request gets exactly one response, delivered
// asynchronously, and failures travel back as text rather than as errors.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jbeckham/redmine-quickedit/internal/redmine"
)

// Action names a relay request.
type Action string

const (
	ActionUpdateIssue      Action = "updateIssue"
	ActionGetIssueData     Action = "getIssueData"
	ActionGetSelectOptions Action = "getSelectOptions"
	ActionGetProject       Action = "getProject"
)

// Request is a single action request.
type Request struct {
	Action     Action         `json:"action"`
	IssueID    int            `json:"issueId,omitempty"`
	UpdateData map[string]any `json:"updateData,omitempty"`
	Kind       string         `json:"type,omitempty"`
	ProjectID  string         `json:"projectId,omitempty"`
}

// Response carries either Data (Success) or Error.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Gateway is the tracker API the relay dispatches to.
type Gateway interface {
	FetchIssue(ctx context.Context, issueID int) (*redmine.Payload, error)
	UpdateIssue(ctx context.Context, issueID int, attrs map[string]any) (*redmine.Payload, error)
	FetchEnumeration(ctx context.Context, kind redmine.OptionKind, projectID string) (*redmine.Payload, error)
	FetchProject(ctx context.Context, projectID string) (*redmine.Payload, error)
}

// Relay dispatches requests to a Gateway.
type Relay struct {
	gateway Gateway
	logger  *slog.Logger
}

// New creates a relay. A nil logger uses slog.Default.
func New(gw Gateway, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{gateway: gw, logger: logger}
}

// Dispatch handles req on its own goroutine. The returned channel receives
// exactly one response and is then closed.
func (r *Relay) Dispatch(ctx context.Context, req Request) <-chan Response {
	ch := make(chan Response, 1)
	go func() {
		defer close(ch)
		ch <- r.Handle(ctx, req)
	}()
	return ch
}

// Handle processes req synchronously. It never panics and never returns
// without a response.
func (r *Relay) Handle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("relay handler panicked", "action", req.Action, "panic", p)
			resp = failure(fmt.Errorf("internal error handling %s: %v", req.Action, p))
		}
	}()

	data, err := r.handle(ctx, req)
	if err != nil {
		r.logger.Debug("relay request failed", "action", req.Action, "err", err)
		return failure(err)
	}
	r.logger.Debug("relay request done", "action", req.Action)
	return Response{Success: true, Data: data}
}

func (r *Relay) handle(ctx context.Context, req Request) (json.RawMessage, error) {
	switch req.Action {
	case ActionUpdateIssue:
		p, err := r.gateway.UpdateIssue(ctx, req.IssueID, req.UpdateData)
		if err != nil {
			return nil, err
		}
		return p.Data(), nil

	case ActionGetIssueData:
		p, err := r.gateway.FetchIssue(ctx, req.IssueID)
		if err != nil {
			return nil, err
		}
		return p.Data(), nil

	case ActionGetSelectOptions:
		return r.selectOptions(ctx, redmine.OptionKind(req.Kind), req.ProjectID)

	case ActionGetProject:
		p, err := r.gateway.FetchProject(ctx, req.ProjectID)
		if err != nil {
			return nil, err
		}
		return p.Data(), nil
	}
	return nil, fmt.Errorf("unknown action: %q", req.Action)
}

func (r *Relay) selectOptions(ctx context.Context, kind redmine.OptionKind, projectID string) (json.RawMessage, error) {
	switch kind {
	case redmine.OptionStatus, redmine.OptionPriority, redmine.OptionUsers:
	case redmine.OptionVersions, redmine.OptionCategories:
		if projectID == "" {
			return redmine.EmptyEnumeration(kind), nil
		}
	default:
		return nil, &redmine.UnsupportedOptionKindError{Kind: string(kind)}
	}
	p, err := r.gateway.FetchEnumeration(ctx, kind, projectID)
	if err != nil {
		return nil, err
	}
	return p.Data(), nil
}

func failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

// Err returns the response failure as an error, or nil on success.
func (resp Response) Err() error {
	if resp.Success {
		return nil
	}
	if resp.Error == "" {
		return fmt.Errorf("request failed")
	}
	return &RemoteError{Message: resp.Error}
}

// RemoteError is a failure reported across the relay boundary.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }
