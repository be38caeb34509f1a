// Package redmine provides a client for the Redmine REST API.
package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Credentials holds the connection details needed for every request.
type Credentials struct {
	BaseURL string
	APIKey  string
}

// CredentialSource supplies credentials. It is queried once per API call, so
// implementations may re-read persisted settings every time.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticCredentials is a CredentialSource that always returns itself.
type StaticCredentials Credentials

// Credentials implements CredentialSource.
func (s StaticCredentials) Credentials(context.Context) (Credentials, error) {
	return Credentials(s), nil
}

// Client is a Redmine REST API client.
type Client struct {
	creds      CredentialSource
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new Redmine API client.
func NewClient(creds CredentialSource, opts ...ClientOption) *Client {
	c := &Client{
		creds: creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IssueURL returns the web URL for the given issue.
func (c *Client) IssueURL(ctx context.Context, issueID int) (string, error) {
	creds, err := c.credentials(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/issues/%d", creds.BaseURL, issueID), nil
}

// credentials loads and checks the connection settings for one operation.
func (c *Client) credentials(ctx context.Context) (Credentials, error) {
	if c.creds == nil {
		return Credentials{}, &ConfigurationError{}
	}
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return Credentials{}, &ConfigurationError{Err: err}
	}
	creds.BaseURL = strings.TrimRight(strings.TrimSpace(creds.BaseURL), "/")
	creds.APIKey = strings.TrimSpace(creds.APIKey)
	switch {
	case creds.BaseURL == "" && creds.APIKey == "":
		return Credentials{}, &ConfigurationError{Missing: []string{"base_url", "api_key"}}
	case creds.BaseURL == "":
		return Credentials{}, &ConfigurationError{Missing: []string{"base_url"}}
	case creds.APIKey == "":
		return Credentials{}, &ConfigurationError{Missing: []string{"api_key"}}
	}
	return creds, nil
}

// do executes an authenticated request and classifies the response. It is
// attempted exactly once.
func (c *Client) do(ctx context.Context, method, path string, body any) (*Payload, error) {
	creds, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, creds.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Redmine-API-Key", creds.APIKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("redmine request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Debug("redmine response", "method", method, "path", path, "status", resp.StatusCode, "bytes", len(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Reason:     http.StatusText(resp.StatusCode),
			Body:       string(data),
		}
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		// PUT /issues/{id}.json answers 204 or 200 with no body.
		return &Payload{}, nil
	}
	if !json.Valid([]byte(text)) {
		c.logger.Warn("redmine response is not JSON", "path", path)
		return &Payload{Text: string(data)}, nil
	}
	return &Payload{JSON: json.RawMessage(text)}, nil
}

// FetchIssue returns an issue with its related data.
func (c *Client) FetchIssue(ctx context.Context, issueID int) (*Payload, error) {
	path := fmt.Sprintf("/issues/%d.json?include=relations,attachments,changesets,journals,watchers", issueID)
	p, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting issue %d: %w", issueID, err)
	}
	return p, nil
}

// UpdateIssue sets the given attributes on an issue. The attribute map is
// sent inside an {"issue": ...} envelope.
func (c *Client) UpdateIssue(ctx context.Context, issueID int, attrs map[string]any) (*Payload, error) {
	path := fmt.Sprintf("/issues/%d.json", issueID)
	p, err := c.do(ctx, http.MethodPut, path, map[string]any{"issue": attrs})
	if err != nil {
		return nil, fmt.Errorf("updating issue %d: %w", issueID, err)
	}
	return p, nil
}

// FetchProject returns a project with its trackers, categories and modules.
func (c *Client) FetchProject(ctx context.Context, projectID string) (*Payload, error) {
	path := fmt.Sprintf("/projects/%s.json?include=trackers,issue_categories,enabled_modules", url.PathEscape(projectID))
	p, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting project %s: %w", projectID, err)
	}
	return p, nil
}

// FetchEnumeration returns the option list for kind. Versions and categories
// are project scoped and need projectID.
func (c *Client) FetchEnumeration(ctx context.Context, kind OptionKind, projectID string) (*Payload, error) {
	var path string
	switch kind {
	case OptionStatus:
		path = "/issue_statuses.json"
	case OptionPriority:
		path = "/enumerations/issue_priorities.json"
	case OptionUsers:
		path = "/users.json"
	case OptionVersions:
		path = fmt.Sprintf("/projects/%s/versions.json", url.PathEscape(projectID))
	case OptionCategories:
		path = fmt.Sprintf("/projects/%s/issue_categories.json", url.PathEscape(projectID))
	default:
		return nil, &UnsupportedOptionKindError{Kind: string(kind)}
	}
	p, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", kind, err)
	}
	return p, nil
}
