// Package teamwork is a thin REST client for the external project tracker:
// time entries, projects, tasks, and people lookups.
package teamwork

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const tasksPageSize = 250

// APIError is a non-success response from the tracker.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("teamwork: status %d: %s", e.Status, e.Body)
}

// Client talks to one tracker site with one API key.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewClient builds a client for https://{site}.teamwork.com. A site given as a
// full URL is used as-is, which the tests rely on.
func NewClient(site, apiKey string) *Client {
	base := site
	if u, err := url.Parse(site); err != nil || u.Scheme == "" {
		base = fmt.Sprintf("https://%s.teamwork.com", site)
	}
	return &Client{
		baseURL: base,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateTimeEntryForTask logs a new time entry under a tracker task and
// returns the id the tracker assigned.
func (c *Client) CreateTimeEntryForTask(ctx context.Context, remoteTaskID int64, entry TimeEntry) (int64, error) {
	body := map[string]TimeEntry{"time-entry": entry}
	var resp struct {
		TimeEntryID string `json:"timeEntryId"`
	}
	path := fmt.Sprintf("/tasks/%d/time_entries.json", remoteTaskID)
	if err := c.do(ctx, http.MethodPost, path, nil, body, &resp); err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(resp.TimeEntryID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse time entry id %q: %w", resp.TimeEntryID, err)
	}
	return id, nil
}

func (c *Client) UpdateTimeEntry(ctx context.Context, entryID int64, entry TimeEntry) error {
	body := map[string]TimeEntry{"time-entry": entry}
	path := fmt.Sprintf("/time_entries/%d.json", entryID)
	return c.do(ctx, http.MethodPut, path, nil, body, nil)
}

func (c *Client) DeleteTimeEntry(ctx context.Context, entryID int64) error {
	path := fmt.Sprintf("/time_entries/%d.json", entryID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) GetTimeEntry(ctx context.Context, entryID int64) (TimeEntry, error) {
	var resp struct {
		TimeEntry TimeEntry `json:"time-entry"`
	}
	path := fmt.Sprintf("/time_entries/%d.json", entryID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return TimeEntry{}, err
	}
	return resp.TimeEntry, nil
}

// ListProjects returns the site's projects. A non-zero personID restricts the
// listing to projects that person belongs to.
func (c *Client) ListProjects(ctx context.Context, personID int64) ([]Project, error) {
	path := "/projects.json"
	if personID != 0 {
		path = fmt.Sprintf("/people/%d/projects.json", personID)
	}
	var resp struct {
		Projects []Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// GetTask fetches one tracker task with its parent and children.
func (c *Client) GetTask(ctx context.Context, remoteTaskID int64) (*Task, error) {
	var resp struct {
		Task Task `json:"todo-item"`
	}
	path := fmt.Sprintf("/tasks/%d.json", remoteTaskID)
	query := url.Values{"getSubTasks": {"yes"}, "includeParentTask": {"yes"}}
	if err := c.do(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

// ListProjectTasks pages through a project's tasks, 250 per page.
func (c *Client) ListProjectTasks(ctx context.Context, projectID int64, includeCompleted bool) ([]Task, error) {
	var all []Task
	for page := 1; ; page++ {
		query := url.Values{
			"page":     {strconv.Itoa(page)},
			"pageSize": {strconv.Itoa(tasksPageSize)},
		}
		if includeCompleted {
			query.Set("includeCompletedTasks", "true")
		}
		var resp struct {
			Tasks []Task `json:"todo-items"`
		}
		path := fmt.Sprintf("/projects/%d/tasks.json", projectID)
		if err := c.do(ctx, http.MethodGet, path, query, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Tasks...)
		if len(resp.Tasks) < tasksPageSize {
			return all, nil
		}
	}
}

// SearchPeople finds tracker people matching a free-text term.
func (c *Client) SearchPeople(ctx context.Context, term string) ([]Person, error) {
	var resp struct {
		People []Person `json:"people"`
	}
	query := url.Values{"searchTerm": {term}}
	if err := c.do(ctx, http.MethodGet, "/people.json", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.People, nil
}

// FindPersonByEmail resolves a tracker person id by exact email match.
func (c *Client) FindPersonByEmail(ctx context.Context, email string) (*Person, error) {
	people, err := c.SearchPeople(ctx, email)
	if err != nil {
		return nil, err
	}
	for i := range people {
		if people[i].Email == email {
			return &people[i], nil
		}
	}
	return nil, fmt.Errorf("teamwork: no person with email %q", email)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "x")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("teamwork request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
