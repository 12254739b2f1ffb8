// Package jira implements the tracker sink boundary. The client only knows
// how to create an issue; it is always handed sanitized content.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	domain "github.com/frozoai/escalatesafe/internal/domain/runs"
)

const (
	maxRetries   = 5
	initialDelay = 1 * time.Second
)

type Client struct {
	serverURL  string
	email      string
	apiToken   string
	projectKey string
	http       *http.Client
	retryDelay time.Duration
}

func NewClient(serverURL, email, apiToken, projectKey string) *Client {
	return &Client{
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		email:      email,
		apiToken:   apiToken,
		projectKey: projectKey,
		http:       &http.Client{Timeout: 20 * time.Second},
		retryDelay: initialDelay,
	}
}

type createIssuePayload struct {
	Fields struct {
		Project     struct{ Key string `json:"key"` } `json:"project"`
		Summary     string                            `json:"summary"`
		Description string                            `json:"description"`
		IssueType   struct{ Name string `json:"name"` } `json:"issuetype"`
		Priority    *struct{ Name string `json:"name"` } `json:"priority,omitempty"`
		Labels      []string                          `json:"labels,omitempty"`
	} `json:"fields"`
}

type createIssueResponse struct {
	Key string `json:"key"`
}

// CreateIssue creates the downstream issue, retrying rate-limit and
// server-error responses with exponential backoff. Transport errors are not
// retried: the create may have landed even though the response was lost.
func (c *Client) CreateIssue(ctx context.Context, req domain.IssueRequest) (domain.IssueRef, error) {
	var payload createIssuePayload
	payload.Fields.Project.Key = c.projectKey
	payload.Fields.Summary = req.Summary
	payload.Fields.Description = req.Description
	payload.Fields.IssueType.Name = req.IssueType
	if req.Priority != "" {
		payload.Fields.Priority = &struct {
			Name string `json:"name"`
		}{Name: req.Priority}
	}
	payload.Fields.Labels = req.Labels

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.IssueRef{}, err
	}

	delay := c.retryDelay
	if delay <= 0 {
		delay = initialDelay
	}
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return domain.IssueRef{}, ctx.Err()
			}
			delay *= 2
		}

		ref, retryable, err := c.createOnce(ctx, body)
		if err == nil {
			return ref, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return domain.IssueRef{}, fmt.Errorf("create issue: %w", lastErr)
}

func (c *Client) createOnce(ctx context.Context, body []byte) (domain.IssueRef, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.serverURL+"/rest/api/2/issue", bytes.NewReader(body))
	if err != nil {
		return domain.IssueRef{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+
		base64.StdEncoding.EncodeToString([]byte(c.email+":"+c.apiToken)))

	resp, err := c.http.Do(req)
	if err != nil {
		// A transport failure is ambiguous: the server may have created the
		// issue before the connection dropped, so a re-POST risks a duplicate
		// no run-level check can see. Surface it instead of retrying.
		return domain.IssueRef{}, false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		var out createIssueResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return domain.IssueRef{}, false, err
		}
		return domain.IssueRef{
			Key: out.Key,
			URL: c.serverURL + "/browse/" + out.Key,
		}, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domain.IssueRef{}, true, fmt.Errorf("jira returned status %d", resp.StatusCode)
	default:
		return domain.IssueRef{}, false, fmt.Errorf("jira returned status %d", resp.StatusCode)
	}
}
