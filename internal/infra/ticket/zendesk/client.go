// Package zendesk implements the ticket source boundary against the Zendesk
// Tickets API. Only the narrow fetch-ticket-text call the core needs is
// implemented here.
package zendesk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	domain "github.com/frozoai/escalatesafe/internal/domain/runs"
)

type Client struct {
	email    string
	apiToken string
	http     *http.Client

	// baseURL overrides the per-tenant subdomain URL; used in tests.
	baseURL string
}

func NewClient(email, apiToken string) *Client {
	return &Client{
		email:    email,
		apiToken: apiToken,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// NewClientWithBaseURL pins all requests to one base URL instead of deriving
// it from the tenant subdomain.
func NewClientWithBaseURL(email, apiToken, baseURL string) *Client {
	c := NewClient(email, apiToken)
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

type ticketResponse struct {
	Ticket struct {
		Subject     string `json:"subject"`
		Description string `json:"description"`
	} `json:"ticket"`
}

type commentsResponse struct {
	Comments []struct {
		Body   string `json:"body"`
		Public bool   `json:"public"`
	} `json:"comments"`
}

// FetchTicketText returns the ticket description joined with the requested
// comments. The tenant identifier doubles as the Zendesk subdomain.
func (c *Client) FetchTicketText(ctx context.Context, tenant, ticketID string, opts domain.Options) (string, error) {
	base := c.baseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.zendesk.com/api/v2", tenant)
	}

	var ticket ticketResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/tickets/%s.json", base, ticketID), &ticket); err != nil {
		return "", fmt.Errorf("%w: ticket %s: %v", domain.ErrTicketFetch, ticketID, err)
	}

	parts := []string{ticket.Ticket.Description}

	if opts.IncludeLastPublicComments > 0 || opts.IncludeInternalNotes {
		var comments commentsResponse
		if err := c.getJSON(ctx, fmt.Sprintf("%s/tickets/%s/comments.json", base, ticketID), &comments); err != nil {
			return "", fmt.Errorf("%w: comments for ticket %s: %v", domain.ErrTicketFetch, ticketID, err)
		}
		publicSeen := 0
		// Comments arrive oldest first; walk backwards so "last N public" is
		// the most recent ones.
		for i := len(comments.Comments) - 1; i >= 0; i-- {
			cm := comments.Comments[i]
			if cm.Public {
				if publicSeen >= opts.IncludeLastPublicComments {
					continue
				}
				publicSeen++
			} else if !opts.IncludeInternalNotes {
				continue
			}
			parts = append(parts, cm.Body)
		}
	}

	return strings.TrimSpace(strings.Join(parts, "\n\n")), nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Basic "+c.basicAuth())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// basicAuth builds the email/token form Zendesk expects for API tokens.
func (c *Client) basicAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(c.email + "/token:" + c.apiToken))
}
