// Package slack posts export notifications to an incoming webhook. Failures
// here are best effort for the caller; the run's exported status never
// depends on them.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	domain "github.com/frozoai/escalatesafe/internal/domain/runs"
)

type Webhook struct {
	url  string
	http *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type message struct {
	Text string `json:"text"`
}

func (w *Webhook) Notify(ctx context.Context, n domain.Notification) error {
	text := fmt.Sprintf(":rotating_light: Escalation exported: <%s|%s> (ticket #%s, priority %s)\n%s",
		n.IssueURL, n.IssueKey, n.TicketID, n.Priority, n.Summary)
	if n.IssueURL == "" {
		text = fmt.Sprintf(":rotating_light: Escalation exported: %s (ticket #%s, priority %s)\n%s",
			n.IssueKey, n.TicketID, n.Priority, n.Summary)
	}

	body, err := json.Marshal(message{Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}
