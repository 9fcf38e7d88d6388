package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	alerts "smart-maintenance/internal/alerts/domain"
)

type webhookPayload struct {
	MsgType  string           `json:"msgtype"`
	Text     webhookText      `json:"text"`
	Markdown *webhookMarkdown `json:"markdown,omitempty"`
}

type webhookText struct {
	Content string `json:"content"`
}

type webhookMarkdown struct {
	Content string `json:"content"`
}

// WebhookTransport posts alerts to a DingTalk/WeCom compatible webhook.
type WebhookTransport struct {
	url    string
	client *http.Client
}

// WebhookOption configures the webhook transport.
type WebhookOption func(*WebhookTransport)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(w *WebhookTransport) {
		if client != nil {
			w.client = client
		}
	}
}

// NewWebhookTransport constructs a webhook transport.
func NewWebhookTransport(url string, opts ...WebhookOption) (*WebhookTransport, error) {
	if url == "" {
		return nil, errors.New("webhook transport: empty url")
	}
	transport := &WebhookTransport{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(transport)
	}
	return transport, nil
}

// Send posts the rendered message as a text payload.
func (w *WebhookTransport) Send(ctx context.Context, n alerts.Notification) error {
	if w == nil || w.url == "" {
		return errors.New("webhook transport: empty url")
	}
	body, err := json.Marshal(webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: n.Message},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook transport: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
