package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	alerting "fleetops-cloud/internal/alerting/domain"
)

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// WebhookChannel sends rendered alerts to a webhook endpoint using the
// DingTalk/WeCom-compatible text payload.
type WebhookChannel struct {
	url      string
	template *Template
	client   *http.Client
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// NewWebhookChannel constructs a webhook channel. A nil template falls
// back to DefaultTemplate.
func NewWebhookChannel(url string, template *Template, opts ...WebhookOption) (*WebhookChannel, error) {
	if url == "" {
		return nil, errors.New("webhook channel: empty url")
	}
	if template == nil {
		fallback, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = fallback
	}
	channel := &WebhookChannel{
		url:      url,
		template: template,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// Send renders the alert and posts it.
func (w *WebhookChannel) Send(ctx context.Context, msg alerting.Message) error {
	if w == nil || w.url == "" {
		return errors.New("webhook channel: empty url")
	}
	content, err := w.template.Render(DataFromMessage(msg))
	if err != nil {
		return fmt.Errorf("webhook channel: render: %w", err)
	}
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: content},
	}
	body, err := json.Marshal(payload)
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
		return fmt.Errorf("webhook channel: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
