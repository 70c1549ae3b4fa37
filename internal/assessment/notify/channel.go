package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Channel delivers rendered content.
type Channel interface {
	Send(ctx context.Context, content string) error
}

// Webhook message formats understood by chat-bot style endpoints.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

type webhookPayload struct {
	MsgType  string           `json:"msgtype"`
	Text     *webhookText     `json:"text,omitempty"`
	Markdown *webhookMarkdown `json:"markdown,omitempty"`
}

type webhookText struct {
	Content string `json:"content"`
}

type webhookMarkdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// WebhookChannel posts assessment alerts to a chat-bot webhook.
type WebhookChannel struct {
	url     string
	format  string
	headers http.Header
	client  *http.Client
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

// WithFormat selects FormatText (default) or FormatMarkdown.
func WithFormat(format string) WebhookOption {
	return func(ch *WebhookChannel) {
		if format == FormatText || format == FormatMarkdown {
			ch.format = format
		}
	}
}

// WithHeader adds a header to every request, e.g. an ingest token.
func WithHeader(key, value string) WebhookOption {
	return func(ch *WebhookChannel) {
		if key != "" {
			ch.headers.Set(key, value)
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("webhook channel: empty url")
	}
	channel := &WebhookChannel{
		url:     url,
		format:  FormatText,
		headers: make(http.Header),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// Send posts content. In markdown format the first line becomes the title.
func (w *WebhookChannel) Send(ctx context.Context, content string) error {
	if w == nil || w.url == "" {
		return errors.New("webhook channel: empty url")
	}
	body, err := json.Marshal(w.payload(content))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for key, values := range w.headers {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook channel: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func (w *WebhookChannel) payload(content string) webhookPayload {
	if w.format != FormatMarkdown {
		return webhookPayload{MsgType: FormatText, Text: &webhookText{Content: content}}
	}
	title, _, _ := strings.Cut(content, "\n")
	return webhookPayload{
		MsgType:  FormatMarkdown,
		Markdown: &webhookMarkdown{Title: strings.TrimSpace(title), Text: content},
	}
}
