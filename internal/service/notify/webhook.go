package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
	xhttp "RiskWatch/pkg/http"
)

// Webhook posts notifications to a Slack or Discord compatible incoming webhook.
type Webhook struct {
	url     string
	name    string
	discord bool
	client  *xhttp.Client
}

var _ domrepo.NotificationSink = (*Webhook)(nil)

// NewWebhook picks the Discord payload shape for discord.com URLs and the Slack one otherwise.
func NewWebhook(rawURL string, timeout time.Duration) (*Webhook, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("webhook url %q is invalid", rawURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	host := strings.ToLower(u.Hostname())
	return &Webhook{
		url:     rawURL,
		name:    "webhook:" + host,
		discord: strings.HasSuffix(host, "discord.com") || strings.HasSuffix(host, "discordapp.com"),
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}, nil
}

func (w *Webhook) Name() string   { return w.name }
func (w *Webhook) External() bool { return true }

func (w *Webhook) Send(ctx context.Context, n models.Notification) error {
	text := Format(n)
	var body interface{} = map[string]string{"text": text}
	if w.discord {
		body = map[string]string{"content": text}
	}
	err := w.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    w.url,
		Body:   body,
	}, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", w.name, err)
	}
	return nil
}

// Format renders the chat line for a notification.
func Format(n models.Notification) string {
	return fmt.Sprintf("[RiskWatch] %s (%s) at %s", n.Message, n.Symbol, n.TriggeredAt.UTC().Format(time.RFC3339))
}
