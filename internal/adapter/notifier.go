package adapter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/types"
)

// WebhookNotifier posts change alerts as JSON to a webhook
type WebhookNotifier struct {
	url    string
	client *resty.Client
}

// NewWebhookNotifier creates a notifier posting to url
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")

	return &WebhookNotifier{url: url, client: client}
}

type webhookPayload struct {
	Text  string           `json:"text"`
	Event types.AlertEvent `json:"event"`
}

// SendChangeAlert implements Notifier
func (n *WebhookNotifier) SendChangeAlert(ctx context.Context, event types.AlertEvent) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{Text: AlertText(event), Event: event}).
		Post(n.url)
	if err != nil {
		return NewAdapterError("webhook", "SendChangeAlert", fmt.Errorf("%w: %v", ErrProviderUnavailable, err), nil)
	}
	if code := resp.StatusCode(); code < http.StatusOK || code >= http.StatusMultipleChoices {
		return NewAdapterError("webhook", "SendChangeAlert",
			fmt.Errorf("unexpected status code %d: %s", code, truncateBody(resp.Body())), nil)
	}
	return nil
}

// LogNotifier writes change alerts to the log; used when no webhook is configured
type LogNotifier struct{}

// SendChangeAlert implements Notifier
func (LogNotifier) SendChangeAlert(ctx context.Context, event types.AlertEvent) error {
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"companyId":   event.CompanyID,
		"day":         event.Day.String(),
		"prevReserve": event.PrevReserve.String(),
		"newReserve":  event.NewReserve.String(),
	}).Info(AlertText(event))
	return nil
}

// AlertText renders a one-line summary of a reserve change
func AlertText(event types.AlertEvent) string {
	name := event.CompanyName
	if event.Ticker != "" {
		name = fmt.Sprintf("%s (%s)", name, event.Ticker)
	}

	verb := "increased"
	if event.ReserveDiff.IsNegative() {
		verb = "decreased"
	}

	pct := "n/a"
	if event.PercentChange.Valid {
		pct = event.PercentChange.Decimal.StringFixed(2) + "%"
	}

	return fmt.Sprintf("%s ETH reserve %s by %s ETH to %s ETH (%s) on %s",
		name, verb, event.ReserveDiff.Abs().String(), event.NewReserve.String(), pct, event.Day.String())
}
