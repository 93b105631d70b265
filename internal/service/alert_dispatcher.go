package service

import (
	"context"
	"time"

	"github.com/eth-reserves/internal/adapter"
	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/metrics"
	"github.com/eth-reserves/internal/types"
)

// AlertDispatcher delivers change alerts produced by reconciliation.
// Delivery failures are logged and never returned.
type AlertDispatcher struct {
	notifier adapter.Notifier
	timeout  time.Duration
}

// NewAlertDispatcher creates a dispatcher; timeout bounds each delivery
func NewAlertDispatcher(notifier adapter.Notifier, timeout time.Duration) *AlertDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AlertDispatcher{notifier: notifier, timeout: timeout}
}

// Dispatch sends every event and returns how many were delivered
func (d *AlertDispatcher) Dispatch(ctx context.Context, events []types.AlertEvent) int {
	delivered := 0
	for _, event := range events {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.notifier.SendChangeAlert(sendCtx, event)
		cancel()

		if err != nil {
			metrics.AlertsSent.WithLabelValues("failed").Inc()
			logging.FromContext(ctx).WithFields(map[string]interface{}{
				"companyId": event.CompanyID,
				"day":       event.Day.String(),
			}).WithError(err).Warn("failed to deliver change alert")
			continue
		}
		metrics.AlertsSent.WithLabelValues("sent").Inc()
		delivered++
	}
	return delivered
}
