package notify

import (
	"context"

	"shipboard-health/internal/assessment/application"
)

// MultiNotifier dispatches assessment events to multiple notifiers.
type MultiNotifier struct {
	notifiers []application.ResultNotifier
}

// NewMultiNotifier constructs a MultiNotifier. Nil notifiers are skipped.
func NewMultiNotifier(notifiers ...application.ResultNotifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify forwards events to all notifiers.
func (m *MultiNotifier) Notify(ctx context.Context, event application.AssessmentEvent) {
	if m == nil {
		return
	}
	for _, notifier := range m.notifiers {
		if notifier != nil {
			notifier.Notify(ctx, event)
		}
	}
}
