package testutil

import (
	"context"
	"sync"

	"rmasync/internal/activitylog"
)

// RecordingAlerter keeps every alert it is asked to send.
type RecordingAlerter struct {
	mu     sync.Mutex
	alerts []activitylog.Entry
}

// Alert records the entry.
func (a *RecordingAlerter) Alert(ctx context.Context, entry activitylog.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, entry)
	return nil
}

// Alerts returns the recorded alerts.
func (a *RecordingAlerter) Alerts() []activitylog.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]activitylog.Entry(nil), a.alerts...)
}

// AlertingActivity returns a complete-level activity logger that alerts through alerter.
func AlertingActivity(alerter activitylog.Alerter) *activitylog.Logger {
	return activitylog.New(activitylog.Options{
		Level:         activitylog.LevelComplete,
		Mode:          "Test",
		RunID:         "test-run",
		AlertsEnabled: true,
		Alerter:       alerter,
		Now:           Clock,
	})
}
