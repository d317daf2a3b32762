// Package activitylog records the outcome of every Run my Accounts operation.
//
// A Logger lives for one run (a CLI invocation or a worker task). Entries are
// buffered for the run, persisted through a Sink and mirrored to the process log.
// Error entries trigger an email alert when alerting is enabled.
package activitylog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"rmasync/internal/logger"
)

// Status is the outcome recorded by an entry.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusError       Status = "error"
	StatusFailed      Status = "failed"
	StatusCreated     Status = "created"
	StatusInvoiced    Status = "invoiced"
	StatusDeactivated Status = "deactivated"
	StatusPaid        Status = "paid"
)

// Level controls which non-error entries are recorded.
type Level string

const (
	LevelError    Level = "error"
	LevelComplete Level = "complete"
)

// Entry is one append-only activity log record.
type Entry struct {
	Time      time.Time `json:"time"`
	RunID     string    `json:"run_id"`
	Status    Status    `json:"status"`
	SectionID string    `json:"section_id"`
	Section   string    `json:"section"`
	Mode      string    `json:"mode"`
	Message   string    `json:"message"`
}

// Sink persists entries.
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

// Alerter notifies an operator about an error entry.
type Alerter interface {
	Alert(ctx context.Context, entry Entry) error
}

// Options configure a Logger.
type Options struct {
	Level         Level
	Mode          string // Test or Live
	AlertsEnabled bool
	Sink          Sink
	Alerter       Alerter
	RunID         string
	Now           func() time.Time
}

// Logger is the activity log of one run. It is safe for concurrent use.
type Logger struct {
	opts Options
	log  zerolog.Logger

	mu      sync.Mutex
	entries []Entry
}

// New creates a Logger. A missing run id is generated.
func New(opts Options) *Logger {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Level == "" {
		opts.Level = LevelError
	}
	return &Logger{
		opts: opts,
		log:  logger.WithRunID(logger.WithComponent("activitylog"), opts.RunID),
	}
}

// RunID identifies the run the entries belong to.
func (l *Logger) RunID() string {
	return l.opts.RunID
}

// Complete reports whether the logger records every outcome, not only errors.
func (l *Logger) Complete() bool {
	return l.opts.Level == LevelComplete
}

// Write records the entry regardless of the configured level.
// Under a captured context the entry is only handed to the Capture.
func (l *Logger) Write(ctx context.Context, entry Entry) {
	entry = l.stamp(entry)
	if c := captured(ctx); c != nil {
		c.add(entry)
		l.log.Debug().
			Str("status", string(entry.Status)).
			Str("section", entry.Section).
			Str("section_id", entry.SectionID).
			Msg("Held back: " + entry.Message)
		return
	}
	l.store(ctx, entry)

	if entry.Status == StatusError {
		l.alert(ctx, entry)
	}
}

// Record writes the entry if the configured level admits it. Errors are always written.
// It reports whether the entry was written.
func (l *Logger) Record(ctx context.Context, entry Entry) bool {
	if entry.Status != StatusError && !l.Complete() {
		l.log.Debug().
			Str("status", string(entry.Status)).
			Str("section", entry.Section).
			Msg(entry.Message)
		return false
	}
	l.Write(ctx, entry)
	return true
}

// Error writes an error entry.
func (l *Logger) Error(ctx context.Context, section, sectionID, message string) {
	l.Write(ctx, Entry{
		Status:    StatusError,
		Section:   section,
		SectionID: sectionID,
		Message:   message,
	})
}

// Entries returns a copy of the entries written during the run.
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// HasErrors reports whether an error entry was written during the run.
func (l *Logger) HasErrors() bool {
	for _, e := range l.Entries() {
		if e.Status == StatusError {
			return true
		}
	}
	return false
}

func (l *Logger) stamp(entry Entry) Entry {
	if entry.Time.IsZero() {
		entry.Time = l.opts.Now()
	}
	if entry.Mode == "" {
		entry.Mode = l.opts.Mode
	}
	entry.RunID = l.opts.RunID
	return entry
}

func (l *Logger) store(ctx context.Context, entry Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	event := l.log.Info()
	if entry.Status == StatusError || entry.Status == StatusFailed {
		event = l.log.Error()
	}
	event.
		Str("status", string(entry.Status)).
		Str("section", entry.Section).
		Str("section_id", entry.SectionID).
		Str("mode", entry.Mode).
		Msg(entry.Message)

	if l.opts.Sink == nil {
		return
	}
	if err := l.opts.Sink.Append(ctx, entry); err != nil {
		l.log.Warn().Err(err).Msg("Failed to persist activity log entry")
	}
}

func (l *Logger) alert(ctx context.Context, entry Entry) {
	if !l.opts.AlertsEnabled || l.opts.Alerter == nil {
		return
	}

	if err := l.opts.Alerter.Alert(ctx, entry); err != nil {
		// A failed alert is stored but never alerts again.
		l.store(ctx, l.stamp(Entry{
			Status:    StatusFailed,
			Section:   "Email",
			SectionID: entry.SectionID,
			Message:   "Could not send log email: " + err.Error(),
		}))
	}
}
