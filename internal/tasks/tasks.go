// Package tasks runs the periodic Run my Accounts jobs on asynq.
package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"rmasync/internal/config"
	"rmasync/internal/logger"
	"rmasync/internal/reconciliation"
	"rmasync/pkg/services"
)

// TaskType defines the type of a background task.
const (
	TypeStatusSync      = "rma:invoice:status_sync"
	TypeBookingsRefresh = "rma:bookings:refresh"
)

// Schedule is one periodic task.
type Schedule struct {
	Cron string
	Type string
}

// Schedules returns the periodic tasks for the configuration. Invoice statuses are
// synchronized hourly; the bookings sheet is refreshed daily when a sheet is configured.
func Schedules(cfg *config.Config) []Schedule {
	out := []Schedule{{Cron: "@hourly", Type: TypeStatusSync}}
	if cfg.GoogleSheetURL != "" {
		out = append(out, Schedule{Cron: "@daily", Type: TypeBookingsRefresh})
	}
	return out
}

// RedisOpt returns the asynq connection options of the configured redis server.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// NewClient returns a client that enqueues tasks on demand.
func NewClient(cfg *config.Config) *asynq.Client {
	return asynq.NewClient(RedisOpt(cfg))
}

// NewScheduler registers all periodic tasks.
func NewScheduler(cfg *config.Config) (*asynq.Scheduler, error) {
	const op = "NewScheduler"

	log := logger.WithComponent("tasks")
	scheduler := asynq.NewScheduler(RedisOpt(cfg), &asynq.SchedulerOpts{
		EnqueueErrorHandler: func(task *asynq.Task, opts []asynq.Option, err error) {
			log.Error().Err(err).Str("type", task.Type()).Msg("Failed to enqueue scheduled task")
		},
	})

	for _, s := range Schedules(cfg) {
		id, err := scheduler.Register(s.Cron, asynq.NewTask(s.Type, nil))
		if err != nil {
			return nil, fmt.Errorf("%s: failed to register %s: %w", op, s.Type, err)
		}
		log.Info().Str("type", s.Type).Str("cron", s.Cron).Str("entry_id", id).Msg("Scheduled task registered")
	}
	return scheduler, nil
}

// StatusSyncer synchronizes invoice statuses once.
type StatusSyncer interface {
	Sync(ctx context.Context) (*reconciliation.SyncReport, error)
}

// BookingWriter exports the project bookings report.
type BookingWriter interface {
	WriteBookings(ctx context.Context, bookings []services.ProjectBooking, sheetName string) error
}

// Deps are the collaborators of a TaskProcessor. The factories are called once per task
// so that every run gets its own activity log.
type Deps struct {
	StatusSyncer func() StatusSyncer
	Bookings     func() services.BookingReporter
	Sheet        BookingWriter // optional
	Worksheet    string
}

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	deps Deps
	log  zerolog.Logger
}

// NewTaskProcessor creates a TaskProcessor.
func NewTaskProcessor(deps Deps) *TaskProcessor {
	return &TaskProcessor{deps: deps, log: logger.WithComponent("tasks")}
}

// NewServer returns an asynq server and the mux with all handlers registered.
func NewServer(cfg *config.Config, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	log := logger.WithComponent("tasks")

	srv := asynq.NewServer(
		RedisOpt(cfg),
		asynq.Config{
			Concurrency: 1,
			Queues:      map[string]int{"default": 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("type", task.Type()).Msg("Task failed")
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeStatusSync, processor.HandleStatusSyncTask)
	mux.HandleFunc(TypeBookingsRefresh, processor.HandleBookingsRefreshTask)

	return srv, mux
}

// HandleStatusSyncTask copies remote invoice statuses onto orders.
func (p *TaskProcessor) HandleStatusSyncTask(ctx context.Context, t *asynq.Task) error {
	report, err := p.deps.StatusSyncer().Sync(ctx)
	if err != nil {
		return fmt.Errorf("status sync: %w", err)
	}

	p.log.Info().
		Int("invoices", report.Invoices).
		Int("updated", len(report.Updated)).
		Int("paid", len(report.Paid)).
		Msg("Status sync task finished")
	return nil
}

// HandleBookingsRefreshTask rebuilds the project bookings report and exports it.
func (p *TaskProcessor) HandleBookingsRefreshTask(ctx context.Context, t *asynq.Task) error {
	if p.deps.Sheet == nil {
		return fmt.Errorf("bookings refresh: no sheet configured: %w", asynq.SkipRetry)
	}

	bookings, err := p.deps.Bookings().ProjectBookings(ctx, true)
	if err != nil {
		return fmt.Errorf("bookings refresh: %w", err)
	}
	if err := p.deps.Sheet.WriteBookings(ctx, bookings, p.deps.Worksheet); err != nil {
		return fmt.Errorf("bookings refresh: %w", err)
	}

	p.log.Info().Int("bookings", len(bookings)).Msg("Bookings refresh task finished")
	return nil
}
