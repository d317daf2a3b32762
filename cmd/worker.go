package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"rmasync/internal/booking"
	"rmasync/internal/reconciliation"
	"rmasync/internal/rma"
	"rmasync/internal/tasks"
	"rmasync/pkg/services"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the scheduled background jobs",
	Long: `Run the asynq scheduler and task server. Invoice statuses are synchronized
hourly. When GOOGLE_SHEET_URL is set the project bookings sheet is refreshed daily.

Required environment variables:
  REDIS_ADDR   - Redis server holding the task queue
  DATABASE_URL - PostgreSQL DSN of the order store`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	a, err := newApp("worker", true)
	if err != nil {
		return err
	}
	defer a.finish(cmd)

	if a.cfg.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR environment variable is required")
	}

	deps := tasks.Deps{
		// Each task run gets its own activity log.
		StatusSyncer: func() tasks.StatusSyncer {
			activity := a.newActivity()
			return reconciliation.NewStatusSyncer(rma.New(a.cfg, activity), a.repo, activity, time.Now)
		},
		Bookings: func() services.BookingReporter {
			return booking.NewReporter(a.cfg, rma.New(a.cfg, a.newActivity()), a.cache, time.Now)
		},
		Worksheet: a.cfg.GoogleSheetWorksheet,
	}
	if a.cfg.GoogleSheetURL != "" {
		service, err := a.sheetsService(cmd.Context())
		if err != nil {
			return err
		}
		deps.Sheet = service
	}

	srv, mux := tasks.NewServer(a.cfg, tasks.NewTaskProcessor(deps))
	scheduler, err := tasks.NewScheduler(a.cfg)
	if err != nil {
		return err
	}

	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer scheduler.Shutdown()

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start task server: %w", err)
	}
	defer srv.Shutdown()

	a.log.Info().Str("redis", a.cfg.RedisAddr).Msg("Worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	a.log.Info().Str("signal", sig.String()).Msg("Worker shutting down")
	return nil
}
