package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"rmasync/internal/activitylog"
	"rmasync/internal/cache"
	"rmasync/internal/config"
	"rmasync/internal/customer"
	"rmasync/internal/invoice"
	"rmasync/internal/logger"
	"rmasync/internal/rental"
	"rmasync/internal/rma"
	"rmasync/internal/store"
	"rmasync/internal/submission"
)

var errNoDatabase = errors.New("DATABASE_URL is not set")

// app holds the collaborators of one command run.
type app struct {
	cfg      *config.Config
	activity *activitylog.Logger
	client   *rma.Client
	repo     *store.Repository
	cache    cache.Cache
	redis    *redis.Client
	log      zerolog.Logger
}

// newApp loads the configuration and connects the store and cache. The store is only
// required when needStore is set.
func newApp(component string, needStore bool) (*app, error) {
	log := logger.WithComponent(component)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}

	if cfg.DatabaseURL != "" {
		db, err := store.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.repo = store.NewRepository(db)
	} else if needStore {
		return nil, errNoDatabase
	}

	a.cache = cache.NewMemory(time.Now)
	if cfg.RedisAddr != "" {
		client, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, caching in memory")
		} else {
			a.redis = client
			a.cache = cache.NewRedis(client, "rmasync:")
		}
	}

	a.activity = a.newActivity()
	a.log = logger.WithRunID(log, a.activity.RunID())
	a.client = rma.New(cfg, a.activity)
	return a, nil
}

func (a *app) newActivity() *activitylog.Logger {
	opts := activitylog.Options{
		Level:         activitylog.Level(a.cfg.ActivityLevel),
		Mode:          a.cfg.ModeLabel(),
		AlertsEnabled: a.cfg.AlertEmail,
		Alerter: activitylog.NewAlerter(activitylog.EmailConfig{
			Host:     a.cfg.SMTPHost,
			Port:     a.cfg.SMTPPort,
			Username: a.cfg.SMTPUsername,
			Password: a.cfg.SMTPPassword,
			From:     a.cfg.SMTPFrom,
			To:       a.cfg.AlertEmailTo,
		}),
	}
	if a.repo != nil {
		opts.Sink = a.repo
	}
	return activitylog.New(opts)
}

func (a *app) customerBuilder() *customer.Builder {
	return customer.NewBuilder(a.cfg.CustomerPrefix, a.cfg.GuestCustomerPrefix, a.repo, a.repo, time.Now)
}

func (a *app) engine() *submission.Engine {
	return submission.NewEngine(a.cfg, submission.Deps{
		Client:    a.client,
		Orders:    a.repo,
		Profiles:  a.repo,
		Customers: a.customerBuilder(),
		Activity:  a.activity,
	})
}

// invoiceBuilder returns a builder whose resolver may create guest customers through engine.
// A nil engine gives a read-only resolver.
func (a *app) invoiceBuilder(engine *submission.Engine) *invoice.Builder {
	var creator customer.GuestCreator
	if engine != nil {
		creator = engine
	}
	resolver := customer.NewResolver(a.cfg, a.repo, creator, a.activity)
	if engine == nil {
		resolver = resolver.ReadOnly()
	}

	var filters []invoice.LineFilter
	if a.cfg.Rental.Article != "" {
		filters = append(filters, rental.NewFilter(a.cfg.Rental, a.repo, a.activity))
	}

	return invoice.NewBuilder(a.cfg, invoice.Deps{
		Parts:     a.client,
		Customers: resolver,
		Profiles:  a.repo,
		Activity:  a.activity,
		Filters:   filters,
	})
}

// finish prints the activity log of the run and releases connections.
func (a *app) finish(cmd *cobra.Command) {
	noColor, _ := cmd.Flags().GetBool("no-color")
	if err := activitylog.RenderTable(cmd.OutOrStdout(), a.activity.Entries(), !noColor); err != nil {
		a.log.Warn().Err(err).Msg("Failed to print activity log")
	}
	if a.redis != nil {
		if err := cache.DisconnectRedis(a.redis); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close redis connection")
		}
	}
}

// commandContext creates a context with timeout and signal handling
func commandContext(cmd *cobra.Command, log zerolog.Logger) (context.Context, context.CancelFunc) {
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q. Use YYYY-MM-DD: %w", value, err)
	}
	return &t, nil
}
