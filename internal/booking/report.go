// Package booking builds the project bookings report: every receivable part and
// payable expense entry in Run my Accounts that carries a project number.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"rmasync/internal/cache"
	"rmasync/internal/config"
	"rmasync/internal/logger"
	"rmasync/internal/rma"
	"rmasync/pkg/services"
)

const (
	// CacheKey stores the last report.
	CacheKey = "bookings:project"
	// CacheTTL keeps a report for three days.
	CacheTTL = 72 * time.Hour
)

// Source is the part of the Run my Accounts client the report reads from.
type Source interface {
	FetchChartOfAccounts(ctx context.Context) (map[string]string, error)
	FetchInvoices(ctx context.Context, q rma.InvoiceQuery) ([]rma.InvoiceRecord, error)
	FetchPayables(ctx context.Context) ([]rma.PayableRecord, error)
}

// Window is one month of receivable invoices, both days inclusive.
type Window struct {
	From time.Time
	To   time.Time
}

// MonthlyWindows splits the range from the month of start up to, but excluding, the first
// day of the month before now into calendar months.
func MonthlyWindows(start, now time.Time) []Window {
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)

	var windows []Window
	for m := first; m.Before(end); m = m.AddDate(0, 1, 0) {
		windows = append(windows, Window{From: m, To: m.AddDate(0, 1, -1)})
	}
	return windows
}

// Reporter implements services.BookingReporter.
type Reporter struct {
	source    Source
	cache     cache.Cache
	start     time.Time
	anonymize map[string]bool
	now       func() time.Time
	log       zerolog.Logger
}

// NewReporter creates a Reporter. c may be nil to disable caching.
func NewReporter(cfg *config.Config, source Source, c cache.Cache, now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	anonymize := make(map[string]bool, len(cfg.AnonymizeAccounts))
	for _, acc := range cfg.AnonymizeAccounts {
		anonymize[acc] = true
	}
	return &Reporter{
		source:    source,
		cache:     c,
		start:     cfg.BookingsStart,
		anonymize: anonymize,
		now:       now,
		log:       logger.WithComponent("booking"),
	}
}

// ProjectBookings returns the cached report unless refresh is set or the cache is empty.
func (r *Reporter) ProjectBookings(ctx context.Context, refresh bool) ([]services.ProjectBooking, error) {
	const op = "ProjectBookings"

	if r.cache != nil && !refresh {
		var cached []services.ProjectBooking
		err := cache.GetJSON(ctx, r.cache, CacheKey, &cached)
		if err == nil {
			r.log.Debug().Int("bookings", len(cached)).Msg("Using cached project bookings")
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			r.log.Warn().Err(err).Msg("Could not read cached project bookings")
		}
	}

	bookings, err := r.collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if r.cache != nil {
		if err := cache.SetJSON(ctx, r.cache, CacheKey, bookings, CacheTTL); err != nil {
			r.log.Warn().Err(err).Msg("Could not cache project bookings")
		}
	}
	return bookings, nil
}

func (r *Reporter) collect(ctx context.Context) ([]services.ProjectBooking, error) {
	charts, err := r.source.FetchChartOfAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart of accounts: %w", err)
	}

	var bookings []services.ProjectBooking

	windows := MonthlyWindows(r.start, r.now())
	for _, w := range windows {
		invoices, err := r.source.FetchInvoices(ctx, rma.InvoiceQuery{From: w.From, To: w.To})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch invoices from %s: %w", w.From.Format("2006-01-02"), err)
		}
		for _, inv := range invoices {
			bookings = append(bookings, r.receivables(inv, charts)...)
		}
	}

	payables, err := r.source.FetchPayables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payables: %w", err)
	}
	for _, p := range payables {
		bookings = append(bookings, r.payables(p, charts)...)
	}

	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].Date.Before(bookings[j].Date)
	})

	r.log.Info().
		Int("months", len(windows)).
		Int("bookings", len(bookings)).
		Msg("Project bookings collected")

	return bookings, nil
}

func (r *Reporter) receivables(inv rma.InvoiceRecord, charts map[string]string) []services.ProjectBooking {
	date := r.parseDate(inv.TransactionDate, inv.Number)

	var out []services.ProjectBooking
	for _, part := range inv.Parts {
		if part.SellPrice.IsZero() || part.ProjectNumber == "" {
			continue
		}
		out = append(out, services.ProjectBooking{
			Type:          services.BookingReceivable,
			AccountNumber: part.IncomeAccount,
			AccountName:   charts[part.IncomeAccount],
			ProjectNumber: part.ProjectNumber,
			Date:          date,
			Description:   part.Description,
			Value:         part.SellPrice.Decimal,
		})
	}
	return out
}

func (r *Reporter) payables(p rma.PayableRecord, charts map[string]string) []services.ProjectBooking {
	date := r.parseDate(p.TransactionDate, p.Number)

	var out []services.ProjectBooking
	for _, entry := range p.ExpenseEntries {
		if entry.Amount.IsZero() || entry.ProjectNumber == "" {
			continue
		}

		description := PlainText(p.Description)
		if r.anonymize[entry.ExpenseAccount] {
			description = charts[entry.ExpenseAccount]
		}

		out = append(out, services.ProjectBooking{
			Type:          services.BookingPayable,
			AccountNumber: entry.ExpenseAccount,
			AccountName:   charts[entry.ExpenseAccount],
			ProjectNumber: entry.ProjectNumber,
			Date:          date,
			Description:   description,
			Value:         entry.Amount.Decimal,
		})
	}
	return out
}

func (r *Reporter) parseDate(d rma.Date, number string) time.Time {
	t, err := d.Time()
	if err != nil {
		r.log.Warn().Err(err).Str("number", number).Msg("Invalid transaction date")
	}
	return t
}

// PlainText decodes entities and drops markup from a description.
func PlainText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))

	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}
