// Package reconciliation copies invoice statuses from Run my Accounts back onto orders.
package reconciliation

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"rmasync/internal/activitylog"
	"rmasync/internal/logger"
	"rmasync/pkg/models"
	"rmasync/pkg/services"
)

// StatusPaid is the remote status of a settled invoice.
const StatusPaid = "PAID"

// StatusFetcher returns the status of every remote invoice keyed by invoice number.
type StatusFetcher interface {
	FetchInvoiceStatuses(ctx context.Context) (map[string]string, error)
}

// OrderStatusStore finds and updates the orders carrying an invoice number.
type OrderStatusStore interface {
	services.OrderReader
	services.OrderWriter
	services.InvoiceOrderFinder
}

// SyncReport summarizes one synchronization run.
type SyncReport struct {
	Invoices  int
	Updated   []int64
	Paid      []int64
	Unmatched []string
	Failed    int
}

// StatusSyncer writes remote invoice statuses onto local orders.
// Each order write is independent, so a sync may run while invoices are being submitted.
type StatusSyncer struct {
	fetcher  StatusFetcher
	orders   OrderStatusStore
	activity *activitylog.Logger
	now      func() time.Time
	log      zerolog.Logger
}

// NewStatusSyncer creates a StatusSyncer. now defaults to time.Now.
func NewStatusSyncer(fetcher StatusFetcher, orders OrderStatusStore, activity *activitylog.Logger, now func() time.Time) *StatusSyncer {
	if now == nil {
		now = time.Now
	}
	return &StatusSyncer{
		fetcher:  fetcher,
		orders:   orders,
		activity: activity,
		now:      now,
		log:      logger.WithComponent("reconciliation"),
	}
}

// Sync fetches all invoice statuses and stores them with a timestamp on every order
// that carries the invoice number.
func (s *StatusSyncer) Sync(ctx context.Context) (*SyncReport, error) {
	const op = "Sync"

	statuses, err := s.fetcher.FetchInvoiceStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	numbers := make([]string, 0, len(statuses))
	for number := range statuses {
		numbers = append(numbers, number)
	}
	sort.Strings(numbers)

	report := &SyncReport{Invoices: len(numbers)}
	stamp := s.now().Format(time.RFC3339)

	for _, number := range numbers {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%s: %w", op, err)
		}

		ids, err := s.orders.OrdersByInvoiceNumber(ctx, number)
		if err != nil {
			return report, fmt.Errorf("%s: failed to find orders of %s: %w", op, number, err)
		}
		if len(ids) == 0 {
			report.Unmatched = append(report.Unmatched, number)
			continue
		}

		status := statuses[number]
		for _, id := range ids {
			s.syncOrder(ctx, report, id, number, status, stamp)
		}
	}

	s.log.Info().
		Int("invoices", report.Invoices).
		Int("updated", len(report.Updated)).
		Int("unmatched", len(report.Unmatched)).
		Msg("Invoice statuses synchronized")

	s.activity.Record(ctx, activitylog.Entry{
		Status:  activitylog.StatusSuccess,
		Section: "Invoice Status",
		Message: fmt.Sprintf("Updated the invoice status of %d orders", len(report.Updated)),
	})

	return report, nil
}

func (s *StatusSyncer) syncOrder(ctx context.Context, report *SyncReport, id int64, number, status, stamp string) {
	sectionID := strconv.FormatInt(id, 10)

	var previous string
	if order, err := s.orders.Order(ctx, id); err == nil {
		previous = order.Meta[models.MetaInvoiceStatus]
	}

	err := s.orders.SetOrderMeta(ctx, id, map[string]string{
		models.MetaInvoiceStatus:          status,
		models.MetaInvoiceStatusTimestamp: stamp,
	})
	if err != nil {
		report.Failed++
		s.activity.Error(ctx, "Invoice Status", sectionID,
			fmt.Sprintf("Could not store status %s of invoice %s: %v", status, number, err))
		return
	}
	report.Updated = append(report.Updated, id)

	if status == StatusPaid && previous != StatusPaid {
		report.Paid = append(report.Paid, id)
		s.activity.Record(ctx, activitylog.Entry{
			Status:    activitylog.StatusPaid,
			Section:   "Invoice Status",
			SectionID: sectionID,
			Message:   fmt.Sprintf("Invoice %s is paid", number),
		})
	}
}
