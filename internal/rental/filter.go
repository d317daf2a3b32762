// Package rental rewrites invoice lines of rental bookings.
package rental

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"rmasync/internal/activitylog"
	"rmasync/internal/config"
	"rmasync/internal/logger"
	"rmasync/pkg/models"
	"rmasync/pkg/services"
)

// DateTimeLayout formats booking times in line descriptions.
const DateTimeLayout = "02.01.2006 15:04"

// Filter books rental items on the configured rental article and bills them per
// booking project. It implements invoice.LineFilter.
type Filter struct {
	cfg      config.RentalConfig
	orders   services.OrderReader
	activity *activitylog.Logger
	log      zerolog.Logger
}

// NewFilter creates a Filter.
func NewFilter(cfg config.RentalConfig, orders services.OrderReader, activity *activitylog.Logger) *Filter {
	return &Filter{
		cfg:      cfg,
		orders:   orders,
		activity: activity,
		log:      logger.WithComponent("rental"),
	}
}

// FilterLine rewrites the line if its order item is a rental booking.
func (f *Filter) FilterLine(ctx context.Context, line models.LineItem, orderItemID *int64) models.LineItem {
	if orderItemID == nil {
		return line
	}

	order, err := f.orders.OrderByItemID(ctx, *orderItemID)
	if err != nil {
		f.log.Warn().Err(err).Int64("item_id", *orderItemID).Msg("Order of line item not found")
		return line
	}
	item, ok := order.Item(*orderItemID)
	if !ok || item.Rental == nil {
		return line
	}
	booking := item.Rental

	article := f.cfg.Article
	if booking.Cancellation {
		article = f.cfg.CancellationArticle
	}
	if article == "" {
		f.activity.Error(ctx, "Rental", strconv.FormatInt(order.ID, 10), "Rental booking article is not configured")
		return line
	}
	line.PartNumber = article

	if item.SKU != "" {
		line.ProjectNumber = item.SKU
	} else {
		f.activity.Error(ctx, item.Name, strconv.FormatInt(item.ProductID, 10),
			fmt.Sprintf("Product %s does not have a valid SKU.", item.Name))
	}

	line.Description = describe(order, item)

	line.SellPrice = item.Total
	if f.cfg.TaxEnabled {
		line.SellPrice = item.Total.Add(item.Tax).Round(2)
	}

	if note := strings.TrimSpace(order.CustomerNote); note != "" {
		line.ItemNote = note
	}

	return line
}

func describe(order *models.Order, item *models.OrderItem) string {
	booking := item.Rental

	var lines []string
	if booking.Cancellation {
		lines = append(lines,
			fmt.Sprintf("#%d: Cancellation of original order #%d", order.ID, booking.OriginalOrderID),
			item.Name,
		)
	} else {
		lines = append(lines,
			fmt.Sprintf("#%d: Reservation", order.ID),
			item.Name,
			booking.PickupAt.Format(DateTimeLayout)+" - "+booking.DropoffAt.Format(DateTimeLayout),
		)
	}
	lines = append(lines, "("+order.CreatedAt.Format(DateTimeLayout)+")")

	return strings.Join(lines, "\n")
}
