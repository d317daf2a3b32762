package invoice

import (
	"context"

	"rmasync/pkg/models"
)

// LineFilter rewrites a line item. orderItemID is nil for synthetic lines such as
// shipping, which filters must leave untouched. Filters only see the line they are given.
type LineFilter interface {
	FilterLine(ctx context.Context, line models.LineItem, orderItemID *int64) models.LineItem
}

// LineFilterFunc adapts a function to LineFilter.
type LineFilterFunc func(ctx context.Context, line models.LineItem, orderItemID *int64) models.LineItem

// FilterLine calls f.
func (f LineFilterFunc) FilterLine(ctx context.Context, line models.LineItem, orderItemID *int64) models.LineItem {
	return f(ctx, line, orderItemID)
}

// applyFilters runs the chain in registration order.
func applyFilters(ctx context.Context, filters []LineFilter, line models.LineItem, orderItemID *int64) models.LineItem {
	for _, f := range filters {
		line = f.FilterLine(ctx, line, orderItemID)
	}
	return line
}
