package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"rmasync/internal/activitylog"
	"rmasync/pkg/models"
	"rmasync/pkg/services"
)

// Repository implements the order, profile and activity log contracts on gorm.
type Repository struct {
	db *gorm.DB
}

var (
	_ services.OrderStore   = (*Repository)(nil)
	_ services.ProfileStore = (*Repository)(nil)
	_ activitylog.Sink      = (*Repository)(nil)
)

// NewRepository creates a Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Order loads an order with its items and metadata, or services.ErrNotFound.
func (r *Repository) Order(ctx context.Context, id int64) (*models.Order, error) {
	var row OrderRow
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Meta").
		First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d: %w", id, services.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", id, err)
	}
	return orderFromRow(&row), nil
}

// OrderByItemID loads the order that owns the given line item.
func (r *Repository) OrderByItemID(ctx context.Context, itemID int64) (*models.Order, error) {
	var item OrderItemRow
	err := r.db.WithContext(ctx).Select("order_id").First(&item, "id = ?", itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order item %d: %w", itemID, services.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("order item %d: %w", itemID, err)
	}
	return r.Order(ctx, item.OrderID)
}

// ListUninvoicedOrders returns the orders without an invoice number matching q, by id.
func (r *Repository) ListUninvoicedOrders(ctx context.Context, q services.OrderQuery) ([]*models.Order, error) {
	query := r.db.WithContext(ctx).
		Model(&OrderRow{}).
		Where("NOT EXISTS (SELECT 1 FROM order_meta m WHERE m.order_id = orders.id AND m.key = ? AND m.value <> '')",
			models.MetaInvoiceNumber)

	if len(q.PaymentMethods) > 0 {
		query = query.Where("payment_method IN ?", q.PaymentMethods)
	}
	if q.From != nil {
		query = query.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("created_at <= ?", *q.To)
	}

	var rows []OrderRow
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Meta").
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list uninvoiced orders: %w", err)
	}

	out := make([]*models.Order, 0, len(rows))
	for i := range rows {
		out = append(out, orderFromRow(&rows[i]))
	}
	return out, nil
}

// SetOrderMeta upserts metadata values of an existing order in one transaction.
func (r *Repository) SetOrderMeta(ctx context.Context, orderID int64, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := orderExists(tx, orderID); err != nil {
			return err
		}

		rows := make([]OrderMetaRow, 0, len(values))
		for k, v := range values {
			rows = append(rows, OrderMetaRow{OrderID: orderID, Key: k, Value: v})
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&rows).Error
		if err != nil {
			return fmt.Errorf("set meta on order %d: %w", orderID, err)
		}
		return nil
	})
}

// AddOrderNote appends a note to an existing order.
func (r *Repository) AddOrderNote(ctx context.Context, orderID int64, note string) error {
	db := r.db.WithContext(ctx)
	if err := orderExists(db, orderID); err != nil {
		return err
	}
	if err := db.Create(&OrderNoteRow{OrderID: orderID, Note: note}).Error; err != nil {
		return fmt.Errorf("add note to order %d: %w", orderID, err)
	}
	return nil
}

// OrdersByInvoiceNumber returns the ids of the orders billed on an invoice.
func (r *Repository) OrdersByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&OrderMetaRow{}).
		Where("key = ? AND value = ?", models.MetaInvoiceNumber, invoiceNumber).
		Order("order_id").
		Pluck("order_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("orders of invoice %s: %w", invoiceNumber, err)
	}
	return ids, nil
}

// OrderNotes returns the notes of an order, oldest first.
func (r *Repository) OrderNotes(ctx context.Context, orderID int64) ([]string, error) {
	var notes []string
	err := r.db.WithContext(ctx).
		Model(&OrderNoteRow{}).
		Where("order_id = ?", orderID).
		Order("id").
		Pluck("note", &notes).Error
	return notes, err
}

// Profile loads a customer profile, or services.ErrNotFound.
func (r *Repository) Profile(ctx context.Context, userID int64) (*models.CustomerProfile, error) {
	var row ProfileRow
	err := r.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("profile %d: %w", userID, services.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("profile %d: %w", userID, err)
	}
	return profileFromRow(&row), nil
}

// SetCustomerNumber links a profile to a Run my Accounts customer number.
func (r *Repository) SetCustomerNumber(ctx context.Context, userID int64, customerNumber string) error {
	res := r.db.WithContext(ctx).
		Model(&ProfileRow{}).
		Where("user_id = ?", userID).
		Update("customer_number", customerNumber)
	if res.Error != nil {
		return fmt.Errorf("link profile %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("profile %d: %w", userID, services.ErrNotFound)
	}
	return nil
}

// SaveOrder inserts or replaces an order together with its items and metadata.
func (r *Repository) SaveOrder(ctx context.Context, o *models.Order) error {
	row := rowFromOrder(o)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", o.ID).Delete(&OrderItemRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", o.ID).Delete(&OrderMetaRow{}).Error; err != nil {
			return err
		}
		if err := tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(row).Error; err != nil {
			return fmt.Errorf("save order %d: %w", o.ID, err)
		}
		return nil
	})
}

// SaveProfile inserts or replaces a customer profile.
func (r *Repository) SaveProfile(ctx context.Context, p *models.CustomerProfile) error {
	if err := r.db.WithContext(ctx).Save(rowFromProfile(p)).Error; err != nil {
		return fmt.Errorf("save profile %d: %w", p.UserID, err)
	}
	return nil
}

// LinkedProfiles returns the profiles that carry a customer number.
func (r *Repository) LinkedProfiles(ctx context.Context) ([]*models.CustomerProfile, error) {
	var rows []ProfileRow
	err := r.db.WithContext(ctx).Where("customer_number <> ''").Order("user_id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*models.CustomerProfile, 0, len(rows))
	for i := range rows {
		out = append(out, profileFromRow(&rows[i]))
	}
	return out, nil
}

// Append persists an activity log entry.
func (r *Repository) Append(ctx context.Context, entry activitylog.Entry) error {
	return r.db.WithContext(ctx).Create(rowFromActivity(entry)).Error
}

// RecentActivity returns the newest entries first, optionally limited to one status.
func (r *Repository) RecentActivity(ctx context.Context, status activitylog.Status, limit int) ([]activitylog.Entry, error) {
	query := r.db.WithContext(ctx).Model(&ActivityRow{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []ActivityRow
	if err := query.Order("logged_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	out := make([]activitylog.Entry, 0, len(rows))
	for i := range rows {
		out = append(out, activityFromRow(&rows[i]))
	}
	return out, nil
}

func orderExists(db *gorm.DB, orderID int64) error {
	var count int64
	if err := db.Model(&OrderRow{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
		return fmt.Errorf("order %d: %w", orderID, err)
	}
	if count == 0 {
		return fmt.Errorf("order %d: %w", orderID, services.ErrNotFound)
	}
	return nil
}
