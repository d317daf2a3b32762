// Package testutil holds in-memory collaborators shared by package tests.
package testutil

import (
	"context"
	"sort"
	"sync"

	"rmasync/pkg/models"
	"rmasync/pkg/services"
)

// MemoryStore is an in-memory services.OrderStore and services.ProfileStore.
type MemoryStore struct {
	mu       sync.Mutex
	orders   map[int64]*models.Order
	profiles map[int64]*models.CustomerProfile
	notes    map[int64][]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[int64]*models.Order),
		profiles: make(map[int64]*models.CustomerProfile),
		notes:    make(map[int64][]string),
	}
}

// AddOrder stores a copy of the order.
func (s *MemoryStore) AddOrder(o *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(o)
}

// AddProfile stores a copy of the profile.
func (s *MemoryStore) AddProfile(p *models.CustomerProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profiles[p.UserID] = &cp
}

// Order returns a copy of the order.
func (s *MemoryStore) Order(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return cloneOrder(o), nil
}

// OrderByItemID returns a copy of the order owning the item.
func (s *MemoryStore) OrderByItemID(ctx context.Context, itemID int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if _, ok := o.Item(itemID); ok {
			return cloneOrder(o), nil
		}
	}
	return nil, services.ErrNotFound
}

// ListUninvoicedOrders returns copies of the matching orders without invoice number.
func (s *MemoryStore) ListUninvoicedOrders(ctx context.Context, q services.OrderQuery) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	methods := make(map[string]bool, len(q.PaymentMethods))
	for _, m := range q.PaymentMethods {
		methods[m] = true
	}

	var out []*models.Order
	for _, o := range s.orders {
		if o.Meta[models.MetaInvoiceNumber] != "" {
			continue
		}
		if len(methods) > 0 && !methods[o.PaymentMethod] {
			continue
		}
		if q.From != nil && o.CreatedAt.Before(*q.From) {
			continue
		}
		if q.To != nil && o.CreatedAt.After(*q.To) {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetOrderMeta merges values into the order metadata.
func (s *MemoryStore) SetOrderMeta(ctx context.Context, orderID int64, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return services.ErrNotFound
	}
	if o.Meta == nil {
		o.Meta = make(map[string]string)
	}
	for k, v := range values {
		o.Meta[k] = v
	}
	return nil
}

// AddOrderNote appends a note to the order.
func (s *MemoryStore) AddOrderNote(ctx context.Context, orderID int64, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[orderID]; !ok {
		return services.ErrNotFound
	}
	s.notes[orderID] = append(s.notes[orderID], note)
	return nil
}

// OrdersByInvoiceNumber returns the sorted ids of the orders billed on an invoice.
func (s *MemoryStore) OrdersByInvoiceNumber(ctx context.Context, invoiceNumber string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, o := range s.orders {
		if o.Meta[models.MetaInvoiceNumber] == invoiceNumber {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Profile returns a copy of the profile.
func (s *MemoryStore) Profile(ctx context.Context, userID int64) (*models.CustomerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, services.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// SetCustomerNumber links the profile to a customer number.
func (s *MemoryStore) SetCustomerNumber(ctx context.Context, userID int64, customerNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return services.ErrNotFound
	}
	p.CustomerNumber = customerNumber
	return nil
}

// Meta returns one metadata value of an order.
func (s *MemoryStore) Meta(orderID int64, key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o, ok := s.orders[orderID]; ok {
		return o.Meta[key]
	}
	return ""
}

// Notes returns the notes appended to an order.
func (s *MemoryStore) Notes(orderID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notes[orderID]...)
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	c.Meta = make(map[string]string, len(o.Meta))
	for k, v := range o.Meta {
		c.Meta[k] = v
	}
	return &c
}
