package customer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"rmasync/internal/activitylog"
	"rmasync/internal/config"
	"rmasync/internal/logger"
	"rmasync/pkg/models"
	"rmasync/pkg/services"
)

// GuestCreator creates a Run my Accounts customer for a guest order and returns its number.
type GuestCreator interface {
	CreateGuestCustomer(ctx context.Context, orderID int64) (string, error)
}

// Resolver finds the customer number an order is invoiced to.
//
// Registered customers use the number linked to their profile. Guest orders use the
// number already stored on the order, a freshly created guest customer when automatic
// creation is enabled, or the catch-all guest customer otherwise.
type Resolver struct {
	cfg      *config.Config
	profiles services.ProfileStore
	creator  GuestCreator
	activity *activitylog.Logger
	readOnly bool
	log      zerolog.Logger
}

// NewResolver creates a Resolver. creator may be nil when guest creation is disabled.
func NewResolver(cfg *config.Config, profiles services.ProfileStore, creator GuestCreator, activity *activitylog.Logger) *Resolver {
	return &Resolver{
		cfg:      cfg,
		profiles: profiles,
		creator:  creator,
		activity: activity,
		log:      logger.WithComponent("customer"),
	}
}

// ReadOnly returns a resolver that never creates customers. Guests that would need a new
// customer resolve to an empty number.
func (r *Resolver) ReadOnly() *Resolver {
	c := *r
	c.readOnly = true
	return &c
}

// ResolveCustomerNumber implements invoice.CustomerResolver.
func (r *Resolver) ResolveCustomerNumber(ctx context.Context, order *models.Order) (string, error) {
	const op = "ResolveCustomerNumber"

	if !order.IsGuest() {
		profile, err := r.profiles.Profile(ctx, order.CustomerID)
		if errors.Is(err, services.ErrNotFound) {
			r.log.Warn().Int64("customer_id", order.CustomerID).Msg("Customer profile not found")
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return profile.CustomerNumber, nil
	}

	if number := order.Meta[models.MetaCustomerNumber]; number != "" {
		return number, nil
	}

	if !r.cfg.CreateGuestCustomer {
		return r.cfg.GuestCatchAll, nil
	}
	if r.readOnly || r.creator == nil {
		return "", nil
	}

	number, err := r.creator.CreateGuestCustomer(ctx, order.ID)
	if err != nil || number == "" {
		msg := "Could not create RMA customer dedicated guest account"
		if err != nil {
			msg += ": " + err.Error()
		}
		r.activity.Error(ctx, "Customer", strconv.FormatInt(order.ID, 10), msg)
		return "", nil
	}
	return number, nil
}
