package store

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storesync/internal/models"
	"github.com/wolfeidau/storesync/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Mutation operation names, used in MutationError and telemetry.
const (
	OpUpdateOrderStatus      = "update_order_status"
	OpAssignOrder            = "assign_order"
	OpBanUser                = "ban_user"
	OpUnbanUser              = "unban_user"
	OpUpdateProduct          = "update_product"
	OpVerifyPartner          = "verify_partner"
	OpSetPartnerAvailability = "set_partner_availability"
)

// ErrEmptyUpdate is returned when UpdateProduct is called with no fields set.
var ErrEmptyUpdate = errors.New("no fields to update")

// mutation is one write against the API followed by the local effects that
// only run once the server accepted it.
type mutation struct {
	op   string
	id   string
	call func(ctx context.Context) error
	// patch applies the requested values to the in-memory lists.
	patch func()
	// invalidate lists the collection cache keys the write makes stale.
	invalidate []string
	// entity, when set, drops the touched entity from its cache.
	entity func()
}

func (s *Store) mutate(ctx context.Context, m mutation) error {
	attrs := metric.WithAttributes(attribute.String("op", m.op))
	metrics := telemetry.GetMetrics()

	if err := m.call(ctx); err != nil {
		metrics.MutationErrorsTotal.Add(ctx, 1, attrs)
		log.Warn().Err(err).Str("op", m.op).Str("id", m.id).Msg("mutation failed")
		return &MutationError{Op: m.op, ID: m.id, Err: err}
	}

	if m.patch != nil {
		m.patch()
	}

	for _, key := range m.invalidate {
		s.collections.Invalidate(key)
	}
	if m.entity != nil {
		m.entity()
	}

	metrics.MutationsTotal.Add(ctx, 1, attrs)
	log.Debug().
		Str("op", m.op).
		Str("id", m.id).
		Strs("invalidated", m.invalidate).
		Msg("mutation applied")

	return nil
}

func endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return "/" + strings.Join(escaped, "/")
}

// UpdateOrderStatus moves an order to status.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	return s.mutate(ctx, mutation{
		op: OpUpdateOrderStatus,
		id: orderID,
		call: func(ctx context.Context) error {
			return s.api.Patch(ctx, endpoint("orders", orderID, "status"), map[string]string{"status": status}, nil)
		},
		patch: func() {
			s.orders.patch(orderID, func(o *models.Order) { o.Status = status })
		},
		invalidate: []string{ResourceOrders, DashboardKey},
	})
}

// AssignOrder hands an order to a delivery partner.
func (s *Store) AssignOrder(ctx context.Context, orderID, partnerID string) error {
	return s.mutate(ctx, mutation{
		op: OpAssignOrder,
		id: orderID,
		call: func(ctx context.Context) error {
			return s.api.Put(ctx, endpoint("admin", "orders", orderID, "assign"), map[string]string{"partnerId": partnerID}, nil)
		},
		patch: func() {
			s.orders.patch(orderID, func(o *models.Order) { o.DeliveryPartnerID = partnerID })
			s.partners.patch(partnerID, func(p *models.DeliveryPartner) { p.ActiveOrders++ })
		},
		invalidate: []string{ResourceOrders, ResourcePartners, DashboardKey},
	})
}

// BanUser bans a user.
func (s *Store) BanUser(ctx context.Context, userID string) error {
	return s.setBanned(ctx, OpBanUser, userID, true)
}

// UnbanUser lifts a ban.
func (s *Store) UnbanUser(ctx context.Context, userID string) error {
	return s.setBanned(ctx, OpUnbanUser, userID, false)
}

func (s *Store) setBanned(ctx context.Context, op, userID string, banned bool) error {
	return s.mutate(ctx, mutation{
		op: op,
		id: userID,
		call: func(ctx context.Context) error {
			return s.api.Patch(ctx, endpoint("admin", "users", userID, "ban"), map[string]bool{"banned": banned}, nil)
		},
		patch: func() {
			s.users.patch(userID, func(u *models.User) { u.Banned = banned })
		},
		invalidate: []string{ResourceUsers},
		entity:     func() { s.userLookup.invalidate(userID) },
	})
}

// UpdateProduct sends the non-nil fields of update.
func (s *Store) UpdateProduct(ctx context.Context, productID string, update models.ProductUpdate) error {
	if update.IsEmpty() {
		return &MutationError{Op: OpUpdateProduct, ID: productID, Err: ErrEmptyUpdate}
	}

	return s.mutate(ctx, mutation{
		op: OpUpdateProduct,
		id: productID,
		call: func(ctx context.Context) error {
			return s.api.Put(ctx, endpoint("admin", "products", productID), update, nil)
		},
		patch: func() {
			s.products.patch(productID, update.Apply)
		},
		invalidate: []string{ResourceProducts},
		entity:     func() { s.productLookup.invalidate(productID) },
	})
}

// VerifyPartner marks a delivery partner as verified.
func (s *Store) VerifyPartner(ctx context.Context, partnerID string) error {
	return s.mutate(ctx, mutation{
		op: OpVerifyPartner,
		id: partnerID,
		call: func(ctx context.Context) error {
			return s.api.Patch(ctx, endpoint("admin", "partners", partnerID, "verify"), map[string]bool{"verified": true}, nil)
		},
		patch: func() {
			s.partners.patch(partnerID, func(p *models.DeliveryPartner) { p.Verified = true })
		},
		invalidate: []string{ResourcePartners},
	})
}

// SetPartnerAvailability toggles whether the logged in delivery partner takes
// new orders. partnerID identifies the local list entry to patch.
func (s *Store) SetPartnerAvailability(ctx context.Context, partnerID string, available bool) error {
	return s.mutate(ctx, mutation{
		op: OpSetPartnerAvailability,
		id: partnerID,
		call: func(ctx context.Context) error {
			return s.api.Patch(ctx, "/partner/availability", map[string]bool{"available": available}, nil)
		},
		patch: func() {
			s.partners.patch(partnerID, func(p *models.DeliveryPartner) { p.Available = available })
		},
		invalidate: []string{ResourcePartners},
	})
}
