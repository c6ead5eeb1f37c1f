// Package store is the client-side synchronization layer between the
// storefront consoles and the remote data API.
//
// A Store owns the session, a collection cache of page 1 snapshots, per type
// entity caches and the paginated state of every resource. Reads are cache
// first and absorb errors into state; writes call the API, patch the loaded
// lists and invalidate what they made stale. Only the session survives a
// restart: caches always start cold.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storesync/internal/api"
	"github.com/wolfeidau/storesync/internal/cache"
	"github.com/wolfeidau/storesync/internal/models"
	"github.com/wolfeidau/storesync/internal/session"
	"github.com/wolfeidau/storesync/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Resource names, also their collection cache keys.
const (
	ResourceOrders   = "orders"
	ResourceUsers    = "users"
	ResourceProducts = "products"
	ResourcePartners = "partners"
)

// API is the collaborator the store drives.
type API interface {
	session.API
	Getter
	Put(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
}

var _ API = (*api.Client)(nil)

// Store is the explicitly constructed context object shared by every
// consumer of the synchronization layer.
type Store struct {
	cfg      Config
	api      API
	sessions *session.Manager

	collections *cache.Cache[string, any]
	registry    cache.Registry

	orders    *Resource[models.Order]
	users     *Resource[models.User]
	products  *Resource[models.Product]
	partners  *Resource[models.DeliveryPartner]
	dashboard *dashboard

	userLookup    *entityLookup[models.User]
	productLookup *entityLookup[models.Product]
}

// Option configures a Store.
type Option func(*options)

type options struct {
	sessionOpts []session.Option
	caches      []cache.Clearer
}

// WithSessionOptions passes options through to the session manager.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *options) {
		o.sessionOpts = append(o.sessionOpts, opts...)
	}
}

// WithCaches registers extra caches, such as the HTTP response cache, to be
// emptied together with the store's own on logout, principal change and
// refresh.
func WithCaches(caches ...cache.Clearer) Option {
	return func(o *options) {
		o.caches = append(o.caches, caches...)
	}
}

// New validates cfg and builds a store with cold caches and an
// unauthenticated session. Call Init to restore a persisted session.
func New(client API, durable storage.Store, cfg Config, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("api client is required")
	}
	if durable == nil {
		return nil, errors.New("durable storage is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sessionOpts := o.sessionOpts
	if cfg.Clock != nil {
		sessionOpts = append([]session.Option{session.WithClock(cfg.Clock)}, sessionOpts...)
	}

	s := &Store{
		cfg:         cfg,
		api:         client,
		sessions:    session.NewManager(client, durable, sessionOpts...),
		collections: cache.New[string, any]("collections", cache.WithTTL(cfg.CollectionTTL), cache.WithClock(cfg.Clock)),
	}

	s.orders = newResource(resourceSpec[models.Order]{
		name:   ResourceOrders,
		path:   "/admin/orders",
		field:  "orders",
		id:     func(o models.Order) string { return o.ID },
		status: func(o models.Order) string { return o.Status },
	}, client, s.collections, cfg)

	s.users = newResource(resourceSpec[models.User]{
		name:   ResourceUsers,
		path:   "/admin/users",
		field:  "users",
		id:     func(u models.User) string { return u.ID },
		status: models.User.UserStatus,
	}, client, s.collections, cfg)

	s.products = newResource(resourceSpec[models.Product]{
		name:   ResourceProducts,
		path:   "/products",
		field:  "products",
		id:     func(p models.Product) string { return p.ID },
		status: func(p models.Product) string { return p.Status },
	}, client, s.collections, cfg)

	s.partners = newResource(resourceSpec[models.DeliveryPartner]{
		name:   ResourcePartners,
		path:   "/admin/partners",
		field:  "partners",
		id:     func(p models.DeliveryPartner) string { return p.ID },
		status: models.DeliveryPartner.PartnerStatus,
	}, client, s.collections, cfg)

	s.dashboard = &dashboard{api: client, cache: s.collections}

	s.userLookup = newEntityLookup[models.User]("user", "/admin/users/", "user", client, cfg)
	s.productLookup = newEntityLookup[models.Product]("product", "/products/", "product", client, cfg)

	s.registry.Register(s.collections, s.userLookup.cache, s.productLookup.cache)
	s.registry.Register(o.caches...)

	s.sessions.OnLogout(s.Reset)

	return s, nil
}

// Init runs the two phase startup: restore the durable session, then prime
// the ephemeral caches. It reports whether a session was restored.
func (s *Store) Init(ctx context.Context) bool {
	restored := s.RestoreSession()
	s.PrimeCaches(ctx)
	return restored
}

// RestoreSession rehydrates the session from durable storage.
func (s *Store) RestoreSession() bool {
	return s.sessions.Restore()
}

// PrimeCaches is the second startup phase. Caches are never persisted so
// there is nothing to load; it exists so durable and ephemeral state stay
// separate steps.
func (s *Store) PrimeCaches(context.Context) {
	log.Debug().Strs("caches", s.registry.Names()).Msg("caches start cold")
}

// Login authenticates and persists the session.
func (s *Store) Login(ctx context.Context, creds models.Credentials) (models.Principal, error) {
	return s.sessions.Login(ctx, creds)
}

// Logout ends the session and empties every cache and resource state. It
// never fails.
func (s *Store) Logout(ctx context.Context) error {
	return s.sessions.Logout(ctx)
}

// Session returns a copy of the current session.
func (s *Store) Session() session.Session {
	return s.sessions.Current()
}

// IsAuthenticated reports whether a principal is logged in.
func (s *Store) IsAuthenticated() bool {
	return s.sessions.IsAuthenticated()
}

// Orders returns the orders resource.
func (s *Store) Orders() *Resource[models.Order] {
	return s.orders
}

// Users returns the users resource.
func (s *Store) Users() *Resource[models.User] {
	return s.users
}

// Products returns the products resource.
func (s *Store) Products() *Resource[models.Product] {
	return s.products
}

// Partners returns the delivery partners resource.
func (s *Store) Partners() *Resource[models.DeliveryPartner] {
	return s.partners
}

// Dashboard returns the dashboard summary, from cache unless force is set.
func (s *Store) Dashboard(ctx context.Context, force bool) DashboardState {
	return s.dashboard.get(ctx, force)
}

// CurrentDashboard returns the last known dashboard state without fetching.
func (s *Store) CurrentDashboard() DashboardState {
	return s.dashboard.current()
}

// User looks up a single user by id.
func (s *Store) User(ctx context.Context, id string) (models.User, error) {
	return s.userLookup.get(ctx, id)
}

// Product looks up a single product by id.
func (s *Store) Product(ctx context.Context, id string) (models.Product, error) {
	return s.productLookup.get(ctx, id)
}

// CachedCollections reports how many collection snapshots are stored.
func (s *Store) CachedCollections() int {
	return s.collections.Len()
}

// RefreshAll empties every cache and refetches the dashboard and page 1 of
// every resource concurrently. Fetch errors end up in the resource states;
// the returned error only reports context cancellation.
func (s *Store) RefreshAll(ctx context.Context) error {
	s.registry.ClearAll()

	var g errgroup.Group
	g.Go(func() error { s.dashboard.get(ctx, true); return nil })
	g.Go(func() error { s.orders.Refresh(ctx); return nil })
	g.Go(func() error { s.users.Refresh(ctx); return nil })
	g.Go(func() error { s.products.Refresh(ctx); return nil })
	g.Go(func() error { s.partners.Refresh(ctx); return nil })

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("refresh cancelled: %w", err)
	}
	return nil
}

// Reset empties every cache and resource state. The session is untouched.
func (s *Store) Reset() {
	s.registry.ClearAll()

	s.orders.Reset()
	s.users.Reset()
	s.products.Reset()
	s.partners.Reset()
	s.dashboard.reset()

	log.Debug().Msg("store reset")
}

// Close tears the store down. It is safe to call more than once.
func (s *Store) Close() error {
	s.Reset()
	return nil
}
