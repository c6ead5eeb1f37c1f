package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storesync/internal/api"
	"github.com/wolfeidau/storesync/internal/cache"
	"github.com/wolfeidau/storesync/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// Getter performs a GET and decodes the envelope data into out.
type Getter interface {
	Get(ctx context.Context, path string, params api.Params, out any) error
}

type resourceSpec[T any] struct {
	name   string // collection cache key
	path   string // list endpoint
	field  string // array field inside data
	id     func(T) string
	status func(T) string
}

// Resource keeps the paginated list of one server collection in sync.
//
// Page 1 is served from the collection cache while its snapshot is valid.
// Later pages always hit the network and are appended in server order.
// Concurrent fetches of the same page share one request. The mutex guarding
// the state is never held while a request is in flight.
type Resource[T any] struct {
	spec     resourceSpec[T]
	api      Getter
	cache    *cache.Cache[string, any]
	pageSize int
	summary  bool

	group singleflight.Group

	mu       sync.Mutex
	state    State[T]
	inflight int
	// epoch changes whenever List is replaced wholesale; an appended page is
	// only applied to the list it was requested for.
	epoch uint64
	// resets changes on Reset; results started before a reset are dropped.
	resets uint64
}

func newResource[T any](spec resourceSpec[T], getter Getter, collections *cache.Cache[string, any], cfg Config) *Resource[T] {
	return &Resource[T]{
		spec:     spec,
		api:      getter,
		cache:    collections,
		pageSize: cfg.PageSize,
		summary:  cfg.Summary,
	}
}

// Name returns the resource name, also its collection cache key.
func (r *Resource[T]) Name() string {
	return r.spec.name
}

// State returns a copy of the current state.
func (r *Resource[T]) State() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshot()
}

// FetchPage loads page and returns the resulting state. A page 1 request
// without force is answered from a valid cached snapshot when there is one.
// A later page must directly follow the last merged page: a page already
// merged returns the current state and one that skips ahead is refused, both
// without a request. Errors are recorded in State.Error and never
// returned.
func (r *Resource[T]) FetchPage(ctx context.Context, page int, force bool) State[T] {
	if page < 1 {
		page = 1
	}

	if page == 1 && !force {
		if snap, ok := cache.Lookup[State[T]](r.cache, r.spec.name); ok {
			r.mu.Lock()
			defer r.mu.Unlock()

			r.state = snap.Clone()
			r.epoch++
			return r.snapshot()
		}
	}

	if page > 1 {
		r.mu.Lock()
		if page <= r.state.Page {
			// merged already, possibly by a concurrent LoadMore
			defer r.mu.Unlock()
			return r.snapshot()
		}
		if page > r.state.Page+1 {
			defer r.mu.Unlock()

			r.state.Error = (&FetchError{Resource: r.spec.name, Page: page, Err: ErrPageOutOfOrder}).Error()
			log.Warn().
				Str("resource", r.spec.name).
				Int("page", page).
				Int("current_page", r.state.Page).
				Msg("refusing out of order page")
			return r.snapshot()
		}
		r.mu.Unlock()
	}

	v, err, shared := r.group.Do(strconv.Itoa(page), func() (any, error) {
		return r.fetch(ctx, page), nil
	})
	if shared {
		telemetry.GetMetrics().FetchesSharedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("resource", r.spec.name)))
	}
	if err != nil {
		// fetch never fails, errors live in the state
		return r.State()
	}

	return v.(State[T]).Clone()
}

// LoadMore fetches the page after the last one merged. With no prior fetch
// it loads page 1; once HasMore is false it returns the current state without
// touching the network.
func (r *Resource[T]) LoadMore(ctx context.Context) State[T] {
	r.mu.Lock()
	page, hasMore := r.state.Page, r.state.HasMore
	r.mu.Unlock()

	if page == 0 {
		return r.FetchPage(ctx, 1, false)
	}
	if !hasMore {
		return r.State()
	}

	return r.FetchPage(ctx, page+1, false)
}

// Refresh refetches page 1 bypassing the cache.
func (r *Resource[T]) Refresh(ctx context.Context) State[T] {
	return r.FetchPage(ctx, 1, true)
}

// All keeps loading pages until the server runs out or a fetch fails.
func (r *Resource[T]) All(ctx context.Context) State[T] {
	st := r.FetchPage(ctx, 1, false)
	for st.HasMore && st.Error == "" && ctx.Err() == nil {
		next := r.LoadMore(ctx)
		if next.Page == st.Page {
			// nothing merged, a concurrent reset or reload won
			return next
		}
		st = next
	}
	return st
}

// Reset discards the in-memory state. In-flight results are dropped when
// they land.
func (r *Resource[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = State[T]{}
	r.epoch++
	r.resets++
}

// patch applies fn to every item matching id and recomputes the status
// counts. It reports whether anything matched.
func (r *Resource[T]) patch(id string, fn func(*T)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := false
	for i := range r.state.List {
		if r.spec.id(r.state.List[i]) == id {
			fn(&r.state.List[i])
			matched = true
		}
	}

	if matched {
		r.state.StatusCounts = countStatuses(r.state.List, r.spec.status)
	}

	return matched
}

type listResult[T any] struct {
	items []T
	total *int
}

func (r *Resource[T]) fetch(ctx context.Context, page int) State[T] {
	r.mu.Lock()
	epoch, resets := r.epoch, r.resets
	r.inflight++
	r.mu.Unlock()

	gen := r.cache.Generation(r.spec.name)

	res, err := r.request(ctx, page)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.inflight--

	if resets != r.resets {
		log.Debug().Str("resource", r.spec.name).Int("page", page).Msg("dropping result fetched before reset")
		return r.snapshot()
	}

	if err != nil {
		fetchErr := &FetchError{Resource: r.spec.name, Page: page, Err: err}
		r.state.Error = fetchErr.Error()
		log.Warn().Err(err).Str("resource", r.spec.name).Int("page", page).Msg("fetch failed")
		return r.snapshot()
	}

	if page > 1 && (epoch != r.epoch || page != r.state.Page+1) {
		log.Debug().
			Str("resource", r.spec.name).
			Int("page", page).
			Int("current_page", r.state.Page).
			Msg("discarding page fetched for a replaced list")
		return r.snapshot()
	}

	if page == 1 {
		r.state.List = slices.Clone(res.items)
		r.epoch++
	} else {
		r.state.List = append(r.state.List, res.items...)
	}

	r.state.Page = page
	r.state.HasMore = len(res.items) == r.pageSize
	r.state.Total = len(r.state.List)
	if res.total != nil && *res.total > r.state.Total {
		r.state.Total = *res.total
	}
	r.state.StatusCounts = countStatuses(r.state.List, r.spec.status)
	r.state.Error = ""

	if page == 1 {
		snap := r.state.Clone()
		snap.Loading = false
		r.cache.PutIfGeneration(r.spec.name, snap, gen)
	}

	return r.snapshot()
}

func (r *Resource[T]) request(ctx context.Context, page int) (listResult[T], error) {
	attrs := metric.WithAttributes(attribute.String("resource", r.spec.name))
	metrics := telemetry.GetMetrics()
	started := time.Now()

	metrics.FetchesTotal.Add(ctx, 1, attrs)

	var data map[string]json.RawMessage
	err := r.api.Get(ctx, r.spec.path, api.Params{Page: page, Limit: r.pageSize, Summary: r.summary}, &data)

	metrics.FetchDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)

	if err == nil {
		var res listResult[T]
		res, err = r.decode(data)
		if err == nil {
			log.Debug().
				Str("resource", r.spec.name).
				Int("page", page).
				Int("items", len(res.items)).
				Dur("duration", time.Since(started)).
				Msg("fetched page")
			return res, nil
		}
	}

	metrics.FetchErrorsTotal.Add(ctx, 1, attrs)
	return listResult[T]{}, err
}

func (r *Resource[T]) decode(data map[string]json.RawMessage) (listResult[T], error) {
	var res listResult[T]

	if raw, ok := data[r.spec.field]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &res.items); err != nil {
			return res, fmt.Errorf("failed to decode %s: %w", r.spec.field, err)
		}
	}

	if raw, ok := data["total"]; ok && string(raw) != "null" {
		var total int
		if err := json.Unmarshal(raw, &total); err != nil {
			return res, fmt.Errorf("failed to decode total: %w", err)
		}
		res.total = &total
	}

	return res, nil
}

// snapshot must be called with mu held.
func (r *Resource[T]) snapshot() State[T] {
	s := r.state.Clone()
	s.Loading = r.inflight > 0
	return s
}
