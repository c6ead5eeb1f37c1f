package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storesync/internal/api"
	"github.com/wolfeidau/storesync/internal/cache"
	"github.com/wolfeidau/storesync/internal/models"
	"github.com/wolfeidau/storesync/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

const (
	// DashboardKey is the collection cache key of the dashboard summary.
	DashboardKey  = "dashboard"
	dashboardPath = "/admin/dashboard"
)

// dashboard follows the page 1 policy of Resource for a single,
// non-paginated snapshot.
type dashboard struct {
	api   Getter
	cache *cache.Cache[string, any]
	group singleflight.Group

	mu       sync.Mutex
	state    DashboardState
	inflight int
	resets   uint64
}

func (d *dashboard) get(ctx context.Context, force bool) DashboardState {
	if !force {
		if data, ok := cache.Lookup[models.Dashboard](d.cache, DashboardKey); ok {
			d.mu.Lock()
			defer d.mu.Unlock()

			d.state.Data = cloneDashboard(data)
			d.state.Loaded = true
			d.state.Error = ""
			return d.snapshot()
		}
	}

	v, _, shared := d.group.Do(DashboardKey, func() (any, error) {
		return d.fetch(ctx), nil
	})
	if shared {
		telemetry.GetMetrics().FetchesSharedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("resource", DashboardKey)))
	}

	st := v.(DashboardState)
	st.Data = cloneDashboard(st.Data)
	return st
}

func (d *dashboard) fetch(ctx context.Context) DashboardState {
	d.mu.Lock()
	resets := d.resets
	d.inflight++
	d.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("resource", DashboardKey))
	metrics := telemetry.GetMetrics()
	started := time.Now()

	gen := d.cache.Generation(DashboardKey)
	metrics.FetchesTotal.Add(ctx, 1, attrs)

	var data models.Dashboard
	err := d.api.Get(ctx, dashboardPath, api.Params{Summary: true}, &data)
	metrics.FetchDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)
	if err != nil {
		metrics.FetchErrorsTotal.Add(ctx, 1, attrs)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.inflight--

	if resets != d.resets {
		return d.snapshot()
	}

	if err != nil {
		d.state.Error = (&FetchError{Resource: DashboardKey, Err: err}).Error()
		log.Warn().Err(err).Msg("dashboard fetch failed")
		return d.snapshot()
	}

	d.state.Data = data
	d.state.Loaded = true
	d.state.Error = ""
	d.cache.PutIfGeneration(DashboardKey, cloneDashboard(data), gen)

	return d.snapshot()
}

func (d *dashboard) current() DashboardState {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.snapshot()
}

func (d *dashboard) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state = DashboardState{}
	d.resets++
}

// snapshot must be called with mu held.
func (d *dashboard) snapshot() DashboardState {
	s := d.state
	s.Data = cloneDashboard(s.Data)
	s.Loading = d.inflight > 0
	return s
}
