package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storesync/internal/api"
	"github.com/wolfeidau/storesync/internal/cache"
	"github.com/wolfeidau/storesync/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

// entityLookup fetches single entities by id through a per type cache.
// Concurrent lookups of the same id share one request.
type entityLookup[T any] struct {
	name  string
	path  string // prefix, the escaped id is appended
	field string
	api   Getter
	cache *cache.Cache[string, T]
	group singleflight.Group
}

func newEntityLookup[T any](name, path, field string, getter Getter, cfg Config) *entityLookup[T] {
	return &entityLookup[T]{
		name:  name,
		path:  path,
		field: field,
		api:   getter,
		cache: cache.New[string, T](name, cache.WithTTL(cfg.EntityTTL), cache.WithClock(cfg.Clock)),
	}
}

func (e *entityLookup[T]) get(ctx context.Context, id string) (T, error) {
	if v, ok := e.cache.Get(id); ok {
		return v, nil
	}

	v, err, shared := e.group.Do(id, func() (any, error) {
		return e.fetch(ctx, id)
	})
	if shared {
		telemetry.GetMetrics().FetchesSharedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("resource", e.name)))
	}
	if err != nil {
		var zero T
		return zero, err
	}

	return v.(T), nil
}

func (e *entityLookup[T]) fetch(ctx context.Context, id string) (T, error) {
	var zero T

	attrs := metric.WithAttributes(attribute.String("resource", e.name))
	metrics := telemetry.GetMetrics()
	started := time.Now()

	gen := e.cache.Generation(id)
	metrics.FetchesTotal.Add(ctx, 1, attrs)

	var data map[string]json.RawMessage
	err := e.api.Get(ctx, e.path+url.PathEscape(id), api.Params{}, &data)
	metrics.FetchDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)

	var v T
	if err == nil {
		raw, ok := data[e.field]
		switch {
		case !ok || string(raw) == "null":
			err = fmt.Errorf("response has no %s", e.field)
		default:
			if uerr := json.Unmarshal(raw, &v); uerr != nil {
				err = fmt.Errorf("failed to decode %s: %w", e.field, uerr)
			}
		}
	}

	if err != nil {
		metrics.FetchErrorsTotal.Add(ctx, 1, attrs)
		log.Warn().Err(err).Str("resource", e.name).Str("id", id).Msg("entity lookup failed")
		return zero, &FetchError{Resource: e.name, ID: id, Err: err}
	}

	e.cache.PutIfGeneration(id, v, gen)

	return v, nil
}

func (e *entityLookup[T]) invalidate(id string) {
	e.cache.Invalidate(id)
}
