package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/storesync/internal/api"
	"github.com/wolfeidau/storesync/internal/models"
	"github.com/wolfeidau/storesync/internal/storage"
)

type call struct {
	method string
	path   string
	params api.Params
	body   any
}

type list struct {
	field string
	items []any
	total *int
}

// fakeAPI is an in-memory storefront backend.
type fakeAPI struct {
	mu       sync.Mutex
	calls    []call
	token    string
	lists    map[string]*list
	entities map[string]map[string]any // path -> field -> value
	failGet  map[string]error
	failPost map[string]error
	failPut  map[string]error
	failPat  map[string]error
	hold     map[string]chan struct{} // gate keyed by path?page
	entered  chan string
	login    map[string]any
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		lists:    map[string]*list{},
		entities: map[string]map[string]any{},
		failGet:  map[string]error{},
		failPost: map[string]error{},
		failPut:  map[string]error{},
		failPat:  map[string]error{},
		hold:     map[string]chan struct{}{},
		entered:  make(chan string, 64),
	}
}

func holdKey(path string, page int) string {
	return fmt.Sprintf("%s?page=%d", path, page)
}

func (f *fakeAPI) setList(path, field string, items ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[path] = &list{field: field, items: items}
}

func (f *fakeAPI) setTotal(path string, total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[path].total = &total
}

func (f *fakeAPI) setEntity(path, field string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities[path] = map[string]any{field: v}
}

// gate makes GETs for path/page block until the returned func is called.
func (f *fakeAPI) gate(path string, page int) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.hold[holdKey(path, page)] = ch
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.hold, holdKey(path, page))
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *fakeAPI) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c.method == method && c.path == path {
			n++
		}
	}
	return n
}

func (f *fakeAPI) last(method, path string) (call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].method == method && f.calls[i].path == path {
			return f.calls[i], true
		}
	}
	return call{}, false
}

func (f *fakeAPI) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func (f *fakeAPI) ClearToken() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
}

func (f *fakeAPI) bearer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeAPI) Get(ctx context.Context, path string, params api.Params, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{method: "GET", path: path, params: params})
	gate := f.hold[holdKey(path, params.Page)]
	f.mu.Unlock()

	if gate != nil {
		f.entered <- holdKey(path, params.Page)
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failGet[path]; err != nil {
		return err
	}

	if l, ok := f.lists[path]; ok {
		start := (params.Page - 1) * params.Limit
		end := min(start+params.Limit, len(l.items))
		items := []any{}
		if start < len(l.items) {
			items = l.items[start:end]
		}
		data := map[string]any{l.field: items}
		if l.total != nil {
			data["total"] = *l.total
		}
		return roundTrip(data, out)
	}

	if e, ok := f.entities[path]; ok {
		return roundTrip(e, out)
	}

	return &api.Error{Method: "GET", URL: path, Status: 404, Message: "not found"}
}

func (f *fakeAPI) write(method, path string, body any, failures map[string]error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call{method: method, path: path, body: body})
	return failures[path]
}

func (f *fakeAPI) Post(_ context.Context, path string, body, out any) error {
	if err := f.write("POST", path, body, f.failPost); err != nil {
		return err
	}
	if path == "/auth/login" && out != nil {
		f.mu.Lock()
		defer f.mu.Unlock()
		return roundTrip(f.login, out)
	}
	return nil
}

func (f *fakeAPI) Put(_ context.Context, path string, body, _ any) error {
	return f.write("PUT", path, body, f.failPut)
}

func (f *fakeAPI) Patch(_ context.Context, path string, body, _ any) error {
	return f.write("PATCH", path, body, f.failPat)
}

func roundTrip(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

var errServer = errors.New("server unavailable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func orders(n int, start int) []any {
	out := make([]any, 0, n)
	for i := range n {
		out = append(out, models.Order{
			ID:     fmt.Sprintf("o%d", start+i),
			Status: models.OrderStatusPending,
			Total:  10,
		})
	}
	return out
}

func products(n int) []any {
	out := make([]any, 0, n)
	for i := range n {
		out = append(out, models.Product{ID: fmt.Sprintf("p%d", i+1), Name: "item", Price: 5, Stock: 1, Status: "active"})
	}
	return out
}

func users(n int) []any {
	out := make([]any, 0, n)
	for i := range n {
		out = append(out, models.User{ID: fmt.Sprintf("u%d", i+1), Name: "user", Email: fmt.Sprintf("u%d@example.com", i+1)})
	}
	return out
}

type fixture struct {
	store   *Store
	api     *fakeAPI
	clock   *fakeClock
	storage *storage.MemoryStore
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()

	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.Clock = clock.Now
	for _, m := range mutate {
		m(&cfg)
	}

	fake := newFakeAPI()
	mem := storage.NewMemoryStore()

	s, err := New(fake, mem, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	return &fixture{store: s, api: fake, clock: clock, storage: mem}
}

func (f *fixture) waitEntered(t *testing.T, key string) {
	t.Helper()

	select {
	case got := <-f.api.entered:
		require.Equal(t, key, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("request %s never started", key)
	}
}
