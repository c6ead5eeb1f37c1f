package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/storesync/internal/api"
	"github.com/wolfeidau/storesync/internal/client"
	"github.com/wolfeidau/storesync/internal/models"
	"github.com/wolfeidau/storesync/internal/storage"
)

// ordersBackend serves one order whose status can be changed, with
// max-age=60 and an ETag per status.
type ordersBackend struct {
	mu          sync.Mutex
	status      string
	gets        int
	conditional int
}

func (b *ordersBackend) counts() (gets, conditional int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets, b.conditional
}

func (b *ordersBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/admin/orders", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.gets++
		status := b.status
		etag := fmt.Sprintf(`"orders-%s"`, status)
		match := r.Header.Get("If-None-Match") == etag
		if match {
			b.conditional++
		}
		b.mu.Unlock()

		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("ETag", etag)
		if match {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		fmt.Fprintf(w, `{"success":true,"data":{"orders":[{"id":"o1","status":%q}],"total":1}}`, status)
	})

	mux.HandleFunc("PATCH /api/orders/o1/status", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.status = body.Status
		b.mu.Unlock()
		fmt.Fprint(w, `{"success":true}`)
	})

	return mux
}

func TestStore_HTTPResponseCache(t *testing.T) {
	for name, dir := range map[string]string{"memory": "", "disk": t.TempDir()} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			backend := &ordersBackend{status: models.OrderStatusPending}

			srv := httptest.NewUnstartedServer(backend.handler())
			srv.Config.SetKeepAlivesEnabled(false)
			srv.Start()
			t.Cleanup(srv.Close)

			httpClient, responses := client.NewCachingHTTPClient(dir, 5*time.Second)
			apiClient, err := api.New(srv.URL+"/api", api.WithHTTPClient(httpClient))
			require.NoError(t, err)

			s, err := New(apiClient, storage.NewMemoryStore(), DefaultConfig(), WithCaches(responses))
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, s.Close()) })

			st := s.Orders().FetchPage(ctx, 1, false)
			require.Empty(t, st.Error)
			require.Equal(t, models.OrderStatusPending, st.List[0].Status)

			// a write invalidates page 1 and the next read reaches the server
			require.NoError(t, s.UpdateOrderStatus(ctx, "o1", models.OrderStatusShipped))
			st = s.Orders().FetchPage(ctx, 1, false)
			require.Equal(t, models.OrderStatusShipped, st.List[0].Status)
			gets, conditional := backend.counts()
			require.Equal(t, 2, gets)
			require.Zero(t, conditional)

			// a forced refresh is revalidated by the server, not served blind
			st = s.Orders().Refresh(ctx)
			require.Equal(t, models.OrderStatusShipped, st.List[0].Status)
			gets, conditional = backend.counts()
			require.Equal(t, 3, gets)
			require.Equal(t, 1, conditional)

			// logout empties the response cache so nothing is revalidated from
			// the previous principal's copy
			require.NoError(t, s.Logout(ctx))
			s.Orders().FetchPage(ctx, 1, false)
			gets, conditional = backend.counts()
			require.Equal(t, 4, gets)
			require.Equal(t, 1, conditional)
		})
	}
}
