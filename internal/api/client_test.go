package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api", opts...)
	require.NoError(t, err)

	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestParamsValues(t *testing.T) {
	t.Run("zero values omitted", func(t *testing.T) {
		assert.Empty(t, Params{}.Values())
	})

	t.Run("all set", func(t *testing.T) {
		v := Params{Page: 2, Limit: 25, Summary: true}.Values()
		assert.Equal(t, "2", v.Get("page"))
		assert.Equal(t, "25", v.Get("limit"))
		assert.Equal(t, "true", v.Get("summary"))
	})
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	_, err := New("not a url")
	require.Error(t, err)

	_, err = New("/relative/only")
	require.Error(t, err)
}

func TestClientGet(t *testing.T) {
	var gotPath, gotQuery, gotRequestID, gotCacheControl string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotRequestID = r.Header.Get("X-Request-Id")
		gotCacheControl = r.Header.Get("Cache-Control")
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"widget": widget{ID: "w1", Name: "gear"}},
		})
	})

	var out struct {
		Widget widget `json:"widget"`
	}
	err := c.Get(context.Background(), "/widgets/w1", Params{Page: 1, Limit: 10}, &out)
	require.NoError(t, err)

	assert.Equal(t, "/api/widgets/w1", gotPath)
	assert.Equal(t, "limit=10&page=1", gotQuery)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "max-age=0", gotCacheControl, "reads always revalidate")
	assert.Equal(t, widget{ID: "w1", Name: "gear"}, out.Widget)
}

func TestClientSendsJSONBody(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			var gotMethod, gotContentType, gotCacheControl string
			var gotBody map[string]any
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				gotContentType = r.Header.Get("Content-Type")
				gotCacheControl = r.Header.Get("Cache-Control")
				raw, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(raw, &gotBody)
				writeJSON(w, http.StatusOK, map[string]any{"success": true})
			})

			body := map[string]any{"status": "shipped"}
			var err error
			switch method {
			case http.MethodPost:
				err = c.Post(context.Background(), "/things", body, nil)
			case http.MethodPut:
				err = c.Put(context.Background(), "/things/1", body, nil)
			case http.MethodPatch:
				err = c.Patch(context.Background(), "/things/1", body, nil)
			}
			require.NoError(t, err)

			assert.Equal(t, method, gotMethod)
			assert.Empty(t, gotCacheControl)
			assert.Equal(t, "application/json", gotContentType)
			assert.Equal(t, "shipped", gotBody["status"])
		})
	}
}

func TestClientErrors(t *testing.T) {
	t.Run("non 2xx carries server message", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid credentials"})
		})

		err := c.Post(context.Background(), "/auth/login", map[string]string{}, nil)
		require.Error(t, err)

		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		assert.Equal(t, "Invalid credentials", MessageOf(err))
		assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
		assert.Equal(t, "Invalid credentials", err.Error())
	})

	t.Run("error field used when message missing", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad status"})
		})

		err := c.Patch(context.Background(), "/orders/1/status", map[string]string{}, nil)
		assert.Equal(t, "bad status", MessageOf(err))
	})

	t.Run("success false on 200", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "nope"})
		})

		err := c.Get(context.Background(), "/things", Params{}, nil)
		require.Error(t, err)
		assert.Equal(t, "nope", MessageOf(err))
	})

	t.Run("non json error body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})

		err := c.Get(context.Background(), "/things", Params{}, nil)
		require.Error(t, err)
		assert.Empty(t, MessageOf(err))
		assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("malformed data", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": "not an object"})
		})

		var out struct{ ID string }
		err := c.Get(context.Background(), "/things", Params{}, &out)
		require.Error(t, err)
	})

	t.Run("non api errors", func(t *testing.T) {
		assert.Empty(t, MessageOf(assert.AnError))
		assert.Zero(t, StatusOf(assert.AnError))
	})
}

func TestClientBearerToken(t *testing.T) {
	var gotAuth atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	require.NoError(t, c.Get(context.Background(), "/me", Params{}, nil))
	assert.Equal(t, "", gotAuth.Load())

	c.SetToken("abc123")
	require.NoError(t, c.Get(context.Background(), "/me", Params{}, nil))
	assert.Equal(t, "Bearer abc123", gotAuth.Load())

	c.ClearToken()
	require.NoError(t, c.Get(context.Background(), "/me", Params{}, nil))
	assert.Equal(t, "", gotAuth.Load())
}

func TestClientRetries(t *testing.T) {
	t.Run("off by default", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		err := c.Get(context.Background(), "/things", Params{}, nil)
		require.Error(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, StatusOf(err))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("get retried until success", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": widget{ID: "w1"}})
		}, WithRetries(3))

		var out widget
		require.NoError(t, c.Get(context.Background(), "/things", Params{}, &out))
		assert.Equal(t, "w1", out.ID)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors not retried", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}, WithRetries(3))

		err := c.Get(context.Background(), "/things", Params{}, nil)
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("writes never retried", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}, WithRetries(3))

		err := c.Patch(context.Background(), "/things/1", map[string]string{}, nil)
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestWithHTTPClientKeepsCallerTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	t.Cleanup(srv.Close)

	base := &http.Client{}
	c, err := New(srv.URL, WithHTTPClient(base))
	require.NoError(t, err)

	require.NoError(t, c.Get(context.Background(), "/ping", Params{}, nil))
	assert.Nil(t, base.Transport)
}
