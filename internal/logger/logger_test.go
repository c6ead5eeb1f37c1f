package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestHTTPRequests_RoundTrip(t *testing.T) {
	t.Run("logs status and request id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		buf := &bytes.Buffer{}
		client := &http.Client{Transport: NewHTTPRequests(zerolog.New(buf), nil)}

		req, err := http.NewRequest(http.MethodGet, srv.URL+"/admin/orders", nil)
		require.NoError(t, err)
		req.Header.Set("X-Request-Id", "req-1")

		resp, err := client.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		require.Equal(t, "warn", entry["level"])
		require.Equal(t, "GET", entry["method"])
		require.Equal(t, "/admin/orders", entry["path"])
		require.Equal(t, "req-1", entry["request_id"])
		require.EqualValues(t, http.StatusServiceUnavailable, entry["status"])
		require.Equal(t, false, entry["from_cache"])
	})

	t.Run("marks responses from the http cache", func(t *testing.T) {
		buf := &bytes.Buffer{}
		rt := NewHTTPRequests(zerolog.New(buf), roundTripFunc(func(req *http.Request) (*http.Response, error) {
			resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: http.NoBody, Request: req}
			resp.Header.Set("X-From-Cache", "1")
			return resp, nil
		}))

		req, err := http.NewRequest(http.MethodGet, "http://example.invalid/products", nil)
		require.NoError(t, err)

		_, err = rt.RoundTrip(req)
		require.NoError(t, err)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		require.Equal(t, true, entry["from_cache"])
	})

	t.Run("logs transport errors", func(t *testing.T) {
		buf := &bytes.Buffer{}
		boom := errors.New("connection refused")
		rt := NewHTTPRequests(zerolog.New(buf), roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, boom
		}))

		req, err := http.NewRequest(http.MethodPost, "http://example.invalid/auth/login", nil)
		require.NoError(t, err)

		_, err = rt.RoundTrip(req)
		require.ErrorIs(t, err, boom)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		require.Equal(t, "error", entry["level"])
		require.Equal(t, "connection refused", entry["error"])
	})
}

func TestSetup(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, Setup(false).GetLevel())
	require.Equal(t, zerolog.DebugLevel, Setup(true).GetLevel())
}
