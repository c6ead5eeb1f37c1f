package api

import (
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// bearerTransport adds the current session token to every request. When no
// token is set the request goes out without an Authorization header.
type bearerTransport struct {
	next http.RoundTripper

	mu    sync.RWMutex
	token *oauth2.Token
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.RLock()
	token := t.token
	t.mu.RUnlock()

	if token == nil {
		return t.next.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request
	clone := req.Clone(req.Context())
	token.SetAuthHeader(clone)
	return t.next.RoundTrip(clone)
}

func (t *bearerTransport) set(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if token == "" {
		t.token = nil
		return
	}
	t.token = &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
}
