// Package session owns the authenticated principal: login, logout, restoring
// a persisted session at startup and attaching the bearer token to API calls.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storesync/internal/api"
	"github.com/wolfeidau/storesync/internal/models"
	"github.com/wolfeidau/storesync/internal/storage"
	"github.com/wolfeidau/storesync/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	loginPath  = "/auth/login"
	logoutPath = "/auth/logout"
)

// TokenHolder attaches and removes the bearer credential on outgoing calls.
type TokenHolder interface {
	SetToken(token string)
	ClearToken()
}

// API is the subset of the API client the manager needs.
type API interface {
	TokenHolder
	Post(ctx context.Context, path string, body, out any) error
}

// Session is a snapshot of the authentication state.
// Authenticated is true exactly when Principal is set and Token is not empty.
type Session struct {
	Authenticated bool
	Principal     *models.Principal
	Token         string
}

type loginResponse struct {
	Token string            `json:"token"`
	User  *models.Principal `json:"user"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager is the only writer of the Session.
type Manager struct {
	api     API
	storage storage.Store
	now     func() time.Time

	mu      sync.RWMutex
	session Session
	// last authenticated principal id, kept across a failed login and
	// cleared only by Logout
	lastPrincipal string
	onLogout      []func()
}

// NewManager creates an unauthenticated manager.
func NewManager(client API, store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		api:     client,
		storage: store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnLogout registers fn to run after every logout and whenever a login
// switches to a different principal.
func (m *Manager) OnLogout(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onLogout = append(m.onLogout, fn)
}

// Current returns a copy of the session.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.session
	if s.Principal != nil {
		p := *s.Principal
		s.Principal = &p
	}
	return s
}

// IsAuthenticated reports whether a principal is logged in.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.session.Authenticated
}

// Login exchanges credentials for a token, persists it and authenticates the
// session. Any failure leaves the session unauthenticated and returns an
// *AuthError.
func (m *Manager) Login(ctx context.Context, creds models.Credentials) (models.Principal, error) {
	var resp loginResponse
	if err := m.api.Post(ctx, loginPath, creds, &resp); err != nil {
		m.reset()
		recordTransition(ctx, "login", false)
		log.Warn().Err(err).Str("email", creds.Email).Msg("login failed")
		return models.Principal{}, &AuthError{Message: api.MessageOf(err), Err: err}
	}

	token := NormalizeToken(resp.Token)
	if token == "" || resp.User == nil || resp.User.ID == "" {
		m.reset()
		recordTransition(ctx, "login", false)
		log.Warn().Str("email", creds.Email).Msg("login response missing token or user")
		return models.Principal{}, &AuthError{Err: errors.New("login response missing token or user")}
	}

	if err := m.persist(token, *resp.User); err != nil {
		m.reset()
		recordTransition(ctx, "login", false)
		log.Error().Err(err).Msg("failed to persist session")
		return models.Principal{}, &AuthError{Err: err}
	}

	m.mu.RLock()
	previous := m.lastPrincipal
	m.mu.RUnlock()

	if previous != "" && previous != resp.User.ID {
		log.Info().
			Str("previous", previous).
			Str("principal", resp.User.ID).
			Msg("principal changed, dropping cached data")
		m.runLogoutHooks()
	}

	m.authenticate(token, *resp.User)
	recordTransition(ctx, "login", true)

	log.Info().
		Str("principal", resp.User.ID).
		Str("role", resp.User.Role).
		Str("token", Fingerprint(token)).
		Msg("logged in")

	return *resp.User, nil
}

// Logout tells the server (best effort) and always tears down the local
// session: storage, bearer token and every registered logout hook.
func (m *Manager) Logout(ctx context.Context) error {
	if m.IsAuthenticated() {
		if err := m.api.Post(ctx, logoutPath, nil, nil); err != nil {
			log.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
		}
	}

	m.forget()
	m.reset()

	m.mu.Lock()
	m.lastPrincipal = ""
	m.mu.Unlock()

	m.runLogoutHooks()

	recordTransition(ctx, "logout", true)
	log.Info().Msg("logged out")

	return nil
}

// Restore rehydrates the session from storage. It returns false, leaving the
// session unauthenticated, when nothing usable is stored. Malformed or
// expired state is deleted.
func (m *Manager) Restore() bool {
	ctx := context.Background()

	rawToken, tokenFound, err := m.storage.Get(storage.KeyToken)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read stored token")
		m.reset()
		return false
	}
	rawPrincipal, principalFound, err := m.storage.Get(storage.KeyPrincipal)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read stored principal")
		m.reset()
		return false
	}

	if !tokenFound && !principalFound {
		m.reset()
		return false
	}

	principal, token, err := m.validate(rawToken, rawPrincipal, tokenFound, principalFound)
	if err != nil {
		log.Warn().Err(err).Msg("discarding stored session")
		m.forget()
		m.reset()
		recordTransition(ctx, "restore", false)
		return false
	}

	m.authenticate(token, principal)
	recordTransition(ctx, "restore", true)

	log.Debug().
		Str("principal", principal.ID).
		Str("token", Fingerprint(token)).
		Msg("session restored")

	return true
}

func (m *Manager) validate(rawToken, rawPrincipal string, tokenFound, principalFound bool) (models.Principal, string, error) {
	if !tokenFound || !principalFound {
		return models.Principal{}, "", errors.New("incomplete session")
	}

	token := NormalizeToken(rawToken)
	if token == "" {
		return models.Principal{}, "", errors.New("empty token")
	}

	if tokenExpired(token, m.now()) {
		return models.Principal{}, "", errors.New("token expired")
	}

	var principal models.Principal
	if err := json.Unmarshal([]byte(rawPrincipal), &principal); err != nil {
		return models.Principal{}, "", fmt.Errorf("malformed principal: %w", err)
	}
	if principal.ID == "" {
		return models.Principal{}, "", errors.New("principal has no id")
	}

	return principal, token, nil
}

func (m *Manager) persist(token string, principal models.Principal) error {
	data, err := json.Marshal(principal)
	if err != nil {
		return fmt.Errorf("failed to marshal principal: %w", err)
	}
	if err := m.storage.Set(storage.KeyToken, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	if err := m.storage.Set(storage.KeyPrincipal, string(data)); err != nil {
		return fmt.Errorf("failed to store principal: %w", err)
	}
	return nil
}

func (m *Manager) forget() {
	for _, key := range []string{storage.KeyToken, storage.KeyPrincipal} {
		if err := m.storage.Delete(key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to delete stored session key")
		}
	}
}

func (m *Manager) authenticate(token string, principal models.Principal) {
	m.mu.Lock()
	m.session = Session{Authenticated: true, Principal: &principal, Token: token}
	m.lastPrincipal = principal.ID
	m.mu.Unlock()

	m.api.SetToken(token)
}

func (m *Manager) runLogoutHooks() {
	m.mu.RLock()
	hooks := append([]func(){}, m.onLogout...)
	m.mu.RUnlock()

	for _, fn := range hooks {
		fn()
	}
}

func (m *Manager) reset() {
	m.mu.Lock()
	m.session = Session{}
	m.mu.Unlock()

	m.api.ClearToken()
}

func recordTransition(ctx context.Context, op string, ok bool) {
	telemetry.GetMetrics().SessionTransitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("ok", ok),
	))
}
