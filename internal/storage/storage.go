// Package storage provides the durable key-value collaborator used to keep
// the authenticated session across restarts.
package storage

import "errors"

// Keys persisted by the session manager.
const (
	KeyToken     = "token"
	KeyPrincipal = "principal"
)

// ErrClosed is returned when a closed store is used.
var ErrClosed = errors.New("storage closed")

// Store is a string key-value store that survives process restarts.
//
// Get reports absent keys with found=false and a nil error. Values are opaque
// to the store; interpreting (and rejecting) malformed values is the caller's
// job.
type Store interface {
	Get(key string) (value string, found bool, err error)
	Set(key, value string) error
	Delete(key string) error
}
