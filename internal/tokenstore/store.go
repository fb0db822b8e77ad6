// Package tokenstore provides durable storage for the client's credentials.
// The session manager is the only writer of the token keys; everything else
// holds a read-only view through the session.
package tokenstore

import (
	"context"
	"errors"
)

// Storage keys. The key names are part of the persisted layout and must not
// change between releases, or existing installs lose their sessions.
const (
	KeyAccessToken        = "token"
	KeyRefreshToken       = "refreshToken"
	KeyRedirectAfterLogin = "redirectAfterLogin"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("tokenstore: key not found")

// Store is a string key/value credential store.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
