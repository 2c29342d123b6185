// Package tokenstore defines the concurrency-safe, keyed persistence
// contract the core depends on for token storage (spec.md §4.3), plus the
// backends shipped with this module: an in-memory map, an XDG-layout JSON
// file store, and an OS-keychain-backed store.
//
// The core never depends on a concrete backend — only on the Store
// interface. Any implementation satisfying it (including a caller's own)
// works with Client.
package tokenstore

import (
	"time"
)

// Key scopes a stored token by application and caller-supplied key, so
// multiple applications can share one backend (one OS keychain, one file
// directory) without colliding (spec.md §3, StorageKey).
type Key struct {
	AppName string
	Key     string
}

// Record is the JSON-serializable, wire/disk form of a token (spec.md §6
// persisted-state layout). It is independent of any in-process token type
// so that tokenstore has no dependency on the root package; callers
// convert to/from their own token type at the boundary.
type Record struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	ExpiresAt    *int64     `json:"expires_at,omitempty"` // Unix seconds
	IDToken      string     `json:"id_token,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// Store is the contract the core depends on: a concurrency-safe keyed map
// from Key to Record. Implementations must serialize concurrent writers to
// the same key (either by locking or by reporting ErrLocked so the caller
// can retry), and must make a Put observed by a subsequent Get on the same
// key from the same process (read-after-write consistency).
type Store interface {
	Put(key Key, record Record) error
	Get(key Key) (*Record, error)
	Remove(key Key) error
}

// ListableStore is the optional extension to Store exposing the keys
// stored for one application (spec.md §6, "optional list_keys").
type ListableStore interface {
	Store
	ListKeys(appName string) ([]string, error)
}

// ErrNotFound is returned by Get when no record exists for the key. It is
// not an *Error from the root package (tokenstore has no dependency on it)
// — callers map it to schlussel.KindStorage at the boundary if needed.
var ErrNotFound = &storeError{"token not found"}

// ErrLocked is returned by Put/Remove when a backend detects contention on
// the same key from another writer and declines to retry internally.
var ErrLocked = &storeError{"token store key is locked by another writer"}

type storeError struct{ msg string }

func (e *storeError) Error() string { return e.msg }
