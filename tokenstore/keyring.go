package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// KeyringStore persists tokens in the platform secret store (macOS
// Keychain, Windows Credential Manager, the Secret Service / libsecret on
// Linux) via zalando/go-keyring. The keyring service name is fixed per
// store instance; the account name is the AppName/Key pair, joined, since
// go-keyring addresses secrets by (service, account).
type KeyringStore struct {
	mu      sync.Mutex
	service string
}

// NewKeyringStore creates a KeyringStore that namespaces all secrets under
// service, so two applications calling with different service names never
// collide even on a shared keychain.
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Put(key Key, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}
	if err := keyring.Set(s.service, account(key), string(data)); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}
	return nil
}

func (s *KeyringStore) Get(key Key) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := keyring.Get(s.service, account(key))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read token from keyring: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token from keyring: %w", err)
	}
	return &rec, nil
}

func (s *KeyringStore) Remove(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Delete(s.service, account(key)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to remove token from keyring: %w", err)
	}
	return nil
}

// account joins the two-part Key into the single account string the
// keyring API addresses secrets by.
func account(key Key) string {
	return key.AppName + "/" + key.Key
}

var _ Store = (*KeyringStore)(nil)
