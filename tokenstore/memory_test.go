package tokenstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	createdAt := time.Unix(1_700_000_000, 0)
	expiresAt := int64(1_700_003_600)
	record := Record{
		AccessToken:  "A",
		TokenType:    "Bearer",
		RefreshToken: "R",
		Scope:        "read write",
		ExpiresAt:    &expiresAt,
		IDToken:      "ID",
		CreatedAt:    &createdAt,
	}
	key := Key{AppName: "app", Key: "user-1"}

	require.NoError(t, store.Put(key, record))

	got, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, record, *got)
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(Key{AppName: "app", Key: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Remove(t *testing.T) {
	store := NewMemoryStore()
	key := Key{AppName: "app", Key: "user-1"}
	require.NoError(t, store.Put(key, Record{AccessToken: "A"}))
	require.NoError(t, store.Remove(key))

	_, err := store.Get(key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListKeys(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put(Key{AppName: "app", Key: "one"}, Record{AccessToken: "A"}))
	require.NoError(t, store.Put(Key{AppName: "app", Key: "two"}, Record{AccessToken: "B"}))
	require.NoError(t, store.Put(Key{AppName: "other", Key: "three"}, Record{AccessToken: "C"}))

	keys, err := store.ListKeys("app")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, keys)
}
