package credstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/createathon/client-go/domain"
)

// Integration tests are enabled when CREATEATHON_REDIS_TEST_ADDR is set.

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("CREATEATHON_REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("CREATEATHON_REDIS_TEST_ADDR is not set; skipping Redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	key := "createathon:test:" + uuid.NewString()
	t.Cleanup(func() {
		client.Del(context.Background(), key)
		client.Close()
	})

	store := NewRedisStore(client, key)

	assert.Empty(t, store.Get(domain.KeyAccessToken))

	store.Set(domain.KeyAccessToken, "abc")
	store.Set(domain.KeyRefreshToken, "def")
	assert.Equal(t, "abc", store.Get(domain.KeyAccessToken))
	assert.Equal(t, "def", store.Get(domain.KeyRefreshToken))

	store.Remove(domain.KeyRefreshToken)
	assert.Empty(t, store.Get(domain.KeyRefreshToken))

	// A second store over the same hash sees the same values — the
	// shared-agent use case.
	other := NewRedisStore(client, key)
	require.Equal(t, "abc", other.Get(domain.KeyAccessToken))
}

func TestRedisStoreUnreachableDegrades(t *testing.T) {
	// Points at a closed port; every operation must degrade to the
	// documented "" read without panicking or blocking.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { client.Close() })

	store := NewRedisStore(client, "createathon:test:unreachable")
	store.Set(domain.KeyAccessToken, "abc")
	assert.Empty(t, store.Get(domain.KeyAccessToken))
	store.Remove(domain.KeyAccessToken)
}
