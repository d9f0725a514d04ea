package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/statforge/pkg/adapters/redis"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/ports"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunStateStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	sessionID := "session-ttl"

	err := store.Save(ctx, sessionID, domain.NewWorkflowState(sessionID, "desc", "", 0))
	require.NoError(t, err)

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, sessions, sessionID)

	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, sessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// The index is pruned against wall clock time, which FastForward does not move.
	time.Sleep(1200 * time.Millisecond)

	sessions, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	err := store.Save(ctx, "my-session", domain.NewWorkflowState("my-session", "desc", "", 0))
	require.NoError(t, err)

	assert.True(t, mr.Exists("custom:app:session:my-session"))
	assert.True(t, mr.Exists("custom:app:sessions"))

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"my-session"}, list)
}

func TestRedisCorpus_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunCorpusContract(t, redis.NewCorpus(client, redis.DefaultPrefix, nil))
}

func TestRedisCorpus_Keys(t *testing.T) {
	mr, client := newClient(t)
	corpus := redis.NewCorpus(client, "x:", nil)

	err := corpus.Append(context.Background(), domain.Record{Type: domain.RegularItem, Fields: map[string]any{"name": "Rope"}})
	require.NoError(t, err)

	items, err := mr.List("x:corpus:regular_item")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
