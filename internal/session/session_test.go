package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStoreSetGetInProcessMode(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "id-1", record{Name: "张三", Count: 2}))

	var got record
	require.NoError(t, store.Get(ctx, "id-1", &got))
	assert.Equal(t, record{Name: "张三", Count: 2}, got)
}

func TestStoreGetMissingReturnsNotFound(t *testing.T) {
	store := NewStore(nil)

	var got record
	err := store.Get(context.Background(), "missing", &got)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "id-1", record{Name: "a"}))
	require.NoError(t, store.Delete(ctx, "id-1"))

	var got record
	assert.ErrorIs(t, store.Get(ctx, "id-1", &got), ErrSessionNotFound)
}

func TestStoreKeyPrefixIsolation(t *testing.T) {
	// 同一进程内不同前缀的存储互不可见
	sessions := NewStore(nil)
	tasks := NewStore(nil, WithKeyPrefix("screening:task:"))
	ctx := context.Background()

	require.NoError(t, sessions.Set(ctx, "same-id", record{Name: "session"}))
	require.NoError(t, tasks.Set(ctx, "same-id", record{Name: "task"}))

	var fromSessions, fromTasks record
	require.NoError(t, sessions.Get(ctx, "same-id", &fromSessions))
	require.NoError(t, tasks.Get(ctx, "same-id", &fromTasks))
	assert.Equal(t, "session", fromSessions.Name)
	assert.Equal(t, "task", fromTasks.Name)
}

func TestStoreTTLExpiry(t *testing.T) {
	store := NewStore(nil, WithTTL(30*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", record{Name: "a"}))
	time.Sleep(60 * time.Millisecond)

	var got record
	assert.ErrorIs(t, store.Get(ctx, "short", &got), ErrSessionNotFound)
}

func TestStoreExtendMissingRecord(t *testing.T) {
	store := NewStore(nil)
	assert.ErrorIs(t, store.Extend(context.Background(), "missing"), ErrSessionNotFound)
}
