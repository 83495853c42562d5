package uia

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_CreateAndGet(t *testing.T) {
	store := NewMemStore(time.Minute)
	ctx := context.Background()

	created, err := store.Create(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "10.0.0.1", created.ClientIP)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Empty(t, got.Completed)
}

func TestMemStore_GetUnknownSession(t *testing.T) {
	store := NewMemStore(time.Minute)
	_, err := store.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestMemStore_RecordStageFirstWriteWins(t *testing.T) {
	store := NewMemStore(time.Minute)
	ctx := context.Background()

	sess, err := store.Create(ctx, "")
	require.NoError(t, err)

	after, err := store.RecordStage(ctx, sess.ID, StagePassword, "first")
	require.NoError(t, err)
	assert.Equal(t, "first", after.Completed[StagePassword])

	// A second write for the same stage must not overwrite the result.
	after, err = store.RecordStage(ctx, sess.ID, StagePassword, "second")
	require.NoError(t, err)
	assert.Equal(t, "first", after.Completed[StagePassword])
}

func TestMemStore_SnapshotsAreCopies(t *testing.T) {
	store := NewMemStore(time.Minute)
	ctx := context.Background()

	sess, err := store.Create(ctx, "")
	require.NoError(t, err)

	snap, err := store.RecordStage(ctx, sess.ID, StagePassword, "u1")
	require.NoError(t, err)
	snap.Completed[StageDummy] = "tampered"

	fresh, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	_, ok := fresh.Completed[StageDummy]
	assert.False(t, ok, "mutating a snapshot must not touch the store")
}

func TestMemStore_Expiry(t *testing.T) {
	store := NewMemStore(time.Minute)
	var mu sync.Mutex
	now := time.Now()
	store.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	ctx := context.Background()
	sess, err := store.Create(ctx, "")
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	_, err = store.Get(ctx, sess.ID)
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	_, err = store.RecordStage(ctx, sess.ID, StagePassword, "u1")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestMemStore_ActivityRefreshesTTL(t *testing.T) {
	store := NewMemStore(time.Minute)
	var mu sync.Mutex
	now := time.Now()
	store.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	ctx := context.Background()
	sess, err := store.Create(ctx, "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		mu.Lock()
		now = now.Add(45 * time.Second)
		mu.Unlock()
		_, err = store.Get(ctx, sess.ID)
		require.NoError(t, err, "session touched within the TTL must stay live")
	}
}
