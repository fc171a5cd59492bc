package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinchat/vinchat/internal/store"
)

func (f *fakeStorage) ListExpiredSuspended(_ context.Context, now time.Time) ([]store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Session
	for _, sess := range f.rows {
		if sess.Status == StatusSuspended && sess.Time != nil && sess.Time.Before(now) {
			out = append(out, sess)
		}
	}
	return out, nil
}

func TestSweepReopensOnlyLapsedHolds(t *testing.T) {
	storage := newFakeStorage()
	cacheStore := newTestCache(t)
	dir := NewDirectory(nil, storage, &fakePurger{}, cacheStore)
	gate := NewGate(nil, dir, storage, cacheStore)
	janitor := NewJanitor(nil, gate, storage)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	lapsed, err := storage.Create(ctx, store.Session{
		Name: "F-1", Channel: ChannelFacebook, Status: StatusSuspended,
		Time: &past, CurrentReceiver: "Lan",
	})
	require.NoError(t, err)
	held, err := storage.Create(ctx, store.Session{
		Name: "F-2", Channel: ChannelFacebook, Status: StatusSuspended,
		Time: &future, CurrentReceiver: "Lan",
	})
	require.NoError(t, err)
	indefinite, err := storage.Create(ctx, store.Session{
		Name: "F-3", Channel: ChannelFacebook, Status: StatusSuspended,
		CurrentReceiver: "Lan",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, janitor.Sweep(ctx))

	reopened, err := storage.GetByID(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, reopened.Status)
	assert.Equal(t, ReceiverBot, reopened.CurrentReceiver)
	assert.Equal(t, "Lan", reopened.PreviousReceiver)
	assert.Nil(t, reopened.Time)

	still, err := storage.GetByID(ctx, held.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, still.Status)

	forever, err := storage.GetByID(ctx, indefinite.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, forever.Status)
}

func TestSweepIdempotent(t *testing.T) {
	storage := newFakeStorage()
	cacheStore := newTestCache(t)
	dir := NewDirectory(nil, storage, &fakePurger{}, cacheStore)
	gate := NewGate(nil, dir, storage, cacheStore)
	janitor := NewJanitor(nil, gate, storage)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	_, err := storage.Create(ctx, store.Session{
		Name: "T-1", Channel: ChannelTelegram, Status: StatusSuspended,
		Time: &past, CurrentReceiver: "Minh",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, janitor.Sweep(ctx))
	assert.Equal(t, 0, janitor.Sweep(ctx))
}
