package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinchat/vinchat/internal/cache"
	"github.com/vinchat/vinchat/internal/store"
)

type fakeStorage struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]store.Session
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{rows: make(map[int64]store.Session)}
}

func (f *fakeStorage) GetByID(_ context.Context, id int64) (store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.rows[id]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	return sess, nil
}

func (f *fakeStorage) GetByName(_ context.Context, name string) (store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sess := range f.rows {
		if sess.Name == name {
			return sess, nil
		}
	}
	return store.Session{}, store.ErrNotFound
}

func (f *fakeStorage) Create(_ context.Context, sess store.Session) (store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sess.ID = f.nextID
	sess.CreatedAt = time.Now()
	f.rows[sess.ID] = sess
	return sess, nil
}

func (f *fakeStorage) Update(_ context.Context, sess store.Session) (store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.rows[sess.ID]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	existing.Status = sess.Status
	existing.Time = sess.Time
	existing.CurrentReceiver = sess.CurrentReceiver
	existing.PreviousReceiver = sess.PreviousReceiver
	f.rows[sess.ID] = existing
	return existing, nil
}

func (f *fakeStorage) SetStatus(_ context.Context, id int64, status string, expire *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.Status = status
	sess.Time = expire
	f.rows[id] = sess
	return nil
}

func (f *fakeStorage) DeleteByIDs(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.rows, id)
	}
	return nil
}

func (f *fakeStorage) ListPage(_ context.Context, limit, offset int) ([]store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Session, 0, len(f.rows))
	for _, sess := range f.rows {
		out = append(out, sess)
	}
	return out, nil
}

type fakePurger struct {
	mu      sync.Mutex
	deleted []int64
}

func (f *fakePurger) DeleteBySessionIDs(_ context.Context, sessionIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, sessionIDs...)
	return nil
}

func newTestCache(t *testing.T) cache.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisStoreFromClient(nil, client)
}

func newTestDirectory(t *testing.T) (*Directory, *fakeStorage, cache.Store) {
	t.Helper()
	storage := newFakeStorage()
	cacheStore := newTestCache(t)
	dir := NewDirectory(nil, storage, &fakePurger{}, cacheStore)
	return dir, storage, cacheStore
}

func TestGetByIDMissing(t *testing.T) {
	dir, _, _ := newTestDirectory(t)

	snap, err := dir.GetByID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestGetByIDServesFromCache(t *testing.T) {
	dir, storage, _ := newTestDirectory(t)
	ctx := context.Background()

	created, err := storage.Create(ctx, store.Session{
		Name: "T-12345", Channel: ChannelTelegram, Status: StatusOpen, CurrentReceiver: ReceiverBot,
	})
	require.NoError(t, err)

	first, err := dir.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, first)

	// A storage-side change is invisible until the snapshot expires or is
	// invalidated.
	require.NoError(t, storage.SetStatus(ctx, created.ID, StatusSuspended, nil))

	second, err := dir.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, StatusOpen, second.Status)

	dir.Invalidate(ctx, created.ID)
	third, err := dir.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, third)
	assert.Equal(t, StatusSuspended, third.Status)
}

func TestGetOrCreateByNameIsStableWithWarmCache(t *testing.T) {
	dir, _, _ := newTestDirectory(t)
	ctx := context.Background()

	first, err := dir.GetOrCreateByName(ctx, "F-777", ChannelFacebook, "page-1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, ReceiverBot, first.CurrentReceiver)
	assert.Equal(t, StatusOpen, first.Status)

	second, err := dir.GetOrCreateByName(ctx, "F-777", ChannelFacebook, "page-1")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
}

func TestUpdateSuspendSwapsReceivers(t *testing.T) {
	dir, _, _ := newTestDirectory(t)
	ctx := context.Background()

	created, err := dir.GetOrCreateByName(ctx, "Z-9", ChannelZalo, "oa-1")
	require.NoError(t, err)

	updated, err := dir.Update(ctx, created.ID, UpdateInput{
		Status: StatusSuspended,
		Option: HoldShort,
		Actor:  "Lan",
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, StatusSuspended, updated.Status)
	assert.Equal(t, "Lan", updated.CurrentReceiver)
	assert.Equal(t, ReceiverBot, updated.PreviousReceiver)
	require.NotNil(t, updated.Time)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *updated.Time, time.Minute)
}

func TestUpdateReopenClearsExpiry(t *testing.T) {
	dir, _, _ := newTestDirectory(t)
	ctx := context.Background()

	created, err := dir.GetOrCreateByName(ctx, "T-55", ChannelTelegram, "")
	require.NoError(t, err)

	_, err = dir.Update(ctx, created.ID, UpdateInput{Status: StatusSuspended, Option: HoldForever, Actor: "Minh"})
	require.NoError(t, err)

	reopened, err := dir.Update(ctx, created.ID, UpdateInput{Status: StatusOpen})
	require.NoError(t, err)
	require.NotNil(t, reopened)
	assert.Equal(t, StatusOpen, reopened.Status)
	assert.Equal(t, ReceiverBot, reopened.CurrentReceiver)
	assert.Equal(t, "Minh", reopened.PreviousReceiver)
	assert.Nil(t, reopened.Time)
}

func TestUpdateMissingSession(t *testing.T) {
	dir, _, _ := newTestDirectory(t)

	snap, err := dir.Update(context.Background(), 12345, UpdateInput{Status: StatusOpen})
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestBulkDeletePurgesState(t *testing.T) {
	storage := newFakeStorage()
	cacheStore := newTestCache(t)
	purger := &fakePurger{}
	dir := NewDirectory(nil, storage, purger, cacheStore)
	ctx := context.Background()

	a, err := dir.GetOrCreateByName(ctx, "F-1", ChannelFacebook, "p")
	require.NoError(t, err)
	b, err := dir.GetOrCreateByName(ctx, "F-2", ChannelFacebook, "p")
	require.NoError(t, err)

	require.NoError(t, dir.BulkDelete(ctx, []int64{a.ID, b.ID}))

	assert.ElementsMatch(t, []int64{a.ID, b.ID}, purger.deleted)
	gone, err := dir.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.False(t, cacheStore.Exists(ctx, cache.SessionNameKey("F-1")))
}

func TestHoldUntil(t *testing.T) {
	now := time.Date(2026, 3, 10, 21, 30, 0, 0, time.UTC)

	short := HoldUntil(HoldShort, now)
	require.NotNil(t, short)
	assert.Equal(t, now.Add(time.Hour), *short)

	medium := HoldUntil(HoldMedium, now)
	require.NotNil(t, medium)
	assert.Equal(t, now.Add(4*time.Hour), *medium)

	morning := HoldUntil(HoldMorning, now)
	require.NotNil(t, morning)
	assert.Equal(t, time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC), *morning)

	assert.Nil(t, HoldUntil(HoldForever, now))
}

func TestNameFor(t *testing.T) {
	assert.Equal(t, "F-123", NameFor(ChannelFacebook, "123"))
	assert.Equal(t, "T-123", NameFor(ChannelTelegram, "123"))
	assert.Equal(t, "Z-123", NameFor(ChannelZalo, "123"))
	assert.Equal(t, "U-123", NameFor("viber", "123"))
}
