package message

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinchat/vinchat/internal/store"
)

type fakeMessageStorage struct {
	mu     sync.Mutex
	nextID int64
	rows   []store.Message
}

func (f *fakeMessageStorage) Insert(_ context.Context, msg store.Message) (store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg.ID = f.nextID
	msg.CreatedAt = time.Now()
	f.rows = append(f.rows, msg)
	return msg, nil
}

func (f *fakeMessageStorage) ListLatest(_ context.Context, sessionID int64, n int) ([]store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Message
	for i := len(f.rows) - 1; i >= 0 && len(out) < n; i-- {
		if f.rows[i].SessionID == sessionID {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

func (f *fakeMessageStorage) ListPage(_ context.Context, sessionID int64, limit, offset int) ([]store.Message, error) {
	all, _ := f.ListLatest(context.Background(), sessionID, len(f.rows))
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func TestPersistSerializesImages(t *testing.T) {
	storage := &fakeMessageStorage{}
	svc := NewService(nil, storage)

	rec, err := svc.Persist(context.Background(), PersistInput{
		SessionID:  1,
		SenderType: SenderCustomer,
		Content:    "ảnh đây",
		Images:     []string{"https://cdn.example.vn/a.jpg", "https://cdn.example.vn/b.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.vn/a.jpg", "https://cdn.example.vn/b.jpg"}, rec.Images)

	require.NotNil(t, storage.rows[0].Image)
	assert.JSONEq(t, `["https://cdn.example.vn/a.jpg","https://cdn.example.vn/b.jpg"]`, *storage.rows[0].Image)
}

func TestHistoryIsChronological(t *testing.T) {
	storage := &fakeMessageStorage{}
	svc := NewService(nil, storage)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three", "four"} {
		_, err := svc.Persist(ctx, PersistInput{SessionID: 9, SenderType: SenderCustomer, Content: content})
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, 9, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "two", history[0].Content)
	assert.Equal(t, "three", history[1].Content)
	assert.Equal(t, "four", history[2].Content)
}

func TestHistoryLines(t *testing.T) {
	lines := HistoryLines([]Record{
		{SenderType: SenderCustomer, Content: "giá bao nhiêu?"},
		{SenderType: SenderBot, Content: "Dạ 500k ạ"},
	})
	assert.Equal(t, []string{"customer: giá bao nhiêu?", "bot: Dạ 500k ạ"}, lines)
}

func TestHistoryScopedToSession(t *testing.T) {
	storage := &fakeMessageStorage{}
	svc := NewService(nil, storage)
	ctx := context.Background()

	_, err := svc.Persist(ctx, PersistInput{SessionID: 1, SenderType: SenderCustomer, Content: "mine"})
	require.NoError(t, err)
	_, err = svc.Persist(ctx, PersistInput{SessionID: 2, SenderType: SenderCustomer, Content: "theirs"})
	require.NoError(t, err)

	history, err := svc.History(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "mine", history[0].Content)
}
