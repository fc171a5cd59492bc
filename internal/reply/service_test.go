package reply

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinchat/vinchat/internal/cache"
	"github.com/vinchat/vinchat/internal/channel"
	"github.com/vinchat/vinchat/internal/chat"
	"github.com/vinchat/vinchat/internal/embeddings"
	"github.com/vinchat/vinchat/internal/keyring"
	"github.com/vinchat/vinchat/internal/knowledge"
	"github.com/vinchat/vinchat/internal/message"
	"github.com/vinchat/vinchat/internal/session"
	"github.com/vinchat/vinchat/internal/store"
	"github.com/vinchat/vinchat/internal/ws"
)

var _ MessageLog = (*message.Service)(nil)

// In-memory session storage.
type memSessions struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]store.Session
}

func newMemSessions() *memSessions { return &memSessions{rows: map[int64]store.Session{}} }

func (m *memSessions) GetByID(_ context.Context, id int64) (store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (m *memSessions) GetByName(_ context.Context, name string) (store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.Name == name {
			return s, nil
		}
	}
	return store.Session{}, store.ErrNotFound
}

func (m *memSessions) Create(_ context.Context, s store.Session) (store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	s.CreatedAt = time.Now()
	m.rows[s.ID] = s
	return s, nil
}

func (m *memSessions) Update(_ context.Context, s store.Session) (store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rows[s.ID]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	existing.Status = s.Status
	existing.Time = s.Time
	existing.CurrentReceiver = s.CurrentReceiver
	existing.PreviousReceiver = s.PreviousReceiver
	m.rows[s.ID] = existing
	return existing, nil
}

func (m *memSessions) SetStatus(_ context.Context, id int64, status string, expire *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	s.Status = status
	s.Time = expire
	m.rows[id] = s
	return nil
}

func (m *memSessions) DeleteByIDs(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.rows, id)
	}
	return nil
}

func (m *memSessions) ListPage(_ context.Context, limit, offset int) ([]store.Session, error) {
	return nil, nil
}

// In-memory message storage.
type memMessages struct {
	mu     sync.Mutex
	nextID int64
	rows   []store.Message
}

func (m *memMessages) Insert(_ context.Context, msg store.Message) (store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = m.nextID
	msg.CreatedAt = time.Now()
	m.rows = append(m.rows, msg)
	return msg, nil
}

func (m *memMessages) ListLatest(_ context.Context, sessionID int64, n int) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Message
	for i := len(m.rows) - 1; i >= 0 && len(out) < n; i-- {
		if m.rows[i].SessionID == sessionID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memMessages) ListPage(_ context.Context, sessionID int64, limit, offset int) ([]store.Message, error) {
	return m.ListLatest(context.Background(), sessionID, limit)
}

func (m *memMessages) DeleteBySessionIDs(_ context.Context, sessionIDs []int64) error { return nil }

func (m *memMessages) bySession(sessionID int64) []store.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Message
	for _, row := range m.rows {
		if row.SessionID == sessionID {
			out = append(out, row)
		}
	}
	return out
}

type memKeys struct{ keys map[string][]store.ProviderKey }

func (m *memKeys) ListByGroupAndType(_ context.Context, group, typ string) ([]store.ProviderKey, error) {
	return m.keys[group+"/"+typ], nil
}

type fakeGenerator struct {
	mu     sync.Mutex
	output string
	err    error
	calls  int
}

func (f *fakeGenerator) Generate(_ context.Context, _ chat.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.output, f.err
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePicker struct{ gen *fakeGenerator }

func (f *fakePicker) Select(string) chat.Generator { return f.gen }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _, _ string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

type fakeSearcher struct{ chunks []knowledge.Chunk }

func (f *fakeSearcher) Search(_ context.Context, _ []float32, _ int) ([]knowledge.Chunk, error) {
	return f.chunks, nil
}

type fakePages struct{ active map[string]bool }

func (f *fakePages) IsActive(_ context.Context, platform, pageID string) bool {
	return f.active[platform+":"+pageID]
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) NotifyMissingInfo(_ context.Context, sessionName, question string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sessionName)
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) Send(_ context.Context, recipientID, text string, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recipientID+": "+text)
	return nil
}

type fakeConn struct {
	mu       sync.Mutex
	messages []any
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, v)
	return nil
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fixture struct {
	orch      *Orchestrator
	sessions  *memSessions
	messages  *memMessages
	directory *session.Directory
	gate      *session.Gate
	hub       *ws.Hub
	generator *fakeGenerator
	notifier  *fakeNotifier
	sender    *fakeSender
	pages     *fakePages
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cacheStore := cache.NewRedisStoreFromClient(nil, client)

	sessions := newMemSessions()
	msgs := &memMessages{}
	directory := session.NewDirectory(nil, sessions, msgs, cacheStore)
	gate := session.NewGate(nil, directory, sessions, cacheStore)
	allocator := keyring.NewAllocator(nil, &memKeys{keys: map[string][]store.ProviderKey{
		"bot_group/" + keyring.TypeBot:             {{ID: 1, APIKey: "bk"}},
		"emb_group/" + keyring.TypeEmbedding:       {{ID: 2, APIKey: "ek"}},
	}}, cacheStore)
	msgService := message.NewService(nil, msgs)

	generator := &fakeGenerator{output: `{"message": "Dạ giá 500k ạ", "links": ["https://example.vn/p"]}`}
	notifier := &fakeNotifier{}
	sender := &fakeSender{}
	hub := ws.NewHub(nil)
	registry := channel.NewRegistry()
	registry.Register(session.ChannelFacebook, sender)
	registry.Register(session.ChannelTelegram, sender)
	pageChecker := &fakePages{active: map[string]bool{"facebook:page-1": true, "telegram:": true}}

	orch := NewOrchestrator(nil,
		Settings{
			BotModel: "gpt-4o-mini", BotGroup: "bot_group",
			EmbeddingModel: "text-embedding-3-small", EmbeddingGroup: "emb_group",
			HistoryDepth: 10, KnowledgeTopK: 3,
		},
		directory, gate, allocator, msgService,
		&fakeSearcher{chunks: []knowledge.Chunk{{Text: "Sản phẩm giá 500k", Link: "https://example.vn/p"}}},
		&fakePicker{gen: generator},
		func(string) embeddings.Embedder { return fakeEmbedder{} },
		hub, registry, notifier, pageChecker,
		NewTasks(nil, 5*time.Second),
	)
	return &fixture{
		orch: orch, sessions: sessions, messages: msgs, directory: directory,
		gate: gate, hub: hub, generator: generator, notifier: notifier,
		sender: sender, pages: pageChecker,
	}
}

func TestWebCustomerGetsGeneratedReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.directory.GetOrCreateByName(ctx, "W-00000042", session.ChannelWeb, "")
	require.NoError(t, err)

	customerConn, adminConn := &fakeConn{}, &fakeConn{}
	f.hub.RegisterCustomer(customerConn, snap.ID)
	f.hub.RegisterAdmin(adminConn)

	echo, err := f.orch.HandleWebCustomer(ctx, snap.ID, "giá bao nhiêu?", nil)
	require.NoError(t, err)
	require.NotNil(t, echo)
	assert.Equal(t, "giá bao nhiêu?", echo.Content)

	f.orch.Wait()

	rows := f.messages.bySession(snap.ID)
	require.Len(t, rows, 2)

	var botRow *store.Message
	for i := range rows {
		if rows[i].SenderType == message.SenderBot {
			botRow = &rows[i]
		}
	}
	require.NotNil(t, botRow)
	var env chat.Envelope
	require.NoError(t, json.Unmarshal([]byte(botRow.Content), &env))
	assert.Equal(t, "Dạ giá 500k ạ", env.Message)

	// Bot reply reached both the customer connection and the admins.
	assert.Equal(t, 1, customerConn.count())
	assert.Equal(t, 1, adminConn.count())
}

func TestUnknownSessionDiscarded(t *testing.T) {
	f := newFixture(t)

	echo, err := f.orch.HandleWebCustomer(context.Background(), 404, "hello", nil)
	require.NoError(t, err)
	assert.Nil(t, echo)
	f.orch.Wait()
	assert.Equal(t, 0, f.generator.callCount())
}

func TestExpiredSuspensionReopensAndReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.directory.GetOrCreateByName(ctx, "W-00000001", session.ChannelWeb, "")
	require.NoError(t, err)
	past := time.Now().Add(-5 * time.Second)
	_, err = f.gate.Suspend(ctx, snap.ID, "Lan", &past)
	require.NoError(t, err)

	echo, err := f.orch.HandleWebCustomer(ctx, snap.ID, "còn hàng không?", nil)
	require.NoError(t, err)
	require.NotNil(t, echo)
	f.orch.Wait()

	assert.Equal(t, 1, f.generator.callCount())
	row, err := f.sessions.GetByID(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusOpen, row.Status)
	assert.Nil(t, row.Time)
}

func TestSuspendedSessionSuppressesGeneration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.directory.GetOrCreateByName(ctx, "W-00000002", session.ChannelWeb, "")
	require.NoError(t, err)
	_, err = f.gate.Suspend(ctx, snap.ID, "Lan", nil)
	require.NoError(t, err)

	_, err = f.orch.HandleWebCustomer(ctx, snap.ID, "hỏi chút", nil)
	require.NoError(t, err)
	f.orch.Wait()

	assert.Equal(t, 0, f.generator.callCount())
	// The customer message itself is still persisted.
	assert.Len(t, f.messages.bySession(snap.ID), 1)
}

func TestAdminMessageTakesOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.directory.GetOrCreateByName(ctx, "T-12345", session.ChannelTelegram, "")
	require.NoError(t, err)

	echo, err := f.orch.HandleAdmin(ctx, snap.ID, "Quang", "Để mình hỗ trợ bạn nhé", nil)
	require.NoError(t, err)
	require.NotNil(t, echo)
	assert.Equal(t, "Quang", echo.CurrentReceiver)
	assert.Equal(t, session.ReceiverBot, echo.PreviousReceiver)
	assert.Equal(t, session.StatusSuspended, echo.SessionStatus)

	f.orch.Wait()

	row, err := f.sessions.GetByID(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusSuspended, row.Status)
	assert.Equal(t, "Quang", row.CurrentReceiver)
	assert.Equal(t, session.ReceiverBot, row.PreviousReceiver)
	require.NotNil(t, row.Time)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *row.Time, time.Minute)

	// Delivered to the platform, persisted, and no generation.
	assert.Equal(t, []string{"12345: Để mình hỗ trợ bạn nhé"}, f.sender.sent)
	assert.Equal(t, 0, f.generator.callCount())
	assert.Len(t, f.messages.bySession(snap.ID), 1)
}

func TestWebhookInactivePageSuppressesReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	adminConn := &fakeConn{}
	f.hub.RegisterAdmin(adminConn)

	err := f.orch.HandleWebhook(ctx, channel.Inbound{
		Platform: session.ChannelFacebook,
		SenderID: "999",
		Message:  "ship không?",
		PageID:   "dead-page",
	})
	require.NoError(t, err)
	f.orch.Wait()

	// Message persisted and echoed to admins, but no generation and no send.
	snap, err := f.directory.CheckByName(ctx, "F-999")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, f.messages.bySession(snap.ID), 1)
	assert.Equal(t, 1, adminConn.count())
	assert.Equal(t, 0, f.generator.callCount())
	assert.Empty(t, f.sender.sent)
}

func TestWebhookActivePageGeneratesAndSends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.orch.HandleWebhook(ctx, channel.Inbound{
		Platform: session.ChannelFacebook,
		SenderID: "12345",
		Message:  "giá bao nhiêu?",
		PageID:   "page-1",
	})
	require.NoError(t, err)
	f.orch.Wait()

	assert.Equal(t, 1, f.generator.callCount())
	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0], "12345: Dạ giá 500k ạ")
	assert.Contains(t, f.sender.sent[0], "https://example.vn/p")
}

func TestWebhookBackToBackFirstContact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := channel.Inbound{Platform: session.ChannelTelegram, SenderID: "777", Message: "m1"}
	require.NoError(t, f.orch.HandleWebhook(ctx, in))
	in.Message = "m2"
	require.NoError(t, f.orch.HandleWebhook(ctx, in))
	f.orch.Wait()

	snap, err := f.directory.CheckByName(ctx, "T-777")
	require.NoError(t, err)
	require.NotNil(t, snap)
	// Neither message was lost.
	assert.Len(t, f.messages.bySession(snap.ID), 4) // 2 customer + 2 bot replies
}

func TestGenerationFailurePersistsApology(t *testing.T) {
	f := newFixture(t)
	f.generator.err = assert.AnError
	ctx := context.Background()

	snap, err := f.directory.GetOrCreateByName(ctx, "W-00000003", session.ChannelWeb, "")
	require.NoError(t, err)

	_, err = f.orch.HandleWebCustomer(ctx, snap.ID, "hỏi gì đó", nil)
	require.NoError(t, err)
	f.orch.Wait()

	rows := f.messages.bySession(snap.ID)
	require.Len(t, rows, 2)
	var botRow *store.Message
	for i := range rows {
		if rows[i].SenderType == message.SenderBot {
			botRow = &rows[i]
		}
	}
	require.NotNil(t, botRow)

	var env chat.Envelope
	require.NoError(t, json.Unmarshal([]byte(botRow.Content), &env))
	assert.Equal(t, chat.Apology().Message, env.Message)
	assert.Empty(t, env.Links)
}

func TestNoInfoReplyNotifiesAdmins(t *testing.T) {
	f := newFixture(t)
	f.generator.output = `{"message": "Hiện chưa có thông tin chính thức về vấn đề này.", "links": []}`
	ctx := context.Background()

	snap, err := f.directory.GetOrCreateByName(ctx, "W-00000004", session.ChannelWeb, "")
	require.NoError(t, err)

	_, err = f.orch.HandleWebCustomer(ctx, snap.ID, "chính sách bảo hành?", nil)
	require.NoError(t, err)
	f.orch.Wait()

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	assert.Equal(t, []string{"W-00000004"}, f.notifier.calls)
}
