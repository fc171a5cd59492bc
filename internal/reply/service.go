// Package reply turns one inbound message into its outbound deliveries. The
// caller gets an echo back immediately; persistence, generation, and platform
// delivery run as detached tasks so webhook handlers and socket loops never
// wait on slow calls.
package reply

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vinchat/vinchat/internal/channel"
	"github.com/vinchat/vinchat/internal/chat"
	"github.com/vinchat/vinchat/internal/config"
	"github.com/vinchat/vinchat/internal/embeddings"
	"github.com/vinchat/vinchat/internal/keyring"
	"github.com/vinchat/vinchat/internal/knowledge"
	"github.com/vinchat/vinchat/internal/message"
	"github.com/vinchat/vinchat/internal/notify"
	"github.com/vinchat/vinchat/internal/session"
	"github.com/vinchat/vinchat/internal/ws"
)

// GeneratorPicker selects the generation provider for a model name.
type GeneratorPicker interface {
	Select(model string) chat.Generator
}

// EmbedderPicker selects the embedding provider for a model name.
type EmbedderPicker func(model string) embeddings.Embedder

// PageChecker gates webhook replies on the page's active flag.
type PageChecker interface {
	IsActive(ctx context.Context, platform, pageID string) bool
}

// MessageLog is the persistence surface the orchestrator needs: writing
// messages and reading history for the prompt. Satisfied by *message.Service.
type MessageLog interface {
	message.Writer
	message.HistoryReader
}

// Settings fixes the models and credential groups used for generation.
type Settings struct {
	BotModel       string
	BotGroup       string
	EmbeddingModel string
	EmbeddingGroup string
	HistoryDepth   int
	KnowledgeTopK  int
}

func SettingsFromConfig(cfg config.GenerationConfig) Settings {
	s := Settings{
		BotModel:       cfg.BotModel,
		BotGroup:       cfg.BotGroup,
		EmbeddingModel: cfg.EmbeddingModel,
		EmbeddingGroup: cfg.EmbeddingGroup,
		HistoryDepth:   cfg.HistoryDepth,
		KnowledgeTopK:  cfg.KnowledgeTopK,
	}
	if s.HistoryDepth <= 0 {
		s.HistoryDepth = config.DefaultHistoryDepth
	}
	if s.KnowledgeTopK <= 0 {
		s.KnowledgeTopK = config.DefaultKnowledgeTopK
	}
	return s
}

// Orchestrator coordinates the reply path end to end.
type Orchestrator struct {
	logger     *slog.Logger
	settings   Settings
	directory  *session.Directory
	gate       *session.Gate
	allocator  *keyring.Allocator
	messages   MessageLog
	knowledge  knowledge.Searcher
	generators GeneratorPicker
	embedders  EmbedderPicker
	hub        *ws.Hub
	senders    *channel.Registry
	notifier   notify.Notifier
	pages      PageChecker
	tasks      *Tasks
}

func NewOrchestrator(
	log *slog.Logger,
	settings Settings,
	directory *session.Directory,
	gate *session.Gate,
	allocator *keyring.Allocator,
	messages MessageLog,
	searcher knowledge.Searcher,
	generators GeneratorPicker,
	embedders EmbedderPicker,
	hub *ws.Hub,
	senders *channel.Registry,
	notifier notify.Notifier,
	pageChecker PageChecker,
	tasks *Tasks,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		logger:     log.With(slog.String("service", "reply")),
		settings:   settings,
		directory:  directory,
		gate:       gate,
		allocator:  allocator,
		messages:   messages,
		knowledge:  searcher,
		generators: generators,
		embedders:  embedders,
		hub:        hub,
		senders:    senders,
		notifier:   notifier,
		pages:      pageChecker,
		tasks:      tasks,
	}
}

// HandleWebCustomer processes one customer message from a live web
// connection. The returned echo is broadcast by the caller; a nil echo means
// the session does not exist and the message was discarded.
func (o *Orchestrator) HandleWebCustomer(ctx context.Context, sessionID int64, content string, images []string) (*Broadcast, error) {
	snap, err := o.directory.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	echo := newBroadcast(*snap, message.SenderCustomer, snap.Name, content, images)
	o.persistAsync(*snap, message.SenderCustomer, content, images)

	allowed, err := o.gate.Allow(ctx, snap.ID)
	if err != nil {
		o.logger.Error("reply-gate check failed", slog.Int64("session_id", snap.ID), slog.Any("error", err))
		return &echo, nil
	}
	if allowed {
		o.spawnGeneration(*snap, content)
	}
	return &echo, nil
}

// HandleAdmin processes a human agent's message: the session is handed to the
// agent for an hour, the message is persisted and delivered, and no
// generation occurs.
func (o *Orchestrator) HandleAdmin(ctx context.Context, sessionID int64, adminName, content string, images []string) (*Broadcast, error) {
	snap, err := o.directory.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	hold := time.Now().Add(time.Hour)
	taken := *snap
	taken.PreviousReceiver = taken.CurrentReceiver
	taken.CurrentReceiver = adminName
	taken.Status = session.StatusSuspended
	taken.Time = &hold

	echo := newBroadcast(taken, adminName, adminName, content, images)

	o.tasks.Go("suspend_session", func(ctx context.Context) error {
		_, err := o.gate.Suspend(ctx, sessionID, adminName, &hold)
		return err
	})
	o.persistAsync(taken, adminName, content, images)

	if taken.Channel != session.ChannelWeb {
		o.deliverPlatformAsync(taken, content, images)
	}
	o.hub.DeliverToSession(sessionID, echo)
	return &echo, nil
}

// HandleWebhook processes one normalized platform message: session resolved
// or created by derived name, message persisted and echoed to admins, then
// generation if both the page flag and the reply gate allow it.
func (o *Orchestrator) HandleWebhook(ctx context.Context, in channel.Inbound) error {
	name := session.NameFor(in.Platform, in.SenderID)
	snap, err := o.directory.GetOrCreateByName(ctx, name, in.Platform, in.PageID)
	if err != nil {
		return fmt.Errorf("resolve session for %s: %w", name, err)
	}

	echo := newBroadcast(*snap, message.SenderCustomer, snap.Name, in.Message, nil)
	o.persistAsync(*snap, message.SenderCustomer, in.Message, nil)
	o.hub.BroadcastToAdmins(echo)

	pageID := in.PageID
	if pageID == "" {
		pageID = snap.PageID
	}
	if !o.pages.IsActive(ctx, in.Platform, pageID) {
		o.logger.Info("page inactive, reply suppressed",
			slog.String("platform", in.Platform), slog.String("page_id", pageID))
		return nil
	}

	allowed, err := o.gate.Allow(ctx, snap.ID)
	if err != nil {
		o.logger.Error("reply-gate check failed", slog.Int64("session_id", snap.ID), slog.Any("error", err))
		return nil
	}
	if allowed {
		o.spawnGeneration(*snap, in.Message)
	}
	return nil
}

// Wait joins outstanding background work. Tests use it to observe settled
// state.
func (o *Orchestrator) Wait() {
	o.tasks.Wait()
}

func (o *Orchestrator) persistAsync(snap session.Snapshot, senderType, content string, images []string) {
	o.tasks.Go("persist_message", func(ctx context.Context) error {
		_, err := o.messages.Persist(ctx, message.PersistInput{
			SessionID:  snap.ID,
			SenderType: senderType,
			Content:    content,
			Images:     images,
		})
		return err
	})
}

func (o *Orchestrator) deliverPlatformAsync(snap session.Snapshot, text string, images []string) {
	sender := o.senders.SenderFor(snap.Channel)
	recipient := recipientOf(snap)
	if sender == nil || recipient == "" {
		return
	}
	o.tasks.Go("deliver_platform", func(ctx context.Context) error {
		return sender.Send(ctx, recipient, text, images)
	})
}

func (o *Orchestrator) spawnGeneration(snap session.Snapshot, question string) {
	o.tasks.Go("generate_reply", func(ctx context.Context) error {
		return o.generateAndDeliver(ctx, snap, question)
	})
}

// generateAndDeliver runs the RAG pipeline for one customer question. Missing
// keys are fatal to the task; provider failures degrade to the apology
// envelope, which is still persisted and delivered.
func (o *Orchestrator) generateAndDeliver(ctx context.Context, snap session.Snapshot, question string) error {
	sessionID := snap.ID
	botKey, err := o.allocator.Allocate(ctx, o.settings.BotGroup, keyring.TypeBot, &sessionID)
	if err != nil {
		return err
	}
	embKey, err := o.allocator.Allocate(ctx, o.settings.EmbeddingGroup, keyring.TypeEmbedding, &sessionID)
	if err != nil {
		return err
	}

	env := o.generate(ctx, sessionID, question, botKey.APIKey, embKey.APIKey)

	if env.HasNoInfo() && o.notifier != nil {
		o.tasks.Go("notify_missing_info", func(ctx context.Context) error {
			o.notifier.NotifyMissingInfo(ctx, snap.Name, question)
			return nil
		})
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal reply envelope: %w", err)
	}
	rec, err := o.messages.Persist(ctx, message.PersistInput{
		SessionID:  sessionID,
		SenderType: message.SenderBot,
		Content:    string(payload),
	})
	if err != nil {
		return err
	}

	b := broadcastOf(rec, snap, session.ReceiverBot)
	o.hub.BroadcastToAdmins(b)

	if snap.Channel == session.ChannelWeb {
		o.hub.DeliverToSession(sessionID, b)
		return nil
	}

	sender := o.senders.SenderFor(snap.Channel)
	recipient := recipientOf(snap)
	if sender == nil || recipient == "" {
		return nil
	}
	text := env.Message
	if len(env.Links) > 0 {
		text += "\n" + strings.Join(env.Links, "\n")
	}
	return sender.Send(ctx, recipient, text, nil)
}

func (o *Orchestrator) generate(ctx context.Context, sessionID int64, question, botKey, embKey string) chat.Envelope {
	history, err := o.messages.History(ctx, sessionID, o.settings.HistoryDepth)
	if err != nil {
		o.logger.Warn("history load failed", slog.Int64("session_id", sessionID), slog.Any("error", err))
	}

	var chunks []knowledge.Chunk
	vector, err := o.embedders(o.settings.EmbeddingModel).Embed(ctx, question, embKey)
	if err != nil {
		o.logger.Error("embedding failed", slog.Int64("session_id", sessionID), slog.Any("error", err))
		return chat.Apology()
	}
	chunks, err = o.knowledge.Search(ctx, vector, o.settings.KnowledgeTopK)
	if err != nil {
		o.logger.Error("knowledge search failed", slog.Int64("session_id", sessionID), slog.Any("error", err))
		return chat.Apology()
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
		if chunk.Link != "" {
			texts[i] += " " + chunk.Link
		}
	}

	prompt := chat.BuildPrompt(texts, message.HistoryLines(history), question)
	raw, err := o.generators.Select(o.settings.BotModel).Generate(ctx, chat.Request{
		Model:  o.settings.BotModel,
		APIKey: botKey,
		Prompt: prompt,
	})
	if err != nil {
		o.logger.Error("generation failed", slog.Int64("session_id", sessionID), slog.Any("error", err))
		return chat.Apology()
	}
	return chat.ParseEnvelope(raw)
}
