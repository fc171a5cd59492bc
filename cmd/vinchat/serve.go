package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/vinchat/vinchat/internal/cache"
	"github.com/vinchat/vinchat/internal/channel"
	"github.com/vinchat/vinchat/internal/chat"
	"github.com/vinchat/vinchat/internal/config"
	"github.com/vinchat/vinchat/internal/embeddings"
	"github.com/vinchat/vinchat/internal/handlers"
	"github.com/vinchat/vinchat/internal/keyring"
	"github.com/vinchat/vinchat/internal/knowledge"
	"github.com/vinchat/vinchat/internal/logger"
	"github.com/vinchat/vinchat/internal/message"
	"github.com/vinchat/vinchat/internal/notify"
	"github.com/vinchat/vinchat/internal/pages"
	"github.com/vinchat/vinchat/internal/reply"
	"github.com/vinchat/vinchat/internal/server"
	"github.com/vinchat/vinchat/internal/session"
	"github.com/vinchat/vinchat/internal/store"
	"github.com/vinchat/vinchat/internal/ws"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideCache,
			provideDBConn,
			store.NewSessionStore,
			store.NewMessageStore,
			store.NewKeyStore,
			store.NewPageStore,
			store.NewRatingStore,
			provideDirectory,
			provideGate,
			provideJanitor,
			provideAllocator,
			provideMessageService,
			providePageService,
			provideNotifier,
			provideKnowledgeStore,
			provideSearcher,
			provideGeneratorPicker,
			provideEmbedderPicker,
			provideEmbedFunc,
			provideTasks,
			ws.NewHub,
			provideChannelRegistry,
			provideOrchestrator,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewChatHandler),
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(handlers.NewSessionHandler),
			provideServerHandler(handlers.NewPageHandler),
			provideServerHandler(provideKnowledgeHandler),
			provideServer,
		),
		fx.Invoke(
			startJanitor,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideCache(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) cache.Store {
	redisStore := cache.NewRedisStore(log, cfg.Redis)
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return redisStore.Close() }})
	return redisStore
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := store.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideDirectory(log *slog.Logger, sessions *store.SessionStore, messages *store.MessageStore, cacheStore cache.Store) *session.Directory {
	return session.NewDirectory(log, sessions, messages, cacheStore)
}

func provideGate(log *slog.Logger, directory *session.Directory, sessions *store.SessionStore, cacheStore cache.Store) *session.Gate {
	return session.NewGate(log, directory, sessions, cacheStore)
}

func provideJanitor(log *slog.Logger, gate *session.Gate, sessions *store.SessionStore) *session.Janitor {
	return session.NewJanitor(log, gate, sessions)
}

func provideAllocator(log *slog.Logger, keys *store.KeyStore, cacheStore cache.Store) *keyring.Allocator {
	return keyring.NewAllocator(log, keys, cacheStore)
}

func provideMessageService(log *slog.Logger, messages *store.MessageStore) *message.Service {
	return message.NewService(log, messages)
}

func providePageService(log *slog.Logger, pageStore *store.PageStore, cacheStore cache.Store) *pages.Service {
	return pages.NewService(log, pageStore, cacheStore)
}

func provideNotifier(log *slog.Logger, cfg config.Config) notify.Notifier {
	return notify.NewTelegram(log, cfg.Notify)
}

func provideKnowledgeStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*knowledge.QdrantStore, error) {
	qdrantStore, err := knowledge.NewQdrantStore(log, cfg.Qdrant)
	if err != nil {
		return nil, fmt.Errorf("qdrant init: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return qdrantStore.Close() }})
	return qdrantStore, nil
}

func provideSearcher(qdrantStore *knowledge.QdrantStore) knowledge.Searcher {
	return qdrantStore
}

func provideGeneratorPicker(log *slog.Logger) reply.GeneratorPicker {
	return chat.NewResolver(log)
}

func provideEmbedderPicker(log *slog.Logger) reply.EmbedderPicker {
	return func(model string) embeddings.Embedder {
		return embeddings.Select(log, model)
	}
}

// provideEmbedFunc builds the ingestion-side embedder: same provider as the
// reply path, but keys rotate per call since no session is involved.
func provideEmbedFunc(log *slog.Logger, allocator *keyring.Allocator, cfg config.Config) handlers.EmbedFunc {
	gen := cfg.Generation
	return func(ctx context.Context, text string) ([]float32, error) {
		key, err := allocator.Allocate(ctx, gen.EmbeddingGroup, keyring.TypeEmbedding, nil)
		if err != nil {
			return nil, err
		}
		return embeddings.Select(log, gen.EmbeddingModel).Embed(ctx, text, key.APIKey)
	}
}

func provideTasks(log *slog.Logger, cfg config.Config) *reply.Tasks {
	return reply.NewTasks(log, time.Duration(cfg.Generation.TimeoutSeconds)*time.Second)
}

func provideChannelRegistry(log *slog.Logger, cfg config.Config) *channel.Registry {
	registry := channel.NewRegistry()
	registry.Register(session.ChannelFacebook, channel.NewFacebookSender(log, cfg.Channels.Facebook.PageToken))
	registry.Register(session.ChannelTelegram, channel.NewTelegramSender(log, cfg.Channels.Telegram.BotToken))
	registry.Register(session.ChannelZalo, channel.NewZaloSender(log, cfg.Channels.Zalo.AccessToken))
	return registry
}

func provideOrchestrator(
	log *slog.Logger,
	cfg config.Config,
	directory *session.Directory,
	gate *session.Gate,
	allocator *keyring.Allocator,
	messages *message.Service,
	searcher knowledge.Searcher,
	generators reply.GeneratorPicker,
	embedders reply.EmbedderPicker,
	hub *ws.Hub,
	senders *channel.Registry,
	notifier notify.Notifier,
	pageService *pages.Service,
	tasks *reply.Tasks,
) *reply.Orchestrator {
	return reply.NewOrchestrator(
		log,
		reply.SettingsFromConfig(cfg.Generation),
		directory,
		gate,
		allocator,
		messages,
		searcher,
		generators,
		embedders,
		hub,
		senders,
		notifier,
		pageService,
		tasks,
	)
}

func provideWebhookHandler(log *slog.Logger, orchestrator *reply.Orchestrator, cfg config.Config) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, orchestrator, cfg.Channels.Facebook.VerifyToken)
}

func provideKnowledgeHandler(log *slog.Logger, qdrantStore *knowledge.QdrantStore, embed handlers.EmbedFunc) *handlers.KnowledgeHandler {
	return handlers.NewKnowledgeHandler(log, qdrantStore, embed)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.New(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startJanitor(lc fx.Lifecycle, log *slog.Logger, janitor *session.Janitor) {
	c := cron.New()
	if _, err := c.AddFunc("@every 1m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		janitor.Sweep(ctx)
	}); err != nil {
		log.Error("janitor schedule failed", slog.Any("error", err))
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { c.Start(); return nil },
		OnStop: func(ctx context.Context) error {
			<-c.Stop().Done()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, tasks *reply.Tasks, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			tasks.Wait()
			return nil
		},
	})
}
