package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath       = "config.toml"
	DefaultHTTPAddr         = ":8080"
	DefaultPGHost           = "127.0.0.1"
	DefaultPGPort           = 5432
	DefaultPGUser           = "postgres"
	DefaultPGDatabase       = "vinchat"
	DefaultPGSSLMode        = "disable"
	DefaultRedisAddr        = "127.0.0.1:6379"
	DefaultQdrantURL        = "http://127.0.0.1:6334"
	DefaultQdrantCollection = "knowledge"
	DefaultGenTimeout       = 60
	DefaultHistoryDepth     = 10
	DefaultKnowledgeTopK    = 3
)

type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	Qdrant     QdrantConfig     `toml:"qdrant"`
	Generation GenerationConfig `toml:"generation"`
	Notify     NotifyConfig     `toml:"notify"`
	Channels   ChannelsConfig   `toml:"channels"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type QdrantConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Collection     string `toml:"collection"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type GenerationConfig struct {
	BotModel       string `toml:"bot_model"`
	BotGroup       string `toml:"bot_group"`
	EmbeddingModel string `toml:"embedding_model"`
	EmbeddingGroup string `toml:"embedding_group"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	HistoryDepth   int    `toml:"history_depth"`
	KnowledgeTopK  int    `toml:"knowledge_top_k"`
}

// NotifyConfig points missing-information alerts at a fixed Telegram chat.
type NotifyConfig struct {
	TelegramToken  string `toml:"telegram_token"`
	TelegramChatID int64  `toml:"telegram_chat_id"`
}

type ChannelsConfig struct {
	Facebook FacebookConfig `toml:"facebook"`
	Telegram TelegramConfig `toml:"telegram"`
	Zalo     ZaloConfig     `toml:"zalo"`
}

type FacebookConfig struct {
	VerifyToken string `toml:"verify_token"`
	PageToken   string `toml:"page_token"`
}

type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
}

type ZaloConfig struct {
	AccessToken string `toml:"access_token"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		Qdrant: QdrantConfig{
			BaseURL:    DefaultQdrantURL,
			Collection: DefaultQdrantCollection,
		},
		Generation: GenerationConfig{
			TimeoutSeconds: DefaultGenTimeout,
			HistoryDepth:   DefaultHistoryDepth,
			KnowledgeTopK:  DefaultKnowledgeTopK,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
