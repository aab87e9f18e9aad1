// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QueueConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	LockDuration    time.Duration `yaml:"lock_duration"`
	MaxAttempts     int           `yaml:"max_attempts"`
	Retention       int           `yaml:"retention"`
	ReclaimInterval time.Duration `yaml:"reclaim_interval"`
}

type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

type VectorConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
	Dimensions int    `yaml:"dimensions"`
}

type AIConfig struct {
	Provider        string `yaml:"provider"` // openai | gemini | noop
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIURL       string `yaml:"openai_url"`
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	ChatModel       string `yaml:"chat_model"`
	EmbeddingModel  string `yaml:"embedding_model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent AI calls
}

type ConversationConfig struct {
	RateLimit  int           `yaml:"rate_limit"` // turns per window per workspace
	RateWindow time.Duration `yaml:"rate_window"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"` // 16/24/32 bytes; empty disables at-rest encryption
}

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Queue        QueueConfig        `yaml:"queue"`
	Storage      StorageConfig      `yaml:"storage"`
	Vector       VectorConfig       `yaml:"vector"`
	AI           AIConfig           `yaml:"ai"`
	Conversation ConversationConfig `yaml:"conversation"`
	Security     SecurityConfig     `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string = ""
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "resources"
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "resources"
	}
	if cfg.Vector.Dimensions <= 0 {
		cfg.Vector.Dimensions = 1536
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.AI.ChatModel == "" {
		cfg.AI.ChatModel = "gpt-4o-mini"
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.Conversation.RateLimit <= 0 {
		cfg.Conversation.RateLimit = 10
	}
	if cfg.Conversation.RateWindow <= 0 {
		cfg.Conversation.RateWindow = time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Storage.Endpoint == "" {
		return nil, errors.New("storage.endpoint is required")
	}
	if cfg.Vector.BaseURL == "" {
		return nil, errors.New("vector.base_url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
