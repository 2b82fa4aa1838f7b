// Package config loads ragagent settings. Layers are applied in order:
// built-in defaults, an optional YAML file, a .env file and finally
// RAGAGENT_* environment variables. RAGAGENT_OPENAI_API_KEY maps onto
// openai.api_key: the first underscore after the prefix separates the
// section from the key.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/flowgraph/ragagent/pkg/validation"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "RAGAGENT_"

// ErrInvalidConfig wraps every validation failure reported by Load and
// Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full ragagent configuration. Each field is one top-level
// section of the YAML file and of the RAGAGENT_<SECTION>_<KEY> variables.
type Config struct {
	Log        LogConfig        `koanf:"log" json:"log"`
	Retriever  RetrieverConfig  `koanf:"retriever" json:"retriever"`
	Generator  GeneratorConfig  `koanf:"generator" json:"generator"`
	OpenAI     OpenAIConfig     `koanf:"openai" json:"openai"`
	Database   DatabaseConfig   `koanf:"database" json:"database"`
	Checkpoint CheckpointConfig `koanf:"checkpoint" json:"checkpoint"`
	Server     ServerConfig     `koanf:"server" json:"server"`
	Graph      GraphConfig      `koanf:"graph" json:"graph"`
}

type LogConfig struct {
	Level  string `koanf:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" json:"format" validate:"oneof=text json"`
}

type RetrieverConfig struct {
	Backend    string  `koanf:"backend" json:"backend" validate:"oneof=memory pgvector"`
	TopK       int     `koanf:"top_k" json:"top_k" validate:"min=1,max=100"`
	Threshold  float64 `koanf:"threshold" json:"threshold" validate:"gte=-1,lte=1"`
	Dimensions int     `koanf:"dimensions" json:"dimensions" validate:"min=1,max=16000"`
	Table      string  `koanf:"table" json:"table" validate:"required"`
	Embedder   string  `koanf:"embedder" json:"embedder" validate:"oneof=hash openai"`
	// Corpus is a file or directory indexed into the memory backend at startup.
	Corpus string `koanf:"corpus" json:"corpus"`
}

type GeneratorConfig struct {
	Backend  string `koanf:"backend" json:"backend" validate:"oneof=extractive openai"`
	MaxChars int    `koanf:"max_chars" json:"max_chars" validate:"gte=0"`
}

type OpenAIConfig struct {
	APIKey         string        `koanf:"api_key" json:"-"`
	BaseURL        string        `koanf:"base_url" json:"base_url" validate:"omitempty,url"`
	Model          string        `koanf:"model" json:"model" validate:"required"`
	EmbeddingModel string        `koanf:"embedding_model" json:"embedding_model" validate:"required"`
	MaxTokens      int           `koanf:"max_tokens" json:"max_tokens" validate:"gte=0"`
	Temperature    float32       `koanf:"temperature" json:"temperature" validate:"gte=0,lte=2"`
	Timeout        time.Duration `koanf:"timeout" json:"timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	URL      string `koanf:"url" json:"-"`
	MaxConns int32  `koanf:"max_conns" json:"max_conns" validate:"gte=0"`
	MinConns int32  `koanf:"min_conns" json:"min_conns" validate:"gte=0"`
}

type CheckpointConfig struct {
	Backend     string `koanf:"backend" json:"backend" validate:"oneof=memory sqlite postgres"`
	SQLitePath  string `koanf:"sqlite_path" json:"sqlite_path"`
	Codec       string `koanf:"codec" json:"codec" validate:"oneof=json msgpack"`
	Compression string `koanf:"compression" json:"compression" validate:"oneof=none gzip zstd"`

	// EncryptionKey turns on AES-GCM for stored checkpoints when set.
	EncryptionKey string `koanf:"encryption_key" json:"-"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" json:"addr" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout" validate:"gt=0"`
}

type GraphConfig struct {
	RecursionLimit int           `koanf:"recursion_limit" json:"recursion_limit" validate:"min=1,max=10000"`
	Timeout        time.Duration `koanf:"timeout" json:"timeout" validate:"gte=0"`
}

// Default returns the settings used for an offline, in-process agent.
func Default() Config {
	return Config{
		Log:       LogConfig{Level: "info", Format: "text"},
		Retriever: RetrieverConfig{Backend: "memory", TopK: 4, Threshold: 0.05, Dimensions: 256, Table: "documents", Embedder: "hash"},
		Generator: GeneratorConfig{Backend: "extractive"},
		OpenAI: OpenAIConfig{
			Model:          "gpt-3.5-turbo",
			EmbeddingModel: "text-embedding-3-small",
			MaxTokens:      1024,
			Temperature:    0.2,
			Timeout:        30 * time.Second,
		},
		Database:   DatabaseConfig{MaxConns: 10, MinConns: 1},
		Checkpoint: CheckpointConfig{Backend: "memory", SQLitePath: "ragagent.db", Codec: "msgpack", Compression: "none"},
		Server:     ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Graph:      GraphConfig{RecursionLimit: 25},
	}
}

// Options controls where Load looks.
type Options struct {
	File    string // YAML file, optional unless set
	EnvFile string // .env file, ignored when missing
}

// Load builds the configuration. A missing Options.File is an error; a
// missing Options.EnvFile is not.
func Load(opts Options) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load env file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("load environment: %w", err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// Validate checks field rules and the cross-field requirements of the
// selected backends.
func (c Config) Validate() error {
	if err := validation.Engine().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	needsOpenAI := c.Generator.Backend == "openai" || c.Retriever.Embedder == "openai"
	if needsOpenAI && c.OpenAI.APIKey == "" {
		return fmt.Errorf("%w: openai.api_key is required by the openai embedder or generator", ErrInvalidConfig)
	}
	needsDB := c.Retriever.Backend == "pgvector" || c.Checkpoint.Backend == "postgres"
	if needsDB && c.Database.URL == "" {
		return fmt.Errorf("%w: database.url is required for pgvector or postgres", ErrInvalidConfig)
	}
	if c.Checkpoint.Backend == "sqlite" && c.Checkpoint.SQLitePath == "" {
		return fmt.Errorf("%w: checkpoint.sqlite_path is required for sqlite", ErrInvalidConfig)
	}
	return nil
}
