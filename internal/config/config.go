package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const envPrefix = "STUDYRAG_"

type Config struct {
	Server       ServerConfig      `yaml:"server" toml:"server"`
	RAG          RAGConfig         `yaml:"rag" toml:"rag"`
	EmbedLLM     LLMConfig         `yaml:"embed_llm" toml:"embed_llm"`
	InferenceLLM LLMConfig         `yaml:"inference_llm" toml:"inference_llm"`
	Session      SessionConfig     `yaml:"session" toml:"session"`
	VectorStore  VectorStoreConfig `yaml:"vector_store" toml:"vector_store"`
	Database     DatabaseConfig    `yaml:"database" toml:"database"`
	Redis        RedisConfig       `yaml:"redis" toml:"redis"`
	Log          LogConfig         `yaml:"log" toml:"log"`
}

type ServerConfig struct {
	Host           string  `yaml:"host" toml:"host"`
	Port           int     `yaml:"port" toml:"port"`
	GinMode        string  `yaml:"gin_mode" toml:"gin_mode"`
	MaxUploadMB    int     `yaml:"max_upload_mb" toml:"max_upload_mb"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" toml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst" toml:"rate_limit_burst"`
}

type RAGConfig struct {
	ChunkSize             int    `yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap          int    `yaml:"chunk_overlap" toml:"chunk_overlap"`
	ChunkStrategy         string `yaml:"chunk_strategy" toml:"chunk_strategy"`
	SummaryChunks         int    `yaml:"summary_chunks" toml:"summary_chunks"`
	ConceptTopK           int    `yaml:"concept_top_k" toml:"concept_top_k"`
	OverviewTopK          int    `yaml:"overview_top_k" toml:"overview_top_k"`
	EmbedBatchSize        int    `yaml:"embed_batch_size" toml:"embed_batch_size"`
	GenerationTimeoutSecs int    `yaml:"generation_timeout_secs" toml:"generation_timeout_secs"`
	IndexCacheSize        int    `yaml:"index_cache_size" toml:"index_cache_size"`
	UploadDir             string `yaml:"upload_dir" toml:"upload_dir"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider" toml:"provider"`
	BaseURL     string  `yaml:"base_url" toml:"base_url"`
	Key         string  `yaml:"key" toml:"key"`
	Model       string  `yaml:"model" toml:"model"`
	Temperature float64 `yaml:"temperature" toml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" toml:"max_tokens"`
}

type SessionConfig struct {
	Root              string `yaml:"root" toml:"root"`
	Backend           string `yaml:"backend" toml:"backend"`
	TTLHours          int    `yaml:"ttl_hours" toml:"ttl_hours"`
	SweepIntervalMins int    `yaml:"sweep_interval_mins" toml:"sweep_interval_mins"`
}

type VectorStoreConfig struct {
	Type     string `yaml:"type" toml:"type"`
	Compress bool   `yaml:"compress" toml:"compress"`
}

type DatabaseConfig struct {
	DSN    string `yaml:"dsn" toml:"dsn"`
	Driver string `yaml:"driver" toml:"driver"`
	Debug  bool   `yaml:"debug" toml:"debug"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Pretty bool   `yaml:"pretty" toml:"pretty"`
}

// LoadConfig reads the config at path. YAML and TOML are picked by extension;
// a missing file yields defaults. Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("error reading config file: %w", err)
	default:
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	mergeWithEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.RAG.GenerationTimeoutSecs) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Session.SweepIntervalMins) * time.Minute
}

func (c ServerConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			GinMode:        "release",
			MaxUploadMB:    20,
			RateLimitRPS:   5,
			RateLimitBurst: 10,
		},
		RAG: RAGConfig{
			ChunkSize:             1000,
			ChunkOverlap:          200,
			ChunkStrategy:         "window",
			SummaryChunks:         15,
			ConceptTopK:           10,
			OverviewTopK:          15,
			EmbedBatchSize:        32,
			GenerationTimeoutSecs: 120,
			IndexCacheSize:        128,
		},
		EmbedLLM: LLMConfig{
			Provider: "ollama",
			BaseURL:  "http://localhost:11434",
			Model:    "all-minilm",
		},
		InferenceLLM: LLMConfig{
			Provider:    "ollama",
			BaseURL:     "http://localhost:11434",
			Model:       "llama3",
			Temperature: 0.2,
		},
		Session: SessionConfig{
			Root:              "sessions",
			Backend:           "filesystem",
			TTLHours:          24,
			SweepIntervalMins: 10,
		},
		VectorStore: VectorStoreConfig{Type: "chromem"},
		Database:    DatabaseConfig{Driver: "pgdriver"},
		Redis:       RedisConfig{Addr: "127.0.0.1:6379"},
		Log:         LogConfig{Level: "info", Pretty: true},
	}
}

// applyDefaults fills zero values a partial config file left behind
func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.GinMode == "" {
		cfg.Server.GinMode = def.Server.GinMode
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = def.Server.MaxUploadMB
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = def.RAG.ChunkSize
	}
	if cfg.RAG.ChunkStrategy == "" {
		cfg.RAG.ChunkStrategy = def.RAG.ChunkStrategy
	}
	if cfg.RAG.SummaryChunks == 0 {
		cfg.RAG.SummaryChunks = def.RAG.SummaryChunks
	}
	if cfg.RAG.ConceptTopK == 0 {
		cfg.RAG.ConceptTopK = def.RAG.ConceptTopK
	}
	if cfg.RAG.OverviewTopK == 0 {
		cfg.RAG.OverviewTopK = def.RAG.OverviewTopK
	}
	if cfg.RAG.EmbedBatchSize == 0 {
		cfg.RAG.EmbedBatchSize = def.RAG.EmbedBatchSize
	}
	if cfg.RAG.GenerationTimeoutSecs == 0 {
		cfg.RAG.GenerationTimeoutSecs = def.RAG.GenerationTimeoutSecs
	}
	if cfg.RAG.IndexCacheSize == 0 {
		cfg.RAG.IndexCacheSize = def.RAG.IndexCacheSize
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = def.EmbedLLM.Provider
	}
	if cfg.InferenceLLM.Provider == "" {
		cfg.InferenceLLM.Provider = def.InferenceLLM.Provider
	}
	if cfg.Session.Root == "" {
		cfg.Session.Root = def.Session.Root
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = def.Session.Backend
	}
	if cfg.Session.SweepIntervalMins == 0 {
		cfg.Session.SweepIntervalMins = def.Session.SweepIntervalMins
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = def.Database.Driver
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}

func mergeWithEnv(cfg *Config) {
	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsInt("PORT", cfg.Server.Port)
	cfg.Server.GinMode = getEnv("GIN_MODE", cfg.Server.GinMode)
	cfg.Server.MaxUploadMB = getEnvAsInt("MAX_UPLOAD_MB", cfg.Server.MaxUploadMB)

	cfg.RAG.ChunkSize = getEnvAsInt("CHUNK_SIZE", cfg.RAG.ChunkSize)
	cfg.RAG.ChunkOverlap = getEnvAsInt("CHUNK_OVERLAP", cfg.RAG.ChunkOverlap)
	cfg.RAG.GenerationTimeoutSecs = getEnvAsInt("GENERATION_TIMEOUT_SECS", cfg.RAG.GenerationTimeoutSecs)
	cfg.RAG.UploadDir = getEnv("UPLOAD_DIR", cfg.RAG.UploadDir)

	cfg.EmbedLLM.Provider = getEnv("EMBED_PROVIDER", cfg.EmbedLLM.Provider)
	cfg.EmbedLLM.BaseURL = getEnv("EMBED_BASE_URL", cfg.EmbedLLM.BaseURL)
	cfg.EmbedLLM.Key = getEnv("EMBED_KEY", cfg.EmbedLLM.Key)
	cfg.EmbedLLM.Model = getEnv("EMBED_MODEL", cfg.EmbedLLM.Model)

	cfg.InferenceLLM.Provider = getEnv("LLM_PROVIDER", cfg.InferenceLLM.Provider)
	cfg.InferenceLLM.BaseURL = getEnv("LLM_BASE_URL", cfg.InferenceLLM.BaseURL)
	cfg.InferenceLLM.Key = getEnv("LLM_KEY", cfg.InferenceLLM.Key)
	cfg.InferenceLLM.Model = getEnv("LLM_MODEL", cfg.InferenceLLM.Model)

	cfg.Session.Root = getEnv("SESSION_ROOT", cfg.Session.Root)
	cfg.Session.Backend = getEnv("SESSION_BACKEND", cfg.Session.Backend)
	cfg.Session.TTLHours = getEnvAsInt("SESSION_TTL_HOURS", cfg.Session.TTLHours)
	cfg.Session.SweepIntervalMins = getEnvAsInt("SWEEP_INTERVAL_MINS", cfg.Session.SweepIntervalMins)

	cfg.VectorStore.Type = getEnv("VECTOR_STORE", cfg.VectorStore.Type)
	cfg.Database.DSN = getEnv("DATABASE_DSN", cfg.Database.DSN)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(envPrefix + key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
