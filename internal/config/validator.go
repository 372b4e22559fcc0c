package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	llmProviders    = map[string]bool{"ollama": true, "openai": true}
	sessionBackends = map[string]bool{"filesystem": true, "redis": true}
	vectorStores    = map[string]bool{"chromem": true, "pgvector": true}
	chunkStrategies = map[string]bool{"window": true, "recursive": true}
	dbDrivers       = map[string]bool{"pgdriver": true, "pq": true}
	ginModes        = map[string]bool{"debug": true, "release": true, "test": true}
)

func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{"server.port", "port must be between 1 and 65535"})
	}
	if !ginModes[c.Server.GinMode] {
		errs = append(errs, ValidationError{"server.gin_mode", fmt.Sprintf("unknown gin mode: %s", c.Server.GinMode)})
	}
	if c.Server.MaxUploadMB < 1 {
		errs = append(errs, ValidationError{"server.max_upload_mb", "max_upload_mb must be positive"})
	}
	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, ValidationError{"server.rate_limit_rps", "rate_limit_rps cannot be negative"})
	}

	if c.RAG.ChunkSize < 1 {
		errs = append(errs, ValidationError{"rag.chunk_size", "chunk_size must be positive"})
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		errs = append(errs, ValidationError{"rag.chunk_overlap", "chunk_overlap must be non-negative and less than chunk_size"})
	}
	if !chunkStrategies[c.RAG.ChunkStrategy] {
		errs = append(errs, ValidationError{"rag.chunk_strategy", fmt.Sprintf("unknown chunk strategy: %s", c.RAG.ChunkStrategy)})
	}
	if c.RAG.SummaryChunks < 1 || c.RAG.ConceptTopK < 1 || c.RAG.OverviewTopK < 1 {
		errs = append(errs, ValidationError{"rag.top_k", "summary_chunks, concept_top_k and overview_top_k must be positive"})
	}
	if c.RAG.GenerationTimeoutSecs < 1 {
		errs = append(errs, ValidationError{"rag.generation_timeout_secs", "generation_timeout_secs must be positive"})
	}
	if c.RAG.IndexCacheSize < 1 {
		errs = append(errs, ValidationError{"rag.index_cache_size", "index_cache_size must be positive"})
	}

	errs = append(errs, validateLLM("embed_llm", c.EmbedLLM)...)
	errs = append(errs, validateLLM("inference_llm", c.InferenceLLM)...)

	if !sessionBackends[c.Session.Backend] {
		errs = append(errs, ValidationError{"session.backend", fmt.Sprintf("unknown session backend: %s", c.Session.Backend)})
	}
	if c.Session.TTLHours < 0 {
		errs = append(errs, ValidationError{"session.ttl_hours", "ttl_hours cannot be negative"})
	}
	if c.Session.SweepIntervalMins < 1 {
		errs = append(errs, ValidationError{"session.sweep_interval_mins", "sweep_interval_mins must be positive"})
	}
	if c.Session.Backend == "redis" && c.Redis.Addr == "" {
		errs = append(errs, ValidationError{"redis.addr", "redis address is required for the redis session backend"})
	}

	if !vectorStores[c.VectorStore.Type] {
		errs = append(errs, ValidationError{"vector_store.type", fmt.Sprintf("unknown vector store: %s", c.VectorStore.Type)})
	}
	if c.VectorStore.Type == "pgvector" && c.Database.DSN == "" {
		errs = append(errs, ValidationError{"database.dsn", "dsn is required for the pgvector store"})
	}
	if !dbDrivers[c.Database.Driver] {
		errs = append(errs, ValidationError{"database.driver", fmt.Sprintf("unknown database driver: %s", c.Database.Driver)})
	}

	return errs
}

func validateLLM(field string, c LLMConfig) []ValidationError {
	var errs []ValidationError
	if !llmProviders[c.Provider] {
		errs = append(errs, ValidationError{field + ".provider", fmt.Sprintf("unknown provider: %s", c.Provider)})
	}
	if c.Model == "" {
		errs = append(errs, ValidationError{field + ".model", "model is required"})
	}
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" {
			errs = append(errs, ValidationError{field + ".base_url", "invalid base URL"})
		}
	}
	return errs
}
