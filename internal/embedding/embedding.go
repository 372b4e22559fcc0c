package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"studyrag/internal/config"
	"studyrag/internal/llmservice"
	"studyrag/internal/models"
)

// Embedder turns chunk and query text into vectors and remembers which
// configuration produced them.
type Embedder struct {
	impl *embeddings.EmbedderImpl

	mu   sync.Mutex
	info models.EmbeddingInfo
}

// NewEmbedder creates an embedder for the configured provider
func NewEmbedder(cfg *config.LLMConfig, batchSize int) (*Embedder, error) {
	client, err := llmservice.NewModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("error initializing embedding client: %w", err)
	}
	return NewEmbedderWithClient(client, models.EmbeddingInfo{Provider: cfg.Provider, Model: cfg.Model}, batchSize)
}

func NewEmbedderWithClient(client embeddings.EmbedderClient, info models.EmbeddingInfo, batchSize int) (*Embedder, error) {
	opts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}
	impl, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating embedder: %w", err)
	}
	return &Embedder{impl: impl, info: info}, nil
}

// Info returns the embedding configuration. Dimensions stay zero until the
// first vector has been produced.
func (e *Embedder) Info() models.EmbeddingInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d texts: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	e.observe(vectors[0])
	log.Debug().Int("count", len(vectors)).Msg("Embedded documents")
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	e.observe(vector)
	return vector, nil
}

func (e *Embedder) observe(vector []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.info.Dimensions == 0 {
		e.info.Dimensions = len(vector)
	}
}
