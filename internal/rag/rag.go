package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"studyrag/internal/config"
	"studyrag/internal/helper"
	"studyrag/internal/models"
	"studyrag/internal/parser"
)

// SessionStore is the registry the pipeline reserves, commits and resolves sessions with
type SessionStore interface {
	Create(ctx context.Context) (*models.Session, error)
	Commit(ctx context.Context, sess *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Info() models.EmbeddingInfo
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// IngestResult is returned for a successfully indexed upload
type IngestResult struct {
	SessionID  string
	Summary    string
	ChunkCount int
}

// RAG ingests documents into per-session indexes and answers tasks against them
type RAG struct {
	cfg       config.RAGConfig
	store     SessionStore
	indexes   models.IndexProvider
	embedder  Embedder
	generator Generator
	chunker   *parser.Chunker
	tasks     map[string]Task

	// open index handles by session id, least recently used evicted first
	cache *lru.Cache
	opens singleflight.Group
}

const defaultIndexCacheSize = 128

func NewRAG(cfg config.RAGConfig, store SessionStore, indexes models.IndexProvider, embedder Embedder, generator Generator) (*RAG, error) {
	chunker, err := parser.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap, cfg.ChunkStrategy)
	if err != nil {
		return nil, err
	}
	size := cfg.IndexCacheSize
	if size < 1 {
		size = defaultIndexCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create index cache: %w", err)
	}
	return &RAG{
		cfg:       cfg,
		store:     store,
		indexes:   indexes,
		embedder:  embedder,
		generator: generator,
		chunker:   chunker,
		tasks:     DefaultTasks(cfg.ConceptTopK, cfg.OverviewTopK),
		cache:     cache,
	}, nil
}

// Ingest parses an upload, indexes it under a new session and summarizes its
// opening chunks. The session only becomes visible once everything succeeded.
func (r *RAG) Ingest(ctx context.Context, filename string, body io.Reader) (*IngestResult, error) {
	if !parser.IsSupported(filename) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, filename)
	}

	var pages []models.Page
	err := helper.WithTempFile(r.cfg.UploadDir, filename, body, func(path string) error {
		var err error
		pages, err = parser.ParseFile(path)
		return err
	})
	if err != nil {
		return nil, err
	}

	chunks, err := r.chunker.Split(pages)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no extractable text in %s", models.ErrDocumentParse, filename)
	}

	sess, err := r.store.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	logger := log.With().Str("session_id", sess.ID).Str("filename", filename).Logger()

	committed := false
	defer func() {
		if !committed {
			r.discard(context.WithoutCancel(ctx), sess)
		}
	}()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	r.touch(ctx, sess.ID)

	idx, err := r.indexes.Create(ctx, sess)
	if err != nil {
		return nil, err
	}
	if err := idx.Add(ctx, chunks, vectors); err != nil {
		return nil, err
	}
	logger.Info().Int("chunks", len(chunks)).Int("pages", len(pages)).Msg("Indexed document")

	summaryContext := strings.Join(texts[:min(r.cfg.SummaryChunks, len(texts))], "\n")
	prompt, err := summaryPrompt.Format(map[string]any{"context": summaryContext})
	if err != nil {
		return nil, fmt.Errorf("failed to render summary prompt: %w", err)
	}
	summary, err := r.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	r.touch(ctx, sess.ID)

	sess.Filename = filename
	sess.ChunkCount = len(chunks)
	sess.Embedding = r.embedder.Info()
	if err := r.store.Commit(ctx, sess); err != nil {
		return nil, err
	}
	committed = true

	r.cache.Add(sess.ID, idx)

	logger.Info().Msg("Session ready")
	return &IngestResult{SessionID: sess.ID, Summary: summary, ChunkCount: len(chunks)}, nil
}

// Run executes the named task against an existing session
func (r *RAG) Run(ctx context.Context, name string, req Request) (*Result, error) {
	task, ok := r.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown task %q", models.ErrInvalidInput, name)
	}
	seed, err := task.SeedQuery(req)
	if err != nil {
		return nil, err
	}

	sess, err := r.store.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	vector, err := r.embedder.EmbedQuery(ctx, seed)
	if err != nil {
		return nil, err
	}
	current := r.embedder.Info()
	current.Dimensions = len(vector)
	if !sess.Embedding.Matches(current) {
		return nil, fmt.Errorf("%w: session built with %s/%s (%d dims), querying with %s/%s (%d dims)",
			models.ErrEmbeddingMismatch,
			sess.Embedding.Provider, sess.Embedding.Model, sess.Embedding.Dimensions,
			current.Provider, current.Model, current.Dimensions)
	}

	idx, err := r.index(ctx, sess)
	if err != nil {
		return nil, err
	}
	hits, err := idx.Search(ctx, vector, task.TopK)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	vars := task.Vars(req)
	vars["context"] = strings.Join(texts, "\n")
	prompt, err := task.Template.Format(vars)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s prompt: %w", task.Name, err)
	}

	log.Debug().Str("session_id", sess.ID).Str("task", task.Name).Int("hits", len(hits)).Msg("Running task")
	answer, err := r.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	res, err := task.Post(req, answer)
	if err != nil {
		return nil, err
	}
	res.Task = task.Name
	res.Sources = hits
	return res, nil
}

// DeleteSession removes a committed session and its index
func (r *RAG) DeleteSession(ctx context.Context, id string) error {
	sess, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	r.forget(id)
	if err := r.indexes.Drop(ctx, sess); err != nil {
		return err
	}
	return r.store.Delete(ctx, id)
}

// Purge releases the index data of sessions the store already removed,
// typically after a janitor sweep.
func (r *RAG) Purge(ctx context.Context, ids ...string) {
	r.forget(ids...)
	for _, id := range ids {
		if err := r.indexes.Drop(ctx, &models.Session{ID: id}); err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("Failed to drop index of swept session")
		}
	}
}

func (r *RAG) forget(ids ...string) {
	for _, id := range ids {
		r.cache.Remove(id)
	}
}

// index returns the cached handle for sess or opens it. Concurrent opens of
// the same session share one load; other sessions are never held up by it.
func (r *RAG) index(ctx context.Context, sess *models.Session) (models.VectorIndex, error) {
	if idx, ok := r.cache.Get(sess.ID); ok {
		return idx.(models.VectorIndex), nil
	}

	v, err, _ := r.opens.Do(sess.ID, func() (interface{}, error) {
		if idx, ok := r.cache.Get(sess.ID); ok {
			return idx, nil
		}
		idx, err := r.indexes.Open(ctx, sess)
		if err != nil {
			return nil, err
		}
		r.cache.Add(sess.ID, idx)
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(models.VectorIndex), nil
}

// touch marks an ingestion in flight as active so sweeps leave it alone
func (r *RAG) touch(ctx context.Context, id string) {
	if err := r.store.Touch(ctx, id); err != nil {
		log.Warn().Err(err).Str("session_id", id).Msg("Failed to touch session")
	}
}

func (r *RAG) generate(ctx context.Context, prompt string) (string, error) {
	timeout := time.Duration(r.cfg.GenerationTimeoutSecs) * time.Second
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	answer, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, models.ErrGeneration) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", models.ErrGeneration, err)
	}
	return answer, nil
}

func (r *RAG) discard(ctx context.Context, sess *models.Session) {
	r.forget(sess.ID)
	if err := r.indexes.Drop(ctx, sess); err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("Failed to drop index of failed ingestion")
	}
	if err := r.store.Delete(ctx, sess.ID); err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("Failed to delete failed session")
	}
}
