package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"studyrag/internal/models"
)

const (
	indexDir       = "index"
	collectionName = "chunks"

	metaPage = "page"
	metaSeq  = "seq"
)

var errNoEmbedFunc = errors.New("chunks must be embedded before they reach the index")

// vectors are always computed by the caller
func noEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, errNoEmbedFunc
}

// Provider stores each session's index as a persistent chromem database
// inside the session directory.
type Provider struct {
	compress bool
}

func NewProvider(compress bool) *Provider {
	return &Provider{compress: compress}
}

func path(sess *models.Session) string {
	return filepath.Join(sess.Location, indexDir)
}

// Create initializes an empty index for a freshly reserved session
func (p *Provider) Create(ctx context.Context, sess *models.Session) (models.VectorIndex, error) {
	db, err := chromem.NewPersistentDB(path(sess), p.compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	c, err := db.GetOrCreateCollection(collectionName, map[string]string{"session_id": sess.ID}, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &Index{collection: c}, nil
}

// Open loads a previously committed index from disk
func (p *Provider) Open(ctx context.Context, sess *models.Session) (models.VectorIndex, error) {
	if _, err := os.Stat(path(sess)); errors.Is(err, os.ErrNotExist) {
		return nil, models.ErrSessionNotFound
	}
	db, err := chromem.NewPersistentDB(path(sess), p.compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	c := db.GetCollection(collectionName, noEmbed)
	if c == nil {
		return nil, models.ErrSessionNotFound
	}
	log.Debug().Str("session_id", sess.ID).Int("documents", c.Count()).Msg("Loaded index")
	return &Index{collection: c}, nil
}

// Drop removes the index directory. Sessions without a location own nothing on disk.
func (p *Provider) Drop(ctx context.Context, sess *models.Session) error {
	if sess.Location == "" {
		return nil
	}
	if err := os.RemoveAll(path(sess)); err != nil {
		return fmt.Errorf("failed to drop index: %w", err)
	}
	return nil
}

// Index wraps a single chromem collection
type Index struct {
	collection *chromem.Collection
}

func (i *Index) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	docs := make([]chromem.Document, len(chunks))
	for n, chunk := range chunks {
		docs[n] = chromem.Document{
			ID:      "chunk-" + strconv.Itoa(chunk.Seq),
			Content: chunk.Text,
			Metadata: map[string]string{
				metaPage: strconv.Itoa(chunk.SourcePage),
				metaSeq:  strconv.Itoa(chunk.Seq),
			},
			Embedding: vectors[n],
		}
	}
	if err := i.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search runs a cosine similarity query. k is capped at the collection size.
func (i *Index) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("either query or embedding must be provided")
	}
	k = min(k, i.collection.Count())
	if k <= 0 {
		return nil, nil
	}

	results, err := i.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.ScoredChunk, 0, len(results))
	for _, r := range results {
		page, _ := strconv.Atoi(r.Metadata[metaPage])
		seq, _ := strconv.Atoi(r.Metadata[metaSeq])
		out = append(out, models.ScoredChunk{
			Chunk:      models.Chunk{Text: r.Content, SourcePage: page, Seq: seq},
			Similarity: r.Similarity,
		})
	}
	return out, nil
}

func (i *Index) Count(ctx context.Context) (int, error) {
	return i.collection.Count(), nil
}
