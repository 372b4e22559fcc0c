package models

import "context"

// VectorIndex holds the embedded chunks of one session
type VectorIndex interface {
	Add(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	// Search returns at most k chunks ordered by non-increasing similarity
	Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error)
	Count(ctx context.Context) (int, error)
}

// IndexProvider creates and reopens per-session indexes
type IndexProvider interface {
	Create(ctx context.Context, sess *Session) (VectorIndex, error)
	Open(ctx context.Context, sess *Session) (VectorIndex, error)
	Drop(ctx context.Context, sess *Session) error
}
