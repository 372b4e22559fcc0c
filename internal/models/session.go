package models

import "time"

// EmbeddingInfo identifies the embedding configuration an index was built with.
type EmbeddingInfo struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
}

// Matches reports whether two configurations produce comparable vectors.
// A zero Dimensions on either side is treated as unknown.
func (e EmbeddingInfo) Matches(other EmbeddingInfo) bool {
	if e.Provider != other.Provider || e.Model != other.Model {
		return false
	}
	if e.Dimensions == 0 || other.Dimensions == 0 {
		return true
	}
	return e.Dimensions == other.Dimensions
}

// Session binds one ingested document's index to a reusable id
type Session struct {
	ID         string        `yaml:"id" json:"id"`
	Location   string        `yaml:"location" json:"location"`
	CreatedAt  time.Time     `yaml:"created_at" json:"created_at"`
	Filename   string        `yaml:"filename" json:"filename"`
	ChunkCount int           `yaml:"chunk_count" json:"chunk_count"`
	Embedding  EmbeddingInfo `yaml:"embedding" json:"embedding"`
}

// Expired reports whether the session is older than ttl. A non-positive ttl never expires.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.CreatedAt) > ttl
}
