package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddingInfo_Matches(t *testing.T) {
	base := EmbeddingInfo{Provider: "ollama", Model: "all-minilm", Dimensions: 384}

	assert.True(t, base.Matches(base))
	assert.True(t, base.Matches(EmbeddingInfo{Provider: "ollama", Model: "all-minilm"}))
	assert.False(t, base.Matches(EmbeddingInfo{Provider: "ollama", Model: "all-minilm", Dimensions: 768}))
	assert.False(t, base.Matches(EmbeddingInfo{Provider: "openai", Model: "all-minilm", Dimensions: 384}))
	assert.False(t, base.Matches(EmbeddingInfo{Provider: "ollama", Model: "nomic-embed-text", Dimensions: 384}))
}

func TestSession_Expired(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{CreatedAt: created}

	assert.False(t, s.Expired(created.Add(23*time.Hour), 24*time.Hour))
	assert.True(t, s.Expired(created.Add(25*time.Hour), 24*time.Hour))
	assert.False(t, s.Expired(created.Add(10000*time.Hour), 0))
}

func TestNoVisualization(t *testing.T) {
	v := NoVisualization()
	assert.Equal(t, NoVisualizationText, v.Description)
	assert.Equal(t, "none", v.Type)
	assert.NotNil(t, v.Data)
	assert.True(t, v.IsSentinel())

	var missing *VisualizationPayload
	assert.False(t, missing.IsSentinel())
	assert.False(t, (&VisualizationPayload{Type: "bar_chart"}).IsSentinel())
}
