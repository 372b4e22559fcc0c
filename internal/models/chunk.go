package models

// Page is the plain text extracted from one page (or sheet, slide) of a document
type Page struct {
	Number int
	Text   string
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Text       string `json:"text"`
	SourcePage int    `json:"source_page"`
	Seq        int    `json:"seq"`
}

// ScoredChunk is a chunk returned by a similarity search
type ScoredChunk struct {
	Chunk
	Similarity float32 `json:"similarity"`
}
