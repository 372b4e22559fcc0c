package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"studyrag/internal/models"
)

const (
	StrategyWindow    = "window"
	StrategyRecursive = "recursive"
)

var ErrInvalidChunking = errors.New("chunk overlap must be non-negative and smaller than chunk size")

// Chunker splits document pages into overlapping chunks
type Chunker struct {
	Size     int
	Overlap  int
	Strategy string
}

func NewChunker(size, overlap int, strategy string) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w (size=%d overlap=%d)", ErrInvalidChunking, size, overlap)
	}
	if strategy == "" {
		strategy = StrategyWindow
	}
	if strategy != StrategyWindow && strategy != StrategyRecursive {
		return nil, fmt.Errorf("unknown chunk strategy: %s", strategy)
	}
	return &Chunker{Size: size, Overlap: overlap, Strategy: strategy}, nil
}

// Split chunks every page in order. Seq numbers run across the whole document.
func (c *Chunker) Split(pages []models.Page) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, page := range pages {
		content := strings.TrimSpace(page.Text)
		if content == "" {
			continue
		}

		var texts []string
		var err error
		if c.Strategy == StrategyRecursive {
			splitter := textsplitter.NewRecursiveCharacter(
				textsplitter.WithChunkSize(c.Size),
				textsplitter.WithChunkOverlap(c.Overlap),
			)
			texts, err = splitter.SplitText(content)
		} else {
			texts, err = SplitText(content, c.Size, c.Overlap)
		}
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page.Number, err)
		}

		for _, t := range texts {
			if strings.TrimSpace(t) == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{
				Text:       t,
				SourcePage: page.Number,
				Seq:        len(chunks),
			})
		}
	}
	return chunks, nil
}

// SplitText cuts content into windows of size runes, each starting size-overlap
// runes after the previous one. The last window may be shorter; none is empty.
func SplitText(content string, size, overlap int) ([]string, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrInvalidChunking
	}

	runes := []rune(content)
	if len(runes) == 0 {
		return nil, nil
	}

	stride := size - overlap
	var chunks []string
	for start := 0; ; start += stride {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
