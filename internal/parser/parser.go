package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"studyrag/internal/models"
)

const defaultPageNumber = 1

type pageParser func(filePath string) ([]models.Page, error)

var parsers = map[string]pageParser{
	".pdf":  parsePDF,
	".docx": parseDOCX,
	".pptx": parsePPTX,
	".xlsx": parseXLSX,
	".xlsm": parseXLSM,
	".md":   parseMarkdown,
	".txt":  parseText,
}

// IsSupported reports whether a file with this name can be loaded
func IsSupported(filename string) bool {
	_, ok := parsers[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// ParseFile extracts per-page plain text from the file. Failures to read the
// content are wrapped with models.ErrDocumentParse.
func ParseFile(filePath string) ([]models.Page, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	parse, ok := parsers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, ext)
	}

	pages, err := parse(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDocumentParse, err)
	}
	log.Debug().Str("file", filepath.Base(filePath)).Int("pages", len(pages)).Msg("Parsed document")
	return pages, nil
}

func parsePDF(filePath string) (pages []models.Page, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("corrupt pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, models.Page{Number: i, Text: pageText})
	}
	return pages, nil
}

func parseText(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return []models.Page{{Number: defaultPageNumber, Text: string(data)}}, nil
}
