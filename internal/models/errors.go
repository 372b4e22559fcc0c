package models

import "errors"

var (
	// ErrSessionNotFound indicates there is no committed session with the given id
	ErrSessionNotFound = errors.New("session not found")

	// ErrDocumentParse indicates the loader could not extract text from the upload
	ErrDocumentParse = errors.New("document parse error")

	// ErrUnsupportedFormat indicates the upload has an extension no loader handles
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmbeddingMismatch indicates the index was built with another embedding configuration
	ErrEmbeddingMismatch = errors.New("embedding configuration mismatch")

	// ErrGeneration indicates the generation provider call failed
	ErrGeneration = errors.New("generation failed")

	// ErrOutputParse indicates a structured answer was found but could not be parsed
	ErrOutputParse = errors.New("could not parse structured answer")

	// ErrNoStructuredAnswer indicates the generation holds neither JSON nor the no-visualization sentinel
	ErrNoStructuredAnswer = errors.New("no structured answer found")

	// ErrInvalidInput indicates a malformed request
	ErrInvalidInput = errors.New("invalid input")
)
