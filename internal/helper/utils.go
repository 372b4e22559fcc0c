package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RandomSuffix returns n lowercase hex characters taken from a random UUID (n <= 32)
func RandomSuffix(n int) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	hex := strings.ReplaceAll(id.String(), "-", "")
	if n > len(hex) {
		n = len(hex)
	}
	return hex[:n], nil
}

// pretty print
func PrettyPrint(w io.Writer, v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Error pretty printing")
		return
	}
	fmt.Fprintln(w, string(b))
}

// CreateFolder creates the folder and its parents if missing
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// WithTempFile copies r into a temp file in dir that keeps the extension of
// name, runs fn on its path and removes the file whatever fn returns.
func WithTempFile(dir, name string, r io.Reader, fn func(path string) error) error {
	if dir != "" {
		if err := CreateFolder(dir); err != nil {
			return err
		}
	}

	f, err := os.CreateTemp(dir, "upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to remove temp file")
		}
	}()

	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		return fmt.Errorf("failed to write temp file: %w", copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to write temp file: %w", closeErr)
	}

	return fn(path)
}
