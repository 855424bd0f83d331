package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"book-digest/models"
)

// SnapshotWriter writes listings as an indented JSON array, replacing the
// previous snapshot atomically so readers never see a partial file.
type SnapshotWriter struct {
	path string
}

func NewSnapshotWriter(path string) *SnapshotWriter {
	return &SnapshotWriter{path: path}
}

func (w *SnapshotWriter) Path() string { return w.path }

func (w *SnapshotWriter) Write(listings []models.Listing) error {
	if listings == nil {
		listings = []models.Listing{}
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("snapshot: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(listings); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("snapshot: replace %s: %w", w.path, err)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by SnapshotWriter.
func ReadSnapshot(path string) ([]models.Listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read: %w", err)
	}
	var listings []models.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", path, err)
	}
	return listings, nil
}
