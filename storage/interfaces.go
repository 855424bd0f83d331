package storage

import (
	"context"

	"book-digest/models"
)

// SnapshotStore persists the limited listing set of one run.
type SnapshotStore interface {
	Write(listings []models.Listing) error
	Path() string
}

// Archive keeps the final listings of every run for later inspection.
type Archive interface {
	Archive(ctx context.Context, runID string, listings []models.Listing) error
	Close() error
}
