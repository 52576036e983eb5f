package storage

import (
	"context"
	"errors"

	"gumtree-scraper/models"
)

// ErrStoreDisabled is returned when no external store backend is configured.
var ErrStoreDisabled = errors.New("storage: external store disabled")

// Row is one persisted record keyed by column name. Values keep whatever type the
// backend returned (sheets may hand back numbers for numeric-looking cells).
type Row map[string]any

// RowStore is the append-only external store listings are synchronised into.
type RowStore interface {
	// EnsureHeader establishes the column layout if the store is still empty.
	EnsureHeader(ctx context.Context) error
	ReadAll(ctx context.Context) ([]Row, error)
	Append(ctx context.Context, listings []models.Listing) error
	Close() error
}

// RunHistory keeps summaries of recent runs, newest first.
type RunHistory interface {
	Record(ctx context.Context, s models.RunSummary) error
	Latest(ctx context.Context) (*models.RunSummary, error)
	Recent(ctx context.Context, n int) ([]models.RunSummary, error)
}
