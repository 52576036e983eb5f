package services

import (
	"context"
	"fmt"

	"gumtree-scraper/models"
	"gumtree-scraper/storage"
	"gumtree-scraper/utils"
)

// SyncResult reports what a sync appended and skipped as duplicates.
type SyncResult struct {
	Appended int
	Skipped  int
}

// Syncer appends new listings to a RowStore, skipping ones it already holds.
type Syncer struct {
	store  storage.RowStore
	logger *utils.Logger
}

func NewSyncer(store storage.RowStore, logger *utils.Logger) *Syncer {
	return &Syncer{store: store, logger: logger}
}

// Sync never modifies existing rows. Running it twice with the same batch appends nothing
// the second time.
func (s *Syncer) Sync(ctx context.Context, listings []models.Listing) (SyncResult, error) {
	if err := s.store.EnsureHeader(ctx); err != nil {
		return SyncResult{}, fmt.Errorf("sync: ensure header: %w", err)
	}

	existing, err := s.store.ReadAll(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("sync: read existing: %w", err)
	}

	toAppend := Plan(listings, existing)
	res := SyncResult{Appended: len(toAppend), Skipped: len(listings) - len(toAppend)}
	s.logger.Info("[sync] %d existing rows | %d new | %d duplicates skipped",
		len(existing), res.Appended, res.Skipped)

	if len(toAppend) == 0 {
		return res, nil
	}
	if err := s.store.Append(ctx, toAppend); err != nil {
		return SyncResult{Skipped: res.Skipped}, fmt.Errorf("sync: append: %w", err)
	}
	return res, nil
}
