package fetch

import (
	"context"
	"time"

	"github.com/steam-news/internal/models"
	"github.com/steam-news/internal/storage"
)

// DefaultRetention is how far back items are kept
const DefaultRetention = 30 * 24 * time.Hour

// Ingester persists a fetched batch, dropping items outside the retention window
type Ingester struct {
	retention time.Duration
	now       func() time.Time
}

// NewIngester creates an ingester; retention <= 0 uses DefaultRetention
func NewIngester(retention time.Duration, now func() time.Time) *Ingester {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if now == nil {
		now = time.Now
	}
	return &Ingester{retention: retention, now: now}
}

// Ingest saves every current item under titleID and returns how many items
// passed the retention check. The count includes items already stored.
func (in *Ingester) Ingest(ctx context.Context, repo storage.Repository, titleID uint, items []*models.NewsItem) (int, error) {
	now := in.now()
	current := 0
	for _, item := range items {
		if item.IsOlderThan(in.retention, now) {
			continue
		}
		if err := repo.SaveNewsItem(ctx, titleID, item); err != nil {
			return current, err
		}
		current++
	}
	return current, nil
}
