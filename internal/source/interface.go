package source

import (
	"context"

	"github.com/steam-news/internal/models"
)

// NewsSource defines the interface for per-title announcement feeds
type NewsSource interface {
	// Name returns the unique name of this source
	Name() string

	// FetchRecentNews retrieves a title's recent items together with the
	// freshness horizon advertised by the remote. feedFilter is passed
	// through unchanged; empty means no filter.
	FetchRecentNews(ctx context.Context, titleID uint, feedFilter string) (*models.NewsBatch, error)
}

// OwnedTitle is one entry of an account's library
type OwnedTitle struct {
	AppID           uint
	PlaytimeMinutes int
	LastPlayed      int64 // unix seconds, 0 when never played
}

// LibrarySource lists the titles owned by an account
type LibrarySource interface {
	OwnedTitles(ctx context.Context, accountID string) ([]OwnedTitle, error)
}

// NameDirectory resolves catalogue ids to display names
type NameDirectory interface {
	Name(ctx context.Context, appID uint) (string, bool)
}
