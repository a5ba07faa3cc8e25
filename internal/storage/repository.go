package storage

import (
	"context"
	"errors"
	"time"

	"github.com/steam-news/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for data persistence
type Repository interface {
	// Title operations
	AddTitles(ctx context.Context, titles []*models.Title) (int64, error)
	GetTitle(ctx context.Context, id uint) (*models.Title, error)
	ListTitles(ctx context.Context, filter TitleFilter) ([]*models.Title, error)
	SetShouldFetch(ctx context.Context, ids []uint, shouldFetch bool) (int64, error)
	RemoveTitlesNotIn(ctx context.Context, keep []uint) (int64, error)

	// Cache horizon operations
	GetCacheHorizon(ctx context.Context, titleID uint) (*models.CacheHorizon, error)
	SetCacheHorizon(ctx context.Context, titleID uint, expiresAt time.Time) error

	// News operations
	SaveNewsItem(ctx context.Context, titleID uint, item *models.NewsItem) error
	GetNewsItem(ctx context.Context, gid string) (*models.NewsItem, error)
	ListRecentNews(ctx context.Context, since time.Time) ([]*models.NewsItem, error)
	ListTitlesForNews(ctx context.Context, gid string) ([]*models.Title, error)

	// Transaction runs fn against a repository bound to a single transaction.
	// fn must only use the repository it is handed.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	// Maintenance
	Stats(ctx context.Context) (*Stats, error)
	Close() error
	Migrate() error
}

// TitleFilter defines filtering options for titles
type TitleFilter struct {
	NameLike     string // substring match, '%' is stripped
	OnlyFetching bool
	OrderBy      string // "id" or "name"
}

// Stats holds row counts for operator reporting
type Stats struct {
	Titles         int64
	FetchingTitles int64
	NewsItems      int64
	Links          int64
	Horizons       int64
}

// DefaultTitleFilter returns a filter with sensible defaults
func DefaultTitleFilter() TitleFilter {
	return TitleFilter{
		OrderBy: "id",
	}
}
