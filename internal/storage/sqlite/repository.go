package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/steam-news/internal/models"
	"github.com/steam-news/internal/storage"
)

// SQLite caps bound variables per statement at 32766
const (
	titleBatchSize  = 1000
	idsPerStatement = 10000
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New opens (creating if needed) the SQLite store at path
func New(path string) (*Repository, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(withPragmas(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// single writer; sqlite's own lock is the only mutual exclusion
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

func withPragmas(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Title{},
		&models.NewsItem{},
		&models.CacheHorizon{},
		&models.TitleNewsLink{},
	)
}

// Close optimizes and closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	_ = r.db.Exec("PRAGMA optimize").Error
	return sqlDB.Close()
}

// Transaction runs fn inside a single database transaction
func (r *Repository) Transaction(ctx context.Context, fn func(tx storage.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

// Title operations

// AddTitles inserts titles; an existing title only gets its name refreshed
func (r *Repository) AddTitles(ctx context.Context, titles []*models.Title) (int64, error) {
	if len(titles) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).CreateInBatches(titles, titleBatchSize)
	return res.RowsAffected, res.Error
}

func (r *Repository) GetTitle(ctx context.Context, id uint) (*models.Title, error) {
	var title models.Title
	if err := r.db.WithContext(ctx).First(&title, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &title, nil
}

func (r *Repository) ListTitles(ctx context.Context, filter storage.TitleFilter) ([]*models.Title, error) {
	var titles []*models.Title
	query := r.db.WithContext(ctx).Model(&models.Title{})

	if like := strings.Trim(strings.TrimSpace(filter.NameLike), "%"); like != "" {
		query = query.Where("name LIKE ?", "%"+like+"%")
	}
	if filter.OnlyFetching {
		query = query.Where("should_fetch = ?", true)
	}

	switch filter.OrderBy {
	case "name":
		query = query.Order("name ASC").Order("id ASC")
	default:
		query = query.Order("id ASC")
	}

	if err := query.Find(&titles).Error; err != nil {
		return nil, err
	}
	return titles, nil
}

// SetShouldFetch flips the fetch flag for all ids in one transaction
func (r *Repository) SetShouldFetch(ctx context.Context, ids []uint, shouldFetch bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for chunk := range slices.Chunk(ids, idsPerStatement) {
			res := tx.Model(&models.Title{}).Where("id IN ?", chunk).Update("should_fetch", shouldFetch)
			if res.Error != nil {
				return res.Error
			}
			affected += res.RowsAffected
		}
		return nil
	})
	return affected, err
}

// RemoveTitlesNotIn deletes every title whose id is not in keep.
// Horizons and links cascade.
func (r *Repository) RemoveTitlesNotIn(ctx context.Context, keep []uint) (int64, error) {
	kept := make(map[uint]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}

	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.Title{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
			return err
		}
		drop := slices.DeleteFunc(ids, func(id uint) bool {
			_, ok := kept[id]
			return ok
		})
		for chunk := range slices.Chunk(drop, idsPerStatement) {
			res := tx.Where("id IN ?", chunk).Delete(&models.Title{})
			if res.Error != nil {
				return res.Error
			}
			removed += res.RowsAffected
		}
		return nil
	})
	return removed, err
}

// Cache horizon operations

func (r *Repository) GetCacheHorizon(ctx context.Context, titleID uint) (*models.CacheHorizon, error) {
	var horizon models.CacheHorizon
	if err := r.db.WithContext(ctx).Where("title_id = ?", titleID).First(&horizon).Error; err != nil {
		return nil, notFound(err)
	}
	return &horizon, nil
}

// SetCacheHorizon replaces the title's horizon (INSERT OR REPLACE semantics)
func (r *Repository) SetCacheHorizon(ctx context.Context, titleID uint, expiresAt time.Time) error {
	horizon := &models.CacheHorizon{TitleID: titleID, ExpiresAt: expiresAt.Unix()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "title_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at"}),
	}).Create(horizon).Error
}

// News operations

// SaveNewsItem inserts the item (first writer wins) and links it to the title
func (r *Repository) SaveNewsItem(ctx context.Context, titleID uint, item *models.NewsItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(item).Error; err != nil {
			return fmt.Errorf("insert news item %s: %w", item.GID, err)
		}
		link := &models.TitleNewsLink{GID: item.GID, TitleID: titleID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(link).Error; err != nil {
			return fmt.Errorf("link news item %s to %d: %w", item.GID, titleID, err)
		}
		return nil
	})
}

func (r *Repository) GetNewsItem(ctx context.Context, gid string) (*models.NewsItem, error) {
	var item models.NewsItem
	if err := r.db.WithContext(ctx).Where("gid = ?", gid).First(&item).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// ListRecentNews returns items published at or after since, newest first
func (r *Repository) ListRecentNews(ctx context.Context, since time.Time) ([]*models.NewsItem, error) {
	var items []*models.NewsItem
	if err := r.db.WithContext(ctx).
		Where("published_at >= ?", since.Unix()).
		Order("published_at DESC").
		Order("gid ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListTitlesForNews returns every title linked to gid, ordered by id
func (r *Repository) ListTitlesForNews(ctx context.Context, gid string) ([]*models.Title, error) {
	var titles []*models.Title
	if err := r.db.WithContext(ctx).
		Model(&models.Title{}).
		Joins("JOIN title_news_links ON title_news_links.title_id = titles.id").
		Where("title_news_links.gid = ?", gid).
		Order("titles.id ASC").
		Find(&titles).Error; err != nil {
		return nil, err
	}
	return titles, nil
}

// Maintenance

func (r *Repository) Stats(ctx context.Context) (*storage.Stats, error) {
	var s storage.Stats
	db := r.db.WithContext(ctx)
	counts := []struct {
		model interface{}
		where string
		dst   *int64
	}{
		{&models.Title{}, "", &s.Titles},
		{&models.Title{}, "should_fetch = 1", &s.FetchingTitles},
		{&models.NewsItem{}, "", &s.NewsItems},
		{&models.TitleNewsLink{}, "", &s.Links},
		{&models.CacheHorizon{}, "", &s.Horizons},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// Ensure Repository implements storage.Repository
var _ storage.Repository = (*Repository)(nil)
