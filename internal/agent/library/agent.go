package library

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/steam-news/internal/config"
	"github.com/steam-news/internal/models"
	"github.com/steam-news/internal/source"
	"github.com/steam-news/internal/source/steam"
	"github.com/steam-news/internal/storage"
	"github.com/steam-news/pkg/logger"
)

// recentWindow is what "played in the last 6 months" means
const recentWindow = 6 * 30 * 24 * time.Hour

// Directory is a name lookup that must be loaded before use
type Directory interface {
	source.NameDirectory
	Load(ctx context.Context) error
	Len() int
}

// Agent manages the set of tracked titles
type Agent struct {
	library    source.LibrarySource
	directory  Directory
	repository storage.Repository
	config     config.LibraryConfig
	log        *logger.Logger
	now        func() time.Time
}

// NewAgent creates a new library agent
func NewAgent(
	library source.LibrarySource,
	directory Directory,
	repository storage.Repository,
	libraryConfig config.LibraryConfig,
	log *logger.Logger,
) *Agent {
	return &Agent{
		library:    library,
		directory:  directory,
		repository: repository,
		config:     libraryConfig,
		log:        log.WithComponent("library"),
		now:        time.Now,
	}
}

// SeedResult summarizes a profile import
type SeedResult struct {
	Owned    int
	Upserted int64
	Enabled  int64
	Disabled int64
	Pruned   int64
}

// SeedFromProfile imports the titles owned by steamID plus the platform
// titles. Existing titles keep their fetch flag unless a library filter is
// configured.
func (a *Agent) SeedFromProfile(ctx context.Context, steamID string) (*SeedResult, error) {
	owned, err := a.library.OwnedTitles(ctx, steamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned titles: %w", err)
	}

	if err := a.directory.Load(ctx); err != nil {
		a.log.Warn().Err(err).Msg("App list unavailable, falling back to numeric names")
	} else {
		a.log.Debug().Int("apps", a.directory.Len()).Msg("App list loaded")
	}

	titles := make([]*models.Title, 0, len(owned)+len(steam.PlatformApps))
	keep := make([]uint, 0, cap(titles))
	for _, o := range owned {
		name, ok := a.directory.Name(ctx, o.AppID)
		if !ok || name == "" {
			name = strconv.FormatUint(uint64(o.AppID), 10)
		}
		titles = append(titles, &models.Title{ID: o.AppID, Name: name, ShouldFetch: true})
		keep = append(keep, o.AppID)
	}
	titles = append(titles, platformTitles()...)
	keep = append(keep, steam.PlatformAppIDs()...)

	result := &SeedResult{Owned: len(owned)}

	result.Upserted, err = a.repository.AddTitles(ctx, titles)
	if err != nil {
		return nil, fmt.Errorf("failed to save titles: %w", err)
	}

	if a.config.Prune {
		result.Pruned, err = a.repository.RemoveTitlesNotIn(ctx, keep)
		if err != nil {
			return nil, fmt.Errorf("failed to prune titles: %w", err)
		}
	}

	if a.config.Last6MonthsOnly || a.config.MinimumPlaytime > 0 {
		enable, disable := a.partition(owned)
		enable = append(enable, steam.PlatformAppIDs()...)
		if result.Enabled, err = a.repository.SetShouldFetch(ctx, enable, true); err != nil {
			return nil, fmt.Errorf("failed to enable titles: %w", err)
		}
		if result.Disabled, err = a.repository.SetShouldFetch(ctx, disable, false); err != nil {
			return nil, fmt.Errorf("failed to disable titles: %w", err)
		}
	}

	a.log.Info().
		Str("steamid", steamID).
		Int("owned", result.Owned).
		Int64("upserted", result.Upserted).
		Int64("enabled", result.Enabled).
		Int64("disabled", result.Disabled).
		Int64("pruned", result.Pruned).
		Msg("Library seeded")

	return result, nil
}

// partition splits owned titles by the configured activity filters
func (a *Agent) partition(owned []source.OwnedTitle) (enable, disable []uint) {
	cutoff := a.now().Add(-recentWindow).Unix()
	for _, o := range owned {
		// platform titles are enabled regardless of activity
		if steam.IsPlatformApp(o.AppID) {
			continue
		}
		ok := true
		if a.config.Last6MonthsOnly && o.LastPlayed < cutoff {
			ok = false
		}
		if a.config.MinimumPlaytime > 0 && o.PlaytimeMinutes < a.config.MinimumPlaytime {
			ok = false
		}
		if ok {
			enable = append(enable, o.AppID)
		} else {
			disable = append(disable, o.AppID)
		}
	}
	return enable, disable
}

func platformTitles() []*models.Title {
	titles := make([]*models.Title, 0, len(steam.PlatformApps))
	for _, id := range steam.PlatformAppIDs() {
		titles = append(titles, &models.Title{ID: id, Name: steam.PlatformApps[id], ShouldFetch: true})
	}
	return titles
}

// AddPlatformTitles tracks the Steam platform news feeds
func (a *Agent) AddPlatformTitles(ctx context.Context) (int64, error) {
	n, err := a.repository.AddTitles(ctx, platformTitles())
	if err != nil {
		return 0, fmt.Errorf("failed to add platform titles: %w", err)
	}
	a.log.Info().Int64("upserted", n).Msg("Platform titles added")
	return n, nil
}

// SetFetching enables or disables fetching for ids
func (a *Agent) SetFetching(ctx context.Context, ids []uint, enabled bool) (int64, error) {
	n, err := a.repository.SetShouldFetch(ctx, ids, enabled)
	if err != nil {
		return 0, err
	}
	a.log.Info().
		Bool("enabled", enabled).
		Int("requested", len(ids)).
		Int64("updated", n).
		Msg("Fetch flags updated")
	return n, nil
}

// List returns tracked titles ordered by name, optionally filtered by a
// substring of the name
func (a *Agent) List(ctx context.Context, like string) ([]*models.Title, error) {
	return a.repository.ListTitles(ctx, storage.TitleFilter{NameLike: like, OrderBy: "name"})
}
