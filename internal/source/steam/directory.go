package steam

import (
	"context"
	"sync"

	"github.com/steam-news/internal/source"
)

// AppLister downloads the id to name catalogue
type AppLister interface {
	AppList(ctx context.Context) (map[uint]string, error)
}

// AppDirectory is an explicitly loaded id to name lookup.
//
// Nothing is fetched until Load or Refresh is called. Load is a no-op once
// the directory holds data; Refresh always downloads. Name never triggers
// network access, so callers decide when the catalogue is (re)loaded.
type AppDirectory struct {
	lister AppLister

	mu    sync.RWMutex
	names map[uint]string
}

// NewAppDirectory creates an empty directory backed by lister
func NewAppDirectory(lister AppLister) *AppDirectory {
	return &AppDirectory{lister: lister}
}

// Load downloads the catalogue unless it is already loaded
func (d *AppDirectory) Load(ctx context.Context) error {
	d.mu.RLock()
	loaded := d.names != nil
	d.mu.RUnlock()
	if loaded {
		return nil
	}
	return d.Refresh(ctx)
}

// Refresh replaces the catalogue with a fresh download
func (d *AppDirectory) Refresh(ctx context.Context) error {
	names, err := d.lister.AppList(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.names = names
	d.mu.Unlock()
	return nil
}

// Name returns the display name for appID
func (d *AppDirectory) Name(_ context.Context, appID uint) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.names[appID]
	return name, ok
}

// Len returns the number of known apps
func (d *AppDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.names)
}

// Ensure AppDirectory implements source.NameDirectory
var _ source.NameDirectory = (*AppDirectory)(nil)
