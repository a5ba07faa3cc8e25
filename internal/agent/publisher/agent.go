package publisher

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steam-news/internal/bbcode"
	"github.com/steam-news/internal/config"
	"github.com/steam-news/internal/feed"
	"github.com/steam-news/internal/models"
	"github.com/steam-news/internal/storage"
	"github.com/steam-news/pkg/logger"
)

const (
	multiplePrefix     = "[Multiple] "
	unknownTitleName   = "Unknown?"
	unknownSource      = "Unknown Source"
	communityBlogFeed  = "steam_community_blog"
	communityBlogLabel = "Steam Community Blog"
)

// Agent assembles the merged feed from stored news and writes it
type Agent struct {
	repository storage.Repository
	writer     *feed.Writer
	config     config.PublishingConfig
	storeURL   string
	retention  time.Duration
	log        *logger.Logger
	now        func() time.Time
}

// NewAgent creates a new publisher agent
func NewAgent(
	repository storage.Repository,
	writer *feed.Writer,
	publishConfig config.PublishingConfig,
	storeURL string,
	retention time.Duration,
	log *logger.Logger,
) *Agent {
	return &Agent{
		repository: repository,
		writer:     writer,
		config:     publishConfig,
		storeURL:   strings.TrimRight(storeURL, "/"),
		retention:  retention,
		log:        log.WithComponent("publisher"),
		now:        time.Now,
	}
}

// PublishResult contains the result of a publish run
type PublishResult struct {
	RunID    string
	Entries  int
	Skipped  int
	Files    *feed.WriteResult
	Duration time.Duration
}

// Assemble builds the feed document from items inside the retention window
func (a *Agent) Assemble(ctx context.Context) (*feed.Document, int, error) {
	now := a.now()
	items, err := a.repository.ListRecentNews(ctx, now.Add(-a.retention))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recent news: %w", err)
	}

	skipped := 0
	entries := make([]*feed.Entry, 0, len(items))
	for _, item := range items {
		titles, err := a.repository.ListTitlesForNews(ctx, item.GID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to resolve titles for %s: %w", item.GID, err)
		}
		if a.config.SkipDisabledTitles && len(titles) > 0 && allDisabled(titles) {
			skipped++
			continue
		}
		entries = append(entries, a.entry(item, titles))
	}

	doc, err := feed.NewDocument(feed.Meta{
		Title:       a.config.Title,
		Link:        a.config.Link,
		Description: a.config.Description,
		TTL:         a.config.TTL,
	}, now, entries)
	if err != nil {
		return nil, skipped, err
	}
	return doc, skipped, nil
}

// Publish assembles and writes the feed, verifying the output when configured
func (a *Agent) Publish(ctx context.Context) (*PublishResult, error) {
	startTime := time.Now()
	result := &PublishResult{RunID: uuid.NewString()}
	log := a.log.WithRunID(result.RunID)

	log.Info().Msg("Generating feed")

	doc, skipped, err := a.Assemble(ctx)
	result.Skipped = skipped
	if err != nil {
		return result, err
	}
	result.Entries = len(doc.Entries)

	files, err := a.writer.Write(doc)
	if err != nil {
		return result, fmt.Errorf("failed to write feed: %w", err)
	}
	result.Files = files

	if a.config.Verify {
		for _, path := range files.Paths() {
			if _, err := feed.Verify(path, len(doc.Entries)); err != nil {
				return result, fmt.Errorf("feed verification failed: %w", err)
			}
		}
	}

	result.Duration = time.Since(startTime)

	log.Info().
		Int("entries", result.Entries).
		Int("skipped", result.Skipped).
		Time("last_content", doc.LastContent).
		Dur("duration", result.Duration).
		Msg("Published")

	return result, nil
}

func allDisabled(titles []*models.Title) bool {
	for _, t := range titles {
		if t.ShouldFetch {
			return false
		}
	}
	return true
}

func (a *Agent) entry(item *models.NewsItem, titles []*models.Title) *feed.Entry {
	if len(titles) == 0 {
		titles = []*models.Title{{ID: 0, Name: unknownTitleName}}
	}

	label := SourceLabel(item)
	e := &feed.Entry{
		Title:       DisplayTitle(item.Title, titles),
		Link:        item.URL,
		Description: a.attribution(label, titles) + bbcode.Render(item.Dialect, item.Contents),
		Author:      item.Author,
		GUID:        item.GID,
		Published:   item.Published(),
		Category:    label,
	}
	if len(titles) == 1 {
		e.Source = &feed.SourceRef{Name: titles[0].Name, URL: a.titleURL(titles[0].ID)}
	}
	return e
}

// DisplayTitle prefixes the item title with where it came from: a marker
// for several titles, or the one title's name unless already present.
func DisplayTitle(itemTitle string, titles []*models.Title) string {
	switch {
	case len(titles) > 1:
		return multiplePrefix + itemTitle
	case len(titles) == 1 && !strings.Contains(itemTitle, titles[0].Name):
		return "[" + titles[0].Name + "] " + itemTitle
	default:
		return itemTitle
	}
}

// SourceLabel is the human readable origin of an item
func SourceLabel(item *models.NewsItem) string {
	if item.FeedLabel != "" {
		return item.FeedLabel
	}
	if item.FeedName == communityBlogFeed {
		return communityBlogLabel
	}
	if item.FeedName != "" {
		return item.FeedName
	}
	return unknownSource
}

func (a *Agent) titleURL(id uint) string {
	return fmt.Sprintf("%s/app/%d/", a.storeURL, id)
}

func (a *Agent) attribution(label string, titles []*models.Title) string {
	links := make([]string, 0, len(titles))
	for _, t := range titles {
		links = append(links, fmt.Sprintf(`<a href="%s">%s</a>`,
			html.EscapeString(a.titleURL(t.ID)), html.EscapeString(t.Name)))
	}
	return fmt.Sprintf("<p><i>Via <b>%s</b> for %s</i></p>\n",
		html.EscapeString(label), strings.Join(links, ", "))
}
