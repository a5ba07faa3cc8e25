package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steam-news/internal/config"
	"github.com/steam-news/internal/models"
	"github.com/steam-news/internal/source"
	"github.com/steam-news/internal/storage"
	"github.com/steam-news/pkg/logger"
)

// Outcome is what happened to one title during a refresh
type Outcome int

const (
	OutcomeSkipped Outcome = iota // should_fetch is off
	OutcomeCached                 // horizon not reached, no request made
	OutcomeFetched
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCached:
		return "cached"
	case OutcomeFetched:
		return "fetched"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TitleResult is the outcome of refreshing one title
type TitleResult struct {
	TitleID   uint
	Outcome   Outcome
	Current   int       // items within retention, fetched outcome only
	ExpiresAt time.Time // new horizon, fetched outcome only
	Err       error
}

// RunResult contains the results of a batch run
type RunResult struct {
	RunID        string
	Cached       int
	Fetched      int
	Failed       int
	Skipped      int
	CurrentItems int
	Errors       []error
	Duration     time.Duration
}

// Agent keeps the store's news current, one title at a time
type Agent struct {
	source     source.NewsSource
	repository storage.Repository
	ingester   *Ingester
	config     config.FetchConfig
	feedFilter string
	log        *logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAgent creates a new fetch agent
func NewAgent(
	src source.NewsSource,
	repository storage.Repository,
	fetchConfig config.FetchConfig,
	feedFilter string,
	log *logger.Logger,
) *Agent {
	a := &Agent{
		source:     src,
		repository: repository,
		config:     fetchConfig,
		feedFilter: feedFilter,
		log:        log.WithComponent("fetch"),
		now:        time.Now,
		sleep:      sleepContext,
	}
	a.ingester = NewIngester(fetchConfig.Retention, func() time.Time { return a.now() })
	return a
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsDue reports whether titleID may be fetched now. A title that was never
// fetched is always due.
func (a *Agent) IsDue(ctx context.Context, titleID uint) (bool, error) {
	horizon, err := a.repository.GetCacheHorizon(ctx, titleID)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return horizon.IsDue(a.now()), nil
}

// Refresh fetches one title if it is enabled and due. On success the new
// horizon and the batch are written in one transaction; on failure nothing
// is written and the previous horizon stands.
func (a *Agent) Refresh(ctx context.Context, title *models.Title) TitleResult {
	res := TitleResult{TitleID: title.ID}

	if !title.ShouldFetch {
		res.Outcome = OutcomeSkipped
		return res
	}

	due, err := a.IsDue(ctx, title.ID)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("cache check for %d: %w", title.ID, err)
		return res
	}
	if !due {
		res.Outcome = OutcomeCached
		return res
	}

	batch, err := a.source.FetchRecentNews(ctx, title.ID, a.feedFilter)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	var current int
	err = a.repository.Transaction(ctx, func(tx storage.Repository) error {
		if err := tx.SetCacheHorizon(ctx, title.ID, batch.ExpiresAt); err != nil {
			return fmt.Errorf("set cache horizon: %w", err)
		}
		n, err := a.ingester.Ingest(ctx, tx, title.ID, batch.Items)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		current = n
		return nil
	})
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("store news for %d: %w", title.ID, err)
		return res
	}

	res.Outcome = OutcomeFetched
	res.Current = current
	res.ExpiresAt = batch.ExpiresAt
	return res
}

// Run refreshes every known title sequentially. Per-title failures are
// counted and collected, never returned.
func (a *Agent) Run(ctx context.Context) (*RunResult, error) {
	titles, err := a.repository.ListTitles(ctx, storage.DefaultTitleFilter())
	if err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}
	return a.RunTitles(ctx, titles)
}

// RunTitles refreshes the given titles in order
func (a *Agent) RunTitles(ctx context.Context, titles []*models.Title) (*RunResult, error) {
	startTime := time.Now()
	result := &RunResult{RunID: uuid.NewString()}
	log := a.log.WithRunID(result.RunID)

	log.Info().Str("source", a.source.Name()).Int("titles", len(titles)).Msg("Starting news fetch")

	for idx, title := range titles {
		tlog := log.WithTitle(title.ID, title.Name)
		res := a.Refresh(ctx, title)

		var delay time.Duration
		switch res.Outcome {
		case OutcomeSkipped:
			result.Skipped++
			tlog.Info().Int("idx", idx+1).Int("total", len(titles)).Msg("Skipped, fetching disabled")

		case OutcomeCached:
			result.Cached++
			tlog.Info().Int("idx", idx+1).Int("total", len(titles)).Msg("Cache hit")

		case OutcomeFetched:
			result.Fetched++
			result.CurrentItems += res.Current
			delay = a.config.SuccessDelay
			tlog.Info().
				Int("idx", idx+1).
				Int("total", len(titles)).
				Int("current", res.Current).
				Time("expires", res.ExpiresAt).
				Msg("Fetched news")

		case OutcomeFailed:
			result.Failed++
			result.Errors = append(result.Errors, res.Err)
			delay = a.config.FailureDelay
			tlog.Error().
				Err(res.Err).
				Int("idx", idx+1).
				Int("total", len(titles)).
				Msg("Fetch failed")
		}

		if res.Outcome == OutcomeFetched || res.Outcome == OutcomeFailed {
			if err := a.sleep(ctx, delay); err != nil {
				result.Duration = time.Since(startTime)
				return result, err
			}
		}
	}

	result.Duration = time.Since(startTime)

	log.Info().
		Int("cached", result.Cached).
		Int("fetched", result.Fetched).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Int("current_items", result.CurrentItems).
		Dur("duration", result.Duration).
		Msg("News fetch completed")

	return result, nil
}
