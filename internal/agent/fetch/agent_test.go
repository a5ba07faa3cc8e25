package fetch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/steam-news/internal/config"
	"github.com/steam-news/internal/models"
	"github.com/steam-news/internal/storage"
	"github.com/steam-news/internal/storage/sqlite"
	"github.com/steam-news/pkg/logger"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	batches map[uint]*models.NewsBatch
	errs    map[uint]error
	calls   map[uint]int
	filters []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		batches: map[uint]*models.NewsBatch{},
		errs:    map[uint]error{},
		calls:   map[uint]int{},
	}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchRecentNews(_ context.Context, titleID uint, filter string) (*models.NewsBatch, error) {
	f.calls[titleID]++
	f.filters = append(f.filters, filter)
	if err := f.errs[titleID]; err != nil {
		return nil, err
	}
	if b, ok := f.batches[titleID]; ok {
		// hand out copies so stored rows never alias test fixtures
		items := make([]*models.NewsItem, len(b.Items))
		for i, it := range b.Items {
			cp := *it
			items[i] = &cp
		}
		return &models.NewsBatch{TitleID: titleID, Items: items, ExpiresAt: b.ExpiresAt}, nil
	}
	return &models.NewsBatch{TitleID: titleID, ExpiresAt: testNow}, nil
}

type harness struct {
	agent  *Agent
	repo   *sqlite.Repository
	src    *fakeSource
	sleeps []time.Duration
	now    time.Time
}

func newHarness(t *testing.T, titles ...*models.Title) *harness {
	t.Helper()
	repo, err := sqlite.New(filepath.Join(t.TempDir(), "news.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { repo.Close() })

	if len(titles) > 0 {
		if _, err := repo.AddTitles(context.Background(), titles); err != nil {
			t.Fatal(err)
		}
	}

	h := &harness{repo: repo, src: newFakeSource(), now: testNow}
	h.agent = NewAgent(h.src, repo, config.FetchConfig{
		SuccessDelay: 250 * time.Millisecond,
		FailureDelay: time.Second,
		Retention:    DefaultRetention,
	}, "steam_community_announcements", logger.Nop())
	h.agent.now = func() time.Time { return h.now }
	h.agent.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	return h
}

func item(gid, title string, age time.Duration) *models.NewsItem {
	return &models.NewsItem{
		GID:         gid,
		Title:       title,
		Contents:    "body of " + gid,
		PublishedAt: testNow.Add(-age).Unix(),
	}
}

func TestIsDueLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &models.Title{ID: 1, Name: "Alpha", ShouldFetch: true})
	h.src.batches[1] = &models.NewsBatch{ExpiresAt: testNow.Add(time.Hour)}

	due, err := h.agent.IsDue(ctx, 1)
	if err != nil || !due {
		t.Fatalf("never fetched title: due=%v err=%v", due, err)
	}

	title, _ := h.repo.GetTitle(ctx, 1)
	if res := h.agent.Refresh(ctx, title); res.Outcome != OutcomeFetched {
		t.Fatalf("outcome = %s, err = %v", res.Outcome, res.Err)
	}

	if due, _ := h.agent.IsDue(ctx, 1); due {
		t.Error("title due right after a fetch with a positive window")
	}
	if res := h.agent.Refresh(ctx, title); res.Outcome != OutcomeCached {
		t.Errorf("second refresh = %s, want cached", res.Outcome)
	}
	if h.src.calls[1] != 1 {
		t.Errorf("source called %d times, want 1", h.src.calls[1])
	}

	h.now = testNow.Add(time.Hour)
	if due, _ := h.agent.IsDue(ctx, 1); !due {
		t.Error("title not due once now reaches the horizon")
	}
}

func TestMissingExpiresIsImmediatelyDue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &models.Title{ID: 1, Name: "Alpha", ShouldFetch: true})

	title, _ := h.repo.GetTitle(ctx, 1)
	if res := h.agent.Refresh(ctx, title); res.Outcome != OutcomeFetched {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if due, _ := h.agent.IsDue(ctx, 1); !due {
		t.Error("horizon of now should leave the title due")
	}
}

func TestRefreshSkipsDisabled(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &models.Title{ID: 1, Name: "Alpha", ShouldFetch: false})

	title, _ := h.repo.GetTitle(ctx, 1)
	if res := h.agent.Refresh(ctx, title); res.Outcome != OutcomeSkipped {
		t.Errorf("outcome = %s, want skipped", res.Outcome)
	}
	if h.src.calls[1] != 0 {
		t.Error("disabled title was fetched")
	}
}

func TestRetentionAndIdempotence(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		&models.Title{ID: 1, Name: "Alpha", ShouldFetch: true},
		&models.Title{ID: 2, Name: "Beta", ShouldFetch: true},
	)
	h.src.batches[1] = &models.NewsBatch{Items: []*models.NewsItem{
		item("fresh", "Alpha Update", time.Hour),
		item("old", "Ancient", 31*24*time.Hour),
	}}
	shared := item("fresh", "Different title", time.Hour)
	shared.Contents = "other body"
	h.src.batches[2] = &models.NewsBatch{Items: []*models.NewsItem{shared}}

	for i := 0; i < 2; i++ {
		res, err := h.agent.Run(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if res.Fetched != 2 || res.CurrentItems != 2 {
			t.Errorf("run %d: fetched=%d current=%d", i, res.Fetched, res.CurrentItems)
		}
	}

	if _, err := h.repo.GetNewsItem(ctx, "old"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("item outside retention was stored: %v", err)
	}
	stored, err := h.repo.GetNewsItem(ctx, "fresh")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Title != "Alpha Update" || stored.Contents != "body of fresh" {
		t.Errorf("first writer did not win: %+v", stored)
	}
	stats, _ := h.repo.Stats(ctx)
	if stats.NewsItems != 1 || stats.Links != 2 {
		t.Errorf("items=%d links=%d", stats.NewsItems, stats.Links)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		&models.Title{ID: 1, Name: "Alpha", ShouldFetch: true},
		&models.Title{ID: 2, Name: "Beta", ShouldFetch: true},
		&models.Title{ID: 3, Name: "Gamma", ShouldFetch: false},
	)
	h.src.errs[1] = errors.New("503 Service Unavailable")
	h.src.batches[2] = &models.NewsBatch{
		Items:     []*models.NewsItem{item("b1", "Beta news", time.Minute)},
		ExpiresAt: testNow.Add(time.Hour),
	}

	res, err := h.agent.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || res.Fetched != 1 || res.Skipped != 1 || res.Cached != 0 {
		t.Errorf("counts = %+v", res)
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %v", res.Errors)
	}
	if res.RunID == "" {
		t.Error("missing run id")
	}

	if _, err := h.repo.GetCacheHorizon(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("failed fetch wrote a horizon: %v", err)
	}
	if _, err := h.repo.GetCacheHorizon(ctx, 2); err != nil {
		t.Errorf("successful fetch has no horizon: %v", err)
	}

	want := []time.Duration{time.Second, 250 * time.Millisecond}
	if len(h.sleeps) != len(want) || h.sleeps[0] != want[0] || h.sleeps[1] != want[1] {
		t.Errorf("sleeps = %v, want %v", h.sleeps, want)
	}
	for _, f := range h.src.filters {
		if f != "steam_community_announcements" {
			t.Errorf("filter = %q", f)
		}
	}

	// the failed title is retried on the next run, the fetched one is cached
	res, err = h.agent.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || res.Cached != 1 || h.src.calls[1] != 2 {
		t.Errorf("second run = %+v, calls = %v", res, h.src.calls)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t,
		&models.Title{ID: 1, Name: "Alpha", ShouldFetch: true},
		&models.Title{ID: 2, Name: "Beta", ShouldFetch: true},
	)
	ctx, cancel := context.WithCancel(context.Background())
	h.agent.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	res, err := h.agent.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if res.Fetched != 1 || h.src.calls[2] != 0 {
		t.Errorf("run continued after cancel: %+v", res)
	}
}

func TestIngesterCountsCurrentItems(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &models.Title{ID: 7, Name: "Seven", ShouldFetch: true})
	in := NewIngester(0, func() time.Time { return testNow })

	items := []*models.NewsItem{
		item("a", "a", 0),
		item("b", "b", 29*24*time.Hour),
		item("c", "c", 30*24*time.Hour+time.Second),
	}
	for i := 0; i < 2; i++ {
		n, err := in.Ingest(ctx, h.repo, 7, items)
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("pass %d: current = %d, want 2", i, n)
		}
	}
}
