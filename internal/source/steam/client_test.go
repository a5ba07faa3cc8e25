package steam

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/steam-news/internal/config"
	"github.com/steam-news/internal/models"
	"github.com/steam-news/pkg/logger"
)

const newsBody = `{"appnews":{"appid":440,"newsitems":[
 {"gid":"100","title":"Patch","url":"https://example.com/p","is_external_url":false,"author":"dev",
  "contents":"[b]hi[/b]","feedlabel":"Community Announcements","date":1700000000,
  "feedname":"steam_community_announcements","feed_type":1,"appid":440},
 {"gid":"101","title":"Blog","url":"https://example.com/b","is_external_url":true,"author":"",
  "contents":"<p>x</p>","feedlabel":"","date":1700000100,"feedname":"pcgamer","feed_type":0,"appid":440},
 {"gid":"","title":"no gid","date":1}
]}}`

func newTestClient(t *testing.T, srv *httptest.Server, key string) *Client {
	t.Helper()
	c := NewClient(config.SteamConfig{
		APIKey:     key,
		APIBaseURL: srv.URL,
		NewsCount:  7,
		Timeout:    5 * time.Second,
	}, logger.Nop())
	return c
}

func TestFetchRecentNews(t *testing.T) {
	expires := time.Date(2024, 4, 15, 17, 20, 14, 0, time.UTC)
	var gotQuery map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != newsPath {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Expires", expires.Format(http.TimeFormat))
		w.Write([]byte(newsBody))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	batch, err := c.FetchRecentNews(context.Background(), 440, "steam_community_announcements")
	if err != nil {
		t.Fatalf("FetchRecentNews: %v", err)
	}

	want := map[string]string{
		"format": "json", "maxlength": "0", "count": "7", "appid": "440",
		"feeds": "steam_community_announcements",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}

	if !batch.ExpiresAt.Equal(expires) {
		t.Errorf("expires = %s, want %s", batch.ExpiresAt, expires)
	}
	if len(batch.Items) != 2 {
		t.Fatalf("items = %d, want 2 (gid-less item dropped)", len(batch.Items))
	}
	if batch.Items[0].Dialect != models.DialectBBCode || batch.Items[1].Dialect != models.DialectHTML {
		t.Errorf("dialects = %s, %s", batch.Items[0].Dialect, batch.Items[1].Dialect)
	}
	if batch.Items[1].FeedName != "pcgamer" || !batch.Items[1].IsExternalURL {
		t.Errorf("item fields not mapped: %+v", batch.Items[1])
	}
}

func TestFetchRecentNewsWithoutFilterOrExpires(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["feeds"]; ok {
			t.Error("feeds parameter sent without a filter")
		}
		w.Write([]byte(`{"appnews":{"appid":1,"newsitems":[]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	c.now = func() time.Time { return now }

	batch, err := c.FetchRecentNews(context.Background(), 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if !batch.ExpiresAt.Equal(now) {
		t.Errorf("expires = %s, want now (%s)", batch.ExpiresAt, now)
	}
}

func TestFetchRecentNewsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	_, err := c.FetchRecentNews(context.Background(), 1, "")
	if !errors.Is(err, ErrStatus) {
		t.Errorf("err = %v, want ErrStatus", err)
	}
}

func TestOwnedTitles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" || r.URL.Query().Get("steamid") != "7656" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"response":{"game_count":2,"games":[
			{"appid":10,"playtime_forever":120,"rtime_last_played":1690000000},
			{"appid":20,"playtime_forever":0,"rtime_last_played":0}]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "secret")
	owned, err := c.OwnedTitles(context.Background(), "7656")
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 2 || owned[0].AppID != 10 || owned[0].PlaytimeMinutes != 120 || owned[1].LastPlayed != 0 {
		t.Errorf("owned = %+v", owned)
	}
}

func TestOwnedTitlesRequiresKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a key")
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	if _, err := c.OwnedTitles(context.Background(), "1"); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestAppDirectory(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"applist":{"apps":[{"appid":10,"name":"Counter-Strike"},{"appid":20,"name":"TFC"}]}}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	dir := NewAppDirectory(newTestClient(t, srv, ""))

	if _, ok := dir.Name(ctx, 10); ok {
		t.Error("name resolved before Load")
	}
	if err := dir.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := dir.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("Load downloaded %d times, want 1", calls)
	}
	if name, ok := dir.Name(ctx, 10); !ok || name != "Counter-Strike" {
		t.Errorf("Name(10) = %q, %v", name, ok)
	}

	if err := dir.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("Refresh did not download, calls = %d", calls)
	}
	if dir.Len() != 2 {
		t.Errorf("len = %d", dir.Len())
	}
}

func TestPlatformAppIDsSorted(t *testing.T) {
	ids := PlatformAppIDs()
	if len(ids) != len(PlatformApps) {
		t.Fatalf("got %d ids", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("ids not ascending: %v", ids)
		}
	}
	if !IsPlatformApp(593110) || IsPlatformApp(440) {
		t.Error("IsPlatformApp mismatch")
	}
}
