package steam

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/steam-news/internal/source"
	"github.com/steam-news/pkg/ratelimit"
)

const (
	ownedGamesPath = "/IPlayerService/GetOwnedGames/v0001/"
	appListPath    = "/ISteamApps/GetAppList/v2/"
)

// ErrNoAPIKey is returned when an endpoint needing a key is called without one
var ErrNoAPIKey = errors.New("steam web api key not configured")

type ownedGamesResponse struct {
	Response struct {
		GameCount int `json:"game_count"`
		Games     []struct {
			AppID           uint  `json:"appid"`
			PlaytimeForever int   `json:"playtime_forever"`
			RTimeLastPlayed int64 `json:"rtime_last_played"`
		} `json:"games"`
	} `json:"response"`
}

type appListResponse struct {
	AppList struct {
		Apps []struct {
			AppID uint   `json:"appid"`
			Name  string `json:"name"`
		} `json:"apps"`
	} `json:"applist"`
}

// OwnedTitles lists the games owned by a public profile
func (c *Client) OwnedTitles(ctx context.Context, steamID string) ([]source.OwnedTitle, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("steamid", steamID)
	query.Set("format", "json")

	var resp ownedGamesResponse
	if _, err := c.get(ctx, ratelimit.LimiterLibrary, ownedGamesPath, query, &resp); err != nil {
		return nil, fmt.Errorf("owned games for %s: %w", steamID, err)
	}

	owned := make([]source.OwnedTitle, 0, len(resp.Response.Games))
	for _, g := range resp.Response.Games {
		owned = append(owned, source.OwnedTitle{
			AppID:           g.AppID,
			PlaytimeMinutes: g.PlaytimeForever,
			LastPlayed:      g.RTimeLastPlayed,
		})
	}

	c.log.Info().Str("steamid", steamID).Int("count", len(owned)).Msg("Found owned games")
	return owned, nil
}

// AppList downloads the full id to name catalogue
func (c *Client) AppList(ctx context.Context) (map[uint]string, error) {
	var resp appListResponse
	if _, err := c.get(ctx, ratelimit.LimiterLibrary, appListPath, nil, &resp); err != nil {
		return nil, fmt.Errorf("app list: %w", err)
	}

	apps := make(map[uint]string, len(resp.AppList.Apps))
	for _, app := range resp.AppList.Apps {
		apps[app.AppID] = app.Name
	}
	return apps, nil
}

// Ensure Client implements source.LibrarySource
var _ source.LibrarySource = (*Client)(nil)
