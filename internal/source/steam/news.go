package steam

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/steam-news/internal/models"
	"github.com/steam-news/internal/source"
	"github.com/steam-news/pkg/ratelimit"
)

const newsPath = "/ISteamNews/GetNewsForApp/v0002/"

// feed_type value marking a BBCode body
const feedTypeBBCode = 1

type newsResponse struct {
	AppNews struct {
		AppID     uint       `json:"appid"`
		NewsItems []newsItem `json:"newsitems"`
	} `json:"appnews"`
}

type newsItem struct {
	GID           string   `json:"gid"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	IsExternalURL bool     `json:"is_external_url"`
	Author        string   `json:"author"`
	Contents      string   `json:"contents"`
	FeedLabel     string   `json:"feedlabel"`
	Date          int64    `json:"date"`
	FeedName      string   `json:"feedname"`
	FeedType      int      `json:"feed_type"`
	AppID         uint     `json:"appid"`
	Tags          []string `json:"tags"`
}

func (n newsItem) toModel() *models.NewsItem {
	dialect := models.DialectHTML
	if n.FeedType == feedTypeBBCode {
		dialect = models.DialectBBCode
	}
	return &models.NewsItem{
		GID:           n.GID,
		Title:         n.Title,
		URL:           n.URL,
		IsExternalURL: n.IsExternalURL,
		Author:        n.Author,
		Contents:      n.Contents,
		FeedLabel:     n.FeedLabel,
		FeedName:      n.FeedName,
		Dialect:       dialect,
		PublishedAt:   n.Date,
		AppID:         n.AppID,
	}
}

// FetchRecentNews fetches the latest news for one title.
// The batch's horizon comes from the Expires header; without one the
// response is treated as already stale.
func (c *Client) FetchRecentNews(ctx context.Context, titleID uint, feedFilter string) (*models.NewsBatch, error) {
	query := url.Values{}
	query.Set("format", "json")
	query.Set("maxlength", "0")
	query.Set("count", strconv.Itoa(c.newsCount))
	query.Set("appid", strconv.FormatUint(uint64(titleID), 10))
	if feedFilter != "" {
		query.Set("feeds", feedFilter)
	}

	var resp newsResponse
	header, err := c.get(ctx, ratelimit.LimiterNews, newsPath, query, &resp)
	if err != nil {
		return nil, fmt.Errorf("news for %d: %w", titleID, err)
	}

	batch := &models.NewsBatch{
		TitleID:   titleID,
		Items:     make([]*models.NewsItem, 0, len(resp.AppNews.NewsItems)),
		ExpiresAt: c.expiresAt(header),
	}
	for _, item := range resp.AppNews.NewsItems {
		if item.GID == "" {
			continue
		}
		batch.Items = append(batch.Items, item.toModel())
	}

	c.log.Debug().
		Uint("appid", titleID).
		Int("count", len(batch.Items)).
		Time("expires", batch.ExpiresAt).
		Msg("Fetched news")

	return batch, nil
}

func (c *Client) expiresAt(header http.Header) time.Time {
	if exp := header.Get("Expires"); exp != "" {
		if t, err := http.ParseTime(exp); err == nil {
			return t.UTC()
		}
		c.log.Warn().Str("expires", exp).Msg("Unparseable Expires header, treating as stale")
	}
	return c.now().UTC()
}

// Ensure Client implements source.NewsSource
var _ source.NewsSource = (*Client)(nil)
