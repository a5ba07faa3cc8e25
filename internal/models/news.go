package models

import (
	"time"
)

// Dialect tells how a news item's body is encoded
type Dialect int

const (
	DialectHTML   Dialect = 0
	DialectBBCode Dialect = 1
)

func (d Dialect) String() string {
	switch d {
	case DialectHTML:
		return "html"
	case DialectBBCode:
		return "bbcode"
	default:
		return "unknown"
	}
}

// NewsItem is a canonical announcement, keyed by the remote gid.
// Rows are inserted once and never updated.
type NewsItem struct {
	GID           string  `gorm:"column:gid;primaryKey" json:"gid"`
	Title         string  `gorm:"not null" json:"title"`
	URL           string  `gorm:"column:url" json:"url"`
	IsExternalURL bool    `gorm:"column:is_external_url" json:"is_external_url"`
	Author        string  `json:"author"`
	Contents      string  `gorm:"type:text" json:"contents"`
	FeedLabel     string  `json:"feedlabel"`
	FeedName      string  `json:"feedname"`
	Dialect       Dialect `gorm:"not null" json:"feed_type"`
	PublishedAt   int64   `gorm:"not null;index:idx_news_items_published_at" json:"date"`
	AppID         uint    `gorm:"column:app_id;not null" json:"appid"` // as reported by the remote
}

// TableName pins the table name
func (NewsItem) TableName() string {
	return "news_items"
}

// Published returns the publication time in UTC
func (n *NewsItem) Published() time.Time {
	return time.Unix(n.PublishedAt, 0).UTC()
}

// IsOlderThan reports whether the item was published before now-window
func (n *NewsItem) IsOlderThan(window time.Duration, now time.Time) bool {
	return n.Published().Before(now.Add(-window))
}

// NewsBatch is one successful fetch of a title's recent news
type NewsBatch struct {
	TitleID   uint
	Items     []*NewsItem
	ExpiresAt time.Time // from the response's caching header; now when absent
}
