package models

import (
	"time"
)

// Title represents a tracked catalogue entry (a game or a platform app)
type Title struct {
	ID          uint   `gorm:"primaryKey;autoIncrement:false" json:"appid"`
	Name        string `gorm:"not null;index" json:"name"`
	ShouldFetch bool   `gorm:"not null" json:"should_fetch"`
}

// TableName pins the table name
func (Title) TableName() string {
	return "titles"
}

// CacheHorizon holds the unix time at or after which a title may be refetched.
// There is at most one row per title; a missing row means the title is due.
type CacheHorizon struct {
	TitleID   uint   `gorm:"primaryKey;autoIncrement:false" json:"title_id"`
	ExpiresAt int64  `gorm:"not null" json:"expires_at"`
	Title     *Title `gorm:"foreignKey:TitleID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// TableName pins the table name
func (CacheHorizon) TableName() string {
	return "cache_horizons"
}

// Expires returns the horizon as a time
func (h *CacheHorizon) Expires() time.Time {
	return time.Unix(h.ExpiresAt, 0).UTC()
}

// IsDue reports whether a refetch is permitted at now
func (h *CacheHorizon) IsDue(now time.Time) bool {
	return h.ExpiresAt <= now.Unix()
}
