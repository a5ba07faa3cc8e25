package models

// TitleNewsLink records that a news item was surfaced by a title's feed.
// One row per (item, title); the item body is stored once.
type TitleNewsLink struct {
	GID      string    `gorm:"column:gid;primaryKey" json:"gid"`
	TitleID  uint      `gorm:"primaryKey;autoIncrement:false;index:idx_title_news_links_title_id" json:"title_id"`
	NewsItem *NewsItem `gorm:"foreignKey:GID;references:GID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Title    *Title    `gorm:"foreignKey:TitleID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// TableName pins the table name
func (TitleNewsLink) TableName() string {
	return "title_news_links"
}
