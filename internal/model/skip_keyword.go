package model

import "time"

// SkipKeyword 命中时整条消息被静默丢弃。
type SkipKeyword struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Text      string    `gorm:"type:varchar(255);not null" json:"text"`
	TextKey   string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"-"`
	CreatedBy *uint     `json:"createdBy"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (SkipKeyword) TableName() string {
	return "skip_keywords"
}
