package model

import "time"

// Language 是用户的回复语言偏好。
type Language string

const (
	LanguageZH Language = "zh"
	LanguageEN Language = "en"
)

// SupportedLanguages 按展示顺序列出可选语言。
var SupportedLanguages = []Language{LanguageZH, LanguageEN}

// ParseLanguage 将用户输入转换为 Language，不支持时 ok 为 false。
func ParseLanguage(code string) (Language, bool) {
	for _, l := range SupportedLanguages {
		if string(l) == code {
			return l, true
		}
	}
	return "", false
}

// UserProfile 对应每个 LINE 用户的一条记录，首次接触时创建。
type UserProfile struct {
	UserID    string    `gorm:"type:varchar(255);primaryKey" json:"userId"`
	Language  Language  `gorm:"type:varchar(8);not null" json:"language"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
