package model

import "time"

// AdminUser 是管理后台账号，用于维护 prompt 规则与跳过关键词。
type AdminUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (AdminUser) TableName() string {
	return "admin_users"
}

// AllModels 返回需要迁移的全部模型。
func AllModels() []interface{} {
	return []interface{}{
		&AdminUser{},
		&PromptRule{},
		&SkipKeyword{},
		&Session{},
		&Turn{},
		&UserProfile{},
	}
}
