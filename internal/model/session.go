package model

import "time"

// Session 是一组共享同一 session_id 的消息。
// ActivePromptRuleID 记录当前会话生效的 prompt 规则，触发词命中时写入。
type Session struct {
	SessionID          string    `gorm:"type:varchar(36);primaryKey" json:"sessionId"`
	UserID             string    `gorm:"type:varchar(255);not null;index" json:"userId"`
	ActivePromptRuleID *uint     `gorm:"index" json:"activePromptRuleId"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Session) TableName() string {
	return "chat_sessions"
}
