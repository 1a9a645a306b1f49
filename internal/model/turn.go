// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Role 是对话消息的角色，存储层只接受 user 与 assistant。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem 只出现在发往模型的请求中，不会被持久化。
	RoleSystem Role = "system"
)

// Valid 报告 r 是否可以被写入历史。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn 对应 'messages' 表中的一条消息，创建后不可修改。
type Turn struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UserID    string `gorm:"type:varchar(255);not null;index:idx_turn_user_session,priority:1;index:idx_turn_user_created,priority:1" json:"userId"`
	Role      Role   `gorm:"type:varchar(16);not null" json:"role"`
	Content   string `gorm:"type:text;not null" json:"content"`
	SessionID string `gorm:"type:varchar(36);not null;index:idx_turn_user_session,priority:2" json:"sessionId"`
	// PromptRuleID 是弱引用，规则被删除后置为 NULL。
	PromptRuleID *uint `gorm:"index" json:"promptRuleId"`
	// EventID 是触发该用户消息的 webhook 事件，assistant 消息为 NULL。
	EventID   *string   `gorm:"type:varchar(64);uniqueIndex" json:"eventId,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_turn_user_created,priority:2" json:"createdAt"`
}

func (Turn) TableName() string {
	return "messages"
}

// HistoryEntry 是去掉所有元数据的 {role, content}，可直接提交给模型。
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
