package model

import "time"

// PromptRule 将一个触发词映射到专用的 system prompt，由管理员维护。
type PromptRule struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// TriggerText 全局唯一，匹配时不区分大小写；存储时保留原始写法。
	TriggerText string `gorm:"type:varchar(255);not null" json:"triggerText"`
	// TriggerKey 是 TriggerText 的小写形式，用于唯一约束与查找。
	TriggerKey   string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"-"`
	SystemPrompt string    `gorm:"type:text;not null" json:"systemPrompt"`
	CreatedBy    *uint     `json:"createdBy"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (PromptRule) TableName() string {
	return "system_prompt_rules"
}
