package service

import (
	"context"
	"errors"

	"linebot-relay-go/pkg/log"
)

// SeedPromptRule 是导入文件中的一条 prompt 规则。
type SeedPromptRule struct {
	TriggerText  string `mapstructure:"trigger_text"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// SeedData 是管理员维护数据的初始导入内容。
type SeedData struct {
	PromptRules  []SeedPromptRule `mapstructure:"prompt_rules"`
	SkipKeywords []string         `mapstructure:"skip_keywords"`
}

// SeedReport 统计导入结果。
type SeedReport struct {
	RulesCreated    int
	KeywordsCreated int
	Skipped         int
}

// Seed 导入规则与关键词，已存在的条目跳过，可重复执行。
func Seed(ctx context.Context, admin AdminService, data SeedData) (SeedReport, error) {
	var report SeedReport
	for _, r := range data.PromptRules {
		_, err := admin.CreatePromptRule(ctx, r.TriggerText, r.SystemPrompt, 0)
		switch {
		case err == nil:
			report.RulesCreated++
		case errors.Is(err, ErrPromptRuleExists):
			log.Infof("Seed: 规则已存在，跳过: %s", r.TriggerText)
			report.Skipped++
		default:
			return report, err
		}
	}
	for _, text := range data.SkipKeywords {
		_, err := admin.CreateSkipKeyword(ctx, text, 0)
		switch {
		case err == nil:
			report.KeywordsCreated++
		case errors.Is(err, ErrSkipKeywordExists):
			report.Skipped++
		default:
			return report, err
		}
	}
	return report, nil
}
