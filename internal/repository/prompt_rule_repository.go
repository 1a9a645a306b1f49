package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"linebot-relay-go/internal/model"
)

// PromptRuleRepository 接口定义了 prompt 规则的数据操作方法。
type PromptRuleRepository interface {
	Create(ctx context.Context, rule *model.PromptRule) error
	FindByID(ctx context.Context, id uint) (*model.PromptRule, error)
	// FindByTrigger 按不区分大小写的完全匹配查找，找不到时返回 (nil, nil)。
	FindByTrigger(ctx context.Context, text string) (*model.PromptRule, error)
	FindAll(ctx context.Context) ([]model.PromptRule, error)
	Update(ctx context.Context, rule *model.PromptRule) error
	// Delete 删除规则，并把消息和会话中对它的引用置为 NULL。
	Delete(ctx context.Context, id uint) error
}

type promptRuleRepository struct {
	db *gorm.DB
}

// NewPromptRuleRepository 创建一个新的 PromptRuleRepository 实例。
func NewPromptRuleRepository(db *gorm.DB) PromptRuleRepository {
	return &promptRuleRepository{db: db}
}

// NormalizeKey 返回比较用的小写键。
func NormalizeKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func (r *promptRuleRepository) Create(ctx context.Context, rule *model.PromptRule) error {
	rule.TriggerKey = NormalizeKey(rule.TriggerText)
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *promptRuleRepository) FindByID(ctx context.Context, id uint) (*model.PromptRule, error) {
	var rule model.PromptRule
	if err := r.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *promptRuleRepository) FindByTrigger(ctx context.Context, text string) (*model.PromptRule, error) {
	var rule model.PromptRule
	err := r.db.WithContext(ctx).Where("trigger_key = ?", NormalizeKey(text)).First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *promptRuleRepository) FindAll(ctx context.Context) ([]model.PromptRule, error) {
	var rules []model.PromptRule
	err := r.db.WithContext(ctx).Order("id ASC").Find(&rules).Error
	return rules, err
}

func (r *promptRuleRepository) Update(ctx context.Context, rule *model.PromptRule) error {
	rule.TriggerKey = NormalizeKey(rule.TriggerText)
	return r.db.WithContext(ctx).Save(rule).Error
}

func (r *promptRuleRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Turn{}).Where("prompt_rule_id = ?", id).
			Update("prompt_rule_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Session{}).Where("active_prompt_rule_id = ?", id).
			Update("active_prompt_rule_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.PromptRule{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
