// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"linebot-relay-go/internal/model"
)

// TurnFilter 是管理后台检索消息的条件，空字段不参与过滤。
type TurnFilter struct {
	UserID    string
	SessionID string
	Query     string
}

// TurnRepository 定义了对话消息的持久化操作。
type TurnRepository interface {
	// Append 写入一条消息。PromptRuleID 指向的规则不存在时按 NULL 写入。
	Append(ctx context.Context, turn *model.Turn) error
	// Latest 返回用户最近的一条消息，没有消息时返回 (nil, nil)。
	Latest(ctx context.Context, userID string) (*model.Turn, error)
	// FindByEvent 返回由 eventID 写入的用户消息，不存在时返回 (nil, nil)。
	FindByEvent(ctx context.Context, eventID string) (*model.Turn, error)
	// RecentDesc 返回 (userID, sessionID) 下最新的 limit 条消息，按时间倒序。
	RecentDesc(ctx context.Context, userID, sessionID string, limit int) ([]model.Turn, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	Search(ctx context.Context, filter TurnFilter, offset, limit int) ([]model.Turn, int64, error)
}

type turnRepository struct {
	db *gorm.DB
}

// NewTurnRepository 创建一个新的 TurnRepository 实例。
func NewTurnRepository(db *gorm.DB) TurnRepository {
	return &turnRepository{db: db}
}

func (r *turnRepository) Append(ctx context.Context, turn *model.Turn) error {
	if !turn.Role.Valid() {
		return fmt.Errorf("invalid turn role %q", turn.Role)
	}
	if turn.SessionID == "" {
		return errors.New("turn session id is required")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if turn.PromptRuleID != nil {
			var n int64
			if err := tx.Model(&model.PromptRule{}).Where("id = ?", *turn.PromptRuleID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				turn.PromptRuleID = nil
			}
		}
		return tx.Create(turn).Error
	})
}

func (r *turnRepository) Latest(ctx context.Context, userID string) (*model.Turn, error) {
	var turn model.Turn
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		First(&turn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &turn, nil
}

func (r *turnRepository) FindByEvent(ctx context.Context, eventID string) (*model.Turn, error) {
	var turn model.Turn
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&turn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &turn, nil
}

func (r *turnRepository) RecentDesc(ctx context.Context, userID, sessionID string, limit int) ([]model.Turn, error) {
	if limit <= 0 {
		limit = 20
	}
	var turns []model.Turn
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&turns).Error
	return turns, err
}

func (r *turnRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Turn{})
	return res.RowsAffected, res.Error
}

func (r *turnRepository) Search(ctx context.Context, filter TurnFilter, offset, limit int) ([]model.Turn, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Turn{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.SessionID != "" {
		q = q.Where("session_id = ?", filter.SessionID)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		q = q.Where("content LIKE ? OR user_id LIKE ? OR session_id LIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var turns []model.Turn
	err := q.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&turns).Error
	if err != nil {
		return nil, 0, err
	}
	return turns, total, nil
}
