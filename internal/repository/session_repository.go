package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"linebot-relay-go/internal/model"
)

// SessionRepository 定义了会话记录的持久化操作。
type SessionRepository interface {
	Create(ctx context.Context, s *model.Session) error
	// FindByID 找不到时返回 (nil, nil)。
	FindByID(ctx context.Context, sessionID string) (*model.Session, error)
	Touch(ctx context.Context, sessionID string) error
	DeleteByUser(ctx context.Context, userID string) error
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s *model.Session) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.ActivePromptRuleID != nil {
			var n int64
			if err := tx.Model(&model.PromptRule{}).Where("id = ?", *s.ActivePromptRuleID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				s.ActivePromptRuleID = nil
			}
		}
		return tx.Create(s).Error
	})
}

func (r *sessionRepository) FindByID(ctx context.Context, sessionID string) (*model.Session, error) {
	var s model.Session
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Touch 刷新会话的 updated_at。
func (r *sessionRepository) Touch(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Update("updated_at", time.Now()).Error
}

func (r *sessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Session{}).Error
}
