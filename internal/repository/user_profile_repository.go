package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"linebot-relay-go/internal/model"
)

// UserProfileRepository 定义了用户偏好的持久化操作。
type UserProfileRepository interface {
	// GetOrCreate 返回已有记录，不存在时以 defaultLang 创建；created 表示本次是否新建。
	GetOrCreate(ctx context.Context, userID string, defaultLang model.Language) (*model.UserProfile, bool, error)
	UpdateLanguage(ctx context.Context, userID string, lang model.Language) error
}

type userProfileRepository struct {
	db *gorm.DB
}

// NewUserProfileRepository 创建一个新的 UserProfileRepository 实例。
func NewUserProfileRepository(db *gorm.DB) UserProfileRepository {
	return &userProfileRepository{db: db}
}

func (r *userProfileRepository) GetOrCreate(ctx context.Context, userID string, defaultLang model.Language) (*model.UserProfile, bool, error) {
	p := &model.UserProfile{UserID: userID, Language: defaultLang}
	// 并发首次接触时只有一方插入成功，另一方读到已有记录
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return p, true, nil
	}

	var existing model.UserProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *userProfileRepository) UpdateLanguage(ctx context.Context, userID string, lang model.Language) error {
	return r.db.WithContext(ctx).Model(&model.UserProfile{}).
		Where("user_id = ?", userID).
		Update("language", lang).Error
}
