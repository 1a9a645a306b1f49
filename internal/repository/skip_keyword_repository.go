package repository

import (
	"context"

	"gorm.io/gorm"

	"linebot-relay-go/internal/model"
)

// SkipKeywordRepository 接口定义了跳过关键词的数据操作方法。
type SkipKeywordRepository interface {
	Create(ctx context.Context, kw *model.SkipKeyword) error
	FindAll(ctx context.Context) ([]model.SkipKeyword, error)
	Delete(ctx context.Context, id uint) error
	// Exists 按不区分大小写的完全匹配判断 text 是否在集合中。
	Exists(ctx context.Context, text string) (bool, error)
}

type skipKeywordRepository struct {
	db *gorm.DB
}

// NewSkipKeywordRepository 创建一个新的 SkipKeywordRepository 实例。
func NewSkipKeywordRepository(db *gorm.DB) SkipKeywordRepository {
	return &skipKeywordRepository{db: db}
}

func (r *skipKeywordRepository) Create(ctx context.Context, kw *model.SkipKeyword) error {
	kw.TextKey = NormalizeKey(kw.Text)
	return r.db.WithContext(ctx).Create(kw).Error
}

func (r *skipKeywordRepository) FindAll(ctx context.Context) ([]model.SkipKeyword, error) {
	var kws []model.SkipKeyword
	err := r.db.WithContext(ctx).Order("id ASC").Find(&kws).Error
	return kws, err
}

func (r *skipKeywordRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.SkipKeyword{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *skipKeywordRepository) Exists(ctx context.Context, text string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.SkipKeyword{}).
		Where("text_key = ?", NormalizeKey(text)).
		Count(&n).Error
	return n > 0, err
}
