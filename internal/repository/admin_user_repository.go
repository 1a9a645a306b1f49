package repository

import (
	"context"

	"gorm.io/gorm"

	"linebot-relay-go/internal/model"
)

// AdminUserRepository 接口定义了管理员账号的持久化操作。
type AdminUserRepository interface {
	Create(ctx context.Context, u *model.AdminUser) error
	FindByUsername(ctx context.Context, username string) (*model.AdminUser, error)
}

// adminUserRepository 是 AdminUserRepository 接口的 GORM 实现。
type adminUserRepository struct {
	db *gorm.DB
}

// NewAdminUserRepository 创建一个新的 AdminUserRepository 实例。
func NewAdminUserRepository(db *gorm.DB) AdminUserRepository {
	return &adminUserRepository{db: db}
}

func (r *adminUserRepository) Create(ctx context.Context, u *model.AdminUser) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *adminUserRepository) FindByUsername(ctx context.Context, username string) (*model.AdminUser, error) {
	var u model.AdminUser
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
