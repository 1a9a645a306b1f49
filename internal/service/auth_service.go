package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"linebot-relay-go/internal/model"
	"linebot-relay-go/internal/repository"
	"linebot-relay-go/pkg/hash"
	"linebot-relay-go/pkg/token"
)

// AuthService 接口定义了管理员账号与登录相关的业务操作。
type AuthService interface {
	CreateAdmin(ctx context.Context, username, password string) (*model.AdminUser, error)
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, tokenString string) error
}

type authService struct {
	adminRepo  repository.AdminUserRepository
	blacklist  repository.TokenBlacklist
	jwtManager *token.JWTManager
}

// NewAuthService 创建一个新的 AuthService 实例。blacklist 可以为 nil，此时登出不会使 token 失效。
func NewAuthService(adminRepo repository.AdminUserRepository, blacklist repository.TokenBlacklist, jwtManager *token.JWTManager) AuthService {
	return &authService{adminRepo: adminRepo, blacklist: blacklist, jwtManager: jwtManager}
}

// CreateAdmin 创建管理员账号，供命令行使用。
func (s *authService) CreateAdmin(ctx context.Context, username, password string) (*model.AdminUser, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	_, err := s.adminRepo.FindByUsername(ctx, username)
	if err == nil {
		return nil, ErrAdminExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := hash.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.AdminUser{Username: username, Password: hashed}
	if err := s.adminRepo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login 校验用户名密码并签发 access token。
func (s *authService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.adminRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !hash.CheckPasswordHash(password, u.Password) {
		return "", ErrInvalidCredentials
	}
	return s.jwtManager.GenerateToken(u.ID, u.Username)
}

// Logout 将 token 加入黑名单，过期时间为 token 的剩余有效期。
func (s *authService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return err
	}
	if s.blacklist == nil {
		return nil
	}
	return s.blacklist.Add(ctx, tokenString, time.Until(claims.ExpiresAt.Time))
}
