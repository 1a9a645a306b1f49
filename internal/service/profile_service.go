package service

import (
	"context"
	"fmt"

	"linebot-relay-go/internal/model"
	"linebot-relay-go/internal/repository"
)

// ProfileService 维护每个用户的语言偏好。
type ProfileService interface {
	// GetOrCreate 返回用户资料，首次接触时以默认语言创建，created 标记是否新建。
	GetOrCreate(ctx context.Context, userID string) (profile *model.UserProfile, created bool, err error)
	SetLanguage(ctx context.Context, userID string, lang model.Language) error
}

type profileService struct {
	profileRepo repository.UserProfileRepository
	defaultLang model.Language
}

// NewProfileService 创建 ProfileService，defaultLang 不被支持时使用中文。
func NewProfileService(profileRepo repository.UserProfileRepository, defaultLang string) ProfileService {
	lang, ok := model.ParseLanguage(defaultLang)
	if !ok {
		lang = model.LanguageZH
	}
	return &profileService{profileRepo: profileRepo, defaultLang: lang}
}

func (s *profileService) GetOrCreate(ctx context.Context, userID string) (*model.UserProfile, bool, error) {
	p, created, err := s.profileRepo.GetOrCreate(ctx, userID, s.defaultLang)
	if err != nil {
		return nil, false, fmt.Errorf("get or create profile: %w", err)
	}
	return p, created, nil
}

func (s *profileService) SetLanguage(ctx context.Context, userID string, lang model.Language) error {
	if _, ok := model.ParseLanguage(string(lang)); !ok {
		return ErrInvalidLanguage
	}
	if err := s.profileRepo.UpdateLanguage(ctx, userID, lang); err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	return nil
}
