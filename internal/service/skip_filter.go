package service

import (
	"context"

	"linebot-relay-go/internal/repository"
)

// SkipFilter 判断一条消息是否命中管理员维护的跳过关键词。
type SkipFilter interface {
	ShouldSkip(ctx context.Context, message string) (bool, error)
}

type skipFilter struct {
	keywordRepo repository.SkipKeywordRepository
}

// NewSkipFilter 创建 SkipFilter，keywordRepo 为 nil 时视为空集合。
func NewSkipFilter(keywordRepo repository.SkipKeywordRepository) SkipFilter {
	return &skipFilter{keywordRepo: keywordRepo}
}

func (f *skipFilter) ShouldSkip(ctx context.Context, message string) (bool, error) {
	if f.keywordRepo == nil || message == "" {
		return false, nil
	}
	return f.keywordRepo.Exists(ctx, message)
}
