package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"linebot-relay-go/internal/model"
	"linebot-relay-go/internal/repository"
)

// TurnListResponse 定义了消息检索 API 的响应结构。
type TurnListResponse struct {
	Content       []TurnDetailResponse `json:"content"`
	TotalElements int64                `json:"totalElements"`
	TotalPages    int                  `json:"totalPages"`
	Size          int                  `json:"size"`
	Number        int                  `json:"number"`
}

// TurnDetailResponse 定义了消息列表项的详细结构。
type TurnDetailResponse struct {
	ID           uint            `json:"id"`
	UserID       string          `json:"userId"`
	Role         model.Role      `json:"role"`
	Content      string          `json:"content"`
	SessionID    string          `json:"sessionId"`
	PromptRuleID *uint           `json:"promptRuleId"`
	CreatedAt    model.LocalTime `json:"createdAt"`
}

// AdminService 接口定义了所有管理员相关的业务操作。
type AdminService interface {
	// Prompt Rule Management
	ListPromptRules(ctx context.Context) ([]model.PromptRule, error)
	CreatePromptRule(ctx context.Context, triggerText, systemPrompt string, creatorID uint) (*model.PromptRule, error)
	UpdatePromptRule(ctx context.Context, id uint, triggerText, systemPrompt string) (*model.PromptRule, error)
	DeletePromptRule(ctx context.Context, id uint) error

	// Skip Keyword Management
	ListSkipKeywords(ctx context.Context) ([]model.SkipKeyword, error)
	CreateSkipKeyword(ctx context.Context, text string, creatorID uint) (*model.SkipKeyword, error)
	DeleteSkipKeyword(ctx context.Context, id uint) error

	// Turn Inspection
	SearchTurns(ctx context.Context, filter repository.TurnFilter, page, size int) (*TurnListResponse, error)
}

// adminService 是 AdminService 接口的实现。
type adminService struct {
	ruleRepo    repository.PromptRuleRepository
	keywordRepo repository.SkipKeywordRepository
	turnRepo    repository.TurnRepository
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(ruleRepo repository.PromptRuleRepository, keywordRepo repository.SkipKeywordRepository, turnRepo repository.TurnRepository) AdminService {
	return &adminService{
		ruleRepo:    ruleRepo,
		keywordRepo: keywordRepo,
		turnRepo:    turnRepo,
	}
}

// creatorRef 将 0（命令行导入）映射为 NULL。
func creatorRef(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

func (s *adminService) ListPromptRules(ctx context.Context) ([]model.PromptRule, error) {
	return s.ruleRepo.FindAll(ctx)
}

// CreatePromptRule 创建 prompt 规则，触发词不区分大小写地唯一。
func (s *adminService) CreatePromptRule(ctx context.Context, triggerText, systemPrompt string, creatorID uint) (*model.PromptRule, error) {
	triggerText = strings.TrimSpace(triggerText)
	if triggerText == "" || strings.TrimSpace(systemPrompt) == "" {
		return nil, errors.New("triggerText and systemPrompt are required")
	}
	existing, err := s.ruleRepo.FindByTrigger(ctx, triggerText)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPromptRuleExists
	}

	rule := &model.PromptRule{
		TriggerText:  triggerText,
		SystemPrompt: systemPrompt,
		CreatedBy:    creatorRef(creatorID),
	}
	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// UpdatePromptRule 修改触发词或 prompt，空字段保持不变。
func (s *adminService) UpdatePromptRule(ctx context.Context, id uint, triggerText, systemPrompt string) (*model.PromptRule, error) {
	rule, err := s.ruleRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptRuleNotFound
		}
		return nil, err
	}

	if triggerText = strings.TrimSpace(triggerText); triggerText != "" {
		other, err := s.ruleRepo.FindByTrigger(ctx, triggerText)
		if err != nil {
			return nil, err
		}
		if other != nil && other.ID != rule.ID {
			return nil, ErrPromptRuleExists
		}
		rule.TriggerText = triggerText
	}
	if strings.TrimSpace(systemPrompt) != "" {
		rule.SystemPrompt = systemPrompt
	}

	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// DeletePromptRule 删除规则；引用它的消息与会话被置为无规则。
func (s *adminService) DeletePromptRule(ctx context.Context, id uint) error {
	err := s.ruleRepo.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPromptRuleNotFound
	}
	return err
}

func (s *adminService) ListSkipKeywords(ctx context.Context) ([]model.SkipKeyword, error) {
	return s.keywordRepo.FindAll(ctx)
}

func (s *adminService) CreateSkipKeyword(ctx context.Context, text string, creatorID uint) (*model.SkipKeyword, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text is required")
	}
	exists, err := s.keywordRepo.Exists(ctx, text)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrSkipKeywordExists
	}

	kw := &model.SkipKeyword{Text: text, CreatedBy: creatorRef(creatorID)}
	if err := s.keywordRepo.Create(ctx, kw); err != nil {
		return nil, err
	}
	return kw, nil
}

func (s *adminService) DeleteSkipKeyword(ctx context.Context, id uint) error {
	err := s.keywordRepo.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSkipKeywordNotFound
	}
	return err
}

// SearchTurns 分页检索消息，page 从 1 开始。
func (s *adminService) SearchTurns(ctx context.Context, filter repository.TurnFilter, page, size int) (*TurnListResponse, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	turns, total, err := s.turnRepo.Search(ctx, filter, (page-1)*size, size)
	if err != nil {
		return nil, err
	}

	content := make([]TurnDetailResponse, 0, len(turns))
	for _, t := range turns {
		content = append(content, TurnDetailResponse{
			ID:           t.ID,
			UserID:       t.UserID,
			Role:         t.Role,
			Content:      t.Content,
			SessionID:    t.SessionID,
			PromptRuleID: t.PromptRuleID,
			CreatedAt:    model.LocalTime(t.CreatedAt),
		})
	}

	totalPages := int(total) / size
	if int(total)%size != 0 {
		totalPages++
	}
	return &TurnListResponse{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Size:          size,
		Number:        page,
	}, nil
}
