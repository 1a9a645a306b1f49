package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"linebot-relay-go/internal/model"
	"linebot-relay-go/internal/repository"
	"linebot-relay-go/pkg/log"
)

// Resolution 是一次非命令消息所使用的 system prompt 与会话。
type Resolution struct {
	SystemPrompt string
	SessionID    string
	PromptRuleID *uint
	// NewSession 表示本次新建了会话。
	NewSession bool
}

// PromptResolver 决定一条消息由哪个 system prompt 和会话处理。
type PromptResolver interface {
	Resolve(ctx context.Context, userID, message string, lang model.Language) (Resolution, error)
	// Replay 为已写入的用户消息重建 Resolution，不创建会话也不修改存储。
	Replay(ctx context.Context, turn *model.Turn, lang model.Language) (Resolution, error)
}

type promptResolver struct {
	ruleRepo    repository.PromptRuleRepository
	sessionRepo repository.SessionRepository
	history     HistoryStore
	newID       func() string
}

// NewPromptResolver 创建一个新的 PromptResolver 实例。
func NewPromptResolver(ruleRepo repository.PromptRuleRepository, sessionRepo repository.SessionRepository, history HistoryStore) PromptResolver {
	return &promptResolver{
		ruleRepo:    ruleRepo,
		sessionRepo: sessionRepo,
		history:     history,
		newID:       uuid.NewString,
	}
}

func (r *promptResolver) Resolve(ctx context.Context, userID, message string, lang model.Language) (Resolution, error) {
	msgs := messagesFor(lang)

	// 1. 触发词命中：总是开启新会话
	rule, err := r.ruleRepo.FindByTrigger(ctx, message)
	if err != nil {
		return Resolution{}, fmt.Errorf("match prompt rule: %w", err)
	}
	if rule != nil {
		res := Resolution{
			SystemPrompt: rule.SystemPrompt,
			SessionID:    r.newID(),
			PromptRuleID: &rule.ID,
			NewSession:   true,
		}
		if err := r.createSession(ctx, userID, res); err != nil {
			return Resolution{}, err
		}
		log.Infow("prompt rule matched, new session", "userID", userID, "ruleID", rule.ID, "sessionID", res.SessionID)
		return res, nil
	}

	// 2. 未命中：沿用最近一条消息所在的会话
	latest, err := r.history.Latest(ctx, userID)
	if err != nil {
		return Resolution{}, err
	}
	if latest == nil {
		res := Resolution{SystemPrompt: msgs.DefaultPrompt, SessionID: r.newID(), NewSession: true}
		if err := r.createSession(ctx, userID, res); err != nil {
			return Resolution{}, err
		}
		return res, nil
	}

	ruleID, err := r.activeRuleID(ctx, latest)
	if err != nil {
		return Resolution{}, err
	}
	if err := r.sessionRepo.Touch(ctx, latest.SessionID); err != nil {
		return Resolution{}, fmt.Errorf("touch session: %w", err)
	}
	if ruleID != nil {
		active, err := r.ruleRepo.FindByID(ctx, *ruleID)
		switch {
		case err == nil:
			return Resolution{
				SystemPrompt: active.SystemPrompt + "\n" + msgs.LanguageDirective,
				SessionID:    latest.SessionID,
				PromptRuleID: ruleID,
			}, nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			// 规则已被删除，按无规则处理
			log.Warnw("active prompt rule gone, using default prompt", "ruleID", *ruleID)
		default:
			return Resolution{}, fmt.Errorf("load prompt rule: %w", err)
		}
	}
	return Resolution{SystemPrompt: msgs.DefaultPrompt, SessionID: latest.SessionID}, nil
}

func (r *promptResolver) Replay(ctx context.Context, turn *model.Turn, lang model.Language) (Resolution, error) {
	msgs := messagesFor(lang)
	res := Resolution{SystemPrompt: msgs.DefaultPrompt, SessionID: turn.SessionID}
	if turn.PromptRuleID == nil {
		return res, nil
	}
	rule, err := r.ruleRepo.FindByID(ctx, *turn.PromptRuleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return res, nil
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("load prompt rule: %w", err)
	}
	res.PromptRuleID = turn.PromptRuleID
	// 触发消息本身使用规则原文，沿用的会话追加语言指令
	if repository.NormalizeKey(turn.Content) == rule.TriggerKey {
		res.SystemPrompt = rule.SystemPrompt
	} else {
		res.SystemPrompt = rule.SystemPrompt + "\n" + msgs.LanguageDirective
	}
	return res, nil
}

// activeRuleID 优先读取会话记录，会话不存在时回落到消息上的引用。
func (r *promptResolver) activeRuleID(ctx context.Context, latest *model.Turn) (*uint, error) {
	s, err := r.sessionRepo.FindByID(ctx, latest.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s != nil {
		return s.ActivePromptRuleID, nil
	}
	return latest.PromptRuleID, nil
}

func (r *promptResolver) createSession(ctx context.Context, userID string, res Resolution) error {
	s := &model.Session{SessionID: res.SessionID, UserID: userID, ActivePromptRuleID: res.PromptRuleID}
	if err := r.sessionRepo.Create(ctx, s); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}
