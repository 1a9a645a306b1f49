package service

import (
	"context"
	"fmt"

	"linebot-relay-go/internal/model"
	"linebot-relay-go/internal/repository"
)

// DefaultHistoryLimit 是送入模型的历史条数，即 10 轮问答。
const DefaultHistoryLimit = 20

// HistoryStore 是按用户、按会话追加的消息日志。
type HistoryStore interface {
	Append(ctx context.Context, userID string, role model.Role, content, sessionID string, promptRuleID *uint) error
	// AppendInbound 写入一条用户消息并记录触发它的事件，eventID 可为空。
	AppendInbound(ctx context.Context, eventID, userID, content, sessionID string, promptRuleID *uint) error
	// FindByEvent 返回 eventID 已写入的用户消息，eventID 为空或未写入时返回 (nil, nil)。
	FindByEvent(ctx context.Context, eventID string) (*model.Turn, error)
	// Recent 返回该会话最新的 limit 条消息，按时间正序。
	Recent(ctx context.Context, userID, sessionID string, limit int) ([]model.HistoryEntry, error)
	Latest(ctx context.Context, userID string) (*model.Turn, error)
	// Purge 删除用户在所有会话中的消息。
	Purge(ctx context.Context, userID string) error
}

type historyStore struct {
	turnRepo    repository.TurnRepository
	sessionRepo repository.SessionRepository
}

// NewHistoryStore 创建一个新的 HistoryStore 实例。
func NewHistoryStore(turnRepo repository.TurnRepository, sessionRepo repository.SessionRepository) HistoryStore {
	return &historyStore{turnRepo: turnRepo, sessionRepo: sessionRepo}
}

func (h *historyStore) Append(ctx context.Context, userID string, role model.Role, content, sessionID string, promptRuleID *uint) error {
	return h.append(ctx, &model.Turn{
		UserID:       userID,
		Role:         role,
		Content:      content,
		SessionID:    sessionID,
		PromptRuleID: promptRuleID,
	})
}

func (h *historyStore) AppendInbound(ctx context.Context, eventID, userID, content, sessionID string, promptRuleID *uint) error {
	turn := &model.Turn{
		UserID:       userID,
		Role:         model.RoleUser,
		Content:      content,
		SessionID:    sessionID,
		PromptRuleID: promptRuleID,
	}
	if eventID != "" {
		turn.EventID = &eventID
	}
	return h.append(ctx, turn)
}

func (h *historyStore) append(ctx context.Context, turn *model.Turn) error {
	if err := h.turnRepo.Append(ctx, turn); err != nil {
		return fmt.Errorf("append %s turn: %w", turn.Role, err)
	}
	return nil
}

func (h *historyStore) FindByEvent(ctx context.Context, eventID string) (*model.Turn, error) {
	if eventID == "" {
		return nil, nil
	}
	turn, err := h.turnRepo.FindByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load turn by event: %w", err)
	}
	return turn, nil
}

func (h *historyStore) Recent(ctx context.Context, userID, sessionID string, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	turns, err := h.turnRepo.RecentDesc(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	entries := make([]model.HistoryEntry, len(turns))
	for i, t := range turns {
		entries[len(turns)-1-i] = model.HistoryEntry{Role: t.Role, Content: t.Content}
	}
	return entries, nil
}

func (h *historyStore) Latest(ctx context.Context, userID string) (*model.Turn, error) {
	turn, err := h.turnRepo.Latest(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load latest turn: %w", err)
	}
	return turn, nil
}

func (h *historyStore) Purge(ctx context.Context, userID string) error {
	if _, err := h.turnRepo.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("purge turns: %w", err)
	}
	if err := h.sessionRepo.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}
	return nil
}
