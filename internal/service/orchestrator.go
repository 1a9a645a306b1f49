package service

import (
	"context"
	"strings"
	"time"

	"linebot-relay-go/internal/model"
	"linebot-relay-go/pkg/llm"
	"linebot-relay-go/pkg/log"
)

// Result 是一次补全的结果。Err 非空表示模型调用失败，此时 Reply 为空且没有写入 assistant 消息。
type Result struct {
	Reply string
	Err   error
}

// OK 报告补全是否成功。
func (r Result) OK() bool {
	return r.Err == nil
}

// Text 返回要回复给用户的文本，失败时为致歉文本。
func (r Result) Text(lang model.Language) string {
	if r.Err != nil {
		return Apology(lang, r.Err)
	}
	return r.Reply
}

// Orchestrator 组装 [system] + 历史 并调用模型。
type Orchestrator interface {
	// Complete 只在存储失败时返回 error；模型失败通过 Result.Err 返回。
	Complete(ctx context.Context, userID, systemPrompt, sessionID string, promptRuleID *uint) (Result, error)
}

type orchestrator struct {
	history      HistoryStore
	llmClient    llm.Client
	historyLimit int
	timeout      time.Duration
}

// NewOrchestrator 创建 Orchestrator。timeout 为 0 时不限制模型调用时长。
func NewOrchestrator(history HistoryStore, llmClient llm.Client, historyLimit int, timeout time.Duration) Orchestrator {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &orchestrator{
		history:      history,
		llmClient:    llmClient,
		historyLimit: historyLimit,
		timeout:      timeout,
	}
}

func (o *orchestrator) Complete(ctx context.Context, userID, systemPrompt, sessionID string, promptRuleID *uint) (Result, error) {
	entries, err := o.history.Recent(ctx, userID, sessionID, o.historyLimit)
	if err != nil {
		return Result{}, err
	}

	messages := make([]llm.Message, 0, len(entries)+1)
	messages = append(messages, llm.Message{Role: string(model.RoleSystem), Content: systemPrompt})
	for _, e := range entries {
		messages = append(messages, llm.Message{Role: string(e.Role), Content: e.Content})
	}

	callCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := o.llmClient.Chat(callCtx, messages)
	if err != nil {
		log.Errorw("completion failed", "userID", userID, "sessionID", sessionID, "error", err)
		return Result{Err: err}, nil
	}
	reply = strings.TrimSpace(reply)
	log.Infow("completion done", "userID", userID, "sessionID", sessionID, "messages", len(messages), "elapsed", time.Since(start))

	if err := o.history.Append(ctx, userID, model.RoleAssistant, reply, sessionID, promptRuleID); err != nil {
		return Result{}, err
	}
	return Result{Reply: reply}, nil
}
