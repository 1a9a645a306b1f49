package service

import (
	"context"
	"fmt"

	"linebot-relay-go/internal/model"
	"linebot-relay-go/pkg/line"
	"linebot-relay-go/pkg/lock"
	"linebot-relay-go/pkg/log"
	"linebot-relay-go/pkg/tasks"
)

// RelayService 处理一条用户文本消息：过滤、命令、prompt 选择、补全、回复。
type RelayService interface {
	Process(ctx context.Context, event tasks.InboundEvent) error
}

// RelayDeps 汇集 RelayService 的依赖。
type RelayDeps struct {
	Skip         SkipFilter
	Commands     CommandRouter
	Profiles     ProfileService
	Resolver     PromptResolver
	History      HistoryStore
	Orchestrator Orchestrator
	Messenger    line.Messenger
	Locker       lock.UserLocker
}

type relayService struct {
	RelayDeps
}

// NewRelayService 创建一个新的 RelayService 实例。
func NewRelayService(deps RelayDeps) RelayService {
	if deps.Locker == nil {
		deps.Locker = lock.NewLocalLocker()
	}
	return &relayService{RelayDeps: deps}
}

// Process 返回的 error 只来自存储层；模型失败以致歉文本回复给用户。
func (s *relayService) Process(ctx context.Context, event tasks.InboundEvent) error {
	skip, err := s.Skip.ShouldSkip(ctx, event.Text)
	if err != nil {
		return fmt.Errorf("check skip keywords: %w", err)
	}
	if skip {
		log.Infow("message skipped by keyword", "userID", event.UserID)
		return nil
	}

	unlock, err := s.Locker.Lock(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("lock user %s: %w", event.UserID, err)
	}
	defer unlock()

	profile, created, err := s.Profiles.GetOrCreate(ctx, event.UserID)
	if err != nil {
		return err
	}
	if created {
		log.Infow("first contact, profile created", "userID", event.UserID, "language", profile.Language)
	}

	if cmd := Classify(event.Text); cmd.Kind != CommandNone {
		reply, err := s.Commands.Handle(ctx, event.UserID, cmd, profile)
		if err != nil {
			return fmt.Errorf("handle command: %w", err)
		}
		s.deliver(ctx, event, reply)
		return nil
	}

	res, done, err := s.resolve(ctx, event, profile.Language)
	if err != nil || done {
		return err
	}

	if err := s.Messenger.StartLoading(ctx, event.UserID); err != nil {
		log.Warnw("failed to start loading indicator", "userID", event.UserID, "error", err)
	}

	result, err := s.Orchestrator.Complete(ctx, event.UserID, res.SystemPrompt, res.SessionID, res.PromptRuleID)
	if err != nil {
		return err
	}
	s.deliver(ctx, event, result.Text(profile.Language))
	return nil
}

// resolve 选择 prompt 并写入用户消息。同一事件已写入过用户消息时不再写入：
// 模型尚未回复则沿用原消息继续补全，已有后续消息则返回 done。
func (s *relayService) resolve(ctx context.Context, event tasks.InboundEvent, lang model.Language) (Resolution, bool, error) {
	prior, err := s.History.FindByEvent(ctx, event.EventID)
	if err != nil {
		return Resolution{}, false, err
	}
	if prior == nil {
		res, err := s.Resolver.Resolve(ctx, event.UserID, event.Text, lang)
		if err != nil {
			return Resolution{}, false, err
		}
		if err := s.History.AppendInbound(ctx, event.EventID, event.UserID, event.Text, res.SessionID, res.PromptRuleID); err != nil {
			return Resolution{}, false, err
		}
		return res, false, nil
	}

	latest, err := s.History.Latest(ctx, event.UserID)
	if err != nil {
		return Resolution{}, false, err
	}
	if latest == nil || latest.ID != prior.ID {
		log.Infow("event already handled, skipping", "eventID", event.EventID, "userID", event.UserID)
		return Resolution{}, true, nil
	}
	log.Infow("resuming event without reply", "eventID", event.EventID, "userID", event.UserID, "sessionID", prior.SessionID)
	res, err := s.Resolver.Replay(ctx, prior, lang)
	if err != nil {
		return Resolution{}, false, err
	}
	return res, false, nil
}

// deliver 优先使用 reply token，失败时改用 push。投递失败只记录日志。
func (s *relayService) deliver(ctx context.Context, event tasks.InboundEvent, text string) {
	if event.ReplyToken != "" {
		err := s.Messenger.Reply(ctx, event.ReplyToken, text)
		if err == nil {
			return
		}
		log.Warnw("reply failed, falling back to push", "userID", event.UserID, "error", err)
	}
	if err := s.Messenger.Push(ctx, event.UserID, text); err != nil {
		log.Errorw("failed to deliver reply", "userID", event.UserID, "error", err)
	}
}
