package service

import (
	"context"
	"fmt"
	"strings"

	"linebot-relay-go/internal/model"
)

// CommandKind 是可识别的控制命令。
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandReset
	CommandShowHistory
	CommandSetLanguage
)

const langPrefix = "/lang "

// Command 是一条已识别的命令，Code 只对 CommandSetLanguage 有意义。
type Command struct {
	Kind CommandKind
	Code string
}

// Classify 识别消息中的命令，未识别时返回 CommandNone。
func Classify(message string) Command {
	text := strings.TrimSpace(message)
	lower := strings.ToLower(text)
	switch {
	case lower == "/reset":
		return Command{Kind: CommandReset}
	case lower == "/history":
		return Command{Kind: CommandShowHistory}
	case lower == strings.TrimSpace(langPrefix):
		// 缺少语言代码，交给 setLanguage 回复用法
		return Command{Kind: CommandSetLanguage}
	case strings.HasPrefix(lower, langPrefix):
		return Command{Kind: CommandSetLanguage, Code: strings.TrimSpace(lower[len(langPrefix):])}
	}
	return Command{Kind: CommandNone}
}

// CommandRouter 执行已识别的命令并返回回复文本。
type CommandRouter interface {
	Handle(ctx context.Context, userID string, cmd Command, profile *model.UserProfile) (string, error)
}

type commandRouter struct {
	history      HistoryStore
	profiles     ProfileService
	historyLimit int
}

// NewCommandRouter 创建一个新的 CommandRouter 实例。
func NewCommandRouter(history HistoryStore, profiles ProfileService, historyLimit int) CommandRouter {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &commandRouter{history: history, profiles: profiles, historyLimit: historyLimit}
}

func (r *commandRouter) Handle(ctx context.Context, userID string, cmd Command, profile *model.UserProfile) (string, error) {
	msgs := messagesFor(profile.Language)
	switch cmd.Kind {
	case CommandReset:
		if err := r.history.Purge(ctx, userID); err != nil {
			return "", err
		}
		return msgs.ResetDone, nil
	case CommandShowHistory:
		return r.showHistory(ctx, userID, msgs)
	case CommandSetLanguage:
		return r.setLanguage(ctx, userID, cmd.Code, profile)
	}
	return "", fmt.Errorf("unknown command kind %d", cmd.Kind)
}

func (r *commandRouter) showHistory(ctx context.Context, userID string, msgs catalogue) (string, error) {
	latest, err := r.history.Latest(ctx, userID)
	if err != nil {
		return "", err
	}
	if latest == nil {
		return msgs.NoHistory, nil
	}
	entries, err := r.history.Recent(ctx, userID, latest.SessionID, r.historyLimit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return msgs.NoHistory, nil
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("[%s] %s", e.Role, e.Content)
	}
	return msgs.HistoryHeader + strings.Join(lines, "\n"), nil
}

func (r *commandRouter) setLanguage(ctx context.Context, userID, code string, profile *model.UserProfile) (string, error) {
	lang, ok := model.ParseLanguage(code)
	if !ok {
		return fmt.Sprintf(messagesFor(profile.Language).InvalidLanguage, supportedLanguageList()), nil
	}
	if lang == profile.Language {
		return messagesFor(lang).LanguageAlreadySet, nil
	}
	if err := r.profiles.SetLanguage(ctx, userID, lang); err != nil {
		return "", err
	}
	profile.Language = lang
	return messagesFor(lang).LanguageSwitched, nil
}
