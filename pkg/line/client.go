package line

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"linebot-relay-go/internal/config"
)

// maxTextRunes 是单条文本消息允许的最大字符数。
const maxTextRunes = 5000

// Messenger 是出站消息通道。
type Messenger interface {
	Reply(ctx context.Context, replyToken, text string) error
	Push(ctx context.Context, userID, text string) error
	StartLoading(ctx context.Context, userID string) error
}

// Client 通过官方 SDK 调用 LINE Messaging API。
type Client struct {
	api            *messaging_api.MessagingApiAPI
	loadingSeconds int32
}

// NewClient 根据配置创建 Client。
func NewClient(cfg config.LINEConfig) (*Client, error) {
	opts := []messaging_api.MessagingApiAPIOption{
		messaging_api.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
	}
	if base := strings.TrimRight(cfg.APIBaseURL, "/"); base != "" {
		opts = append(opts, messaging_api.WithEndpoint(base))
	}
	api, err := messaging_api.NewMessagingApiAPI(cfg.ChannelAccessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("line: create messaging api client: %w", err)
	}
	return &Client{
		api:            api,
		loadingSeconds: int32(normalizeLoadingSeconds(cfg.LoadingSeconds)),
	}, nil
}

// withContext 返回绑定 ctx 的副本，SDK 的 WithContext 会修改接收者。
func (c *Client) withContext(ctx context.Context) *messaging_api.MessagingApiAPI {
	api := *c.api
	return api.WithContext(ctx)
}

// loading 动画时长须为 5 的倍数，范围 5~60。
func normalizeLoadingSeconds(n int) int {
	if n <= 0 {
		return 20
	}
	if n > 60 {
		return 60
	}
	if r := n % 5; r != 0 {
		n += 5 - r
	}
	if n > 60 {
		n = 60
	}
	return n
}

func truncateText(text string) string {
	r := []rune(text)
	if len(r) > maxTextRunes {
		return string(r[:maxTextRunes-1]) + "…"
	}
	return text
}

func textMessages(text string) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{messaging_api.TextMessage{Text: truncateText(text)}}
}

// Reply 使用 reply token 回复消息。
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	_, err := c.withContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   textMessages(text),
	})
	if err != nil {
		return fmt.Errorf("line: reply: %w", err)
	}
	return nil
}

// Push 主动向用户推送消息，reply token 过期时使用。
func (c *Client) Push(ctx context.Context, userID, text string) error {
	_, err := c.withContext(ctx).PushMessage(&messaging_api.PushMessageRequest{
		To:       userID,
		Messages: textMessages(text),
	}, uuid.NewString())
	if err != nil {
		return fmt.Errorf("line: push: %w", err)
	}
	return nil
}

// StartLoading 在一对一聊天中显示 "输入中" 动画。
func (c *Client) StartLoading(ctx context.Context, userID string) error {
	_, err := c.withContext(ctx).ShowLoadingAnimation(&messaging_api.ShowLoadingAnimationRequest{
		ChatId:         userID,
		LoadingSeconds: c.loadingSeconds,
	})
	if err != nil {
		return fmt.Errorf("line: start loading: %w", err)
	}
	return nil
}
