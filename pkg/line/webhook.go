// Package line 封装 LINE Messaging API：webhook 签名校验、事件解析与消息发送。
package line

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// SignatureHeader 是 LINE 平台携带签名的请求头。
const SignatureHeader = "X-Line-Signature"

// ErrInvalidSignature 表示请求签名与 channel secret 不匹配。
var ErrInvalidSignature = webhook.ErrInvalidSignature

// TextEvent 是一条已解析的文本消息事件。
type TextEvent struct {
	EventID      string
	UserID       string
	Text         string
	ReplyToken   string
	Timestamp    int64
	IsRedelivery bool
}

// ParseTextEvents 校验签名并解析请求体，只保留带有用户 ID 的文本消息事件。
func ParseTextEvents(channelSecret string, r *http.Request) ([]TextEvent, error) {
	cb, err := webhook.ParseRequest(channelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("line: decode webhook body: %w", err)
	}

	out := make([]TextEvent, 0, len(cb.Events))
	for _, ev := range cb.Events {
		e, ok := ev.(webhook.MessageEvent)
		if !ok {
			continue
		}
		msg, ok := e.Message.(webhook.TextMessageContent)
		if !ok {
			continue
		}
		userID := sourceUserID(e.Source)
		if userID == "" {
			continue
		}
		out = append(out, TextEvent{
			EventID:      e.WebhookEventId,
			UserID:       userID,
			Text:         strings.TrimSpace(msg.Text),
			ReplyToken:   e.ReplyToken,
			Timestamp:    e.Timestamp,
			IsRedelivery: e.DeliveryContext != nil && e.DeliveryContext.IsRedelivery,
		})
	}
	return out, nil
}

// 群组和多人聊天中未授权的用户不带 userId
func sourceUserID(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}
