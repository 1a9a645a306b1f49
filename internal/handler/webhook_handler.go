// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"linebot-relay-go/internal/repository"
	"linebot-relay-go/internal/service"
	"linebot-relay-go/pkg/line"
	"linebot-relay-go/pkg/log"
	"linebot-relay-go/pkg/tasks"
)

// WebhookHandler 接收 LINE 平台的 webhook 回调。
type WebhookHandler struct {
	channelSecret string
	events        repository.EventRepository
	dispatcher    service.Dispatcher
}

// NewWebhookHandler 创建一个新的 WebhookHandler 实例。events 为 nil 时不做重投去重。
func NewWebhookHandler(channelSecret string, events repository.EventRepository, dispatcher service.Dispatcher) *WebhookHandler {
	return &WebhookHandler{channelSecret: channelSecret, events: events, dispatcher: dispatcher}
}

// Callback 校验签名后把文本消息交给 dispatcher。
// 任一事件分发失败时返回 500，让平台重投整批事件，已分发的事件由去重跳过。
func (h *WebhookHandler) Callback(c *gin.Context) {
	events, err := line.ParseTextEvents(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, line.ErrInvalidSignature) {
			log.Warnf("Callback: invalid signature from %s", c.ClientIP())
			c.String(http.StatusBadRequest, "Invalid signature")
			return
		}
		log.Errorf("Callback: failed to parse webhook body: %v", err)
		c.String(http.StatusBadRequest, "Invalid body")
		return
	}

	failed := 0
	for _, ev := range events {
		if h.isDuplicate(c, ev) {
			continue
		}
		inbound := tasks.InboundEvent{
			EventID:    ev.EventID,
			UserID:     ev.UserID,
			Text:       ev.Text,
			ReplyToken: ev.ReplyToken,
			Timestamp:  ev.Timestamp,
		}
		if err := h.dispatcher.Dispatch(c.Request.Context(), inbound); err != nil {
			log.Errorw("failed to dispatch inbound event", "eventID", ev.EventID, "userID", ev.UserID, "error", err)
			h.forget(c, ev)
			failed++
		}
	}

	if failed > 0 {
		c.String(http.StatusInternalServerError, "Dispatch failed")
		return
	}
	c.String(http.StatusOK, "OK")
}

func (h *WebhookHandler) isDuplicate(c *gin.Context, ev line.TextEvent) bool {
	if h.events == nil || ev.EventID == "" {
		return false
	}
	first, err := h.events.MarkSeen(c.Request.Context(), ev.EventID)
	if err != nil {
		// 去重不可用时按首次处理
		log.Warnw("event dedupe unavailable", "eventID", ev.EventID, "error", err)
		return false
	}
	if !first {
		log.Infow("duplicate webhook event ignored", "eventID", ev.EventID, "redelivery", ev.IsRedelivery)
	}
	return !first
}

// forget 撤销去重标记，否则平台重投时事件会被当作重复丢弃。
func (h *WebhookHandler) forget(c *gin.Context, ev line.TextEvent) {
	if h.events == nil || ev.EventID == "" {
		return
	}
	if err := h.events.Forget(c.Request.Context(), ev.EventID); err != nil {
		log.Errorw("failed to clear event dedupe mark", "eventID", ev.EventID, "error", err)
	}
}
