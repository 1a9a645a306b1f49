// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// InboundEvent 是一条待处理的用户文本消息，由 webhook 产生，交给 RelayService 处理。
type InboundEvent struct {
	EventID    string `json:"event_id"`
	UserID     string `json:"user_id"`
	Text       string `json:"text"`
	ReplyToken string `json:"reply_token"`
	Timestamp  int64  `json:"timestamp"`
}
