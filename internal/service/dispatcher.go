package service

import (
	"context"
	"sync"
	"time"

	"linebot-relay-go/pkg/log"
	"linebot-relay-go/pkg/tasks"
)

// Dispatcher 把已校验的入站事件交给后台处理，调用方不等待处理结果。
type Dispatcher interface {
	Dispatch(ctx context.Context, event tasks.InboundEvent) error
}

// InlineDispatcher 在当前进程内为每个事件启动一个 goroutine。
type InlineDispatcher struct {
	relay   RelayService
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewInlineDispatcher 创建 InlineDispatcher，timeout 限制单个事件的总处理时长。
func NewInlineDispatcher(relay RelayService, timeout time.Duration) *InlineDispatcher {
	return &InlineDispatcher{relay: relay, timeout: timeout}
}

// Dispatch 不继承请求的 ctx，webhook 响应返回后处理仍会继续。
func (d *InlineDispatcher) Dispatch(_ context.Context, event tasks.InboundEvent) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx := context.Background()
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		if err := d.relay.Process(ctx, event); err != nil {
			log.Errorw("failed to process inbound event", "eventID", event.EventID, "userID", event.UserID, "error", err)
		}
	}()
	return nil
}

// Wait 等待所有进行中的事件处理完成，用于优雅关闭。
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
