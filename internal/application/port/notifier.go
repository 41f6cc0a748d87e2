package port

import (
	"context"

	"quotebot/internal/domain/model"
)

// Notifier 报价的外发通道（聊天平台、控制台等）
type Notifier interface {
	Notify(ctx context.Context, channel string, q *model.Quote) error
}
