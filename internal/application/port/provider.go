package port

import (
	"context"

	"quotebot/internal/domain/model"
)

// SnapshotFetcher 一次请求拉取多个代码的原始快照
type SnapshotFetcher interface {
	Fetch(ctx context.Context, symbols []string) ([]model.RawSnapshot, error)
}

// QuoteStream 推送行情会话
type QuoteStream interface {
	Run(ctx context.Context) error
	Updates() <-chan *model.Quote
	Subscribe(symbols ...string) error
	Unsubscribe(symbols ...string) error
	Shutdown() error
}
