package port

import (
	"context"

	"quotebot/internal/domain/model"
)

// Repository 最新报价缓存，每个 symbol 只保留一条记录
type Repository interface {
	UpsertLatestQuote(ctx context.Context, q *model.Quote) error
}

type noopRepo struct{}

// NewNoopRepo 未启用任何存储时使用
func NewNoopRepo() Repository { return noopRepo{} }

func (noopRepo) UpsertLatestQuote(ctx context.Context, q *model.Quote) error { return nil }
