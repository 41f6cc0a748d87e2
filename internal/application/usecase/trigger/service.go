package trigger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"quotebot/internal/application/port"
	"quotebot/internal/application/usecase/snapshot"
	"quotebot/internal/domain/model"
	dsvc "quotebot/internal/domain/service"
)

// ErrStaleTrigger 触发事件不晚于水位线，按重放丢弃
var ErrStaleTrigger = errors.New("stale trigger")

type ServiceDeps struct {
	Quotes   *snapshot.Service
	Gate     *dsvc.StalenessGate
	Notifier port.Notifier
	Repo     port.Repository
}

// Report 一次触发的处理结果
type Report struct {
	Symbols   []string
	Delivered []string
	Missing   []string // 行情源没有该代码
	Failed    []string // 字段不完整、通知失败等
}

type Service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) *Service {
	if deps.Gate == nil {
		deps.Gate = dsvc.NewStalenessGate()
	}
	if deps.Repo == nil {
		deps.Repo = port.NewNoopRepo()
	}
	return &Service{deps: deps}
}

// Handle 处理一条聊天消息：提取代码 → 去重 → 一次快照请求 → 逐个规范化并通知
// 没有代码的消息直接忽略，不推进水位线
func (s *Service) Handle(ctx context.Context, t model.Trigger) (*Report, error) {
	symbols := dsvc.ExtractSymbols(t.Text)
	if len(symbols) == 0 {
		return &Report{}, nil
	}
	if !s.deps.Gate.Accept(t.EventTime) {
		log.Debug().
			Time("event_time", t.EventTime).
			Strs("symbols", symbols).
			Msg("trigger rejected by staleness gate")
		return nil, ErrStaleTrigger
	}

	results, err := s.deps.Quotes.Quotes(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("fetch %v: %w", symbols, err)
	}

	rep := &Report{Symbols: symbols}
	for _, r := range results {
		switch {
		case errors.Is(r.Err, model.ErrQuoteNotFound):
			rep.Missing = append(rep.Missing, r.Symbol)
			continue
		case r.Err != nil || !r.Quote.Valid():
			rep.Failed = append(rep.Failed, r.Symbol)
			continue
		}

		if err := s.deps.Repo.UpsertLatestQuote(ctx, r.Quote); err != nil {
			log.Warn().Err(err).Str("symbol", r.Symbol).Msg("upsert latest quote failed")
		}
		if err := s.deps.Notifier.Notify(ctx, t.Channel, r.Quote); err != nil {
			log.Error().Err(err).Str("symbol", r.Symbol).Str("channel", t.Channel).Msg("notify failed")
			rep.Failed = append(rep.Failed, r.Symbol)
			continue
		}
		rep.Delivered = append(rep.Delivered, r.Symbol)
	}

	log.Info().
		Str("channel", t.Channel).
		Strs("delivered", rep.Delivered).
		Strs("missing", rep.Missing).
		Strs("failed", rep.Failed).
		Msg("trigger handled")
	return rep, nil
}
