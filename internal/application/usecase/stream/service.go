package stream

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"quotebot/internal/application/port"
)

type ServiceDeps struct {
	Stream   port.QuoteStream
	Notifier port.Notifier
	Repo     port.Repository
	Channel  string // 推送报价的目标频道
}

// Service 消费推送会话的报价增量
// 推送路径不经过 StalenessGate，帧按接收顺序逐条转发
type Service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) *Service {
	if deps.Repo == nil {
		deps.Repo = port.NewNoopRepo()
	}
	return &Service{deps: deps}
}

func (s *Service) Run(ctx context.Context) error {
	if s.deps.Stream == nil {
		return errors.New("no stream")
	}

	runErr := make(chan error, 1)
	go func() { runErr <- s.deps.Stream.Run(ctx) }()

	updates := s.deps.Stream.Updates()
	var forwarded, skipped int
	for {
		select {
		case <-ctx.Done():
			_ = s.deps.Stream.Shutdown()
			err := <-runErr
			log.Info().Int("forwarded", forwarded).Int("skipped", skipped).Msg("stream service stopped")
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return ctx.Err()

		case q, ok := <-updates:
			if !ok {
				return <-runErr
			}
			if !q.Valid() {
				skipped++
				log.Debug().Str("symbol", q.Symbol).Msg("stream quote incomplete, skipped")
				continue
			}
			if err := s.deps.Repo.UpsertLatestQuote(ctx, q); err != nil {
				log.Warn().Err(err).Str("symbol", q.Symbol).Msg("upsert latest quote failed")
			}
			if s.deps.Notifier != nil {
				if err := s.deps.Notifier.Notify(ctx, s.deps.Channel, q); err != nil {
					log.Error().Err(err).Str("symbol", q.Symbol).Msg("notify failed")
					continue
				}
			}
			forwarded++
		}
	}
}
