package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"quotebot/internal/application/port"
	"quotebot/internal/domain/model"
)

// Result 单个代码的查询结果，Err 与 Quote 互斥
type Result struct {
	Symbol string
	Quote  *model.Quote
	Err    error
}

type Service struct {
	fetcher port.SnapshotFetcher
}

func NewService(fetcher port.SnapshotFetcher) *Service {
	return &Service{fetcher: fetcher}
}

// Quote 查询单个代码
func (s *Service) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", model.ErrInvalidArgument)
	}
	results, err := s.fetcher.Fetch(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	return Normalize(symbol, results)
}

// Quotes 一次请求查询多个代码，单个代码失败不影响其他代码
// 请求本身失败时返回 error，不产生任何 Result
func (s *Service) Quotes(ctx context.Context, symbols []string) ([]Result, error) {
	symbols = cleanSymbols(symbols)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols", model.ErrInvalidArgument)
	}
	results, err := s.fetcher.Fetch(ctx, symbols)
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string][]model.RawSnapshot, len(results))
	for _, r := range results {
		key := strings.ToUpper(r.Symbol)
		bySymbol[key] = append(bySymbol[key], r)
	}

	out := make([]Result, 0, len(symbols))
	for _, sym := range symbols {
		candidates := bySymbol[strings.ToUpper(sym)]
		// 单代码请求时行情源可能返回别名（如 BRK-B 对应 BRK.B）
		if len(candidates) == 0 && len(symbols) == 1 {
			candidates = results
		}
		q, err := Normalize(sym, candidates)
		if err != nil {
			ev := log.Warn()
			if errors.Is(err, model.ErrQuoteNotFound) {
				ev = log.Info()
			}
			ev.Str("symbol", sym).Err(err).Msg("snapshot normalize failed")
		}
		out = append(out, Result{Symbol: sym, Quote: q, Err: err})
	}
	return out, nil
}

// cleanSymbols 去掉首尾空白并丢弃空代码，与行情源请求时的规则一致
func cleanSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
