package snapshot

import (
	"fmt"
	"strings"

	"quotebot/internal/domain/model"
	dsvc "quotebot/internal/domain/service"
)

// Normalize 把快照结果转换成统一的 Quote
// 优先取 symbol 一致（忽略大小写）的元素；只有一个元素时直接使用
func Normalize(symbol string, results []model.RawSnapshot) (*model.Quote, error) {
	raw, err := pick(symbol, results)
	if err != nil {
		return nil, err
	}

	it := model.ParseInstrumentType(raw.QuoteType)
	ms := model.ParseMarketState(raw.MarketState)

	price, err := dsvc.ResolvePrice(it, ms, raw)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", symbol, err)
	}

	sym := raw.Symbol
	if sym == "" {
		sym = symbol
	}

	return &model.Quote{
		Symbol:         sym,
		DisplayName:    displayName(raw, sym),
		InstrumentType: it,
		MarketState:    ms,
		Price:          price,
		Currency:       raw.Currency,
		Exchange:       raw.Exchange,
		Source:         model.SourceSnapshot,
	}, nil
}

func pick(symbol string, results []model.RawSnapshot) (*model.RawSnapshot, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrQuoteNotFound, symbol)
	}
	for i := range results {
		if strings.EqualFold(results[i].Symbol, symbol) {
			return &results[i], nil
		}
	}
	if len(results) == 1 {
		return &results[0], nil
	}
	return nil, fmt.Errorf("%w: %s", model.ErrQuoteNotFound, symbol)
}

func displayName(raw *model.RawSnapshot, symbol string) string {
	if n := strings.TrimSpace(raw.LongName); n != "" {
		return n
	}
	if n := strings.TrimSpace(raw.ShortName); n != "" {
		return n
	}
	return symbol
}
