package service

import (
	"fmt"
	"strings"

	"quotebot/internal/domain/model"
)

// priceField 原始快照中的一个价格字段
type priceField struct {
	name string
	get  func(*model.RawSnapshot) model.Value
}

var (
	regularPrice    = priceField{"regularMarketPrice", func(r *model.RawSnapshot) model.Value { return r.RegularMarketPrice }}
	regularPrevious = priceField{"regularMarketPreviousClose", func(r *model.RawSnapshot) model.Value { return r.RegularMarketPreviousClose }}
	regularChange   = priceField{"regularMarketChange", func(r *model.RawSnapshot) model.Value { return r.RegularMarketChange }}
	regularPercent  = priceField{"regularMarketChangePercent", func(r *model.RawSnapshot) model.Value { return r.RegularMarketChangePercent }}

	prePrice   = priceField{"preMarketPrice", func(r *model.RawSnapshot) model.Value { return r.PreMarketPrice }}
	preChange  = priceField{"preMarketChange", func(r *model.RawSnapshot) model.Value { return r.PreMarketChange }}
	prePercent = priceField{"preMarketChangePercent", func(r *model.RawSnapshot) model.Value { return r.PreMarketChangePercent }}

	postPrice   = priceField{"postMarketPrice", func(r *model.RawSnapshot) model.Value { return r.PostMarketPrice }}
	postChange  = priceField{"postMarketChange", func(r *model.RawSnapshot) model.Value { return r.PostMarketChange }}
	postPercent = priceField{"postMarketChangePercent", func(r *model.RawSnapshot) model.Value { return r.PostMarketChangePercent }}
)

// priceBranch 一组 current/previous/change/percent 的取值来源
type priceBranch struct {
	name                               string
	current, previous, change, percent priceField
}

var (
	regularBranch = priceBranch{"regular", regularPrice, regularPrevious, regularChange, regularPercent}
	preBranch     = priceBranch{"pre", prePrice, regularPrice, preChange, prePercent}
	postBranch    = priceBranch{"post", postPrice, regularPrice, postChange, postPercent}
)

// branchTable 资产类型 × 交易时段 → 取值分支
// 表中没有的组合一律走 regularBranch：INDEX/ETF/CRYPTOCURRENCY/OTHER 不区分时段，
// EQUITY 的 REGULAR 及未知时段同样使用常规字段
var branchTable = map[model.InstrumentType]map[model.MarketState]priceBranch{
	model.InstrumentEquity: {
		model.MarketPre:      preBranch,
		model.MarketPost:     postBranch,
		model.MarketPostPost: postBranch,
		model.MarketClosed:   postBranch,
	},
}

func branchFor(it model.InstrumentType, ms model.MarketState) priceBranch {
	if row, ok := branchTable[it]; ok {
		if b, ok := row[ms]; ok {
			return b
		}
	}
	return regularBranch
}

// ResolvePrice 根据资产类型和交易时段从原始快照中挑选价格字段
// 所选分支缺少任一字段时返回 ErrIncompleteQuoteFields，不做零值替代
func ResolvePrice(it model.InstrumentType, ms model.MarketState, raw *model.RawSnapshot) (model.PriceFields, error) {
	if raw == nil {
		return model.PriceFields{}, fmt.Errorf("%w: nil snapshot", model.ErrInvalidArgument)
	}

	b := branchFor(it, ms)
	fields := [4]priceField{b.current, b.previous, b.change, b.percent}

	var (
		values  [4]model.Value
		missing []string
	)
	for i, f := range fields {
		v := f.get(raw)
		if !v.Valid {
			missing = append(missing, f.name)
			continue
		}
		values[i] = v
	}
	if len(missing) > 0 {
		return model.PriceFields{}, fmt.Errorf("%w: %s branch missing %s",
			model.ErrIncompleteQuoteFields, b.name, strings.Join(missing, ", "))
	}

	return model.PriceFields{
		Current:  values[0],
		Previous: values[1],
		Change:   values[2],
		Percent:  values[3],
	}, nil
}
