package model

import (
	"strings"
	"time"
)

// InstrumentType 行情源给出的资产分类
type InstrumentType string

const (
	InstrumentEquity InstrumentType = "EQUITY"
	InstrumentETF    InstrumentType = "ETF"
	InstrumentIndex  InstrumentType = "INDEX"
	InstrumentCrypto InstrumentType = "CRYPTOCURRENCY"
	InstrumentOther  InstrumentType = "OTHER"
)

// ParseInstrumentType maps a provider classification onto a known type.
// Unrecognised classifications degrade to InstrumentOther.
func ParseInstrumentType(s string) InstrumentType {
	switch t := InstrumentType(strings.ToUpper(strings.TrimSpace(s))); t {
	case InstrumentEquity, InstrumentETF, InstrumentIndex, InstrumentCrypto:
		return t
	default:
		return InstrumentOther
	}
}

// MarketState 交易时段
type MarketState string

const (
	MarketRegular  MarketState = "REGULAR"
	MarketPre      MarketState = "PRE"
	MarketPost     MarketState = "POST"
	MarketPostPost MarketState = "POSTPOST"
	MarketClosed   MarketState = "CLOSED"
	MarketOther    MarketState = "OTHER"
)

// ParseMarketState maps a provider session phase onto a known state.
// Unknown phases become MarketOther, which resolves like MarketRegular.
func ParseMarketState(s string) MarketState {
	switch m := MarketState(strings.ToUpper(strings.TrimSpace(s))); m {
	case MarketRegular, MarketPre, MarketPost, MarketPostPost, MarketClosed:
		return m
	default:
		return MarketOther
	}
}

// Source 报价来源
type Source string

const (
	SourceSnapshot Source = "snapshot"
	SourceStream   Source = "stream"
)

// PriceFields 规范化后的价格字段
type PriceFields struct {
	Current  Value `json:"current"`
	Previous Value `json:"previous"`
	Change   Value `json:"change"`
	Percent  Value `json:"percent"`
}

// Quote 统一的报价记录（快照与推送两条路径共用）
type Quote struct {
	Symbol         string         `json:"symbol"`
	DisplayName    string         `json:"display_name"`
	InstrumentType InstrumentType `json:"instrument_type"`
	MarketState    MarketState    `json:"market_state"`
	Price          PriceFields    `json:"price"`
	Currency       string         `json:"currency,omitempty"`
	Exchange       string         `json:"exchange,omitempty"`
	AsOf           time.Time      `json:"as_of,omitzero"`
	Source         Source         `json:"source"`
}

// Valid reports whether the quote may be forwarded downstream: current and
// previous price must both be present.
func (q *Quote) Valid() bool {
	return q != nil && q.Price.Current.Valid && q.Price.Previous.Valid
}

// Trigger 聊天消息触发事件
type Trigger struct {
	Text      string
	Channel   string
	EventTime time.Time
}
