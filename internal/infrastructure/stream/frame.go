package stream

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"quotebot/internal/domain/model"
)

// fieldDecoder 单个字段的解码函数，返回消费的字节数
type fieldDecoder struct {
	name string
	typ  protowire.Type
	set  func(f *model.Frame, b []byte) int
}

func str(name string, dst func(*model.Frame) *string) fieldDecoder {
	return fieldDecoder{name, protowire.BytesType, func(f *model.Frame, b []byte) int {
		v, n := protowire.ConsumeBytes(b)
		if n >= 0 {
			*dst(f) = string(v)
		}
		return n
	}}
}

func f32(name string, dst func(*model.Frame) *float32) fieldDecoder {
	return fieldDecoder{name, protowire.Fixed32Type, func(f *model.Frame, b []byte) int {
		v, n := protowire.ConsumeFixed32(b)
		if n >= 0 {
			*dst(f) = math.Float32frombits(v)
		}
		return n
	}}
}

func f64(name string, dst func(*model.Frame) *float64) fieldDecoder {
	return fieldDecoder{name, protowire.Fixed64Type, func(f *model.Frame, b []byte) int {
		v, n := protowire.ConsumeFixed64(b)
		if n >= 0 {
			*dst(f) = math.Float64frombits(v)
		}
		return n
	}}
}

func sint64(name string, dst func(*model.Frame) *int64) fieldDecoder {
	return fieldDecoder{name, protowire.VarintType, func(f *model.Frame, b []byte) int {
		v, n := protowire.ConsumeVarint(b)
		if n >= 0 {
			*dst(f) = protowire.DecodeZigZag(v)
		}
		return n
	}}
}

func enum(name string, set func(*model.Frame, int32)) fieldDecoder {
	return fieldDecoder{name, protowire.VarintType, func(f *model.Frame, b []byte) int {
		v, n := protowire.ConsumeVarint(b)
		if n >= 0 {
			set(f, int32(v))
		}
		return n
	}}
}

// schema 推送帧的固定字段表（字段号不可改动）
var schema = map[protowire.Number]fieldDecoder{
	1:  str("id", func(f *model.Frame) *string { return &f.ID }),
	2:  f32("price", func(f *model.Frame) *float32 { return &f.Price }),
	3:  sint64("time", func(f *model.Frame) *int64 { return &f.Time }),
	4:  str("currency", func(f *model.Frame) *string { return &f.Currency }),
	5:  str("exchange", func(f *model.Frame) *string { return &f.Exchange }),
	6:  enum("quoteType", func(f *model.Frame, v int32) { f.QuoteType = model.QuoteTypeOf(v) }),
	7:  enum("marketHours", func(f *model.Frame, v int32) { f.MarketHours = model.MarketHoursOf(v) }),
	8:  f32("changePercent", func(f *model.Frame) *float32 { return &f.ChangePercent }),
	9:  sint64("dayVolume", func(f *model.Frame) *int64 { return &f.DayVolume }),
	10: f32("dayHigh", func(f *model.Frame) *float32 { return &f.DayHigh }),
	11: f32("dayLow", func(f *model.Frame) *float32 { return &f.DayLow }),
	12: f32("change", func(f *model.Frame) *float32 { return &f.Change }),
	13: str("shortName", func(f *model.Frame) *string { return &f.ShortName }),
	14: sint64("expireDate", func(f *model.Frame) *int64 { return &f.ExpireDate }),
	15: f32("openPrice", func(f *model.Frame) *float32 { return &f.OpenPrice }),
	16: f32("previousClose", func(f *model.Frame) *float32 { return &f.PreviousClose }),
	17: f32("strikePrice", func(f *model.Frame) *float32 { return &f.StrikePrice }),
	18: str("underlyingSymbol", func(f *model.Frame) *string { return &f.UnderlyingSymbol }),
	19: sint64("openInterest", func(f *model.Frame) *int64 { return &f.OpenInterest }),
	20: enum("optionsType", func(f *model.Frame, v int32) { f.OptionsType = model.OptionTypeOf(v) }),
	21: sint64("miniOption", func(f *model.Frame) *int64 { return &f.MiniOption }),
	22: sint64("lastSize", func(f *model.Frame) *int64 { return &f.LastSize }),
	23: f32("bid", func(f *model.Frame) *float32 { return &f.Bid }),
	24: sint64("bidSize", func(f *model.Frame) *int64 { return &f.BidSize }),
	25: f32("ask", func(f *model.Frame) *float32 { return &f.Ask }),
	26: sint64("askSize", func(f *model.Frame) *int64 { return &f.AskSize }),
	27: sint64("priceHint", func(f *model.Frame) *int64 { return &f.PriceHint }),
	28: sint64("vol_24hr", func(f *model.Frame) *int64 { return &f.Vol24Hr }),
	29: sint64("volAllCurrencies", func(f *model.Frame) *int64 { return &f.VolAllCurrencies }),
	30: str("fromcurrency", func(f *model.Frame) *string { return &f.FromCurrency }),
	31: str("lastMarket", func(f *model.Frame) *string { return &f.LastMarket }),
	32: f64("circulatingSupply", func(f *model.Frame) *float64 { return &f.CirculatingSupply }),
	33: f64("marketcap", func(f *model.Frame) *float64 { return &f.MarketCap }),
}

// DecodeFrame 按固定 schema 解码一条推送帧
// 未知字段号跳过；未知枚举值解码为 Unknown；缺少 id 或 price 视为坏帧
func DecodeFrame(b []byte) (*model.Frame, error) {
	f := &model.Frame{}
	var hasID, hasPrice bool

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: tag: %w", model.ErrMalformedFrame, protowire.ParseError(n))
		}
		b = b[n:]

		d, known := schema[num]
		if !known {
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("%w: field %d: %w", model.ErrMalformedFrame, num, protowire.ParseError(m))
			}
			b = b[m:]
			continue
		}
		if typ != d.typ {
			return nil, fmt.Errorf("%w: field %s: wire type %d, want %d", model.ErrMalformedFrame, d.name, typ, d.typ)
		}

		m := d.set(f, b)
		if m < 0 {
			return nil, fmt.Errorf("%w: field %s: %w", model.ErrMalformedFrame, d.name, protowire.ParseError(m))
		}
		b = b[m:]

		switch num {
		case 1:
			hasID = f.ID != ""
		case 2:
			hasPrice = true
		}
	}

	if !hasID {
		return nil, fmt.Errorf("%w: missing id", model.ErrMalformedFrame)
	}
	if !hasPrice {
		return nil, fmt.Errorf("%w: %s: missing price", model.ErrMalformedFrame, f.ID)
	}
	return f, nil
}

// DecodeMessage 解码一条 websocket 文本消息（base64 编码的帧）
func DecodeMessage(text []byte) (*model.Frame, error) {
	s := strings.TrimSpace(string(text))
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var rawErr error
		if b, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr != nil {
			return nil, fmt.Errorf("%w: base64: %w", model.ErrMalformedFrame, err)
		}
	}
	return DecodeFrame(b)
}
