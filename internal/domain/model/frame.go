package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteType 推送帧中的资产类型枚举
type QuoteType int32

const (
	QuoteTypeUnknown        QuoteType = -1
	QuoteTypeNone           QuoteType = 0
	QuoteTypeAltSymbol      QuoteType = 5
	QuoteTypeHeartbeat      QuoteType = 7
	QuoteTypeEquity         QuoteType = 8
	QuoteTypeIndex          QuoteType = 9
	QuoteTypeMutualFund     QuoteType = 11
	QuoteTypeMoneyMarket    QuoteType = 12
	QuoteTypeOption         QuoteType = 13
	QuoteTypeCurrency       QuoteType = 14
	QuoteTypeWarrant        QuoteType = 15
	QuoteTypeBond           QuoteType = 17
	QuoteTypeFuture         QuoteType = 18
	QuoteTypeETF            QuoteType = 20
	QuoteTypeCommodity      QuoteType = 23
	QuoteTypeECNQuote       QuoteType = 28
	QuoteTypeCryptocurrency QuoteType = 41
	QuoteTypeIndicator      QuoteType = 42
	QuoteTypeIndustry       QuoteType = 1000
)

var quoteTypeNames = map[QuoteType]string{
	QuoteTypeNone:           "NONE",
	QuoteTypeAltSymbol:      "ALTSYMBOL",
	QuoteTypeHeartbeat:      "HEARTBEAT",
	QuoteTypeEquity:         "EQUITY",
	QuoteTypeIndex:          "INDEX",
	QuoteTypeMutualFund:     "MUTUALFUND",
	QuoteTypeMoneyMarket:    "MONEYMARKET",
	QuoteTypeOption:         "OPTION",
	QuoteTypeCurrency:       "CURRENCY",
	QuoteTypeWarrant:        "WARRANT",
	QuoteTypeBond:           "BOND",
	QuoteTypeFuture:         "FUTURE",
	QuoteTypeETF:            "ETF",
	QuoteTypeCommodity:      "COMMODITY",
	QuoteTypeECNQuote:       "ECNQUOTE",
	QuoteTypeCryptocurrency: "CRYPTOCURRENCY",
	QuoteTypeIndicator:      "INDICATOR",
	QuoteTypeIndustry:       "INDUSTRY",
}

// QuoteTypeOf returns QuoteTypeUnknown for values outside the schema.
func QuoteTypeOf(v int32) QuoteType {
	if _, ok := quoteTypeNames[QuoteType(v)]; ok {
		return QuoteType(v)
	}
	return QuoteTypeUnknown
}

func (t QuoteType) String() string {
	if s, ok := quoteTypeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// InstrumentType 映射到统一的资产分类
func (t QuoteType) InstrumentType() InstrumentType {
	switch t {
	case QuoteTypeEquity:
		return InstrumentEquity
	case QuoteTypeETF:
		return InstrumentETF
	case QuoteTypeIndex:
		return InstrumentIndex
	case QuoteTypeCryptocurrency:
		return InstrumentCrypto
	default:
		return InstrumentOther
	}
}

// MarketHours 推送帧中的交易时段枚举
type MarketHours int32

const (
	MarketHoursUnknown  MarketHours = -1
	MarketHoursPre      MarketHours = 0
	MarketHoursRegular  MarketHours = 1
	MarketHoursPost     MarketHours = 2
	MarketHoursExtended MarketHours = 3
)

func MarketHoursOf(v int32) MarketHours {
	if v >= int32(MarketHoursPre) && v <= int32(MarketHoursExtended) {
		return MarketHours(v)
	}
	return MarketHoursUnknown
}

func (h MarketHours) String() string {
	switch h {
	case MarketHoursPre:
		return "PRE_MARKET"
	case MarketHoursRegular:
		return "REGULAR_MARKET"
	case MarketHoursPost:
		return "POST_MARKET"
	case MarketHoursExtended:
		return "EXTENDED_HOURS_MARKET"
	default:
		return "UNKNOWN"
	}
}

// MarketState 映射到统一的交易时段；扩展时段视为 POSTPOST（夜盘）
func (h MarketHours) MarketState() MarketState {
	switch h {
	case MarketHoursPre:
		return MarketPre
	case MarketHoursRegular:
		return MarketRegular
	case MarketHoursPost:
		return MarketPost
	case MarketHoursExtended:
		return MarketPostPost
	default:
		return MarketOther
	}
}

type OptionType int32

const (
	OptionTypeUnknown OptionType = -1
	OptionTypeCall    OptionType = 0
	OptionTypePut     OptionType = 1
)

func OptionTypeOf(v int32) OptionType {
	switch OptionType(v) {
	case OptionTypeCall, OptionTypePut:
		return OptionType(v)
	default:
		return OptionTypeUnknown
	}
}

// Frame 一条解码后的推送消息
type Frame struct {
	ID            string
	Price         float32
	Time          int64 // epoch，毫秒或微秒，见 EventTime
	Currency      string
	Exchange      string
	QuoteType     QuoteType
	MarketHours   MarketHours
	ChangePercent float32
	Change        float32

	// 以下字段只透传
	DayVolume         int64
	DayHigh           float32
	DayLow            float32
	ShortName         string
	ExpireDate        int64
	OpenPrice         float32
	PreviousClose     float32
	StrikePrice       float32
	UnderlyingSymbol  string
	OpenInterest      int64
	OptionsType       OptionType
	MiniOption        int64
	LastSize          int64
	Bid               float32
	BidSize           int64
	Ask               float32
	AskSize           int64
	PriceHint         int64
	Vol24Hr           int64
	VolAllCurrencies  int64
	FromCurrency      string
	LastMarket        string
	CirculatingSupply float64
	MarketCap         float64
}

// microsThreshold separates millisecond from microsecond epochs; ms epochs stay
// below it until the year 5138.
const microsThreshold = 100_000_000_000_000

// EventTime interprets the time field. The feed documents microseconds but
// emits milliseconds in practice, so both are accepted.
func (f *Frame) EventTime() time.Time {
	switch {
	case f.Time <= 0:
		return time.Time{}
	case f.Time < microsThreshold:
		return time.UnixMilli(f.Time)
	default:
		return time.UnixMicro(f.Time)
	}
}

// Quote converts the frame into a canonical quote delta.
func (f *Frame) Quote() *Quote {
	price := decimal.NewFromFloat32(f.Price)
	change := decimal.NewFromFloat32(f.Change)

	previous := price.Sub(change)
	if f.PreviousClose != 0 {
		previous = decimal.NewFromFloat32(f.PreviousClose)
	}

	name := f.ShortName
	if name == "" {
		name = f.ID
	}

	return &Quote{
		Symbol:         f.ID,
		DisplayName:    name,
		InstrumentType: f.QuoteType.InstrumentType(),
		MarketState:    f.MarketHours.MarketState(),
		Price: PriceFields{
			Current:  NewValue(price),
			Previous: NewValue(previous),
			Change:   NewValue(change),
			Percent:  NewValue(decimal.NewFromFloat32(f.ChangePercent)),
		},
		Currency: f.Currency,
		Exchange: f.Exchange,
		AsOf:     f.EventTime(),
		Source:   SourceStream,
	}
}
