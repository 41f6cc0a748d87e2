package model

// RawSnapshot 行情源 quoteResponse.result 中的单个元素，按原样解码，不做任何修正
type RawSnapshot struct {
	Symbol      string `json:"symbol"`
	LongName    string `json:"longName"`
	ShortName   string `json:"shortName"`
	QuoteType   string `json:"quoteType"`
	MarketState string `json:"marketState"`
	Currency    string `json:"currency"`
	Exchange    string `json:"fullExchangeName"`

	RegularMarketPrice         Value `json:"regularMarketPrice"`
	RegularMarketPreviousClose Value `json:"regularMarketPreviousClose"`
	RegularMarketChange        Value `json:"regularMarketChange"`
	RegularMarketChangePercent Value `json:"regularMarketChangePercent"`

	PreMarketPrice         Value `json:"preMarketPrice"`
	PreMarketChange        Value `json:"preMarketChange"`
	PreMarketChangePercent Value `json:"preMarketChangePercent"`

	PostMarketPrice         Value `json:"postMarketPrice"`
	PostMarketChange        Value `json:"postMarketChange"`
	PostMarketChangePercent Value `json:"postMarketChangePercent"`
}
