package service

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"quotebot/internal/domain/model"
)

func val(s string) model.Value {
	return model.NewValue(decimal.RequireFromString(s))
}

func fullSnapshot() *model.RawSnapshot {
	return &model.RawSnapshot{
		Symbol:                     "GME",
		RegularMarketPrice:         val("180.00"),
		RegularMarketPreviousClose: val("150.00"),
		RegularMarketChange:        val("30.00"),
		RegularMarketChangePercent: val("20.00"),
		PreMarketPrice:             val("185.00"),
		PreMarketChange:            val("5.00"),
		PreMarketChangePercent:     val("2.78"),
		PostMarketPrice:            val("178.00"),
		PostMarketChange:           val("-2.00"),
		PostMarketChangePercent:    val("-1.11"),
	}
}

func assertPrice(t *testing.T, got model.PriceFields, cur, prev, chg, pct string) {
	t.Helper()
	check := func(name string, v model.Value, want string) {
		if !v.Valid {
			t.Fatalf("%s: expected valid value", name)
		}
		if !v.Num.Equal(decimal.RequireFromString(want)) {
			t.Errorf("%s: expected %s, got %s", name, want, v.Num)
		}
	}
	check("current", got.Current, cur)
	check("previous", got.Previous, prev)
	check("change", got.Change, chg)
	check("percent", got.Percent, pct)
}

func TestResolvePriceEquityPre(t *testing.T) {
	got, err := ResolvePrice(model.InstrumentEquity, model.MarketPre, fullSnapshot())
	if err != nil {
		t.Fatalf("ResolvePrice failed: %v", err)
	}
	assertPrice(t, got, "185.00", "180.00", "5.00", "2.78")
}

func TestResolvePriceEquityPostFamily(t *testing.T) {
	for _, ms := range []model.MarketState{model.MarketPost, model.MarketPostPost, model.MarketClosed} {
		got, err := ResolvePrice(model.InstrumentEquity, ms, fullSnapshot())
		if err != nil {
			t.Fatalf("%s: ResolvePrice failed: %v", ms, err)
		}
		assertPrice(t, got, "178.00", "180.00", "-2.00", "-1.11")
	}
}

func TestResolvePriceRegularBranches(t *testing.T) {
	cases := []struct {
		it model.InstrumentType
		ms model.MarketState
	}{
		{model.InstrumentEquity, model.MarketRegular},
		{model.InstrumentEquity, model.MarketOther},
		{model.InstrumentIndex, model.MarketPre},
		{model.InstrumentETF, model.MarketPost},
		{model.InstrumentCrypto, model.MarketClosed},
		{model.InstrumentOther, model.MarketPostPost},
	}
	for _, c := range cases {
		got, err := ResolvePrice(c.it, c.ms, fullSnapshot())
		if err != nil {
			t.Fatalf("%s/%s: ResolvePrice failed: %v", c.it, c.ms, err)
		}
		assertPrice(t, got, "180.00", "150.00", "30.00", "20.00")
	}
}

func TestResolvePriceIndexIgnoresMissingPostFields(t *testing.T) {
	raw := fullSnapshot()
	raw.PostMarketPrice = model.Value{}
	raw.PostMarketChange = model.Value{}

	if _, err := ResolvePrice(model.InstrumentIndex, model.MarketPost, raw); err != nil {
		t.Fatalf("index should resolve from regular fields, got %v", err)
	}
}

func TestResolvePriceMissingField(t *testing.T) {
	raw := fullSnapshot()
	raw.PreMarketChange = model.Value{}

	_, err := ResolvePrice(model.InstrumentEquity, model.MarketPre, raw)
	if !errors.Is(err, model.ErrIncompleteQuoteFields) {
		t.Fatalf("expected ErrIncompleteQuoteFields, got %v", err)
	}
}

func TestResolvePriceMissingRegularPriceInPre(t *testing.T) {
	// pre 分支的 previous 取自 regularMarketPrice
	raw := fullSnapshot()
	raw.RegularMarketPrice = model.Value{}

	_, err := ResolvePrice(model.InstrumentEquity, model.MarketPre, raw)
	if !errors.Is(err, model.ErrIncompleteQuoteFields) {
		t.Fatalf("expected ErrIncompleteQuoteFields, got %v", err)
	}
}

func TestResolvePriceNilSnapshot(t *testing.T) {
	_, err := ResolvePrice(model.InstrumentEquity, model.MarketRegular, nil)
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
