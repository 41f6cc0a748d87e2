package stream

import (
	"encoding/base64"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"quotebot/internal/domain/model"
)

type frameBuilder []byte

func (b frameBuilder) str(num protowire.Number, v string) frameBuilder {
	out := protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(out, v)
}

func (b frameBuilder) f32(num protowire.Number, v float32) frameBuilder {
	out := protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(out, math.Float32bits(v))
}

func (b frameBuilder) f64(num protowire.Number, v float64) frameBuilder {
	out := protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(out, math.Float64bits(v))
}

func (b frameBuilder) sint(num protowire.Number, v int64) frameBuilder {
	out := protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(out, protowire.EncodeZigZag(v))
}

func (b frameBuilder) enum(num protowire.Number, v int32) frameBuilder {
	out := protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(out, uint64(v))
}

func quoteFrame(id string, price float32) frameBuilder {
	return frameBuilder(nil).
		str(1, id).
		f32(2, price).
		sint(3, 1_616_784_000_000).
		str(4, "USD").
		str(5, "NYQ").
		enum(6, int32(model.QuoteTypeEquity)).
		enum(7, int32(model.MarketHoursRegular)).
		f32(8, 2.5).
		f32(12, 4.5)
}

func TestDecodeFrame(t *testing.T) {
	t.Parallel()

	b := quoteFrame("GME", 184.5).
		sint(9, 12_345_678).
		str(13, "GameStop").
		f32(16, 180).
		f64(33, 1.25e10)

	f, err := DecodeFrame(b)
	require.NoError(t, err)

	assert.Equal(t, "GME", f.ID)
	assert.InDelta(t, 184.5, f.Price, 1e-6)
	assert.Equal(t, "USD", f.Currency)
	assert.Equal(t, "NYQ", f.Exchange)
	assert.Equal(t, model.QuoteTypeEquity, f.QuoteType)
	assert.Equal(t, model.MarketHoursRegular, f.MarketHours)
	assert.Equal(t, int64(12_345_678), f.DayVolume)
	assert.Equal(t, "GameStop", f.ShortName)
	assert.InDelta(t, 1.25e10, f.MarketCap, 1)
	assert.Equal(t, time.UnixMilli(1_616_784_000_000), f.EventTime())
}

func TestDecodeFrameNegativeSint(t *testing.T) {
	t.Parallel()

	f, err := DecodeFrame(quoteFrame("X", 1).sint(14, -42))
	require.NoError(t, err)
	assert.Equal(t, int64(-42), f.ExpireDate)
}

func TestDecodeFrameUnknownEnumsAndFields(t *testing.T) {
	t.Parallel()

	b := frameBuilder(nil).
		str(1, "BTC-USD").
		f32(2, 60000).
		enum(6, 777).
		enum(7, 9).
		enum(20, 5).
		str(99, "future field").
		sint(100, 7)

	f, err := DecodeFrame(b)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteTypeUnknown, f.QuoteType)
	assert.Equal(t, model.MarketHoursUnknown, f.MarketHours)
	assert.Equal(t, model.OptionTypeUnknown, f.OptionsType)

	q := f.Quote()
	assert.Equal(t, model.InstrumentOther, q.InstrumentType)
	assert.Equal(t, model.MarketOther, q.MarketState)
}

func TestDecodeFrameTruncated(t *testing.T) {
	t.Parallel()

	b := quoteFrame("GME", 184.5)
	for _, cut := range []int{1, 3, 6, len(b) - 1} {
		_, err := DecodeFrame(b[:cut])
		require.ErrorIsf(t, err, model.ErrMalformedFrame, "cut at %d", cut)
	}
}

func TestDecodeFrameWrongWireType(t *testing.T) {
	t.Parallel()

	b := frameBuilder(nil).str(1, "GME").sint(2, 100)
	_, err := DecodeFrame(b)
	require.ErrorIs(t, err, model.ErrMalformedFrame)
}

func TestDecodeFrameMissingRequired(t *testing.T) {
	t.Parallel()

	_, err := DecodeFrame(frameBuilder(nil).f32(2, 1))
	require.ErrorIs(t, err, model.ErrMalformedFrame)

	_, err = DecodeFrame(frameBuilder(nil).str(1, "GME"))
	require.ErrorIs(t, err, model.ErrMalformedFrame)
}

func TestDecodeMessage(t *testing.T) {
	t.Parallel()

	raw := quoteFrame("AAPL", 120.25)

	f, err := DecodeMessage([]byte(base64.StdEncoding.EncodeToString(raw)))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", f.ID)

	f, err = DecodeMessage([]byte(base64.RawStdEncoding.EncodeToString(raw)))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", f.ID)

	_, err = DecodeMessage([]byte("!!not base64!!"))
	require.ErrorIs(t, err, model.ErrMalformedFrame)
}

func TestFrameQuote(t *testing.T) {
	t.Parallel()

	f, err := DecodeFrame(quoteFrame("GME", 184.5))
	require.NoError(t, err)

	q := f.Quote()
	assert.Equal(t, "GME", q.Symbol)
	assert.Equal(t, "GME", q.DisplayName)
	assert.Equal(t, model.InstrumentEquity, q.InstrumentType)
	assert.Equal(t, model.MarketRegular, q.MarketState)
	assert.Equal(t, model.SourceStream, q.Source)
	assert.True(t, q.Valid())
	// 没有 previousClose 时由 price - change 推出
	assert.Equal(t, "180", q.Price.Previous.Num.String())
	assert.Equal(t, "4.5", q.Price.Change.Num.String())
}

func TestFrameEventTimeMicros(t *testing.T) {
	t.Parallel()

	f := &model.Frame{Time: 1_616_784_000_123_456}
	assert.Equal(t, time.UnixMicro(1_616_784_000_123_456), f.EventTime())

	f.Time = 0
	assert.True(t, f.EventTime().IsZero())
}
