package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotebot/internal/application/usecase/snapshot"
	"quotebot/internal/domain/model"
	dsvc "quotebot/internal/domain/service"
)

type fakeFetcher struct {
	results []model.RawSnapshot
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(ctx context.Context, symbols []string) ([]model.RawSnapshot, error) {
	f.calls++
	return f.results, f.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	quotes []*model.Quote
	chans  []string
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, channel string, q *model.Quote) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.quotes = append(n.quotes, q)
	n.chans = append(n.chans, channel)
	return nil
}

type recordingRepo struct {
	upserts []string
}

func (r *recordingRepo) UpsertLatestQuote(ctx context.Context, q *model.Quote) error {
	r.upserts = append(r.upserts, q.Symbol)
	return nil
}

func regular(symbol string) model.RawSnapshot {
	v := func(s string) model.Value { return model.NewValue(decimal.RequireFromString(s)) }
	return model.RawSnapshot{
		Symbol:                     symbol,
		QuoteType:                  "EQUITY",
		MarketState:                "REGULAR",
		RegularMarketPrice:         v("10"),
		RegularMarketPreviousClose: v("9"),
		RegularMarketChange:        v("1"),
		RegularMarketChangePercent: v("11.11"),
	}
}

func newService(f *fakeFetcher, n *recordingNotifier, r *recordingRepo) *Service {
	return NewService(ServiceDeps{
		Quotes:   snapshot.NewService(f),
		Gate:     dsvc.NewStalenessGate(),
		Notifier: n,
		Repo:     r,
	})
}

func TestHandleDeliversEachSymbol(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{results: []model.RawSnapshot{regular("GME"), regular("BRK.B")}}
	n := &recordingNotifier{}
	r := &recordingRepo{}
	svc := newService(f, n, r)

	rep, err := svc.Handle(t.Context(), model.Trigger{
		Text:      "Check $GME and $BRK.B now",
		Channel:   "C1",
		EventTime: time.Unix(100, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.calls)
	assert.Equal(t, []string{"GME", "BRK.B"}, rep.Delivered)
	assert.Empty(t, rep.Missing)
	assert.Equal(t, []string{"GME", "BRK.B"}, r.upserts)
	require.Len(t, n.quotes, 2)
	assert.Equal(t, []string{"C1", "C1"}, n.chans)
}

func TestHandleRejectsReplay(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{results: []model.RawSnapshot{regular("GME")}}
	svc := newService(f, &recordingNotifier{}, &recordingRepo{})
	trig := model.Trigger{Text: "$GME", Channel: "C1", EventTime: time.Unix(100, 0)}

	_, err := svc.Handle(t.Context(), trig)
	require.NoError(t, err)

	_, err = svc.Handle(t.Context(), trig)
	require.ErrorIs(t, err, ErrStaleTrigger)
	assert.Equal(t, 1, f.calls)
}

func TestHandleIgnoresTextWithoutSymbols(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	svc := newService(f, &recordingNotifier{}, &recordingRepo{})

	rep, err := svc.Handle(t.Context(), model.Trigger{Text: "good morning", EventTime: time.Unix(100, 0)})
	require.NoError(t, err)
	assert.Empty(t, rep.Delivered)
	assert.Zero(t, f.calls)

	_, ok := svc.deps.Gate.Watermark()
	assert.False(t, ok)
}

func TestHandleMissingAndIncomplete(t *testing.T) {
	t.Parallel()

	broken := regular("AMC")
	broken.RegularMarketPreviousClose = model.Value{}
	f := &fakeFetcher{results: []model.RawSnapshot{regular("GME"), broken}}
	n := &recordingNotifier{}
	svc := newService(f, n, &recordingRepo{})

	rep, err := svc.Handle(t.Context(), model.Trigger{Text: "$GME $AMC $NOPE", EventTime: time.Unix(1, 0)})
	require.NoError(t, err)
	assert.Equal(t, []string{"GME"}, rep.Delivered)
	assert.Equal(t, []string{"NOPE"}, rep.Missing)
	assert.Equal(t, []string{"AMC"}, rep.Failed)
	assert.Len(t, n.quotes, 1)
}

func TestHandleProviderUnavailable(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{err: model.ErrProviderUnavailable}
	svc := newService(f, &recordingNotifier{}, &recordingRepo{})

	_, err := svc.Handle(t.Context(), model.Trigger{Text: "$GME", EventTime: time.Unix(1, 0)})
	require.ErrorIs(t, err, model.ErrProviderUnavailable)
}

func TestHandleNotifyFailure(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{results: []model.RawSnapshot{regular("GME")}}
	n := &recordingNotifier{err: errors.New("channel archived")}
	svc := newService(f, n, &recordingRepo{})

	rep, err := svc.Handle(t.Context(), model.Trigger{Text: "$GME", EventTime: time.Unix(1, 0)})
	require.NoError(t, err)
	assert.Empty(t, rep.Delivered)
	assert.Equal(t, []string{"GME"}, rep.Failed)
}
