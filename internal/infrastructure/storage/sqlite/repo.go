package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"quotebot/internal/application/port"
	"quotebot/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS latest_quotes (
  symbol TEXT PRIMARY KEY,
  display_name TEXT NOT NULL,
  instrument_type TEXT NOT NULL,
  market_state TEXT NOT NULL,
  source TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT '',
  exchange TEXT NOT NULL DEFAULT '',
  price_json TEXT NOT NULL,
  as_of_ms INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_latest_quotes_updated ON latest_quotes(updated_at);
`)
	return err
}

// UpsertLatestQuote 每个 symbol 只保留最新一条
func (r *Repo) UpsertLatestQuote(ctx context.Context, q *model.Quote) error {
	if !q.Valid() {
		return nil
	}
	price, err := json.Marshal(q.Price)
	if err != nil {
		return fmt.Errorf("marshal price: %w", err)
	}
	var asOf int64
	if !q.AsOf.IsZero() {
		asOf = q.AsOf.UnixMilli()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO latest_quotes(symbol, display_name, instrument_type, market_state, source, currency, exchange, price_json, as_of_ms, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
		display_name=excluded.display_name, instrument_type=excluded.instrument_type,
		market_state=excluded.market_state, source=excluded.source,
		currency=excluded.currency, exchange=excluded.exchange,
		price_json=excluded.price_json, as_of_ms=excluded.as_of_ms, updated_at=excluded.updated_at
	`, q.Symbol, q.DisplayName, string(q.InstrumentType), string(q.MarketState), string(q.Source),
		q.Currency, q.Exchange, string(price), asOf, time.Now().UnixMilli())
	return err
}

// GetLatestQuote 不存在时返回 model.ErrQuoteNotFound
func (r *Repo) GetLatestQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	var (
		q      model.Quote
		it, ms string
		source string
		price  string
		asOf   int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT symbol, display_name, instrument_type, market_state, source, currency, exchange, price_json, as_of_ms
		FROM latest_quotes WHERE symbol=?`, symbol).
		Scan(&q.Symbol, &q.DisplayName, &it, &ms, &source, &q.Currency, &q.Exchange, &price, &asOf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrQuoteNotFound, symbol)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(price), &q.Price); err != nil {
		return nil, fmt.Errorf("unmarshal price: %w", err)
	}
	q.InstrumentType = model.ParseInstrumentType(it)
	q.MarketState = model.ParseMarketState(ms)
	q.Source = model.Source(source)
	if asOf > 0 {
		q.AsOf = time.UnixMilli(asOf)
	}
	return &q, nil
}

var _ port.Repository = (*Repo)(nil)
