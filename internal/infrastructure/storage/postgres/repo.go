package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"quotebot/internal/application/port"
	"quotebot/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := &Repo{db: db}
	if err := r.migrate(ctx); err != nil {
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
  price JSONB NOT NULL,
  as_of TIMESTAMPTZ,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	return err
}

func (r *Repo) UpsertLatestQuote(ctx context.Context, q *model.Quote) error {
	if !q.Valid() {
		return nil
	}
	price, err := json.Marshal(q.Price)
	if err != nil {
		return fmt.Errorf("marshal price: %w", err)
	}
	var asOf sql.NullTime
	if !q.AsOf.IsZero() {
		asOf = sql.NullTime{Time: q.AsOf, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO latest_quotes(symbol, display_name, instrument_type, market_state, source, currency, exchange, price, as_of, updated_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT(symbol) DO UPDATE SET
		display_name=EXCLUDED.display_name, instrument_type=EXCLUDED.instrument_type,
		market_state=EXCLUDED.market_state, source=EXCLUDED.source,
		currency=EXCLUDED.currency, exchange=EXCLUDED.exchange,
		price=EXCLUDED.price, as_of=EXCLUDED.as_of, updated_at=now()
	`, q.Symbol, q.DisplayName, string(q.InstrumentType), string(q.MarketState), string(q.Source),
		q.Currency, q.Exchange, string(price), asOf)
	return err
}

var _ port.Repository = (*Repo)(nil)
