package model

import (
	"database/sql"
	"time"

	"github.com/username/lotfolio/backend/src/logger"
)

// CachedQuote is the last successfully fetched quote for a symbol, written
// through by the quote service so a feed outage still leaves a recent price
// on record.
type CachedQuote struct {
	Symbol    string
	Price     float64
	Name      string
	QuoteTS   int64 // Feed-reported timestamp (unix seconds)
	FetchedAt time.Time
}

// UpsertQuote inserts or refreshes the cached quote for a symbol.
func UpsertQuote(db *sql.DB, q CachedQuote) error {
	_, err := db.Exec(`
		INSERT INTO quotes (symbol, price, name, quote_ts, fetched_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			price = excluded.price,
			name = excluded.name,
			quote_ts = excluded.quote_ts,
			fetched_at = excluded.fetched_at`,
		q.Symbol, q.Price, q.Name, q.QuoteTS,
	)
	if err != nil {
		logger.L.Warn("Failed to persist quote", "symbol", q.Symbol, "error", err)
	}
	return err
}

// GetQuote fetches the cached quote for a symbol, if any.
func GetQuote(db *sql.DB, symbol string) (*CachedQuote, error) {
	var q CachedQuote
	err := db.QueryRow(
		`SELECT symbol, price, name, quote_ts, fetched_at FROM quotes WHERE symbol = ?`,
		symbol,
	).Scan(&q.Symbol, &q.Price, &q.Name, &q.QuoteTS, &q.FetchedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}
