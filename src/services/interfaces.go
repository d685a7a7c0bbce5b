package services

import (
	"context"
	"errors"

	"github.com/username/lotfolio/backend/src/models"
)

// ErrInsufficientShares is returned by ValidateSell when a requested sale
// exceeds the shares currently held.
var ErrInsufficientShares = errors.New("sell quantity exceeds shares held")

// GainsService is the storage-facing orchestration layer around the FIFO
// engine: it fetches a user's trade history, runs the processor, and merges
// current quotes into the unrealized snapshots.
type GainsService interface {
	// GetRealizedGains returns every sell transaction (optionally scoped to
	// one symbol) with its realized gain data attached by transaction id.
	GetRealizedGains(userID int64, symbol string) ([]models.EnrichedSellTransaction, error)

	// GetUnrealizedHoldings returns all open positions enriched with current
	// quotes. A failed quote leaves that symbol's snapshot unpriced; it never
	// fails the batch.
	GetUnrealizedHoldings(ctx context.Context, userID int64) (*models.UnrealizedReport, error)

	// GetOpenLots returns the remaining open buy lots for one symbol.
	GetOpenLots(userID int64, symbol string) ([]models.OpenLot, error)

	// ValidateSell is the write-path pre-condition: cumulative prior buys
	// minus prior sells must cover the requested share count. Returns
	// ErrInsufficientShares otherwise. The read-side engine itself never
	// rejects; this check is layered on top of it.
	ValidateSell(userID int64, symbol string, share float64) error

	InvalidateUserCache(userID int64)
}

// QuoteService fetches current market prices from the external feed.
type QuoteService interface {
	// GetCurrentQuotes fetches all symbols concurrently and returns only the
	// ones that succeeded. Per-symbol failures are logged and omitted.
	GetCurrentQuotes(ctx context.Context, symbols []string) map[string]models.Quote

	// GetQuote fetches a single symbol's quote.
	GetQuote(ctx context.Context, symbol string) (models.Quote, error)
}
