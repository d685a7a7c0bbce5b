package models

// Trade sides. Stored lowercase, matching the side CHECK constraint.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Supported trade currencies.
const (
	CurrencyUSD = "USD"
	CurrencyTWD = "TWD"
)

// Transaction represents one recorded buy or sell event for a security.
// Date carries date precision only (YYYY-MM-DD) and is the ordering key;
// CreatedAt is the ingestion timestamp, used purely as a stable tie-break.
type Transaction struct {
	ID           int64   `json:"id"`
	UserID       int64   `json:"-"`
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"` // "buy" or "sell"
	Share        float64 `json:"share"`
	Price        float64 `json:"price"` // Unit price in the trade's native currency
	Currency     string  `json:"currency"`
	ExchangeRate float64 `json:"exchange_rate"` // Multiplier to the reporting currency, recorded at trade time
	Date         string  `json:"date"`          // YYYY-MM-DD
	Fee          float64 `json:"fee"`
	Tax          float64 `json:"tax"`
	Note         string  `json:"note,omitempty"`
	CreatedAt    string  `json:"created_at"` // RFC3339
}

// CreateTransactionRequest is the payload for recording a new transaction.
type CreateTransactionRequest struct {
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"`
	Share        float64 `json:"share"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	ExchangeRate float64 `json:"exchange_rate"`
	Date         string  `json:"date"`
	Fee          float64 `json:"fee"`
	Tax          float64 `json:"tax"`
	Note         string  `json:"note"`
}
