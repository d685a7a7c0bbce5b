package models

// LotBreakdown is one fragment of a sale's cost basis: how many shares were
// taken from which buy lot, and at what purchase price.
type LotBreakdown struct {
	BuyTransactionID int64   `json:"buy_transaction_id"`
	BuyDate          string  `json:"buy_date"`
	Share            float64 `json:"share"`
	BuyPrice         float64 `json:"buy_price"`
}

// SaleResult is the realized outcome of exactly one sell transaction,
// paired to it by TransactionID. ShortfallShare reports any sell quantity
// that no open lot could cover; it is zero for a fully matched sale.
type SaleResult struct {
	TransactionID    int64          `json:"transaction_id"`
	Symbol           string         `json:"symbol"`
	SellDate         string         `json:"sell_date"`
	Share            float64        `json:"share"`
	SellPrice        float64        `json:"sell_price"`
	CostBasis        float64        `json:"cost_basis"`
	Profit           float64        `json:"profit"`
	ProfitPercentage float64        `json:"profit_percentage"`
	ShortfallShare   float64        `json:"shortfall_share,omitempty"`
	Breakdown        []LotBreakdown `json:"breakdown"`
}

// EnrichedSellTransaction is a sell Transaction with its realized gain data
// attached, preserving every original field.
type EnrichedSellTransaction struct {
	Transaction
	CostBasis        float64        `json:"cost_basis"`
	Profit           float64        `json:"profit"`
	ProfitPercentage float64        `json:"profit_percentage"`
	ShortfallShare   float64        `json:"shortfall_share,omitempty"`
	Breakdown        []LotBreakdown `json:"breakdown"`
}

// OpenLot is the unsold remainder of one buy transaction.
type OpenLot struct {
	TransactionID int64   `json:"transaction_id"`
	BuyDate       string  `json:"buy_date"`
	Share         float64 `json:"share"`
	BuyPrice      float64 `json:"buy_price"`
}

// Price availability for a position. STALE marks a price served from the
// quotes table after a live fetch failed; the unrealized holdings report
// never uses it, only the per-symbol transaction view does.
const (
	PriceStatusOK          = "OK"
	PriceStatusStale       = "STALE"
	PriceStatusUnavailable = "UNAVAILABLE"
)

// UnrealizedHolding is the open position snapshot for one symbol. Market
// value fields are populated only when a current quote was available;
// PriceStatus says which case applies.
type UnrealizedHolding struct {
	Symbol           string    `json:"symbol"`
	RemainingShare   float64   `json:"remaining_share"`
	CostBasis        float64   `json:"cost_basis"`
	Currency         string    `json:"currency"`
	ExchangeRate     float64   `json:"exchange_rate"`
	PriceStatus      string    `json:"price_status"`
	CurrentPrice     float64   `json:"current_price,omitempty"`
	MarketValue      float64   `json:"market_value,omitempty"`
	Profit           float64   `json:"profit,omitempty"`
	ProfitPercentage float64   `json:"profit_percentage,omitempty"`
	Lots             []OpenLot `json:"lots"`
}

// GainsReport is the engine's full output for one trade history: every
// realized sale plus one unrealized snapshot per symbol still holding shares.
type GainsReport struct {
	SaleResults []SaleResult        `json:"sale_results"`
	Holdings    []UnrealizedHolding `json:"holdings"`
}

// Quote is one current-price record from the external feed.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Name      string  `json:"name"`
	Timestamp int64   `json:"timestamp"`
}

// UnrealizedReport is the quote-enriched holdings payload: the snapshots
// (priced where a quote arrived) plus the raw price map keyed by symbol.
type UnrealizedReport struct {
	Holdings      []UnrealizedHolding `json:"unrealized"`
	CurrentPrices map[string]float64  `json:"current_prices"`
}
