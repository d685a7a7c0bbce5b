package processors

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/lotfolio/backend/src/models"
)

type stockProcessorImpl struct{}

// NewStockProcessor creates a new instance of StockProcessor.
func NewStockProcessor() StockProcessor {
	return &stockProcessorImpl{}
}

// Process groups the trade history by symbol, replays each symbol's stream
// chronologically through a FIFO lot queue, and returns every realized sale
// plus an unrealized snapshot per symbol that still holds shares.
//
// The queues live only for the duration of this call; nothing is shared
// across invocations. Output is deterministic regardless of input order:
// trades are stably sorted by date, then created_at, then id, and symbols
// are emitted in lexical order.
func (p *stockProcessorImpl) Process(transactions []models.Transaction) (*models.GainsReport, error) {
	bySymbol := make(map[string][]models.Transaction)
	for i, tx := range transactions {
		if err := validateTransaction(i, tx); err != nil {
			return nil, err
		}
		bySymbol[tx.Symbol] = append(bySymbol[tx.Symbol], tx)
	}

	symbols := make([]string, 0, len(bySymbol))
	for symbol := range bySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	report := &models.GainsReport{}
	for _, symbol := range symbols {
		stream := bySymbol[symbol]
		sortChronologically(stream)

		queue := &lotQueue{}
		results := matchSymbol(stream, queue)
		report.SaleResults = append(report.SaleResults, results...)

		if !queue.isEmpty() {
			report.Holdings = append(report.Holdings, snapshotHolding(symbol, queue))
		}
	}
	return report, nil
}

// matchSymbol runs the FIFO matcher over one symbol's chronological stream,
// mutating the queue and emitting one SaleResult per sell.
func matchSymbol(stream []models.Transaction, queue *lotQueue) []models.SaleResult {
	var results []models.SaleResult
	for _, tx := range stream {
		if tx.Side == models.SideBuy {
			queue.push(lot{
				txID:         tx.ID,
				date:         tx.Date,
				price:        decimal.NewFromFloat(tx.Price),
				share:        decimal.NewFromFloat(tx.Share),
				currency:     tx.Currency,
				exchangeRate: tx.ExchangeRate,
			})
			continue
		}

		sellShare := decimal.NewFromFloat(tx.Share)
		sellPrice := decimal.NewFromFloat(tx.Price)

		consumed := queue.consume(sellShare)

		costBasis := decimal.Zero
		matched := decimal.Zero
		breakdown := make([]models.LotBreakdown, 0, len(consumed))
		for _, frag := range consumed {
			costBasis = costBasis.Add(frag.taken.Mul(frag.price))
			matched = matched.Add(frag.taken)
			breakdown = append(breakdown, models.LotBreakdown{
				BuyTransactionID: frag.txID,
				BuyDate:          frag.date,
				Share:            frag.taken.InexactFloat64(),
				BuyPrice:         frag.price.InexactFloat64(),
			})
		}

		income := sellShare.Mul(sellPrice)
		profit := income.Sub(costBasis)
		profitPercentage := 0.0
		if costBasis.IsPositive() {
			profitPercentage = profit.Div(costBasis).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}

		results = append(results, models.SaleResult{
			TransactionID:    tx.ID,
			Symbol:           tx.Symbol,
			SellDate:         tx.Date,
			Share:            tx.Share,
			SellPrice:        tx.Price,
			CostBasis:        costBasis.InexactFloat64(),
			Profit:           profit.InexactFloat64(),
			ProfitPercentage: profitPercentage,
			ShortfallShare:   sellShare.Sub(matched).InexactFloat64(),
			Breakdown:        breakdown,
		})
	}
	return results
}

// snapshotHolding summarizes a non-empty queue into the symbol's open
// position. Currency and exchange rate are taken from the oldest remaining
// lot, matching how each was recorded at trade time.
func snapshotHolding(symbol string, queue *lotQueue) models.UnrealizedHolding {
	oldest, _ := queue.peekOldest()

	lots := make([]models.OpenLot, 0, len(queue.lots))
	for _, l := range queue.lots {
		lots = append(lots, models.OpenLot{
			TransactionID: l.txID,
			BuyDate:       l.date,
			Share:         l.share.InexactFloat64(),
			BuyPrice:      l.price.InexactFloat64(),
		})
	}

	return models.UnrealizedHolding{
		Symbol:         symbol,
		RemainingShare: queue.totalShare().InexactFloat64(),
		CostBasis:      queue.totalCost().InexactFloat64(),
		Currency:       oldest.currency,
		ExchangeRate:   oldest.exchangeRate,
		PriceStatus:    models.PriceStatusUnavailable,
		Lots:           lots,
	}
}

// sortChronologically orders one symbol's stream by trade date, breaking
// ties with the ingestion timestamp and then the row id. The sort is stable
// so fully tied records keep their input order.
func sortChronologically(stream []models.Transaction) {
	sort.SliceStable(stream, func(i, j int) bool {
		if stream[i].Date != stream[j].Date {
			return stream[i].Date < stream[j].Date
		}
		if stream[i].CreatedAt != stream[j].CreatedAt {
			return stream[i].CreatedAt < stream[j].CreatedAt
		}
		return stream[i].ID < stream[j].ID
	})
}

// validateTransaction fails fast on malformed records; a descriptive error
// names the offending transaction. Historical inconsistencies (sells larger
// than available buys) are deliberately NOT errors.
func validateTransaction(index int, tx models.Transaction) error {
	describe := func(reason string) error {
		return fmt.Errorf("invalid transaction at index %d (id=%d, symbol=%q): %s", index, tx.ID, tx.Symbol, reason)
	}
	if tx.Symbol == "" {
		return describe("symbol is empty")
	}
	if tx.Side != models.SideBuy && tx.Side != models.SideSell {
		return describe(fmt.Sprintf("unknown side %q", tx.Side))
	}
	if tx.Share <= 0 {
		return describe(fmt.Sprintf("share must be positive, got %v", tx.Share))
	}
	if tx.Price <= 0 {
		return describe(fmt.Sprintf("price must be positive, got %v", tx.Price))
	}
	if _, err := time.Parse("2006-01-02", tx.Date); err != nil {
		return describe(fmt.Sprintf("date %q is not YYYY-MM-DD", tx.Date))
	}
	return nil
}
