package services

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/lotfolio/backend/src/database"
	"github.com/username/lotfolio/backend/src/logger"
	"github.com/username/lotfolio/backend/src/models"
	"github.com/username/lotfolio/backend/src/processors"
	"github.com/username/lotfolio/backend/src/utils"
)

const (
	ckGainsReport          = "gains_report_user_%d"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type gainsServiceImpl struct {
	stockProcessor processors.StockProcessor
	quoteService   QuoteService
	reportCache    *cache.Cache
}

func NewGainsService(
	stockProcessor processors.StockProcessor,
	quoteService QuoteService,
	reportCache *cache.Cache,
) GainsService {
	return &gainsServiceImpl{
		stockProcessor: stockProcessor,
		quoteService:   quoteService,
		reportCache:    reportCache,
	}
}

// getReport runs the engine over the user's full trade history, caching the
// result until the next write invalidates it. The report is recomputed from
// scratch each time; nothing persists between invocations.
func (s *gainsServiceImpl) getReport(userID int64) (*models.GainsReport, error) {
	cacheKey := fmt.Sprintf(ckGainsReport, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(*models.GainsReport), nil
	}
	txs, err := fetchUserTransactions(userID, "")
	if err != nil {
		return nil, err
	}
	report, err := s.stockProcessor.Process(txs)
	if err != nil {
		return nil, fmt.Errorf("gains computation failed for user %d: %w", userID, err)
	}
	s.reportCache.Set(cacheKey, report, cache.NoExpiration)
	return report, nil
}

func (s *gainsServiceImpl) GetRealizedGains(userID int64, symbol string) ([]models.EnrichedSellTransaction, error) {
	txs, err := fetchUserTransactions(userID, symbol)
	if err != nil {
		return nil, err
	}
	report, err := s.stockProcessor.Process(txs)
	if err != nil {
		return nil, fmt.Errorf("gains computation failed for user %d: %w", userID, err)
	}

	resultsByID := make(map[int64]models.SaleResult, len(report.SaleResults))
	for _, res := range report.SaleResults {
		resultsByID[res.TransactionID] = res
	}

	enriched := []models.EnrichedSellTransaction{}
	for _, tx := range txs {
		if tx.Side != models.SideSell {
			continue
		}
		res, ok := resultsByID[tx.ID]
		if !ok {
			// Every sell gets a result; treat a hole as a programming error.
			logger.L.Error("Sell transaction missing from engine output", "userID", userID, "transactionID", tx.ID)
			continue
		}
		enriched = append(enriched, models.EnrichedSellTransaction{
			Transaction:      tx,
			CostBasis:        utils.RoundFloat(res.CostBasis, 2),
			Profit:           utils.RoundFloat(res.Profit, 2),
			ProfitPercentage: utils.RoundFloat(res.ProfitPercentage, 2),
			ShortfallShare:   res.ShortfallShare,
			Breakdown:        res.Breakdown,
		})
	}
	return enriched, nil
}

func (s *gainsServiceImpl) GetUnrealizedHoldings(ctx context.Context, userID int64) (*models.UnrealizedReport, error) {
	report, err := s.getReport(userID)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(report.Holdings))
	for _, h := range report.Holdings {
		symbols = append(symbols, h.Symbol)
	}
	quotes := s.quoteService.GetCurrentQuotes(ctx, symbols)

	currentPrices := make(map[string]float64, len(quotes))
	for symbol, quote := range quotes {
		currentPrices[symbol] = quote.Price
	}

	holdings := make([]models.UnrealizedHolding, 0, len(report.Holdings))
	for _, h := range report.Holdings {
		holdings = append(holdings, priceHolding(h, quotes))
	}

	return &models.UnrealizedReport{
		Holdings:      holdings,
		CurrentPrices: currentPrices,
	}, nil
}

// priceHolding merges a quote into one snapshot. The merge key is the symbol
// string the feed returned; a mismatch leaves the snapshot unpriced rather
// than erroring.
func priceHolding(h models.UnrealizedHolding, quotes map[string]models.Quote) models.UnrealizedHolding {
	quote, ok := quotes[h.Symbol]
	if !ok {
		h.PriceStatus = models.PriceStatusUnavailable
		return h
	}
	h.PriceStatus = models.PriceStatusOK
	h.CurrentPrice = quote.Price
	h.MarketValue = utils.RoundFloat(quote.Price*h.RemainingShare, 2)
	h.Profit = utils.RoundFloat(h.MarketValue-h.CostBasis, 2)
	if h.CostBasis > 0 {
		h.ProfitPercentage = utils.RoundFloat((h.MarketValue-h.CostBasis)/h.CostBasis*100, 2)
	}
	return h
}

func (s *gainsServiceImpl) GetOpenLots(userID int64, symbol string) ([]models.OpenLot, error) {
	report, err := s.getReport(userID)
	if err != nil {
		return nil, err
	}
	for _, h := range report.Holdings {
		if h.Symbol == symbol {
			return h.Lots, nil
		}
	}
	return []models.OpenLot{}, nil
}

// ValidateSell checks the aggregate share balance for a symbol before a new
// sell is written. It deliberately lives outside the matcher: the read-side
// engine tolerates historical shortfalls, the write path does not.
func (s *gainsServiceImpl) ValidateSell(userID int64, symbol string, share float64) error {
	var held float64
	err := database.DB.QueryRow(`
		SELECT COALESCE(SUM(CASE WHEN side = 'buy' THEN share ELSE -share END), 0)
		FROM transactions
		WHERE user_id = ? AND symbol = ?`,
		userID, symbol,
	).Scan(&held)
	if err != nil {
		return fmt.Errorf("failed to compute share balance for %s: %w", symbol, err)
	}
	if held < share {
		return fmt.Errorf("%w: holding %v shares of %s, tried to sell %v", ErrInsufficientShares, held, symbol, share)
	}
	return nil
}

func (s *gainsServiceImpl) InvalidateUserCache(userID int64) {
	s.reportCache.Delete(fmt.Sprintf(ckGainsReport, userID))
}

// fetchUserTransactions loads a user's trade history, optionally scoped to
// one symbol, in the engine's required order: date, then ingestion time,
// then row id.
func fetchUserTransactions(userID int64, symbol string) ([]models.Transaction, error) {
	logger.L.Debug("Fetching transactions from DB", "userID", userID, "symbol", symbol)
	query := `
		SELECT id, user_id, symbol, side, share, price, currency, exchange_rate,
		       date, fee, tax, note, created_at
		FROM transactions
		WHERE user_id = ?`
	args := []interface{}{userID}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY date ASC, created_at ASC, id ASC`

	rows, err := database.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions for userID %d: %w", userID, err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		scanErr := rows.Scan(
			&tx.ID, &tx.UserID, &tx.Symbol, &tx.Side, &tx.Share, &tx.Price,
			&tx.Currency, &tx.ExchangeRate, &tx.Date, &tx.Fee, &tx.Tax, &tx.Note, &tx.CreatedAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("error scanning transaction row for userID %d: %w", userID, scanErr)
		}
		transactions = append(transactions, tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transaction rows for userID %d: %w", userID, err)
	}
	return transactions, nil
}
