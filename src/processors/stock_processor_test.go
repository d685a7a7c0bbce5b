package processors

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/username/lotfolio/backend/src/models"
)

func buy(id int64, symbol string, share, price float64, date string) models.Transaction {
	return models.Transaction{
		ID: id, Symbol: symbol, Side: models.SideBuy,
		Share: share, Price: price, Currency: models.CurrencyUSD,
		ExchangeRate: 1, Date: date, CreatedAt: date + "T00:00:00Z",
	}
}

func sell(id int64, symbol string, share, price float64, date string) models.Transaction {
	tx := buy(id, symbol, share, price, date)
	tx.Side = models.SideSell
	return tx
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestFIFOWorkedExample(t *testing.T) {
	// B1(100@10), B2(50@20), S(120@30): basis 1400, profit 2200, ~157.14%.
	txs := []models.Transaction{
		buy(1, "AAPL", 100, 10, "2024-01-01"),
		buy(2, "AAPL", 50, 20, "2024-02-01"),
		sell(3, "AAPL", 120, 30, "2024-03-01"),
	}

	report, err := NewStockProcessor().Process(txs)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(report.SaleResults) != 1 {
		t.Fatalf("sale results = %d, want 1", len(report.SaleResults))
	}

	res := report.SaleResults[0]
	if res.TransactionID != 3 {
		t.Fatalf("result paired to tx %d, want 3", res.TransactionID)
	}
	if !almostEqual(res.CostBasis, 1400) {
		t.Errorf("cost basis = %v, want 1400", res.CostBasis)
	}
	if !almostEqual(res.Profit, 2200) {
		t.Errorf("profit = %v, want 2200", res.Profit)
	}
	if math.Abs(res.ProfitPercentage-157.142857) > 1e-4 {
		t.Errorf("profit percentage = %v, want ~157.14", res.ProfitPercentage)
	}
	if res.ShortfallShare != 0 {
		t.Errorf("shortfall = %v, want 0", res.ShortfallShare)
	}

	wantBreakdown := []models.LotBreakdown{
		{BuyTransactionID: 1, BuyDate: "2024-01-01", Share: 100, BuyPrice: 10},
		{BuyTransactionID: 2, BuyDate: "2024-02-01", Share: 20, BuyPrice: 20},
	}
	if !reflect.DeepEqual(res.Breakdown, wantBreakdown) {
		t.Errorf("breakdown = %+v, want %+v", res.Breakdown, wantBreakdown)
	}

	// Partial lot consumption leaves B2 with 30 shares.
	if len(report.Holdings) != 1 {
		t.Fatalf("holdings = %d, want 1", len(report.Holdings))
	}
	h := report.Holdings[0]
	if !almostEqual(h.RemainingShare, 30) || !almostEqual(h.CostBasis, 600) {
		t.Errorf("remaining = %v shares / %v cost, want 30 / 600", h.RemainingShare, h.CostBasis)
	}
	if len(h.Lots) != 1 || h.Lots[0].TransactionID != 2 || !almostEqual(h.Lots[0].Share, 30) {
		t.Errorf("open lots = %+v, want single lot of 30 shares from tx 2", h.Lots)
	}
}

func TestZeroCostBasisGuard(t *testing.T) {
	txs := []models.Transaction{
		sell(1, "TSLA", 10, 50, "2024-01-01"),
	}
	report, err := NewStockProcessor().Process(txs)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	res := report.SaleResults[0]
	if res.CostBasis != 0 {
		t.Errorf("cost basis = %v, want 0", res.CostBasis)
	}
	if res.ProfitPercentage != 0 {
		t.Errorf("profit percentage = %v, want 0 (never NaN/Inf)", res.ProfitPercentage)
	}
	if math.IsNaN(res.ProfitPercentage) || math.IsInf(res.ProfitPercentage, 0) {
		t.Errorf("profit percentage must be finite, got %v", res.ProfitPercentage)
	}
	if !almostEqual(res.ShortfallShare, 10) {
		t.Errorf("shortfall = %v, want 10", res.ShortfallShare)
	}
	if len(report.Holdings) != 0 {
		t.Errorf("holdings = %d, want 0 for fully sold-out symbol", len(report.Holdings))
	}
}

func TestShareConservation(t *testing.T) {
	txs := []models.Transaction{
		buy(1, "NVDA", 10, 100, "2024-01-01"),
		buy(2, "NVDA", 10, 120, "2024-02-01"),
		buy(3, "NVDA", 5, 130, "2024-03-01"),
		sell(4, "NVDA", 8, 150, "2024-04-01"),
		sell(5, "NVDA", 7, 160, "2024-05-01"),
		sell(6, "NVDA", 5, 140, "2024-06-01"),
	}
	report, err := NewStockProcessor().Process(txs)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	var bought, sold float64
	for _, tx := range txs {
		if tx.Side == models.SideBuy {
			bought += tx.Share
		} else {
			sold += tx.Share
		}
	}
	var remaining float64
	for _, h := range report.Holdings {
		remaining += h.RemainingShare
	}
	if !almostEqual(bought-sold, remaining) {
		t.Fatalf("bought-sold = %v but remaining = %v", bought-sold, remaining)
	}
}

func TestDeterminismUnderReordering(t *testing.T) {
	txs := []models.Transaction{
		buy(1, "AAPL", 100, 10, "2024-01-01"),
		buy(2, "AAPL", 50, 20, "2024-02-01"),
		sell(3, "AAPL", 120, 30, "2024-03-01"),
		buy(4, "MSFT", 5, 300, "2024-01-15"),
		sell(5, "MSFT", 2, 350, "2024-02-15"),
		buy(6, "TSLA", 3.5, 200, "2024-01-20"),
	}

	base, err := NewStockProcessor().Process(txs)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]models.Transaction, len(txs))
		copy(shuffled, txs)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got, err := NewStockProcessor().Process(shuffled)
		if err != nil {
			t.Fatalf("Process returned error on shuffle %d: %v", i, err)
		}
		if !reflect.DeepEqual(base, got) {
			t.Fatalf("shuffle %d produced different output", i)
		}
	}
}

func TestIdempotence(t *testing.T) {
	txs := []models.Transaction{
		buy(1, "AAPL", 10, 100, "2024-01-01"),
		sell(2, "AAPL", 4, 110, "2024-02-01"),
	}
	first, err := NewStockProcessor().Process(txs)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	second, err := NewStockProcessor().Process(txs)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("re-running on unchanged input produced different output")
	}
}

func TestDateTieBreakUsesCreatedAt(t *testing.T) {
	// Two buys on the same date: the earlier-ingested one must be consumed first.
	early := buy(1, "AAPL", 10, 10, "2024-01-01")
	early.CreatedAt = "2024-01-01T09:00:00Z"
	late := buy(2, "AAPL", 10, 20, "2024-01-01")
	late.CreatedAt = "2024-01-01T10:00:00Z"

	txs := []models.Transaction{late, early, sell(3, "AAPL", 10, 30, "2024-02-01")}
	report, err := NewStockProcessor().Process(txs)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	res := report.SaleResults[0]
	if len(res.Breakdown) != 1 || res.Breakdown[0].BuyTransactionID != 1 {
		t.Fatalf("breakdown = %+v, want single fragment from tx 1", res.Breakdown)
	}
	if !almostEqual(res.CostBasis, 100) {
		t.Fatalf("cost basis = %v, want 100 (earlier lot at price 10)", res.CostBasis)
	}
}

func TestIdenticalSellsPairedByID(t *testing.T) {
	// Two sells with the same date, share and price must each get their own
	// result, paired by transaction id.
	txs := []models.Transaction{
		buy(1, "AAPL", 20, 10, "2024-01-01"),
		sell(2, "AAPL", 5, 15, "2024-02-01"),
		sell(3, "AAPL", 5, 15, "2024-02-01"),
	}
	report, err := NewStockProcessor().Process(txs)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(report.SaleResults) != 2 {
		t.Fatalf("sale results = %d, want 2", len(report.SaleResults))
	}
	if report.SaleResults[0].TransactionID != 2 || report.SaleResults[1].TransactionID != 3 {
		t.Fatalf("result ids = [%d %d], want [2 3]",
			report.SaleResults[0].TransactionID, report.SaleResults[1].TransactionID)
	}
}

func TestMalformedTransactionRejected(t *testing.T) {
	cases := []struct {
		name string
		tx   models.Transaction
	}{
		{"negative share", buy(1, "AAPL", -5, 10, "2024-01-01")},
		{"zero price", buy(1, "AAPL", 5, 0, "2024-01-01")},
		{"empty symbol", buy(1, "", 5, 10, "2024-01-01")},
		{"bad side", models.Transaction{ID: 1, Symbol: "AAPL", Side: "hold", Share: 1, Price: 1, Date: "2024-01-01"}},
		{"bad date", buy(1, "AAPL", 5, 10, "01-01-2024")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewStockProcessor().Process([]models.Transaction{tc.tx})
			if err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestEmptyInput(t *testing.T) {
	report, err := NewStockProcessor().Process(nil)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(report.SaleResults) != 0 || len(report.Holdings) != 0 {
		t.Fatalf("empty input produced %d sales / %d holdings, want 0 / 0",
			len(report.SaleResults), len(report.Holdings))
	}
}
