package handlers

import (
	"strings"
	"testing"

	"github.com/username/lotfolio/backend/src/models"
)

func validRequest() models.CreateTransactionRequest {
	return models.CreateTransactionRequest{
		Symbol:       "aapl",
		Side:         models.SideBuy,
		Share:        10,
		Price:        150.5,
		Currency:     models.CurrencyUSD,
		ExchangeRate: 1,
		Date:         "2024-03-15",
	}
}

func TestValidateCreateRequestNormalizes(t *testing.T) {
	req := validRequest()
	req.Symbol = "  aapl "
	req.Currency = ""
	req.ExchangeRate = 0
	req.Note = "bought <script>alert(1)</script> on a dip"

	if err := validateCreateRequest(&req); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
	if req.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", req.Symbol)
	}
	if req.Currency != models.CurrencyUSD {
		t.Errorf("currency default = %q, want USD", req.Currency)
	}
	if req.ExchangeRate != 1 {
		t.Errorf("exchange rate default = %v, want 1", req.ExchangeRate)
	}
	if strings.Contains(req.Note, "<script>") {
		t.Errorf("note not sanitized: %q", req.Note)
	}
}

func TestValidateCreateRequestRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.CreateTransactionRequest)
	}{
		{"empty symbol", func(r *models.CreateTransactionRequest) { r.Symbol = "  " }},
		{"bad symbol chars", func(r *models.CreateTransactionRequest) { r.Symbol = "AA PL" }},
		{"unknown side", func(r *models.CreateTransactionRequest) { r.Side = "hold" }},
		{"zero share", func(r *models.CreateTransactionRequest) { r.Share = 0 }},
		{"negative share", func(r *models.CreateTransactionRequest) { r.Share = -1 }},
		{"zero price", func(r *models.CreateTransactionRequest) { r.Price = 0 }},
		{"unknown currency", func(r *models.CreateTransactionRequest) { r.Currency = "EUR" }},
		{"negative exchange rate", func(r *models.CreateTransactionRequest) { r.ExchangeRate = -0.5 }},
		{"bad date format", func(r *models.CreateTransactionRequest) { r.Date = "15-03-2024" }},
		{"impossible date", func(r *models.CreateTransactionRequest) { r.Date = "2024-02-30" }},
		{"negative fee", func(r *models.CreateTransactionRequest) { r.Fee = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			if err := validateCreateRequest(&req); err == nil {
				t.Fatalf("expected rejection for %s", tc.name)
			}
		})
	}
}
