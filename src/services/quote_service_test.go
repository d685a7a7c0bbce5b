package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func quoteFeedStub(t *testing.T, prices map[string]float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Path shape: /USS:{SYMBOL}:STOCK
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), ":")
		if len(parts) != 3 {
			http.Error(w, "bad path", http.StatusBadRequest)
			return
		}
		symbol := parts[1]
		price, ok := prices[symbol]
		if !ok {
			http.Error(w, "unknown symbol", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"statusCode":200,"data":[{"6":%v,"200007":1714000000,"200009":"%s Inc","200010":"%s"}]}`,
			price, symbol, symbol)
	}))
}

func TestGetQuoteParsesFieldCodedRecord(t *testing.T) {
	srv := quoteFeedStub(t, map[string]float64{"AAPL": 187.5})
	defer srv.Close()

	svc := NewQuoteService(srv.URL, 2*time.Second, time.Minute, 4)
	quote, err := svc.GetQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.Symbol != "AAPL" || quote.Price != 187.5 {
		t.Fatalf("quote = %+v, want AAPL at 187.5", quote)
	}
	if quote.Name != "AAPL Inc" || quote.Timestamp != 1714000000 {
		t.Fatalf("quote metadata = %+v", quote)
	}
}

func TestGetCurrentQuotesIsolatesFailures(t *testing.T) {
	// TSLA is not served: its fetch 500s, AAPL must still be priced.
	srv := quoteFeedStub(t, map[string]float64{"AAPL": 187.5})
	defer srv.Close()

	svc := NewQuoteService(srv.URL, 2*time.Second, time.Minute, 4)
	quotes := svc.GetCurrentQuotes(context.Background(), []string{"AAPL", "TSLA"})

	if len(quotes) != 1 {
		t.Fatalf("quotes = %d entries, want 1", len(quotes))
	}
	if _, ok := quotes["AAPL"]; !ok {
		t.Fatal("AAPL missing from results despite succeeding")
	}
	if _, ok := quotes["TSLA"]; ok {
		t.Fatal("TSLA present despite feed failure")
	}
}

func TestGetQuoteRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"statusCode":200,"data":"not-an-array"}`)
	}))
	defer srv.Close()

	svc := NewQuoteService(srv.URL, 2*time.Second, time.Minute, 4)
	if _, err := svc.GetQuote(context.Background(), "AAPL"); err == nil {
		t.Fatal("malformed body accepted")
	}
}

func TestGetQuoteRejectsErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"statusCode":404,"data":[]}`)
	}))
	defer srv.Close()

	svc := NewQuoteService(srv.URL, 2*time.Second, time.Minute, 4)
	if _, err := svc.GetQuote(context.Background(), "AAPL"); err == nil {
		t.Fatal("error envelope accepted")
	}
}

func TestGetQuoteUsesCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"statusCode":200,"data":[{"6":10,"200007":1,"200009":"X","200010":"X"}]}`)
	}))
	defer srv.Close()

	svc := NewQuoteService(srv.URL, 2*time.Second, time.Minute, 4)
	ctx := context.Background()
	if _, err := svc.GetQuote(ctx, "X"); err != nil {
		t.Fatalf("first GetQuote: %v", err)
	}
	if _, err := svc.GetQuote(ctx, "X"); err != nil {
		t.Fatalf("second GetQuote: %v", err)
	}
	if calls != 1 {
		t.Fatalf("feed called %d times, want 1 (second hit served from cache)", calls)
	}
}

func TestGetCurrentQuotesEmptyInput(t *testing.T) {
	svc := NewQuoteService("http://127.0.0.1:0", time.Second, time.Minute, 4)
	quotes := svc.GetCurrentQuotes(context.Background(), nil)
	if len(quotes) != 0 {
		t.Fatalf("quotes = %d entries, want 0", len(quotes))
	}
}
