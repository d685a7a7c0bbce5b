package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/lotfolio/backend/src/database"
	"github.com/username/lotfolio/backend/src/logger"
	"github.com/username/lotfolio/backend/src/model"
	"github.com/username/lotfolio/backend/src/models"
)

// The feed returns an array of field-coded records; the field numbers are a
// stable but undocumented contract. "6" is the close price, "200007" the
// quote timestamp, "200009" the display name and "200010" the symbol key the
// result is merged on.
type quoteResponse struct {
	StatusCode int `json:"statusCode"`
	Data       []struct {
		Close     float64 `json:"6"`
		Timestamp int64   `json:"200007"`
		Name      string  `json:"200009"`
		Symbol    string  `json:"200010"`
	} `json:"data"`
}

type quoteServiceImpl struct {
	httpClient  http.Client
	baseURL     string
	maxInFlight int
	quoteCache  *cache.Cache
	cacheExpiry time.Duration
}

// NewQuoteService creates a quote client for the external price feed.
// Each call carries a bounded timeout so one slow symbol cannot stall a
// whole enrichment batch.
func NewQuoteService(baseURL string, timeout, cacheExpiry time.Duration, maxInFlight int) QuoteService {
	if maxInFlight <= 0 {
		maxInFlight = 8
	}
	return &quoteServiceImpl{
		httpClient:  http.Client{Timeout: timeout},
		baseURL:     baseURL,
		maxInFlight: maxInFlight,
		quoteCache:  cache.New(cacheExpiry, 2*cacheExpiry),
		cacheExpiry: cacheExpiry,
	}
}

// GetCurrentQuotes fans out one fetch per symbol, waits for every outcome,
// and returns only the successes keyed by the symbol the feed reported.
// No retries; a failure simply leaves that symbol out of the map.
func (s *quoteServiceImpl) GetCurrentQuotes(ctx context.Context, symbols []string) map[string]models.Quote {
	results := make(map[string]models.Quote)
	if len(symbols) == 0 {
		return results
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, s.maxInFlight)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			quote, err := s.GetQuote(ctx, sym)
			if err != nil {
				logger.L.Warn("Could not fetch quote, leaving position unpriced", "symbol", sym, "error", err)
				return
			}
			mu.Lock()
			results[quote.Symbol] = quote
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()
	return results
}

// GetQuote fetches one symbol from the feed, going through the short-lived
// in-memory cache first. Successful fetches are written through to the
// quotes table so the last known price survives restarts.
func (s *quoteServiceImpl) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	if cached, found := s.quoteCache.Get(symbol); found {
		return cached.(models.Quote), nil
	}

	url := fmt.Sprintf("%s/USS:%s:STOCK?column=E", s.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Quote{}, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to call quote feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Quote{}, fmt.Errorf("quote feed returned non-OK status %d", resp.StatusCode)
	}

	var data quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return models.Quote{}, fmt.Errorf("failed to decode quote response: %w", err)
	}
	if data.StatusCode != http.StatusOK {
		return models.Quote{}, fmt.Errorf("quote feed envelope reported status %d", data.StatusCode)
	}
	if len(data.Data) == 0 || data.Data[0].Close <= 0 {
		return models.Quote{}, fmt.Errorf("no usable price in quote response")
	}

	record := data.Data[0]
	quote := models.Quote{
		Symbol:    record.Symbol,
		Price:     record.Close,
		Name:      record.Name,
		Timestamp: record.Timestamp,
	}
	// The feed occasionally omits its own symbol field; fall back to the
	// requested one so the quote is still mergeable.
	if quote.Symbol == "" {
		quote.Symbol = symbol
	}

	s.quoteCache.Set(symbol, quote, s.cacheExpiry)
	if database.DB != nil {
		model.UpsertQuote(database.DB, model.CachedQuote{
			Symbol:  quote.Symbol,
			Price:   quote.Price,
			Name:    quote.Name,
			QuoteTS: quote.Timestamp,
		})
	}
	return quote, nil
}
