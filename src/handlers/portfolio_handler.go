package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/username/lotfolio/backend/src/logger"
	"github.com/username/lotfolio/backend/src/models"
	"github.com/username/lotfolio/backend/src/security/validation"
	"github.com/username/lotfolio/backend/src/services"
	"github.com/username/lotfolio/backend/src/utils"
)

type PortfolioHandler struct {
	gainsService services.GainsService
}

func NewPortfolioHandler(gainsService services.GainsService) *PortfolioHandler {
	return &PortfolioHandler{
		gainsService: gainsService,
	}
}

// HandleGetRealizedGains returns every sell of the user enriched with its
// FIFO cost basis and profit, optionally scoped to one symbol.
func (h *PortfolioHandler) HandleGetRealizedGains(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol != "" {
		if err := validation.ValidateSymbol(symbol); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	enriched, err := h.gainsService.GetRealizedGains(userID, symbol)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to compute realized gains", "symbol", symbol, "error", err)
		utils.SendJSONError(w, "Failed to compute realized gains", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(enriched)
}

// HandleGetUnrealizedHoldings returns the user's open positions, priced with
// live quotes where available. Symbols whose quote fetch failed come back
// with priceStatus UNAVAILABLE and their cost figures intact.
func (h *PortfolioHandler) HandleGetUnrealizedHoldings(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	report, err := h.gainsService.GetUnrealizedHoldings(r.Context(), userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to compute unrealized holdings", "error", err)
		utils.SendJSONError(w, "Failed to compute holdings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// HandleGetOpenLots returns the surviving buy lots for one symbol, oldest
// first, after all historical sells have been consumed.
func (h *PortfolioHandler) HandleGetOpenLots(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if err := validation.ValidateSymbol(symbol); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	lots, err := h.gainsService.GetOpenLots(userID, symbol)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to fetch open lots", "symbol", symbol, "error", err)
		utils.SendJSONError(w, "Failed to fetch open lots", http.StatusInternalServerError)
		return
	}
	if lots == nil {
		lots = []models.OpenLot{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lots)
}
