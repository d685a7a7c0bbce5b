package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/username/lotfolio/backend/src/database"
	"github.com/username/lotfolio/backend/src/logger"
	"github.com/username/lotfolio/backend/src/model"
	"github.com/username/lotfolio/backend/src/models"
	"github.com/username/lotfolio/backend/src/security/validation"
	"github.com/username/lotfolio/backend/src/services"
	"github.com/username/lotfolio/backend/src/utils"
)

type TransactionHandler struct {
	gainsService services.GainsService
	quoteService services.QuoteService
}

func NewTransactionHandler(gainsService services.GainsService, quoteService services.QuoteService) *TransactionHandler {
	return &TransactionHandler{
		gainsService: gainsService,
		quoteService: quoteService,
	}
}

// validateCreateRequest normalizes and checks a new transaction payload. The
// symbol comes back uppercased and the note sanitized.
func validateCreateRequest(req *models.CreateTransactionRequest) error {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if err := validation.ValidateSymbol(req.Symbol); err != nil {
		return err
	}

	if req.Side != models.SideBuy && req.Side != models.SideSell {
		return fmt.Errorf("side must be %q or %q, got %q", models.SideBuy, models.SideSell, req.Side)
	}
	if err := validation.ValidatePositiveFloat(req.Share, "Share"); err != nil {
		return err
	}
	if err := validation.ValidatePositiveFloat(req.Price, "Price"); err != nil {
		return err
	}

	if req.Currency == "" {
		req.Currency = models.CurrencyUSD
	}
	if req.Currency != models.CurrencyUSD && req.Currency != models.CurrencyTWD {
		return fmt.Errorf("currency must be %q or %q, got %q", models.CurrencyUSD, models.CurrencyTWD, req.Currency)
	}
	if req.ExchangeRate == 0 {
		req.ExchangeRate = 1
	}
	if err := validation.ValidatePositiveFloat(req.ExchangeRate, "Exchange rate"); err != nil {
		return err
	}

	if _, err := validation.ValidateDateString(req.Date, "Date"); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeFloat(req.Fee, "Fee"); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeFloat(req.Tax, "Tax"); err != nil {
		return err
	}

	req.Note = validation.SanitizeText(validation.StripUnprintable(strings.TrimSpace(req.Note)))
	if err := validation.ValidateStringMaxLength(req.Note, validation.MaxNoteLength, "Note"); err != nil {
		return err
	}
	return nil
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	ctxLogger := logger.FromContext(r.Context())

	var req models.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validateCreateRequest(&req); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Sells are checked against the current share balance before being
	// written; historical data already in the DB is never re-checked.
	if req.Side == models.SideSell {
		if err := h.gainsService.ValidateSell(userID, req.Symbol, req.Share); err != nil {
			if errors.Is(err, services.ErrInsufficientShares) {
				utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			ctxLogger.Error("Sell validation failed", "symbol", req.Symbol, "error", err)
			utils.SendJSONError(w, "Failed to validate transaction", http.StatusInternalServerError)
			return
		}
	}

	res, err := database.DB.Exec(`
		INSERT INTO transactions (user_id, symbol, side, share, price, currency, exchange_rate, date, fee, tax, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, req.Symbol, req.Side, req.Share, req.Price, req.Currency, req.ExchangeRate, req.Date, req.Fee, req.Tax, req.Note,
	)
	if err != nil {
		ctxLogger.Error("Failed to insert transaction", "symbol", req.Symbol, "error", err)
		utils.SendJSONError(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}
	txID, _ := res.LastInsertId()

	h.gainsService.InvalidateUserCache(userID)
	ctxLogger.Info("Transaction created", "transactionID", txID, "symbol", req.Symbol, "side", req.Side)

	created, err := h.fetchTransactionByID(userID, txID)
	if err != nil {
		ctxLogger.Error("Failed to read back created transaction", "transactionID", txID, "error", err)
		utils.SendJSONError(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	side := r.URL.Query().Get("side")
	if side != "" && side != models.SideBuy && side != models.SideSell {
		utils.SendJSONError(w, fmt.Sprintf("invalid side filter %q", side), http.StatusBadRequest)
		return
	}

	txs, err := queryTransactions(userID, "", side)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to query transactions", "error", err)
		utils.SendJSONError(w, "Failed to fetch transactions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(txs)
}

// HandleGetTransactionsBySymbol returns one symbol's transactions. With
// side=buy the response carries the symbol's live quote alongside the rows;
// with side=sell each row is enriched with its realized gain.
func (h *TransactionHandler) HandleGetTransactionsBySymbol(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	ctxLogger := logger.FromContext(r.Context())

	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if err := validation.ValidateSymbol(symbol); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	side := r.URL.Query().Get("side")

	w.Header().Set("Content-Type", "application/json")

	switch side {
	case models.SideSell:
		enriched, err := h.gainsService.GetRealizedGains(userID, symbol)
		if err != nil {
			ctxLogger.Error("Failed to compute realized gains", "symbol", symbol, "error", err)
			utils.SendJSONError(w, "Failed to fetch transactions", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(enriched)

	case models.SideBuy:
		txs, err := queryTransactions(userID, symbol, models.SideBuy)
		if err != nil {
			ctxLogger.Error("Failed to query transactions", "symbol", symbol, "error", err)
			utils.SendJSONError(w, "Failed to fetch transactions", http.StatusInternalServerError)
			return
		}
		response := map[string]interface{}{
			"transactions": txs,
			"priceStatus":  models.PriceStatusUnavailable,
		}
		if quote, err := h.quoteService.GetQuote(r.Context(), symbol); err == nil {
			response["priceStatus"] = models.PriceStatusOK
			response["quote"] = quote
		} else {
			ctxLogger.Warn("Quote unavailable for symbol", "symbol", symbol, "error", err)
			// Fall back to the last persisted price, clearly marked stale.
			if cached, dbErr := model.GetQuote(database.DB, symbol); dbErr == nil {
				response["priceStatus"] = models.PriceStatusStale
				response["quote"] = models.Quote{
					Symbol:    cached.Symbol,
					Price:     cached.Price,
					Name:      cached.Name,
					Timestamp: cached.QuoteTS,
				}
				response["priceAsOf"] = cached.FetchedAt
			}
		}
		json.NewEncoder(w).Encode(response)

	case "":
		txs, err := queryTransactions(userID, symbol, "")
		if err != nil {
			ctxLogger.Error("Failed to query transactions", "symbol", symbol, "error", err)
			utils.SendJSONError(w, "Failed to fetch transactions", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(txs)

	default:
		utils.SendJSONError(w, fmt.Sprintf("invalid side filter %q", side), http.StatusBadRequest)
	}
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	ctxLogger := logger.FromContext(r.Context())

	txID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`DELETE FROM transactions WHERE id = ? AND user_id = ?`, txID, userID)
	if err != nil {
		ctxLogger.Error("Failed to delete transaction", "transactionID", txID, "error", err)
		utils.SendJSONError(w, "Failed to delete transaction", http.StatusInternalServerError)
		return
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		utils.SendJSONError(w, "Transaction not found", http.StatusNotFound)
		return
	}

	h.gainsService.InvalidateUserCache(userID)
	ctxLogger.Info("Transaction deleted", "transactionID", txID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *TransactionHandler) fetchTransactionByID(userID, txID int64) (*models.Transaction, error) {
	var tx models.Transaction
	err := database.DB.QueryRow(`
		SELECT id, user_id, symbol, side, share, price, currency, exchange_rate,
		       date, fee, tax, note, created_at
		FROM transactions
		WHERE id = ? AND user_id = ?`, txID, userID,
	).Scan(
		&tx.ID, &tx.UserID, &tx.Symbol, &tx.Side, &tx.Share, &tx.Price,
		&tx.Currency, &tx.ExchangeRate, &tx.Date, &tx.Fee, &tx.Tax, &tx.Note, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// queryTransactions lists a user's transactions, optionally filtered by
// symbol and side, newest first.
func queryTransactions(userID int64, symbol, side string) ([]models.Transaction, error) {
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
	if side != "" {
		query += ` AND side = ?`
		args = append(args, side)
	}
	query += ` ORDER BY date DESC, created_at DESC, id DESC`

	rows, err := database.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions for userID %d: %w", userID, err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var tx models.Transaction
		scanErr := rows.Scan(
			&tx.ID, &tx.UserID, &tx.Symbol, &tx.Side, &tx.Share, &tx.Price,
			&tx.Currency, &tx.ExchangeRate, &tx.Date, &tx.Fee, &tx.Tax, &tx.Note, &tx.CreatedAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("error scanning transaction for userID %d: %w", userID, scanErr)
		}
		transactions = append(transactions, tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transactions for userID %d: %w", userID, err)
	}
	return transactions, nil
}
