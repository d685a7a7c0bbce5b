package processors

import (
	"github.com/username/lotfolio/backend/src/models"
)

// StockProcessor reconstructs realized and unrealized gains from a user's
// full trade history using FIFO lot matching.
type StockProcessor interface {
	Process(transactions []models.Transaction) (*models.GainsReport, error)
}
