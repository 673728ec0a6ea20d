package billing

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"kidsclub-backend/internal/model"
)

// Connector creates invoices for the configured POS terminal.
type Connector interface {
	CreateInvoice(ctx context.Context, payer, description string, amount float64, kind string) (int64, error)
}

// POSConnector is a gorm-backed Connector. The terminal it targets is
// injected configuration, not a runtime lookup.
type POSConnector struct {
	db         *gorm.DB
	terminalID int64
	currency   string
}

// NewPOSConnector creates a connector bound to one POS terminal.
func NewPOSConnector(db *gorm.DB, terminalID int64, currency string) *POSConnector {
	return &POSConnector{db: db, terminalID: terminalID, currency: currency}
}

// CreateInvoice persists an invoice and returns its id.
func (c *POSConnector) CreateInvoice(ctx context.Context, payer, description string, amount float64, kind string) (int64, error) {
	invoice := model.Invoice{
		Payer:         payer,
		Description:   description,
		Amount:        amount,
		Currency:      c.currency,
		Kind:          kind,
		POSTerminalID: c.terminalID,
		IssueDate:     time.Now().UTC(),
	}
	if err := c.db.WithContext(ctx).Create(&invoice).Error; err != nil {
		return 0, fmt.Errorf("failed to create %s invoice: %w", kind, err)
	}
	return invoice.ID, nil
}
