package model

import "time"

// Invoice kinds.
const (
	InvoiceSubscription = "subscription"
	InvoiceOvertime     = "overtime"
)

// Invoice is a billing document handed to the POS terminal. The session
// and subscription records keep a reference to at most one each.
type Invoice struct {
	ID            int64   `gorm:"primaryKey"`
	Payer         string  `gorm:"size:256;not null"`
	Description   string  `gorm:"not null"`
	Amount        float64 `gorm:"not null"`
	Currency      string  `gorm:"size:8;not null"`
	Kind          string  `gorm:"size:16;not null"`
	POSTerminalID int64
	IssueDate     time.Time `gorm:"not null"`
	CreatedAt     time.Time
}
