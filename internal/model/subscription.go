package model

import "time"

// Subscription workflow states.
const (
	SubscriptionDraft     = "draft"
	SubscriptionActive    = "active"
	SubscriptionExpired   = "expired"
	SubscriptionCancelled = "cancelled"
)

// Subscription payment statuses.
const (
	PaymentUnpaid  = "unpaid"
	PaymentPaid    = "paid"
	PaymentPartial = "partial"
)

// Subscription is a child's entitlement: one or more packages granting
// visits and daily minutes within a validity window.
type Subscription struct {
	ID      int64 `gorm:"primaryKey"`
	ChildID int64 `gorm:"index;not null"`

	StartDate time.Time `gorm:"not null"`
	EndDate   time.Time `gorm:"not null"`

	State         string `gorm:"size:16;not null;default:draft"`
	PaymentStatus string `gorm:"size:16;not null;default:unpaid"`

	Price    float64
	Currency string `gorm:"size:8"`

	TotalVisits int `gorm:"not null"`
	VisitsUsed  int `gorm:"not null"`

	InvoiceID *int64

	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Child    Child     `gorm:"constraint:OnDelete:CASCADE"`
	Packages []Package `gorm:"many2many:subscription_packages;"`
}

// RemainingVisits never goes below zero even if usage was over-counted.
func (s Subscription) RemainingVisits() int {
	remaining := s.TotalVisits - s.VisitsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// WithinWindow reports whether the given day falls inside the
// subscription's validity window, inclusive on both ends.
func (s Subscription) WithinWindow(day time.Time) bool {
	d := DateOf(day)
	return !d.Before(DateOf(s.StartDate)) && !d.After(DateOf(s.EndDate))
}

// Usable reports whether the subscription can back a check-in on the
// given day: workflow state active, or still draft but already paid.
func (s Subscription) Usable(day time.Time) bool {
	if s.State != SubscriptionActive && s.PaymentStatus != PaymentPaid {
		return false
	}
	if s.State == SubscriptionExpired || s.State == SubscriptionCancelled {
		return false
	}
	return s.WithinWindow(day) && s.RemainingVisits() > 0
}

// DateOf truncates a timestamp to midnight UTC for date comparisons.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
