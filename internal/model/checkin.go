package model

import "time"

// Check-in session lifecycle states.
const (
	StatePendingCheckinOTP  = "pending_checkin_otp"
	StateCheckedIn          = "checked_in"
	StatePendingPayment     = "pending_payment"
	StatePendingCheckoutOTP = "pending_checkout_otp"
	StateCheckedOut         = "checked_out"
	StateCancelled          = "cancelled"
)

// NonTerminalStates are the states in which a session still occupies
// the child (and, while checked in, a room slot).
var NonTerminalStates = []string{
	StatePendingCheckinOTP,
	StateCheckedIn,
	StatePendingPayment,
	StatePendingCheckoutOTP,
}

// CheckinSession is one check-in-to-check-out lifecycle instance.
type CheckinSession struct {
	ID             int64  `gorm:"primaryKey"`
	Reference      string `gorm:"uniqueIndex;size:32"`
	ChildID        int64  `gorm:"index;not null"`
	SubscriptionID int64  `gorm:"not null"`
	RoomID         *int64 `gorm:"index"`

	State string `gorm:"size:32;not null;default:pending_checkin_otp"`

	RequestedAt time.Time `gorm:"not null"`
	// CheckinTime is stamped at the moment the check-in OTP verifies,
	// not at request time.
	CheckinTime  *time.Time
	CheckoutTime *time.Time

	CheckinOTP  OTPState `gorm:"embedded;embeddedPrefix:checkin_otp_"`
	CheckoutOTP OTPState `gorm:"embedded;embeddedPrefix:checkout_otp_"`

	PaymentConfirmed   bool `gorm:"not null;default:false"`
	PaymentConfirmedAt *time.Time

	// Billing snapshot, persisted once the session completes.
	DurationMinutes int
	FreeMinutesUsed int
	ExtraMinutes    int
	ExtraCharge     float64
	Currency        string `gorm:"size:8"`

	// At most one overtime invoice per session.
	ExtraInvoiceID *int64

	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Child        Child        `gorm:"constraint:OnDelete:CASCADE"`
	Subscription Subscription `gorm:""`
	Room         *Room        `gorm:""`
}

// OTPState holds one issued one-time code. Check-in and check-out each
// carry an independent instance.
type OTPState struct {
	Code       string `gorm:"size:6"`
	SentAt     *time.Time
	Verified   bool `gorm:"not null;default:false"`
	VerifiedAt *time.Time
}

// Terminal reports whether the session has reached a final state.
func (s CheckinSession) Terminal() bool {
	return s.State == StateCheckedOut || s.State == StateCancelled
}
