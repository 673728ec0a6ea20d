// Package checkin drives a child's attendance lifecycle: OTP-gated
// check-in, live time tracking, payment-gated checkout, and overtime
// invoicing.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"kidsclub-backend/internal/billing"
	"kidsclub-backend/internal/model"
	"kidsclub-backend/internal/otp"
	"kidsclub-backend/internal/store"
)

// Precondition violations reported to the caller. Nothing is retried;
// a failed operation leaves all prior state unchanged.
var (
	ErrNoActiveEntitlement = errors.New("no active subscription found or no remaining visits")
	ErrAlreadyCheckedIn    = errors.New("child is already checked in")
	ErrRoomFull            = errors.New("room is at full capacity")
	ErrNotCheckedIn        = errors.New("child is not currently checked in")
	ErrPaymentNotRequired  = errors.New("payment confirmation is not required at this stage")
	ErrResendNotAllowed    = errors.New("OTP resend is not allowed in the current state")
	ErrSessionClosed       = errors.New("session is already closed")
)

// OTP purposes, also used as the notification subject line key.
const (
	PurposeCheckin  = "checkin"
	PurposeCheckout = "checkout"
)

// Notifier delivers an issued OTP to the child's guardian. Delivery is
// fire and forget; failures are logged, never surfaced.
type Notifier interface {
	NotifyOTP(session *model.CheckinSession, purpose, code string)
}

// Service is the check-in lifecycle manager.
type Service struct {
	store    store.Store
	billing  billing.Connector
	notifier Notifier
	otpTTL   time.Duration
	now      func() time.Time
}

// NewService wires the lifecycle manager to its collaborators.
func NewService(st store.Store, conn billing.Connector, notifier Notifier, otpTTL time.Duration) *Service {
	if otpTTL <= 0 {
		otpTTL = otp.DefaultTTL
	}
	return &Service{
		store:    st,
		billing:  conn,
		notifier: notifier,
		otpTTL:   otpTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RequestCheckin validates the child's entitlement and room choice,
// opens a session in pending_checkin_otp, and dispatches the check-in
// OTP to the guardian.
func (s *Service) RequestCheckin(ctx context.Context, childID int64, roomID *int64) (*model.CheckinSession, error) {
	now := s.now()

	sub, err := s.store.FindActiveSubscription(ctx, childID, now)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoActiveEntitlement
	}
	if err != nil {
		return nil, err
	}

	code, err := otp.Generate()
	if err != nil {
		return nil, err
	}

	var session model.CheckinSession
	err = s.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := store.ActiveSessionForChild(tx, childID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrAlreadyCheckedIn
		}

		// Capacity is re-queried here, at the moment of mutation,
		// never cached.
		if roomID != nil {
			var room model.Room
			if err := tx.First(&room, *roomID).Error; err != nil {
				return fmt.Errorf("room %d: %w", *roomID, err)
			}
			occupied, err := store.CountCheckedInRoom(tx, *roomID, 0)
			if err != nil {
				return err
			}
			if occupied >= int64(room.Capacity) {
				return ErrRoomFull
			}
		}

		session = model.CheckinSession{
			ChildID:        childID,
			SubscriptionID: sub.ID,
			RoomID:         roomID,
			State:          model.StatePendingCheckinOTP,
			RequestedAt:    now,
			Currency:       sub.Currency,
			CheckinOTP:     model.OTPState{Code: code, SentAt: &now},
		}
		if err := tx.Create(&session).Error; err != nil {
			return fmt.Errorf("failed to create check-in session: %w", err)
		}
		session.Reference = fmt.Sprintf("CHK%05d", session.ID)
		return tx.Model(&session).Update("reference", session.Reference).Error
	})
	if err != nil {
		return nil, err
	}

	loaded, err := s.store.SessionByID(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyOTP(loaded, PurposeCheckin, code)
	return loaded, nil
}

// RequestCheckinByBarcode resolves a scanned badge and opens a session
// for that child.
func (s *Service) RequestCheckinByBarcode(ctx context.Context, barcode string, roomID *int64) (*model.CheckinSession, error) {
	child, err := s.store.ChildByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	return s.RequestCheckin(ctx, child.ID, roomID)
}

// VerifyCheckinOTP completes the check-in. The confirmed check-in time
// is the verification moment, not the request moment, and one visit is
// consumed from the entitlement.
func (s *Service) VerifyCheckinOTP(ctx context.Context, sessionID int64, entered string) (*model.CheckinSession, error) {
	now := s.now()

	err := s.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := store.SessionByID(tx, sessionID)
		if err != nil {
			return err
		}
		if session.State != model.StatePendingCheckinOTP {
			return otp.ErrNoOtpIssued
		}
		if err := otp.Verify(session.CheckinOTP.Code, entered, session.CheckinOTP.SentAt, now, s.otpTTL); err != nil {
			return err
		}

		updates := map[string]any{
			"state":                   model.StateCheckedIn,
			"checkin_time":            now,
			"checkin_otp_verified":    true,
			"checkin_otp_verified_at": now,
		}
		if err := tx.Model(session).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(&model.Subscription{}).
			Where("id = ?", session.SubscriptionID).
			Update("visits_used", gorm.Expr("visits_used + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return s.store.SessionByID(ctx, sessionID)
}

// ResendCheckinOTP re-issues a fresh check-in code without changing
// state. Any previously entered code is superseded.
func (s *Service) ResendCheckinOTP(ctx context.Context, sessionID int64) (*model.CheckinSession, error) {
	return s.resendOTP(ctx, sessionID, PurposeCheckin)
}

// ResendCheckoutOTP re-issues a fresh check-out code.
func (s *Service) ResendCheckoutOTP(ctx context.Context, sessionID int64) (*model.CheckinSession, error) {
	return s.resendOTP(ctx, sessionID, PurposeCheckout)
}

func (s *Service) resendOTP(ctx context.Context, sessionID int64, purpose string) (*model.CheckinSession, error) {
	now := s.now()
	code, err := otp.Generate()
	if err != nil {
		return nil, err
	}

	err = s.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := store.SessionByID(tx, sessionID)
		if err != nil {
			return err
		}

		var updates map[string]any
		switch {
		case purpose == PurposeCheckin && session.State == model.StatePendingCheckinOTP:
			updates = map[string]any{
				"checkin_otp_code":    code,
				"checkin_otp_sent_at": now,
			}
		case purpose == PurposeCheckout && session.State == model.StatePendingCheckoutOTP:
			updates = map[string]any{
				"checkout_otp_code":    code,
				"checkout_otp_sent_at": now,
			}
		default:
			return ErrResendNotAllowed
		}
		return tx.Model(session).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	loaded, err := s.store.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyOTP(loaded, purpose, code)
	return loaded, nil
}

// Usage reports the session's live elapsed time and billing breakdown.
// For a checked-in session it runs against now and is a live timer;
// once checked out it is fixed.
func (s *Service) Usage(ctx context.Context, sessionID int64) (*model.CheckinSession, billing.Usage, error) {
	session, err := s.store.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, billing.Usage{}, err
	}
	return session, billing.SessionUsage(*session, s.now()), nil
}

// RequestCheckout starts the checkout flow. When overtime has accrued
// the session halts in pending_payment until payment is confirmed;
// otherwise the checkout OTP goes out immediately.
func (s *Service) RequestCheckout(ctx context.Context, sessionID int64) (*model.CheckinSession, error) {
	now := s.now()

	var otpCode string
	err := s.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := store.SessionByID(tx, sessionID)
		if err != nil {
			return err
		}
		if session.State != model.StateCheckedIn {
			return ErrNotCheckedIn
		}

		usage := billing.SessionUsage(*session, now)
		if usage.ExtraCharge > 0 {
			return tx.Model(session).Update("state", model.StatePendingPayment).Error
		}

		code, err := otp.Generate()
		if err != nil {
			return err
		}
		otpCode = code
		return tx.Model(session).Updates(map[string]any{
			"state":                model.StatePendingCheckoutOTP,
			"checkout_otp_code":    code,
			"checkout_otp_sent_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	loaded, err := s.store.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if otpCode != "" {
		s.notifier.NotifyOTP(loaded, PurposeCheckout, otpCode)
	}
	return loaded, nil
}

// ConfirmPayment records the overtime payment and issues the checkout
// OTP.
func (s *Service) ConfirmPayment(ctx context.Context, sessionID int64) (*model.CheckinSession, error) {
	now := s.now()
	code, err := otp.Generate()
	if err != nil {
		return nil, err
	}

	err = s.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := store.SessionByID(tx, sessionID)
		if err != nil {
			return err
		}
		if session.State != model.StatePendingPayment {
			return ErrPaymentNotRequired
		}
		return tx.Model(session).Updates(map[string]any{
			"state":                model.StatePendingCheckoutOTP,
			"payment_confirmed":    true,
			"payment_confirmed_at": now,
			"checkout_otp_code":    code,
			"checkout_otp_sent_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	loaded, err := s.store.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyOTP(loaded, PurposeCheckout, code)
	return loaded, nil
}

// VerifyCheckoutOTP completes the checkout: stamps the checkout time,
// persists the final billing snapshot, and creates the overtime
// invoice when a charge accrued. A session links at most one invoice.
func (s *Service) VerifyCheckoutOTP(ctx context.Context, sessionID int64, entered string) (*model.CheckinSession, error) {
	now := s.now()

	err := s.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := store.SessionByID(tx, sessionID)
		if err != nil {
			return err
		}
		if session.State != model.StatePendingCheckoutOTP {
			return otp.ErrNoOtpIssued
		}
		if err := otp.Verify(session.CheckoutOTP.Code, entered, session.CheckoutOTP.SentAt, now, s.otpTTL); err != nil {
			return err
		}

		session.CheckoutTime = &now
		usage := billing.SessionUsage(*session, now)

		updates := map[string]any{
			"state":                    model.StateCheckedOut,
			"checkout_time":            now,
			"checkout_otp_verified":    true,
			"checkout_otp_verified_at": now,
			"duration_minutes":         usage.DurationMinutes,
			"free_minutes_used":        usage.FreeMinutesUsed,
			"extra_minutes":            usage.ExtraMinutes,
			"extra_charge":             usage.ExtraCharge,
		}

		if usage.ExtraCharge > 0 && session.ExtraInvoiceID == nil {
			description := fmt.Sprintf("Extra Time Charges - %s (%d minutes)",
				session.Child.Name, usage.ExtraMinutes)
			invoiceID, err := s.billing.CreateInvoice(ctx, session.Child.GuardianName, description,
				usage.ExtraCharge, model.InvoiceOvertime)
			if err != nil {
				return fmt.Errorf("overtime invoice: %w", err)
			}
			updates["extra_invoice_id"] = invoiceID
		}

		return tx.Model(session).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.store.SessionByID(ctx, sessionID)
}

// Cancel closes a session from any non-terminal state, releasing its
// room slot. Consumed visits are not refunded.
func (s *Service) Cancel(ctx context.Context, sessionID int64) (*model.CheckinSession, error) {
	err := s.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := store.SessionByID(tx, sessionID)
		if err != nil {
			return err
		}
		if session.Terminal() {
			return ErrSessionClosed
		}
		return tx.Model(session).Update("state", model.StateCancelled).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("check-in session %d cancelled", sessionID)
	return s.store.SessionByID(ctx, sessionID)
}

// SetClock overrides the service clock. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}
