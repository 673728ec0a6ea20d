// Package otp implements issuance and verification of the 6-digit
// one-time codes that gate check-in and check-out confirmations.
package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// DefaultTTL is how long an issued code stays valid.
const DefaultTTL = 5 * time.Minute

// Verification failures. The caller is expected to resend and retry;
// nothing is retried internally.
var (
	ErrNoOtpIssued = errors.New("no OTP has been sent")
	ErrOtpMismatch = errors.New("invalid OTP")
	ErrOtpExpired  = errors.New("OTP has expired")
)

// Generate returns a fresh 6-digit numeric code. Codes are independent
// per issuance; there is no uniqueness constraint across sessions.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Verify checks an entered code against the issued one. Expiry is a
// strict greater-than test: verification at exactly sentAt+ttl still
// succeeds.
func Verify(code, entered string, sentAt *time.Time, now time.Time, ttl time.Duration) error {
	if code == "" || sentAt == nil {
		return ErrNoOtpIssued
	}
	if entered != code {
		return ErrOtpMismatch
	}
	if now.After(sentAt.Add(ttl)) {
		return ErrOtpExpired
	}
	return nil
}
