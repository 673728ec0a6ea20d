// Package billing computes time usage and overtime charges for
// check-in sessions and creates the resulting invoices.
package billing

import (
	"fmt"
	"time"

	"kidsclub-backend/internal/model"
)

// Usage is the breakdown of a session's elapsed time against its
// subscription allowance.
type Usage struct {
	DurationMinutes int
	FreeMinutesUsed int
	ExtraMinutes    int
	ExtraCharge     float64
	Currency        string
}

// Allowance is the combined free time granted by a subscription's
// packages before overtime billing starts.
type Allowance struct {
	DailyFreeMinutes int
	MarginMinutes    int
	RatePerMinute    float64
	Currency         string
}

// Total is the number of minutes covered before overage.
func (a Allowance) Total() int {
	return a.DailyFreeMinutes + a.MarginMinutes
}

// ResolveAllowance combines a subscription's packages. When multiple
// packages apply, daily free minutes, margin minutes, and the
// per-minute rate are each taken as the maximum across packages,
// independently.
func ResolveAllowance(sub model.Subscription) Allowance {
	var a Allowance
	a.Currency = sub.Currency
	for _, pkg := range sub.Packages {
		if pkg.DailyFreeMinutes > a.DailyFreeMinutes {
			a.DailyFreeMinutes = pkg.DailyFreeMinutes
		}
		if pkg.MarginMinutes > a.MarginMinutes {
			a.MarginMinutes = pkg.MarginMinutes
		}
		if pkg.ExtraChargePerMinute > a.RatePerMinute {
			a.RatePerMinute = pkg.ExtraChargePerMinute
		}
		if a.Currency == "" {
			a.Currency = pkg.Currency
		}
	}
	return a
}

// ComputeUsage splits a duration into free and overage minutes and
// prices the overage. All quantities are non-negative; the charge is
// zero whenever the overage is zero, regardless of rate.
func ComputeUsage(durationMinutes int, a Allowance) Usage {
	if durationMinutes < 0 {
		durationMinutes = 0
	}
	u := Usage{DurationMinutes: durationMinutes, Currency: a.Currency}

	total := a.Total()
	if durationMinutes <= total {
		u.FreeMinutesUsed = durationMinutes
		return u
	}
	u.FreeMinutesUsed = total
	u.ExtraMinutes = durationMinutes - total
	if a.RatePerMinute > 0 {
		u.ExtraCharge = float64(u.ExtraMinutes) * a.RatePerMinute
	}
	return u
}

// SessionUsage computes usage for a session against the clock. For an
// in-progress session the duration runs to now; once checked out it is
// fixed by the stored checkout time.
func SessionUsage(session model.CheckinSession, now time.Time) Usage {
	a := ResolveAllowance(session.Subscription)
	if session.CheckinTime == nil {
		return Usage{Currency: a.Currency}
	}
	end := now
	if session.CheckoutTime != nil {
		end = *session.CheckoutTime
	}
	minutes := int(end.Sub(*session.CheckinTime).Minutes())
	return ComputeUsage(minutes, a)
}

// FormatTimer renders an elapsed duration as a live timer string,
// MM:SS below one hour and HH:MM:SS above.
func FormatTimer(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	total := int(elapsed.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
