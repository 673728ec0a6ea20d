package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"kidsclub-backend/internal/billing"
	"kidsclub-backend/internal/model"
)

type requestCheckinRequest struct {
	ChildID int64  `json:"child_id"`
	Barcode string `json:"barcode"`
	RoomID  *int64 `json:"room_id"`
}

// checkinResponse flattens a session with its live billing breakdown.
type checkinResponse struct {
	ID              int64      `json:"id"`
	Reference       string     `json:"reference"`
	ChildID         int64      `json:"child_id"`
	ChildName       string     `json:"child_name"`
	SubscriptionID  int64      `json:"subscription_id"`
	RoomID          *int64     `json:"room_id,omitempty"`
	State           string     `json:"state"`
	RequestedAt     time.Time  `json:"requested_at"`
	CheckinTime     *time.Time `json:"checkin_time,omitempty"`
	CheckoutTime    *time.Time `json:"checkout_time,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	FreeMinutesUsed int        `json:"free_minutes_used"`
	ExtraMinutes    int        `json:"extra_minutes"`
	ExtraCharge     float64    `json:"extra_charge"`
	Currency        string     `json:"currency"`
	LiveTimer       string     `json:"live_timer"`
	PaymentRequired bool       `json:"payment_required"`
}

func newCheckinResponse(session *model.CheckinSession, usage billing.Usage, now time.Time) checkinResponse {
	resp := checkinResponse{
		ID:              session.ID,
		Reference:       session.Reference,
		ChildID:         session.ChildID,
		ChildName:       session.Child.Name,
		SubscriptionID:  session.SubscriptionID,
		RoomID:          session.RoomID,
		State:           session.State,
		RequestedAt:     session.RequestedAt,
		CheckinTime:     session.CheckinTime,
		CheckoutTime:    session.CheckoutTime,
		DurationMinutes: usage.DurationMinutes,
		FreeMinutesUsed: usage.FreeMinutesUsed,
		ExtraMinutes:    usage.ExtraMinutes,
		ExtraCharge:     usage.ExtraCharge,
		Currency:        session.Currency,
		LiveTimer:       "00:00",
		PaymentRequired: usage.ExtraCharge > 0 && !session.PaymentConfirmed,
	}
	if session.CheckinTime != nil {
		end := now
		if session.CheckoutTime != nil {
			end = *session.CheckoutTime
		}
		resp.LiveTimer = billing.FormatTimer(end.Sub(*session.CheckinTime))
	}
	return resp
}

// RequestCheckin opens a session for a child, by id or scanned badge,
// and sends the check-in OTP to the guardian.
func (h *Handler) RequestCheckin(c *gin.Context) {
	var req requestCheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ChildID == 0 && req.Barcode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "child_id or barcode is required"})
		return
	}

	var (
		session *model.CheckinSession
		err     error
	)
	if req.Barcode != "" {
		session, err = h.checkin.RequestCheckinByBarcode(c.Request.Context(), req.Barcode, req.RoomID)
	} else {
		session, err = h.checkin.RequestCheckin(c.Request.Context(), req.ChildID, req.RoomID)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now().UTC()
	c.JSON(http.StatusCreated, newCheckinResponse(session, billing.SessionUsage(*session, now), now))
}

// GetCheckin returns a session with its live timer and billing
// breakdown. For a checked-in session the numbers run against now.
func (h *Handler) GetCheckin(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	session, usage, err := h.checkin.Usage(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCheckinResponse(session, usage, time.Now().UTC()))
}

type verifyOTPRequest struct {
	Code string `json:"code" binding:"required"`
}

// VerifyCheckinOTP completes a check-in.
func (h *Handler) VerifyCheckinOTP(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.checkin.VerifyCheckinOTP(c.Request.Context(), id, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	now := time.Now().UTC()
	c.JSON(http.StatusOK, newCheckinResponse(session, billing.SessionUsage(*session, now), now))
}

// ResendCheckinOTP re-issues the check-in code.
func (h *Handler) ResendCheckinOTP(c *gin.Context) {
	h.resendOTP(c, h.checkin.ResendCheckinOTP)
}

// ResendCheckoutOTP re-issues the check-out code.
func (h *Handler) ResendCheckoutOTP(c *gin.Context) {
	h.resendOTP(c, h.checkin.ResendCheckoutOTP)
}

func (h *Handler) resendOTP(c *gin.Context, resend func(ctx context.Context, id int64) (*model.CheckinSession, error)) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	session, err := resend(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	now := time.Now().UTC()
	c.JSON(http.StatusOK, newCheckinResponse(session, billing.SessionUsage(*session, now), now))
}

// RequestCheckout starts the checkout flow.
func (h *Handler) RequestCheckout(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	session, err := h.checkin.RequestCheckout(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	now := time.Now().UTC()
	c.JSON(http.StatusOK, newCheckinResponse(session, billing.SessionUsage(*session, now), now))
}

// ConfirmPayment records the overtime payment and issues the checkout
// OTP.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	session, err := h.checkin.ConfirmPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	now := time.Now().UTC()
	c.JSON(http.StatusOK, newCheckinResponse(session, billing.SessionUsage(*session, now), now))
}

// VerifyCheckoutOTP completes the checkout.
func (h *Handler) VerifyCheckoutOTP(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.checkin.VerifyCheckoutOTP(c.Request.Context(), id, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	now := time.Now().UTC()
	c.JSON(http.StatusOK, newCheckinResponse(session, billing.SessionUsage(*session, now), now))
}

// CancelCheckin closes a session without completing it.
func (h *Handler) CancelCheckin(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	session, err := h.checkin.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	now := time.Now().UTC()
	c.JSON(http.StatusOK, newCheckinResponse(session, billing.SessionUsage(*session, now), now))
}

// ListActiveCheckins returns all currently checked-in sessions for the
// reception dashboard.
func (h *Handler) ListActiveCheckins(c *gin.Context) {
	sessions, err := h.store.ActiveSessions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now().UTC()
	response := make([]checkinResponse, 0, len(sessions))
	for i := range sessions {
		response = append(response, newCheckinResponse(&sessions[i], billing.SessionUsage(sessions[i], now), now))
	}
	c.JSON(http.StatusOK, response)
}

// DashboardStats summarizes today's activity.
func (h *Handler) DashboardStats(c *gin.Context) {
	stats, err := h.store.DashboardStats(c.Request.Context(), time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func sessionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid check-in ID"})
		return 0, false
	}
	return id, true
}
