package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"kidsclub-backend/internal/billing"
	"kidsclub-backend/internal/checkin"
	"kidsclub-backend/internal/otp"
	"kidsclub-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store           store.Store
	checkin         *checkin.Service
	billing         billing.Connector
	vapidPublicKey  string
	defaultCurrency string
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, svc *checkin.Service, conn billing.Connector, vapidPublicKey, defaultCurrency string) *Handler {
	return &Handler{
		store:           s,
		checkin:         svc,
		billing:         conn,
		vapidPublicKey:  vapidPublicKey,
		defaultCurrency: defaultCurrency,
	}
}

// respondError maps domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, checkin.ErrAlreadyCheckedIn),
		errors.Is(err, checkin.ErrRoomFull),
		errors.Is(err, checkin.ErrSessionClosed),
		errors.Is(err, store.ErrRoomNumberTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, checkin.ErrNoActiveEntitlement),
		errors.Is(err, checkin.ErrNotCheckedIn),
		errors.Is(err, checkin.ErrPaymentNotRequired),
		errors.Is(err, checkin.ErrResendNotAllowed),
		errors.Is(err, otp.ErrNoOtpIssued),
		errors.Is(err, otp.ErrOtpMismatch),
		errors.Is(err, otp.ErrOtpExpired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
