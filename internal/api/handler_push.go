package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"

	"kidsclub-backend/internal/model"
)

type putPushSubscriptionRequest struct {
	Endpoint      string `json:"endpoint" binding:"required"`
	P256DH        string `json:"p256dh" binding:"required"`
	Auth          string `json:"auth" binding:"required"`
	GuardianEmail string `json:"guardian_email" binding:"required"`
}

// PutPushSubscription registers or replaces a guardian's browser push
// subscription, used as an OTP delivery channel.
func (h *Handler) PutPushSubscription(c *gin.Context) {
	var req putPushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subscription := model.PushSubscription{
		Endpoint:      req.Endpoint,
		P256DH:        req.P256DH,
		Auth:          req.Auth,
		GuardianEmail: req.GuardianEmail,
		CreatedAt:     time.Now().UTC(),
	}
	err := h.store.DB().WithContext(c.Request.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "guardian_email"}),
		}).Create(&subscription).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

type deletePushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeletePushSubscription removes a registered endpoint.
func (h *Handler) DeletePushSubscription(c *gin.Context) {
	var req deletePushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.store.DB().WithContext(c.Request.Context()).
		Delete(&model.PushSubscription{Endpoint: req.Endpoint}).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetVAPIDPublicKey exposes the key browsers need to subscribe.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"public_key": h.vapidPublicKey})
}
