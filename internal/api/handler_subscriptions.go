package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"kidsclub-backend/internal/model"
)

type createSubscriptionRequest struct {
	ChildID        int64   `json:"child_id" binding:"required"`
	PackageIDs     []int64 `json:"package_ids" binding:"required"`
	StartDate      string  `json:"start_date"`
	CreatePOSOrder bool    `json:"create_pos_order"`
}

// CreateSubscription purchases a package bundle for a child. The
// entitlement starts in draft and activates on confirmation (or via
// the periodic sweep once its window opens).
func (h *Handler) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now().UTC()
	if req.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date. Use YYYY-MM-DD."})
			return
		}
		start = parsed
	}

	sub, err := h.store.CreateSubscription(c.Request.Context(), req.ChildID, req.PackageIDs, start)
	if err != nil {
		respondError(c, err)
		return
	}

	if req.CreatePOSOrder {
		child, err := h.store.ChildByID(c.Request.Context(), req.ChildID)
		if err != nil {
			respondError(c, err)
			return
		}
		description := fmt.Sprintf("Subscription for %s (%d packages)", child.Name, len(sub.Packages))
		invoiceID, err := h.billing.CreateInvoice(c.Request.Context(), child.GuardianName, description,
			sub.Price, model.InvoiceSubscription)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := h.store.DB().WithContext(c.Request.Context()).
			Model(sub).Update("invoice_id", invoiceID).Error; err != nil {
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusCreated, sub)
}

// ListSubscriptions returns entitlements, optionally filtered to one
// child, newest window first.
func (h *Handler) ListSubscriptions(c *gin.Context) {
	db := h.store.DB().WithContext(c.Request.Context()).Preload("Packages")
	if v := c.Query("child_id"); v != "" {
		childID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid child_id"})
			return
		}
		db = db.Where("child_id = ?", childID)
	}

	var subs []model.Subscription
	if err := db.Order("start_date DESC, id DESC").Find(&subs).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

// GetSubscription returns one entitlement with its packages.
func (h *Handler) GetSubscription(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	var sub model.Subscription
	if err := h.store.DB().WithContext(c.Request.Context()).
		Preload("Packages").First(&sub, id).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subscription":     sub,
		"remaining_visits": sub.RemainingVisits(),
	})
}

// ConfirmSubscription marks an entitlement paid and activates it when
// its window has opened.
func (h *Handler) ConfirmSubscription(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription ID"})
		return
	}

	sub, err := h.store.ConfirmSubscription(c.Request.Context(), id, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}
