package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kidsclub-backend/internal/model"
)

type createPackageRequest struct {
	Name                 string  `json:"name" binding:"required"`
	Description          string  `json:"description"`
	Price                float64 `json:"price" binding:"required"`
	Currency             string  `json:"currency"`
	NumberOfVisits       int     `json:"number_of_visits" binding:"required"`
	ValidityPeriod       string  `json:"validity_period" binding:"required"`
	CustomValidityDays   int     `json:"custom_validity_days"`
	DailyFreeMinutes     int     `json:"daily_free_minutes"`
	MarginMinutes        int     `json:"margin_minutes"`
	ExtraChargePerMinute float64 `json:"extra_charge_per_minute"`
}

// CreatePackage adds a subscription package.
func (h *Handler) CreatePackage(c *gin.Context) {
	var req createPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Currency == "" {
		req.Currency = h.defaultCurrency
	}

	pkg := model.Package{
		Name:                 req.Name,
		Description:          req.Description,
		Price:                req.Price,
		Currency:             req.Currency,
		NumberOfVisits:       req.NumberOfVisits,
		ValidityPeriod:       req.ValidityPeriod,
		CustomValidityDays:   req.CustomValidityDays,
		DailyFreeMinutes:     req.DailyFreeMinutes,
		MarginMinutes:        req.MarginMinutes,
		ExtraChargePerMinute: req.ExtraChargePerMinute,
	}
	if err := h.store.CreatePackage(c.Request.Context(), &pkg); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, pkg)
}

// ListPackages returns all active packages.
func (h *Handler) ListPackages(c *gin.Context) {
	var packages []model.Package
	err := h.store.DB().WithContext(c.Request.Context()).
		Where("active = ?", true).
		Order("name").
		Find(&packages).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, packages)
}
