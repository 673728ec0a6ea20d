package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"kidsclub-backend/internal/model"
	"kidsclub-backend/internal/parse"
)

type createChildRequest struct {
	Name             string `json:"name" binding:"required"`
	DateOfBirth      string `json:"date_of_birth" binding:"required"`
	Gender           string `json:"gender"`
	GuardianName     string `json:"guardian_name" binding:"required"`
	GuardianEmail    string `json:"guardian_email"`
	GuardianPhone    string `json:"guardian_phone"`
	EmergencyContact string `json:"emergency_contact"`
	EmergencyPhone   string `json:"emergency_phone"`
	MedicalNotes     string `json:"medical_notes"`
	Allergies        string `json:"allergies"`
}

// CreateChild registers a child and assigns their badge barcode.
func (h *Handler) CreateChild(c *gin.Context) {
	var req createChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date_of_birth. Use YYYY-MM-DD."})
		return
	}

	child := model.Child{
		Name:             req.Name,
		DateOfBirth:      dob,
		Gender:           req.Gender,
		GuardianName:     req.GuardianName,
		GuardianEmail:    req.GuardianEmail,
		GuardianPhone:    req.GuardianPhone,
		EmergencyContact: req.EmergencyContact,
		EmergencyPhone:   req.EmergencyPhone,
		MedicalNotes:     req.MedicalNotes,
		Allergies:        req.Allergies,
		Active:           true,
	}
	if err := h.store.CreateChild(c.Request.Context(), &child); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, child)
}

// ListChildren returns all active children, for the reception search
// screen.
func (h *Handler) ListChildren(c *gin.Context) {
	var children []model.Child
	err := h.store.DB().WithContext(c.Request.Context()).
		Where("active = ?", true).
		Order("name").
		Find(&children).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, children)
}

// GetChild returns one child by id.
func (h *Handler) GetChild(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid child ID"})
		return
	}

	child, err := h.store.ChildByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, child)
}

// GetChildByBarcode resolves a scanned badge to a child record.
func (h *Handler) GetChildByBarcode(c *gin.Context) {
	if _, err := parse.ParseBarcode(c.Param("barcode")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	child, err := h.store.ChildByBarcode(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, child)
}
