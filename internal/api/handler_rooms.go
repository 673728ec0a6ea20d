package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kidsclub-backend/internal/model"
	"kidsclub-backend/internal/store"
)

type createRoomRequest struct {
	Name       string `json:"name" binding:"required"`
	RoomNumber string `json:"room_number" binding:"required"`
	Capacity   int    `json:"capacity" binding:"required"`
	Supervisor string `json:"supervisor"`
}

// roomResponse flattens a room with its live occupancy.
type roomResponse struct {
	model.Room
	CurrentCheckins int64 `json:"current_checkins"`
	AvailableSpots  int64 `json:"available_spots"`
	IsFull          bool  `json:"is_full"`
}

// CreateRoom adds a room.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room := model.Room{
		Name:       req.Name,
		RoomNumber: req.RoomNumber,
		Capacity:   req.Capacity,
		Supervisor: req.Supervisor,
	}
	if err := h.store.CreateRoom(c.Request.Context(), &room); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

// ListRooms returns all active rooms with their live occupancy.
func (h *Handler) ListRooms(c *gin.Context) {
	db := h.store.DB().WithContext(c.Request.Context())

	var rooms []model.Room
	if err := db.Where("active = ?", true).Order("room_number").Find(&rooms).Error; err != nil {
		respondError(c, err)
		return
	}

	response := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		occupied, err := store.CountCheckedInRoom(db, room.ID, 0)
		if err != nil {
			respondError(c, err)
			return
		}
		available := int64(room.Capacity) - occupied
		if available < 0 {
			available = 0
		}
		response = append(response, roomResponse{
			Room:            room,
			CurrentCheckins: occupied,
			AvailableSpots:  available,
			IsFull:          occupied >= int64(room.Capacity),
		})
	}
	c.JSON(http.StatusOK, response)
}

// GetRoom returns one room with its live occupancy.
func (h *Handler) GetRoom(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID"})
		return
	}

	room, err := h.store.RoomByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	occupied, err := store.CountCheckedInRoom(h.store.DB().WithContext(c.Request.Context()), room.ID, 0)
	if err != nil {
		respondError(c, err)
		return
	}
	available := int64(room.Capacity) - occupied
	if available < 0 {
		available = 0
	}
	c.JSON(http.StatusOK, roomResponse{
		Room:            *room,
		CurrentCheckins: occupied,
		AvailableSpots:  available,
		IsFull:          occupied >= int64(room.Capacity),
	})
}
