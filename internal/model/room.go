package model

import (
	"errors"
	"time"
)

// Room is a supervised play area with a hard capacity limit.
type Room struct {
	ID         int64  `gorm:"primaryKey"`
	Name       string `gorm:"size:128;not null"`
	RoomNumber string `gorm:"size:32;not null"`
	Capacity   int    `gorm:"not null"`
	Supervisor string `gorm:"size:256"`

	Active    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the room's field constraints before persisting.
func (r Room) Validate() error {
	if r.Name == "" {
		return errors.New("room name cannot be empty")
	}
	if r.RoomNumber == "" {
		return errors.New("room number cannot be empty")
	}
	if r.Capacity <= 0 {
		return errors.New("room capacity must be greater than 0")
	}
	return nil
}
