package model

import "time"

// PushSubscription holds a guardian's browser push subscription, used
// as one of the OTP delivery channels.
type PushSubscription struct {
	Endpoint      string    `gorm:"primaryKey"`
	P256DH        string    `gorm:"column:p256dh;not null"`
	Auth          string    `gorm:"not null"`
	GuardianEmail string    `gorm:"index;size:256;not null"`
	CreatedAt     time.Time `gorm:"not null"`
}
