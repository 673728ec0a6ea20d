package model

import "time"

// Child represents a registered child and their guardian contact details.
type Child struct {
	ID            int64  `gorm:"primaryKey"`
	Name          string `gorm:"size:256;not null"`
	BarcodeID     string `gorm:"uniqueIndex;size:32;not null"`
	DateOfBirth   time.Time
	Gender        string `gorm:"size:16"`
	GuardianName  string `gorm:"size:256;not null"`
	GuardianEmail string `gorm:"size:256"`
	GuardianPhone string `gorm:"size:64"`

	EmergencyContact string `gorm:"size:256"`
	EmergencyPhone   string `gorm:"size:64"`
	MedicalNotes     string
	Allergies        string

	Active           bool `gorm:"not null;default:true"`
	RegistrationDate time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Associations
	Subscriptions []Subscription `gorm:"foreignKey:ChildID"`
}

// Age returns the child's age in whole years at the given date.
func (c Child) Age(at time.Time) int {
	age := at.Year() - c.DateOfBirth.Year()
	if at.Month() < c.DateOfBirth.Month() ||
		(at.Month() == c.DateOfBirth.Month() && at.Day() < c.DateOfBirth.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
