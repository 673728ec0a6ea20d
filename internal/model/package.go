package model

import (
	"errors"
	"time"
)

// Validity periods supported by a package.
const (
	ValidityWeekly  = "weekly"
	ValidityMonthly = "monthly"
	ValidityYearly  = "yearly"
	ValidityCustom  = "custom"
)

// Package is a purchasable subscription package granting a visit count
// and a daily time allowance.
type Package struct {
	ID          int64   `gorm:"primaryKey"`
	Name        string  `gorm:"size:256;not null"`
	Description string
	Price       float64 `gorm:"not null"`
	Currency    string  `gorm:"size:8;not null"`

	NumberOfVisits     int    `gorm:"not null"`
	ValidityPeriod     string `gorm:"size:16;not null"`
	CustomValidityDays int

	DailyFreeMinutes     int     `gorm:"not null"`
	MarginMinutes        int     `gorm:"not null"`
	ExtraChargePerMinute float64 `gorm:"not null"`

	Active    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidityDays resolves the validity period to a number of days.
func (p Package) ValidityDays() int {
	switch p.ValidityPeriod {
	case ValidityWeekly:
		return 7
	case ValidityMonthly:
		return 30
	case ValidityYearly:
		return 365
	case ValidityCustom:
		if p.CustomValidityDays > 0 {
			return p.CustomValidityDays
		}
		return 30
	default:
		return 30
	}
}

// Validate checks the package's field constraints before persisting.
func (p Package) Validate() error {
	if p.Name == "" {
		return errors.New("package name cannot be empty")
	}
	if p.Price <= 0 {
		return errors.New("package price must be greater than zero")
	}
	if p.NumberOfVisits <= 0 {
		return errors.New("number of visits must be greater than zero")
	}
	if p.DailyFreeMinutes < 0 {
		return errors.New("daily free minutes cannot be negative")
	}
	if p.MarginMinutes < 0 {
		return errors.New("margin minutes cannot be negative")
	}
	if p.ExtraChargePerMinute < 0 {
		return errors.New("extra charge per minute cannot be negative")
	}
	if p.ValidityPeriod == ValidityCustom && p.CustomValidityDays <= 0 {
		return errors.New("custom validity days must be greater than zero")
	}
	switch p.ValidityPeriod {
	case ValidityWeekly, ValidityMonthly, ValidityYearly, ValidityCustom:
	default:
		return errors.New("unknown validity period")
	}
	return nil
}
