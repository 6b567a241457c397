package model

import "time"

// Counterpart is an external organisation (vendor, customer, supplier).
type Counterpart struct {
	ID             uint64 `gorm:"primaryKey"`
	Code           string `gorm:"size:20;not null;uniqueIndex"`
	Name           string `gorm:"size:100;not null"`
	BusinessNumber string `gorm:"size:32"`
	CeoName        string `gorm:"size:64"`
	Address        string `gorm:"size:255"`
	Latitude       *float64
	Longitude      *float64
	Status         LifecycleStatus `gorm:"size:20;not null;default:ACTIVE"`
	Version        uint64          `gorm:"not null;default:0"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
}

func (Counterpart) TableName() string { return "counterpart" }

func (c *Counterpart) Deactivate() { c.Status = StatusInactive }
