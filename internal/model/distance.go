package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SiteCounterpartDistance is the derived distance between a site and a counterpart.
// At most one row exists per (SiteID, CounterpartID).
type SiteCounterpartDistance struct {
	ID            uint64          `gorm:"primaryKey"`
	SiteID        uint64          `gorm:"not null;uniqueIndex:ux_site_counterpart"`
	CounterpartID uint64          `gorm:"not null;uniqueIndex:ux_site_counterpart"`
	DistanceKm    decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Version       uint64          `gorm:"not null;default:0"`
	CreatedAt     time.Time       `gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime"`
}

func (SiteCounterpartDistance) TableName() string { return "site_counterpart_distance" }

// SiteDistance is the derived distance between a warehouse (SiteID) and a
// factory (PeerSiteID).
type SiteDistance struct {
	ID         uint64          `gorm:"primaryKey"`
	SiteID     uint64          `gorm:"not null;uniqueIndex:ux_site_peer"`
	PeerSiteID uint64          `gorm:"not null;uniqueIndex:ux_site_peer"`
	DistanceKm decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Version    uint64          `gorm:"not null;default:0"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime"`
}

func (SiteDistance) TableName() string { return "site_distance" }
