package model

import "time"

type SiteKind string

const (
	SiteKindWarehouse SiteKind = "WAREHOUSE"
	SiteKindFactory   SiteKind = "FACTORY"
)

// Valid reports whether k is a known site kind.
func (k SiteKind) Valid() bool {
	_, ok := siteCodePrefixes[k]
	return ok
}

// LifecycleStatus is shared by sites and counterparts. The only transition is
// ACTIVE -> INACTIVE; nothing is ever physically deleted.
type LifecycleStatus string

const (
	StatusActive   LifecycleStatus = "ACTIVE"
	StatusInactive LifecycleStatus = "INACTIVE"
)

func (s LifecycleStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// CanTransitionTo reports whether s may move to next.
func (s LifecycleStatus) CanTransitionTo(next LifecycleStatus) bool {
	return s == next || (s == StatusActive && next == StatusInactive)
}

type Site struct {
	ID        uint64   `gorm:"primaryKey"`
	Code      string   `gorm:"size:20;not null;uniqueIndex"`
	Name      string   `gorm:"size:100;not null"`
	Kind      SiteKind `gorm:"size:20;not null;index"`
	Address   string   `gorm:"size:255"`
	Latitude  *float64
	Longitude *float64
	Status    LifecycleStatus `gorm:"size:20;not null;default:ACTIVE"`
	Version   uint64          `gorm:"not null;default:0"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (Site) TableName() string { return "site" }

func (s *Site) IsWarehouse() bool { return s.Kind == SiteKindWarehouse }

func (s *Site) IsFactory() bool { return s.Kind == SiteKindFactory }

// Deactivate moves the site to INACTIVE.
func (s *Site) Deactivate() { s.Status = StatusInactive }
