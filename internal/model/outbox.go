package model

import "time"

type OutboxStatus string

const (
	OutboxReady     OutboxStatus = "READY"
	OutboxPublished OutboxStatus = "PUBLISHED"
	OutboxFailed    OutboxStatus = "FAILED"
)

// Aggregate types select the wire shape and topic of an outbox row.
const (
	AggregateWarehouse               = "WAREHOUSE"
	AggregateFactory                 = "FACTORY"
	AggregateCounterpart             = "COUNTERPART"
	AggregateSiteCounterpartDistance = "SITE_COUNTERPART_DISTANCE"
	AggregateSiteFactoryDistance     = "SITE_FACTORY_DISTANCE"
	// AggregateDistance is the legacy catch-all distance type; the event type
	// decides which distance shape it carries.
	AggregateDistance = "DISTANCE"
)

const (
	EventSiteCreated            = "SiteCreated"
	EventSiteUpdated            = "SiteUpdated"
	EventSiteDeactivated        = "SiteDeactivated"
	EventCounterpartCreated     = "CounterpartCreated"
	EventCounterpartUpdated     = "CounterpartUpdated"
	EventCounterpartDeactivated = "CounterpartDeactivated"
	EventDistanceCalculated     = "DistanceCalculated"
	EventSiteDistanceCalculated = "SiteDistanceCalculated"
	// EventLegacyFactoryDistance is still found on old DISTANCE rows.
	EventLegacyFactoryDistance = "BranchFactoryDistanceCalculated"
)

// OutboxEvent is written in the same transaction as the change it describes and
// later published by the dispatcher. Version is the source entity's version at
// creation time; consumers dedupe on (AggregateID, Version) within a type.
type OutboxEvent struct {
	ID            uint64       `gorm:"primaryKey"`
	EventID       string       `gorm:"size:36;not null;uniqueIndex"`
	AggregateType string       `gorm:"size:64;not null"`
	AggregateID   uint64       `gorm:"not null"`
	EventType     string       `gorm:"size:64;not null"`
	Payload       string       `gorm:"type:text;not null"`
	Version       uint64       `gorm:"not null;default:0"`
	Status        OutboxStatus `gorm:"size:16;not null;default:READY;index:ix_outbox_dispatch,priority:1"`
	RetryCount    int          `gorm:"not null;default:0"`
	LastError     *string      `gorm:"type:text"`
	ClaimedBy     *string      `gorm:"size:64"`
	ClaimedUntil  *time.Time
	PublishedAt   *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime;index:ix_outbox_dispatch,priority:2"`
}

func (OutboxEvent) TableName() string { return "event_outbox" }

// IsDead reports whether the row exhausted maxRetry and will never be dispatched again.
func (e *OutboxEvent) IsDead(maxRetry int) bool {
	return e.Status == OutboxFailed && e.RetryCount >= maxRetry
}
