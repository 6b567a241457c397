// Package outbox writes integration events next to the business change that
// caused them and relays them to the broker afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/richardliu001/location-service/internal/model"
	"gorm.io/gorm"
)

// EventWriter persists outbox rows inside a caller-owned transaction.
type EventWriter interface {
	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
}

// Emitter turns typed payloads into READY outbox rows.
type Emitter struct {
	store EventWriter
	newID func() string
}

func NewEmitter(store EventWriter) *Emitter {
	return &Emitter{store: store, newID: uuid.NewString}
}

// Record describes one event to append.
type Record struct {
	AggregateType string
	AggregateID   uint64
	EventType     string
	Version       uint64
	Payload       any
}

// Emit appends rec to the outbox using tx, so it commits or rolls back with
// the change it describes.
func (e *Emitter) Emit(ctx context.Context, tx *gorm.DB, rec Record) error {
	body, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", rec.EventType, err)
	}
	evt := &model.OutboxEvent{
		EventID:       e.newID(),
		AggregateType: rec.AggregateType,
		AggregateID:   rec.AggregateID,
		EventType:     rec.EventType,
		Payload:       string(body),
		Version:       rec.Version,
		Status:        model.OutboxReady,
	}
	if err := e.store.CreateOutboxEvent(ctx, tx, evt); err != nil {
		return fmt.Errorf("create outbox event %s: %w", rec.EventType, err)
	}
	return nil
}
