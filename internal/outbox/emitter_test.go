package outbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/richardliu001/location-service/internal/event"
	"github.com/richardliu001/location-service/internal/model"
	"github.com/richardliu001/location-service/internal/repo"
	"github.com/richardliu001/location-service/internal/repo/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmit_WritesReadyRow(t *testing.T) {
	ctx := context.Background()
	db := repotest.NewDB(t)
	e := NewEmitter(repo.NewRepository(db, nil, zap.NewNop().Sugar()))

	err := e.Emit(ctx, db, Record{
		AggregateType: model.AggregateSiteCounterpartDistance,
		AggregateID:   7,
		EventType:     model.EventDistanceCalculated,
		Version:       3,
		Payload:       event.SiteCounterpartDistancePayload{DistanceID: 7, SiteID: 1, CounterpartID: 2, DistanceKm: 71.06},
	})
	require.NoError(t, err)

	var row model.OutboxEvent
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, model.OutboxReady, row.Status)
	assert.Equal(t, uint64(7), row.AggregateID)
	assert.Equal(t, uint64(3), row.Version)
	assert.Zero(t, row.RetryCount)
	_, err = uuid.Parse(row.EventID)
	assert.NoError(t, err)

	var payload event.SiteCounterpartDistancePayload
	require.NoError(t, json.Unmarshal([]byte(row.Payload), &payload))
	assert.Equal(t, 71.06, payload.DistanceKm)
}

func TestEmit_UnmarshalablePayload(t *testing.T) {
	db := repotest.NewDB(t)
	e := NewEmitter(repo.NewRepository(db, nil, zap.NewNop().Sugar()))

	err := e.Emit(context.Background(), db, Record{EventType: "X", Payload: make(chan int)})
	assert.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&model.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}
