package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/richardliu001/location-service/internal/config"
	"github.com/richardliu001/location-service/internal/event"
	"github.com/richardliu001/location-service/internal/model"
	"github.com/richardliu001/location-service/internal/repo"
	"github.com/richardliu001/location-service/internal/repo/repotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakePublisher struct {
	mu    sync.Mutex
	sent  []event.Message
	calls int
	err   error
	block bool
}

func (f *fakePublisher) Publish(ctx context.Context, msg event.Message) error {
	f.mu.Lock()
	f.calls++
	block, err := f.block, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) snapshot() ([]event.Message, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.Message(nil), f.sent...), f.calls
}

func newTestDispatcher(t *testing.T, pub Publisher, tweak func(*config.Config)) (*Dispatcher, *gorm.DB) {
	t.Helper()
	cfg, err := config.Parse([]byte(""))
	require.NoError(t, err)
	cfg.Outbox.PollInterval = 10 * time.Millisecond
	if tweak != nil {
		tweak(cfg)
	}
	db := repotest.NewDB(t)
	store := repo.NewRepository(db, nil, zap.NewNop().Sugar())
	d := NewDispatcher(cfg, store, event.NewRouter(cfg.Kafka.Topics), pub, nil, zap.NewNop().Sugar())
	return d, db
}

func distanceRow(eventID string, aggregateID uint64) model.OutboxEvent {
	return model.OutboxEvent{
		EventID:       eventID,
		AggregateType: model.AggregateSiteCounterpartDistance,
		AggregateID:   aggregateID,
		EventType:     model.EventDistanceCalculated,
		Payload:       fmt.Sprintf(`{"distanceId":%d,"siteId":1,"counterpartId":2,"distanceKm":71.06}`, aggregateID),
		Status:        model.OutboxReady,
	}
}

func seed(t *testing.T, db *gorm.DB, rows ...model.OutboxEvent) []model.OutboxEvent {
	t.Helper()
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}
	return rows
}

func load(t *testing.T, db *gorm.DB, id uint64) model.OutboxEvent {
	t.Helper()
	var row model.OutboxEvent
	require.NoError(t, db.First(&row, id).Error)
	return row
}

func TestDispatchBatch_PublishesOnce(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	d, db := newTestDispatcher(t, pub, nil)
	rows := seed(t, db, distanceRow("e1", 11), distanceRow("e2", 12))

	n, err := d.DispatchBatch(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = d.DispatchBatch(ctx, "w1")
	require.NoError(t, err)
	assert.Zero(t, n)

	sent, calls := pub.snapshot()
	assert.Equal(t, 2, calls)
	require.Len(t, sent, 2)
	assert.Equal(t, "site-counterpart-distance-events", sent[0].Topic)
	assert.Equal(t, "11", sent[0].Key)
	assert.Equal(t, "e1", sent[0].Envelope.EventID)

	for _, r := range rows {
		got := load(t, db, r.ID)
		assert.Equal(t, model.OutboxPublished, got.Status)
		assert.NotNil(t, got.PublishedAt)
		assert.Nil(t, got.ClaimedBy)
	}
}

func TestDispatchBatch_RetryCeiling(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{err: errors.New("broker down")}
	d, db := newTestDispatcher(t, pub, nil)

	row := distanceRow("e1", 1)
	row.Status = model.OutboxFailed
	row.RetryCount = 8
	id := seed(t, db, row)[0].ID

	_, err := d.DispatchBatch(ctx, "w1")
	require.NoError(t, err)
	got := load(t, db, id)
	assert.Equal(t, model.OutboxFailed, got.Status)
	assert.Equal(t, 9, got.RetryCount, "one below the ceiling stays eligible")

	_, err = d.DispatchBatch(ctx, "w1")
	require.NoError(t, err)
	got = load(t, db, id)
	assert.Equal(t, 10, got.RetryCount)
	assert.True(t, got.IsDead(10))
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "broker down")

	_, err = d.DispatchBatch(ctx, "w1")
	require.NoError(t, err)
	_, calls := pub.snapshot()
	assert.Equal(t, 2, calls, "dead rows are not attempted")
	assert.Equal(t, 10, load(t, db, id).RetryCount)
}

func TestDispatchBatch_PublishTimeout(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{block: true}
	d, db := newTestDispatcher(t, pub, func(cfg *config.Config) {
		cfg.Kafka.PublishTimeout = 20 * time.Millisecond
	})
	id := seed(t, db, distanceRow("e1", 1))[0].ID

	n, err := d.DispatchBatch(ctx, "w1")
	require.NoError(t, err)
	assert.Zero(t, n)

	got := load(t, db, id)
	assert.Equal(t, model.OutboxFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "timed out")
}

func TestDispatchBatch_ShutdownReleasesClaim(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pub := &fakePublisher{block: true}
	d, db := newTestDispatcher(t, pub, func(cfg *config.Config) {
		cfg.Kafka.PublishTimeout = time.Minute
	})
	id := seed(t, db, distanceRow("e1", 1))[0].ID

	time.AfterFunc(20*time.Millisecond, cancel)
	n, err := d.DispatchBatch(ctx, "w1")
	require.NoError(t, err)
	assert.Zero(t, n)

	got := load(t, db, id)
	assert.Equal(t, model.OutboxReady, got.Status)
	assert.Zero(t, got.RetryCount)
	assert.Nil(t, got.ClaimedBy)
	assert.Nil(t, got.ClaimedUntil)
	assert.Nil(t, got.LastError)

	pub.mu.Lock()
	pub.block = false
	pub.mu.Unlock()
	n, err = d.DispatchBatch(context.Background(), "w2")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "released row is picked up again at once")
	assert.Equal(t, model.OutboxPublished, load(t, db, id).Status)
}

func TestDispatchBatch_UnroutableIsFailedNotDropped(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	d, db := newTestDispatcher(t, pub, nil)

	row := distanceRow("e1", 1)
	row.AggregateType = "INVOICE"
	id := seed(t, db, row)[0].ID

	_, err := d.DispatchBatch(ctx, "w1")
	require.NoError(t, err)

	got := load(t, db, id)
	assert.Equal(t, model.OutboxFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, event.ErrUnroutable.Error())

	_, calls := pub.snapshot()
	assert.Zero(t, calls)
}

func TestDispatchBatch_LegacyDistanceRow(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	d, db := newTestDispatcher(t, pub, nil)

	seed(t, db, model.OutboxEvent{
		EventID:       "legacy",
		AggregateType: model.AggregateDistance,
		AggregateID:   5,
		EventType:     model.EventLegacyFactoryDistance,
		Payload:       `{"distanceId":5,"siteId":1,"peerSiteId":2,"distanceKm":3.5}`,
		Status:        model.OutboxReady,
	})

	n, err := d.DispatchBatch(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	sent, _ := pub.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, "site-factory-distance-events", sent[0].Topic)
	assert.Equal(t, model.EventLegacyFactoryDistance, sent[0].Envelope.EventType)
}

func TestDispatchBatch_ConcurrentWorkersPublishEachRowOnce(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	d, db := newTestDispatcher(t, pub, nil)

	var rows []model.OutboxEvent
	for i := 1; i <= 10; i++ {
		rows = append(rows, distanceRow(fmt.Sprintf("e%d", i), uint64(i)))
	}
	seed(t, db, rows...)

	var wg sync.WaitGroup
	for _, w := range []string{"w1", "w2", "w3"} {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			_, err := d.DispatchBatch(ctx, worker)
			assert.NoError(t, err)
		}(w)
	}
	wg.Wait()

	sent, _ := pub.snapshot()
	seen := map[string]int{}
	for _, m := range sent {
		seen[m.Envelope.EventID]++
	}
	assert.Len(t, seen, 10)
	for id, count := range seen {
		assert.Equal(t, 1, count, "event %s published more than once", id)
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	d, db := newTestDispatcher(t, pub, nil)
	seed(t, db, distanceRow("e1", 1), distanceRow("e2", 2))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx, 2) }()

	require.Eventually(t, func() bool {
		sent, _ := pub.snapshot()
		return len(sent) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestNewDispatcher_ClaimOutlivesPublish(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakePublisher{}, func(cfg *config.Config) {
		cfg.Outbox.ClaimTTL = time.Second
		cfg.Kafka.PublishTimeout = 30 * time.Second
	})
	assert.Equal(t, 30*time.Second+finalizeTimeout, d.claimTTL)
}
