package service

import (
	"context"
	"testing"

	"github.com/richardliu001/location-service/internal/geo"
	"github.com/richardliu001/location-service/internal/model"
	"github.com/richardliu001/location-service/internal/repo"
	"github.com/richardliu001/location-service/internal/repo/repotest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	addrWarehouse = "인천 중구 공항로 272"
	addrFactory   = "경기 평택시 고덕면 삼성로 114"
	addrVendor    = "경기 평택시 포승읍 평택항로 95"
	addrBusan     = "부산 해운대구 센텀중앙로 79"
	addrNowhere   = "nowhere"
)

// stubResolver resolves a fixed set of addresses; anything else is unresolved.
type stubResolver map[string]geo.Coordinate

func (s stubResolver) Resolve(_ context.Context, address string) geo.Coordinate {
	return s[address]
}

var testResolver = stubResolver{
	addrWarehouse: {Latitude: 37.50, Longitude: 127.00},
	addrFactory:   {Latitude: 37.00, Longitude: 127.50},
	addrVendor:    {Latitude: 37.00, Longitude: 127.50},
	addrBusan:     {Latitude: 35.1796, Longitude: 129.0756},
}

type testEnv struct {
	db           *gorm.DB
	repo         *repo.Repository
	distances    *DistanceService
	sites        *SiteService
	counterparts *CounterpartService
}

func newTestEnv(t *testing.T, wrap func(*repo.Repository) repo.RepositoryInterface) *testEnv {
	t.Helper()
	db := repotest.NewDB(t)
	log := zap.NewNop().Sugar()
	base := repo.NewRepository(db, nil, log)

	var r repo.RepositoryInterface = base
	if wrap != nil {
		r = wrap(base)
	}
	d := NewDistanceService(r, nil, log)
	return &testEnv{
		db:           db,
		repo:         base,
		distances:    d,
		sites:        NewSiteService(r, testResolver, d, log),
		counterparts: NewCounterpartService(r, testResolver, d, log),
	}
}

func (e *testEnv) countOutbox(t *testing.T, aggregateType string) int64 {
	t.Helper()
	var n int64
	q := e.db.Model(&model.OutboxEvent{})
	if aggregateType != "" {
		q = q.Where("aggregate_type = ?", aggregateType)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (e *testEnv) outboxRows(t *testing.T, aggregateType string) []model.OutboxEvent {
	t.Helper()
	var rows []model.OutboxEvent
	require.NoError(t, e.db.Where("aggregate_type = ?", aggregateType).Order("id").Find(&rows).Error)
	return rows
}

func (e *testEnv) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(m).Count(&n).Error)
	return n
}

func (e *testEnv) registerSite(t *testing.T, kind model.SiteKind, name, address string) *model.Site {
	t.Helper()
	s, err := e.sites.Register(context.Background(), RegisterSiteInput{Name: name, Kind: kind, Address: address})
	require.NoError(t, err)
	return s
}

func (e *testEnv) registerCounterpart(t *testing.T, name, address string) *model.Counterpart {
	t.Helper()
	c, err := e.counterparts.Register(context.Background(), RegisterCounterpartInput{Name: name, Address: address})
	require.NoError(t, err)
	return c
}

func geoKm(a, b string) string {
	return geo.DistanceKm(testResolver[a], testResolver[b]).StringFixed(2)
}
