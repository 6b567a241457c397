package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/richardliu001/location-service/internal/event"
	"github.com/richardliu001/location-service/internal/geo"
	"github.com/richardliu001/location-service/internal/metrics"
	"github.com/richardliu001/location-service/internal/model"
	"github.com/richardliu001/location-service/internal/outbox"
	"github.com/richardliu001/location-service/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxPairAttempts bounds how often a pair upsert is retried after losing an
// optimistic lock race.
const maxPairAttempts = 3

// Touched is one distance pair written by a fan-out.
type Touched struct {
	Pair       string // metrics.PairSiteCounterpart or metrics.PairSiteFactory
	SiteID     uint64
	PeerID     uint64 // counterpart id or factory site id
	DistanceKm decimal.Decimal
}

// RecalcSummary reports a full recalculation run.
type RecalcSummary struct {
	Pairs  int `json:"pairs"`
	Failed int `json:"failed"`
}

// SiteDistances lists every pair a site takes part in.
type SiteDistances struct {
	Counterparts []model.SiteCounterpartDistance `json:"counterparts"`
	Sites        []model.SiteDistance            `json:"sites"`
}

// DistanceService keeps the derived distance tables in step with site and
// counterpart locations and announces every recalculated pair.
type DistanceService struct {
	repo    repo.RepositoryInterface
	emitter *outbox.Emitter
	metrics *metrics.FanoutMetrics
	log     *zap.SugaredLogger
}

func NewDistanceService(r repo.RepositoryInterface, m *metrics.FanoutMetrics, logger *zap.SugaredLogger) *DistanceService {
	return &DistanceService{repo: r, emitter: outbox.NewEmitter(r), metrics: m, log: logger}
}

// OnSiteLocationChanged recalculates every pair site takes part in using tx.
// A warehouse pairs with all counterparts and all factories, a factory with all
// warehouses. Nothing happens while site has no usable coordinate.
func (s *DistanceService) OnSiteLocationChanged(ctx context.Context, tx *gorm.DB, site *model.Site) ([]Touched, error) {
	origin, ok := geo.FromPointers(site.Latitude, site.Longitude)
	if !ok {
		return nil, nil
	}

	var touched []Touched
	switch site.Kind {
	case model.SiteKindWarehouse:
		counterparts, err := s.repo.ListCounterparts(ctx, tx)
		if err != nil {
			return nil, err
		}
		for i := range counterparts {
			cp := &counterparts[i]
			c, ok := geo.FromPointers(cp.Latitude, cp.Longitude)
			if !ok {
				continue
			}
			t, err := s.upsertSiteCounterpart(ctx, tx, site.ID, cp.ID, geo.DistanceKm(origin, c))
			if err != nil {
				return nil, err
			}
			touched = append(touched, t)
		}

		factories, err := s.repo.ListSitesByKind(ctx, tx, model.SiteKindFactory)
		if err != nil {
			return nil, err
		}
		for i := range factories {
			f := &factories[i]
			c, ok := geo.FromPointers(f.Latitude, f.Longitude)
			if !ok {
				continue
			}
			t, err := s.upsertSiteFactory(ctx, tx, site, f, geo.DistanceKm(origin, c))
			if err != nil {
				return nil, err
			}
			touched = append(touched, t)
		}

	case model.SiteKindFactory:
		warehouses, err := s.repo.ListSitesByKind(ctx, tx, model.SiteKindWarehouse)
		if err != nil {
			return nil, err
		}
		for i := range warehouses {
			w := &warehouses[i]
			c, ok := geo.FromPointers(w.Latitude, w.Longitude)
			if !ok {
				continue
			}
			t, err := s.upsertSiteFactory(ctx, tx, w, site, geo.DistanceKm(c, origin))
			if err != nil {
				return nil, err
			}
			touched = append(touched, t)
		}
	}
	return touched, nil
}

// OnCounterpartLocationChanged recalculates the counterpart's pairs with every warehouse.
func (s *DistanceService) OnCounterpartLocationChanged(ctx context.Context, tx *gorm.DB, cp *model.Counterpart) ([]Touched, error) {
	origin, ok := geo.FromPointers(cp.Latitude, cp.Longitude)
	if !ok {
		return nil, nil
	}
	warehouses, err := s.repo.ListSitesByKind(ctx, tx, model.SiteKindWarehouse)
	if err != nil {
		return nil, err
	}

	var touched []Touched
	for i := range warehouses {
		w := &warehouses[i]
		c, ok := geo.FromPointers(w.Latitude, w.Longitude)
		if !ok {
			continue
		}
		t, err := s.upsertSiteCounterpart(ctx, tx, w.ID, cp.ID, geo.DistanceKm(c, origin))
		if err != nil {
			return nil, err
		}
		touched = append(touched, t)
	}
	return touched, nil
}

// AfterCommit records the pairs of a committed fan-out in metrics and the
// distance cache. Cache failures are only logged.
func (s *DistanceService) AfterCommit(ctx context.Context, touched []Touched) {
	for _, t := range touched {
		s.metrics.IncUpserted(t.Pair)
		if t.Pair != metrics.PairSiteCounterpart {
			continue
		}
		if err := s.repo.CacheDistance(ctx, t.SiteID, t.PeerID, t.DistanceKm); err != nil {
			s.log.Warnw("cache distance failed", "site_id", t.SiteID, "counterpart_id", t.PeerID, "error", err)
		}
	}
}

// RecalculateAll re-derives every warehouse×counterpart and warehouse×factory
// pair, one transaction per pair. The listing only picks the pairs; each pair
// transaction locks and re-reads both endpoints and skips the pair when either
// no longer has a usable coordinate. A failing pair is logged and skipped.
func (s *DistanceService) RecalculateAll(ctx context.Context) (RecalcSummary, error) {
	var sum RecalcSummary
	db := s.repo.DB(ctx)

	warehouses, err := s.repo.ListSitesByKind(ctx, db, model.SiteKindWarehouse)
	if err != nil {
		return sum, err
	}
	factories, err := s.repo.ListSitesByKind(ctx, db, model.SiteKindFactory)
	if err != nil {
		return sum, err
	}
	counterparts, err := s.repo.ListCounterparts(ctx, db)
	if err != nil {
		return sum, err
	}

	runPair := func(pair string, siteID, peerID uint64, fn func(tx *gorm.DB) (*Touched, error)) {
		var t *Touched
		err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			t, err = fn(tx)
			return err
		})
		if err != nil {
			sum.Pairs++
			sum.Failed++
			s.log.Warnw("recalculate pair failed", "pair", pair, "site_id", siteID, "peer_id", peerID, "error", err)
			return
		}
		if t == nil {
			return
		}
		sum.Pairs++
		s.AfterCommit(ctx, []Touched{*t})
	}

	for i := range warehouses {
		w := &warehouses[i]
		if _, ok := geo.FromPointers(w.Latitude, w.Longitude); !ok {
			continue
		}
		for j := range counterparts {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			cp := &counterparts[j]
			if _, ok := geo.FromPointers(cp.Latitude, cp.Longitude); !ok {
				continue
			}
			runPair(metrics.PairSiteCounterpart, w.ID, cp.ID, func(tx *gorm.DB) (*Touched, error) {
				return s.recalcSiteCounterpart(ctx, tx, w.ID, cp.ID)
			})
		}
		for j := range factories {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			f := &factories[j]
			if _, ok := geo.FromPointers(f.Latitude, f.Longitude); !ok {
				continue
			}
			runPair(metrics.PairSiteFactory, w.ID, f.ID, func(tx *gorm.DB) (*Touched, error) {
				return s.recalcSiteFactory(ctx, tx, w.ID, f.ID)
			})
		}
	}

	s.log.Infow("distance recalculation finished", "pairs", sum.Pairs, "failed", sum.Failed)
	return sum, nil
}

// recalcSiteCounterpart returns nil when either endpoint lost its coordinate
// since it was listed.
func (s *DistanceService) recalcSiteCounterpart(ctx context.Context, tx *gorm.DB, siteID, counterpartID uint64) (*Touched, error) {
	site, err := s.repo.LockSite(ctx, tx, siteID)
	if err != nil {
		return nil, err
	}
	cp, err := s.repo.LockCounterpart(ctx, tx, counterpartID)
	if err != nil {
		return nil, err
	}
	a, okA := geo.FromPointers(site.Latitude, site.Longitude)
	b, okB := geo.FromPointers(cp.Latitude, cp.Longitude)
	if !okA || !okB {
		return nil, nil
	}
	t, err := s.upsertSiteCounterpart(ctx, tx, site.ID, cp.ID, geo.DistanceKm(a, b))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *DistanceService) recalcSiteFactory(ctx context.Context, tx *gorm.DB, warehouseID, factoryID uint64) (*Touched, error) {
	w, err := s.repo.LockSite(ctx, tx, warehouseID)
	if err != nil {
		return nil, err
	}
	f, err := s.repo.LockSite(ctx, tx, factoryID)
	if err != nil {
		return nil, err
	}
	a, okA := geo.FromPointers(w.Latitude, w.Longitude)
	b, okB := geo.FromPointers(f.Latitude, f.Longitude)
	if !okA || !okB {
		return nil, nil
	}
	t, err := s.upsertSiteFactory(ctx, tx, w, f, geo.DistanceKm(a, b))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SiteCounterpartDistance returns the distance of one pair, cache first.
func (s *DistanceService) SiteCounterpartDistance(ctx context.Context, siteID, counterpartID uint64) (decimal.Decimal, error) {
	km, err := s.repo.GetCachedDistance(ctx, siteID, counterpartID)
	if err == nil {
		return km, nil
	}
	if !errors.Is(err, repo.ErrCacheMiss) {
		s.log.Warnw("read cached distance failed", "site_id", siteID, "counterpart_id", counterpartID, "error", err)
	}

	d, err := s.repo.GetSiteCounterpartDistance(ctx, s.repo.DB(ctx), siteID, counterpartID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, fmt.Errorf("distance site %d counterpart %d: %w", siteID, counterpartID, ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.repo.CacheDistance(ctx, siteID, counterpartID, d.DistanceKm); err != nil {
		s.log.Warnw("cache distance failed", "site_id", siteID, "counterpart_id", counterpartID, "error", err)
	}
	return d.DistanceKm, nil
}

// ListSiteDistances returns every stored pair of the site.
func (s *DistanceService) ListSiteDistances(ctx context.Context, siteID uint64) (SiteDistances, error) {
	db := s.repo.DB(ctx)
	if _, err := s.repo.GetSite(ctx, db, siteID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SiteDistances{}, fmt.Errorf("site %d: %w", siteID, ErrNotFound)
		}
		return SiteDistances{}, err
	}
	cps, err := s.repo.ListSiteCounterpartDistances(ctx, db, siteID)
	if err != nil {
		return SiteDistances{}, err
	}
	sites, err := s.repo.ListSiteDistances(ctx, db, siteID)
	if err != nil {
		return SiteDistances{}, err
	}
	return SiteDistances{Counterparts: cps, Sites: sites}, nil
}

func (s *DistanceService) upsertSiteCounterpart(ctx context.Context, tx *gorm.DB, siteID, counterpartID uint64, km decimal.Decimal) (Touched, error) {
	t := Touched{Pair: metrics.PairSiteCounterpart, SiteID: siteID, PeerID: counterpartID, DistanceKm: km}

	var d *model.SiteCounterpartDistance
	err := retryOnConflict(func() error {
		var err error
		d, err = s.repo.UpsertSiteCounterpartDistance(ctx, tx, siteID, counterpartID, km)
		return err
	})
	if err != nil {
		return t, fmt.Errorf("upsert distance site %d counterpart %d: %w", siteID, counterpartID, err)
	}

	return t, s.emitSiteCounterpart(ctx, tx, d)
}

func (s *DistanceService) emitSiteCounterpart(ctx context.Context, tx *gorm.DB, d *model.SiteCounterpartDistance) error {
	return s.emitter.Emit(ctx, tx, outbox.Record{
		AggregateType: model.AggregateSiteCounterpartDistance,
		AggregateID:   d.ID,
		EventType:     model.EventDistanceCalculated,
		Version:       d.Version,
		Payload: event.SiteCounterpartDistancePayload{
			DistanceID:    d.ID,
			SiteID:        d.SiteID,
			CounterpartID: d.CounterpartID,
			DistanceKm:    d.DistanceKm.InexactFloat64(),
		},
	})
}

func (s *DistanceService) upsertSiteFactory(ctx context.Context, tx *gorm.DB, warehouse, factory *model.Site, km decimal.Decimal) (Touched, error) {
	t := Touched{Pair: metrics.PairSiteFactory, SiteID: warehouse.ID, PeerID: factory.ID, DistanceKm: km}

	var d *model.SiteDistance
	err := retryOnConflict(func() error {
		var err error
		d, err = s.repo.UpsertSiteDistance(ctx, tx, warehouse.ID, factory.ID, km)
		return err
	})
	if err != nil {
		return t, fmt.Errorf("upsert distance site %d factory %d: %w", warehouse.ID, factory.ID, err)
	}

	return t, s.emitSiteFactory(ctx, tx, d, warehouse, factory)
}

func (s *DistanceService) emitSiteFactory(ctx context.Context, tx *gorm.DB, d *model.SiteDistance, warehouse, factory *model.Site) error {
	return s.emitter.Emit(ctx, tx, outbox.Record{
		AggregateType: model.AggregateSiteFactoryDistance,
		AggregateID:   d.ID,
		EventType:     model.EventSiteDistanceCalculated,
		Version:       d.Version,
		Payload: event.SiteDistancePayload{
			DistanceID:   d.ID,
			SiteID:       warehouse.ID,
			PeerSiteID:   factory.ID,
			DistanceKm:   d.DistanceKm.InexactFloat64(),
			SiteName:     warehouse.Name,
			PeerSiteName: factory.Name,
		},
	})
}

func retryOnConflict(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxPairAttempts; attempt++ {
		if err = fn(); !errors.Is(err, repo.ErrVersionConflict) {
			return err
		}
	}
	return err
}
