package service

import (
	"context"

	"github.com/richardliu001/location-service/internal/model"
	"github.com/richardliu001/location-service/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RepublishSummary reports a republish run.
type RepublishSummary struct {
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Republisher re-announces the current state of every site, counterpart and
// distance pair, for seeding a new consumer from an existing database.
type Republisher struct {
	repo         repo.RepositoryInterface
	sites        *SiteService
	counterparts *CounterpartService
	distances    *DistanceService
	log          *zap.SugaredLogger
}

func NewRepublisher(r repo.RepositoryInterface, sites *SiteService, counterparts *CounterpartService, distances *DistanceService, logger *zap.SugaredLogger) *Republisher {
	return &Republisher{repo: r, sites: sites, counterparts: counterparts, distances: distances, log: logger}
}

// RepublishAll writes one outbox row for the current version of every
// aggregate unless a row for that version already exists. Each aggregate
// commits on its own; a failing one is logged and skipped.
func (p *Republisher) RepublishAll(ctx context.Context) (RepublishSummary, error) {
	var sum RepublishSummary
	db := p.repo.DB(ctx)

	warehouses, err := p.repo.ListSitesByKind(ctx, db, model.SiteKindWarehouse)
	if err != nil {
		return sum, err
	}
	factories, err := p.repo.ListSitesByKind(ctx, db, model.SiteKindFactory)
	if err != nil {
		return sum, err
	}
	counterparts, err := p.repo.ListCounterparts(ctx, db)
	if err != nil {
		return sum, err
	}

	write := func(aggregateType string, id, version uint64, emit func(tx *gorm.DB) error) {
		skipped := false
		err := p.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
			exists, err := p.repo.OutboxEventExists(ctx, tx, aggregateType, id, version)
			if err != nil {
				return err
			}
			if exists {
				skipped = true
				return nil
			}
			return emit(tx)
		})
		switch {
		case err != nil:
			sum.Failed++
			p.log.Warnw("republish failed", "aggregate_type", aggregateType, "aggregate_id", id, "error", err)
		case skipped:
			sum.Skipped++
		default:
			sum.Written++
		}
	}

	for _, sites := range [][]model.Site{warehouses, factories} {
		for i := range sites {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			site := &sites[i]
			eventType := model.EventSiteCreated
			if site.Status == model.StatusInactive {
				eventType = model.EventSiteDeactivated
			}
			write(siteAggregate(site), site.ID, site.Version, func(tx *gorm.DB) error {
				return p.sites.emit(ctx, tx, site, eventType)
			})
		}
	}

	for i := range counterparts {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		cp := &counterparts[i]
		eventType := model.EventCounterpartCreated
		if cp.Status == model.StatusInactive {
			eventType = model.EventCounterpartDeactivated
		}
		write(model.AggregateCounterpart, cp.ID, cp.Version, func(tx *gorm.DB) error {
			return p.counterparts.emit(ctx, tx, cp, eventType)
		})
	}

	factoryByID := make(map[uint64]*model.Site, len(factories))
	for i := range factories {
		factoryByID[factories[i].ID] = &factories[i]
	}
	for i := range warehouses {
		w := &warehouses[i]
		cps, err := p.repo.ListSiteCounterpartDistances(ctx, db, w.ID)
		if err != nil {
			return sum, err
		}
		sds, err := p.repo.ListSiteDistances(ctx, db, w.ID)
		if err != nil {
			return sum, err
		}

		for j := range cps {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			d := &cps[j]
			write(model.AggregateSiteCounterpartDistance, d.ID, d.Version, func(tx *gorm.DB) error {
				return p.distances.emitSiteCounterpart(ctx, tx, d)
			})
		}
		for j := range sds {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			d := &sds[j]
			f, ok := factoryByID[d.PeerSiteID]
			if d.SiteID != w.ID || !ok {
				continue
			}
			write(model.AggregateSiteFactoryDistance, d.ID, d.Version, func(tx *gorm.DB) error {
				return p.distances.emitSiteFactory(ctx, tx, d, w, f)
			})
		}
	}

	p.log.Infow("republish finished", "written", sum.Written, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}
