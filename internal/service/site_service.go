package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richardliu001/location-service/internal/event"
	"github.com/richardliu001/location-service/internal/geo"
	"github.com/richardliu001/location-service/internal/model"
	"github.com/richardliu001/location-service/internal/outbox"
	"github.com/richardliu001/location-service/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RegisterSiteInput struct {
	Name    string
	Kind    model.SiteKind
	Address string
}

// UpdateSiteInput is a partial update; nil fields are left alone.
type UpdateSiteInput struct {
	Name    *string
	Address *string
	Status  *model.LifecycleStatus
}

// SiteService manages warehouses and factories.
type SiteService struct {
	repo      repo.RepositoryInterface
	geocoder  geo.Resolver
	distances *DistanceService
	emitter   *outbox.Emitter
	log       *zap.SugaredLogger
}

func NewSiteService(r repo.RepositoryInterface, g geo.Resolver, d *DistanceService, logger *zap.SugaredLogger) *SiteService {
	return &SiteService{repo: r, geocoder: g, distances: d, emitter: outbox.NewEmitter(r), log: logger}
}

// Register creates a site with the next code of its kind. The site, its
// distance pairs and all resulting events commit together.
func (s *SiteService) Register(ctx context.Context, in RegisterSiteInput) (*model.Site, error) {
	name := strings.TrimSpace(in.Name)
	if !validName(name) {
		return nil, fmt.Errorf("site name: %w", ErrInvalidInput)
	}
	prefix, ok := model.SiteCodePrefix(in.Kind)
	if !ok {
		return nil, fmt.Errorf("site kind %q: %w", in.Kind, ErrInvalidInput)
	}
	address := strings.TrimSpace(in.Address)
	lat, lng := locate(ctx, s.geocoder, s.log, address)

	site := &model.Site{
		Name:      name,
		Kind:      in.Kind,
		Address:   address,
		Latitude:  lat,
		Longitude: lng,
		Status:    model.StatusActive,
	}
	var touched []Touched
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		last, err := s.repo.LastSiteCode(ctx, tx, in.Kind)
		if err != nil {
			return err
		}
		site.Code = model.NextCode(prefix, last)
		if err := s.repo.CreateSite(ctx, tx, site); err != nil {
			return err
		}
		if touched, err = s.distances.OnSiteLocationChanged(ctx, tx, site); err != nil {
			return err
		}
		return s.emit(ctx, tx, site, model.EventSiteCreated)
	})
	if err != nil {
		return nil, err
	}
	s.distances.AfterCommit(ctx, touched)
	s.log.Infow("site registered", "site_id", site.ID, "code", site.Code, "kind", site.Kind, "pairs", len(touched))
	return site, nil
}

// Update applies a partial update. A changed address is geocoded again and
// triggers a fan-out; a blank address clears the coordinate.
func (s *SiteService) Update(ctx context.Context, id uint64, in UpdateSiteInput) (*model.Site, error) {
	site, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if !validName(name) {
			return nil, fmt.Errorf("site name: %w", ErrInvalidInput)
		}
		site.Name = name
	}
	eventType := model.EventSiteUpdated
	if in.Status != nil {
		if !in.Status.Valid() || !site.Status.CanTransitionTo(*in.Status) {
			return nil, fmt.Errorf("site status %s -> %s: %w", site.Status, *in.Status, ErrInvalidInput)
		}
		if site.Status != *in.Status && *in.Status == model.StatusInactive {
			eventType = model.EventSiteDeactivated
		}
		site.Status = *in.Status
	}
	moved := false
	if in.Address != nil {
		if address := strings.TrimSpace(*in.Address); address != site.Address {
			site.Address = address
			site.Latitude, site.Longitude = locate(ctx, s.geocoder, s.log, address)
			moved = true
		}
	}

	var touched []Touched
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateSite(ctx, tx, site); err != nil {
			return err
		}
		if moved {
			if touched, err = s.distances.OnSiteLocationChanged(ctx, tx, site); err != nil {
				return err
			}
		}
		return s.emit(ctx, tx, site, eventType)
	})
	if err != nil {
		return nil, err
	}
	s.distances.AfterCommit(ctx, touched)
	return site, nil
}

// Deactivate marks the site INACTIVE. Its distance pairs are kept.
func (s *SiteService) Deactivate(ctx context.Context, id uint64) (*model.Site, error) {
	site, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if site.Status == model.StatusInactive {
		return site, nil
	}
	site.Deactivate()
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateSite(ctx, tx, site); err != nil {
			return err
		}
		return s.emit(ctx, tx, site, model.EventSiteDeactivated)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("site deactivated", "site_id", site.ID, "code", site.Code)
	return site, nil
}

func (s *SiteService) Get(ctx context.Context, id uint64) (*model.Site, error) {
	site, err := s.repo.GetSite(ctx, s.repo.DB(ctx), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("site %d: %w", id, ErrNotFound)
	}
	return site, err
}

// List returns sites of kind, or every site when kind is empty.
func (s *SiteService) List(ctx context.Context, kind model.SiteKind) ([]model.Site, error) {
	db := s.repo.DB(ctx)
	if kind != "" {
		if !kind.Valid() {
			return nil, fmt.Errorf("site kind %q: %w", kind, ErrInvalidInput)
		}
		return s.repo.ListSitesByKind(ctx, db, kind)
	}
	var all []model.Site
	for _, k := range []model.SiteKind{model.SiteKindWarehouse, model.SiteKindFactory} {
		sites, err := s.repo.ListSitesByKind(ctx, db, k)
		if err != nil {
			return nil, err
		}
		all = append(all, sites...)
	}
	return all, nil
}

func (s *SiteService) emit(ctx context.Context, tx *gorm.DB, site *model.Site, eventType string) error {
	return s.emitter.Emit(ctx, tx, outbox.Record{
		AggregateType: siteAggregate(site),
		AggregateID:   site.ID,
		EventType:     eventType,
		Version:       site.Version,
		Payload: event.SitePayload{
			SiteID:    site.ID,
			SiteCode:  site.Code,
			SiteName:  site.Name,
			Kind:      string(site.Kind),
			Address:   site.Address,
			Latitude:  site.Latitude,
			Longitude: site.Longitude,
			Status:    string(site.Status),
			Deleted:   site.Status == model.StatusInactive,
		},
	})
}

func siteAggregate(site *model.Site) string {
	if site.IsFactory() {
		return model.AggregateFactory
	}
	return model.AggregateWarehouse
}
