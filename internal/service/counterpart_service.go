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

type RegisterCounterpartInput struct {
	Name           string
	BusinessNumber string
	CeoName        string
	Address        string
}

type UpdateCounterpartInput struct {
	Name           *string
	BusinessNumber *string
	CeoName        *string
	Address        *string
	Status         *model.LifecycleStatus
}

// CounterpartService manages vendors and other external parties.
type CounterpartService struct {
	repo      repo.RepositoryInterface
	geocoder  geo.Resolver
	distances *DistanceService
	emitter   *outbox.Emitter
	log       *zap.SugaredLogger
}

func NewCounterpartService(r repo.RepositoryInterface, g geo.Resolver, d *DistanceService, logger *zap.SugaredLogger) *CounterpartService {
	return &CounterpartService{repo: r, geocoder: g, distances: d, emitter: outbox.NewEmitter(r), log: logger}
}

func (s *CounterpartService) Register(ctx context.Context, in RegisterCounterpartInput) (*model.Counterpart, error) {
	name := strings.TrimSpace(in.Name)
	if !validName(name) {
		return nil, fmt.Errorf("counterpart name: %w", ErrInvalidInput)
	}
	address := strings.TrimSpace(in.Address)
	lat, lng := locate(ctx, s.geocoder, s.log, address)

	cp := &model.Counterpart{
		Name:           name,
		BusinessNumber: strings.TrimSpace(in.BusinessNumber),
		CeoName:        strings.TrimSpace(in.CeoName),
		Address:        address,
		Latitude:       lat,
		Longitude:      lng,
		Status:         model.StatusActive,
	}
	var touched []Touched
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		last, err := s.repo.LastCounterpartCode(ctx, tx)
		if err != nil {
			return err
		}
		cp.Code = model.NextCode(model.CounterpartCodePrefix, last)
		if err := s.repo.CreateCounterpart(ctx, tx, cp); err != nil {
			return err
		}
		if touched, err = s.distances.OnCounterpartLocationChanged(ctx, tx, cp); err != nil {
			return err
		}
		return s.emit(ctx, tx, cp, model.EventCounterpartCreated)
	})
	if err != nil {
		return nil, err
	}
	s.distances.AfterCommit(ctx, touched)
	s.log.Infow("counterpart registered", "counterpart_id", cp.ID, "code", cp.Code, "pairs", len(touched))
	return cp, nil
}

func (s *CounterpartService) Update(ctx context.Context, id uint64, in UpdateCounterpartInput) (*model.Counterpart, error) {
	cp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if !validName(name) {
			return nil, fmt.Errorf("counterpart name: %w", ErrInvalidInput)
		}
		cp.Name = name
	}
	if in.BusinessNumber != nil {
		cp.BusinessNumber = strings.TrimSpace(*in.BusinessNumber)
	}
	if in.CeoName != nil {
		cp.CeoName = strings.TrimSpace(*in.CeoName)
	}
	eventType := model.EventCounterpartUpdated
	if in.Status != nil {
		if !in.Status.Valid() || !cp.Status.CanTransitionTo(*in.Status) {
			return nil, fmt.Errorf("counterpart status %s -> %s: %w", cp.Status, *in.Status, ErrInvalidInput)
		}
		if cp.Status != *in.Status && *in.Status == model.StatusInactive {
			eventType = model.EventCounterpartDeactivated
		}
		cp.Status = *in.Status
	}
	moved := false
	if in.Address != nil {
		if address := strings.TrimSpace(*in.Address); address != cp.Address {
			cp.Address = address
			cp.Latitude, cp.Longitude = locate(ctx, s.geocoder, s.log, address)
			moved = true
		}
	}

	var touched []Touched
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateCounterpart(ctx, tx, cp); err != nil {
			return err
		}
		if moved {
			if touched, err = s.distances.OnCounterpartLocationChanged(ctx, tx, cp); err != nil {
				return err
			}
		}
		return s.emit(ctx, tx, cp, eventType)
	})
	if err != nil {
		return nil, err
	}
	s.distances.AfterCommit(ctx, touched)
	return cp, nil
}

// Deactivate marks the counterpart INACTIVE. Its distance pairs are kept.
func (s *CounterpartService) Deactivate(ctx context.Context, id uint64) (*model.Counterpart, error) {
	cp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cp.Status == model.StatusInactive {
		return cp, nil
	}
	cp.Deactivate()
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateCounterpart(ctx, tx, cp); err != nil {
			return err
		}
		return s.emit(ctx, tx, cp, model.EventCounterpartDeactivated)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("counterpart deactivated", "counterpart_id", cp.ID, "code", cp.Code)
	return cp, nil
}

func (s *CounterpartService) Get(ctx context.Context, id uint64) (*model.Counterpart, error) {
	cp, err := s.repo.GetCounterpart(ctx, s.repo.DB(ctx), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("counterpart %d: %w", id, ErrNotFound)
	}
	return cp, err
}

func (s *CounterpartService) List(ctx context.Context) ([]model.Counterpart, error) {
	return s.repo.ListCounterparts(ctx, s.repo.DB(ctx))
}

func (s *CounterpartService) emit(ctx context.Context, tx *gorm.DB, cp *model.Counterpart, eventType string) error {
	return s.emitter.Emit(ctx, tx, outbox.Record{
		AggregateType: model.AggregateCounterpart,
		AggregateID:   cp.ID,
		EventType:     eventType,
		Version:       cp.Version,
		Payload: event.CounterpartPayload{
			CounterpartID:   cp.ID,
			CounterpartCode: cp.Code,
			CounterpartName: cp.Name,
			BusinessNumber:  cp.BusinessNumber,
			CeoName:         cp.CeoName,
			Address:         cp.Address,
			Latitude:        cp.Latitude,
			Longitude:       cp.Longitude,
			Status:          string(cp.Status),
			Deleted:         cp.Status == model.StatusInactive,
		},
	})
}
