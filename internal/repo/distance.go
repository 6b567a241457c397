package repo

import (
	"context"
	"errors"
	"time"

	"github.com/richardliu001/location-service/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertSiteCounterpartDistance updates the pair row if it exists, otherwise
// creates it. Both paths are conditional: a concurrent creator or a stale
// version surfaces as ErrVersionConflict and the caller retries.
func (r *Repository) UpsertSiteCounterpartDistance(ctx context.Context, tx *gorm.DB, siteID, counterpartID uint64, km decimal.Decimal) (*model.SiteCounterpartDistance, error) {
	d, err := r.GetSiteCounterpartDistance(ctx, tx, siteID, counterpartID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d = &model.SiteCounterpartDistance{SiteID: siteID, CounterpartID: counterpartID, DistanceKm: km}
		res := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(d)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrVersionConflict
		}
		return d, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.UpdateSiteCounterpartDistance(ctx, tx, d, km); err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateSiteCounterpartDistance sets the distance with optimistic lock on d.Version.
func (r *Repository) UpdateSiteCounterpartDistance(ctx context.Context, tx *gorm.DB, d *model.SiteCounterpartDistance, km decimal.Decimal) error {
	res := tx.WithContext(ctx).
		Model(&model.SiteCounterpartDistance{}).
		Where("id = ? AND version = ?", d.ID, d.Version).
		Updates(map[string]interface{}{
			"distance_km": km,
			"version":     d.Version + 1,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	d.DistanceKm = km
	d.Version++
	return nil
}

func (r *Repository) GetSiteCounterpartDistance(ctx context.Context, tx *gorm.DB, siteID, counterpartID uint64) (*model.SiteCounterpartDistance, error) {
	var d model.SiteCounterpartDistance
	err := tx.WithContext(ctx).
		Where("site_id = ? AND counterpart_id = ?", siteID, counterpartID).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repository) ListSiteCounterpartDistances(ctx context.Context, tx *gorm.DB, siteID uint64) ([]model.SiteCounterpartDistance, error) {
	var ds []model.SiteCounterpartDistance
	err := tx.WithContext(ctx).Where("site_id = ?", siteID).Order("distance_km, counterpart_id").Find(&ds).Error
	return ds, err
}

// UpsertSiteDistance is UpsertSiteCounterpartDistance for warehouse<->factory pairs.
func (r *Repository) UpsertSiteDistance(ctx context.Context, tx *gorm.DB, siteID, peerSiteID uint64, km decimal.Decimal) (*model.SiteDistance, error) {
	var d model.SiteDistance
	err := tx.WithContext(ctx).
		Where("site_id = ? AND peer_site_id = ?", siteID, peerSiteID).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d = model.SiteDistance{SiteID: siteID, PeerSiteID: peerSiteID, DistanceKm: km}
		res := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&d)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrVersionConflict
		}
		return &d, nil
	}
	if err != nil {
		return nil, err
	}

	res := tx.WithContext(ctx).
		Model(&model.SiteDistance{}).
		Where("id = ? AND version = ?", d.ID, d.Version).
		Updates(map[string]interface{}{
			"distance_km": km,
			"version":     d.Version + 1,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrVersionConflict
	}
	d.DistanceKm = km
	d.Version++
	return &d, nil
}

// ListSiteDistances returns every warehouse<->factory pair siteID takes part in,
// from either side.
func (r *Repository) ListSiteDistances(ctx context.Context, tx *gorm.DB, siteID uint64) ([]model.SiteDistance, error) {
	var ds []model.SiteDistance
	err := tx.WithContext(ctx).
		Where("site_id = ? OR peer_site_id = ?", siteID, siteID).
		Order("distance_km, id").
		Find(&ds).Error
	return ds, err
}
