package repo

import (
	"context"
	"errors"
	"time"

	"github.com/richardliu001/location-service/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateSite inserts record.
func (r *Repository) CreateSite(ctx context.Context, tx *gorm.DB, s *model.Site) error {
	return tx.WithContext(ctx).Create(s).Error
}

func (r *Repository) GetSite(ctx context.Context, tx *gorm.DB, id uint64) (*model.Site, error) {
	var s model.Site
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// LockSite reads the site with a row lock held until tx ends, so no writer can
// move it in between. The lock clause is dropped on sqlite.
func (r *Repository) LockSite(ctx context.Context, tx *gorm.DB, id uint64) (*model.Site, error) {
	var s model.Site
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSite writes the mutable columns with optimistic lock on s.Version and
// bumps s.Version on success.
func (r *Repository) UpdateSite(ctx context.Context, tx *gorm.DB, s *model.Site) error {
	res := tx.WithContext(ctx).
		Model(&model.Site{}).
		Where("id = ? AND version = ?", s.ID, s.Version).
		Updates(map[string]interface{}{
			"name":       s.Name,
			"address":    s.Address,
			"latitude":   s.Latitude,
			"longitude":  s.Longitude,
			"status":     s.Status,
			"version":    s.Version + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	s.Version++
	return nil
}

func (r *Repository) ListSitesByKind(ctx context.Context, tx *gorm.DB, kind model.SiteKind) ([]model.Site, error) {
	var sites []model.Site
	err := tx.WithContext(ctx).Where("kind = ?", kind).Order("id").Find(&sites).Error
	return sites, err
}

// LastSiteCode returns the code of the most recently created site of kind, or "".
func (r *Repository) LastSiteCode(ctx context.Context, tx *gorm.DB, kind model.SiteKind) (string, error) {
	var s model.Site
	err := tx.WithContext(ctx).Select("code").Where("kind = ?", kind).Order("id desc").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return s.Code, err
}
