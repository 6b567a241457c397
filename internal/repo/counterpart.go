package repo

import (
	"context"
	"errors"
	"time"

	"github.com/richardliu001/location-service/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *Repository) CreateCounterpart(ctx context.Context, tx *gorm.DB, c *model.Counterpart) error {
	return tx.WithContext(ctx).Create(c).Error
}

func (r *Repository) GetCounterpart(ctx context.Context, tx *gorm.DB, id uint64) (*model.Counterpart, error) {
	var c model.Counterpart
	if err := tx.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) LockCounterpart(ctx context.Context, tx *gorm.DB, id uint64) (*model.Counterpart, error) {
	var c model.Counterpart
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCounterpart with optimistic lock.
func (r *Repository) UpdateCounterpart(ctx context.Context, tx *gorm.DB, c *model.Counterpart) error {
	res := tx.WithContext(ctx).
		Model(&model.Counterpart{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(map[string]interface{}{
			"name":            c.Name,
			"business_number": c.BusinessNumber,
			"ceo_name":        c.CeoName,
			"address":         c.Address,
			"latitude":        c.Latitude,
			"longitude":       c.Longitude,
			"status":          c.Status,
			"version":         c.Version + 1,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	c.Version++
	return nil
}

func (r *Repository) ListCounterparts(ctx context.Context, tx *gorm.DB) ([]model.Counterpart, error) {
	var cs []model.Counterpart
	err := tx.WithContext(ctx).Order("id").Find(&cs).Error
	return cs, err
}

func (r *Repository) LastCounterpartCode(ctx context.Context, tx *gorm.DB) (string, error) {
	var c model.Counterpart
	err := tx.WithContext(ctx).Select("code").Order("id desc").First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return c.Code, err
}
