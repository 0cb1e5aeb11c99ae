package repository

import (
	"context"
	"fmt"

	"bitwise74/drop-api/internal/model"

	"gorm.io/gorm"
)

type Drops struct {
	db *gorm.DB
}

func NewDrops(db *gorm.DB) *Drops {
	return &Drops{db: db}
}

func (r *Drops) FindByCode(ctx context.Context, code string) (*model.Drop, error) {
	var d model.Drop

	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&d).
		Error
	if err != nil {
		return nil, translate(err)
	}

	return &d, nil
}

func (r *Drops) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.Drop{}).
		Where("code = ?", code).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// ExistingCodes returns the subset of codes that still belong to a drop
func (r *Drops) ExistingCodes(ctx context.Context, codes []string) (map[string]bool, error) {
	found := make(map[string]bool, len(codes))
	if len(codes) == 0 {
		return found, nil
	}

	var rows []string
	err := r.db.WithContext(ctx).
		Model(&model.Drop{}).
		Where("code IN ?", codes).
		Pluck("code", &rows).
		Error
	if err != nil {
		return nil, err
	}

	for _, c := range rows {
		found[c] = true
	}

	return found, nil
}

func (r *Drops) Create(ctx context.Context, d *model.Drop) error {
	return translate(r.db.WithContext(ctx).Create(d).Error)
}

// Update writes the given columns. Keys are column names.
func (r *Drops) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&model.Drop{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return translate(res.Error)
	}

	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// IncrementUnlockCount bumps the counter with a single atomic update and
// returns the value this call produced
func (r *Drops) IncrementUnlockCount(ctx context.Context, id string) (int64, error) {
	var count int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Drop{}).
			Where("id = ?", id).
			UpdateColumn("unlock_count", gorm.Expr("unlock_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		return tx.Model(&model.Drop{}).
			Where("id = ?", id).
			Pluck("unlock_count", &count).
			Error
	})
	if err != nil {
		return 0, translate(err)
	}

	return count, nil
}

// Delete removes the drop's media rows and then the drop row itself
func (r *Drops) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("drop_id = ?", id).Delete(&model.Media{}).Error; err != nil {
			return fmt.Errorf("failed to delete media rows, %w", err)
		}

		res := tx.Where("id = ?", id).Delete(&model.Drop{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete drop row, %w", res.Error)
		}

		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		return nil
	})
}

// ListVisible returns the public drops plus every drop owned by userID,
// newest first. An empty userID yields public drops only.
func (r *Drops) ListVisible(ctx context.Context, userID string) ([]model.Drop, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")

	if userID == "" {
		q = q.Where("visibility = ?", model.VisibilityPublic)
	} else {
		q = q.Where("owner_id = ? OR visibility = ?", userID, model.VisibilityPublic)
	}

	var drops []model.Drop
	if err := q.Find(&drops).Error; err != nil {
		return nil, err
	}

	return drops, nil
}

func (r *Drops) ListByOwner(ctx context.Context, ownerID string, publicOnly bool) ([]model.Drop, error) {
	q := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC")

	if publicOnly {
		q = q.Where("visibility = ?", model.VisibilityPublic)
	}

	var drops []model.Drop
	if err := q.Find(&drops).Error; err != nil {
		return nil, err
	}

	return drops, nil
}
