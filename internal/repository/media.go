package repository

import (
	"context"
	"errors"
	"fmt"

	"bitwise74/drop-api/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Concurrent appends that still collide on (drop_id, position) after the row
// lock are retried this many times
const maxPositionAttempts = 5

var (
	ErrPositionContention = errors.New("could not assign media position")

	errPositionTaken = errors.New("position taken")
)

type Media struct {
	db *gorm.DB
}

func NewMedia(db *gorm.DB) *Media {
	return &Media{db: db}
}

// Append inserts a media row at the next free position of the drop. build
// receives the position and returns the row to insert, store persists the
// object bytes and runs before the transaction commits, so a failed store
// leaves no row behind.
func (r *Media) Append(
	ctx context.Context,
	dropID string,
	build func(position int) *model.Media,
	store func(m *model.Media) error,
) (*model.Media, error) {
	for range maxPositionAttempts {
		var created *model.Media

		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var drop model.Drop
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("id").
				Where("id = ?", dropID).
				First(&drop).
				Error
			if err != nil {
				return translate(err)
			}

			var last int
			err = tx.Model(&model.Media{}).
				Where("drop_id = ?", dropID).
				Select("COALESCE(MAX(position), 0)").
				Scan(&last).
				Error
			if err != nil {
				return fmt.Errorf("failed to read last position, %w", err)
			}

			m := build(last + 1)
			m.DropID = dropID
			m.Position = last + 1

			if err := tx.Create(m).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return errPositionTaken
				}
				return err
			}

			// Still under the drop lock, a failed write rolls back the row
			if err := store(m); err != nil {
				return err
			}

			created = m
			return nil
		})
		if errors.Is(err, errPositionTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return created, nil
	}

	return nil, ErrPositionContention
}

// ListByDrop returns the drop's media ordered by position
func (r *Media) ListByDrop(ctx context.Context, dropID string) ([]model.Media, error) {
	var media []model.Media

	err := r.db.WithContext(ctx).
		Where("drop_id = ?", dropID).
		Order("position ASC").
		Find(&media).
		Error
	if err != nil {
		return nil, err
	}

	return media, nil
}

// FindInDrop looks a media row up by ID and only returns it if it belongs to dropID
func (r *Media) FindInDrop(ctx context.Context, dropID, mediaID string) (*model.Media, error) {
	var m model.Media

	err := r.db.WithContext(ctx).
		Where("id = ? AND drop_id = ?", mediaID, dropID).
		First(&m).
		Error
	if err != nil {
		return nil, translate(err)
	}

	return &m, nil
}

func (r *Media) CountByDrop(ctx context.Context, dropID string) (int64, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.Media{}).
		Where("drop_id = ?", dropID).
		Count(&count).
		Error

	return count, err
}
