package db

import (
	"errors"
	"fmt"
	"time"

	"bitwise74/drop-api/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type migration struct {
	name string
	up   func(tx *gorm.DB) (int64, error)
}

// Additive changes that AutoMigrate can't express. Each runs once and is
// recorded in the migrations table. Never reorder or rename entries.
var migrations = []migration{
	{
		// Rows written before visibility existed are private iff they carry a passcode
		name: "0001_backfill_drop_visibility",
		up: func(tx *gorm.DB) (int64, error) {
			private := tx.Model(&model.Drop{}).
				Where("(visibility IS NULL OR visibility = '') AND passcode_hash IS NOT NULL").
				Update("visibility", model.VisibilityPrivate)
			if private.Error != nil {
				return 0, private.Error
			}

			public := tx.Model(&model.Drop{}).
				Where("visibility IS NULL OR visibility = ''").
				Update("visibility", model.VisibilityPublic)
			return private.RowsAffected + public.RowsAffected, public.Error
		},
	},
	{
		name: "0002_backfill_media_content_type",
		up: func(tx *gorm.DB) (int64, error) {
			videos := tx.Model(&model.Media{}).
				Where("(content_type IS NULL OR content_type = '') AND type = ?", model.MediaTypeVideo).
				Update("content_type", "video/mp4")
			if videos.Error != nil {
				return 0, videos.Error
			}

			rest := tx.Model(&model.Media{}).
				Where("content_type IS NULL OR content_type = ''").
				Update("content_type", "application/octet-stream")
			return videos.RowsAffected + rest.RowsAffected, rest.Error
		},
	},
}

// Migrate creates missing tables and columns and applies pending named migrations
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(&model.User{}, &model.Drop{}, &model.Media{}, &model.Migration{})
	if err != nil {
		return fmt.Errorf("failed to automigrate tables, %w", err)
	}

	for _, m := range migrations {
		err := db.Transaction(func(tx *gorm.DB) error {
			var applied model.Migration
			err := tx.Where("name = ?", m.name).First(&applied).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			start := time.Now()
			affected, err := m.up(tx)
			if err != nil {
				return err
			}

			rec := &model.Migration{
				Name:       m.name,
				Affected:   affected,
				DurationMs: time.Since(start).Milliseconds(),
			}

			zap.L().Info("Applied migration", zap.String("name", m.name), zap.Int64("durationMs", rec.DurationMs))
			return tx.Create(rec).Error
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s, %w", m.name, err)
		}
	}

	return nil
}
