package model

import "time"

type MediaType string

const (
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
)

type Media struct {
	ID     string `gorm:"primaryKey;type:text" json:"id"`
	DropID string `gorm:"not null;uniqueIndex:idx_media_drop_position" json:"-"`

	// Encodes the drop code, kind and position for humans browsing the bucket.
	// Code outside of storage key generation treats it as opaque.
	StorageKey  string    `gorm:"not null" json:"storageKey"`
	Type        MediaType `gorm:"not null;size:16" json:"type"`
	ContentType string    `json:"-"`
	Size        int64     `json:"-"`
	Position    int       `gorm:"not null;uniqueIndex:idx_media_drop_position" json:"position"`
	Caption     *string   `json:"caption"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"-"`
}

func (Media) TableName() string {
	return "media"
}
