// Package model defines database models
package model

import "time"

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type Drop struct {
	ID         string     `gorm:"primaryKey;type:text" json:"id"`
	Code       string     `gorm:"uniqueIndex;size:6;not null" json:"dropCode"`
	Title      string     `gorm:"not null" json:"title"`
	Visibility Visibility `gorm:"not null;size:16" json:"-"`

	// Both passcode fields are nil for public drops. PasscodePlain is kept only so
	// the owner can see the passcode they handed out, it must never leave the
	// owner response path.
	PasscodeHash  *string `json:"-"`
	PasscodePlain *string `json:"-"`

	// Legacy drops may have no owner
	OwnerID *string `gorm:"index" json:"-"`

	IsLive      bool       `gorm:"not null" json:"isLive"`
	ReleaseAt   *time.Time `json:"releaseAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	UnlockCount int64      `gorm:"not null;default:0" json:"-"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"createdAt"`

	Media []Media `gorm:"foreignKey:DropID;constraint:OnDelete:CASCADE" json:"-"`
}

func (d *Drop) IsPublic() bool {
	return d.Visibility == VisibilityPublic
}

// OwnedBy reports whether userID is the drop's owner. Anonymous callers
// (empty userID) never own anything.
func (d *Drop) OwnedBy(userID string) bool {
	return userID != "" && d.OwnerID != nil && *d.OwnerID == userID
}
