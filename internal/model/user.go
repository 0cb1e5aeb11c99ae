package model

import "time"

type User struct {
	ID                string  `gorm:"primaryKey;type:text"`
	PhoneNumber       string  `gorm:"uniqueIndex;not null"`
	Username          *string `gorm:"uniqueIndex"`
	PasswordHash      string  `gorm:"not null"`
	DisplayName       string
	ProfilePictureKey *string
	CreatedAt         time.Time `gorm:"autoCreateTime"`

	Drops []Drop `gorm:"foreignKey:OwnerID"`
}
