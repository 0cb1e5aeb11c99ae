package internal

import (
	"time"

	"bitwise74/drop-api/internal/service"
	"bitwise74/drop-api/internal/storage"
	"bitwise74/drop-api/pkg/security"

	"gorm.io/gorm"
)

type Deps struct {
	DB     *gorm.DB
	Argon  *security.ArgonHash
	Tokens *security.Tokens
	Store  storage.Store
	// Set only when objects live on the local filesystem
	Local *storage.Local
	Drops *service.DropService
	Users *service.UserService

	MaxUploadSize int64
	TokenTTL      time.Duration
	SecureCookies bool
}
