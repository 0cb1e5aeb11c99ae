// Package service holds the business logic behind the HTTP handlers
package service

import (
	"context"
	"io"
	"net/http"
	"time"

	"bitwise74/drop-api/internal/access"
	"bitwise74/drop-api/internal/model"
	"bitwise74/drop-api/internal/storage"
	"bitwise74/drop-api/pkg/apperr"
)

// Error codes returned to clients
const (
	CodeDropNotFound         = "DROP_NOT_FOUND"
	CodeMediaNotFound        = "MEDIA_NOT_FOUND"
	CodeDropNotLive          = "DROP_NOT_LIVE"
	CodeDropNotReleased      = "DROP_NOT_RELEASED"
	CodeDropExpired          = "DROP_EXPIRED"
	CodePasscodeRequired     = "PASSCODE_REQUIRED"
	CodeInvalidPasscode      = "INVALID_PASSCODE"
	CodeTitleRequired        = "TITLE_REQUIRED"
	CodeTitleTooLong         = "TITLE_TOO_LONG"
	CodePasscodeForPrivate   = "PASSCODE_REQUIRED_FOR_PRIVATE_DROP"
	CodePasscodeForPublic    = "PASSCODE_NOT_ALLOWED_FOR_PUBLIC_DROP"
	CodePasscodeTooLong      = "PASSCODE_TOO_LONG"
	CodePasscodeConflict     = "PASSCODE_AND_HASH_BOTH_SET"
	CodeInvalidPasscodeHash  = "INVALID_PASSCODE_HASH"
	CodeInvalidSchedule      = "INVALID_SCHEDULE"
	CodeCodeGenerationFailed = "FAILED_TO_GENERATE_UNIQUE_ID"
	CodeDropCodeExists       = "DROP_CODE_EXISTS"
	CodeUpstreamFetchFailed  = "UPSTREAM_FETCH_FAILED"
	CodePositionContention   = "MEDIA_POSITION_CONFLICT"
	CodeNoFileUploaded       = "NO_FILE_UPLOADED"
)

type DropRepository interface {
	FindByCode(ctx context.Context, code string) (*model.Drop, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ExistingCodes(ctx context.Context, codes []string) (map[string]bool, error)
	Create(ctx context.Context, d *model.Drop) error
	Update(ctx context.Context, id string, fields map[string]any) error
	IncrementUnlockCount(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, id string) error
	ListVisible(ctx context.Context, userID string) ([]model.Drop, error)
	ListByOwner(ctx context.Context, ownerID string, publicOnly bool) ([]model.Drop, error)
}

type MediaRepository interface {
	Append(ctx context.Context, dropID string, build func(position int) *model.Media, store func(m *model.Media) error) (*model.Media, error)
	ListByDrop(ctx context.Context, dropID string) ([]model.Media, error)
	FindInDrop(ctx context.Context, dropID, mediaID string) (*model.Media, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByLogin(ctx context.Context, login string) (*model.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	Update(ctx context.Context, id string, fields map[string]any) error
}

// Hasher hashes and verifies passcodes and passwords
type Hasher interface {
	GenerateFromPassword(p string) (string, error)
	VerifyPasswd(p, e string) (bool, error)
}

// HTTPDoer fetches signed URLs when proxying downloads
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type DropConfig struct {
	SignedURLTTL       time.Duration
	KeepPlainPasscodes bool
}

type DropService struct {
	drops  DropRepository
	media  MediaRepository
	store  storage.Store
	hasher Hasher
	engine *access.Engine
	client HTTPDoer
	cfg    DropConfig

	now     func() time.Time
	newCode func() (string, error)
}

func NewDropService(
	drops DropRepository,
	media MediaRepository,
	store storage.Store,
	hasher Hasher,
	client HTTPDoer,
	cfg DropConfig,
) *DropService {
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = 10 * time.Minute
	}

	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	return &DropService{
		drops:   drops,
		media:   media,
		store:   store,
		hasher:  hasher,
		engine:  access.NewEngine(hasher),
		client:  client,
		cfg:     cfg,
		now:     time.Now,
		newCode: generateCode,
	}
}

// DropView is the public description of a drop
type DropView struct {
	ID        string     `json:"id"`
	DropCode  string     `json:"dropCode"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"createdAt"`
	IsPublic  bool       `json:"isPublic"`
	IsOwner   bool       `json:"isOwner"`
	IsLive    bool       `json:"isLive"`
	ReleaseAt *time.Time `json:"releaseAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func viewOf(d *model.Drop, requesterID string) DropView {
	return DropView{
		ID:        d.ID,
		DropCode:  d.Code,
		Title:     d.Title,
		CreatedAt: d.CreatedAt,
		IsPublic:  d.IsPublic(),
		IsOwner:   d.OwnedBy(requesterID),
		IsLive:    d.IsLive,
		ReleaseAt: d.ReleaseAt,
		ExpiresAt: d.ExpiresAt,
	}
}

// MediaView is a single unlocked media item
type MediaView struct {
	ID       string          `json:"id"`
	Type     model.MediaType `json:"type"`
	Position int             `json:"position"`
	Caption  *string         `json:"caption"`
	URL      string          `json:"url"`
}

// UnlockResult is what a successful unlock returns. UnlockCount and
// Passcode are only ever set for the owner.
type UnlockResult struct {
	DropCode    string      `json:"dropCode"`
	Title       string      `json:"title"`
	Tier        access.Tier `json:"tier"`
	Count       int         `json:"count"`
	Media       []MediaView `json:"media"`
	UnlockCount *int64      `json:"unlockCount,omitempty"`
	Passcode    *string     `json:"passcode,omitempty"`
}

// Download is an open upstream object ready to be streamed to the client
type Download struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Filename      string
}

// MediaUpload is a sniffed file ready to be stored in a drop
type MediaUpload struct {
	Body        io.Reader
	Size        int64
	ContentType string
	Extension   string
	Caption     *string
}

// UploadedMedia describes a freshly stored media item
type UploadedMedia struct {
	ID         string          `json:"id"`
	StorageKey string          `json:"storageKey"`
	Type       model.MediaType `json:"type"`
	Position   int             `json:"position"`
	Caption    *string         `json:"caption,omitempty"`
}

// denial converts a negative access decision into the error sent to clients
func denial(r access.Reason) error {
	switch r {
	case access.ReasonNotFound:
		return apperr.NotFound(CodeDropNotFound)
	case access.ReasonPasscodeRequired:
		return apperr.Validation(CodePasscodeRequired)
	case access.ReasonNotLive:
		return apperr.Forbidden(CodeDropNotLive)
	case access.ReasonNotReleased:
		return apperr.Forbidden(CodeDropNotReleased)
	case access.ReasonExpired:
		return apperr.Forbidden(CodeDropExpired)
	case access.ReasonInvalidPasscode:
		return apperr.Forbidden(CodeInvalidPasscode)
	default:
		return apperr.Forbidden(apperr.CodeForbidden)
	}
}
