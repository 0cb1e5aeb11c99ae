package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitwise74/drop-api/internal/model"
	"bitwise74/drop-api/internal/repository"
	"bitwise74/drop-api/pkg/apperr"
	"bitwise74/drop-api/pkg/security"
	"bitwise74/drop-api/pkg/validators"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength      = 6
	maxCodeAttempts = 10
)

func generateCode() (string, error) {
	return gonanoid.Generate(codeAlphabet, codeLength)
}

// NormalizeCode upper-cases a drop code taken from a URL
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type CreateDropInput struct {
	Title     string     `json:"title"`
	Passcode  *string    `json:"passcode"`
	IsPublic  bool       `json:"isPublic"`
	ReleaseAt *time.Time `json:"releaseAt"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// NullableTime tells an explicit JSON null apart from a missing field
type NullableTime struct {
	Set   bool
	Value *time.Time
}

func (n *NullableTime) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}

	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}

	n.Value = &t
	return nil
}

type UpdateDropInput struct {
	Title        *string      `json:"title"`
	Passcode     *string      `json:"passcode"`
	PasscodeHash *string      `json:"passcodeHash"`
	IsPublic     *bool        `json:"isPublic"`
	IsLive       *bool        `json:"isLive"`
	ReleaseAt    NullableTime `json:"releaseAt"`
	ExpiresAt    NullableTime `json:"expiresAt"`
}

func titleError(err error) error {
	if errors.Is(err, validators.ErrTitleTooLong) {
		return apperr.Validation(CodeTitleTooLong)
	}
	return apperr.Validation(CodeTitleRequired)
}

func checkSchedule(release, expires *time.Time) error {
	if release != nil && expires != nil && !expires.After(*release) {
		return apperr.Validation(CodeInvalidSchedule)
	}
	return nil
}

// Create makes a new drop owned by ownerID. Private drops need a passcode.
func (s *DropService) Create(ctx context.Context, ownerID string, in CreateDropInput) (*DropView, error) {
	if ownerID == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, apperr.CodeUnauthenticated)
	}

	title, err := validators.NormalizeTitle(in.Title)
	if err != nil {
		return nil, titleError(err)
	}

	if err := checkSchedule(in.ReleaseAt, in.ExpiresAt); err != nil {
		return nil, err
	}

	drop := &model.Drop{
		ID:         uuid.NewString(),
		Title:      title,
		Visibility: model.VisibilityPublic,
		OwnerID:    &ownerID,
		IsLive:     true,
		ReleaseAt:  in.ReleaseAt,
		ExpiresAt:  in.ExpiresAt,
	}

	if !in.IsPublic {
		if in.Passcode == nil || *in.Passcode == "" {
			return nil, apperr.Validation(CodePasscodeForPrivate)
		}

		if err := s.setPasscode(drop, *in.Passcode); err != nil {
			return nil, err
		}
	}

	code, err := s.freeCode(ctx)
	if err != nil {
		return nil, err
	}
	drop.Code = code

	if err := s.drops.Create(ctx, drop); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Wrap(apperr.KindConflict, CodeDropCodeExists, err)
		}
		return nil, apperr.Internal(fmt.Errorf("failed to create drop, %w", err))
	}

	zap.L().Debug("Drop created", zap.String("code", drop.Code), zap.String("ownerID", ownerID))

	v := viewOf(drop, ownerID)
	return &v, nil
}

// freeCode draws random codes until one isn't taken
func (s *DropService) freeCode(ctx context.Context) (string, error) {
	for range maxCodeAttempts {
		code, err := s.newCode()
		if err != nil {
			return "", apperr.Internal(fmt.Errorf("failed to generate drop code, %w", err))
		}

		taken, err := s.drops.CodeExists(ctx, code)
		if err != nil {
			return "", apperr.Internal(fmt.Errorf("failed to check drop code, %w", err))
		}

		if !taken {
			return code, nil
		}
	}

	return "", apperr.New(apperr.KindInternal, CodeCodeGenerationFailed)
}

func (s *DropService) setPasscode(d *model.Drop, passcode string) error {
	if err := validators.PasscodeValidator(passcode); err != nil {
		if errors.Is(err, validators.ErrPasscodeTooLong) {
			return apperr.Validation(CodePasscodeTooLong)
		}
		return apperr.Validation(CodePasscodeForPrivate)
	}

	hash, err := s.hasher.GenerateFromPassword(passcode)
	if err != nil {
		return apperr.Internal(fmt.Errorf("failed to hash passcode, %w", err))
	}

	d.Visibility = model.VisibilityPrivate
	d.PasscodeHash = &hash
	d.PasscodePlain = nil
	if s.cfg.KeepPlainPasscodes {
		d.PasscodePlain = &passcode
	}

	return nil
}

func (s *DropService) find(ctx context.Context, code string) (*model.Drop, error) {
	d, err := s.drops.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(CodeDropNotFound)
		}
		return nil, apperr.Internal(fmt.Errorf("failed to fetch drop, %w", err))
	}

	return d, nil
}

// findOwned returns the drop only if requesterID owns it
func (s *DropService) findOwned(ctx context.Context, code, requesterID string) (*model.Drop, error) {
	d, err := s.find(ctx, code)
	if err != nil {
		return nil, err
	}

	if !d.OwnedBy(requesterID) {
		return nil, apperr.Forbidden(apperr.CodeForbidden)
	}

	return d, nil
}

// List returns public drops plus those owned by requesterID
func (s *DropService) List(ctx context.Context, requesterID string) ([]DropView, error) {
	drops, err := s.drops.ListVisible(ctx, requesterID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to list drops, %w", err))
	}

	views := make([]DropView, len(drops))
	for i := range drops {
		views[i] = viewOf(&drops[i], requesterID)
	}

	return views, nil
}

// Get returns drop metadata. Metadata isn't gated, the contents are.
func (s *DropService) Get(ctx context.Context, code, requesterID string) (*DropView, error) {
	d, err := s.find(ctx, code)
	if err != nil {
		return nil, err
	}

	v := viewOf(d, requesterID)
	return &v, nil
}

// Update applies a partial change requested by the drop's owner
func (s *DropService) Update(ctx context.Context, code, requesterID string, in UpdateDropInput) (*DropView, error) {
	d, err := s.findOwned(ctx, code, requesterID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}

	if in.Title != nil {
		title, err := validators.NormalizeTitle(*in.Title)
		if err != nil {
			return nil, titleError(err)
		}
		d.Title = title
		fields["title"] = title
	}

	if in.IsLive != nil {
		d.IsLive = *in.IsLive
		fields["is_live"] = *in.IsLive
	}

	if in.ReleaseAt.Set {
		d.ReleaseAt = in.ReleaseAt.Value
		fields["release_at"] = in.ReleaseAt.Value
	}

	if in.ExpiresAt.Set {
		d.ExpiresAt = in.ExpiresAt.Value
		fields["expires_at"] = in.ExpiresAt.Value
	}

	if err := checkSchedule(d.ReleaseAt, d.ExpiresAt); err != nil {
		return nil, err
	}

	if err := s.applyVisibility(d, in, fields); err != nil {
		return nil, err
	}

	if err := s.drops.Update(ctx, d.ID, fields); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(CodeDropNotFound)
		}
		return nil, apperr.Internal(fmt.Errorf("failed to update drop, %w", err))
	}

	v := viewOf(d, requesterID)
	return &v, nil
}

// applyVisibility keeps the passcode columns consistent with the resulting
// visibility: private drops always have a hash, public ones never do
func (s *DropService) applyVisibility(d *model.Drop, in UpdateDropInput, fields map[string]any) error {
	public := d.IsPublic()
	if in.IsPublic != nil {
		public = *in.IsPublic
	}

	hasPasscode := in.Passcode != nil && *in.Passcode != ""
	hasHash := in.PasscodeHash != nil && *in.PasscodeHash != ""

	if hasPasscode && hasHash {
		return apperr.Validation(CodePasscodeConflict)
	}

	if public {
		if hasPasscode || hasHash {
			return apperr.Validation(CodePasscodeForPublic)
		}

		if !d.IsPublic() {
			d.Visibility = model.VisibilityPublic
			d.PasscodeHash = nil
			d.PasscodePlain = nil
			fields["visibility"] = model.VisibilityPublic
			fields["passcode_hash"] = nil
			fields["passcode_plain"] = nil
		}

		return nil
	}

	switch {
	case hasPasscode:
		if err := s.setPasscode(d, *in.Passcode); err != nil {
			return err
		}
	case hasHash:
		if !security.IsHash(*in.PasscodeHash) {
			return apperr.Validation(CodeInvalidPasscodeHash)
		}
		d.Visibility = model.VisibilityPrivate
		d.PasscodeHash = in.PasscodeHash
		d.PasscodePlain = nil
	case d.PasscodeHash == nil:
		return apperr.Validation(CodePasscodeForPrivate)
	default:
		// Private and staying private with the current passcode
		return nil
	}

	fields["visibility"] = d.Visibility
	fields["passcode_hash"] = d.PasscodeHash
	fields["passcode_plain"] = d.PasscodePlain
	return nil
}

// Delete removes a drop's stored objects, then its media rows, then the
// drop itself. Objects go first so a failure leaves rows to retry from.
func (s *DropService) Delete(ctx context.Context, code, requesterID string) error {
	d, err := s.findOwned(ctx, code, requesterID)
	if err != nil {
		return err
	}

	keys, err := s.store.List(ctx, dropPrefix(d.Code))
	if err != nil {
		return apperr.Internal(fmt.Errorf("failed to list drop objects, %w", err))
	}

	media, err := s.media.ListByDrop(ctx, d.ID)
	if err != nil {
		return apperr.Internal(fmt.Errorf("failed to list drop media, %w", err))
	}

	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for _, m := range media {
		if !seen[m.StorageKey] {
			keys = append(keys, m.StorageKey)
			seen[m.StorageKey] = true
		}
	}

	if len(keys) > 0 {
		if err := s.store.Delete(ctx, keys...); err != nil {
			return apperr.Internal(fmt.Errorf("failed to delete drop objects, %w", err))
		}
	}

	if err := s.drops.Delete(ctx, d.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperr.Internal(fmt.Errorf("failed to delete drop, %w", err))
	}

	zap.L().Debug("Drop deleted", zap.String("code", d.Code), zap.Int("objects", len(keys)))
	return nil
}

// ListByOwner returns the drops shown on a profile. Visitors only see the
// public ones.
func (s *DropService) ListByOwner(ctx context.Context, ownerID, requesterID string) ([]DropView, error) {
	drops, err := s.drops.ListByOwner(ctx, ownerID, ownerID != requesterID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to list drops, %w", err))
	}

	views := make([]DropView, len(drops))
	for i := range drops {
		views[i] = viewOf(&drops[i], requesterID)
	}

	return views, nil
}

func dropPrefix(code string) string {
	return "drops/" + code + "/"
}
