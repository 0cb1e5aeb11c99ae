package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"bitwise74/drop-api/internal/model"
	"bitwise74/drop-api/internal/repository"
	"bitwise74/drop-api/internal/storage"
	"bitwise74/drop-api/pkg/apperr"
	"bitwise74/drop-api/pkg/validators"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const (
	userIDCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeUserExists         = "USER_ALREADY_EXISTS"
	CodeUsernameTaken      = "USERNAME_TAKEN"
	CodeInvalidPhone       = "INVALID_PHONE_NUMBER"
	CodeInvalidUsername    = "INVALID_USERNAME"
	CodeInvalidPassword    = "INVALID_PASSWORD"
	CodeInvalidName        = "INVALID_NAME"
	CodeInvalidPictureURL  = "INVALID_PROFILE_PICTURE_URL"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// TokenIssuer creates account tokens
type TokenIssuer interface {
	MakeAuthToken(userID string) (string, error)
}

type UserService struct {
	users  UserRepository
	drops  *DropService
	store  storage.Store
	hasher Hasher
	tokens TokenIssuer
	urlTTL time.Duration
	now    func() time.Time
}

func NewUserService(users UserRepository, drops *DropService, store storage.Store, hasher Hasher, tokens TokenIssuer, urlTTL time.Duration) *UserService {
	if urlTTL <= 0 {
		urlTTL = 10 * time.Minute
	}

	return &UserService{
		users:  users,
		drops:  drops,
		store:  store,
		hasher: hasher,
		tokens: tokens,
		urlTTL: urlTTL,
		now:    time.Now,
	}
}

type UserView struct {
	ID                string    `json:"id"`
	PhoneNumber       string    `json:"phoneNumber,omitempty"`
	Name              string    `json:"name"`
	Username          *string   `json:"username"`
	ProfilePictureURL *string   `json:"profilePictureUrl"`
	CreatedAt         time.Time `json:"createdAt"`
	IsOwner           *bool     `json:"isOwner,omitempty"`
}

type AuthResult struct {
	User  UserView `json:"user"`
	Token string   `json:"token"`
}

type PublicProfile struct {
	User  UserView   `json:"user"`
	Drops []DropView `json:"drops"`
}

type SignupInput struct {
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	Username    string `json:"username"`
}

type ProfileUpdate struct {
	Name              *string `json:"name"`
	Username          *string `json:"username"`
	ProfilePictureURL *string `json:"profilePictureUrl"`
}

// pictureURL resolves a stored picture reference. External URLs are passed
// through, storage keys are signed.
func (s *UserService) pictureURL(ctx context.Context, ref *string) *string {
	if ref == nil || *ref == "" {
		return nil
	}

	if strings.HasPrefix(*ref, "http://") || strings.HasPrefix(*ref, "https://") {
		return ref
	}

	u, err := s.store.SignedURL(ctx, *ref, s.urlTTL)
	if err != nil {
		zap.L().Warn("Failed to sign profile picture", zap.String("key", *ref), zap.Error(err))
		return nil
	}

	return &u
}

func (s *UserService) view(ctx context.Context, u *model.User, private bool) UserView {
	v := UserView{
		ID:                u.ID,
		Name:              u.DisplayName,
		Username:          u.Username,
		ProfilePictureURL: s.pictureURL(ctx, u.ProfilePictureKey),
		CreatedAt:         u.CreatedAt,
	}

	if private {
		v.PhoneNumber = u.PhoneNumber
	}

	return v
}

func (s *UserService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	phone, err := validators.NormalizePhone(in.PhoneNumber)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, CodeInvalidPhone, err)
	}

	username := strings.TrimSpace(in.Username)
	if err := validators.UsernameValidator(username); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, CodeInvalidUsername, err)
	}

	if err := validators.PasswordValidator(in.Password); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, CodeInvalidPassword, err)
	}

	name := strings.TrimSpace(in.Name)
	if err := validators.DisplayNameValidator(name); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, CodeInvalidName, err)
	}

	hash, err := s.hasher.GenerateFromPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to hash password, %w", err))
	}

	id, err := gonanoid.Generate(userIDCharset, 16)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to generate user id, %w", err))
	}

	u := &model.User{
		ID:           id,
		PhoneNumber:  phone,
		Username:     &username,
		PasswordHash: hash,
		DisplayName:  name,
	}

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Wrap(apperr.KindConflict, CodeUserExists, err)
		}
		return nil, apperr.Internal(fmt.Errorf("failed to create user, %w", err))
	}

	return s.issue(ctx, u)
}

// Login accepts either a phone number or a username as login
func (s *UserService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, CodeInvalidCredentials)
	}

	u, err := s.users.FindByLogin(ctx, login)
	if errors.Is(err, repository.ErrNotFound) {
		// People type their number with separators too
		if phone, perr := validators.NormalizePhone(login); perr == nil && phone != login {
			u, err = s.users.FindByLogin(ctx, phone)
		}
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindUnauthenticated, CodeInvalidCredentials)
		}
		return nil, apperr.Internal(fmt.Errorf("failed to look up user, %w", err))
	}

	ok, err := s.hasher.VerifyPasswd(password, u.PasswordHash)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to verify password, %w", err))
	}

	if !ok {
		return nil, apperr.New(apperr.KindUnauthenticated, CodeInvalidCredentials)
	}

	return s.issue(ctx, u)
}

func (s *UserService) issue(ctx context.Context, u *model.User) (*AuthResult, error) {
	token, err := s.tokens.MakeAuthToken(u.ID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to generate auth token, %w", err))
	}

	return &AuthResult{User: s.view(ctx, u, true), Token: token}, nil
}

func (s *UserService) find(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(CodeUserNotFound)
		}
		return nil, apperr.Internal(fmt.Errorf("failed to fetch user, %w", err))
	}

	return u, nil
}

// Exists is used by the auth middleware to reject tokens of deleted accounts
func (s *UserService) Exists(ctx context.Context, id string) (bool, error) {
	return s.users.Exists(ctx, id)
}

func (s *UserService) Profile(ctx context.Context, id string) (*UserView, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	v := s.view(ctx, u, true)
	return &v, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*UserView, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validators.DisplayNameValidator(name); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, CodeInvalidName, err)
		}
		u.DisplayName = name
		fields["display_name"] = name
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validators.UsernameValidator(username); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, CodeInvalidUsername, err)
		}
		u.Username = &username
		fields["username"] = username
	}

	if in.ProfilePictureURL != nil {
		ref := strings.TrimSpace(*in.ProfilePictureURL)
		switch {
		case ref == "":
			u.ProfilePictureKey = nil
			fields["profile_picture_key"] = nil
		case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
			u.ProfilePictureKey = &ref
			fields["profile_picture_key"] = ref
		default:
			return nil, apperr.Validation(CodeInvalidPictureURL)
		}
	}

	if err := s.users.Update(ctx, id, fields); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Wrap(apperr.KindConflict, CodeUsernameTaken, err)
		}
		return nil, apperr.Internal(fmt.Errorf("failed to update user, %w", err))
	}

	v := s.view(ctx, u, true)
	return &v, nil
}

// SetProfilePicture stores an already validated image and points the
// account at it. The previous picture is removed afterwards.
func (s *UserService) SetProfilePicture(ctx context.Context, id string, up MediaUpload, filename string) (*string, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	name := unsafeNameChars.ReplaceAllString(path.Base(filename), "_")
	if name == "" || name == "." || name == "_" {
		name = "picture" + up.Extension
	}

	key := fmt.Sprintf("profile-pictures/%s/%d-%s", id, s.now().UnixMilli(), name)

	if _, err := s.store.Put(ctx, key, up.Body, up.Size, up.ContentType); err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to store profile picture, %w", err))
	}

	if err := s.users.Update(ctx, id, map[string]any{"profile_picture_key": key}); err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil {
			zap.L().Error("Failed to clean up profile picture", zap.String("key", key), zap.Error(derr))
		}
		return nil, apperr.Internal(fmt.Errorf("failed to update user, %w", err))
	}

	if old := u.ProfilePictureKey; old != nil && strings.HasPrefix(*old, "profile-pictures/") {
		if err := s.store.Delete(ctx, *old); err != nil {
			zap.L().Warn("Failed to delete old profile picture", zap.String("key", *old), zap.Error(err))
		}
	}

	return s.pictureURL(ctx, &key), nil
}

// PublicProfile shows an account and its drops. Visitors only get public
// drops and never see the phone number.
func (s *UserService) PublicProfile(ctx context.Context, id, requesterID string) (*PublicProfile, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	isOwner := requesterID != "" && requesterID == u.ID

	drops, err := s.drops.ListByOwner(ctx, u.ID, requesterID)
	if err != nil {
		return nil, err
	}

	v := s.view(ctx, u, isOwner)
	v.IsOwner = &isOwner

	return &PublicProfile{User: v, Drops: drops}, nil
}
