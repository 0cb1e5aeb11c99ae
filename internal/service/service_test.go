package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bitwise74/drop-api/db"
	"bitwise74/drop-api/internal/model"
	"bitwise74/drop-api/internal/repository"
	"bitwise74/drop-api/internal/storage"
	"bitwise74/drop-api/pkg/apperr"
	"bitwise74/drop-api/pkg/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00\x90wS\xde")

type testEnv struct {
	db     *gorm.DB
	drops  *DropService
	users  *UserService
	store  *storage.Local
	hasher *security.ArgonHash
	srv    *httptest.Server

	alice string
	bob   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	d, err := db.New(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(d) })

	tokens := security.NewTokens("test-secret", time.Hour)

	var store *storage.Local
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, err := store.Open(strings.TrimPrefix(r.URL.Path, "/uploads/"), r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", "image/png")
		io.Copy(w, f)
	}))
	t.Cleanup(srv.Close)

	store, err = storage.NewLocal(filepath.Join(t.TempDir(), "uploads"), srv.URL, tokens)
	require.NoError(t, err)

	hasher := &security.ArgonHash{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	userRepo := repository.NewUsers(d)

	drops := NewDropService(repository.NewDrops(d), repository.NewMedia(d), store, hasher, srv.Client(), DropConfig{
		SignedURLTTL:       time.Minute,
		KeepPlainPasscodes: true,
	})

	env := &testEnv{
		db:     d,
		drops:  drops,
		users:  NewUserService(userRepo, drops, store, hasher, tokens, time.Minute),
		store:  store,
		hasher: hasher,
		srv:    srv,
		alice:  "alice",
		bob:    "bob",
	}

	for i, id := range []string{env.alice, env.bob} {
		require.NoError(t, userRepo.Create(context.Background(), &model.User{
			ID:           id,
			PhoneNumber:  "+1555000000" + string(rune('0'+i)),
			PasswordHash: "x",
		}))
	}

	return env
}

func ptr[T any](v T) *T { return &v }

func requireAppErr(t *testing.T, err error, code string, status int) {
	t.Helper()

	var e *apperr.Error
	require.True(t, errors.As(err, &e), "expected *apperr.Error, got %v", err)
	assert.Equal(t, code, e.Code)
	assert.Equal(t, status, e.Status())
}

func (e *testEnv) createPrivate(t *testing.T, title, passcode string) *DropView {
	t.Helper()

	v, err := e.drops.Create(context.Background(), e.alice, CreateDropInput{Title: title, Passcode: &passcode})
	require.NoError(t, err)
	return v
}

func (e *testEnv) createPublic(t *testing.T, title string) *DropView {
	t.Helper()

	v, err := e.drops.Create(context.Background(), e.alice, CreateDropInput{Title: title, IsPublic: true})
	require.NoError(t, err)
	return v
}

func (e *testEnv) upload(t *testing.T, code string) *UploadedMedia {
	t.Helper()

	m, err := e.drops.UploadMedia(context.Background(), code, e.alice, MediaUpload{
		Body:        bytes.NewReader(pngBytes),
		Size:        int64(len(pngBytes)),
		ContentType: "image/png",
		Extension:   ".png",
	})
	require.NoError(t, err)
	return m
}

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
