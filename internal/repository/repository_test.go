package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bitwise74/drop-api/db"
	"bitwise74/drop-api/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()

	d, err := db.New(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(d) })

	return d
}

func seedUser(t *testing.T, users *Users, id string) *model.User {
	t.Helper()

	u := &model.User{ID: id, PhoneNumber: "+1555" + id, PasswordHash: "x", DisplayName: id}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func seedDrop(t *testing.T, drops *Drops, code string, owner *string, vis model.Visibility) *model.Drop {
	t.Helper()

	d := &model.Drop{
		ID:         uuid.NewString(),
		Code:       code,
		Title:      "drop " + code,
		Visibility: vis,
		OwnerID:    owner,
		IsLive:     true,
	}
	if vis == model.VisibilityPrivate {
		h := "hash"
		d.PasscodeHash = &h
	}

	require.NoError(t, drops.Create(context.Background(), d))
	return d
}

func appendMedia(t *testing.T, media *Media, dropID string) *model.Media {
	t.Helper()

	m, err := media.Append(context.Background(), dropID,
		func(pos int) *model.Media {
			return &model.Media{
				ID:         uuid.NewString(),
				StorageKey: fmt.Sprintf("k/%d", pos),
				Type:       model.MediaTypePhoto,
			}
		},
		func(*model.Media) error { return nil },
	)
	require.NoError(t, err)
	return m
}

func TestDropCodeUnique(t *testing.T) {
	d := openDB(t)
	drops := NewDrops(d)
	ctx := context.Background()

	seedDrop(t, drops, "ABC123", nil, model.VisibilityPublic)

	err := drops.Create(ctx, &model.Drop{ID: uuid.NewString(), Code: "ABC123", Title: "again", Visibility: model.VisibilityPublic})
	assert.ErrorIs(t, err, ErrConflict)

	ok, err := drops.CodeExists(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = drops.CodeExists(ctx, "ZZZ999")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = drops.FindByCode(ctx, "ZZZ999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncrementUnlockCountConcurrent(t *testing.T) {
	d := openDB(t)
	drops := NewDrops(d)
	drop := seedDrop(t, drops, "CNT001", nil, model.VisibilityPublic)

	var wg sync.WaitGroup
	seen := make(chan int64, 10)

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := drops.IncrementUnlockCount(context.Background(), drop.ID)
			assert.NoError(t, err)
			seen <- n
		}()
	}
	wg.Wait()
	close(seen)

	values := map[int64]bool{}
	for n := range seen {
		values[n] = true
	}
	assert.Len(t, values, 10, "each increment should observe its own value")

	got, err := drops.FindByCode(context.Background(), "CNT001")
	require.NoError(t, err)
	assert.EqualValues(t, 10, got.UnlockCount)

	_, err = drops.IncrementUnlockCount(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendAssignsSequentialPositions(t *testing.T) {
	d := openDB(t)
	drops := NewDrops(d)
	media := NewMedia(d)
	drop := seedDrop(t, drops, "POS001", nil, model.VisibilityPublic)

	for i := 1; i <= 3; i++ {
		m := appendMedia(t, media, drop.ID)
		assert.Equal(t, i, m.Position)
		assert.Equal(t, fmt.Sprintf("k/%d", i), m.StorageKey)
	}

	list, err := media.ListByDrop(context.Background(), drop.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, m := range list {
		assert.Equal(t, i+1, m.Position)
	}
}

func TestAppendConcurrentPositionsAreDistinct(t *testing.T) {
	d := openDB(t)
	drops := NewDrops(d)
	media := NewMedia(d)
	drop := seedDrop(t, drops, "POS002", nil, model.VisibilityPublic)

	var wg sync.WaitGroup
	positions := make(chan int, 5)

	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := media.Append(context.Background(), drop.ID,
				func(int) *model.Media {
					return &model.Media{ID: uuid.NewString(), StorageKey: "k", Type: model.MediaTypePhoto}
				},
				func(*model.Media) error { return nil },
			)
			if assert.NoError(t, err) {
				positions <- m.Position
			}
		}()
	}
	wg.Wait()
	close(positions)

	got := map[int]bool{}
	for p := range positions {
		got[p] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}, got)
}

func TestAppendRollsBackWhenStoreFails(t *testing.T) {
	d := openDB(t)
	drops := NewDrops(d)
	media := NewMedia(d)
	drop := seedDrop(t, drops, "POS003", nil, model.VisibilityPublic)
	ctx := context.Background()

	boom := errors.New("bucket unavailable")
	_, err := media.Append(ctx, drop.ID,
		func(int) *model.Media {
			return &model.Media{ID: uuid.NewString(), StorageKey: "k", Type: model.MediaTypePhoto}
		},
		func(*model.Media) error { return boom },
	)
	assert.ErrorIs(t, err, boom)

	count, err := media.CountByDrop(ctx, drop.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// The failed attempt doesn't burn a position
	assert.Equal(t, 1, appendMedia(t, media, drop.ID).Position)

	_, err = media.Append(ctx, "missing", nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindInDropScopesToDrop(t *testing.T) {
	d := openDB(t)
	drops := NewDrops(d)
	media := NewMedia(d)
	a := seedDrop(t, drops, "AAA111", nil, model.VisibilityPublic)
	b := seedDrop(t, drops, "BBB222", nil, model.VisibilityPublic)
	m := appendMedia(t, media, a.ID)

	got, err := media.FindInDrop(context.Background(), a.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = media.FindInDrop(context.Background(), b.ID, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesMediaAndDrop(t *testing.T) {
	d := openDB(t)
	drops := NewDrops(d)
	media := NewMedia(d)
	drop := seedDrop(t, drops, "DEL001", nil, model.VisibilityPublic)
	appendMedia(t, media, drop.ID)
	appendMedia(t, media, drop.ID)
	ctx := context.Background()

	require.NoError(t, drops.Delete(ctx, drop.ID))

	count, err := media.CountByDrop(ctx, drop.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = drops.FindByCode(ctx, "DEL001")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, drops.Delete(ctx, drop.ID), ErrNotFound)
}

func TestListVisible(t *testing.T) {
	d := openDB(t)
	users := NewUsers(d)
	drops := NewDrops(d)
	ctx := context.Background()

	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")

	seedDrop(t, drops, "PUB001", &bob.ID, model.VisibilityPublic)
	time.Sleep(5 * time.Millisecond)
	seedDrop(t, drops, "PRV001", &alice.ID, model.VisibilityPrivate)
	time.Sleep(5 * time.Millisecond)
	seedDrop(t, drops, "PRV002", &bob.ID, model.VisibilityPrivate)

	codes := func(list []model.Drop) []string {
		out := make([]string, len(list))
		for i, d := range list {
			out[i] = d.Code
		}
		return out
	}

	anon, err := drops.ListVisible(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"PUB001"}, codes(anon))

	mine, err := drops.ListVisible(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"PRV001", "PUB001"}, codes(mine))

	bobs, err := drops.ListByOwner(ctx, bob.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"PUB001"}, codes(bobs))

	bobs, err = drops.ListByOwner(ctx, bob.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"PRV002", "PUB001"}, codes(bobs))

	existing, err := drops.ExistingCodes(ctx, []string{"PUB001", "GONE01"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"PUB001": true}, existing)
}

func TestUsers(t *testing.T) {
	d := openDB(t)
	users := NewUsers(d)
	ctx := context.Background()

	name := "alice"
	u := &model.User{ID: "u1", PhoneNumber: "+15550001", Username: &name, PasswordHash: "x"}
	require.NoError(t, users.Create(ctx, u))

	dup := &model.User{ID: "u2", PhoneNumber: "+15550001", PasswordHash: "x"}
	assert.ErrorIs(t, users.Create(ctx, dup), ErrConflict)

	byPhone, err := users.FindByLogin(ctx, "+15550001")
	require.NoError(t, err)
	assert.Equal(t, "u1", byPhone.ID)

	byName, err := users.FindByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", byName.ID)

	_, err = users.FindByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, users.Update(ctx, "u1", map[string]any{"display_name": "Alice"}))
	got, err := users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)

	ok, err := users.Exists(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, users.Update(ctx, "ghost", map[string]any{"display_name": "x"}), ErrNotFound)
}
