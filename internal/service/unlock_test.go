package service

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"bitwise74/drop-api/internal/access"
	"bitwise74/drop-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnlockPrivateDrop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d := env.createPrivate(t, "Test Album", "vault123")
	env.upload(t, d.DropCode)

	res, err := env.drops.Unlock(ctx, d.DropCode, "", ptr("vault123"))
	require.NoError(t, err)
	assert.Equal(t, access.TierPasscodeViewer, res.Tier)
	assert.Equal(t, "Test Album", res.Title)
	assert.Equal(t, d.DropCode, res.DropCode)
	assert.Equal(t, 1, res.Count)
	require.Len(t, res.Media, 1)
	assert.True(t, strings.HasPrefix(res.Media[0].URL, env.srv.URL+"/uploads/"))
	assert.Contains(t, res.Media[0].URL, "token=")
	assert.Equal(t, model.MediaTypePhoto, res.Media[0].Type)
	assert.Nil(t, res.UnlockCount)
	assert.Nil(t, res.Passcode)

	_, err = env.drops.Unlock(ctx, d.DropCode, "", ptr("wrong"))
	requireAppErr(t, err, CodeInvalidPasscode, http.StatusForbidden)

	_, err = env.drops.Unlock(ctx, d.DropCode, env.bob, nil)
	requireAppErr(t, err, CodePasscodeRequired, http.StatusBadRequest)

	_, err = env.drops.Unlock(ctx, "NOPE00", "", ptr("vault123"))
	requireAppErr(t, err, CodeDropNotFound, http.StatusNotFound)

	res, err = env.drops.Unlock(ctx, d.DropCode, env.alice, nil)
	require.NoError(t, err)
	assert.Equal(t, access.TierOwner, res.Tier)
	require.NotNil(t, res.UnlockCount)
	assert.EqualValues(t, 2, *res.UnlockCount, "denied unlocks are not counted")
	require.NotNil(t, res.Passcode)
	assert.Equal(t, "vault123", *res.Passcode)
}

func TestUnlockPublicDropAnonymously(t *testing.T) {
	env := newTestEnv(t)

	d := env.createPublic(t, "Open")
	res, err := env.drops.Unlock(context.Background(), d.DropCode, "", nil)
	require.NoError(t, err)
	assert.Equal(t, access.TierPublicViewer, res.Tier)
	assert.Equal(t, 0, res.Count)
	assert.NotNil(t, res.Media)
	assert.Nil(t, res.UnlockCount)
	assert.Nil(t, res.Passcode)

	// Signed in, but not the owner
	res, err = env.drops.Unlock(context.Background(), d.DropCode, env.bob, nil)
	require.NoError(t, err)
	assert.Equal(t, access.TierPublicViewer, res.Tier)
	assert.Nil(t, res.UnlockCount)
	assert.Nil(t, res.Passcode)

	res, err = env.drops.Unlock(context.Background(), d.DropCode, env.alice, nil)
	require.NoError(t, err)
	assert.Equal(t, access.TierOwner, res.Tier)
	require.NotNil(t, res.UnlockCount)
	assert.EqualValues(t, 3, *res.UnlockCount)
	assert.Nil(t, res.Passcode, "public drops have no passcode")
}

func TestUnlockOrdersMediaByPosition(t *testing.T) {
	env := newTestEnv(t)
	d := env.createPublic(t, "Ordered")

	for range 6 {
		env.upload(t, d.DropCode)
	}

	res, err := env.drops.Unlock(context.Background(), d.DropCode, "", nil)
	require.NoError(t, err)
	require.Len(t, res.Media, 6)
	for i, m := range res.Media {
		assert.Equal(t, i+1, m.Position)
		assert.Contains(t, m.URL, "/photos/"+string(rune('1'+i))+".png")
	}
}

func TestUnlockAvailabilityGates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := env.createPrivate(t, "Gated", "vault123")

	_, err := env.drops.Update(ctx, d.DropCode, env.alice, UpdateDropInput{IsLive: ptr(false)})
	require.NoError(t, err)

	_, err = env.drops.Unlock(ctx, d.DropCode, env.alice, nil)
	requireAppErr(t, err, CodeDropNotLive, http.StatusForbidden)
	_, err = env.drops.Unlock(ctx, d.DropCode, "", ptr("vault123"))
	requireAppErr(t, err, CodeDropNotLive, http.StatusForbidden)

	release := time.Now().Add(time.Hour)
	_, err = env.drops.Update(ctx, d.DropCode, env.alice, UpdateDropInput{
		IsLive:    ptr(true),
		ReleaseAt: NullableTime{Set: true, Value: &release},
	})
	require.NoError(t, err)

	_, err = env.drops.Unlock(ctx, d.DropCode, "", ptr("vault123"))
	requireAppErr(t, err, CodeDropNotReleased, http.StatusForbidden)

	env.drops.now = func() time.Time { return release.Add(time.Minute) }
	_, err = env.drops.Unlock(ctx, d.DropCode, "", ptr("vault123"))
	require.NoError(t, err)

	expires := release.Add(2 * time.Minute)
	_, err = env.drops.Update(ctx, d.DropCode, env.alice, UpdateDropInput{ExpiresAt: NullableTime{Set: true, Value: &expires}})
	require.NoError(t, err)

	env.drops.now = func() time.Time { return expires }
	_, err = env.drops.Unlock(ctx, d.DropCode, env.alice, nil)
	requireAppErr(t, err, CodeDropExpired, http.StatusForbidden)

	var stored model.Drop
	require.NoError(t, env.db.Where("code = ?", d.DropCode).First(&stored).Error)
	assert.EqualValues(t, 1, stored.UnlockCount)
}

func TestUnlockCountsEverySuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := env.createPublic(t, "Counter")

	for range 4 {
		_, err := env.drops.Unlock(ctx, d.DropCode, env.bob, nil)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.drops.Unlock(ctx, d.DropCode, "", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	res, err := env.drops.Unlock(ctx, d.DropCode, env.alice, nil)
	require.NoError(t, err)
	require.NotNil(t, res.UnlockCount)
	assert.EqualValues(t, 15, *res.UnlockCount)
}
