package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d := env.createPrivate(t, "Secret", "vault123")
	m := env.upload(t, d.DropCode)

	dl, err := env.drops.Download(ctx, d.DropCode, m.ID, "", ptr("vault123"))
	require.NoError(t, err)
	defer dl.Body.Close()

	body, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, body)
	assert.Equal(t, "1.png", dl.Filename)
	assert.Equal(t, "image/png", dl.ContentType)

	owner, err := env.drops.Download(ctx, d.DropCode, m.ID, env.alice, nil)
	require.NoError(t, err)
	owner.Body.Close()

	_, err = env.drops.Download(ctx, d.DropCode, m.ID, "", nil)
	requireAppErr(t, err, CodePasscodeRequired, http.StatusBadRequest)

	_, err = env.drops.Download(ctx, d.DropCode, m.ID, "", ptr("nope"))
	requireAppErr(t, err, CodeInvalidPasscode, http.StatusForbidden)

	_, err = env.drops.Download(ctx, "NOPE00", m.ID, "", nil)
	requireAppErr(t, err, CodeDropNotFound, http.StatusNotFound)

	_, err = env.drops.Download(ctx, d.DropCode, "missing", env.alice, nil)
	requireAppErr(t, err, CodeMediaNotFound, http.StatusNotFound)
}

func TestDownloadRejectsMediaOfAnotherDrop(t *testing.T) {
	env := newTestEnv(t)

	a := env.createPublic(t, "A")
	b := env.createPublic(t, "B")
	m := env.upload(t, a.DropCode)

	_, err := env.drops.Download(context.Background(), b.DropCode, m.ID, env.alice, nil)
	requireAppErr(t, err, CodeMediaNotFound, http.StatusNotFound)
}

func TestDownloadUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	d := env.createPublic(t, "Gone")
	m := env.upload(t, d.DropCode)

	require.NoError(t, env.store.Delete(ctx, m.StorageKey))

	_, err := env.drops.Download(ctx, d.DropCode, m.ID, "", nil)
	requireAppErr(t, err, CodeUpstreamFetchFailed, http.StatusBadGateway)

	env.drops.client = failingDoer{}
	env.upload(t, d.DropCode)
	_, err = env.drops.Download(ctx, d.DropCode, m.ID, "", nil)
	requireAppErr(t, err, CodeUpstreamFetchFailed, http.StatusBadGateway)
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}
