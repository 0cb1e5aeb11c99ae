package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bitwise74/drop-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownDSN(t *testing.T) {
	for _, dsn := range []string{"", "mysql://x", "database.db", "sqlite://"} {
		_, err := New(context.Background(), dsn)
		assert.ErrorIs(t, err, ErrUnsupportedDSN, dsn)
	}
}

func TestNewSqliteMigrates(t *testing.T) {
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "nested", "test.db")

	d, err := New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { Close(d) })

	for _, table := range []any{&model.User{}, &model.Drop{}, &model.Media{}, &model.Migration{}} {
		assert.True(t, d.Migrator().HasTable(table))
	}

	var count int64
	require.NoError(t, d.Model(&model.Migration{}).Count(&count).Error)
	assert.EqualValues(t, len(migrations), count)
}

func TestMigrateIsIdempotent(t *testing.T) {
	d, err := New(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { Close(d) })

	require.NoError(t, Migrate(d))

	var count int64
	require.NoError(t, d.Model(&model.Migration{}).Count(&count).Error)
	assert.EqualValues(t, len(migrations), count)
}

func TestVisibilityBackfill(t *testing.T) {
	d, err := New(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { Close(d) })

	hash := "$argon2id$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA"
	require.NoError(t, d.Exec(
		"INSERT INTO drops (id, code, title, visibility, passcode_hash, is_live, unlock_count) VALUES (?, ?, ?, '', ?, true, 0), (?, ?, ?, '', NULL, true, 0)",
		"a", "AAAAAA", "old private", hash,
		"b", "BBBBBB", "old public",
	).Error)

	require.NoError(t, d.Where("1 = 1").Delete(&model.Migration{}).Error)
	require.NoError(t, Migrate(d))

	var priv, pub model.Drop
	require.NoError(t, d.First(&priv, "id = ?", "a").Error)
	require.NoError(t, d.First(&pub, "id = ?", "b").Error)
	assert.Equal(t, model.VisibilityPrivate, priv.Visibility)
	assert.Equal(t, model.VisibilityPublic, pub.Visibility)

	var rec model.Migration
	require.NoError(t, d.First(&rec, "name = ?", "0001_backfill_drop_visibility").Error)
	assert.EqualValues(t, 2, rec.Affected)
}

func TestSqliteMustBeMountedInDocker(t *testing.T) {
	old := inDocker
	t.Cleanup(func() { inDocker = old })
	inDocker = func() bool { return true }

	path := filepath.Join(t.TempDir(), "test.db")

	_, err := New(context.Background(), "sqlite://"+path)
	require.ErrorIs(t, err, ErrSqliteNotMounted)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no database file may be created")

	// A mounted file is used as is
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	d, err := New(context.Background(), "sqlite://"+path)
	require.NoError(t, err)
	Close(d)
}

func TestMissingRowsAreNotLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)

	d, err := New(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { Close(d) })

	var drop model.Drop
	err = d.First(&drop, "code = ?", "NOPE00").Error
	require.Error(t, err)

	assert.Zero(t, logs.FilterMessageSnippet("record not found").Len())
}
