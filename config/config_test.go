package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("JWT_SECRET", "secret")

	require.NoError(t, Load())

	assert.Equal(t, "info", viper.GetString("app.log_level"))
	assert.Equal(t, "sqlite://database.db", viper.GetString("database.dsn"))
	assert.Equal(t, 10*time.Minute, viper.GetDuration("storage.signed_url_ttl"))
	assert.Equal(t, int64(50<<20), MaxUploadSize())
}

func TestLoadEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("HOST_CORS", "https://a.example,https://b.example")
	t.Setenv("UPLOAD_MAX_SIZE", "2")
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost:5432/drops")

	require.NoError(t, Load())

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, viper.GetStringSlice("host.cors_origins"))
	assert.Equal(t, int64(2<<20), MaxUploadSize())
	assert.Equal(t, "postgres://u:p@localhost:5432/drops", viper.GetString("database.dsn"))
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		err  string
	}{
		{"missing secret", map[string]string{}, "jwt.secret"},
		{"bad log level", map[string]string{"JWT_SECRET": "s", "APP_LOG_LEVEL": "loud"}, "log level"},
		{"bad dsn", map[string]string{"JWT_SECRET": "s", "DATABASE_DSN": "mysql://x"}, "database.dsn"},
		{"r2 without account", map[string]string{"JWT_SECRET": "s", "STORAGE_BUCKET": "b", "STORAGE_PROVIDER": "r2"}, "account id"},
		{"unknown provider", map[string]string{"JWT_SECRET": "s", "STORAGE_BUCKET": "b", "STORAGE_PROVIDER": "ftp"}, "provider"},
		{"zero sweep interval", map[string]string{"JWT_SECRET": "s", "STORAGE_SWEEP_INTERVAL": "0s"}, "sweep_interval"},
		{"negative sweep interval", map[string]string{"JWT_SECRET": "s", "STORAGE_SWEEP_INTERVAL": "-1h"}, "sweep_interval"},
		{"turnstile without secret", map[string]string{"JWT_SECRET": "s", "CLOUDFLARE_TURNSTILE_ENABLED": "true"}, "turnstile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)

			t.Setenv("JWT_SECRET", "")
			for k, val := range tt.env {
				t.Setenv(k, val)
			}

			err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}
