// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	configPath = pflag.String("config", ".", "Directory containing config.toml")

	validLogLevels   = []string{"debug", "info", "warn", "error", "fatal"}
	validProviders   = []string{"s3", "r2", "minio"}
	errMissingSecret = errors.New("jwt.secret is not set")
)

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	// A missing .env is fine, real environments set variables directly
	_ = godotenv.Load()

	if !pflag.Parsed() {
		pflag.Parse()
	}
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(*configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound v.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file, %w", err)
		}
	}

	err := Load()
	if errors.Is(err, errMissingSecret) {
		fmt.Println("WARNING: You haven't set a JWT secret, so it has been generated for you. Please set it as an environment variable or in the config.toml file.\nYour random JWT secret:\n\n" + genSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}

	return err
}

// Load binds environment variables, applies defaults and validates the
// result. It does not touch the filesystem so tests can call it directly.
func Load() error {
	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "APP_LOG_LEVEL")

	v.BindEnv("host.port", "HOST_PORT")
	v.BindEnv("host.public_url", "HOST_PUBLIC_URL")
	v.BindEnv("host.cors_origins", "HOST_CORS")
	v.BindEnv("host.secure_cookies", "HOST_SECURE_COOKIES")

	v.BindEnv("database.dsn", "DATABASE_DSN", "DATABASE_URL")

	v.BindEnv("jwt.secret", "JWT_SECRET", "SECURITY_JWT_SECRET")
	v.BindEnv("jwt.ttl", "JWT_TTL")

	v.BindEnv("storage.provider", "STORAGE_PROVIDER")
	v.BindEnv("storage.bucket", "STORAGE_BUCKET")
	v.BindEnv("storage.region", "STORAGE_REGION")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	v.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	v.BindEnv("storage.account_id", "STORAGE_ACCOUNT_ID", "CLOUDFLARE_ACCOUNT_ID")
	v.BindEnv("storage.local_path", "STORAGE_LOCAL_PATH")
	v.BindEnv("storage.signed_url_ttl", "STORAGE_SIGNED_URL_TTL")
	v.BindEnv("storage.sweep_interval", "STORAGE_SWEEP_INTERVAL")

	v.BindEnv("upload.max_size", "UPLOAD_MAX_SIZE")

	v.BindEnv("security.rate_limit", "SECURITY_RATE_LIMIT")
	v.BindEnv("security.keep_plain_passcodes", "SECURITY_KEEP_PLAIN_PASSCODES")

	v.BindEnv("cloudflare.turnstile.enabled", "CLOUDFLARE_TURNSTILE_ENABLED")
	v.BindEnv("cloudflare.turnstile.secret_token", "CLOUDFLARE_TURNSTILE_SECRET_TOKEN")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.public_url", "http://localhost:8080")
	v.SetDefault("host.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("host.secure_cookies", false)

	v.SetDefault("database.dsn", "sqlite://database.db")

	v.SetDefault("jwt.ttl", 7*24*time.Hour)

	v.SetDefault("storage.provider", "s3")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("storage.signed_url_ttl", 10*time.Minute)
	v.SetDefault("storage.sweep_interval", 24*time.Hour)

	// In megabytes
	v.SetDefault("upload.max_size", 50)

	v.SetDefault("security.rate_limit", 20)
	v.SetDefault("security.keep_plain_passcodes", true)

	v.SetDefault("cloudflare.turnstile.enabled", false)

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	// Comma separated lists arrive as a single string from the environment
	if origins := v.GetStringSlice("host.cors_origins"); len(origins) == 1 && strings.Contains(origins[0], ",") {
		v.Set("host.cors_origins", strings.Split(origins[0], ","))
	}

	dsn := v.GetString("database.dsn")
	if !strings.HasPrefix(dsn, "sqlite://") && !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return errors.New("database.dsn must start with sqlite://, postgres:// or postgresql://")
	}

	if v.GetString("jwt.secret") == "" {
		return errMissingSecret
	}

	if v.GetDuration("jwt.ttl") <= 0 {
		return errors.New("jwt.ttl must be bigger than 0")
	}

	if v.GetString("storage.bucket") != "" {
		provider := v.GetString("storage.provider")
		if !slices.Contains(validProviders, provider) {
			return errors.New("invalid storage provider provided")
		}

		if provider == "r2" && v.GetString("storage.account_id") == "" {
			return errors.New("account id can't be empty")
		}

		if provider == "minio" && v.GetString("storage.endpoint") == "" {
			return errors.New("minio storage requires an endpoint")
		}
	} else if v.GetString("storage.local_path") == "" {
		return errors.New("storage.local_path can't be empty without a bucket")
	}

	if v.GetDuration("storage.signed_url_ttl") <= 0 {
		return errors.New("storage.signed_url_ttl must be bigger than 0")
	}

	if v.GetDuration("storage.sweep_interval") <= 0 {
		return errors.New("storage.sweep_interval must be bigger than 0")
	}

	if v.GetInt64("upload.max_size") <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if v.GetInt("security.rate_limit") < 0 {
		return errors.New("security.rate_limit can't be negative")
	}

	if !v.GetBool("cloudflare.turnstile.enabled") {
		fmt.Println("[WARNING]: Cloudflare's turnstile is disabled. Signups won't be guarded against bots")
	} else if v.GetString("cloudflare.turnstile.secret_token") == "" {
		return errors.New("turnstile secret token is missing")
	}

	return nil
}

// MaxUploadSize returns upload.max_size in bytes
func MaxUploadSize() int64 {
	return v.GetInt64("upload.max_size") << 20
}
