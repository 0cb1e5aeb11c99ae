package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitwise74/drop-api/app"
	"bitwise74/drop-api/config"
	"bitwise74/drop-api/db"
	"bitwise74/drop-api/internal"
	"bitwise74/drop-api/internal/repository"
	"bitwise74/drop-api/internal/service"
	"bitwise74/drop-api/internal/storage"
	"bitwise74/drop-api/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	if err := config.Setup(); err != nil {
		panic(err)
	}

	if err := app.MakeLogger(viper.GetString("app.log_level")); err != nil {
		panic(err)
	}
	defer zap.L().Sync()

	if err := run(); err != nil {
		zap.L().Fatal("Server failed", zap.Error(err))
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.New(ctx, viper.GetString("database.dsn"))
	if err != nil {
		return fmt.Errorf("failed to initialize database, %w", err)
	}
	defer db.Close(conn)

	tokens := security.NewTokens(viper.GetString("jwt.secret"), viper.GetDuration("jwt.ttl"))
	argon := security.New()

	store, err := storage.New(ctx, storage.Options{
		Provider:        viper.GetString("storage.provider"),
		Bucket:          viper.GetString("storage.bucket"),
		Region:          viper.GetString("storage.region"),
		Endpoint:        viper.GetString("storage.endpoint"),
		AccessKeyID:     viper.GetString("storage.access_key_id"),
		SecretAccessKey: viper.GetString("storage.secret_access_key"),
		AccountID:       viper.GetString("storage.account_id"),
		LocalPath:       viper.GetString("storage.local_path"),
		PublicURL:       viper.GetString("host.public_url"),
		Signer:          tokens,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage, %w", err)
	}

	urlTTL := viper.GetDuration("storage.signed_url_ttl")

	drops := service.NewDropService(
		repository.NewDrops(conn),
		repository.NewMedia(conn),
		store,
		argon,
		&http.Client{Timeout: 5 * time.Minute},
		service.DropConfig{
			SignedURLTTL:       urlTTL,
			KeepPlainPasscodes: viper.GetBool("security.keep_plain_passcodes"),
		},
	)

	d := &internal.Deps{
		DB:            conn,
		Argon:         argon,
		Tokens:        tokens,
		Store:         store,
		Drops:         drops,
		Users:         service.NewUserService(repository.NewUsers(conn), drops, store, argon, tokens, urlTTL),
		MaxUploadSize: config.MaxUploadSize(),
		TokenTTL:      viper.GetDuration("jwt.ttl"),
		SecureCookies: viper.GetBool("host.secure_cookies") || strings.HasPrefix(viper.GetString("host.public_url"), "https://"),
	}

	if local, ok := store.(*storage.Local); ok {
		d.Local = local
	}

	a := app.NewRouter(d, app.OptionsFromConfig())
	defer a.Close()

	go drops.OrphanSweep(ctx, viper.GetDuration("storage.sweep_interval"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", viper.GetInt("host.port")),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("Server starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
