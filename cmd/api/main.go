package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Waesta/Wapos-sub011/api"
	"github.com/Waesta/Wapos-sub011/internal/dbrepo"
	"github.com/Waesta/Wapos-sub011/internal/logger"
	"github.com/Waesta/Wapos-sub011/internal/models"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var cfg models.Config
	flag.StringVar(&cfg.Addr, "a", envOr("ADDRESS", ":8080"), "listen address")
	flag.StringVar(&cfg.DB.DSN, "d", os.Getenv("DATABASE_DSN"), "postgres dsn")
	flag.StringVar(&cfg.Env, "e", envOr("ENV", "production"), "environment name")
	flag.StringVar(&cfg.LogLevel, "l", envOr("LOG_LEVEL", "info"), "log level")
	flag.Parse()

	// Empty secret leaves the API open, for single-host deployments
	// behind their own gateway.
	cfg.JWT = models.JWTConfig{
		SecretKey: os.Getenv("JWT_SECRET"),
		Issuer:    envOr("JWT_ISSUER", "wapos-sync"),
		Audience:  envOr("JWT_AUDIENCE", "wapos-clients"),
		Algorithm: "HS256",
		Expiry:    24 * time.Hour,
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := dbrepo.ConnectPool(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := dbrepo.Bootstrap(ctx, db); err != nil {
		return err
	}

	// Provision the admin account so signin works out of the box when a
	// JWT secret locks the API down.
	if username := os.Getenv("ADMIN_USERNAME"); username != "" {
		err := dbrepo.NewUserRepo(db).EnsureUser(ctx, "Administrator", username, os.Getenv("ADMIN_PASSWORD"), "admin")
		if err != nil {
			return err
		}
	}

	app := api.NewApplication(cfg, db, zlog)
	return app.Serve(ctx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
