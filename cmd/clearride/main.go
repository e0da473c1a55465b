// Package main ClearRide API
//
// @title           ClearRide API
// @version         1.0
// @description     Права доступа, апелляции по штрафам и промокоды для водителей ClearRide

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/clearride/internal/app/clearride"
	"github.com/magabrotheeeer/clearride/internal/config"
	"github.com/magabrotheeeer/clearride/internal/lib/logger"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env, os.Stdout)

	log.Info("starting clearride", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := clearride.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	log.Info("clearride stopped gracefully")
}
