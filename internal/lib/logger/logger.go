// Package logger настраивает slog в зависимости от окружения.
package logger

import (
	"io"
	"log/slog"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// New возвращает текстовый логгер уровня Debug для local и JSON логгер для dev и prod.
func New(env string, w io.Writer) *slog.Logger {
	switch env {
	case EnvDev:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case EnvProd:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
