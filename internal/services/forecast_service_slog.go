package services

import (
	"context"
	"log/slog"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
)

// logDataRejected logs a refused data replacement
func logDataRejected(ctx context.Context, source string, err error, attrs ...slog.Attr) {
	logger := infrastructure.GetLogger()

	allAttrs := []slog.Attr{
		slog.String("component", "forecast_service"),
		slog.String("source", source),
		slog.String("error", err.Error()),
	}
	allAttrs = append(allAttrs, attrs...)

	logger.LogAttrs(ctx, slog.LevelWarn, "data_rejected", allAttrs...)
}

// logDataReplaced logs an accepted data replacement
func logDataReplaced(ctx context.Context, source string, length int) {
	infrastructure.GetLogger().LogAttrs(ctx, slog.LevelInfo, "data_replaced",
		slog.String("component", "forecast_service"),
		slog.String("source", source),
		slog.Int("series_length", length))
}
