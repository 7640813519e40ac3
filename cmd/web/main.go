package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/app"
	"github.com/tanaka-takurou/serverless-forecast-page-go/internal/infrastructure"
)

func main() {
	application, err := app.NewApplication()
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	err = application.Run(context.Background())
	if err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
	}
	_ = infrastructure.CloseLogFile()
	if err != nil {
		os.Exit(1)
	}
}
