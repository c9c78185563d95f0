package main

import (
	"context"
	"log/slog"
	"os"

	"audiolicense/internal/app"
)

func main() {
	application, err := app.NewApplication(context.Background(), os.Getenv("LICENSING_CONFIG_FILE"))
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
