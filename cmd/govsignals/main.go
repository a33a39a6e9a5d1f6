package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/kaylam/govsignals/internal/app"
)

func main() {
	// .env is a local development convenience; production sets real
	// environment variables and has no such file.
	_ = godotenv.Load()

	if err := app.Run(nil, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
