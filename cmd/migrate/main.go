package main

import (
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/noah-isme/backend-importadora/internal/db/migrations"
	"github.com/noah-isme/backend-importadora/internal/obs"
)

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	flag.Parse()

	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info")

	url := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if url == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}

	direction := "up"
	if flag.NArg() > 0 {
		direction = strings.ToLower(flag.Arg(0))
	}

	switch direction {
	case "up":
		if err := migrations.Up(url); err != nil {
			logger.Fatal().Err(err).Msg("migrate up")
		}
	case "down":
		if err := migrations.Down(url, *steps); err != nil {
			logger.Fatal().Err(err).Int("steps", *steps).Msg("migrate down")
		}
	default:
		logger.Fatal().Str("direction", direction).Msg("usage: migrate [up|down] [-steps N]")
	}
	logger.Info().Str("direction", direction).Msg("migrations applied")
}
