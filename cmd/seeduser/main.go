// cmd/seeduser creates or resets an admin operator.
// Usage: SEED_USERNAME=admin SEED_PASSWORD=secret go run ./cmd/seeduser
package main

import (
	"context"
	"os"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/infra"
	"stockledger/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	username := envOr("SEED_USERNAME", "admin")
	password := os.Getenv("SEED_PASSWORD")
	if len(password) < 8 {
		log.Fatal().Msg("SEED_PASSWORD must be at least 8 characters")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL, true)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt failed")
	}

	result := db.WithContext(context.Background()).Exec(`
		INSERT INTO operators (id, username, name, password_hash, role, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, true, NOW(), NOW())
		ON CONFLICT (username) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
		    role = EXCLUDED.role,
		    active = true,
		    updated_at = NOW()
	`, uuid.New(), username, envOr("SEED_NAME", "Administrator"), string(hash), model.RoleAdmin)
	if result.Error != nil {
		log.Fatal().Err(result.Error).Msg("insert failed")
	}
	log.Info().Str("username", username).Msg("admin operator created or reset")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
