// cmd/migrate applies or rolls back the embedded schema migrations.
// Usage: migrate [up | down | steps N | version | force V]
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/infra"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: migrate up | down | steps N | version | force V")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL, false)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get sql handle")
	}
	defer sqlDB.Close()

	m, err := infra.NewMigrator(sqlDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migrator")
	}

	switch cmd := os.Args[1]; cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps", "force":
		if len(os.Args) < 3 {
			log.Fatal().Msgf("%s needs a number", cmd)
		}
		n, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil {
			log.Fatal().Err(convErr).Msgf("%s needs a number", cmd)
		}
		if cmd == "steps" {
			err = m.Steps(n)
		} else {
			err = m.Force(n)
		}
	case "version":
		v, dirty, verr := m.Version()
		if verr == nil {
			fmt.Printf("version %d (dirty=%t)\n", v, dirty)
		}
		err = verr
	default:
		log.Fatal().Str("command", cmd).Msg("unknown command")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}
