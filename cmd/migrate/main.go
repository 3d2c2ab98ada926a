// Command migrate aplica las migraciones SQL embebidas sobre la base configurada.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/spa-ledger-api/internal/infrastructure/postgres"
	"github.com/jhoicas/spa-ledger-api/pkg/config"
	"github.com/jhoicas/spa-ledger-api/pkg/logger"
)

func main() {
	list := flag.Bool("list", false, "solo lista las migraciones embebidas")
	flag.Parse()

	if *list {
		names, err := postgres.MigrationNames()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "migrate"})
	if !cfg.DB.Enabled() {
		log.Fatal().Msg("DATABASE_URL o DB_HOST requerido")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	applied, err := postgres.Migrate(ctx, pool, log)
	if err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}
	log.Info().Strs("applied", applied).Int("count", len(applied)).Msg("migraciones al día")
}
