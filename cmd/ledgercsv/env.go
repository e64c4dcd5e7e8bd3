package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JonMunkholm/ledgercsv/internal/config"
	"github.com/JonMunkholm/ledgercsv/internal/core"
	"github.com/JonMunkholm/ledgercsv/internal/logging"
	"github.com/JonMunkholm/ledgercsv/internal/store/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// env is what every command needs: configuration, a pool and a store.
type env struct {
	cfg   *config.Config
	pool  *pgxpool.Pool
	store *postgres.Store
}

// openEnv loads .env and configuration, logs to stderr so stdout stays
// usable for exports, and connects to the database.
func openEnv(ctx context.Context) (*env, error) {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	slog.Debug("connected to database", "name", postgres.DatabaseName(cfg.Database.URL))

	return &env{cfg: cfg, pool: pool, store: postgres.New(pool)}, nil
}

func (e *env) Close() {
	e.pool.Close()
}

func (e *env) service() *core.Service {
	opts := core.ServiceOptions{
		MaxFileSize:   e.cfg.Import.MaxFileSize,
		MaxConcurrent: e.cfg.Import.MaxConcurrent,
		MaxWaitTime:   e.cfg.Import.MaxWaitTime,
		Timeout:       e.cfg.Import.Timeout,
		Location:      e.cfg.Import.Location(),
	}
	if e.cfg.Audit.Enabled {
		opts.Audit = e.store
	}
	return core.NewService(e.store, opts)
}

// printError writes the user message for err followed by any per-row
// details, so the command line shows the same information as the API.
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", core.FormatUserError(err))

	var rowErrs *core.RowErrors
	if errors.As(err, &rowErrs) {
		for _, re := range rowErrs.Errors {
			fmt.Fprintln(w, "  -", re.Error())
		}
		return
	}
	if core.IsUserFacing(err) {
		fmt.Fprintln(w, "  -", err.Error())
	}
}
