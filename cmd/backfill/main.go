// Команда backfill восстанавливает инварианты pending-листингов и догоняет оценку риска
// для листингов, созданных без неё. Безопасна для повторного запуска.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/resale/internal/app"
	"github.com/vladislavdragonenkov/resale/internal/service/listing"
)

const defaultLimit = 1000

type backfiller interface {
	Backfill(ctx context.Context, limit int) (listing.BackfillResult, error)
}

// newBackfiller открывает хранилище; close освобождает его и вызывается на любом исходе.
var newBackfiller = func(ctx context.Context, cfg app.Config, logger *log.Entry) (backfiller, func() error, error) {
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return app.NewServices(deps, cfg, logger).Listings, deps.Close, nil
}

func run(ctx context.Context, listings backfiller, limit int, out io.Writer) error {
	result, err := listings.Backfill(ctx, limit)
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "backfill ok: items_reset=%d listings_promoted=%d listings_flagged=%d\n",
		result.ItemsReset, result.ListingsPromoted, result.ListingsFlagged)
	return err
}

// realMain возвращает код выхода, чтобы отложенное закрытие хранилища успело выполниться.
func realMain(args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		dsn     string
		limit   int
		timeout time.Duration
	)
	fs.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: RESALE_POSTGRES_DSN)")
	fs.IntVar(&limit, "limit", defaultLimit, "max listings per phase")
	fs.DurationVar(&timeout, "timeout", 5*time.Minute, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(getenv("RESALE_POSTGRES_DSN"))
	}
	if dsn == "" {
		_, _ = fmt.Fprintln(stderr, "RESALE_POSTGRES_DSN (or -dsn) is required")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger := log.WithField("component", "backfill")
	cfg := app.DefaultConfig()
	cfg.StorageDriver = app.StoragePostgres
	cfg.PostgresDSN = dsn
	cfg.PostgresAutoMigrate = false

	listings, closeStorage, err := newBackfiller(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "open storage: %v\n", err)
		return 1
	}
	defer func() {
		if err := closeStorage(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	if err := run(ctx, listings, limit, stdout); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}
