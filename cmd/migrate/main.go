// Command migrate manages the strategy store schema used by the daemon. It
// resolves the DSN and migrations directory the same way ctad does: defaults,
// an optional YAML settings file and CTA_* environment overrides.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/quantfold/cta/config"
	"github.com/quantfold/cta/errs"
	"github.com/quantfold/cta/internal/persistence/postgres"
)

const defaultTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "Path to the YAML settings file; CTA_* environment variables override it")
		timeout    = flag.Duration("timeout", defaultTimeout, "Maximum time to wait for database connectivity")
		quiet      = flag.Bool("quiet", false, "Suppress informational logs")
	)
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if settings.Database.DSN == "" {
		return errs.New("migrate", errs.CodeInvalid,
			errs.WithMessage("database DSN required, set database.dsn or CTA_DATABASE_DSN"))
	}

	var logger *log.Logger
	if !*quiet {
		logger = log.New(os.Stdout, "[cta-migrate] ", log.LstdFlags|log.Lmsgprefix)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		if err := postgres.Migrate(ctx, settings.Database.DSN, settings.Database.MigrationsDir, logger); err != nil {
			return errs.New("migrate", errs.CodeUnavailable, errs.WithCause(err))
		}
	case "down":
		steps := 1
		if arg := flag.Arg(1); arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				return errs.New("migrate", errs.CodeInvalid,
					errs.WithMessage("down steps must be a positive integer, got "+arg))
			}
			steps = n
		}
		if err := postgres.Rollback(ctx, settings.Database.DSN, settings.Database.MigrationsDir, steps, logger); err != nil {
			return errs.New("migrate", errs.CodeUnavailable, errs.WithCause(err))
		}
	case "":
		return errs.New("migrate", errs.CodeInvalid, errs.WithMessage("command required, one of up or down"))
	default:
		return errs.New("migrate", errs.CodeInvalid, errs.WithMessage("unknown command "+strconv.Quote(cmd)))
	}

	return nil
}
