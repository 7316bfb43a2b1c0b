// Package migrations embeds the schema and applies it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// Registers the pgx5:// database driver.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var files embed.FS

// Files exposes the embedded migrations, rooted at the sql directory.
func Files() fs.FS {
	sub, err := fs.Sub(files, "sql")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// DriverURL rewrites a postgres:// or postgresql:// DSN to the pgx5:// scheme
// golang-migrate expects.
func DriverURL(dsn string) (string, error) {
	for _, prefix := range []string{"postgres://", "postgresql://", "pgx5://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix), nil
		}
	}
	return "", fmt.Errorf("unsupported database dsn scheme; expected postgres://")
}

// Runner applies the embedded migrations to one database.
type Runner struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

// NewRunner opens a migrate instance against dsn.
func NewRunner(dsn string, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	url, err := DriverURL(dsn)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	m.Log = migrateLogger{logger: logger.Named("migrate")}
	return &Runner{m: m, logger: logger.Named("migrate")}, nil
}

// Up applies every pending migration.
func (r *Runner) Up() error {
	if err := r.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	r.logVersion()
	return nil
}

// Down rolls back steps migrations; steps <= 0 rolls back everything.
func (r *Runner) Down(steps int) error {
	var err error
	if steps <= 0 {
		err = r.m.Down()
	} else {
		err = r.m.Steps(-steps)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	r.logVersion()
	return nil
}

// Close releases the source and database handles.
func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (r *Runner) logVersion() {
	version, dirty, err := r.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		r.logger.Info("schema is empty")
	case err != nil:
		r.logger.Warn("read schema version", zap.Error(err))
	default:
		r.logger.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
}

type migrateLogger struct {
	logger *zap.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return false
}
