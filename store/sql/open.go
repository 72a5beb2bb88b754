package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-webhook-spine/core"
	"github.com/goliatone/go-webhook-spine/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// Open connects with the configured driver and wraps the pool in a
// persistence client using the matching bun dialect. The lib/pq and
// go-sqlite3 drivers register through this package's imports.
func Open(cfg core.DatabaseConfig) (*persistence.Client, error) {
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = core.DriverPostgres
	}
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("sqlstore: database url is required")
	}

	var dialect schema.Dialect
	switch driver {
	case core.DriverPostgres, core.DriverPGX:
		dialect = pgdialect.New()
	case core.DriverSQLite:
		dialect = sqlitedialect.New()
	default:
		return nil, fmt.Errorf("sqlstore: unsupported database driver %q", driver)
	}

	sqlDB, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == core.DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	cfg.Driver = driver
	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	return client, nil
}

// Migrate registers the schema in source for the client's dialect and
// applies it. source is the module's migration tree (spine.GetMigrationsFS).
func Migrate(ctx context.Context, client *persistence.Client, driver string, source fs.FS) error {
	if client == nil {
		return fmt.Errorf("sqlstore: persistence client is required")
	}
	target := migrations.DialectForDriver(driver)
	_, err := migrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != target {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithSource(source), migrations.WithValidationTargets(target))
	if err != nil {
		return err
	}
	return client.Migrate(ctx)
}
