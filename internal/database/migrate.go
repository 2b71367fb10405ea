package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"quiz-sense/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationFiles embed.FS

const oracleMigrationsTable = "quiz_schema_migrations"

// Migrate applies every pending up migration for kind. PostgreSQL and SQLite go
// through golang-migrate; Oracle, which it has no driver for, uses a small
// version table and runs each statement in order.
func Migrate(ctx context.Context, db *sqlx.DB, kind string) error {
	switch kind {
	case DriverPostgres:
		driver, err := pgxmigrate.WithInstance(db.DB, &pgxmigrate.Config{})
		if err != nil {
			return fmt.Errorf("failed to create postgres migration driver: %w", err)
		}
		// Releases the dedicated connection only; db stays open.
		defer driver.Close()
		return runMigrate(kind, "pgx5", driver)
	case DriverSQLite:
		driver, err := sqlitemigrate.WithInstance(db.DB, &sqlitemigrate.Config{})
		if err != nil {
			return fmt.Errorf("failed to create sqlite migration driver: %w", err)
		}
		// Not closed: the sqlite driver's Close closes db itself.
		return runMigrate(kind, "sqlite", driver)
	case DriverOracle:
		return migrateOracle(ctx, db)
	default:
		return fmt.Errorf("unsupported database driver %q", kind)
	}
}

func runMigrate(kind, driverName string, driver migratedb.Driver) error {
	src, err := iofs.New(migrationFiles, path.Join("migrations", kind))
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", verr)
	}
	logger.Get().Info("Migrations applied",
		zap.String("driver", kind),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}

// Migration is one embedded up migration.
type Migration struct {
	Version    uint64
	Name       string
	Statements []string
}

// LoadMigrations reads the up migrations for kind in version order.
func LoadMigrations(kind string) ([]Migration, error) {
	dir := path.Join("migrations", kind)
	entries, err := fs.ReadDir(migrationFiles, dir)
	if err != nil {
		return nil, fmt.Errorf("could not read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s has no version prefix", name)
		}
		version, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s has an invalid version: %w", name, err)
		}
		content, err := fs.ReadFile(migrationFiles, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("could not read migration file %s: %w", name, err)
		}
		migrations = append(migrations, Migration{
			Version:    version,
			Name:       name,
			Statements: SplitStatements(string(content)),
		})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// SplitStatements splits a script on semicolons that end a line. Drivers such
// as go-ora execute a single statement per call and reject the terminator.
func SplitStatements(script string) []string {
	var (
		statements []string
		current    strings.Builder
	)
	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		if strings.HasSuffix(trimmed, ";") {
			current.WriteString(strings.TrimSuffix(strings.TrimRight(line, " \t\r"), ";"))
			flush()
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()
	return statements
}

func migrateOracle(ctx context.Context, db *sqlx.DB) error {
	migrations, err := LoadMigrations(DriverOracle)
	if err != nil {
		return err
	}

	if err := ensureOracleMigrationsTable(ctx, db); err != nil {
		return err
	}

	var applied []uint64
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM `+oracleMigrationsTable); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	done := make(map[uint64]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		// Oracle DDL commits implicitly, so statements run outside a transaction.
		for _, stmt := range m.Statements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("could not execute migration %s: %w", m.Name, err)
			}
		}
		if _, err := db.ExecContext(ctx, db.Rebind(`INSERT INTO `+oracleMigrationsTable+` (version) VALUES (?)`), m.Version); err != nil {
			return fmt.Errorf("could not record migration %s: %w", m.Name, err)
		}
		logger.Get().Info("Executed migration", zap.String("name", m.Name))
	}
	return nil
}

func ensureOracleMigrationsTable(ctx context.Context, db *sqlx.DB) error {
	var count int
	err := db.GetContext(ctx, &count,
		db.Rebind(`SELECT COUNT(*) FROM user_tables WHERE table_name = ?`),
		strings.ToUpper(oracleMigrationsTable))
	if err != nil {
		return fmt.Errorf("failed to check migrations table: %w", err)
	}
	if count > 0 {
		return nil
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE `+oracleMigrationsTable+` (version NUMBER(19) PRIMARY KEY)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}
