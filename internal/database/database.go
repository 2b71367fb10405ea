package database

import (
	"context"
	"fmt"
	"time"

	"quiz-sense/internal/logger"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver ("pgx")
	"github.com/jmoiron/sqlx"
	_ "github.com/sijms/go-ora/v2" // Oracle driver ("oracle")
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver ("sqlite")
)

const (
	DriverOracle   = "oracle"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// go-ora takes positional :name binds; sqlx does not know the driver name.
	sqlx.BindDriver("oracle", sqlx.NAMED)
}

// SQLDriverName maps a configured database kind to its registered database/sql driver.
func SQLDriverName(kind string) (string, error) {
	switch kind {
	case DriverOracle:
		return "oracle", nil
	case DriverPostgres:
		return "pgx", nil
	case DriverSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", kind)
	}
}

// Open connects to the configured database and verifies the connection.
func Open(kind, dsn string) (*sqlx.DB, error) {
	driverName, err := SQLDriverName(kind)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", kind, err)
	}
	if kind == DriverSQLite {
		// SQLite allows one writer; serializing connections avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", kind, err)
	}

	logger.Get().Info("Connected to database", zap.String("driver", kind))
	return db, nil
}
