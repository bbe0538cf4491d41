package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Config for database connection
type Config struct {
	// Driver is "postgres" or "sqlite3".
	Driver string
	DSN    string
	Logger *zap.Logger
}

// DB bundles one connection pool behind the two APIs that use it: sqlx
// for scanning rows and ent's driver for migrations.
type DB struct {
	X       *sqlx.DB
	Driver  *entsql.Driver
	Dialect string
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var dialectName string
	switch cfg.Driver {
	case dialect.Postgres:
		dialectName = dialect.Postgres
	case dialect.SQLite:
		dialectName = dialect.SQLite
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialectName == dialect.SQLite {
		// Writers serialize anyway and in-memory databases live per connection
		// unless shared, so keep a single connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("connected to database", zap.String("driver", cfg.Driver))
	return &DB{
		X:       sqlx.NewDb(db, cfg.Driver),
		Driver:  entsql.OpenDB(dialectName, db),
		Dialect: dialectName,
	}, nil
}

func (d *DB) Close() error {
	return d.X.Close()
}
