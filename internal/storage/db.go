package storage

import (
	"context"
	"errors"
	"fmt"
)

// Config holds settings for every store. A store whose host (or path) is
// empty is not opened.
type Config struct {
	HistoryPath string
	ClickHouse  ClickHouseConfig
	Postgres    PostgresConfig
}

// DefaultConfig returns a configuration with default local development
// settings. Only the SQLite history is enabled.
func DefaultConfig() Config {
	return Config{
		HistoryPath: "flightcalc.db",
		ClickHouse: ClickHouseConfig{
			Port:     9000,
			Database: "flightcalc",
			User:     "default",
		},
		Postgres: PostgresConfig{
			Port:     5432,
			Database: "flightcalc",
			User:     "flightcalc",
			Password: "flightcalc",
		},
	}
}

// DB groups the configured stores. Any field may be nil.
type DB struct {
	History *HistoryDB    // SQLite request history.
	CH      *ClickHouseDB // ClickHouse calculation analytics.
	PG      *PostgresDB   // PostgreSQL reference data.
}

// Open opens every configured store.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	d := &DB{}

	if cfg.HistoryPath != "" {
		h, err := OpenHistory(cfg.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		d.History = h
	}

	if cfg.ClickHouse.Enabled() {
		ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		d.CH = ch
	}

	if cfg.Postgres.Enabled() {
		pg, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		d.PG = pg
	}

	return d, nil
}

// Close closes every open store.
func (d *DB) Close() error {
	var errs []error
	if d.History != nil {
		if err := d.History.Close(); err != nil {
			errs = append(errs, fmt.Errorf("history: %w", err))
		}
	}
	if d.CH != nil {
		if err := d.CH.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}
	if d.PG != nil {
		d.PG.Close()
	}
	return errors.Join(errs...)
}

// CreateSchemas creates the server-side schemas. The SQLite schema is
// created on open.
func (d *DB) CreateSchemas(ctx context.Context) error {
	if d.CH != nil {
		if err := d.CH.CreateSchema(ctx); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	if d.PG != nil {
		if err := d.PG.CreateSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}
