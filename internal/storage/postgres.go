package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Enabled reports whether a host has been configured.
func (c PostgresConfig) Enabled() bool { return c.Host != "" }

// PostgresDB wraps a PostgreSQL connection pool holding reference data:
// airport and aircraft tokens users typed and what they resolved to.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	-- Reference data: airport tokens
	CREATE TABLE IF NOT EXISTS airports (
		token           TEXT PRIMARY KEY,
		icao            TEXT,
		iata            TEXT,
		name            TEXT NOT NULL,
		lookup_count    INTEGER NOT NULL DEFAULT 1,
		first_seen      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_airports_icao ON airports(icao);

	-- Reference data: aircraft tokens
	CREATE TABLE IF NOT EXISTS aircraft_profiles (
		token           TEXT PRIMARY KEY,
		profile_name    TEXT NOT NULL,
		lookup_count    INTEGER NOT NULL DEFAULT 1,
		first_seen      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_aircraft_profiles_name ON aircraft_profiles(profile_name);
	`

	_, err := d.pool.Exec(ctx, schema)
	return err
}

// AirportRecord is a token and the airport it resolved to.
type AirportRecord struct {
	Token       string
	ICAO        string
	IATA        string
	Name        string
	LookupCount int
	FirstSeen   time.Time
	LastSeen    time.Time
}

// UpsertAirport inserts or refreshes an airport record and bumps its count.
func (d *PostgresDB) UpsertAirport(ctx context.Context, a AirportRecord) error {
	now := time.Now().UTC()
	_, err := d.pool.Exec(ctx, `
		INSERT INTO airports (token, icao, iata, name, lookup_count, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (token) DO UPDATE SET
			icao = EXCLUDED.icao,
			iata = EXCLUDED.iata,
			name = EXCLUDED.name,
			lookup_count = airports.lookup_count + 1,
			last_seen = EXCLUDED.last_seen
	`, normaliseToken(a.Token), a.ICAO, a.IATA, a.Name, now)
	return err
}

// GetAirport returns the record for a token, or nil if it was never seen.
func (d *PostgresDB) GetAirport(ctx context.Context, token string) (*AirportRecord, error) {
	var a AirportRecord
	var icao, iata *string
	err := d.pool.QueryRow(ctx, `
		SELECT token, icao, iata, name, lookup_count, first_seen, last_seen
		FROM airports WHERE token = $1
	`, normaliseToken(token)).Scan(&a.Token, &icao, &iata, &a.Name, &a.LookupCount, &a.FirstSeen, &a.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if icao != nil {
		a.ICAO = *icao
	}
	if iata != nil {
		a.IATA = *iata
	}
	return &a, nil
}

// ListAirports returns airports looked up at least minLookups times, most
// popular first.
func (d *PostgresDB) ListAirports(ctx context.Context, minLookups int) ([]AirportRecord, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT token, COALESCE(icao, ''), COALESCE(iata, ''), name, lookup_count, first_seen, last_seen
		FROM airports WHERE lookup_count >= $1
		ORDER BY lookup_count DESC, token
	`, minLookups)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var airports []AirportRecord
	for rows.Next() {
		var a AirportRecord
		if err := rows.Scan(&a.Token, &a.ICAO, &a.IATA, &a.Name, &a.LookupCount, &a.FirstSeen, &a.LastSeen); err != nil {
			return nil, err
		}
		airports = append(airports, a)
	}
	return airports, rows.Err()
}

// AircraftRecord is a token and the aircraft profile it resolved to.
type AircraftRecord struct {
	Token       string
	ProfileName string
	LookupCount int
	FirstSeen   time.Time
	LastSeen    time.Time
}

// UpsertAircraft inserts or refreshes an aircraft record and bumps its count.
func (d *PostgresDB) UpsertAircraft(ctx context.Context, a AircraftRecord) error {
	now := time.Now().UTC()
	_, err := d.pool.Exec(ctx, `
		INSERT INTO aircraft_profiles (token, profile_name, lookup_count, first_seen, last_seen)
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (token) DO UPDATE SET
			profile_name = EXCLUDED.profile_name,
			lookup_count = aircraft_profiles.lookup_count + 1,
			last_seen = EXCLUDED.last_seen
	`, normaliseToken(a.Token), a.ProfileName, now)
	return err
}

// GetAircraft returns the record for a token, or nil if it was never seen.
func (d *PostgresDB) GetAircraft(ctx context.Context, token string) (*AircraftRecord, error) {
	var a AircraftRecord
	err := d.pool.QueryRow(ctx, `
		SELECT token, profile_name, lookup_count, first_seen, last_seen
		FROM aircraft_profiles WHERE token = $1
	`, normaliseToken(token)).Scan(&a.Token, &a.ProfileName, &a.LookupCount, &a.FirstSeen, &a.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Pool returns the underlying connection pool for direct queries.
func (d *PostgresDB) Pool() *pgxpool.Pool {
	return d.pool
}

func normaliseToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}
