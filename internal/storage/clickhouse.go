package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Enabled reports whether a host has been configured.
func (c ClickHouseConfig) Enabled() bool { return c.Host != "" }

// ClickHouseDB wraps a ClickHouse connection for calculation analytics.
type ClickHouseDB struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseDB) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	err := d.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS calculations (
		calculated_at    DateTime64(3),
		request_id       String,
		leg_index        UInt16,
		departure_token  LowCardinality(String),
		arrival_token    LowCardinality(String),
		departure_icao   LowCardinality(String),
		arrival_icao     LowCardinality(String),
		aircraft_token   LowCardinality(String),
		aircraft_profile LowCardinality(String),
		pax              UInt16,
		avoid_countries  Array(String),
		avoid_firs       Array(String),
		airway_minutes   Float64,
		airway_km        Float64,
		warnings         Array(String)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(calculated_at)
	ORDER BY (departure_icao, arrival_icao, calculated_at)`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Calculation is one successful leg calculation.
type Calculation struct {
	CalculatedAt    time.Time
	RequestID       string
	LegIndex        int
	DepartureToken  string
	ArrivalToken    string
	DepartureICAO   string
	ArrivalICAO     string
	AircraftToken   string
	AircraftProfile string
	Pax             int
	AvoidCountries  []string
	AvoidFIRs       []string
	AirwayMinutes   float64
	AirwayKM        float64
	Warnings        []string
}

// InsertBatch stores the legs of one request.
func (d *ClickHouseDB) InsertBatch(ctx context.Context, calcs []Calculation) error {
	if len(calcs) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO calculations (calculated_at, request_id, leg_index, departure_token, arrival_token,
			departure_icao, arrival_icao, aircraft_token, aircraft_profile, pax,
			avoid_countries, avoid_firs, airway_minutes, airway_km, warnings)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range calcs {
		err := batch.Append(c.CalculatedAt, c.RequestID, uint16(c.LegIndex), c.DepartureToken, c.ArrivalToken,
			c.DepartureICAO, c.ArrivalICAO, c.AircraftToken, c.AircraftProfile, uint16(c.Pax),
			nonNil(c.AvoidCountries), nonNil(c.AvoidFIRs), c.AirwayMinutes, c.AirwayKM, nonNil(c.Warnings))
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// RouteCount is a departure/arrival pair with its calculation count.
type RouteCount struct {
	DepartureICAO string  `json:"departure_icao"`
	ArrivalICAO   string  `json:"arrival_icao"`
	Count         uint64  `json:"count"`
	AvgMinutes    float64 `json:"avg_minutes"`
}

// TopRoutes returns the most frequently calculated routes since the given
// time, optionally restricted to an aircraft profile.
func (d *ClickHouseDB) TopRoutes(ctx context.Context, since time.Time, aircraftProfile string, limit int) ([]RouteCount, error) {
	conditions := []string{"calculated_at >= ?"}
	args := []any{since}
	if aircraftProfile != "" {
		conditions = append(conditions, "aircraft_profile = ?")
		args = append(args, aircraftProfile)
	}
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT departure_icao, arrival_icao, count() AS n, avg(airway_minutes)
		FROM calculations WHERE ` + strings.Join(conditions, " AND ") + `
		GROUP BY departure_icao, arrival_icao
		ORDER BY n DESC` + fmt.Sprintf(" LIMIT %d", limit)

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	var out []RouteCount
	for rows.Next() {
		var rc RouteCount
		if err := rows.Scan(&rc.DepartureICAO, &rc.ArrivalICAO, &rc.Count, &rc.AvgMinutes); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
