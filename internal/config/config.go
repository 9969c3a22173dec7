// Package config builds the process configuration from the environment.
// The result is passed explicitly to every component.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"flightcalc/internal/api"
	"flightcalc/internal/aviapages"
	"flightcalc/internal/storage"
	"flightcalc/internal/transport"
)

// Config is the full process configuration.
type Config struct {
	Aviapages aviapages.Config
	Storage   storage.Config
	NATS      transport.Config
	API       api.Config

	// Parallel is the number of legs calculated concurrently.
	Parallel int

	LogLevel string
	LogFile  string
}

// Load reads the configuration from the process environment.
func Load() Config {
	return FromEnv(os.Getenv)
}

// FromEnv reads the configuration through getenv. Unset or invalid values
// fall back to defaults. Server stores stay disabled unless their host is set.
func FromEnv(getenv func(string) string) Config {
	e := env(getenv)

	av := aviapages.DefaultConfig()
	av.Token = e.str("API_TOKEN", "")
	av.DirectoryURL = e.str("AVIAPAGES_DIR_URL", av.DirectoryURL)
	av.CalculatorURL = e.str("AVIAPAGES_CALC_URL", av.CalculatorURL)
	av.Timeout = e.dur("AVIAPAGES_TIMEOUT", av.Timeout)
	av.CacheSize = e.num("AVIAPAGES_CACHE_SIZE", av.CacheSize)
	av.CacheTTL = e.dur("AVIAPAGES_CACHE_TTL", av.CacheTTL)

	st := storage.DefaultConfig()
	st.HistoryPath = e.str("HISTORY_DB", st.HistoryPath)
	st.Postgres = storage.PostgresConfig{
		Host:     e.str("POSTGRES_HOST", ""),
		Port:     e.num("POSTGRES_PORT", st.Postgres.Port),
		Database: e.str("POSTGRES_DATABASE", st.Postgres.Database),
		User:     e.str("POSTGRES_USER", st.Postgres.User),
		Password: e.str("POSTGRES_PASSWORD", st.Postgres.Password),
	}
	st.ClickHouse = storage.ClickHouseConfig{
		Host:     e.str("CLICKHOUSE_HOST", ""),
		Port:     e.num("CLICKHOUSE_PORT", st.ClickHouse.Port),
		Database: e.str("CLICKHOUSE_DATABASE", st.ClickHouse.Database),
		User:     e.str("CLICKHOUSE_USER", st.ClickHouse.User),
		Password: e.str("CLICKHOUSE_PASSWORD", st.ClickHouse.Password),
	}

	nc := transport.DefaultConfig()
	nc.URL = e.str("NATS_URL", nc.URL)
	nc.Subject = e.str("NATS_SUBJECT", nc.Subject)
	nc.Queue = e.str("NATS_QUEUE", nc.Queue)

	keys := SplitList(e.str("API_KEYS", ""))
	apiCfg := api.Config{
		Port:        e.num("API_PORT", 8081),
		AuthEnabled: len(keys) > 0,
		APIKeys:     keys,
	}

	return Config{
		Aviapages: av,
		Storage:   st,
		NATS:      nc,
		API:       apiCfg,
		Parallel:  e.num("FLIGHTCALC_PARALLEL", 4),
		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFile:   e.str("LOG_FILE", ""),
	}
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type env func(string) string

func (e env) str(key, defaultVal string) string {
	if v := e(key); v != "" {
		return v
	}
	return defaultVal
}

func (e env) num(key string, defaultVal int) int {
	if v := e(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func (e env) dur(key string, defaultVal time.Duration) time.Duration {
	if v := e(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
