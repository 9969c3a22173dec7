// Package aviapages is a client for the Aviapages airport directory,
// aircraft profile directory and flight calculator.
package aviapages

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Config holds the connection settings for the Aviapages services. It is
// built once by the caller and passed in; the package keeps no global state.
type Config struct {
	DirectoryURL  string // Base URL of the airport and aircraft directory.
	CalculatorURL string // Base URL of the flight calculator.
	Token         string // Sent verbatim in the Authorization header.
	Timeout       time.Duration
	CacheSize     int           // Cached directory lookups per kind; 0 disables caching.
	CacheTTL      time.Duration // Lifetime of a cached lookup.
	HTTPClient    *http.Client  // Optional; overrides Timeout when set.
}

// DefaultConfig returns the production endpoints without a token.
func DefaultConfig() Config {
	return Config{
		DirectoryURL:  "https://dir.aviapages.com:443",
		CalculatorURL: "https://frc.aviapages.com:443",
		Timeout:       30 * time.Second,
		CacheSize:     512,
		CacheTTL:      6 * time.Hour,
	}
}

// Airport is a resolved directory entry.
type Airport struct {
	ICAO string `json:"icao"`
	IATA string `json:"iata"`
	Name string `json:"name"`
}

// FindParameter returns the identifier the calculator should be given:
// ICAO code, else IATA code, else name.
func (a Airport) FindParameter() string {
	switch {
	case a.ICAO != "":
		return a.ICAO
	case a.IATA != "":
		return a.IATA
	}
	return a.Name
}

// String renders "ICAO (IATA), Name".
func (a Airport) String() string {
	return fmt.Sprintf("%s (%s), %s", a.ICAO, a.IATA, a.Name)
}

// AircraftProfile is a resolved aircraft profile.
type AircraftProfile struct {
	Name string `json:"name"`
}

// Client talks to the Aviapages APIs. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	headers http.Header
	logger  *slog.Logger

	airports *expirable.LRU[string, Airport]
	aircraft *expirable.LRU[string, AircraftProfile]
}

// New creates a client. A nil logger discards log output.
func New(cfg Config, logger *slog.Logger) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set("Authorization", cfg.Token)

	c := &Client{
		cfg:     cfg,
		http:    hc,
		headers: headers,
		logger:  logger,
	}
	if cfg.CacheSize > 0 {
		c.airports = expirable.NewLRU[string, Airport](cfg.CacheSize, nil, cfg.CacheTTL)
		c.aircraft = expirable.NewLRU[string, AircraftProfile](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return c
}

// airportSearchParams are tried in order; the first exact match wins.
var airportSearchParams = []string{"search_iata", "search_icao", "search_name"}

// aircraftSearchParams are tried in order; the first non-empty result wins.
var aircraftSearchParams = []string{"search_name", "search_aircraft_type_name", "search_aircraft_type_icao"}

type airportPage struct {
	Count   int       `json:"count"`
	Results []Airport `json:"results"`
}

type aircraftPage struct {
	Count   int               `json:"count"`
	Results []AircraftProfile `json:"results"`
}

// ResolveAirport looks up token as an IATA code, ICAO code or airport name.
// role ("Departure", "Arrival") only shapes the NotFoundError message.
func (c *Client) ResolveAirport(ctx context.Context, token, role string) (Airport, error) {
	key := strings.ToUpper(strings.TrimSpace(token))
	if c.airports != nil {
		if a, ok := c.airports.Get(key); ok {
			return a, nil
		}
	}

	for _, param := range airportSearchParams {
		var page airportPage
		ok, err := c.getDirectory(ctx, "/api/airports/", param, token, &page)
		if err != nil {
			return Airport{}, err
		}
		if !ok {
			continue
		}
		for _, a := range page.Results {
			if matchesAirport(a, key) {
				c.logger.Debug("airport resolved", slog.String("token", token), slog.String("param", param), slog.String("icao", a.ICAO))
				if c.airports != nil {
					c.airports.Add(key, a)
				}
				return a, nil
			}
		}
	}

	return Airport{}, &NotFoundError{Subject: role + " airport"}
}

func matchesAirport(a Airport, key string) bool {
	return strings.EqualFold(a.ICAO, key) ||
		strings.EqualFold(a.IATA, key) ||
		strings.EqualFold(a.Name, key)
}

// ResolveAircraft finds the aircraft profile for a free-text aircraft name,
// type name or type ICAO designator.
func (c *Client) ResolveAircraft(ctx context.Context, token string) (AircraftProfile, error) {
	key := strings.ToUpper(strings.TrimSpace(token))
	if c.aircraft != nil {
		if p, ok := c.aircraft.Get(key); ok {
			return p, nil
		}
	}

	for _, param := range aircraftSearchParams {
		var page aircraftPage
		ok, err := c.getDirectory(ctx, "/api/aircraft_profiles/", param, token, &page)
		if err != nil {
			return AircraftProfile{}, err
		}
		if !ok || page.Count == 0 || len(page.Results) == 0 {
			continue
		}
		p := page.Results[0]
		c.logger.Debug("aircraft resolved", slog.String("token", token), slog.String("param", param), slog.String("profile", p.Name))
		if c.aircraft != nil {
			c.aircraft.Add(key, p)
		}
		return p, nil
	}

	return AircraftProfile{}, &NotFoundError{Subject: "Aircraft"}
}

// getDirectory performs one directory search. A non-200 status is not an
// error: it reports ok=false so the next search parameter can be tried.
func (c *Client) getDirectory(ctx context.Context, path, param, value string, out any) (bool, error) {
	u := strings.TrimRight(c.cfg.DirectoryURL, "/") + path + "?" + url.Values{param: {value}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header = c.headers.Clone()

	resp, err := c.http.Do(req)
	if err != nil {
		return false, &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("directory search failed", slog.String("path", path), slog.String("param", param), slog.Int("status", resp.StatusCode))
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}
