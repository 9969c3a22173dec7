package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"flightcalc/internal/aviapages"
	"flightcalc/internal/chat"
	"flightcalc/internal/flight"
	"flightcalc/internal/handlers"
	"flightcalc/internal/storage"
)

type stubResolver struct{}

func (stubResolver) ResolveAirport(_ context.Context, token, role string) (aviapages.Airport, error) {
	switch token {
	case "KIV":
		return aviapages.Airport{ICAO: "LUKK", IATA: "KIV", Name: "Chisinau"}, nil
	case "RIX":
		return aviapages.Airport{ICAO: "EVRA", IATA: "RIX", Name: "Riga"}, nil
	}
	return aviapages.Airport{}, &aviapages.NotFoundError{Subject: role + " airport"}
}

func (stubResolver) ResolveAircraft(_ context.Context, token string) (aviapages.AircraftProfile, error) {
	if token == "DOWN" {
		return aviapages.AircraftProfile{}, &aviapages.ConnectionError{Err: context.DeadlineExceeded}
	}
	return aviapages.AircraftProfile{Name: "Embraer Legacy 600"}, nil
}

type stubCalculator struct{}

func (stubCalculator) Calculate(context.Context, aviapages.CalcRequest) (aviapages.CalcResult, error) {
	return aviapages.CalcResult{AirwayMinutes: 95, AirwayDistance: 1100}, nil
}

type stubRoutes struct {
	since time.Time
}

func (s *stubRoutes) TopRoutes(_ context.Context, since time.Time, _ string, _ int) ([]storage.RouteCount, error) {
	s.since = since
	return []storage.RouteCount{{DepartureICAO: "LUKK", ArrivalICAO: "EVRA", Count: 3}}, nil
}

func newTestServer(t *testing.T, cfg Config) (*Server, *storage.HistoryDB) {
	t.Helper()
	hist, err := storage.OpenHistory(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	t.Cleanup(func() { _ = hist.Close() })

	svc := flight.NewService(stubResolver{}, stubCalculator{}, flight.Options{})
	bot := handlers.NewBot(handlers.NewRegistry(svc), hist, nil)
	return NewServer(Deps{Bot: bot, Service: svc, History: hist, Routes: &stubRoutes{}}, cfg), hist
}

func post(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t, Config{Port: 8081})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	server, _ := newTestServer(t, Config{
		Port:        8081,
		AuthEnabled: true,
		APIKeys:     []string{"test-key-123", "another-key"},
	})
	router := server.Router()

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{"no key", "", "", http.StatusUnauthorized},
		{"valid X-API-Key", "X-API-Key", "test-key-123", http.StatusOK},
		{"valid bearer", "Authorization", "Bearer another-key", http.StatusOK},
		{"invalid key", "X-API-Key", "wrong", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/parse", bytes.NewBufferString(`{"text":"KIV-RIX 3 E35L"}`))
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	// Health stays open.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestParseEndpoint(t *testing.T) {
	server, _ := newTestServer(t, Config{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKind   string
	}{
		{"valid", `{"text":"2) RIX-KIV 1 E35L\n1) KIV-RIX 1 E35L"}`, http.StatusOK, ""},
		{"invalid query", `{"text":"KIV-RIX 10"}`, http.StatusUnprocessableEntity, flight.KindInvalidQuery},
		{"count order", `{"text":"KIV-RIX 1 E35L\n2 RIX-KIV 1 E35L"}`, http.StatusUnprocessableEntity, flight.KindCountOrder},
		{"bad json", `{`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, server, "/parse", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantKind != "" {
				var resp ErrorResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatal(err)
				}
				if resp.Kind != tt.wantKind {
					t.Errorf("kind = %q, want %q", resp.Kind, tt.wantKind)
				}
			}
		})
	}

	rec := post(t, server, "/parse", `{"text":"2) RIX-KIV 1 E35L\n1) KIV-RIX 1 E35L"}`)
	var resp struct {
		Legs []struct {
			Ordinal   string `json:"ordinal"`
			Departure string `json:"departure"`
		} `json:"legs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Legs) != 2 || resp.Legs[0].Ordinal != "1" || resp.Legs[0].Departure != "KIV" {
		t.Errorf("legs = %+v", resp.Legs)
	}
}

func TestCalculateEndpoint(t *testing.T) {
	server, _ := newTestServer(t, Config{})

	rec := post(t, server, "/calculate", `{"text":"KIV-RIX 3 E35L"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var out flight.Outcome
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 1 || out.Results[0].Departure.ICAO != "LUKK" {
		t.Errorf("results = %+v", out.Results)
	}
	if !strings.Contains(out.Reply, "01:35") {
		t.Errorf("reply = %q", out.Reply)
	}

	rec = post(t, server, "/calculate", `{"text":"KIV-RIX 3 DOWN"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("connection failure status = %d, want 502", rec.Code)
	}
}

func TestMessagesEndpoint(t *testing.T) {
	server, hist := newTestServer(t, Config{})

	rec := post(t, server, "/messages", `{"update_id":1,"edited_message":{"message_id":4,"chat":{"id":99},"text":"KIV-XYZ 3 E35L"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var reply chat.Reply
	if err := json.NewDecoder(rec.Body).Decode(&reply); err != nil {
		t.Fatal(err)
	}
	if reply.ChatID != 99 || reply.Text != "<i>⚠️ Arrival airport not found ⚠️</i>" {
		t.Errorf("reply = %+v", reply)
	}

	entries, err := hist.Query(context.Background(), storage.QueryParams{ChatID: 99})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Source != "http" || entries[0].ErrorKind != flight.KindNotFound {
		t.Errorf("history = %+v", entries)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	server, _ := newTestServer(t, Config{})
	post(t, server, "/messages", `{"chat_id":5,"text":"KIV-RIX 3 E35L"}`)
	post(t, server, "/messages", `{"chat_id":5,"text":"garbage"}`)
	post(t, server, "/messages", `{"chat_id":6,"text":"/help"}`)

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?chat_id=5", 2},
		{"?failed=true", 1},
		{"?limit=1", 1},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history"+tt.query, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET /history%s status = %d", tt.query, rec.Code)
		}
		var entries []storage.HistoryEntry
		if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
			t.Fatal(err)
		}
		if len(entries) != tt.want {
			t.Errorf("GET /history%s = %d entries, want %d", tt.query, len(entries), tt.want)
		}
	}

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?chat_id=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid chat_id status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/stats", nil))
	var stats storage.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalRequests != 3 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestTopRoutesEndpoint(t *testing.T) {
	server, _ := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/routes/top?since=1h", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var routes []storage.RouteCount
	if err := json.NewDecoder(rec.Body).Decode(&routes); err != nil {
		t.Fatal(err)
	}
	if len(routes) != 1 || routes[0].Count != 3 {
		t.Errorf("routes = %+v", routes)
	}

	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/routes/top?since=soon", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want 400", rec.Code)
	}
}

func TestOptionalStoresUnavailable(t *testing.T) {
	svc := flight.NewService(stubResolver{}, stubCalculator{}, flight.Options{})
	server := NewServer(Deps{Bot: handlers.NewBot(handlers.NewRegistry(svc), nil, nil), Service: svc}, Config{})

	for _, path := range []string{"/history", "/history/stats", "/routes/top"} {
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want 503", path, rec.Code)
		}
	}
}
