package aviapages

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeAviapages serves a tiny directory and calculator.
type fakeAviapages struct {
	directoryHits atomic.Int32
	calcResponse  string
	calcStatus    int

	mu       sync.Mutex
	lastCalc CalcRequest
	lastAuth string
}

func (f *fakeAviapages) last() (CalcRequest, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCalc, f.lastAuth
}

func (f *fakeAviapages) handler(t *testing.T) http.Handler {
	airports := map[string]map[string]Airport{
		"search_iata": {"KIV": {ICAO: "LUKK", IATA: "KIV", Name: "Chisinau"}},
		"search_icao": {"EVRA": {ICAO: "EVRA", IATA: "RIX", Name: "Riga"}},
		"search_name": {"GENEVA": {ICAO: "LSGG", IATA: "GVA", Name: "Geneva"}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/airports/", func(w http.ResponseWriter, r *http.Request) {
		f.directoryHits.Add(1)
		f.mu.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		f.mu.Unlock()
		page := airportPage{}
		for param, entries := range airports {
			if v := r.URL.Query().Get(param); v != "" {
				if a, ok := entries[v]; ok {
					page.Results = append(page.Results, a)
				}
			}
		}
		page.Count = len(page.Results)
		_ = json.NewEncoder(w).Encode(page)
	})
	mux.HandleFunc("/api/aircraft_profiles/", func(w http.ResponseWriter, r *http.Request) {
		f.directoryHits.Add(1)
		q := r.URL.Query()
		switch {
		case q.Get("search_name") == "GLOBAL 5000":
			_ = json.NewEncoder(w).Encode(aircraftPage{Count: 1, Results: []AircraftProfile{{Name: "Bombardier Global 5000"}}})
		case q.Get("search_aircraft_type_icao") == "E35L":
			_ = json.NewEncoder(w).Encode(aircraftPage{Count: 1, Results: []AircraftProfile{{Name: "Embraer Legacy 600"}}})
		case q.Get("search_name") == "BROKEN":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_ = json.NewEncoder(w).Encode(aircraftPage{})
		}
	})
	mux.HandleFunc("/flight_calculator/", func(w http.ResponseWriter, r *http.Request) {
		var req CalcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode calculator request: %v", err)
		}
		f.mu.Lock()
		f.lastCalc = req
		f.mu.Unlock()
		if f.calcStatus != 0 {
			w.WriteHeader(f.calcStatus)
			return
		}
		_, _ = w.Write([]byte(f.calcResponse))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeAviapages) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.DirectoryURL = srv.URL
	cfg.CalculatorURL = srv.URL
	cfg.Token = "Token secret"
	return New(cfg, nil)
}

func TestResolveAirport(t *testing.T) {
	f := &fakeAviapages{}
	c := newTestClient(t, f)
	ctx := context.Background()

	tests := []struct {
		token string
		want  Airport
	}{
		{"KIV", Airport{ICAO: "LUKK", IATA: "KIV", Name: "Chisinau"}},
		{"EVRA", Airport{ICAO: "EVRA", IATA: "RIX", Name: "Riga"}},
		{"GENEVA", Airport{ICAO: "LSGG", IATA: "GVA", Name: "Geneva"}},
	}

	for _, tt := range tests {
		got, err := c.ResolveAirport(ctx, tt.token, "Departure")
		if err != nil {
			t.Fatalf("ResolveAirport(%q) error: %v", tt.token, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ResolveAirport(%q) mismatch (-want +got):\n%s", tt.token, diff)
		}
	}

	if _, auth := f.last(); auth != "Token secret" {
		t.Errorf("Authorization = %q, want %q", auth, "Token secret")
	}
}

func TestResolveAirport_Cached(t *testing.T) {
	f := &fakeAviapages{}
	c := newTestClient(t, f)
	ctx := context.Background()

	if _, err := c.ResolveAirport(ctx, "KIV", "Departure"); err != nil {
		t.Fatal(err)
	}
	hits := f.directoryHits.Load()
	if _, err := c.ResolveAirport(ctx, "kiv", "Arrival"); err != nil {
		t.Fatal(err)
	}
	if f.directoryHits.Load() != hits {
		t.Errorf("second lookup hit the directory")
	}
}

func TestResolveAirport_NotFound(t *testing.T) {
	c := newTestClient(t, &fakeAviapages{})

	_, err := c.ResolveAirport(context.Background(), "ZZZZ", "Arrival")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	if err.Error() != "Arrival airport not found" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestResolveAircraft(t *testing.T) {
	c := newTestClient(t, &fakeAviapages{})
	ctx := context.Background()

	tests := []struct {
		token   string
		want    string
		wantErr bool
	}{
		{"GLOBAL 5000", "Bombardier Global 5000", false},
		{"E35L", "Embraer Legacy 600", false},
		{"BROKEN", "", true},
		{"SPACESHIP", "", true},
	}

	for _, tt := range tests {
		got, err := c.ResolveAircraft(ctx, tt.token)
		if tt.wantErr {
			var nf *NotFoundError
			if !errors.As(err, &nf) {
				t.Errorf("ResolveAircraft(%q) error = %v, want NotFoundError", tt.token, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ResolveAircraft(%q) error: %v", tt.token, err)
		}
		if got.Name != tt.want {
			t.Errorf("ResolveAircraft(%q) = %q, want %q", tt.token, got.Name, tt.want)
		}
	}
}

func TestCalculate(t *testing.T) {
	f := &fakeAviapages{
		calcResponse: `{"time":{"airway":135.4},"distance":{"airway":1650.7},"warnings":["Fuel stop required", {"message":"Night landing"}]}`,
	}
	c := newTestClient(t, f)

	got, err := c.Calculate(context.Background(), CalcRequest{
		DepartureAirport: "LUKK",
		ArrivalAirport:   "EVRA",
		Aircraft:         "Embraer Legacy 600",
		Pax:              3,
		AvoidCountries:   []string{"BELARUS"},
		AvoidFIRs:        []string{"UHMM"},
	})
	if err != nil {
		t.Fatalf("Calculate error: %v", err)
	}

	want := CalcResult{
		AirwayMinutes:  135.4,
		AirwayDistance: 1650.7,
		Warnings:       []string{"Fuel stop required", "Night landing"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Calculate mismatch (-want +got):\n%s", diff)
	}
	if got.AirwayTime() != "02:15" {
		t.Errorf("AirwayTime = %q, want 02:15", got.AirwayTime())
	}

	sent, _ := f.last()
	if !sent.AirwayTime || !sent.AirwayDistance {
		t.Errorf("airway flags not sent: %+v", sent)
	}
	if diff := cmp.Diff([]string{"UHMM"}, sent.AvoidFIRs); diff != "" {
		t.Errorf("avoid_firs mismatch (-want +got):\n%s", diff)
	}
}

func TestCalculate_Errors(t *testing.T) {
	t.Run("calculator rejects", func(t *testing.T) {
		f := &fakeAviapages{calcResponse: `{"errors":[{"message":"Payload exceeds MTOW"},{"message":"Range exceeded"}]}`}
		c := newTestClient(t, f)

		_, err := c.Calculate(context.Background(), CalcRequest{})
		var ce *CalcError
		if !errors.As(err, &ce) {
			t.Fatalf("error = %v, want CalcError", err)
		}
		if err.Error() != "Payload exceeds MTOW\nRange exceeded" {
			t.Errorf("message = %q", err.Error())
		}
	})

	t.Run("bad status", func(t *testing.T) {
		f := &fakeAviapages{calcStatus: http.StatusBadGateway}
		c := newTestClient(t, f)

		_, err := c.Calculate(context.Background(), CalcRequest{})
		if !errors.Is(err, ErrConnection) {
			t.Errorf("error = %v, want ErrConnection", err)
		}
	})
}

func TestCalcResult_AirwayTime(t *testing.T) {
	tests := []struct {
		minutes float64
		want    string
	}{
		{0, "00:00"},
		{59.6, "01:00"},
		{125, "02:05"},
		{1500, "25:00"},
	}

	for _, tt := range tests {
		if got := (CalcResult{AirwayMinutes: tt.minutes}).AirwayTime(); got != tt.want {
			t.Errorf("AirwayTime(%v) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestAirport_FindParameter(t *testing.T) {
	tests := []struct {
		airport Airport
		want    string
	}{
		{Airport{ICAO: "EVRA", IATA: "RIX", Name: "Riga"}, "EVRA"},
		{Airport{IATA: "RIX", Name: "Riga"}, "RIX"},
		{Airport{Name: "Riga"}, "Riga"},
	}

	for _, tt := range tests {
		if got := tt.airport.FindParameter(); got != tt.want {
			t.Errorf("FindParameter(%+v) = %q, want %q", tt.airport, got, tt.want)
		}
	}
}
