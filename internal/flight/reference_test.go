package flight

import (
	"context"
	"errors"
	"testing"

	"flightcalc/internal/storage"
)

type memStore struct {
	airports map[string]storage.AirportRecord
	aircraft map[string]storage.AircraftRecord
	getErr   error
}

func newMemStore() *memStore {
	return &memStore{
		airports: map[string]storage.AirportRecord{},
		aircraft: map[string]storage.AircraftRecord{},
	}
}

func (m *memStore) GetAirport(_ context.Context, token string) (*storage.AirportRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	a, ok := m.airports[token]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *memStore) UpsertAirport(_ context.Context, a storage.AirportRecord) error {
	a.LookupCount = m.airports[a.Token].LookupCount + 1
	m.airports[a.Token] = a
	return nil
}

func (m *memStore) GetAircraft(_ context.Context, token string) (*storage.AircraftRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	a, ok := m.aircraft[token]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *memStore) UpsertAircraft(_ context.Context, a storage.AircraftRecord) error {
	a.LookupCount = m.aircraft[a.Token].LookupCount + 1
	m.aircraft[a.Token] = a
	return nil
}

func TestReferenceResolver_Airport(t *testing.T) {
	upstream := newFakeResolver()
	store := newMemStore()
	r := NewReferenceResolver(upstream, store, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		a, err := r.ResolveAirport(ctx, "KIV", "Departure")
		if err != nil {
			t.Fatalf("ResolveAirport error: %v", err)
		}
		if a.ICAO != "LUKK" {
			t.Errorf("ICAO = %q, want LUKK", a.ICAO)
		}
	}

	if got := upstream.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
	if got := store.airports["KIV"].LookupCount; got != 2 {
		t.Errorf("LookupCount = %d, want 2", got)
	}
}

func TestReferenceResolver_Aircraft(t *testing.T) {
	upstream := newFakeResolver()
	store := newMemStore()
	store.aircraft["E35L"] = storage.AircraftRecord{Token: "E35L", ProfileName: "Cached Legacy"}
	r := NewReferenceResolver(upstream, store, nil)

	p, err := r.ResolveAircraft(context.Background(), "E35L")
	if err != nil {
		t.Fatalf("ResolveAircraft error: %v", err)
	}
	if p.Name != "Cached Legacy" {
		t.Errorf("Name = %q, want %q", p.Name, "Cached Legacy")
	}
	if upstream.calls.Load() != 0 {
		t.Errorf("upstream called for a stored token")
	}
}

func TestReferenceResolver_StoreFailureFallsBack(t *testing.T) {
	upstream := newFakeResolver()
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	r := NewReferenceResolver(upstream, store, nil)

	a, err := r.ResolveAirport(context.Background(), "RIX", "Arrival")
	if err != nil {
		t.Fatalf("ResolveAirport error: %v", err)
	}
	if a.ICAO != "EVRA" {
		t.Errorf("ICAO = %q, want EVRA", a.ICAO)
	}
}

func TestReferenceResolver_NotFound(t *testing.T) {
	r := NewReferenceResolver(newFakeResolver(), newMemStore(), nil)

	_, err := r.ResolveAirport(context.Background(), "ZZZ", "Arrival")
	if ErrorKind(err) != KindNotFound {
		t.Errorf("error = %v, want NotFound", err)
	}
}
