package flight

import (
	"context"
	"io"
	"log/slog"

	"flightcalc/internal/aviapages"
	"flightcalc/internal/storage"
)

// ReferenceStore persists resolved airports and aircraft.
type ReferenceStore interface {
	GetAirport(ctx context.Context, token string) (*storage.AirportRecord, error)
	UpsertAirport(ctx context.Context, a storage.AirportRecord) error
	GetAircraft(ctx context.Context, token string) (*storage.AircraftRecord, error)
	UpsertAircraft(ctx context.Context, a storage.AircraftRecord) error
}

// ReferenceResolver answers from the reference store when it can and
// falls back to the upstream resolver otherwise. Every answer is written
// back so lookup counts stay current. Store failures never fail a lookup.
type ReferenceResolver struct {
	upstream Resolver
	store    ReferenceStore
	logger   *slog.Logger
}

// NewReferenceResolver wraps upstream with store.
func NewReferenceResolver(upstream Resolver, store ReferenceStore, logger *slog.Logger) *ReferenceResolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ReferenceResolver{upstream: upstream, store: store, logger: logger}
}

func (r *ReferenceResolver) ResolveAirport(ctx context.Context, token, role string) (aviapages.Airport, error) {
	rec, err := r.store.GetAirport(ctx, token)
	if err != nil {
		r.logger.Warn("reference airport lookup", slog.String("token", token), slog.Any("error", err))
	}

	var a aviapages.Airport
	if rec != nil {
		a = aviapages.Airport{ICAO: rec.ICAO, IATA: rec.IATA, Name: rec.Name}
	} else {
		a, err = r.upstream.ResolveAirport(ctx, token, role)
		if err != nil {
			return aviapages.Airport{}, err
		}
	}

	if err := r.store.UpsertAirport(ctx, storage.AirportRecord{Token: token, ICAO: a.ICAO, IATA: a.IATA, Name: a.Name}); err != nil {
		r.logger.Warn("reference airport store", slog.String("token", token), slog.Any("error", err))
	}
	return a, nil
}

func (r *ReferenceResolver) ResolveAircraft(ctx context.Context, token string) (aviapages.AircraftProfile, error) {
	rec, err := r.store.GetAircraft(ctx, token)
	if err != nil {
		r.logger.Warn("reference aircraft lookup", slog.String("token", token), slog.Any("error", err))
	}

	var p aviapages.AircraftProfile
	if rec != nil {
		p = aviapages.AircraftProfile{Name: rec.ProfileName}
	} else {
		p, err = r.upstream.ResolveAircraft(ctx, token)
		if err != nil {
			return aviapages.AircraftProfile{}, err
		}
	}

	if err := r.store.UpsertAircraft(ctx, storage.AircraftRecord{Token: token, ProfileName: p.Name}); err != nil {
		r.logger.Warn("reference aircraft store", slog.String("token", token), slog.Any("error", err))
	}
	return p, nil
}
