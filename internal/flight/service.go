// Package flight turns a parsed query batch into calculated flight legs:
// airports and aircraft are resolved, avoid tokens classified and the
// calculator called once per leg.
package flight

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"flightcalc/internal/airspace"
	"flightcalc/internal/aviapages"
	"flightcalc/internal/query"
	"flightcalc/internal/storage"
)

// Resolver maps user tokens to directory entries.
type Resolver interface {
	ResolveAirport(ctx context.Context, token, role string) (aviapages.Airport, error)
	ResolveAircraft(ctx context.Context, token string) (aviapages.AircraftProfile, error)
}

// Calculator computes airway time and distance for one leg.
type Calculator interface {
	Calculate(ctx context.Context, req aviapages.CalcRequest) (aviapages.CalcResult, error)
}

// Analytics receives successful calculations.
type Analytics interface {
	InsertBatch(ctx context.Context, calcs []storage.Calculation) error
}

// Result is one calculated leg.
type Result struct {
	Leg       query.LegQuery            `json:"leg"`
	Departure aviapages.Airport         `json:"departure"`
	Arrival   aviapages.Airport         `json:"arrival"`
	Aircraft  aviapages.AircraftProfile `json:"aircraft"`
	Calc      aviapages.CalcResult      `json:"calc"`
}

// Outcome is everything produced while handling one request.
type Outcome struct {
	RequestID string      `json:"request_id"`
	Batch     query.Batch `json:"legs"`
	Results   []Result    `json:"results"`
	Reply     string      `json:"reply"`
}

// Service runs batches against the collaborators.
type Service struct {
	resolver   Resolver
	calculator Calculator
	analytics  Analytics
	parallel   int
	logger     *slog.Logger
}

// Options configures a Service.
type Options struct {
	// Parallel is the maximum number of legs in flight at once. Values
	// below 1 are treated as 1, which resolves legs strictly in order.
	Parallel int

	// Analytics is optional.
	Analytics Analytics

	// Logger is optional; nil discards output.
	Logger *slog.Logger
}

// NewService creates a Service.
func NewService(resolver Resolver, calculator Calculator, opts Options) *Service {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		resolver:   resolver,
		calculator: calculator,
		analytics:  opts.Analytics,
		parallel:   opts.Parallel,
		logger:     opts.Logger,
	}
}

// Calculate resolves and calculates every leg. Results are returned in
// batch order. The first failure cancels the remaining legs and no partial
// results are returned.
func (s *Service) Calculate(ctx context.Context, batch query.Batch) ([]Result, error) {
	results := make([]Result, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i, leg := range batch {
		i, leg := i, leg
		g.Go(func() error {
			r, err := s.calculateLeg(gctx, leg)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) calculateLeg(ctx context.Context, leg query.LegQuery) (Result, error) {
	dep, err := s.resolver.ResolveAirport(ctx, leg.Departure, "Departure")
	if err != nil {
		return Result{}, err
	}
	arr, err := s.resolver.ResolveAirport(ctx, leg.Arrival, "Arrival")
	if err != nil {
		return Result{}, err
	}
	ac, err := s.resolver.ResolveAircraft(ctx, leg.Aircraft)
	if err != nil {
		return Result{}, err
	}

	countries, firs := airspace.Split(leg.Avoid.Sorted())
	calc, err := s.calculator.Calculate(ctx, aviapages.CalcRequest{
		DepartureAirport: dep.FindParameter(),
		ArrivalAirport:   arr.FindParameter(),
		Aircraft:         ac.Name,
		Pax:              leg.Pax,
		AvoidCountries:   countries,
		AvoidFIRs:        firs,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{Leg: leg, Departure: dep, Arrival: arr, Aircraft: ac, Calc: calc}, nil
}

// Handle parses text, calculates every leg and renders the reply.
func (s *Service) Handle(ctx context.Context, text string) (Outcome, error) {
	out := Outcome{RequestID: uuid.NewString()}

	batch, err := query.ParseBatch(text)
	if err != nil {
		return out, err
	}
	out.Batch = batch

	results, err := s.Calculate(ctx, batch)
	if err != nil {
		return out, err
	}
	out.Results = results
	out.Reply = Render(results)

	s.record(ctx, out)
	return out, nil
}

// record forwards results to analytics. Failures are logged only.
func (s *Service) record(ctx context.Context, out Outcome) {
	if s.analytics == nil {
		return
	}
	if err := s.analytics.InsertBatch(ctx, Calculations(out.RequestID, time.Now().UTC(), out.Results)); err != nil {
		s.logger.Error("record calculations", slog.String("request_id", out.RequestID), slog.Any("error", err))
	}
}

// Calculations converts results to analytics rows.
func Calculations(requestID string, at time.Time, results []Result) []storage.Calculation {
	calcs := make([]storage.Calculation, 0, len(results))
	for i, r := range results {
		countries, firs := airspace.Split(r.Leg.Avoid.Sorted())
		calcs = append(calcs, storage.Calculation{
			CalculatedAt:    at,
			RequestID:       requestID,
			LegIndex:        i,
			DepartureToken:  r.Leg.Departure,
			ArrivalToken:    r.Leg.Arrival,
			DepartureICAO:   r.Departure.ICAO,
			ArrivalICAO:     r.Arrival.ICAO,
			AircraftToken:   r.Leg.Aircraft,
			AircraftProfile: r.Aircraft.Name,
			Pax:             r.Leg.Pax,
			AvoidCountries:  countries,
			AvoidFIRs:       firs,
			AirwayMinutes:   r.Calc.AirwayMinutes,
			AirwayKM:        r.Calc.AirwayDistance,
			Warnings:        r.Calc.Warnings,
		})
	}
	return calcs
}

func (r Result) String() string {
	return fmt.Sprintf("%s -> %s (%s)", r.Departure.FindParameter(), r.Arrival.FindParameter(), r.Calc.AirwayTime())
}
