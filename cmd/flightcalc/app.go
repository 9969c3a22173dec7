package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"flightcalc/internal/aviapages"
	"flightcalc/internal/config"
	"flightcalc/internal/flight"
	"flightcalc/internal/handlers"
	"flightcalc/internal/logging"
	"flightcalc/internal/storage"
)

// app is everything a serving command needs.
type app struct {
	logger  *slog.Logger
	db      *storage.DB
	service *flight.Service
	bot     *handlers.Bot

	logCloser io.Closer
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, closer, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	rt := &app{logger: logger, logCloser: closer}

	db, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	rt.db = db
	if err := db.CreateSchemas(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	if cfg.Aviapages.Token == "" {
		logger.Warn("API_TOKEN is not set; aviapages will reject requests")
	}
	client := aviapages.New(cfg.Aviapages, logger)

	var resolver flight.Resolver = client
	if db.PG != nil {
		resolver = flight.NewReferenceResolver(client, db.PG, logger)
	}
	opts := flight.Options{Parallel: cfg.Parallel, Logger: logger}
	if db.CH != nil {
		opts.Analytics = db.CH
	}
	rt.service = flight.NewService(resolver, client, opts)

	var history handlers.History
	if db.History != nil {
		history = db.History
	}
	rt.bot = handlers.NewBot(handlers.NewRegistry(rt.service), history, logger)

	logger.Debug("app ready",
		slog.Bool("history", db.History != nil),
		slog.Bool("postgres", db.PG != nil),
		slog.Bool("clickhouse", db.CH != nil),
		slog.Int("parallel", cfg.Parallel))
	return rt, nil
}

func (rt *app) Close() {
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.logger.Error("close storage", slog.Any("error", err))
		}
	}
	_ = rt.logCloser.Close()
}

// readText joins args, or reads stdin when there are none or the only
// argument is "-".
func readText(args []string, stdin io.Reader) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}
