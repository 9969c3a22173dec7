// Package api provides the REST API for the flight calculator bot.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"flightcalc/internal/chat"
	"flightcalc/internal/flight"
	"flightcalc/internal/handlers"
	"flightcalc/internal/query"
	"flightcalc/internal/storage"
)

// HistoryStore is the read side of the request history.
type HistoryStore interface {
	Query(ctx context.Context, p storage.QueryParams) ([]storage.HistoryEntry, error)
	GetStats(ctx context.Context) (*storage.Stats, error)
}

// RouteStats reports calculation analytics.
type RouteStats interface {
	TopRoutes(ctx context.Context, since time.Time, aircraftProfile string, limit int) ([]storage.RouteCount, error)
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// Server exposes the bot over HTTP.
type Server struct {
	bot     *handlers.Bot
	service *flight.Service
	history HistoryStore // Optional.
	routes  RouteStats   // Optional.
	logger  *slog.Logger

	port        int
	authEnabled bool
	apiKeys     map[string]bool
}

// Deps are the collaborators a Server needs. History and Routes may be nil.
type Deps struct {
	Bot     *handlers.Bot
	Service *flight.Service
	History HistoryStore
	Routes  RouteStats
	Logger  *slog.Logger
}

// NewServer creates a new API server.
func NewServer(deps Deps, cfg Config) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Server{
		bot:         deps.Bot,
		service:     deps.Service,
		history:     deps.History,
		routes:      deps.Routes,
		logger:      logger,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API starting", slog.String("addr", srv.Addr), slog.Bool("auth", s.authEnabled))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Health check stays open.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.authEnabled {
			r.Use(s.authMiddleware)
		}

		r.Post("/parse", s.handleParse)
		r.Post("/calculate", s.handleCalculate)
		r.Post("/messages", s.handleMessage)

		r.Get("/history", s.handleHistory)
		r.Get("/history/stats", s.handleHistoryStats)
		r.Get("/routes/top", s.handleTopRoutes)
	})

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}
		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// TextRequest is the body of /parse and /calculate.
type TextRequest struct {
	Text string `json:"text"`
}

// ErrorResponse reports a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func decodeText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req TextRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return "", false
	}
	return req.Text, true
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeText(w, r)
	if !ok {
		return
	}

	batch, err := query.ParseBatch(text)
	if err != nil {
		s.writeFlightError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"legs": batch})
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	text, ok := decodeText(w, r)
	if !ok {
		return
	}

	out, err := s.service.Handle(r.Context(), text)
	if err != nil {
		s.writeFlightError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := chat.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.bot.Handle(r.Context(), "http", msg))
}

// writeFlightError maps a flight error to a status code. User errors are
// 422, collaborator outages 502.
func (s *Server) writeFlightError(w http.ResponseWriter, r *http.Request, err error) {
	kind := flight.ErrorKind(err)
	status := http.StatusUnprocessableEntity
	switch kind {
	case flight.KindConnection:
		status = http.StatusBadGateway
	case flight.KindInternal:
		status = http.StatusInternalServerError
	}
	s.logger.Warn("request failed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("kind", kind),
		slog.Any("error", err))
	writeJSON(w, status, ErrorResponse{Error: flight.UserMessage(err), Kind: kind})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "History not configured")
		return
	}

	q := r.URL.Query()
	params := storage.QueryParams{
		Source:     q.Get("source"),
		ErrorKind:  q.Get("kind"),
		FullText:   q.Get("q"),
		FailedOnly: q.Get("failed") == "true",
		OrderDesc:  true,
	}
	if v := q.Get("chat_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid chat_id")
			return
		}
		params.ChatID = id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		params.Limit = n
	}

	entries, err := s.history.Query(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []storage.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "History not configured")
		return
	}

	stats, err := s.history.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTopRoutes(w http.ResponseWriter, r *http.Request) {
	if s.routes == nil {
		writeError(w, http.StatusServiceUnavailable, "Analytics not configured")
		return
	}

	q := r.URL.Query()
	window := 24 * time.Hour
	if v := q.Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since duration")
			return
		}
		window = d
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	routes, err := s.routes.TopRoutes(r.Context(), time.Now().UTC().Add(-window), q.Get("aircraft"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if routes == nil {
		routes = []storage.RouteCount{}
	}
	writeJSON(w, http.StatusOK, routes)
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
