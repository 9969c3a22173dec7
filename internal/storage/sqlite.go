// Package storage persists request history, resolved reference data and
// calculation analytics.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// HistoryEntry is one handled chat request.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // "http", "nats", "cli".
	ChatID    int64     `json:"chat_id,omitempty"`
	User      string    `json:"user,omitempty"`
	RawText   string    `json:"raw_text"`
	LegsJSON  string    `json:"legs_json,omitempty"`
	LegCount  int       `json:"leg_count"`
	Reply     string    `json:"reply,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"` // Empty when the request succeeded.
}

// OK reports whether the request produced a reply without error.
func (e HistoryEntry) OK() bool { return e.ErrorKind == "" }

// HistoryDB wraps a SQLite database holding request history.
type HistoryDB struct {
	db *sql.DB
}

// OpenHistory opens or creates a SQLite history database at path.
func OpenHistory(path string) (*HistoryDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := createHistorySchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &HistoryDB{db: db}, nil
}

// Close closes the database connection.
func (d *HistoryDB) Close() error {
	return d.db.Close()
}

func createHistorySchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		source TEXT NOT NULL,
		chat_id INTEGER,
		user_name TEXT,
		raw_text TEXT NOT NULL,
		legs_json TEXT,
		leg_count INTEGER DEFAULT 0,
		reply TEXT,
		error_kind TEXT,
		created_at TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_requests_timestamp ON requests(timestamp);
	CREATE INDEX IF NOT EXISTS idx_requests_chat ON requests(chat_id);
	CREATE INDEX IF NOT EXISTS idx_requests_error ON requests(error_kind);

	-- FTS5 virtual table for full-text search on request text.
	CREATE VIRTUAL TABLE IF NOT EXISTS requests_fts USING fts5(
		raw_text,
		content='requests',
		content_rowid='id'
	);

	CREATE TRIGGER IF NOT EXISTS requests_ai AFTER INSERT ON requests BEGIN
		INSERT INTO requests_fts(rowid, raw_text) VALUES (new.id, new.raw_text);
	END;

	CREATE TRIGGER IF NOT EXISTS requests_ad AFTER DELETE ON requests BEGIN
		INSERT INTO requests_fts(requests_fts, rowid, raw_text) VALUES('delete', old.id, old.raw_text);
	END;
	`

	_, err := db.Exec(schema)
	return err
}

// InsertParams contains the parameters for recording a request.
type InsertParams struct {
	Timestamp time.Time
	Source    string
	ChatID    int64
	User      string
	RawText   string
	Legs      any // Marshalled to JSON; nil when parsing failed.
	LegCount  int
	Reply     string
	ErrorKind string
}

// Insert records a handled request.
func (d *HistoryDB) Insert(ctx context.Context, p InsertParams) (int64, error) {
	var legsJSON []byte
	if p.Legs != nil {
		var err error
		legsJSON, err = json.Marshal(p.Legs)
		if err != nil {
			return 0, fmt.Errorf("marshal legs: %w", err)
		}
	}

	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	result, err := d.db.ExecContext(ctx, `
		INSERT INTO requests (timestamp, source, chat_id, user_name, raw_text, legs_json, leg_count, reply, error_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ts.UTC().Format(time.RFC3339Nano), p.Source, p.ChatID, p.User, p.RawText, string(legsJSON), p.LegCount, p.Reply, p.ErrorKind)
	if err != nil {
		return 0, fmt.Errorf("insert request: %w", err)
	}

	return result.LastInsertId()
}

// QueryParams contains filtering options for querying history.
type QueryParams struct {
	ID         int64  // Filter by request ID.
	Source     string // Exact match.
	ChatID     int64  // Exact match.
	FailedOnly bool   // Only requests that ended in an error.
	ErrorKind  string // Exact match.
	FullText   string // FTS5 search on raw_text.
	Limit      int    // Max results (default 100).
	Offset     int
	OrderDesc  bool // Newest first.
}

// Query retrieves history entries matching the given parameters.
func (d *HistoryDB) Query(ctx context.Context, p QueryParams) ([]HistoryEntry, error) {
	var conditions []string
	var args []any

	if p.ID != 0 {
		conditions = append(conditions, "r.id = ?")
		args = append(args, p.ID)
	}
	if p.Source != "" {
		conditions = append(conditions, "r.source = ?")
		args = append(args, p.Source)
	}
	if p.ChatID != 0 {
		conditions = append(conditions, "r.chat_id = ?")
		args = append(args, p.ChatID)
	}
	if p.FailedOnly {
		conditions = append(conditions, "r.error_kind != '' AND r.error_kind IS NOT NULL")
	}
	if p.ErrorKind != "" {
		conditions = append(conditions, "r.error_kind = ?")
		args = append(args, p.ErrorKind)
	}

	query := `SELECT r.id, r.timestamp, r.source, r.chat_id, r.user_name, r.raw_text,
			r.legs_json, r.leg_count, r.reply, r.error_kind
			FROM requests r`
	if p.FullText != "" {
		query += ` JOIN requests_fts fts ON r.id = fts.rowid`
		conditions = append([]string{"requests_fts MATCH ?"}, conditions...)
		args = append([]any{p.FullText}, args...)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	direction := "ASC"
	if p.OrderDesc {
		direction = "DESC"
	}
	query += " ORDER BY r.id " + direction

	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, p.Offset)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var ts string
		var chatID sql.NullInt64
		var user, legs, reply, errKind sql.NullString
		var legCount sql.NullInt64

		err := rows.Scan(&e.ID, &ts, &e.Source, &chatID, &user, &e.RawText,
			&legs, &legCount, &reply, &errKind)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		e.ChatID = chatID.Int64
		e.User = user.String
		e.LegsJSON = legs.String
		e.LegCount = int(legCount.Int64)
		e.Reply = reply.String
		e.ErrorKind = errKind.String

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Stats contains aggregate statistics about handled requests.
type Stats struct {
	TotalRequests int            `json:"total_requests"`
	Failed        int            `json:"failed"`
	TotalLegs     int            `json:"total_legs"`
	ByErrorKind   map[string]int `json:"by_error_kind"`
}

// GetStats returns statistics about the stored requests.
func (d *HistoryDB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByErrorKind: make(map[string]int)}

	row := d.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(leg_count), 0) FROM requests")
	if err := row.Scan(&stats.TotalRequests, &stats.TotalLegs); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT error_kind, COUNT(*) FROM requests
		WHERE error_kind != '' AND error_kind IS NOT NULL
		GROUP BY error_kind ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		stats.ByErrorKind[kind] = count
		stats.Failed += count
	}

	return stats, rows.Err()
}
