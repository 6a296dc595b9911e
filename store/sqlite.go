package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements all four storage interfaces using SQLite.
// It uses the pure Go modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite store.
// The database file is created if it doesn't exist.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_cache (
		query_hash   TEXT PRIMARY KEY,
		query_params TEXT,
		results      TEXT NOT NULL,
		created_at   DATETIME NOT NULL,
		expires_at   DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_sessions (
		session_id         TEXT PRIMARY KEY,
		user_id            TEXT NOT NULL,
		created_at         DATETIME NOT NULL,
		last_activity      DATETIME NOT NULL,
		total_checks       INTEGER NOT NULL DEFAULT 0,
		successful_matches INTEGER NOT NULL DEFAULT 0,
		preferences        TEXT
	);

	CREATE TABLE IF NOT EXISTS article_matches (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		original_url TEXT NOT NULL,
		article      TEXT NOT NULL,
		match_score  REAL NOT NULL,
		matched_at   DATETIME NOT NULL,
		session_id   TEXT
	);

	CREATE TABLE IF NOT EXISTS activity_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT,
		action     TEXT NOT NULL,
		details    TEXT,
		timestamp  DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_matches_session
		ON article_matches (session_id);

	CREATE INDEX IF NOT EXISTS idx_activity_session
		ON activity_log (session_id, action);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: failed to create schema: %w", err)
	}
	return nil
}

// SaveSession persists a session, overwriting any existing row.
func (s *SQLiteStore) SaveSession(session *Session) error {
	prefs, err := json.Marshal(session.Preferences)
	if err != nil {
		return fmt.Errorf("sqlite: failed to encode preferences: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO user_sessions (
		session_id, user_id, created_at, last_activity,
		total_checks, successful_matches, preferences
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		session.SessionID,
		session.UserID,
		session.CreatedAt,
		session.LastActivity,
		session.TotalChecks,
		session.SuccessfulMatches,
		string(prefs),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save session: %w", err)
	}
	return nil
}

// GetSession returns the session or nil if unknown.
func (s *SQLiteStore) GetSession(sessionID string) (*Session, error) {
	query := `
	SELECT session_id, user_id, created_at, last_activity,
		   total_checks, successful_matches, preferences
	FROM user_sessions WHERE session_id = ?
	`

	var session Session
	var prefs sql.NullString
	err := s.db.QueryRow(query, sessionID).Scan(
		&session.SessionID,
		&session.UserID,
		&session.CreatedAt,
		&session.LastActivity,
		&session.TotalChecks,
		&session.SuccessfulMatches,
		&prefs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query session: %w", err)
	}

	session.Preferences = map[string]string{}
	if prefs.Valid && prefs.String != "" {
		if err := json.Unmarshal([]byte(prefs.String), &session.Preferences); err != nil {
			return nil, fmt.Errorf("sqlite: failed to decode preferences: %w", err)
		}
	}
	return &session, nil
}

// TouchSession bumps last-activity and the check counter.
func (s *SQLiteStore) TouchSession(sessionID string, at time.Time) error {
	_, err := s.db.Exec(
		"UPDATE user_sessions SET last_activity = ?, total_checks = total_checks + 1 WHERE session_id = ?",
		at, sessionID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to touch session: %w", err)
	}
	return nil
}

// IncrementMatches bumps the successful-match counter.
func (s *SQLiteStore) IncrementMatches(sessionID string, at time.Time) error {
	_, err := s.db.Exec(
		"UPDATE user_sessions SET last_activity = ?, successful_matches = successful_matches + 1 WHERE session_id = ?",
		at, sessionID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to increment matches: %w", err)
	}
	return nil
}

// GetSearch returns cached results for the key. Expired rows are a miss.
func (s *SQLiteStore) GetSearch(key string) ([]byte, bool, error) {
	var results string
	err := s.db.QueryRow(
		"SELECT results FROM search_cache WHERE query_hash = ? AND expires_at > ?",
		key, time.Now(),
	).Scan(&results)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: failed to query cache: %w", err)
	}
	return []byte(results), true, nil
}

// PutSearch stores results under the key, overwriting any existing row.
func (s *SQLiteStore) PutSearch(key string, request, results []byte, ttl time.Duration) error {
	now := time.Now()
	_, err := s.db.Exec(`
	INSERT OR REPLACE INTO search_cache
		(query_hash, query_params, results, created_at, expires_at)
	VALUES (?, ?, ?, ?, ?)`,
		key, string(request), string(results), now, now.Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to cache results: %w", err)
	}
	return nil
}

// SaveMatch appends a match record.
func (s *SQLiteStore) SaveMatch(match *Match) error {
	_, err := s.db.Exec(`
	INSERT INTO article_matches
		(original_url, article, match_score, matched_at, session_id)
	VALUES (?, ?, ?, ?, ?)`,
		match.OriginalURL,
		string(match.Article),
		match.MatchScore,
		match.MatchedAt,
		match.SessionID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save match: %w", err)
	}
	return nil
}

// MatchStats aggregates the match log for one session.
func (s *SQLiteStore) MatchStats(sessionID string) (*MatchStats, error) {
	var stats MatchStats
	var avg, best sql.NullFloat64
	err := s.db.QueryRow(
		"SELECT COUNT(*), AVG(match_score), MAX(match_score) FROM article_matches WHERE session_id = ?",
		sessionID,
	).Scan(&stats.Total, &avg, &best)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query match stats: %w", err)
	}
	stats.AverageScore = avg.Float64
	stats.BestScore = best.Float64
	return &stats, nil
}

// AppendActivity appends one activity entry.
func (s *SQLiteStore) AppendActivity(entry *Activity) error {
	_, err := s.db.Exec(
		"INSERT INTO activity_log (session_id, action, details, timestamp) VALUES (?, ?, ?, ?)",
		entry.SessionID, entry.Action, string(entry.Details), entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to append activity: %w", err)
	}
	return nil
}

// CountByAction returns a per-action entry count for a session.
func (s *SQLiteStore) CountByAction(sessionID string) (map[string]int64, error) {
	rows, err := s.db.Query(
		"SELECT action, COUNT(*) FROM activity_log WHERE session_id = ? GROUP BY action",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query activity: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var action string
		var count int64
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan activity row: %w", err)
		}
		counts[action] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating activity rows: %w", err)
	}
	return counts, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
