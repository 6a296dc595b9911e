package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements all four storage interfaces using MySQL.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQL creates a new MySQL store from an existing connection.
func NewMySQL(db *sql.DB) (*MySQLStore, error) {
	if err := createMySQLSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &MySQLStore{db: db}, nil
}

// NewMySQLFromDSN creates a new MySQL store from a DSN.
// The DSN format is: user:password@tcp(host:port)/database
func NewMySQLFromDSN(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn+"?parseTime=true")
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: failed to connect: %w", err)
	}

	return NewMySQL(db)
}

func createMySQLSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS search_cache (
			query_hash   VARCHAR(64) PRIMARY KEY,
			query_params TEXT,
			results      MEDIUMTEXT NOT NULL,
			created_at   DATETIME NOT NULL,
			expires_at   DATETIME NOT NULL
		) ENGINE=InnoDB`,

		`CREATE TABLE IF NOT EXISTS user_sessions (
			session_id         VARCHAR(64) PRIMARY KEY,
			user_id            VARCHAR(255) NOT NULL,
			created_at         DATETIME NOT NULL,
			last_activity      DATETIME NOT NULL,
			total_checks       BIGINT NOT NULL DEFAULT 0,
			successful_matches BIGINT NOT NULL DEFAULT 0,
			preferences        TEXT
		) ENGINE=InnoDB`,

		`CREATE TABLE IF NOT EXISTS article_matches (
			id           BIGINT AUTO_INCREMENT PRIMARY KEY,
			original_url TEXT NOT NULL,
			article      MEDIUMTEXT NOT NULL,
			match_score  DOUBLE NOT NULL,
			matched_at   DATETIME NOT NULL,
			session_id   VARCHAR(64),
			INDEX idx_matches_session (session_id)
		) ENGINE=InnoDB`,

		`CREATE TABLE IF NOT EXISTS activity_log (
			id         BIGINT AUTO_INCREMENT PRIMARY KEY,
			session_id VARCHAR(64),
			action     VARCHAR(64) NOT NULL,
			details    TEXT,
			timestamp  DATETIME NOT NULL,
			INDEX idx_activity_session (session_id, action)
		) ENGINE=InnoDB`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("mysql: failed to create schema: %w", err)
		}
	}
	return nil
}

// SaveSession persists a session, overwriting any existing row.
func (s *MySQLStore) SaveSession(session *Session) error {
	prefs, err := json.Marshal(session.Preferences)
	if err != nil {
		return fmt.Errorf("mysql: failed to encode preferences: %w", err)
	}

	query := `
	INSERT INTO user_sessions (
		session_id, user_id, created_at, last_activity,
		total_checks, successful_matches, preferences
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		user_id = VALUES(user_id),
		last_activity = VALUES(last_activity),
		total_checks = VALUES(total_checks),
		successful_matches = VALUES(successful_matches),
		preferences = VALUES(preferences)
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
		return fmt.Errorf("mysql: failed to save session: %w", err)
	}
	return nil
}

// GetSession returns the session or nil if unknown.
func (s *MySQLStore) GetSession(sessionID string) (*Session, error) {
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
		return nil, fmt.Errorf("mysql: failed to query session: %w", err)
	}

	session.Preferences = map[string]string{}
	if prefs.Valid && prefs.String != "" {
		if err := json.Unmarshal([]byte(prefs.String), &session.Preferences); err != nil {
			return nil, fmt.Errorf("mysql: failed to decode preferences: %w", err)
		}
	}
	return &session, nil
}

// TouchSession bumps last-activity and the check counter.
func (s *MySQLStore) TouchSession(sessionID string, at time.Time) error {
	_, err := s.db.Exec(
		"UPDATE user_sessions SET last_activity = ?, total_checks = total_checks + 1 WHERE session_id = ?",
		at, sessionID,
	)
	if err != nil {
		return fmt.Errorf("mysql: failed to touch session: %w", err)
	}
	return nil
}

// IncrementMatches bumps the successful-match counter.
func (s *MySQLStore) IncrementMatches(sessionID string, at time.Time) error {
	_, err := s.db.Exec(
		"UPDATE user_sessions SET last_activity = ?, successful_matches = successful_matches + 1 WHERE session_id = ?",
		at, sessionID,
	)
	if err != nil {
		return fmt.Errorf("mysql: failed to increment matches: %w", err)
	}
	return nil
}

// GetSearch returns cached results for the key. Expired rows are a miss.
func (s *MySQLStore) GetSearch(key string) ([]byte, bool, error) {
	var results string
	err := s.db.QueryRow(
		"SELECT results FROM search_cache WHERE query_hash = ? AND expires_at > ?",
		key, time.Now(),
	).Scan(&results)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mysql: failed to query cache: %w", err)
	}
	return []byte(results), true, nil
}

// PutSearch stores results under the key, overwriting any existing row.
func (s *MySQLStore) PutSearch(key string, request, results []byte, ttl time.Duration) error {
	now := time.Now()
	_, err := s.db.Exec(`
	INSERT INTO search_cache
		(query_hash, query_params, results, created_at, expires_at)
	VALUES (?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		query_params = VALUES(query_params),
		results = VALUES(results),
		created_at = VALUES(created_at),
		expires_at = VALUES(expires_at)`,
		key, string(request), string(results), now, now.Add(ttl),
	)
	if err != nil {
		return fmt.Errorf("mysql: failed to cache results: %w", err)
	}
	return nil
}

// SaveMatch appends a match record.
func (s *MySQLStore) SaveMatch(match *Match) error {
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
		return fmt.Errorf("mysql: failed to save match: %w", err)
	}
	return nil
}

// MatchStats aggregates the match log for one session.
func (s *MySQLStore) MatchStats(sessionID string) (*MatchStats, error) {
	var stats MatchStats
	var avg, best sql.NullFloat64
	err := s.db.QueryRow(
		"SELECT COUNT(*), AVG(match_score), MAX(match_score) FROM article_matches WHERE session_id = ?",
		sessionID,
	).Scan(&stats.Total, &avg, &best)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to query match stats: %w", err)
	}
	stats.AverageScore = avg.Float64
	stats.BestScore = best.Float64
	return &stats, nil
}

// AppendActivity appends one activity entry.
func (s *MySQLStore) AppendActivity(entry *Activity) error {
	_, err := s.db.Exec(
		"INSERT INTO activity_log (session_id, action, details, timestamp) VALUES (?, ?, ?, ?)",
		entry.SessionID, entry.Action, string(entry.Details), entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("mysql: failed to append activity: %w", err)
	}
	return nil
}

// CountByAction returns a per-action entry count for a session.
func (s *MySQLStore) CountByAction(sessionID string) (map[string]int64, error) {
	rows, err := s.db.Query(
		"SELECT action, COUNT(*) FROM activity_log WHERE session_id = ? GROUP BY action",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to query activity: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var action string
		var count int64
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("mysql: failed to scan activity row: %w", err)
		}
		counts[action] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql: error iterating activity rows: %w", err)
	}
	return counts, nil
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
