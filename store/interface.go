package store

import "time"

// Session represents a user session for storage.
// This is a storage-local type to avoid circular imports with the root package.
type Session struct {
	SessionID         string
	UserID            string
	CreatedAt         time.Time
	LastActivity      time.Time
	TotalChecks       int64
	SuccessfulMatches int64
	Preferences       map[string]string
}

// Match is a persisted article match. The matched article payload is kept
// as serialized JSON; the storage layer never interprets it.
type Match struct {
	OriginalURL string
	Article     []byte
	MatchScore  float64
	MatchedAt   time.Time
	SessionID   string
}

// MatchStats aggregates the match log for one session.
type MatchStats struct {
	Total        int64
	AverageScore float64
	BestScore    float64
}

// Activity is one append-only activity log entry.
type Activity struct {
	SessionID string
	Action    string
	Details   []byte
	Timestamp time.Time
}

// SessionStore defines the interface for session storage backends.
// Implementations must be safe for concurrent use; updates to the same
// session must be serialized.
type SessionStore interface {
	// SaveSession persists a session. If a session with the same ID exists,
	// it is overwritten.
	SaveSession(session *Session) error

	// GetSession returns the session with the given ID, or nil if it does
	// not exist.
	GetSession(sessionID string) (*Session, error)

	// TouchSession updates the session's last-activity timestamp and
	// increments its check counter. Unknown session IDs are a no-op.
	TouchSession(sessionID string, at time.Time) error

	// IncrementMatches bumps the session's successful-match counter.
	// Unknown session IDs are a no-op.
	IncrementMatches(sessionID string, at time.Time) error

	// Close releases any resources held by the store.
	Close() error
}

// CacheStore defines the interface for the search result cache.
// Values are serialized candidate lists; the storage layer never
// interprets them. Implementations must be safe for concurrent use.
type CacheStore interface {
	// GetSearch returns the cached results for the key. An expired entry
	// behaves exactly like a missing one. Lazy eviction is acceptable.
	GetSearch(key string) (results []byte, ok bool, err error)

	// PutSearch stores results under the key with the given TTL,
	// overwriting any existing entry for the same key.
	PutSearch(key string, request []byte, results []byte, ttl time.Duration) error

	// Close releases any resources held by the cache.
	Close() error
}

// MatchLog defines the interface for the append-only article match log.
type MatchLog interface {
	// SaveMatch appends a match record.
	SaveMatch(match *Match) error

	// MatchStats returns count/average/best score for a session.
	// An unknown session yields zero values, not an error.
	MatchStats(sessionID string) (*MatchStats, error)

	// Close releases any resources held by the log.
	Close() error
}

// ActivityLog defines the interface for the append-only activity log.
type ActivityLog interface {
	// AppendActivity appends one activity entry. Entries are never
	// updated or deleted within the process lifetime.
	AppendActivity(entry *Activity) error

	// CountByAction returns a per-action entry count for a session.
	// An unknown session yields an empty map, not an error.
	CountByAction(sessionID string) (map[string]int64, error)

	// Close releases any resources held by the log.
	Close() error
}
