package store

import (
	"sync"
	"time"
)

// MemoryStore implements all four storage interfaces with in-memory maps.
// This is useful for testing but not recommended for production.
type MemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	cache      map[string]memoryCacheEntry
	matches    []*Match
	activities []*Activity
}

type memoryCacheEntry struct {
	results   []byte
	expiresAt time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		cache:    make(map[string]memoryCacheEntry),
	}
}

// SaveSession persists a session, overwriting any existing one.
func (m *MemoryStore) SaveSession(session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *session
	if session.Preferences != nil {
		copied.Preferences = make(map[string]string, len(session.Preferences))
		for k, v := range session.Preferences {
			copied.Preferences[k] = v
		}
	}
	m.sessions[session.SessionID] = &copied
	return nil
}

// GetSession returns the session or nil if unknown.
func (m *MemoryStore) GetSession(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

// TouchSession bumps last-activity and the check counter.
func (m *MemoryStore) TouchSession(sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[sessionID]; ok {
		session.LastActivity = at
		session.TotalChecks++
	}
	return nil
}

// IncrementMatches bumps the successful-match counter.
func (m *MemoryStore) IncrementMatches(sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[sessionID]; ok {
		session.LastActivity = at
		session.SuccessfulMatches++
	}
	return nil
}

// GetSearch returns cached results; expired entries behave as a miss
// and are evicted lazily.
func (m *MemoryStore) GetSearch(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.cache[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.cache, key)
		return nil, false, nil
	}
	return entry.results, true, nil
}

// PutSearch stores results under the key, overwriting any existing entry.
func (m *MemoryStore) PutSearch(key string, request, results []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache[key] = memoryCacheEntry{
		results:   results,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// SaveMatch appends a match record.
func (m *MemoryStore) SaveMatch(match *Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *match
	m.matches = append(m.matches, &copied)
	return nil
}

// MatchStats aggregates the match log for one session.
func (m *MemoryStore) MatchStats(sessionID string) (*MatchStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &MatchStats{}
	var sum float64
	for _, match := range m.matches {
		if match.SessionID != sessionID {
			continue
		}
		stats.Total++
		sum += match.MatchScore
		if match.MatchScore > stats.BestScore {
			stats.BestScore = match.MatchScore
		}
	}
	if stats.Total > 0 {
		stats.AverageScore = sum / float64(stats.Total)
	}
	return stats, nil
}

// AppendActivity appends one activity entry.
func (m *MemoryStore) AppendActivity(entry *Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *entry
	m.activities = append(m.activities, &copied)
	return nil
}

// CountByAction returns a per-action entry count for a session.
func (m *MemoryStore) CountByAction(sessionID string) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int64)
	for _, entry := range m.activities {
		if entry.SessionID == sessionID {
			counts[entry.Action]++
		}
	}
	return counts, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
