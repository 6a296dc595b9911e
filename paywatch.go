package paywatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paywatch/paywatch/store"
)

// Paywatch is the paywall detection and aggregator matching engine.
// It is safe for concurrent use.
type Paywatch struct {
	config     Config
	sessions   store.SessionStore
	cache      store.CacheStore
	matches    store.MatchLog
	activity   store.ActivityLog
	geoip      *geoReader
	indicators []string
	fetcher    *http.Client
	searcher   *http.Client
	log        *zap.Logger

	// closers holds the distinct storage backends to release on Close.
	closers []interface{ Close() error }
}

// New creates a new Paywatch instance with the given configuration.
// Any storage backend left nil falls back to a shared SQLite store
// created at cfg.DatabasePath.
func New(cfg Config) (*Paywatch, error) {
	cfg.applyDefaults()

	p := &Paywatch{
		config:   cfg,
		sessions: cfg.Sessions,
		cache:    cfg.Cache,
		matches:  cfg.Matches,
		activity: cfg.Activity,
		log:      cfg.Logger,
		fetcher:  &http.Client{Timeout: cfg.FetchTimeout},
		searcher: &http.Client{Timeout: cfg.SearchTimeout},
	}

	if p.sessions == nil || p.cache == nil || p.matches == nil || p.activity == nil {
		sqliteStore, err := store.NewSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("paywatch: failed to initialize SQLite store: %w", err)
		}
		if p.sessions == nil {
			p.sessions = sqliteStore
		}
		if p.cache == nil {
			p.cache = sqliteStore
		}
		if p.matches == nil {
			p.matches = sqliteStore
		}
		if p.activity == nil {
			p.activity = sqliteStore
		}
	}
	p.closers = distinctClosers(p.sessions, p.cache, p.matches, p.activity)

	if cfg.GeoIPDatabasePath != "" {
		geo, err := newGeoReader(cfg.GeoIPDatabasePath)
		if err != nil {
			return nil, fmt.Errorf("paywatch: failed to initialize GeoIP: %w", err)
		}
		p.geoip = geo
	}

	p.indicators = cfg.Indicators
	if p.indicators == nil {
		p.indicators = DefaultIndicators()
	}
	p.indicators = append(p.indicators, cfg.ExtraIndicators...)

	p.log.Info("paywatch engine initialized",
		zap.Bool("api_key_configured", cfg.APIKey != ""),
		zap.Int("indicators", len(p.indicators)))

	return p, nil
}

// distinctClosers deduplicates the backends so a store serving several
// roles is closed once.
func distinctClosers(backends ...interface{ Close() error }) []interface{ Close() error } {
	var distinct []interface{ Close() error }
	for _, b := range backends {
		if b == nil {
			continue
		}
		dup := false
		for _, d := range distinct {
			if d == b {
				dup = true
				break
			}
		}
		if !dup {
			distinct = append(distinct, b)
		}
	}
	return distinct
}

// Close releases all storage resources held by the engine.
// Should be called when the application shuts down.
func (p *Paywatch) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.geoip != nil {
		if err := p.geoip.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("paywatch: errors during close: %v", errs)
	}
	return nil
}

// CreateSession creates and persists a new user session and returns its
// ID. An empty userID gets a generated one.
func (p *Paywatch) CreateSession(userID string) (string, error) {
	return p.createSession(userID, map[string]string{})
}

// CreateSessionFromRequest creates a session on behalf of a web caller,
// capturing browser, OS, device type and — when GeoIP is configured —
// the caller's country into the session preferences. The country
// preference localizes default search countries for this session.
func (p *Paywatch) CreateSessionFromRequest(r *http.Request, userID string) (string, error) {
	prefs := clientPreferences(r)
	if p.geoip != nil {
		if country := p.geoip.countryCode(prefs["ip"]); country != "" {
			prefs["country"] = country
		}
	}
	return p.createSession(userID, prefs)
}

func (p *Paywatch) createSession(userID string, prefs map[string]string) (string, error) {
	sessionID := uuid.NewString()
	if userID == "" {
		userID = fmt.Sprintf("user_%d", time.Now().Unix())
	}

	now := time.Now()
	session := &store.Session{
		SessionID:    sessionID,
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
		Preferences:  prefs,
	}
	if err := p.sessions.SaveSession(session); err != nil {
		return "", fmt.Errorf("paywatch: failed to save session: %w", err)
	}

	p.logActivity(sessionID, ActionSessionCreated, map[string]any{"user_id": userID})
	p.log.Info("user session created",
		zap.String("session_id", sessionID),
		zap.String("user_id", userID))

	return sessionID, nil
}

// Session returns the session with the given ID, or nil if unknown.
func (p *Paywatch) Session(sessionID string) (*UserSession, error) {
	s, err := p.sessions.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("paywatch: failed to get session: %w", err)
	}
	if s == nil {
		return nil, nil
	}
	return storeToSession(s), nil
}

// SetPreference stores one preference entry on a session, overwriting
// any previous value for the key. Returns ErrSessionNotFound for an
// unknown session ID.
func (p *Paywatch) SetPreference(sessionID, key, value string) error {
	session, err := p.sessions.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("paywatch: failed to get session: %w", err)
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.Preferences == nil {
		session.Preferences = map[string]string{}
	}
	session.Preferences[key] = value
	if err := p.sessions.SaveSession(session); err != nil {
		return fmt.Errorf("paywatch: failed to save session: %w", err)
	}
	return nil
}

// SessionStats aggregates session counters, match scores and activity
// counts. An unknown session ID yields a zero-valued structure, not an
// error.
func (p *Paywatch) SessionStats(sessionID string) (*SessionStats, error) {
	stats := &SessionStats{Activities: map[string]int64{}}

	session, err := p.sessions.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("paywatch: failed to get session: %w", err)
	}
	if session == nil {
		return stats, nil
	}
	stats.Session = storeToSession(session)

	matchStats, err := p.matches.MatchStats(sessionID)
	if err != nil {
		return nil, fmt.Errorf("paywatch: failed to aggregate matches: %w", err)
	}
	stats.Matches = MatchAggregates{
		Total:        matchStats.Total,
		AverageScore: matchStats.AverageScore,
		BestScore:    matchStats.BestScore,
	}

	counts, err := p.activity.CountByAction(sessionID)
	if err != nil {
		return nil, fmt.Errorf("paywatch: failed to count activity: %w", err)
	}
	stats.Activities = counts

	return stats, nil
}

// touchSession bumps the session's activity timestamp and check counter.
// Unknown session IDs are tolerated.
func (p *Paywatch) touchSession(sessionID string) {
	if sessionID == "" {
		return
	}
	if err := p.sessions.TouchSession(sessionID, time.Now()); err != nil {
		p.log.Warn("failed to touch session",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

// logActivity appends an activity entry unless activity logging is
// disabled. Log failures are diagnostic only; they never fail the
// operation that triggered them.
func (p *Paywatch) logActivity(sessionID, action string, details map[string]any) {
	if p.config.DisableActivityLog || sessionID == "" {
		return
	}

	payload, err := json.Marshal(details)
	if err != nil {
		p.log.Warn("failed to encode activity details", zap.Error(err))
		payload = []byte("{}")
	}

	entry := &store.Activity{
		SessionID: sessionID,
		Action:    action,
		Details:   payload,
		Timestamp: time.Now(),
	}
	if err := p.activity.AppendActivity(entry); err != nil {
		p.log.Warn("failed to append activity",
			zap.String("action", action), zap.Error(err))
	}
}

func storeToSession(s *store.Session) *UserSession {
	prefs := s.Preferences
	if prefs == nil {
		prefs = map[string]string{}
	}
	return &UserSession{
		SessionID:         s.SessionID,
		UserID:            s.UserID,
		CreatedAt:         s.CreatedAt,
		LastActivity:      s.LastActivity,
		TotalChecks:       s.TotalChecks,
		SuccessfulMatches: s.SuccessfulMatches,
		Preferences:       prefs,
	}
}
