package paywatch

import (
	"time"

	"go.uber.org/zap"

	"github.com/paywatch/paywatch/store"
)

// Config contains configuration options for Paywatch.
// The zero value works: every field has a sane default.
type Config struct {
	// APIKey is the aggregator API key, attached to search requests as the
	// api-key header. With no key configured, searches return empty results
	// instead of failing.
	APIKey string

	// BaseURL is the aggregator API base URL.
	// Default: "https://api.pressreader.com".
	BaseURL string

	// UserAgent is sent on article page fetches. Paywall detection needs a
	// realistic browser user-agent or many sites serve stripped pages.
	UserAgent string

	// MaxSearchResults caps the number of candidates requested per search.
	// Default: 20.
	MaxSearchResults int

	// SearchTimeout bounds each aggregator search call. Default: 30s.
	SearchTimeout time.Duration

	// FetchTimeout bounds each article page fetch. Default: 10s.
	FetchTimeout time.Duration

	// CacheTTL is how long cached search results remain valid.
	// Default: 1 hour.
	CacheTTL time.Duration

	// DefaultCountries is used for searches when the caller's session has
	// no country preference. Default: SE, NO, DK, FI.
	DefaultCountries []string

	// DefaultLanguages restricts searches by language.
	// Default: sv, en, no, da.
	DefaultLanguages []string

	// MatchThreshold is the minimum score for a candidate to be reported
	// as a match. Default: 0.75.
	MatchThreshold float64

	// ConcurrentChecks bounds the worker pool for batch checks and thereby
	// the number of simultaneous outbound fetches. Default: 5.
	ConcurrentChecks int

	// DisableCaching turns the search cache off. Observable output is
	// unchanged; only latency and aggregator call volume differ.
	DisableCaching bool

	// DisableActivityLog turns activity logging off. Session counters are
	// still maintained.
	DisableActivityLog bool

	// Indicators replaces the built-in paywall phrase set when non-nil.
	Indicators []string

	// ExtraIndicators is appended to the phrase set.
	ExtraIndicators []string

	// Logger receives diagnostic output. Default: zap.NewNop(), so the
	// library is silent unless the embedder wires a logger.
	Logger *zap.Logger

	// Sessions, Cache, Matches and Activity are the storage backends.
	// Any nil field falls back to a shared SQLite store at DatabasePath.
	Sessions store.SessionStore
	Cache    store.CacheStore
	Matches  store.MatchLog
	Activity store.ActivityLog

	// DatabasePath is the path for the default SQLite database.
	// Only used when a storage backend field is nil. Default: "paywatch.db".
	DatabasePath string

	// GeoIPDatabasePath is the path to a MaxMind GeoLite2-Country (or City)
	// .mmdb file. When set, sessions created from an HTTP request record
	// the caller's country, which localizes default search countries.
	GeoIPDatabasePath string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "https://api.pressreader.com",
		UserAgent:        "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		MaxSearchResults: 20,
		SearchTimeout:    30 * time.Second,
		FetchTimeout:     10 * time.Second,
		CacheTTL:         time.Hour,
		DefaultCountries: []string{"SE", "NO", "DK", "FI"},
		DefaultLanguages: []string{"sv", "en", "no", "da"},
		MatchThreshold:   0.75,
		ConcurrentChecks: 5,
		DatabasePath:     "paywatch.db",
	}
}

// applyDefaults fills in default values for zero-value fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.BaseURL == "" {
		c.BaseURL = defaults.BaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = defaults.UserAgent
	}
	if c.MaxSearchResults <= 0 {
		c.MaxSearchResults = defaults.MaxSearchResults
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = defaults.SearchTimeout
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaults.FetchTimeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaults.CacheTTL
	}
	if len(c.DefaultCountries) == 0 {
		c.DefaultCountries = defaults.DefaultCountries
	}
	if len(c.DefaultLanguages) == 0 {
		c.DefaultLanguages = defaults.DefaultLanguages
	}
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = defaults.MatchThreshold
	}
	if c.ConcurrentChecks <= 0 {
		c.ConcurrentChecks = defaults.ConcurrentChecks
	}
	if c.DatabasePath == "" {
		c.DatabasePath = defaults.DatabasePath
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}
