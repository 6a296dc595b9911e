package paywatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const candidatesJSON = `{"items":[
	{"article":{"title":"Climate summit reaches deal","author":"Jane Doe"},
	 "issue":{"date":"2025-03-01"},
	 "summary":"Leaders agree on cuts"},
	{"article":null,"summary":"not an article item"}
]}`

func newAggregator(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestSearchRequestShape(t *testing.T) {
	var gotPath, gotSort, gotLimit, gotKey string
	var gotBody SearchRequest

	server, _ := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSort = r.URL.Query().Get("sort")
		gotLimit = r.URL.Query().Get("limit")
		gotKey = r.Header.Get("api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"items":[]}`))
	})

	engine := newTestEngine(t, func(cfg *Config) {
		cfg.BaseURL = server.URL
		cfg.MaxSearchResults = 7
	})

	engine.Search(context.Background(), SearchRequest{Query: "storm coverage"})

	assert.Equal(t, "/discovery/v1/search", gotPath)
	assert.Equal(t, "relevance", gotSort)
	assert.Equal(t, "7", gotLimit)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "storm coverage", gotBody.Query)
	assert.Equal(t, "article", gotBody.ItemTypes)
	assert.Equal(t, []string{"SE", "NO", "DK", "FI"}, gotBody.Countries)
	assert.Equal(t, SearchInEverywhere, gotBody.SearchIn)
}

func TestSearchFiltersItemsWithoutArticle(t *testing.T) {
	server, _ := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidatesJSON))
	})

	engine := newTestEngine(t, func(cfg *Config) { cfg.BaseURL = server.URL })

	candidates := engine.Search(context.Background(), SearchRequest{Query: "climate"})
	require.Len(t, candidates, 1)
	assert.Equal(t, "Climate summit reaches deal", candidates[0].Article.Title)
	assert.Equal(t, "2025-03-01", candidates[0].IssueDate)
	assert.Equal(t, "Leaders agree on cuts", candidates[0].Summary)
}

func TestSearchCacheIdempotence(t *testing.T) {
	server, calls := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidatesJSON))
	})

	engine := newTestEngine(t, func(cfg *Config) { cfg.BaseURL = server.URL })

	req := SearchRequest{Query: "climate"}
	first := engine.Search(context.Background(), req)
	second := engine.Search(context.Background(), req)

	assert.Equal(t, int64(1), calls.Load(), "second call must be served from cache")
	assert.Equal(t, first, second)
}

func TestSearchEmptyResponseIsCached(t *testing.T) {
	server, calls := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	})

	engine := newTestEngine(t, func(cfg *Config) { cfg.BaseURL = server.URL })

	req := SearchRequest{Query: "nothing matches this"}
	assert.Empty(t, engine.Search(context.Background(), req))
	assert.Empty(t, engine.Search(context.Background(), req))
	assert.Equal(t, int64(1), calls.Load(), "a legitimate empty result is cacheable")
}

func TestSearchFailureNotCached(t *testing.T) {
	var failFirst atomic.Bool
	failFirst.Store(true)
	server, calls := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		if failFirst.Swap(false) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(candidatesJSON))
	})

	engine := newTestEngine(t, func(cfg *Config) { cfg.BaseURL = server.URL })

	req := SearchRequest{Query: "climate"}
	assert.Empty(t, engine.Search(context.Background(), req), "500 degrades to empty results")

	candidates := engine.Search(context.Background(), req)
	assert.Len(t, candidates, 1, "transient failure must not poison the cache")
	assert.Equal(t, int64(2), calls.Load())
}

func TestSearchCachingDisabled(t *testing.T) {
	server, calls := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidatesJSON))
	})

	engine := newTestEngine(t, func(cfg *Config) {
		cfg.BaseURL = server.URL
		cfg.DisableCaching = true
	})

	req := SearchRequest{Query: "climate"}
	first := engine.Search(context.Background(), req)
	second := engine.Search(context.Background(), req)

	// Same observable output, more calls: caching is transparent.
	assert.Equal(t, first, second)
	assert.Equal(t, int64(2), calls.Load())
}

func TestSearchWithoutAPIKey(t *testing.T) {
	server, calls := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidatesJSON))
	})

	engine := newTestEngine(t, func(cfg *Config) {
		cfg.BaseURL = server.URL
		cfg.APIKey = ""
	})

	assert.Empty(t, engine.Search(context.Background(), SearchRequest{Query: "climate"}))
	assert.Zero(t, calls.Load(), "no key means no outbound call")
}

func TestSearchEmptyQuery(t *testing.T) {
	server, calls := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidatesJSON))
	})

	engine := newTestEngine(t, func(cfg *Config) { cfg.BaseURL = server.URL })

	assert.Empty(t, engine.Search(context.Background(), SearchRequest{}))
	assert.Zero(t, calls.Load())
}

func TestLookupEmptyTitleNoNetworkCall(t *testing.T) {
	server, calls := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidatesJSON))
	})

	engine := newTestEngine(t, func(cfg *Config) { cfg.BaseURL = server.URL })

	match := engine.Lookup(context.Background(), ArticleMetadata{Description: "has no title"}, "")
	assert.Nil(t, match)
	assert.Zero(t, calls.Load())
}

func TestLookupWidensSearchScope(t *testing.T) {
	var scopes []string
	server, _ := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		scopes = append(scopes, req.SearchIn)
		if req.SearchIn == SearchInHeader {
			w.Write([]byte(`{"items":[]}`))
			return
		}
		w.Write([]byte(`{"items":[{"article":{"title":"Climate summit reaches deal","author":"Jane Doe"},"issue":{"date":"2025-03-01"},"summary":"Leaders agree on cuts"}]}`))
	})

	engine := newTestEngine(t, func(cfg *Config) { cfg.BaseURL = server.URL })

	meta := ArticleMetadata{
		Title:           "Climate summit reaches deal",
		Author:          "Jane Doe",
		PublicationDate: "2025-03-01",
		Description:     "Leaders agree on cuts",
		SourceURL:       "https://news.example/climate",
	}
	match := engine.Lookup(context.Background(), meta, "")

	assert.Equal(t, []string{SearchInHeader, SearchInEverywhere}, scopes)
	require.NotNil(t, match)
	assert.Equal(t, "https://news.example/climate", match.OriginalURL)
	assert.Equal(t, "anonymous", match.SessionID)
	assert.InDelta(t, 1.0, match.Score, 1e-9)
}

func TestLookupBelowThresholdReturnsNil(t *testing.T) {
	server, _ := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"article":{"title":"completely unrelated piece"}}]}`))
	})

	engine := newTestEngine(t, func(cfg *Config) { cfg.BaseURL = server.URL })

	meta := ArticleMetadata{Title: "Climate summit reaches deal"}
	assert.Nil(t, engine.Lookup(context.Background(), meta, ""))
}

func TestLookupUsesSessionCountryPreference(t *testing.T) {
	var gotCountries []string
	server, _ := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotCountries = req.Countries
		w.Write([]byte(`{"items":[]}`))
	})

	engine := newTestEngine(t, func(cfg *Config) { cfg.BaseURL = server.URL })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	sid, err := engine.CreateSessionFromRequest(req, "local")
	require.NoError(t, err)

	// Plant a country preference; GeoIP is not configured in tests, so
	// the session starts without one.
	require.NoError(t, engine.SetPreference(sid, "country", "DE"))

	engine.Lookup(context.Background(), ArticleMetadata{Title: "anything"}, sid)
	require.NotEmpty(t, gotCountries)
	assert.Equal(t, "DE", gotCountries[0], "session country searched first")
	assert.Contains(t, gotCountries, "SE")
}

func TestCacheKeyDeterministic(t *testing.T) {
	a := SearchRequest{Query: "q", Countries: []string{"SE"}, ItemTypes: "article"}
	b := SearchRequest{Query: "q", Countries: []string{"SE"}, ItemTypes: "article"}
	c := SearchRequest{Query: "q", Countries: []string{"NO"}, ItemTypes: "article"}

	assert.Equal(t, cacheKey(a), cacheKey(b))
	assert.NotEqual(t, cacheKey(a), cacheKey(c))
}

func TestSearchTimeoutRecovered(t *testing.T) {
	server, _ := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(candidatesJSON))
	})

	engine := newTestEngine(t, func(cfg *Config) {
		cfg.BaseURL = server.URL
		cfg.SearchTimeout = 20 * time.Millisecond
	})

	// Timeout surfaces as an empty result, never a panic or error.
	assert.Empty(t, engine.Search(context.Background(), SearchRequest{Query: "slow"}))
}
