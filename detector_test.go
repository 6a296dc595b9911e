package paywatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lockedPage = `<html><head>
	<title>Exklusiv granskning av kommunen</title>
	<meta name="author" content="Eva Dahl">
</head><body>
	<p>Prenumerera för att läsa hela artikeln. Subscribe for full access.</p>
</body></html>`

func TestCheckArticleUnlocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>Fully open article text.</p></body></html>"))
	}))
	defer server.Close()

	engine := newTestEngine(t, nil)

	result, err := engine.CheckArticle(context.Background(), server.URL+"/open", "")
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/open", result.URL)
	assert.False(t, result.IsLocked)
	assert.Empty(t, result.IndicatorsFound)
	assert.False(t, result.PressReaderAvailable)
	assert.Empty(t, result.Error)
	assert.NotEmpty(t, result.CheckedAt)
	assert.GreaterOrEqual(t, result.ResponseTimeMS, int64(0))
}

func TestCheckArticleLocked(t *testing.T) {
	var searchCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(lockedPage))
	})
	mux.HandleFunc("/discovery/v1/search", func(w http.ResponseWriter, r *http.Request) {
		searchCalls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	engine := newTestEngine(t, func(cfg *Config) {
		cfg.BaseURL = server.URL
	})

	result, err := engine.CheckArticle(context.Background(), server.URL+"/article", "")
	require.NoError(t, err)

	assert.True(t, result.IsLocked)
	assert.Contains(t, result.IndicatorsFound, "prenumerera")
	assert.Contains(t, result.IndicatorsFound, "subscribe")
	// Locked article triggers the lookup: header scope, then the wider
	// retry after zero candidates.
	assert.Equal(t, 2, searchCalls)
	assert.False(t, result.PressReaderAvailable)
}

func TestCheckArticleIndicatorCaseInsensitive(t *testing.T) {
	for _, body := range []string{"SUBSCRIBE NOW", "subscribe now"} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html><body>" + body + "</body></html>"))
		}))

		engine := newTestEngine(t, func(cfg *Config) {
			cfg.APIKey = "" // skip the aggregator lookup
		})
		result, err := engine.CheckArticle(context.Background(), server.URL, "")
		require.NoError(t, err)
		assert.True(t, result.IsLocked, "body %q", body)

		server.Close()
	}
}

func TestCheckArticleNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	engine := newTestEngine(t, nil)

	result, err := engine.CheckArticle(context.Background(), server.URL, "")
	require.NoError(t, err, "network failures must not surface as errors")

	assert.NotEmpty(t, result.Error)
	assert.False(t, result.IsLocked)
	assert.False(t, result.PressReaderAvailable)
	assert.NotEmpty(t, result.CheckedAt)
}

func TestCheckArticleInvalidURL(t *testing.T) {
	engine := newTestEngine(t, nil)

	for _, bad := range []string{"", "not-a-url", "/relative/path", "ftp://example.com/x"} {
		_, err := engine.CheckArticle(context.Background(), bad, "")
		assert.ErrorIs(t, err, ErrInvalidURL, "url %q", bad)
	}
}

func TestCheckArticleUnknownSessionTolerated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>open</body></html>"))
	}))
	defer server.Close()

	engine := newTestEngine(t, nil)

	// An unknown session ID is treated as anonymous, not an error.
	result, err := engine.CheckArticle(context.Background(), server.URL, "ghost-session")
	require.NoError(t, err)
	assert.False(t, result.IsLocked)
}

func TestCheckArticleBumpsSessionCounter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>open</body></html>"))
	}))
	defer server.Close()

	engine := newTestEngine(t, nil)
	sid, err := engine.CreateSession("counter")
	require.NoError(t, err)

	_, err = engine.CheckArticle(context.Background(), server.URL, sid)
	require.NoError(t, err)
	_, err = engine.CheckArticle(context.Background(), server.URL, sid)
	require.NoError(t, err)

	session, err := engine.Session(sid)
	require.NoError(t, err)
	assert.Equal(t, int64(2), session.TotalChecks)
}

func TestCheckArticleLockedWithMatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(lockedPage))
	})
	mux.HandleFunc("/discovery/v1/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[
			{"article":{"title":"Exklusiv granskning av kommunen","author":"Eva Dahl"}},
			{"article":null}
		]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	engine := newTestEngine(t, func(cfg *Config) {
		cfg.BaseURL = server.URL
	})
	sid, err := engine.CreateSession("matcher")
	require.NoError(t, err)

	result, err := engine.CheckArticle(context.Background(), server.URL+"/article", sid)
	require.NoError(t, err)

	assert.True(t, result.IsLocked)
	require.True(t, result.PressReaderAvailable)
	require.NotNil(t, result.PressReaderMatch)
	assert.Equal(t, "Exklusiv granskning av kommunen", result.PressReaderMatch.Candidate.Article.Title)
	assert.GreaterOrEqual(t, result.PressReaderMatch.Score, 0.75)
	assert.Equal(t, sid, result.PressReaderMatch.SessionID)

	stats, err := engine.SessionStats(sid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Matches.Total)
	assert.Equal(t, int64(1), stats.Activities[ActionMatchFound])
	assert.Equal(t, int64(1), stats.Session.SuccessfulMatches)
}
