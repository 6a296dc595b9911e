package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteSessionRoundTrip(t *testing.T) {
	s := newTestSQLite(t)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SaveSession(&Session{
		SessionID:    "s1",
		UserID:       "u1",
		CreatedAt:    now,
		LastActivity: now,
		Preferences:  map[string]string{"country": "NO", "browser": "Firefox"},
	}))

	session, err := s.GetSession("s1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, "NO", session.Preferences["country"])
	assert.Equal(t, "Firefox", session.Preferences["browser"])

	missing, err := s.GetSession("ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteSessionCounters(t *testing.T) {
	s := newTestSQLite(t)

	now := time.Now()
	require.NoError(t, s.SaveSession(&Session{SessionID: "s1", UserID: "u1", CreatedAt: now, LastActivity: now}))

	require.NoError(t, s.TouchSession("s1", now.Add(time.Minute)))
	require.NoError(t, s.TouchSession("s1", now.Add(2*time.Minute)))
	require.NoError(t, s.IncrementMatches("s1", now.Add(3*time.Minute)))
	require.NoError(t, s.TouchSession("ghost", now), "unknown session is a no-op")

	session, err := s.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), session.TotalChecks)
	assert.Equal(t, int64(1), session.SuccessfulMatches)
}

func TestSQLiteSessionUpsert(t *testing.T) {
	s := newTestSQLite(t)

	now := time.Now()
	require.NoError(t, s.SaveSession(&Session{SessionID: "s1", UserID: "u1", CreatedAt: now, LastActivity: now}))
	require.NoError(t, s.SaveSession(&Session{
		SessionID: "s1", UserID: "u1", CreatedAt: now, LastActivity: now,
		Preferences: map[string]string{"country": "DK"},
	}))

	session, err := s.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, "DK", session.Preferences["country"])
}

func TestSQLiteCacheRoundTripAndExpiry(t *testing.T) {
	s := newTestSQLite(t)

	require.NoError(t, s.PutSearch("fresh", []byte(`{"query":"q"}`), []byte(`["a","b"]`), time.Hour))
	require.NoError(t, s.PutSearch("stale", nil, []byte(`["c"]`), -time.Minute))

	results, ok, err := s.GetSearch("fresh")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`["a","b"]`), results)

	_, ok, err = s.GetSearch("stale")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry must behave as a miss")

	_, ok, err = s.GetSearch("never-stored")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteMatchStats(t *testing.T) {
	s := newTestSQLite(t)

	for _, score := range []float64{0.75, 0.85, 0.95} {
		require.NoError(t, s.SaveMatch(&Match{
			OriginalURL: "https://news.example/a",
			Article:     []byte(`{"title":"t"}`),
			MatchScore:  score,
			MatchedAt:   time.Now(),
			SessionID:   "s1",
		}))
	}

	stats, err := s.MatchStats("s1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.InDelta(t, 0.85, stats.AverageScore, 1e-9)
	assert.InDelta(t, 0.95, stats.BestScore, 1e-9)

	empty, err := s.MatchStats("nobody")
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.BestScore)
}

func TestSQLiteActivityCounts(t *testing.T) {
	s := newTestSQLite(t)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.AppendActivity(&Activity{
			SessionID: "s1",
			Action:    "article_check_completed",
			Details:   []byte(`{"is_locked":true}`),
			Timestamp: time.Now(),
		}))
	}
	require.NoError(t, s.AppendActivity(&Activity{
		SessionID: "s1", Action: "session_created", Timestamp: time.Now(),
	}))
	require.NoError(t, s.AppendActivity(&Activity{
		SessionID: "s2", Action: "session_created", Timestamp: time.Now(),
	}))

	counts, err := s.CountByAction("s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["article_check_completed"])
	assert.Equal(t, int64(1), counts["session_created"])
	assert.Len(t, counts, 2)
}
