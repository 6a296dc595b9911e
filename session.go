package paywatch

import "time"

// UserSession is a caller-scoped context accumulating check and match
// counters plus an activity trail. Sessions are read-only outside the
// engine; counters move only through engine operations.
type UserSession struct {
	SessionID         string            `json:"session_id"`
	UserID            string            `json:"user_id"`
	CreatedAt         time.Time         `json:"created_at"`
	LastActivity      time.Time         `json:"last_activity"`
	TotalChecks       int64             `json:"total_checks"`
	SuccessfulMatches int64             `json:"successful_matches"`
	Preferences       map[string]string `json:"preferences"`
}

// ArticleMetadata is the structured metadata extracted from an article page.
// Every field is independently optional; missing fields are empty.
type ArticleMetadata struct {
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	PublicationDate string   `json:"publication_date"`
	Description     string   `json:"description"`
	Keywords        []string `json:"keywords"`
	SourceURL       string   `json:"url"`
}

// Article is the aggregator's article payload inside a search hit.
type Article struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Date    string `json:"date,omitempty"`
	URL     string `json:"url,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Candidate is a single aggregator search hit, not yet scored against
// the original article.
type Candidate struct {
	Article   Article `json:"article"`
	IssueDate string  `json:"issue_date,omitempty"`
	Summary   string  `json:"summary,omitempty"`
}

// ArticleMatch is a scored aggregator match for a locked article.
// Never mutated after creation.
type ArticleMatch struct {
	OriginalURL string    `json:"original_url"`
	Candidate   Candidate `json:"article"`
	Score       float64   `json:"match_score"`
	MatchedAt   time.Time `json:"matched_at"`
	SessionID   string    `json:"session_id"`
}

// DetectionResult is the outcome of a single article check. Network
// failures surface in Error; they are never returned as Go errors.
type DetectionResult struct {
	URL                  string        `json:"url"`
	IsLocked             bool          `json:"is_locked"`
	IndicatorsFound      []string      `json:"lock_indicators_found"`
	PressReaderAvailable bool          `json:"pressreader_available"`
	PressReaderMatch     *ArticleMatch `json:"pressreader_match,omitempty"`
	ResponseTimeMS       int64         `json:"response_time_ms"`
	CheckedAt            string        `json:"check_timestamp"`
	Error                string        `json:"error,omitempty"`
}

// SearchRequest describes one aggregator search. Immutable once built;
// its canonical JSON form derives the cache key.
type SearchRequest struct {
	Query     string   `json:"query"`
	Countries []string `json:"countries"`
	ItemTypes string   `json:"itemTypes"`
	Author    string   `json:"author,omitempty"`
	CIDs      []string `json:"cids,omitempty"`
	Languages []string `json:"languages,omitempty"`
	SearchIn  string   `json:"searchIn,omitempty"`
	StartDate string   `json:"startDate,omitempty"`
	EndDate   string   `json:"endDate,omitempty"`
}

// Search scopes accepted by the aggregator.
const (
	SearchInHeader     = "header"
	SearchInEverywhere = "everywhere"
)

// Activity action names recorded in the activity log.
const (
	ActionSessionCreated        = "session_created"
	ActionArticleCheckStarted   = "article_check_started"
	ActionArticleCheckCompleted = "article_check_completed"
	ActionMatchFound            = "pressreader_match_found"
	ActionBatchCheckStarted     = "batch_check_started"
	ActionBatchCheckCompleted   = "batch_check_completed"
)

// MatchAggregates summarizes the match log for one session.
type MatchAggregates struct {
	Total        int64   `json:"total"`
	AverageScore float64 `json:"average_score"`
	BestScore    float64 `json:"best_score"`
}

// SessionStats is returned by Paywatch.SessionStats. For an unknown
// session ID, Session is nil and the rest is zero-valued.
type SessionStats struct {
	Session    *UserSession     `json:"session_info"`
	Matches    MatchAggregates  `json:"matches"`
	Activities map[string]int64 `json:"activities"`
}
