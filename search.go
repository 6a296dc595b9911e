package paywatch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/paywatch/paywatch/store"
)

const searchPath = "/discovery/v1/search"

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Article *Article `json:"article"`
	Issue   *struct {
		Date string `json:"date"`
	} `json:"issue"`
	Summary string `json:"summary"`
}

// Search issues an aggregator search, serving repeated identical
// requests from the cache within the TTL window. Missing configuration
// (no API key, empty query) and transport failures all degrade to an
// empty candidate list; only successful responses are cached, including
// legitimately empty ones.
func (p *Paywatch) Search(ctx context.Context, req SearchRequest) []Candidate {
	req = p.normalizeRequest(req)

	if req.Query == "" {
		p.log.Warn("search with empty query, skipping")
		return nil
	}
	if p.config.APIKey == "" {
		p.log.Warn("no API key configured, skipping aggregator search")
		return nil
	}

	key := cacheKey(req)
	if !p.config.DisableCaching {
		if candidates, ok := p.cachedCandidates(key); ok {
			p.log.Debug("search served from cache", zap.String("key", key))
			return candidates
		}
	}

	candidates, ok := p.searchAggregator(ctx, req)
	if !ok {
		return nil
	}

	if !p.config.DisableCaching {
		p.cacheCandidates(key, req, candidates)
	}
	return candidates
}

// Lookup finds the best aggregator match for extracted article metadata.
// It searches headlines first and widens to full text only when the
// narrow search comes back empty. The best candidate is returned only
// when its score clears the configured match threshold; everything below
// it is discarded. Returns nil when there is no usable match; internal
// failures are absorbed and logged.
func (p *Paywatch) Lookup(ctx context.Context, meta ArticleMetadata, sessionID string) *ArticleMatch {
	if meta.Title == "" {
		p.log.Debug("no title to search on, skipping lookup")
		return nil
	}

	req := SearchRequest{
		Query:     meta.Title,
		Countries: p.sessionCountries(sessionID),
		Languages: p.config.DefaultLanguages,
		SearchIn:  SearchInHeader,
	}

	candidates := p.Search(ctx, req)
	if len(candidates) == 0 {
		req.SearchIn = SearchInEverywhere
		candidates = p.Search(ctx, req)
	}
	if len(candidates) == 0 {
		return nil
	}

	best, bestScore := bestCandidate(meta, candidates)
	if bestScore < p.config.MatchThreshold {
		p.log.Debug("best candidate below threshold",
			zap.Float64("score", bestScore),
			zap.Float64("threshold", p.config.MatchThreshold))
		return nil
	}

	owner := sessionID
	if owner == "" {
		owner = "anonymous"
	}
	match := &ArticleMatch{
		OriginalURL: meta.SourceURL,
		Candidate:   best,
		Score:       bestScore,
		MatchedAt:   time.Now(),
		SessionID:   owner,
	}

	p.saveMatch(match, sessionID)
	p.log.Info("aggregator match found",
		zap.String("url", meta.SourceURL),
		zap.Float64("score", bestScore))

	return match
}

// bestCandidate scores every candidate and returns the highest.
func bestCandidate(meta ArticleMetadata, candidates []Candidate) (Candidate, float64) {
	var best Candidate
	bestScore := 0.0
	for _, c := range candidates {
		if score := MatchScore(meta, c); score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best, bestScore
}

// normalizeRequest fills defaulted fields so equivalent requests share a
// canonical form, and with it a cache key.
func (p *Paywatch) normalizeRequest(req SearchRequest) SearchRequest {
	if req.ItemTypes == "" {
		req.ItemTypes = "article"
	}
	if len(req.Countries) == 0 {
		req.Countries = p.config.DefaultCountries
	}
	if req.SearchIn == "" {
		req.SearchIn = SearchInEverywhere
	}
	return req
}

// sessionCountries returns the search countries for a session: the
// session's country preference, when known, is searched ahead of the
// configured defaults.
func (p *Paywatch) sessionCountries(sessionID string) []string {
	countries := p.config.DefaultCountries
	if sessionID == "" {
		return countries
	}

	session, err := p.sessions.GetSession(sessionID)
	if err != nil || session == nil {
		return countries
	}
	country := session.Preferences["country"]
	if country == "" {
		return countries
	}
	for _, c := range countries {
		if c == country {
			return countries
		}
	}
	return append([]string{country}, countries...)
}

// cacheKey derives a deterministic key from the canonical JSON encoding
// of the request. Struct field order fixes the serialization, so equal
// requests always hash identically.
func cacheKey(req SearchRequest) string {
	encoded, _ := json.Marshal(req)
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

func (p *Paywatch) cachedCandidates(key string) ([]Candidate, bool) {
	raw, ok, err := p.cache.GetSearch(key)
	if err != nil {
		p.log.Warn("cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var candidates []Candidate
	if err := json.Unmarshal(raw, &candidates); err != nil {
		p.log.Warn("corrupt cache entry, treating as miss", zap.Error(err))
		return nil, false
	}
	return candidates, true
}

func (p *Paywatch) cacheCandidates(key string, req SearchRequest, candidates []Candidate) {
	encodedReq, _ := json.Marshal(req)
	encoded, err := json.Marshal(candidates)
	if err != nil {
		p.log.Warn("failed to encode candidates for cache", zap.Error(err))
		return
	}
	if err := p.cache.PutSearch(key, encodedReq, encoded, p.config.CacheTTL); err != nil {
		p.log.Warn("cache write failed", zap.Error(err))
	}
}

// searchAggregator performs the actual discovery POST. The second return
// value reports whether the response was usable; transport errors and
// non-2xx statuses yield (nil, false) so transient failures are never
// cached.
func (p *Paywatch) searchAggregator(ctx context.Context, req SearchRequest) ([]Candidate, bool) {
	endpoint, err := url.Parse(p.config.BaseURL + searchPath)
	if err != nil {
		p.log.Error("invalid aggregator base URL", zap.Error(err))
		return nil, false
	}

	params := url.Values{}
	params.Set("sort", "relevance")
	params.Set("offset", "0")
	params.Set("limit", strconv.Itoa(p.config.MaxSearchResults))
	endpoint.RawQuery = params.Encode()

	body, err := json.Marshal(req)
	if err != nil {
		p.log.Error("failed to encode search request", zap.Error(err))
		return nil, false
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		p.log.Error("failed to build search request", zap.Error(err))
		return nil, false
	}
	httpReq.Header.Set("api-key", p.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "Paywatch/1.0")

	p.log.Debug("searching aggregator",
		zap.String("query", req.Query),
		zap.String("search_in", req.SearchIn))

	resp, err := p.searcher.Do(httpReq)
	if err != nil {
		p.log.Warn("aggregator search failed", zap.Error(err))
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.log.Warn("aggregator search returned non-2xx status",
			zap.Int("status", resp.StatusCode))
		return nil, false
	}

	var decoded searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&decoded); err != nil {
		p.log.Warn("failed to decode aggregator response", zap.Error(err))
		return nil, false
	}

	// Only items carrying an article payload are candidates
	candidates := make([]Candidate, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		if item.Article == nil {
			continue
		}
		candidate := Candidate{
			Article: *item.Article,
			Summary: item.Summary,
		}
		if item.Issue != nil {
			candidate.IssueDate = item.Issue.Date
		}
		candidates = append(candidates, candidate)
	}

	p.log.Info("aggregator search completed",
		zap.String("query", req.Query),
		zap.Int("candidates", len(candidates)))

	return candidates, true
}

// saveMatch persists an ArticleMatch to the match log and records the
// session-side effects of a successful lookup.
func (p *Paywatch) saveMatch(match *ArticleMatch, sessionID string) {
	payload, err := json.Marshal(match.Candidate)
	if err != nil {
		p.log.Warn("failed to encode match payload", zap.Error(err))
		payload = []byte("{}")
	}

	record := &store.Match{
		OriginalURL: match.OriginalURL,
		Article:     payload,
		MatchScore:  match.Score,
		MatchedAt:   match.MatchedAt,
		SessionID:   match.SessionID,
	}
	if err := p.matches.SaveMatch(record); err != nil {
		p.log.Warn("failed to save match", zap.Error(err))
	}

	if sessionID != "" {
		if err := p.sessions.IncrementMatches(sessionID, match.MatchedAt); err != nil {
			p.log.Warn("failed to increment session matches",
				zap.String("session_id", sessionID), zap.Error(err))
		}
		p.logActivity(sessionID, ActionMatchFound, map[string]any{
			"original_url": match.OriginalURL,
			"match_score":  match.Score,
		})
	}
}
