package paywatch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxBodyBytes caps how much of a page body is read for indicator
// scanning and metadata extraction.
const maxBodyBytes = 10 << 20

// CheckArticle fetches a URL and determines whether it is behind a
// paywall. If it is, the article's metadata is extracted and looked up
// in the aggregator; a sufficiently confident match is merged into the
// result. Network failures land in the result's Error field — the only
// error this returns is ErrInvalidURL for a malformed input URL.
//
// A non-empty sessionID records check activity against that session;
// unknown IDs are treated as anonymous.
func (p *Paywatch) CheckArticle(ctx context.Context, articleURL, sessionID string) (*DetectionResult, error) {
	if err := validateArticleURL(articleURL); err != nil {
		return nil, err
	}

	p.touchSession(sessionID)
	p.logActivity(sessionID, ActionArticleCheckStarted, map[string]any{"url": articleURL})

	start := time.Now()
	result := &DetectionResult{URL: articleURL}

	body, err := p.fetchPage(ctx, articleURL)
	if err != nil {
		p.log.Warn("article fetch failed",
			zap.String("url", articleURL), zap.Error(err))
		result.Error = err.Error()
	} else {
		result.IndicatorsFound = matchIndicators(strings.ToLower(body), p.indicators)
		result.IsLocked = len(result.IndicatorsFound) > 0

		if result.IsLocked {
			p.log.Info("locked article detected",
				zap.String("url", articleURL),
				zap.Strings("indicators", result.IndicatorsFound))

			meta := ExtractMetadata(body, articleURL)
			if meta.Title == "" {
				meta.Title = TitleFromURL(articleURL)
			}

			if match := p.Lookup(ctx, meta, sessionID); match != nil {
				result.PressReaderAvailable = true
				result.PressReaderMatch = match
			}
		}
	}

	result.ResponseTimeMS = time.Since(start).Milliseconds()
	result.CheckedAt = time.Now().UTC().Format(time.RFC3339)

	p.logActivity(sessionID, ActionArticleCheckCompleted, map[string]any{
		"url":                   articleURL,
		"is_locked":             result.IsLocked,
		"pressreader_available": result.PressReaderAvailable,
		"response_time_ms":      result.ResponseTimeMS,
		"lock_indicators_found": len(result.IndicatorsFound),
	})

	return result, nil
}

func validateArticleURL(articleURL string) error {
	if articleURL == "" {
		return ErrInvalidURL
	}
	parsed, err := url.Parse(articleURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL
	}
	return nil
}

// fetchPage retrieves the article page with the configured timeout and a
// browser user-agent.
func (p *Paywatch) fetchPage(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", p.config.UserAgent)

	resp, err := p.fetcher.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
