package paywatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BatchCheck runs CheckArticle over many URLs under a bounded worker
// pool (Config.ConcurrentChecks). The result slice always has exactly
// one entry per input URL, in input order: a URL that fails — invalid
// URL, network error, even a panic in its worker — yields a result with
// the Error field set and IsLocked false instead of aborting siblings.
func (p *Paywatch) BatchCheck(ctx context.Context, urls []string, sessionID string) []DetectionResult {
	p.logActivity(sessionID, ActionBatchCheckStarted, map[string]any{
		"url_count": len(urls),
	})

	results := make([]DetectionResult, len(urls))

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := p.config.ConcurrentChecks
	if workers > len(urls) {
		workers = len(urls)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.checkOne(ctx, urls[i], sessionID)
			}
		}()
	}

	for i := range urls {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	locked, matched := 0, 0
	for i := range results {
		if results[i].IsLocked {
			locked++
		}
		if results[i].PressReaderAvailable {
			matched++
		}
	}

	p.logActivity(sessionID, ActionBatchCheckCompleted, map[string]any{
		"total_urls":          len(urls),
		"locked_articles":     locked,
		"pressreader_matches": matched,
	})
	p.log.Info("batch check completed",
		zap.Int("total", len(urls)),
		zap.Int("locked", locked),
		zap.Int("matched", matched))

	return results
}

// checkOne isolates a single URL's failure modes, converting errors and
// panics into a per-URL error result.
func (p *Paywatch) checkOne(ctx context.Context, articleURL, sessionID string) (result DetectionResult) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic during article check",
				zap.String("url", articleURL), zap.Any("panic", r))
			result = DetectionResult{
				URL:       articleURL,
				Error:     fmt.Sprintf("panic: %v", r),
				CheckedAt: time.Now().UTC().Format(time.RFC3339),
			}
		}
	}()

	checked, err := p.CheckArticle(ctx, articleURL, sessionID)
	if err != nil {
		return DetectionResult{
			URL:       articleURL,
			Error:     err.Error(),
			CheckedAt: time.Now().UTC().Format(time.RFC3339),
		}
	}
	return *checked
}
