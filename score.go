package paywatch

import (
	"strings"
	"time"
	"unicode"
)

// Sub-score weights. A side missing a field contributes 0 for that term;
// the remaining weights are not renormalized, so the total can stay
// below 1.0 when fields are missing.
const (
	titleWeight       = 0.50
	authorWeight      = 0.25
	dateWeight        = 0.15
	descriptionWeight = 0.10
)

// MatchScore scores an aggregator candidate against extracted article
// metadata. Deterministic, always in [0, 1].
func MatchScore(original ArticleMetadata, candidate Candidate) float64 {
	score := 0.0

	if original.Title != "" && candidate.Article.Title != "" {
		score += textSimilarity(original.Title, candidate.Article.Title) * titleWeight
	}
	if original.Author != "" && candidate.Article.Author != "" {
		score += textSimilarity(original.Author, candidate.Article.Author) * authorWeight
	}
	if original.PublicationDate != "" && candidate.IssueDate != "" {
		score += dateProximity(original.PublicationDate, candidate.IssueDate) * dateWeight
	}
	if original.Description != "" && candidate.Summary != "" {
		score += textSimilarity(original.Description, candidate.Summary) * descriptionWeight
	}

	// Guard against float drift pushing a perfect match past 1.0
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// normalizeText lowers the string and strips everything that is not a
// letter, digit or whitespace.
func normalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// textSimilarity combines token-set Jaccard similarity with a substring
// bonus: 0.7*jaccard + 0.3*bonus, where the bonus is 1.0 when either
// normalized string literally contains the other.
func textSimilarity(a, b string) float64 {
	na, nb := normalizeText(a), normalizeText(b)
	if na == "" || nb == "" {
		return 0.0
	}
	if na == nb {
		return 1.0
	}

	tokensA := tokenSet(na)
	tokensB := tokenSet(nb)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range tokensA {
		if tokensB[token] {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection

	jaccard := float64(intersection) / float64(union)

	bonus := 0.0
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		bonus = 1.0
	}

	return jaccard*0.7 + bonus*0.3
}

func tokenSet(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, token := range strings.Fields(s) {
		tokens[token] = true
	}
	return tokens
}

// dateLayouts are tried in order against a prefix of the input of the
// layout's length, which tolerates trailing timezone or fraction noise.
var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02.01.2006",
}

// parseDate parses a date from the accepted formats, fail-soft.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	for _, layout := range dateLayouts {
		if len(s) < len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s[:len(layout)]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dateProximity scores two date strings by absolute day difference:
// same day 1.0, within a day 0.8, a week 0.6, a month 0.4, else 0.
// Unparseable dates score 0.
func dateProximity(a, b string) float64 {
	da, okA := parseDate(a)
	db, okB := parseDate(b)
	if !okA || !okB {
		return 0.0
	}

	diff := da.Sub(db)
	if diff < 0 {
		diff = -diff
	}
	days := int(diff.Hours() / 24)

	switch {
	case days == 0:
		return 1.0
	case days <= 1:
		return 0.8
	case days <= 7:
		return 0.6
	case days <= 30:
		return 0.4
	default:
		return 0.0
	}
}
