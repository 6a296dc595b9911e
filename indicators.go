package paywatch

import "strings"

// defaultIndicators holds the built-in paywall and subscription phrases,
// grouped by language. A phrase appearing anywhere in a page body (case
// insensitive) suggests the article is locked.
var defaultIndicators = map[string][]string{
	"en": {
		"paywall", "subscribe", "subscription", "premium", "member only",
		"requires subscription", "sign up", "register", "login required",
		"locked content", "restricted access", "behind paywall",
		"subscriber exclusive", "premium content", "paid content",
	},
	"sv": {
		"betalvägg", "prenumerera", "prenumeration", "medlemskap",
		"kräver prenumeration", "registrera", "logga in", "låst innehåll",
		"begränsad åtkomst", "prenumerantexklusivt", "betalt innehåll",
	},
	"no": {
		"betalingsmur", "abonner", "abonnement", "medlemskap",
		"krever abonnement", "registrer", "logg inn",
	},
	"da": {
		"betalingsmur", "abonner", "abonnement", "medlemskab",
		"kræver abonnement", "registrer", "log ind",
	},
}

// DefaultIndicators returns the built-in lock phrases across all
// languages, deduplicated.
func DefaultIndicators() []string {
	return IndicatorsForLanguages("en", "sv", "no", "da")
}

// IndicatorsForLanguages returns the built-in lock phrases for the given
// language codes, deduplicated. Unknown codes are skipped.
func IndicatorsForLanguages(langs ...string) []string {
	seen := make(map[string]bool)
	var phrases []string
	for _, lang := range langs {
		for _, phrase := range defaultIndicators[lang] {
			if !seen[phrase] {
				seen[phrase] = true
				phrases = append(phrases, phrase)
			}
		}
	}
	return phrases
}

// matchIndicators returns every phrase present in the page body.
// The body must already be lower-cased; matching is plain substring
// search, no stemming.
func matchIndicators(loweredBody string, indicators []string) []string {
	var found []string
	for _, phrase := range indicators {
		if strings.Contains(loweredBody, strings.ToLower(phrase)) {
			found = append(found, phrase)
		}
	}
	return found
}
