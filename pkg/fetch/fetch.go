// Package fetch obtains rendered product pages. The primary implementation
// drives a hardened headless Chrome; a colly-based client covers
// environments without a browser. Both normalize their failures into the
// error kinds in pkg/models before anything reaches the retry controller.
package fetch

import (
	"context"
	"math/rand"
	"strings"
)

// Fetcher returns the raw markup behind a canonical product URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// userAgents is a fixed pool of realistic desktop browser identities.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:132.0) Gecko/20100101 Firefox/132.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
}

// PickAgent selects a user agent from the pool using the injected source,
// keeping agent choice deterministic under test.
func PickAgent(rng *rand.Rand) string {
	return userAgents[rng.Intn(len(userAgents))]
}

// botChallengeIndicators are the keyword heuristics that betray a
// bot-challenge page in place of product content.
var botChallengeIndicators = []string{
	"captcha",
	"robot check",
	"automated access",
	"unusual traffic",
}

// BotChallenge reports whether the markup looks like a challenge page.
func BotChallenge(html string) bool {
	lower := strings.ToLower(html)
	for _, indicator := range botChallengeIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
