// Package scrape wires resolver, fetcher, extractor and validator into the
// single-product pipeline and owns the bounded retry loop around it.
package scrape

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"pricewatch/pkg/extract"
	"pricewatch/pkg/fetch"
	"pricewatch/pkg/models"
	"pricewatch/pkg/resolver"
)

// Cache is consulted on the first attempt only; later attempts always go to
// the live site.
type Cache interface {
	Get(marketplace models.Marketplace, asin string) (*models.ProductSnapshot, bool)
	Set(snapshot *models.ProductSnapshot)
}

// Pipeline runs one product URL through resolve → fetch → extract → validate
// with bounded retries. It is synchronous and holds no shared state beyond
// the injected collaborators; batching and fan-out are the caller's problem.
type Pipeline struct {
	resolver *resolver.Resolver
	fetcher  fetch.Fetcher
	cache    Cache

	maxAttempts   int
	backoffBase   time.Duration
	backoffJitter time.Duration

	rng   *rand.Rand
	sleep func(time.Duration)
	log   *zap.SugaredLogger
}

// Option tweaks pipeline construction.
type Option func(*Pipeline)

// WithCache attaches a snapshot cache.
func WithCache(cache Cache) Option {
	return func(p *Pipeline) { p.cache = cache }
}

// WithMaxAttempts overrides the attempt budget (default 2).
func WithMaxAttempts(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithBackoff overrides the base wait and the jitter ceiling between
// attempts (defaults 30s + up to 30s).
func WithBackoff(base, jitter time.Duration) Option {
	return func(p *Pipeline) {
		p.backoffBase = base
		p.backoffJitter = jitter
	}
}

// WithSleep replaces the blocking wait, letting tests run without delay.
func WithSleep(sleep func(time.Duration)) Option {
	return func(p *Pipeline) { p.sleep = sleep }
}

// New builds a pipeline. The rand source drives backoff jitter.
func New(res *resolver.Resolver, fetcher fetch.Fetcher, rng *rand.Rand, log *zap.SugaredLogger, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver:      res,
		fetcher:       fetcher,
		maxAttempts:   2,
		backoffBase:   30 * time.Second,
		backoffJitter: 30 * time.Second,
		rng:           rng,
		sleep:         time.Sleep,
		log:           log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Scrape resolves the URL, then attempts fetch+extract+validate up to the
// attempt budget. Resolution failures are fatal and surface immediately;
// retryable failures sleep base+jitter between attempts; once the budget is
// spent the most recent failure comes back wrapped in
// *models.ExhaustedRetriesError.
func (p *Pipeline) Scrape(ctx context.Context, rawURL string) (*models.ProductSnapshot, error) {
	resolved, err := p.resolver.Resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	p.log.Infow("scraping product",
		"asin", resolved.ASIN,
		"marketplace", resolved.Marketplace,
		"url", resolved.CanonicalURL,
	)

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt == 1 && p.cache != nil {
			if snapshot, ok := p.cache.Get(resolved.Marketplace, resolved.ASIN); ok {
				p.log.Debugw("cache hit", "asin", resolved.ASIN, "marketplace", resolved.Marketplace)
				return snapshot, nil
			}
		}

		snapshot, err := p.attempt(ctx, resolved)
		if err == nil {
			if p.cache != nil {
				p.cache.Set(snapshot)
			}
			return snapshot, nil
		}

		if !models.Retryable(err) {
			return nil, err
		}

		lastErr = err
		p.log.Warnw("attempt failed", "attempt", attempt, "of", p.maxAttempts, "error", err)

		if attempt < p.maxAttempts {
			p.sleep(p.backoff())
		}
	}

	return nil, &models.ExhaustedRetriesError{Attempts: p.maxAttempts, Last: lastErr}
}

func (p *Pipeline) attempt(ctx context.Context, resolved *resolver.Resolved) (*models.ProductSnapshot, error) {
	html, err := p.fetcher.Fetch(ctx, resolved.CanonicalURL)
	if err != nil {
		return nil, err
	}

	snapshot, err := extract.Extract(html, extract.Input{
		ASIN:        resolved.ASIN,
		URL:         resolved.CanonicalURL,
		Marketplace: resolved.Marketplace,
	})
	if err != nil {
		return nil, err
	}

	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (p *Pipeline) backoff() time.Duration {
	wait := p.backoffBase
	if p.backoffJitter > 0 {
		wait += time.Duration(p.rng.Int63n(int64(p.backoffJitter)))
	}
	return wait
}
