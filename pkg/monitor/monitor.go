// Package monitor periodically refreshes every tracked product. Fetches are
// strictly serial with a randomized delay between products; parallel
// requests against the upstream site would get the whole pool blocked.
package monitor

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"pricewatch/pkg/alerts"
	"pricewatch/pkg/logger"
	"pricewatch/pkg/scrape"
	"pricewatch/pkg/store"
)

type Monitor struct {
	store     *store.Store
	pipeline  *scrape.Pipeline
	evaluator *alerts.Evaluator

	interval time.Duration
	delayMin time.Duration
	delayMax time.Duration

	rng   *rand.Rand
	sleep func(time.Duration)
	log   *zap.SugaredLogger
	dedup *logger.Deduper
}

func New(st *store.Store, pipeline *scrape.Pipeline, evaluator *alerts.Evaluator,
	interval, delayMin, delayMax time.Duration, rng *rand.Rand, log *zap.SugaredLogger) *Monitor {
	return &Monitor{
		store:     st,
		pipeline:  pipeline,
		evaluator: evaluator,
		interval:  interval,
		delayMin:  delayMin,
		delayMax:  delayMax,
		rng:       rng,
		sleep:     time.Sleep,
		log:       log,
		dedup:     logger.NewDeduper(log),
	}
}

// Start runs an immediate pass and then one per interval until the context
// is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.log.Infow("monitor started", "interval", m.interval)

	m.RunOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor stopped")
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes every active product sequentially.
func (m *Monitor) RunOnce(ctx context.Context) {
	products, err := m.store.ActiveProducts(ctx)
	if err != nil {
		m.log.Errorw("listing active products failed", "error", err)
		return
	}

	for i, product := range products {
		if ctx.Err() != nil {
			return
		}
		if err := m.Refresh(ctx, product); err != nil {
			m.dedup.Printf("refresh failed for product %d: %v", product.ID, err)
		}
		if i < len(products)-1 {
			m.sleep(m.interRequestDelay())
		}
	}
}

// Refresh scrapes one product, persists the snapshot, appends price history
// when the price genuinely moved and evaluates the product's alerts.
func (m *Monitor) Refresh(ctx context.Context, product store.TrackedProduct) error {
	snapshot, err := m.pipeline.Scrape(ctx, product.URL)
	if err != nil {
		return err
	}

	productID, previousPrice, err := m.store.SaveProduct(ctx, snapshot)
	if err != nil {
		return err
	}

	change := alerts.DetectPriceChange(previousPrice, snapshot.CurrentPrice, snapshot.Currency)
	if change.Changed {
		m.log.Infow("price moved",
			"product", productID,
			"direction", change.Direction,
			"from", previousPrice,
			"to", snapshot.CurrentPrice,
		)
		if err := m.store.AppendPriceHistory(ctx, productID, snapshot.CurrentPrice, snapshot.CapturedAt); err != nil {
			return err
		}
	}

	fired, err := m.evaluator.Evaluate(ctx, productID, snapshot, true)
	if err != nil {
		return err
	}
	if len(fired) > 0 {
		m.log.Infow("alerts fired", "product", productID, "count", len(fired))
	}
	return nil
}

// interRequestDelay spreads consecutive fetches 2-4s apart (configurable) so
// the traffic pattern does not look like a crawler burst.
func (m *Monitor) interRequestDelay() time.Duration {
	if m.delayMax <= m.delayMin {
		return m.delayMin
	}
	return m.delayMin + time.Duration(m.rng.Int63n(int64(m.delayMax-m.delayMin)))
}
