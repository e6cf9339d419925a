// Package alerts decides, from a fresh snapshot and a product's stored
// rules, which alerts fire and which notification channels to attempt.
package alerts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"pricewatch/pkg/models"
)

// Store is the rule persistence the evaluator reads and writes.
type Store interface {
	ListActiveUntriggered(ctx context.Context, productID int64) ([]models.AlertRule, error)
	MarkTriggered(ctx context.Context, alertID int64, at time.Time) error
	MarkChannelSent(ctx context.Context, alertID int64, ch models.Channel) error
	UserPreferences(ctx context.Context, userID int64) (models.NotificationPrefs, error)
}

// Dispatcher requests delivery of a fired alert on one channel. The actual
// transport lives outside this core.
type Dispatcher interface {
	Dispatch(ctx context.Context, rule models.AlertRule, prefs models.NotificationPrefs, ch models.Channel) error
}

// Evaluator runs the trigger rules. Evaluations for the same product are
// serialized through a per-product lock so two concurrent passes cannot both
// observe an untriggered rule and double-fire it.
type Evaluator struct {
	store      Store
	dispatcher Dispatcher
	now        func() time.Time
	log        *zap.SugaredLogger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New builds an evaluator. The dispatcher may be nil when the caller never
// asks for notifications.
func New(store Store, dispatcher Dispatcher, log *zap.SugaredLogger) *Evaluator {
	return &Evaluator{
		store:      store,
		dispatcher: dispatcher,
		now:        time.Now,
		log:        log,
		locks:      make(map[int64]*sync.Mutex),
	}
}

// Evaluate checks every active, untriggered rule of the product against the
// snapshot. Fired rules get their trigger time stamped exactly once; when
// sendNotifications is set, each ready, not-yet-sent channel is dispatched
// and marked. Returns the rules that fired during this pass.
func (e *Evaluator) Evaluate(ctx context.Context, productID int64, snapshot *models.ProductSnapshot, sendNotifications bool) ([]models.AlertRule, error) {
	lock := e.lockFor(productID)
	lock.Lock()
	defer lock.Unlock()

	rules, err := e.store.ListActiveUntriggered(ctx, productID)
	if err != nil {
		return nil, err
	}

	var fired []models.AlertRule
	for _, rule := range rules {
		if !shouldFire(rule, snapshot) {
			continue
		}

		triggeredAt := e.now()
		if err := e.store.MarkTriggered(ctx, rule.ID, triggeredAt); err != nil {
			return fired, err
		}
		rule.TriggeredAt = &triggeredAt

		e.log.Infow("alert triggered",
			"alert", rule.ID,
			"type", rule.Type,
			"target", rule.TargetPrice,
			"price", snapshot.CurrentPrice,
		)

		if sendNotifications {
			if err := e.notify(ctx, &rule); err != nil {
				return fired, err
			}
		}

		fired = append(fired, rule)
	}

	return fired, nil
}

// shouldFire applies the trigger predicate for the rule type. Price rules
// are non-evaluable without a price and simply do not fire. Stock alerts
// fire when the product is actually available, not unconditionally.
func shouldFire(rule models.AlertRule, snapshot *models.ProductSnapshot) bool {
	switch rule.Type {
	case models.AlertPriceDrop:
		return snapshot.HasPrice() && snapshot.CurrentPrice <= rule.TargetPrice
	case models.AlertPriceIncrease:
		return snapshot.HasPrice() && snapshot.CurrentPrice >= rule.TargetPrice
	case models.AlertStockAvailable:
		return snapshot.InStock
	}
	return false
}

func (e *Evaluator) notify(ctx context.Context, rule *models.AlertRule) error {
	if e.dispatcher == nil {
		return nil
	}

	prefs, err := e.store.UserPreferences(ctx, rule.UserID)
	if err != nil {
		return err
	}

	for _, ch := range models.Channels() {
		if !prefs.ChannelReady(ch) || rule.Sent(ch) {
			continue
		}
		if err := e.dispatcher.Dispatch(ctx, *rule, prefs, ch); err != nil {
			// Leave the sent flag unset so the next pass can retry delivery.
			e.log.Warnw("dispatch failed", "alert", rule.ID, "channel", ch, "error", err)
			continue
		}
		if err := e.store.MarkChannelSent(ctx, rule.ID, ch); err != nil {
			return err
		}
		rule.MarkSent(ch)
	}
	return nil
}

func (e *Evaluator) lockFor(productID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[productID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[productID] = lock
	}
	return lock
}
