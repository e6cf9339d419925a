package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pricewatch/pkg/models"
)

// memoryStore is an in-memory rule store for evaluator tests.
type memoryStore struct {
	rules map[int64]*models.AlertRule
	prefs map[int64]models.NotificationPrefs
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		rules: make(map[int64]*models.AlertRule),
		prefs: make(map[int64]models.NotificationPrefs),
	}
}

func (s *memoryStore) add(rule models.AlertRule) {
	s.rules[rule.ID] = &rule
}

func (s *memoryStore) ListActiveUntriggered(_ context.Context, productID int64) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	for _, rule := range s.rules {
		if rule.ProductID == productID && rule.Active && rule.TriggeredAt == nil {
			rules = append(rules, *rule)
		}
	}
	return rules, nil
}

func (s *memoryStore) MarkTriggered(_ context.Context, alertID int64, at time.Time) error {
	rule, ok := s.rules[alertID]
	if !ok {
		return errors.New("no such alert")
	}
	if rule.TriggeredAt == nil {
		rule.TriggeredAt = &at
	}
	return nil
}

func (s *memoryStore) MarkChannelSent(_ context.Context, alertID int64, ch models.Channel) error {
	rule, ok := s.rules[alertID]
	if !ok {
		return errors.New("no such alert")
	}
	rule.MarkSent(ch)
	return nil
}

func (s *memoryStore) UserPreferences(_ context.Context, userID int64) (models.NotificationPrefs, error) {
	return s.prefs[userID], nil
}

// recordingDispatcher notes every dispatch and can fail selected channels.
type recordingDispatcher struct {
	dispatched []string
	failOn     map[models.Channel]error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, rule models.AlertRule, _ models.NotificationPrefs, ch models.Channel) error {
	if err := d.failOn[ch]; err != nil {
		return err
	}
	d.dispatched = append(d.dispatched, string(ch))
	return nil
}

func inStockSnapshot(price float64) *models.ProductSnapshot {
	return &models.ProductSnapshot{
		ASIN:         "B09B8X9RGM",
		Title:        "Echo Dot",
		CurrentPrice: price,
		Currency:     "EUR",
		InStock:      true,
		CapturedAt:   time.Now(),
	}
}

func TestEvaluateTriggerPredicates(t *testing.T) {
	tests := []struct {
		name     string
		rule     models.AlertRule
		snapshot *models.ProductSnapshot
		fires    bool
	}{
		{
			name:     "price drop fires at or below target",
			rule:     models.AlertRule{Type: models.AlertPriceDrop, TargetPrice: 25},
			snapshot: inStockSnapshot(20),
			fires:    true,
		},
		{
			name:     "price drop fires exactly at target",
			rule:     models.AlertRule{Type: models.AlertPriceDrop, TargetPrice: 20},
			snapshot: inStockSnapshot(20),
			fires:    true,
		},
		{
			name:     "price drop holds above target",
			rule:     models.AlertRule{Type: models.AlertPriceDrop, TargetPrice: 15},
			snapshot: inStockSnapshot(20),
			fires:    false,
		},
		{
			name:     "price increase holds below target",
			rule:     models.AlertRule{Type: models.AlertPriceIncrease, TargetPrice: 25},
			snapshot: inStockSnapshot(20),
			fires:    false,
		},
		{
			name:     "price increase fires at or above target",
			rule:     models.AlertRule{Type: models.AlertPriceIncrease, TargetPrice: 18},
			snapshot: inStockSnapshot(20),
			fires:    true,
		},
		{
			name:     "price rule without a price never fires",
			rule:     models.AlertRule{Type: models.AlertPriceDrop, TargetPrice: 25},
			snapshot: inStockSnapshot(0),
			fires:    false,
		},
		{
			name:     "stock alert fires only when in stock",
			rule:     models.AlertRule{Type: models.AlertStockAvailable},
			snapshot: &models.ProductSnapshot{Title: "Echo Dot", ASIN: "B09B8X9RGM", InStock: false},
			fires:    false,
		},
		{
			name:     "stock alert fires when available",
			rule:     models.AlertRule{Type: models.AlertStockAvailable},
			snapshot: inStockSnapshot(0),
			fires:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fires, shouldFire(tt.rule, tt.snapshot))
		})
	}
}

func TestEvaluateMarksTriggeredOnce(t *testing.T) {
	store := newMemoryStore()
	store.add(models.AlertRule{ID: 1, ProductID: 10, UserID: 5, Type: models.AlertPriceDrop, TargetPrice: 25, Active: true})

	evaluator := New(store, nil, zap.NewNop().Sugar())

	fired, err := evaluator.Evaluate(context.Background(), 10, inStockSnapshot(20), false)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.NotNil(t, fired[0].TriggeredAt)

	// A second pass sees the rule as already triggered and skips it.
	fired, err = evaluator.Evaluate(context.Background(), 10, inStockSnapshot(19), false)
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestEvaluateDispatchesReadyChannels(t *testing.T) {
	store := newMemoryStore()
	store.add(models.AlertRule{ID: 1, ProductID: 10, UserID: 5, Type: models.AlertPriceDrop, TargetPrice: 25, Active: true})
	store.prefs[5] = models.NotificationPrefs{
		UserID:          5,
		EmailEnabled:    true,
		PushEnabled:     true,
		DeviceToken:     "token-1",
		WhatsAppEnabled: true,
		// No WhatsApp number: that channel is not addressable.
	}

	dispatcher := &recordingDispatcher{}
	evaluator := New(store, dispatcher, zap.NewNop().Sugar())

	fired, err := evaluator.Evaluate(context.Background(), 10, inStockSnapshot(20), true)
	require.NoError(t, err)
	require.Len(t, fired, 1)

	assert.Equal(t, []string{"email", "push"}, dispatcher.dispatched)
	assert.True(t, store.rules[1].EmailSent)
	assert.True(t, store.rules[1].PushSent)
	assert.False(t, store.rules[1].WhatsAppSent)
}

func TestEvaluateFailedDispatchLeavesChannelUnsent(t *testing.T) {
	store := newMemoryStore()
	store.add(models.AlertRule{ID: 1, ProductID: 10, UserID: 5, Type: models.AlertPriceDrop, TargetPrice: 25, Active: true})
	store.prefs[5] = models.NotificationPrefs{
		UserID:       5,
		EmailEnabled: true,
		PushEnabled:  true,
		DeviceToken:  "token-1",
	}

	dispatcher := &recordingDispatcher{failOn: map[models.Channel]error{
		models.ChannelEmail: errors.New("smtp unreachable"),
	}}
	evaluator := New(store, dispatcher, zap.NewNop().Sugar())

	fired, err := evaluator.Evaluate(context.Background(), 10, inStockSnapshot(20), true)
	require.NoError(t, err)
	require.Len(t, fired, 1)

	// Push went out, email stays retryable for a later delivery pass.
	assert.Equal(t, []string{"push"}, dispatcher.dispatched)
	assert.False(t, store.rules[1].EmailSent)
	assert.True(t, store.rules[1].PushSent)
}

func TestEvaluateSkipsAlreadySentChannels(t *testing.T) {
	store := newMemoryStore()
	store.add(models.AlertRule{
		ID: 1, ProductID: 10, UserID: 5,
		Type: models.AlertPriceDrop, TargetPrice: 25,
		Active:    true,
		EmailSent: true,
	})
	store.prefs[5] = models.NotificationPrefs{UserID: 5, EmailEnabled: true}

	dispatcher := &recordingDispatcher{}
	evaluator := New(store, dispatcher, zap.NewNop().Sugar())

	_, err := evaluator.Evaluate(context.Background(), 10, inStockSnapshot(20), true)
	require.NoError(t, err)

	assert.Empty(t, dispatcher.dispatched)
}

func TestEvaluateMultipleRules(t *testing.T) {
	store := newMemoryStore()
	store.add(models.AlertRule{ID: 1, ProductID: 10, UserID: 5, Type: models.AlertPriceDrop, TargetPrice: 25, Active: true})
	store.add(models.AlertRule{ID: 2, ProductID: 10, UserID: 5, Type: models.AlertPriceIncrease, TargetPrice: 100, Active: true})
	store.add(models.AlertRule{ID: 3, ProductID: 10, UserID: 5, Type: models.AlertStockAvailable, Active: true})
	store.add(models.AlertRule{ID: 4, ProductID: 99, UserID: 5, Type: models.AlertPriceDrop, TargetPrice: 25, Active: true})

	evaluator := New(store, nil, zap.NewNop().Sugar())

	fired, err := evaluator.Evaluate(context.Background(), 10, inStockSnapshot(20), false)
	require.NoError(t, err)

	// Drop and stock fire; the increase rule holds; the other product's rule
	// is out of scope.
	assert.Len(t, fired, 2)
	assert.Nil(t, store.rules[2].TriggeredAt)
	assert.Nil(t, store.rules[4].TriggeredAt)
}
