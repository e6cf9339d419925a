// Package cache keeps recently accepted snapshots so a fresh track request
// does not hit the upstream site again within the TTL window.
package cache

import (
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"pricewatch/pkg/models"
)

type Cache struct {
	db  *sql.DB
	ttl time.Duration
	log *zap.SugaredLogger
}

func New(dbPath string, ttl time.Duration, log *zap.SugaredLogger) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			marketplace TEXT NOT NULL,
			asin TEXT NOT NULL,
			data TEXT NOT NULL,
			captured_at DATETIME NOT NULL,
			PRIMARY KEY (marketplace, asin)
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db, ttl: ttl, log: log}, nil
}

// Get returns the cached snapshot for the product, or false when absent or
// older than the TTL.
func (c *Cache) Get(marketplace models.Marketplace, asin string) (*models.ProductSnapshot, bool) {
	var data string
	var capturedAt time.Time

	err := c.db.QueryRow(
		`SELECT data, captured_at FROM snapshots WHERE marketplace = ? AND asin = ?`,
		string(marketplace), asin,
	).Scan(&data, &capturedAt)
	if err != nil {
		return nil, false
	}

	if time.Since(capturedAt) > c.ttl {
		return nil, false
	}

	var snapshot models.ProductSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		c.log.Warnw("cache entry unmarshal failed", "marketplace", marketplace, "asin", asin, "error", err)
		return nil, false
	}

	return &snapshot, true
}

// Set upserts the snapshot under its (marketplace, asin) key.
func (c *Cache) Set(snapshot *models.ProductSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		c.log.Warnw("cache marshal failed", "asin", snapshot.ASIN, "error", err)
		return
	}

	_, err = c.db.Exec(
		`INSERT INTO snapshots (marketplace, asin, data, captured_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(marketplace, asin)
		 DO UPDATE SET data = excluded.data, captured_at = excluded.captured_at`,
		string(snapshot.Marketplace), snapshot.ASIN, string(data), snapshot.CapturedAt,
	)
	if err != nil {
		c.log.Warnw("cache store failed", "asin", snapshot.ASIN, "error", err)
	}
}

func (c *Cache) Close() error {
	return c.db.Close()
}
