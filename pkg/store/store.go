// Package store is the persistence collaborator of the pipeline: tracked
// products, their append-only price history, alert rules and user
// notification preferences, all in a single sqlite database.
package store

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"pricewatch/pkg/models"
)

type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// TrackedProduct is the slim row the monitor iterates over.
type TrackedProduct struct {
	ID           int64
	URL          string
	Title        string
	CurrentPrice float64
	Currency     string
	Active       bool
}

func Open(dbPath string, log *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, log: log}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asin TEXT NOT NULL,
		marketplace TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT NOT NULL,
		current_price REAL,
		original_price REAL,
		currency TEXT,
		in_stock BOOLEAN NOT NULL DEFAULT 0,
		availability TEXT,
		image_url TEXT,
		rating REAL,
		review_count INTEGER,
		brand TEXT,
		active BOOLEAN NOT NULL DEFAULT 1,
		updated_at DATETIME NOT NULL,
		UNIQUE (asin, marketplace)
	);
	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id),
		price REAL NOT NULL,
		recorded_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		email_notifications BOOLEAN NOT NULL DEFAULT 1,
		push_notifications BOOLEAN NOT NULL DEFAULT 0,
		whatsapp_notifications BOOLEAN NOT NULL DEFAULT 0,
		fcm_token TEXT NOT NULL DEFAULT '',
		whatsapp_number TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id),
		user_id INTEGER NOT NULL REFERENCES users(id),
		alert_type TEXT NOT NULL,
		target_price REAL NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		triggered_at DATETIME,
		email_sent BOOLEAN NOT NULL DEFAULT 0,
		push_sent BOOLEAN NOT NULL DEFAULT 0,
		whatsapp_sent BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveProduct upserts the snapshot keyed by (asin, marketplace) and returns
// the product id together with the price on record before the write, so the
// caller can decide whether the price actually moved.
func (s *Store) SaveProduct(ctx context.Context, snapshot *models.ProductSnapshot) (int64, float64, error) {
	var id int64
	var previousPrice sql.NullFloat64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, current_price FROM products WHERE asin = ? AND marketplace = ?`,
		snapshot.ASIN, string(snapshot.Marketplace),
	).Scan(&id, &previousPrice)

	switch {
	case err == sql.ErrNoRows:
		result, err := s.db.ExecContext(ctx,
			`INSERT INTO products
				(asin, marketplace, url, title, current_price, original_price, currency,
				 in_stock, availability, image_url, rating, review_count, brand, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snapshot.ASIN, string(snapshot.Marketplace), snapshot.URL, snapshot.Title,
			snapshot.CurrentPrice, snapshot.OriginalPrice, snapshot.Currency,
			snapshot.InStock, snapshot.Availability, snapshot.ImageURL,
			snapshot.Rating, snapshot.ReviewCount, snapshot.Brand, snapshot.CapturedAt,
		)
		if err != nil {
			return 0, 0, err
		}
		id, err = result.LastInsertId()
		return id, 0, err
	case err != nil:
		return 0, 0, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE products SET url = ?, title = ?, current_price = ?, original_price = ?,
			currency = ?, in_stock = ?, availability = ?, image_url = ?, rating = ?,
			review_count = ?, brand = ?, updated_at = ?
		 WHERE id = ?`,
		snapshot.URL, snapshot.Title, snapshot.CurrentPrice, snapshot.OriginalPrice,
		snapshot.Currency, snapshot.InStock, snapshot.Availability, snapshot.ImageURL,
		snapshot.Rating, snapshot.ReviewCount, snapshot.Brand, snapshot.CapturedAt, id,
	)
	return id, previousPrice.Float64, err
}

// AppendPriceHistory records one price point. History is append-only and
// time-ordered; callers gate on actual price changes.
func (s *Store) AppendPriceHistory(ctx context.Context, productID int64, price float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_history (product_id, price, recorded_at) VALUES (?, ?, ?)`,
		productID, price, at,
	)
	return err
}

// PriceHistory returns all recorded prices for a product, oldest first.
func (s *Store) PriceHistory(ctx context.Context, productID int64) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT price FROM price_history WHERE product_id = ? ORDER BY recorded_at ASC, id ASC`,
		productID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []float64
	for rows.Next() {
		var price float64
		if err := rows.Scan(&price); err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}
	return prices, rows.Err()
}

// ActiveProducts lists every product the monitor should refresh.
func (s *Store) ActiveProducts(ctx context.Context) ([]TrackedProduct, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, title, COALESCE(current_price, 0), COALESCE(currency, ''), active
		 FROM products WHERE active = 1 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []TrackedProduct
	for rows.Next() {
		var p TrackedProduct
		if err := rows.Scan(&p.ID, &p.URL, &p.Title, &p.CurrentPrice, &p.Currency, &p.Active); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// EnsureUser creates the user if the email is new and returns its id.
func (s *Store) EnsureUser(ctx context.Context, email string) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email) VALUES (?) ON CONFLICT(email) DO NOTHING`, email,
	)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?`, email).Scan(&id)
	return id, err
}

// UserPreferences loads a user's channel opt-ins and addresses.
func (s *Store) UserPreferences(ctx context.Context, userID int64) (models.NotificationPrefs, error) {
	var prefs models.NotificationPrefs
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, email_notifications, push_notifications, whatsapp_notifications,
			fcm_token, whatsapp_number
		 FROM users WHERE id = ?`, userID,
	).Scan(&prefs.UserID, &prefs.Email, &prefs.EmailEnabled, &prefs.PushEnabled,
		&prefs.WhatsAppEnabled, &prefs.DeviceToken, &prefs.WhatsAppNumber)
	return prefs, err
}

// AddAlert creates an alert rule for the product and user.
func (s *Store) AddAlert(ctx context.Context, productID, userID int64, alertType models.AlertType, targetPrice float64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (product_id, user_id, alert_type, target_price) VALUES (?, ?, ?, ?)`,
		productID, userID, string(alertType), targetPrice,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListActiveUntriggered returns the rules the evaluator may still fire:
// active ones whose triggered_at is unset.
func (s *Store) ListActiveUntriggered(ctx context.Context, productID int64) ([]models.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, user_id, alert_type, target_price, is_active,
			triggered_at, email_sent, push_sent, whatsapp_sent, created_at
		 FROM alerts
		 WHERE product_id = ? AND is_active = 1 AND triggered_at IS NULL
		 ORDER BY id ASC`,
		productID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.AlertRule
	for rows.Next() {
		var rule models.AlertRule
		var alertType string
		var triggeredAt sql.NullTime
		err := rows.Scan(&rule.ID, &rule.ProductID, &rule.UserID, &alertType,
			&rule.TargetPrice, &rule.Active, &triggeredAt,
			&rule.EmailSent, &rule.PushSent, &rule.WhatsAppSent, &rule.CreatedAt)
		if err != nil {
			return nil, err
		}
		rule.Type = models.AlertType(alertType)
		if triggeredAt.Valid {
			rule.TriggeredAt = &triggeredAt.Time
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// MarkTriggered stamps the trigger time exactly once; a rule that already
// fired keeps its original timestamp.
func (s *Store) MarkTriggered(ctx context.Context, alertID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET triggered_at = ? WHERE id = ? AND triggered_at IS NULL`,
		at, alertID,
	)
	return err
}

// MarkChannelSent flips the sent flag for one channel.
func (s *Store) MarkChannelSent(ctx context.Context, alertID int64, ch models.Channel) error {
	var column string
	switch ch {
	case models.ChannelEmail:
		column = "email_sent"
	case models.ChannelPush:
		column = "push_sent"
	case models.ChannelWhatsApp:
		column = "whatsapp_sent"
	default:
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET `+column+` = 1 WHERE id = ?`, alertID,
	)
	return err
}

// SetProductActive pauses or resumes monitoring for a product.
func (s *Store) SetProductActive(ctx context.Context, productID int64, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE products SET active = ? WHERE id = ?`, active, productID,
	)
	return err
}
