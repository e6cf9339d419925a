package models

import "time"

// ProductSnapshot is one point-in-time capture of an Amazon product page.
// It is built once by the extractor and never mutated afterwards. Title and
// ASIN are the only required fields; everything else is best-effort and a
// zero value means the page did not expose it.
type ProductSnapshot struct {
	ASIN               string            `json:"asin"`
	URL                string            `json:"url"`
	Marketplace        Marketplace       `json:"marketplace"`
	Title              string            `json:"title"`
	CurrentPrice       float64           `json:"current_price,omitempty"`
	OriginalPrice      float64           `json:"original_price,omitempty"`
	Currency           string            `json:"currency"`
	DiscountPercentage int               `json:"discount_percentage,omitempty"`
	Availability       string            `json:"availability,omitempty"`
	InStock            bool              `json:"in_stock"`
	StockQuantity      int               `json:"stock_quantity,omitempty"`
	ImageURL           string            `json:"image_url,omitempty"`
	Images             []string          `json:"images,omitempty"`
	Description        string            `json:"description,omitempty"`
	Features           []string          `json:"features,omitempty"`
	Rating             float64           `json:"rating,omitempty"`
	RatingCount        int               `json:"rating_count,omitempty"`
	ReviewCount        int               `json:"review_count,omitempty"`
	Categories         []string          `json:"categories,omitempty"`
	Brand              string            `json:"brand,omitempty"`
	Specifications     map[string]string `json:"specifications,omitempty"`
	PrimeEligible      bool              `json:"prime_eligible"`
	Seller             string            `json:"seller,omitempty"`
	CapturedAt         time.Time         `json:"captured_at"`
}

// Validate reports whether the snapshot meets the minimal completeness
// criteria. Anything less is worth a retry: the page may render fully on a
// fresh attempt.
func (s *ProductSnapshot) Validate() error {
	if s.Title == "" || s.ASIN == "" {
		return ErrInvalidSnapshot
	}
	return nil
}

// HasPrice reports whether a usable current price was extracted.
func (s *ProductSnapshot) HasPrice() bool {
	return s.CurrentPrice > 0
}
