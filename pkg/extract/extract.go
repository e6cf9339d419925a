// Package extract turns rendered Amazon product markup into a typed
// snapshot. Every field has an ordered chain of independent strategies; the
// first one that yields a non-empty value wins and a field with no winner is
// simply absent.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pricewatch/pkg/models"
)

// Input carries the pipeline context an extraction runs under.
type Input struct {
	ASIN        string
	URL         string
	Marketplace models.Marketplace
}

var (
	reDiscount    = regexp.MustCompile(`-(\d+)%`)
	reStockLeft   = regexp.MustCompile(`(?i)Only\s+(\d+)\s+left\s+in\s+stock`)
	reRatingOf5   = regexp.MustCompile(`(?i)([\d.,]+)\s+out\s+of\s+5`)
	reReviewCount = regexp.MustCompile(`(?i)(\d+)\s+customer\s+reviews?`)
	reColorImages = regexp.MustCompile(`"colorImages":\s*\{[^}]*"initial":\s*(\[[^\]]+\])`)
	reBrandPrefix = regexp.MustCompile(`(?i)^(Brand:\s*|Marque\s*:\s*)`)
	reDigits      = regexp.MustCompile(`[^\d]`)
)

// outOfStockIndicators are checked before inStockIndicators: when a page
// contains phrases from both classes, out-of-stock wins.
var outOfStockIndicators = []string{
	"currently unavailable",
	"out of stock",
	"temporairement en rupture",
	"derzeit nicht verfügbar",
}

var inStockIndicators = []string{
	"in stock",
	"en stock",
	"auf lager",
	"disponibile",
	"add to cart",
}

// Extract parses the markup and assembles a candidate snapshot. The result
// may be incomplete; the caller validates it. Markup that cannot be parsed
// at all counts as an invalid snapshot.
func Extract(html string, in Input) (*models.ProductSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: unparsable markup: %v", models.ErrInvalidSnapshot, err)
	}

	pageText := doc.Text()

	snapshot := &models.ProductSnapshot{
		ASIN:               in.ASIN,
		URL:                in.URL,
		Marketplace:        in.Marketplace,
		Currency:           in.Marketplace.Currency(),
		Title:              extractTitle(doc),
		CurrentPrice:       extractPrice(doc, in.Marketplace),
		OriginalPrice:      extractOriginalPrice(doc, in.Marketplace),
		DiscountPercentage: extractDiscount(pageText),
		Availability:       extractAvailability(doc),
		InStock:            InStock(pageText),
		StockQuantity:      extractStockQuantity(pageText),
		ImageURL:           extractImageURL(doc),
		Images:             extractImages(doc),
		Description:        extractDescription(doc),
		Features:           extractFeatures(doc),
		Rating:             extractRating(doc),
		RatingCount:        extractRatingCount(doc),
		ReviewCount:        extractReviewCount(pageText),
		Categories:         extractCategories(doc),
		Brand:              extractBrand(doc),
		Specifications:     extractSpecifications(doc),
		PrimeEligible:      doc.Find("i[class*='a-icon-prime']").Length() > 0,
		Seller:             extractSeller(doc),
		CapturedAt:         time.Now(),
	}

	if snapshot.ImageURL == "" && len(snapshot.Images) > 0 {
		snapshot.ImageURL = snapshot.Images[0]
	}

	return snapshot, nil
}

// strategy is one independent way of pulling a field out of the document.
type strategy func(doc *goquery.Document) string

// firstOf evaluates strategies in order and returns the first non-empty hit.
func firstOf(doc *goquery.Document, strategies ...strategy) string {
	for _, fn := range strategies {
		if value := strings.TrimSpace(fn(doc)); value != "" {
			return value
		}
	}
	return ""
}

func selectorText(selector string) strategy {
	return func(doc *goquery.Document) string {
		return collapse(doc.Find(selector).First().Text())
	}
}

func extractTitle(doc *goquery.Document) string {
	return firstOf(doc,
		selectorText("#productTitle"),
		selectorText("#title"),
		selectorText(".product-title"),
		func(doc *goquery.Document) string {
			// Last resort: the page <title>, shorn of Amazon's suffix.
			title := collapse(doc.Find("title").First().Text())
			if strings.Contains(title, "Amazon") {
				title = strings.TrimSpace(strings.SplitN(title, ":", 2)[0])
			}
			return title
		},
	)
}

func extractPrice(doc *goquery.Document, marketplace models.Marketplace) float64 {
	selectors := []string{
		".a-price-whole",
		"#priceblock_ourprice",
		".a-offscreen",
		".a-price",
	}

	for _, selector := range selectors {
		var price float64
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if value := ParsePrice(sel.Text(), marketplace); value > 0 {
				price = value
				return false
			}
			return true
		})
		if price > 0 {
			return price
		}
	}
	return 0
}

func extractOriginalPrice(doc *goquery.Document, marketplace models.Marketplace) float64 {
	for _, selector := range []string{".a-text-price", ".a-text-strike"} {
		if value := ParsePrice(doc.Find(selector).First().Text(), marketplace); value > 0 {
			return value
		}
	}
	return 0
}

func extractDiscount(pageText string) int {
	if m := reDiscount.FindStringSubmatch(pageText); m != nil {
		discount, _ := strconv.Atoi(m[1])
		return discount
	}
	return 0
}

func extractAvailability(doc *goquery.Document) string {
	availability := firstOf(doc,
		selectorText("#availability"),
		selectorText(".a-color-success"),
	)
	if availability == "" {
		return "Unknown"
	}
	return availability
}

// InStock scans the page text against the locale-spanning indicator lists.
// Out-of-stock phrases take precedence over in-stock phrases.
func InStock(pageText string) bool {
	lower := strings.ToLower(pageText)

	for _, indicator := range outOfStockIndicators {
		if strings.Contains(lower, indicator) {
			return false
		}
	}
	for _, indicator := range inStockIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

func extractStockQuantity(pageText string) int {
	if m := reStockLeft.FindStringSubmatch(pageText); m != nil {
		quantity, _ := strconv.Atoi(m[1])
		return quantity
	}
	return 0
}

func extractImageURL(doc *goquery.Document) string {
	if src, ok := doc.Find("img#landingImage").First().Attr("src"); ok {
		if !strings.Contains(src, "data:image") {
			return src
		}
	}
	if src, ok := doc.Find("img[data-a-image-name='landingImage']").First().Attr("src"); ok {
		return src
	}
	return ""
}

func extractImages(doc *goquery.Document) []string {
	seen := map[string]struct{}{}
	var images []string
	add := func(src string) {
		if src == "" || strings.Contains(src, "data:image") {
			return
		}
		if _, dup := seen[src]; dup {
			return
		}
		seen[src] = struct{}{}
		images = append(images, src)
	}

	// The image gallery ships as JSON inside an inline script.
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		text := sel.Text()
		if !strings.Contains(text, "colorImages") {
			return
		}
		m := reColorImages.FindStringSubmatch(text)
		if m == nil {
			return
		}
		var entries []struct {
			HiRes string `json:"hiRes"`
			Large string `json:"large"`
		}
		if err := json.Unmarshal([]byte(m[1]), &entries); err != nil {
			return
		}
		for _, entry := range entries {
			if entry.HiRes != "" {
				add(entry.HiRes)
			} else if entry.Large != "" {
				add(entry.Large)
			}
		}
	})

	// Markup fallback for pages without the gallery script.
	doc.Find("img[class*='product-image']").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok {
			src = sel.AttrOr("data-src", "")
		}
		add(src)
	})

	return images
}

func extractDescription(doc *goquery.Document) string {
	return firstOf(doc,
		selectorText("#feature-bullets"),
		selectorText("#productDescription"),
	)
}

func extractFeatures(doc *goquery.Document) []string {
	var features []string
	doc.Find("#feature-bullets li").Each(func(_ int, sel *goquery.Selection) {
		if feature := collapse(sel.Text()); feature != "" {
			features = append(features, feature)
		}
	})
	return features
}

func extractRating(doc *goquery.Document) float64 {
	for _, selector := range []string{"#acrPopover", ".a-icon-alt"} {
		text := doc.Find(selector).First().Text()
		if m := reRatingOf5.FindStringSubmatch(text); m != nil {
			value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
			if err == nil {
				return value
			}
		}
	}
	return 0
}

func extractRatingCount(doc *goquery.Document) int {
	text := doc.Find("#acrCustomerReviewText").First().Text()
	digits := reDigits.ReplaceAllString(text, "")
	count, _ := strconv.Atoi(digits)
	return count
}

func extractReviewCount(pageText string) int {
	if m := reReviewCount.FindStringSubmatch(pageText); m != nil {
		count, _ := strconv.Atoi(m[1])
		return count
	}
	return 0
}

func extractCategories(doc *goquery.Document) []string {
	var categories []string
	doc.Find("#wayfinding-breadcrumbs_feature_div a").Each(func(_ int, sel *goquery.Selection) {
		if category := collapse(sel.Text()); category != "" {
			categories = append(categories, category)
		}
	})
	return categories
}

func extractBrand(doc *goquery.Document) string {
	brand := collapse(doc.Find("a#bylineInfo").First().Text())
	return strings.TrimSpace(reBrandPrefix.ReplaceAllString(brand, ""))
}

func extractSpecifications(doc *goquery.Document) map[string]string {
	specs := map[string]string{}
	doc.Find("table#productDetails_techSpec_section_1 tr").Each(func(_ int, row *goquery.Selection) {
		key := collapse(row.Find("th").First().Text())
		value := collapse(row.Find("td").First().Text())
		if key != "" && value != "" {
			specs[key] = value
		}
	})
	return specs
}

func extractSeller(doc *goquery.Document) string {
	return firstOf(doc,
		selectorText("#merchant-info"),
		selectorText(".seller"),
	)
}

// collapse trims and squeezes internal whitespace, which goquery text nodes
// carry over from the markup's indentation.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
