package extract

import (
	"regexp"
	"strconv"
	"strings"

	"pricewatch/pkg/models"
)

var (
	reWhitespace  = regexp.MustCompile(`\s+`)
	reNonPriceRun = regexp.MustCompile(`[^\d.]`)
)

// ParsePrice converts a raw price fragment into a float, honoring the
// marketplace's number format. Comma-decimal locales read "1.234,56" as
// 1234.56; dot-decimal locales read "1,234.56" the same way. Unparsable
// input yields 0, never an error.
func ParsePrice(raw string, marketplace models.Marketplace) float64 {
	s := reWhitespace.ReplaceAllString(raw, "")
	s = strings.TrimRight(s, ",.")
	if s == "" {
		return 0
	}

	if marketplace.CommaDecimal() {
		if strings.Contains(s, ",") {
			// Dots are thousand separators, the comma is the decimal point.
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else if strings.Count(s, ".") > 1 {
			// No comma and several dots: all of them group thousands.
			s = strings.ReplaceAll(s, ".", "")
		}
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	s = reNonPriceRun.ReplaceAllString(s, "")
	if s == "" {
		return 0
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return value
}
