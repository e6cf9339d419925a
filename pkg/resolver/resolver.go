package resolver

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"pricewatch/pkg/models"

	"go.uber.org/zap"
)

// Expander follows a shortened link's redirect chain and returns the final
// destination URL. The browser fetcher implements this.
type Expander interface {
	Expand(ctx context.Context, shortURL string) (string, error)
}

// Resolved is the canonical form of a user-supplied product URL.
type Resolved struct {
	ASIN         string
	Marketplace  models.Marketplace
	Currency     string
	CanonicalURL string
	InputURL     string
}

// asinPatterns is the ordered list of path shapes an ASIN can hide in.
// The first match wins; /dp/ is by far the most common.
var asinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/dp/([A-Z0-9]{10})`),
	regexp.MustCompile(`/product/([A-Z0-9]{10})`),
	regexp.MustCompile(`/gp/product/([A-Z0-9]{10})`),
	regexp.MustCompile(`/gp/aw/d/([A-Z0-9]{10})`),
	regexp.MustCompile(`/aw/d/([A-Z0-9]{10})`),
	regexp.MustCompile(`/d/([A-Z0-9]{10})`),
}

// marketplaceHosts maps host substrings to marketplace codes. Order matters:
// country-level domains share fragments with each other and with the
// default, so amazon.com.br must be tested before anything falls through to
// US, and amzn.eu has no country of its own.
var marketplaceHosts = []struct {
	fragments   []string
	marketplace models.Marketplace
}{
	{[]string{"amazon.fr", "amzn.fr"}, models.MarketplaceFR},
	{[]string{"amazon.de", "amzn.de"}, models.MarketplaceDE},
	{[]string{"amazon.co.uk", "amzn.co.uk"}, models.MarketplaceUK},
	{[]string{"amazon.it", "amzn.it"}, models.MarketplaceIT},
	{[]string{"amazon.es", "amzn.es"}, models.MarketplaceES},
	{[]string{"amzn.eu"}, models.MarketplaceEU},
	{[]string{"amazon.com.br", "amzn.com.br"}, models.MarketplaceBR},
	{[]string{"amazon.in", "amzn.in"}, models.MarketplaceIN},
	{[]string{"amazon.ca", "amzn.ca"}, models.MarketplaceCA},
}

// baseURLs maps host substrings to the marketplace base URL used when
// rebuilding the canonical /dp/ form. amazon.com.br sits before amazon.com
// on purpose. Shortened hosts are absent: a short link that could not be
// expanded canonicalizes against the default storefront.
var baseURLs = []struct {
	fragment string
	base     string
}{
	{"amazon.fr", "https://www.amazon.fr"},
	{"amazon.de", "https://www.amazon.de"},
	{"amazon.co.uk", "https://www.amazon.co.uk"},
	{"amazon.it", "https://www.amazon.it"},
	{"amazon.es", "https://www.amazon.es"},
	{"amazon.com.br", "https://www.amazon.com.br"},
	{"amazon.in", "https://www.amazon.in"},
	{"amazon.ca", "https://www.amazon.ca"},
	{"amazon.com", "https://www.amazon.com"},
}

var shortLinkHosts = []string{"amzn.to", "amzn.eu", "a.co"}

// Resolver canonicalizes raw product URLs.
type Resolver struct {
	expander Expander
	log      *zap.SugaredLogger
}

// New builds a resolver. The expander may be nil, in which case shortened
// links are canonicalized as-is (and usually fail ASIN extraction).
func New(expander Expander, log *zap.SugaredLogger) *Resolver {
	return &Resolver{expander: expander, log: log}
}

// Resolve turns a raw URL into its canonical {base}/dp/{asin} form and infers
// the marketplace and currency. Resolving an already-canonical URL is a
// no-op. A URL without a recognizable ASIN fails with *models.ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Resolved, error) {
	target := strings.TrimSpace(rawURL)

	if IsShortURL(target) && r.expander != nil {
		expanded, err := r.expander.Expand(ctx, target)
		if err != nil || expanded == "" {
			// Non-fatal: fall through with the original URL.
			r.log.Warnw("short URL expansion failed", "url", target, "error", err)
		} else {
			r.log.Debugw("short URL expanded", "from", target, "to", expanded)
			target = expanded
		}
	}

	asin := ExtractASIN(target)
	if asin == "" {
		return nil, &models.ResolutionError{URL: rawURL}
	}

	marketplace := MarketplaceFromURL(target)

	return &Resolved{
		ASIN:         asin,
		Marketplace:  marketplace,
		Currency:     marketplace.Currency(),
		CanonicalURL: fmt.Sprintf("%s/dp/%s", baseURLFor(target), asin),
		InputURL:     rawURL,
	}, nil
}

// ExtractASIN tests the known path patterns against the URL and returns the
// first captured identifier, or "" when none match.
func ExtractASIN(rawURL string) string {
	for _, pattern := range asinPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// MarketplaceFromURL infers the regional storefront from the URL's host.
// Unrecognized hosts default to US.
func MarketplaceFromURL(rawURL string) models.Marketplace {
	host := hostOf(rawURL)
	for _, entry := range marketplaceHosts {
		for _, fragment := range entry.fragments {
			if strings.Contains(host, fragment) {
				return entry.marketplace
			}
		}
	}
	return models.MarketplaceUS
}

// IsShortURL reports whether the URL points at a known link shortener.
func IsShortURL(rawURL string) bool {
	for _, host := range shortLinkHosts {
		if strings.Contains(rawURL, host) {
			return true
		}
	}
	return false
}

func baseURLFor(rawURL string) string {
	host := hostOf(rawURL)
	for _, entry := range baseURLs {
		if strings.Contains(host, entry.fragment) {
			return entry.base
		}
	}
	return "https://www.amazon.com"
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(rawURL)
	}
	// Mobile subdomains behave like the desktop site.
	return strings.Replace(strings.ToLower(parsed.Host), "m.amazon", "www.amazon", 1)
}
