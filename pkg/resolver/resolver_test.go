package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pricewatch/pkg/models"
)

type fakeExpander struct {
	result string
	err    error
	calls  int
}

func (f *fakeExpander) Expand(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.result, f.err
}

func testLog() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestMarketplaceFromURL(t *testing.T) {
	tests := []struct {
		url         string
		marketplace models.Marketplace
		currency    string
	}{
		{"https://www.amazon.com/dp/B08N5WRWNW", models.MarketplaceUS, "USD"},
		{"https://www.amazon.fr/dp/B08N5WRWNW", models.MarketplaceFR, "EUR"},
		{"https://www.amazon.de/dp/B08N5WRWNW", models.MarketplaceDE, "EUR"},
		{"https://www.amazon.co.uk/dp/B08N5WRWNW", models.MarketplaceUK, "GBP"},
		{"https://www.amazon.it/dp/B08N5WRWNW", models.MarketplaceIT, "EUR"},
		{"https://www.amazon.es/dp/B08N5WRWNW", models.MarketplaceES, "EUR"},
		{"https://www.amazon.com.br/dp/B08N5WRWNW", models.MarketplaceBR, "BRL"},
		{"https://www.amazon.in/dp/B08N5WRWNW", models.MarketplaceIN, "INR"},
		{"https://www.amazon.ca/dp/B08N5WRWNW", models.MarketplaceCA, "CAD"},
		{"https://amzn.eu/d/B08N5WRWNW", models.MarketplaceEU, "EUR"},
		{"https://m.amazon.de/dp/B08N5WRWNW", models.MarketplaceDE, "EUR"},
		{"https://shop.example.com/dp/B08N5WRWNW", models.MarketplaceUS, "USD"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			marketplace := MarketplaceFromURL(tt.url)
			assert.Equal(t, tt.marketplace, marketplace)
			assert.Equal(t, tt.currency, marketplace.Currency())
		})
	}
}

func TestExtractASIN(t *testing.T) {
	tests := []struct {
		name string
		url  string
		asin string
	}{
		{"dp path", "https://www.amazon.com/dp/B08N5WRWNW", "B08N5WRWNW"},
		{"dp with slug", "https://www.amazon.fr/Some-Product-Name/dp/B08N5WRWNW/ref=sr_1_1", "B08N5WRWNW"},
		{"product path", "https://www.amazon.com/product/B000000001", "B000000001"},
		{"gp product path", "https://www.amazon.de/gp/product/B012345678", "B012345678"},
		{"gp aw d path", "https://www.amazon.co.uk/gp/aw/d/B087654321", "B087654321"},
		{"aw d path", "https://www.amazon.it/aw/d/B011112222", "B011112222"},
		{"short d path", "https://amzn.eu/d/B033344455", "B033344455"},
		{"no asin", "https://www.amazon.com/gp/bestsellers", ""},
		{"lowercase not an asin", "https://amzn.eu/d/bvp7pe1xyz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.asin, ExtractASIN(tt.url))
		})
	}
}

func TestResolveBuildsCanonicalURL(t *testing.T) {
	r := New(nil, testLog())

	resolved, err := r.Resolve(context.Background(),
		"https://www.amazon.fr/Echo-Dot-5e-generation/dp/B09B8X9RGM/ref=sr_1_1?keywords=echo")
	require.NoError(t, err)

	assert.Equal(t, "B09B8X9RGM", resolved.ASIN)
	assert.Equal(t, models.MarketplaceFR, resolved.Marketplace)
	assert.Equal(t, "EUR", resolved.Currency)
	assert.Equal(t, "https://www.amazon.fr/dp/B09B8X9RGM", resolved.CanonicalURL)
}

func TestResolveIsIdempotent(t *testing.T) {
	r := New(nil, testLog())

	first, err := r.Resolve(context.Background(), "https://www.amazon.de/dp/B08N5WRWNW")
	require.NoError(t, err)

	second, err := r.Resolve(context.Background(), first.CanonicalURL)
	require.NoError(t, err)

	assert.Equal(t, first.CanonicalURL, second.CanonicalURL)
	assert.Equal(t, first.ASIN, second.ASIN)
	assert.Equal(t, first.Marketplace, second.Marketplace)
}

func TestResolveNoASINIsFatal(t *testing.T) {
	r := New(nil, testLog())

	_, err := r.Resolve(context.Background(), "https://www.amazon.com/gp/bestsellers")
	require.Error(t, err)

	var resErr *models.ResolutionError
	assert.True(t, errors.As(err, &resErr))
	assert.False(t, models.Retryable(err))
}

func TestResolveExpandsShortLink(t *testing.T) {
	expander := &fakeExpander{result: "https://www.amazon.fr/dp/B09B8X9RGM"}
	r := New(expander, testLog())

	resolved, err := r.Resolve(context.Background(), "https://amzn.eu/d/bvp7pE1")
	require.NoError(t, err)

	assert.Equal(t, 1, expander.calls)
	assert.Equal(t, "B09B8X9RGM", resolved.ASIN)
	// Marketplace is re-derived from the expanded URL, not the short host.
	assert.Equal(t, models.MarketplaceFR, resolved.Marketplace)
	assert.Equal(t, "https://www.amazon.fr/dp/B09B8X9RGM", resolved.CanonicalURL)
}

func TestResolveExpansionFailureIsNonFatal(t *testing.T) {
	expander := &fakeExpander{err: errors.New("navigation failed")}
	r := New(expander, testLog())

	// The short URL itself carries an ASIN-shaped segment, so resolution
	// still succeeds against the original URL.
	resolved, err := r.Resolve(context.Background(), "https://amzn.eu/d/B033344455")
	require.NoError(t, err)

	assert.Equal(t, "B033344455", resolved.ASIN)
	assert.Equal(t, models.MarketplaceEU, resolved.Marketplace)
	assert.Equal(t, "EUR", resolved.Currency)
	// No base URL is known for the shortener host; the default storefront
	// hosts the canonical form until a fetch reveals the real marketplace.
	assert.Equal(t, "https://www.amazon.com/dp/B033344455", resolved.CanonicalURL)
}

func TestResolveShortLinkWithoutASINFails(t *testing.T) {
	expander := &fakeExpander{err: errors.New("browser unavailable")}
	r := New(expander, testLog())

	_, err := r.Resolve(context.Background(), "https://amzn.eu/d/bvp7pE1")

	var resErr *models.ResolutionError
	assert.True(t, errors.As(err, &resErr))
}
