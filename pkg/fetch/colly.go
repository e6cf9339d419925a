package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"pricewatch/pkg/models"
)

// Client fetches pages over plain HTTP with colly. It sees only the initial
// server-rendered markup, which carries every field the extractor needs on
// most product pages, and is the fallback where no Chrome is available.
type Client struct {
	timeout time.Duration
	rng     *rand.Rand
	log     *zap.SugaredLogger

	// AllowedDomains restricts the collector; empty means unrestricted.
	// Left open so tests can point the client at a local server.
	AllowedDomains []string
}

// NewClient configures an HTTP fetcher.
func NewClient(timeout time.Duration, rng *rand.Rand, log *zap.SugaredLogger) *Client {
	return &Client{timeout: timeout, rng: rng, log: log}
}

func (c *Client) collector() *colly.Collector {
	col := colly.NewCollector(
		colly.UserAgent(PickAgent(c.rng)),
	)
	col.AllowedDomains = c.AllowedDomains
	col.SetRequestTimeout(c.timeout)
	col.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})
	return col
}

// Fetch downloads the page body. Upstream error responses are still scanned
// for challenge markup, since the site answers automated traffic with a 503
// captcha page.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrFetchTimeout, err)
	}

	col := c.collector()

	var html string
	col.OnResponse(func(r *colly.Response) {
		html = string(r.Body)
	})
	col.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			html = string(r.Body)
		}
	})

	err := col.Visit(url)

	if BotChallenge(html) {
		return "", fmt.Errorf("%w: challenge page served for %s", models.ErrCaptchaDetected, url)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrFetchTimeout, err)
	}
	if html == "" {
		return "", fmt.Errorf("%w: empty response from %s", models.ErrFetchTimeout, url)
	}

	return html, nil
}

// Expand resolves a shortened link by letting the HTTP client follow the
// redirect chain and reporting the final request URL.
func (c *Client) Expand(ctx context.Context, shortURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	col := c.collector()

	var finalURL string
	col.OnResponse(func(r *colly.Response) {
		finalURL = r.Request.URL.String()
	})

	if err := col.Visit(shortURL); err != nil {
		return "", err
	}
	if finalURL == "" {
		return "", fmt.Errorf("no destination found for %s", shortURL)
	}
	return finalURL, nil
}
