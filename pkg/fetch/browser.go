package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	cu "github.com/Davincible/chromedp-undetected"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"pricewatch/pkg/models"
)

// Browser fetches pages through a hardened headless Chrome. Every fetch gets
// a fresh, exclusively-owned session that is torn down on all exit paths;
// sessions are never reused across attempts or products, so no cookies or
// fingerprints bleed through.
type Browser struct {
	headless bool
	timeout  time.Duration
	rng      *rand.Rand
	log      *zap.SugaredLogger
}

// NewBrowser configures a browser fetcher. The rand source drives user-agent
// selection and must not be shared unsynchronized across goroutines.
func NewBrowser(headless bool, timeout time.Duration, rng *rand.Rand, log *zap.SugaredLogger) *Browser {
	return &Browser{
		headless: headless,
		timeout:  timeout,
		rng:      rng,
		log:      log,
	}
}

func (b *Browser) session(ctx context.Context) (context.Context, context.CancelFunc, error) {
	opts := []cu.Option{
		cu.WithContext(ctx),
		cu.WithChromeFlags(
			chromedp.UserAgent(PickAgent(b.rng)),
			chromedp.WindowSize(1920, 1080),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("lang", "en-US,en;q=0.9"),
		),
	}
	if b.headless {
		opts = append(opts, cu.WithHeadless())
	}
	return cu.New(cu.NewConfig(opts...))
}

// Fetch navigates to the URL, waits for the page root, scrolls halfway to
// trigger lazy content and returns the rendered markup. Challenge pages fail
// with ErrCaptchaDetected; everything that keeps the page from reaching a
// ready state is normalized to ErrFetchTimeout.
func (b *Browser) Fetch(ctx context.Context, url string) (string, error) {
	sess, cancel, err := b.session(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: browser session: %v", models.ErrFetchTimeout, err)
	}
	defer cancel()

	runCtx, cancelRun := context.WithTimeout(sess, b.timeout)
	defer cancelRun()

	b.log.Debugw("navigating", "url", url)

	var html string
	err = chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight/2);`, nil),
		chromedp.Sleep(time.Second),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrFetchTimeout, err)
	}

	if BotChallenge(html) {
		return "", fmt.Errorf("%w: challenge page served for %s", models.ErrCaptchaDetected, url)
	}

	return html, nil
}

// Expand follows a shortened link's redirect chain in a throwaway session
// and returns the final location.
func (b *Browser) Expand(ctx context.Context, shortURL string) (string, error) {
	sess, cancel, err := b.session(ctx)
	if err != nil {
		return "", fmt.Errorf("browser session: %w", err)
	}
	defer cancel()

	runCtx, cancelRun := context.WithTimeout(sess, b.timeout)
	defer cancelRun()

	var finalURL string
	err = chromedp.Run(runCtx,
		chromedp.Navigate(shortURL),
		chromedp.Sleep(2*time.Second),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		return "", err
	}
	return finalURL, nil
}
