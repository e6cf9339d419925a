package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pricewatch/pkg/alerts"
	"pricewatch/pkg/cache"
	"pricewatch/pkg/config"
	"pricewatch/pkg/fetch"
	"pricewatch/pkg/logger"
	"pricewatch/pkg/models"
	"pricewatch/pkg/monitor"
	"pricewatch/pkg/resolver"
	"pricewatch/pkg/scrape"
	"pricewatch/pkg/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using process environment")
	}

	cfg := config.Load()

	zlog := logger.NewWithDefaults()
	defer zlog.Sync()
	log := zlog.Sugar()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if err := run(cfg, log, os.Args[1], os.Args[2:]); err != nil {
		log.Fatalw("command failed", "command", os.Args[1], "error", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  pricewatch check <url>                         scrape once and print the snapshot
  pricewatch track <url> [target] [alert-type]   save the product and optionally add an alert
  pricewatch monitor                             refresh tracked products until interrupted`)
}

func run(cfg *config.Config, log *zap.SugaredLogger, command string, args []string) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var fetcher fetch.Fetcher
	var expander resolver.Expander
	if cfg.UseBrowser {
		browser := fetch.NewBrowser(cfg.Headless, cfg.FetchTimeout, rng, log)
		fetcher, expander = browser, browser
	} else {
		client := fetch.NewClient(cfg.FetchTimeout, rng, log)
		fetcher, expander = client, client
	}

	snapshotCache, err := cache.New(cfg.CachePath, cfg.CacheTTL, log)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer snapshotCache.Close()

	pipeline := scrape.New(
		resolver.New(expander, log),
		fetcher,
		rng,
		log,
		scrape.WithCache(snapshotCache),
		scrape.WithMaxAttempts(cfg.MaxAttempts),
		scrape.WithBackoff(cfg.BackoffBase, cfg.BackoffJitter),
	)

	ctx := context.Background()

	switch command {
	case "check":
		if len(args) < 1 {
			usage()
			return fmt.Errorf("check needs a product URL")
		}
		return check(ctx, pipeline, args[0])

	case "track":
		if len(args) < 1 {
			usage()
			return fmt.Errorf("track needs a product URL")
		}
		return track(ctx, cfg, log, pipeline, args)

	case "monitor":
		return runMonitor(cfg, log, pipeline, rng)

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func check(ctx context.Context, pipeline *scrape.Pipeline, url string) error {
	snapshot, err := pipeline.Scrape(ctx, url)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snapshot)
}

func track(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, pipeline *scrape.Pipeline, args []string) error {
	st, err := store.Open(cfg.DatabasePath, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	snapshot, err := pipeline.Scrape(ctx, args[0])
	if err != nil {
		return err
	}

	productID, previousPrice, err := st.SaveProduct(ctx, snapshot)
	if err != nil {
		return err
	}

	if change := alerts.DetectPriceChange(previousPrice, snapshot.CurrentPrice, snapshot.Currency); change.Changed {
		if err := st.AppendPriceHistory(ctx, productID, snapshot.CurrentPrice, snapshot.CapturedAt); err != nil {
			return err
		}
	}

	log.Infow("product tracked", "id", productID, "asin", snapshot.ASIN, "title", snapshot.Title)

	if len(args) < 2 {
		return nil
	}

	targetPrice, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid target price %q: %w", args[1], err)
	}

	alertType := models.AlertPriceDrop
	if len(args) >= 3 {
		alertType, err = parseAlertType(args[2])
		if err != nil {
			return err
		}
	}

	email := os.Getenv("ALERT_EMAIL")
	if email == "" {
		email = "alerts@localhost"
	}
	userID, err := st.EnsureUser(ctx, email)
	if err != nil {
		return err
	}

	alertID, err := st.AddAlert(ctx, productID, userID, alertType, targetPrice)
	if err != nil {
		return err
	}

	log.Infow("alert created", "id", alertID, "type", alertType, "target", targetPrice)
	return nil
}

func runMonitor(cfg *config.Config, log *zap.SugaredLogger, pipeline *scrape.Pipeline, rng *rand.Rand) error {
	st, err := store.Open(cfg.DatabasePath, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	evaluator := alerts.New(st, logDispatcher{log: log}, log)
	mon := monitor.New(st, pipeline, evaluator, cfg.MonitorInterval, cfg.DelayMin, cfg.DelayMax, rng, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	mon.Start(ctx)
	return nil
}

func parseAlertType(raw string) (models.AlertType, error) {
	switch models.AlertType(strings.ToUpper(strings.TrimSpace(raw))) {
	case models.AlertPriceDrop:
		return models.AlertPriceDrop, nil
	case models.AlertPriceIncrease:
		return models.AlertPriceIncrease, nil
	case models.AlertStockAvailable:
		return models.AlertStockAvailable, nil
	}
	return "", fmt.Errorf("unknown alert type %q (want PRICE_DROP, PRICE_INCREASE or STOCK_AVAILABLE)", raw)
}

// logDispatcher stands in for the notification transport collaborators: it
// records the dispatch decision, which is all this core is responsible for.
type logDispatcher struct {
	log *zap.SugaredLogger
}

func (d logDispatcher) Dispatch(_ context.Context, rule models.AlertRule, prefs models.NotificationPrefs, ch models.Channel) error {
	d.log.Infow("dispatching notification",
		"alert", rule.ID,
		"channel", ch,
		"user", prefs.UserID,
		"type", rule.Type,
	)
	return nil
}
