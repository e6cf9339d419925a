package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a structured logger. Production gets JSON on stdout, anything
// else gets the colored development encoder.
func New(env string) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.Encoding = "json"
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

// NewWithDefaults builds a logger from the APP_ENV variable, falling back to
// a no-op logger if construction fails.
func NewWithDefaults() *zap.Logger {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	log, err := New(env)
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// Deduper collapses bursts of identical log messages into a single line with
// a repeat count. Useful for the monitor loop, which otherwise emits the same
// cache-hit or skip message once per product.
type Deduper struct {
	log        *zap.SugaredLogger
	mu         sync.Mutex
	lastMsg    string
	count      int
	flushDelay time.Duration
	timer      *time.Timer
}

// NewDeduper wraps the given logger with a 2s flush window.
func NewDeduper(log *zap.SugaredLogger) *Deduper {
	return &Deduper{log: log, flushDelay: 2 * time.Second}
}

func (d *Deduper) flush() {
	if d.count == 0 {
		return
	}
	if d.count == 1 {
		d.log.Info(d.lastMsg)
	} else {
		d.log.Infof("%s (%d)", d.lastMsg, d.count)
	}
	d.count = 0
	d.lastMsg = ""
}

// Printf logs the formatted message, deduplicating consecutive repeats.
func (d *Deduper) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	d.mu.Lock()
	defer d.mu.Unlock()

	if msg == d.lastMsg {
		d.count++
		if d.timer != nil {
			d.timer.Stop()
		}
		d.timer = time.AfterFunc(d.flushDelay, func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.flush()
		})
		return
	}

	d.flush()
	d.lastMsg = msg
	d.count = 1
	d.timer = time.AfterFunc(d.flushDelay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.flush()
	})
}
