// Package sentry reports CLI failures when SENTRY_DSN is set. Every function
// is a no-op otherwise.
package sentry

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config is read from the environment by ConfigFromEnv.
type Config struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
	Debug       bool
	// APIURL is attached to every event.
	APIURL string
}

// ConfigFromEnv reads SENTRY_DSN, SENTRY_ENVIRONMENT, SENTRY_TRACES_SAMPLE_RATE and SENTRY_DEBUG.
func ConfigFromEnv(release, apiURL string) Config {
	cfg := Config{
		DSN:         os.Getenv("SENTRY_DSN"),
		Environment: os.Getenv("SENTRY_ENVIRONMENT"),
		Release:     release,
		SampleRate:  1.0,
		Debug:       os.Getenv("SENTRY_DEBUG") == "true",
		APIURL:      apiURL,
	}
	if cfg.Environment == "" {
		cfg.Environment = "production"
	}
	if rate, err := strconv.ParseFloat(os.Getenv("SENTRY_TRACES_SAMPLE_RATE"), 64); err == nil {
		cfg.SampleRate = rate
	}
	return cfg
}

// Initialize sets up the global client. An empty DSN leaves reporting off.
func Initialize(cfg Config) error {
	if cfg.DSN == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		TracesSampleRate: cfg.SampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Extra == nil {
				event.Extra = map[string]interface{}{}
			}
			event.Extra["api_url"] = cfg.APIURL
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	return nil
}

func enabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// Flush waits for queued events.
func Flush(timeout time.Duration) {
	if enabled() {
		sentry.Flush(timeout)
	}
}

// CaptureError reports err with tags such as the command or run id.
func CaptureError(err error, tags map[string]string) {
	if err == nil || !enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// AddBreadcrumb records a step of a stream, e.g. a reconnect.
func AddBreadcrumb(category, message string, data map[string]interface{}) {
	if !enabled() {
		return
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WithTransaction runs fn inside a transaction named after the command.
func WithTransaction(ctx context.Context, name string, fn func(context.Context) error) error {
	if !enabled() {
		return fn(ctx)
	}

	span := sentry.StartTransaction(ctx, name)
	defer span.Finish()

	err := fn(span.Context())
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
	} else {
		span.Status = sentry.SpanStatusOK
	}
	return err
}

// Recover reports a panic and panics again.
func Recover(ctx context.Context) {
	if r := recover(); r != nil {
		if enabled() {
			sentry.CurrentHub().RecoverWithContext(ctx, r)
			sentry.Flush(2 * time.Second)
		}
		panic(r)
	}
}
