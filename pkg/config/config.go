// Package config collects every configuration input named in the core's
// external-interface contract into one validated struct, so library
// callers have a single place to set defaults and cmd/chapterscout has a
// single place to bind flags and env vars onto.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// RequestConfig controls the HTTP session shared by every strategy and the
// chapter extractor's primary fetch path.
type RequestConfig struct {
	TimeoutSec  int `validate:"gte=1"`
	MinDelaySec int `validate:"gte=0"`
	MaxRetries  int `validate:"gte=0"`
}

// BrowserConfig controls the headless-browser automation strategy and the
// chapter extractor's render fallback.
type BrowserConfig struct {
	Headless         bool
	NavTimeoutSec    int `validate:"gte=1"`
	ScrollMaxIter    int `validate:"gte=0"`
	ScrollPatience   int `validate:"gte=0"`
	PaginationMaxPgs int `validate:"gte=0"`
}

// DetectorConfig controls the pagination/completeness detector.
type DetectorConfig struct {
	CommonLimits          []int
	CriticalLimit         int     `validate:"gte=1"`
	RangeCoverageThreshold float64 `validate:"gte=0,lte=1"`
}

// CleanerConfig controls the TTS text cleaner.
type CleanerConfig struct {
	PreserveEllipsis bool
}

// Config is the single configuration surface for the whole module.
type Config struct {
	Request  RequestConfig  `validate:"required"`
	Browser  BrowserConfig  `validate:"required"`
	Detector DetectorConfig `validate:"required"`
	Cleaner  CleanerConfig
}

// Default returns sensible defaults: 30s request timeout, 4s
// inter-request delay, 3 retries, headless browser with a 30s nav
// timeout, ~1000-iteration scroll loop with 30-iteration patience,
// 200-page pagination cap, the {20,25,30,40,50,100,200} common-limit set,
// a 55-URL critical signature, 0.8 range-coverage threshold, and ellipsis
// preservation on.
func Default() Config {
	return Config{
		Request: RequestConfig{
			TimeoutSec:  30,
			MinDelaySec: 4,
			MaxRetries:  3,
		},
		Browser: BrowserConfig{
			Headless:         true,
			NavTimeoutSec:    30,
			ScrollMaxIter:    1000,
			ScrollPatience:   30,
			PaginationMaxPgs: 200,
		},
		Detector: DetectorConfig{
			CommonLimits:          []int{20, 25, 30, 40, 50, 100, 200},
			CriticalLimit:         55,
			RangeCoverageThreshold: 0.8,
		},
		Cleaner: CleanerConfig{
			PreserveEllipsis: true,
		},
	}
}

// Validate checks every struct tag and rejects configs that would make a
// component misbehave (negative timeouts, an out-of-range threshold, etc.).
func (c Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RequestTimeout returns Request.TimeoutSec as a time.Duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Request.TimeoutSec) * time.Second
}

// MinDelay returns Request.MinDelaySec as a time.Duration.
func (c Config) MinDelay() time.Duration {
	return time.Duration(c.Request.MinDelaySec) * time.Second
}

// NavTimeout returns Browser.NavTimeoutSec as a time.Duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}
