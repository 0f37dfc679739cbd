package commands

import (
	"github.com/spf13/viper"

	"github.com/chapterscout/chapterscout/internal/logger"
	"github.com/chapterscout/chapterscout/pkg/config"
	"github.com/chapterscout/chapterscout/pkg/orchestrator"
	"github.com/chapterscout/chapterscout/pkg/profile"
	"github.com/chapterscout/chapterscout/pkg/session"
	"github.com/chapterscout/chapterscout/pkg/strategy/browser"
)

// loadConfig merges the library defaults with anything bound into viper
// (config file, env vars, flags) and validates the result.
func loadConfig() (config.Config, error) {
	cfg := config.Default()

	if viper.IsSet("browser.headless") {
		cfg.Browser.Headless = viper.GetBool("browser.headless")
	}
	if viper.IsSet("request.timeout_sec") {
		cfg.Request.TimeoutSec = viper.GetInt("request.timeout_sec")
	}
	if viper.IsSet("request.min_delay_sec") {
		cfg.Request.MinDelaySec = viper.GetInt("request.min_delay_sec")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// buildSession constructs the shared HTTP session from cfg.
func buildSession(cfg config.Config) *session.Session {
	sessCfg := session.DefaultConfig()
	sessCfg.Timeout = cfg.RequestTimeout()
	sessCfg.MinInterval = cfg.MinDelay()
	return session.New(sessCfg)
}

// buildBrowser starts the headless browser driver used by the browser
// automation strategy and the chapter extractor's render fallback. The
// caller is responsible for Close()ing the result.
func buildBrowser(cfg config.Config) (*browser.Browser, error) {
	browserCfg := browser.DefaultConfig()
	browserCfg.NavigateTimeout = cfg.NavTimeout()
	b, err := browser.New(browserCfg)
	if err != nil {
		logger.Warn("browser automation unavailable, continuing without it", "error", err)
		return nil, nil
	}
	return b, nil
}

// buildOrchestrator wires a session, browser, and an in-process profile
// into an Orchestrator. The CLI keeps profile state only for the process
// lifetime; a long-running caller embedding this module as a library
// would supply its own durable profile.Profile instead.
func buildOrchestrator(sess *session.Session, browserDriver *browser.Browser) *orchestrator.Orchestrator {
	return orchestrator.New(sess, browserDriver, profile.NewInMemoryProfile())
}
