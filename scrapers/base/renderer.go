package base

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BrowserUserAgent is sent by every page fetch strategy.
const BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrPageTimeout is returned when a page does not finish loading in time.
var ErrPageTimeout = errors.New("page load timed out")

// Renderer loads pages in a real browser. One renderer serves a whole
// pipeline invocation and is safe for concurrent use.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Close() error
}

// RendererConfig selects and tunes the browser backend.
type RendererConfig struct {
	// Backend is "chromedp", "selenium" or "none".
	Backend          string
	RemoteURL        string
	ChromeDriverPath string
	SeleniumBasePort int
	PageTimeout      time.Duration
	SettleDelay      time.Duration
}

// AcquireRenderer starts the configured browser backend. It returns nil and
// no error for the "none" backend.
func AcquireRenderer(ctx context.Context, cfg RendererConfig, logger *zap.Logger) (Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(cfg.Backend) {
	case "", "chromedp":
		b, err := AcquireBrowser(ctx, BrowserConfig{
			RemoteURL:   cfg.RemoteURL,
			PageTimeout: cfg.PageTimeout,
			SettleDelay: cfg.SettleDelay,
		}, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "selenium":
		s, err := AcquireSelenium(SeleniumConfig{
			DriverPath:  cfg.ChromeDriverPath,
			PageTimeout: cfg.PageTimeout,
			SettleDelay: cfg.SettleDelay,
		}, SharedDriverPorts(cfg.SeleniumBasePort), logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown browser backend %q", cfg.Backend)
}

// WithRenderer acquires a renderer for the duration of fn and releases it
// when fn returns, including on error or panic. fn receives nil when the
// backend is "none".
func WithRenderer(ctx context.Context, cfg RendererConfig, logger *zap.Logger, fn func(Renderer) error) (err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r, err := AcquireRenderer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("acquire browser: %w", err)
	}
	if r != nil {
		defer func() {
			if cerr := r.Close(); cerr != nil {
				logger.Warn("browser release failed", zap.Error(cerr))
			}
		}()
	}
	return fn(r)
}
