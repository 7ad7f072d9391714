package base

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// BrowserConfig tunes the shared chromedp browser.
type BrowserConfig struct {
	// RemoteURL connects to an already running Chrome (ws://host:9222)
	// instead of launching one.
	RemoteURL   string
	PageTimeout time.Duration
	// SettleDelay gives client-rendered pages time to fill in after the
	// body is ready.
	SettleDelay time.Duration
}

var extraHeaders = network.Headers{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
}

// Browser is one headless Chrome process shared by every page load of an
// invocation. Each Render opens and closes its own tab.
type Browser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	cfg           BrowserConfig
	logger        *zap.Logger
}

// AcquireBrowser launches (or connects to) Chrome. The caller must Close it.
func AcquireBrowser(ctx context.Context, cfg BrowserConfig, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", "new"),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(1920, 1080),
			chromedp.UserAgent(BrowserUserAgent),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// An empty Run starts the browser process
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	logger.Info("browser acquired", zap.Bool("remote", cfg.RemoteURL != ""))
	return &Browser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		cfg:           cfg,
		logger:        logger,
	}, nil
}

// Render loads url in a new tab and returns the document HTML.
func (b *Browser) Render(ctx context.Context, url string) (string, error) {
	tabCtx, closeTab := chromedp.NewContext(b.browserCtx)
	defer closeTab()

	// Abandon the tab when the caller gives up
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	timeoutCtx, cancel := context.WithTimeout(tabCtx, b.cfg.PageTimeout)
	defer cancel()

	actions := []chromedp.Action{
		network.Enable(),
		network.SetExtraHTTPHeaders(extraHeaders),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if b.cfg.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(b.cfg.SettleDelay))
	}
	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %s", ErrPageTimeout, b.cfg.PageTimeout, url)
		}
		return "", fmt.Errorf("chromedp navigation error: %w", err)
	}
	return html, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (b *Browser) Close() error {
	b.browserCancel()
	b.allocCancel()
	b.logger.Info("browser released")
	return nil
}
