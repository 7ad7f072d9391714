package base

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"go.uber.org/zap"
)

// SeleniumConfig tunes the ChromeDriver session.
type SeleniumConfig struct {
	DriverPath  string
	PageTimeout time.Duration
	SettleDelay time.Duration
}

const maskScript = `
	Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
	window.chrome = {runtime: {}};
`

// SeleniumSession drives one ChromeDriver for a whole invocation. WebDriver
// sessions handle a single page at a time, so Render calls are serialized.
type SeleniumSession struct {
	mu      sync.Mutex
	ports   *PortManager
	port    int
	service *selenium.Service
	driver  selenium.WebDriver
	cfg     SeleniumConfig
	logger  *zap.Logger
	closed  bool
}

// AcquireSelenium starts ChromeDriver on a port taken from ports and opens a
// WebDriver session. The caller must Close it to release the port.
func AcquireSelenium(cfg SeleniumConfig, ports *PortManager, logger *zap.Logger) (*SeleniumSession, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}

	port, err := ports.GetPort()
	if err != nil {
		return nil, fmt.Errorf("port error: %w", err)
	}

	service, err := selenium.NewChromeDriverService(cfg.DriverPath, port)
	if err != nil {
		ports.ReleasePort(port)
		return nil, fmt.Errorf("error starting Chrome driver service: %w", err)
	}

	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{
		Args: []string{
			"--headless=new",
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
			"--disable-extensions",
			"--disable-gpu",
			"--window-size=1920,1080",
			fmt.Sprintf("--user-agent=%s", BrowserUserAgent),
		},
		ExcludeSwitches: []string{"enable-automation"},
		Prefs: map[string]interface{}{
			"profile.default_content_setting_values.notifications": 2,
		},
	})

	driver, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d/wd/hub", port))
	if err != nil {
		service.Stop()
		ports.ReleasePort(port)
		return nil, fmt.Errorf("error creating WebDriver: %w", err)
	}
	if err := driver.SetPageLoadTimeout(cfg.PageTimeout); err != nil {
		logger.Warn("could not set page load timeout", zap.Error(err))
	}

	logger.Info("selenium session acquired", zap.Int("port", port))
	return &SeleniumSession{
		ports:   ports,
		port:    port,
		service: service,
		driver:  driver,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Render navigates the session to url and returns the page source.
func (s *SeleniumSession) Render(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("selenium session closed")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := s.driver.Get(url); err != nil {
		return "", fmt.Errorf("navigation error: %w", err)
	}
	if _, err := s.driver.ExecuteScript(maskScript, nil); err != nil {
		s.logger.Debug("mask script failed", zap.Error(err))
	}

	if s.cfg.SettleDelay > 0 {
		select {
		case <-time.After(s.cfg.SettleDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	html, err := s.driver.PageSource()
	if err != nil {
		return "", fmt.Errorf("page source error: %w", err)
	}
	return html, nil
}

// Close quits the browser, stops ChromeDriver and returns the port.
func (s *SeleniumSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	defer s.ports.ReleasePort(s.port)

	quitErr := s.driver.Quit()
	stopErr := s.service.Stop()
	s.logger.Info("selenium session released", zap.Int("port", s.port))
	if quitErr != nil {
		return fmt.Errorf("quit webdriver: %w", quitErr)
	}
	if stopErr != nil {
		return fmt.Errorf("stop chromedriver: %w", stopErr)
	}
	return nil
}
