package base

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrBlocked is returned when every strategy produced a block page or a
// document that failed the readiness check.
var ErrBlocked = errors.New("page blocked or incomplete")

// NewHTTPClient returns the client used for plain page fetches. HTTP/2 is
// disabled because several storefronts fingerprint it.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			ForceAttemptHTTP2:     false,
			TLSNextProto:          make(map[string]func(string, *tls.Conn) http.RoundTripper),
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Fetcher loads product pages. It tries a plain HTTP request first and
// falls back to the invocation's renderer when the response is blocked or
// not ready.
type Fetcher struct {
	client   *http.Client
	renderer Renderer
	logger   *zap.Logger
}

// NewFetcher creates a fetcher. renderer may be nil, in which case only
// plain HTTP is used.
func NewFetcher(client *http.Client, renderer Renderer, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{client: client, renderer: renderer, logger: logger}
}

// Fetch returns the parsed page at url. ready is the adapter's check that the
// document holds the product; nil accepts any page that is not a block page.
func (f *Fetcher) Fetch(ctx context.Context, url string, ready func(*goquery.Document) bool) (*goquery.Document, error) {
	accept := func(doc *goquery.Document) bool {
		if ready == nil {
			return isValidDocument(doc)
		}
		return !isBlockPage(doc) && ready(doc)
	}

	// Strategy 1: HTTP client (fastest)
	doc, httpErr := f.FetchDocumentHTTP(ctx, url)
	if httpErr == nil {
		if accept(doc) {
			f.logger.Debug("http fetch succeeded", zap.String("url", url))
			return doc, nil
		}
		httpErr = ErrBlocked
	}
	f.logger.Debug("http fetch unusable", zap.String("url", url), zap.Error(httpErr))

	if f.renderer == nil {
		return nil, fmt.Errorf("fetch %s: %w", url, httpErr)
	}

	// Strategy 2: shared browser
	html, err := f.renderer.Render(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: http: %v; browser: %w", url, httpErr, err)
	}
	doc, err = goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered page %s: %w", url, err)
	}
	if !accept(doc) {
		return nil, fmt.Errorf("fetch %s: browser: %w", url, ErrBlocked)
	}
	f.logger.Debug("browser fetch succeeded", zap.String("url", url))
	return doc, nil
}

func isBlockPage(doc *goquery.Document) bool {
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").Text()))
	return strings.Contains(title, "robot check") ||
		strings.Contains(title, "captcha") ||
		strings.Contains(title, "access denied")
}

func isValidDocument(doc *goquery.Document) bool {
	if isBlockPage(doc) {
		return false
	}
	// Shells of client-rendered pages carry almost no text
	return len(strings.TrimSpace(doc.Find("body").Text())) > 200
}

// FetchDocumentHTTP fetches the URL and returns a GoQuery document via standard HTTP
func (f *Fetcher) FetchDocumentHTTP(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	// Common headers to mimic a real browser
	req.Header.Set("User-Agent", BrowserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Ch-Ua", `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`)
	req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
	req.Header.Set("Sec-Ch-Ua-Platform", `"macOS"`)
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Sec-Fetch-User", "?1")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code error: %d %s", res.StatusCode, res.Status)
	}

	return goquery.NewDocumentFromReader(res.Body)
}
