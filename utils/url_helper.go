package utils

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var shortLinkHosts = []string{
	"amzn.to", "amzn.in", "a.co", "fkrt.it", "fkrt.cc", "myntr.it",
	"s.click.aliexpress.com", "a.aliexpress.com", "bit.ly", "tinyurl.com",
}

// IsShortLink reports whether rawURL points at a known link shortener.
func IsShortLink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, h := range shortLinkHosts {
		if host == h {
			return true
		}
	}
	return false
}

// ResolveShortenedURL follows redirects to find the final URL. On failure the
// input is returned together with the error.
func ResolveShortenedURL(ctx context.Context, rawURL string) (string, error) {
	client := &http.Client{Timeout: 15 * time.Second}

	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return rawURL, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

		resp, err := client.Do(req)
		if err != nil {
			if method == http.MethodGet {
				return rawURL, err
			}
			continue
		}
		resp.Body.Close()
		// Some shorteners reject HEAD; retry with GET
		if resp.StatusCode != http.StatusOK && method == http.MethodHead {
			continue
		}
		return resp.Request.URL.String(), nil
	}
	return rawURL, nil
}
