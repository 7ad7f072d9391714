package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ImageUserAgent identifies the pipeline to image hosts.
const ImageUserAgent = "Mozilla/5.0 (compatible; ProductSourcingBot/1.0; image reprocessing)"

// NewDownloadClient returns the client used for image downloads.
func NewDownloadClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// Download fetches url and returns at most maxBytes of its body. A larger
// body is an error rather than a silently truncated image.
func Download(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", ImageUserAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("bad status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(body)) > maxBytes {
		return nil, "", fmt.Errorf("image larger than %d bytes", maxBytes)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
