package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultRetries is the number of retries after the first attempt.
	DefaultRetries = 3
	// DefaultBackoff is multiplied by the attempt number between retries.
	DefaultBackoff = time.Second
	// DefaultUserAgent is the User-Agent header sent with requests.
	DefaultUserAgent = "leizi-formula"
	maxRedirects     = 10
)

// Downloader fetches release artifacts over HTTP into a cache directory.
type Downloader struct {
	client    *http.Client
	cacheDir  string
	userAgent string
	retries   int
	backoff   time.Duration
}

// NewDownloader creates a downloader. timeout bounds each request; zero
// leaves requests bounded only by the caller's context.
func NewDownloader(cacheDir string, timeout time.Duration) *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		cacheDir:  cacheDir,
		userAgent: DefaultUserAgent,
		retries:   DefaultRetries,
		backoff:   DefaultBackoff,
	}
}

// CachePath returns where url is cached for the named release.
func (d *Downloader) CachePath(name, version, url string) string {
	return filepath.Join(d.cacheDir, "downloads", name, version, filepath.Base(url))
}

// Fetch downloads url into the cache unless a non-empty copy is already
// there, and returns the cached path.
func (d *Downloader) Fetch(ctx context.Context, name, version, url string) (string, error) {
	path := d.CachePath(name, version, url)
	if fileExists(path) {
		return path, nil
	}
	if err := d.DownloadToFile(ctx, url, path); err != nil {
		return "", err
	}
	return path, nil
}

// DownloadToFile downloads url to destPath with linear backoff between
// retries. Client errors (4xx) are not retried.
func (d *Downloader) DownloadToFile(ctx context.Context, url, destPath string) error {
	var lastErr error

	for attempt := 0; attempt <= d.retries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * d.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := d.downloadOnce(ctx, url, destPath)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if se, ok := err.(*statusError); ok && se.code >= 400 && se.code < 500 {
			break
		}
	}

	return fmt.Errorf("download failed: %w", lastErr)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

func (d *Downloader) downloadOnce(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		tmp.Close()
		if !renamed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return fmt.Errorf("copy response body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	renamed = true
	return nil
}

// fileExists reports whether path is a non-empty regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}
