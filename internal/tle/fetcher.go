package tle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lowfreq/meridian/internal/logging"
	"github.com/lowfreq/meridian/internal/metrics"
)

// maxBodyBytes bounds how much of a response we will buffer. Full catalogs
// run a few MB; anything near this limit is a broken or hostile source.
const maxBodyBytes = 50 << 20

// Fetcher retrieves raw TLE text from a remote source, retrying transient
// failures with exponential backoff.
type Fetcher struct {
	url      string
	maxTries int
	client   *http.Client
	logger   *logging.Logger
}

// NewFetcher builds a Fetcher for the given source URL. maxTries counts the
// first attempt, so maxTries=1 disables retries.
func NewFetcher(url string, timeout time.Duration, maxTries int, logger *logging.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxTries < 1 {
		maxTries = 1
	}
	return &Fetcher{
		url:      url,
		maxTries: maxTries,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string { return f.url }

// Fetch performs the HTTP GET. Network errors and 5xx responses are retried;
// 4xx responses and oversized bodies are not.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		data, err := f.fetchOnce(ctx)
		if err != nil {
			f.logger.Warnw("TLE fetch attempt failed", "attempt", attempt, "url", f.url, "error", err)
			return err
		}
		body = data
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(f.maxTries-1)), ctx))
	if err != nil {
		metrics.TLEFetchFailed()
		return nil, err
	}
	metrics.TLEFetchSucceeded()
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching TLE data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d from %s", resp.StatusCode, f.url)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, backoff.Permanent(fmt.Errorf("response exceeds %d byte limit", maxBodyBytes))
	}
	return body, nil
}
