package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"shopvision/internal/config"
	"shopvision/pkg/utils"
)

// Fetcher performs paced GET requests for one source and maps transport and
// status failures onto adapter error kinds.
type Fetcher struct {
	client       *http.Client
	limiter      *rate.Limiter
	helper       *utils.HTTPHelper
	source       string
	bufferSizeKb int
}

// NewFetcher creates a fetcher for src using the shared HTTP settings.
func NewFetcher(src config.SourceConfig, httpCfg config.HTTPConfig) *Fetcher {
	limit := rate.Inf
	if src.RatePerSec > 0 {
		limit = rate.Limit(src.RatePerSec)
	}

	burst := src.Burst
	if burst < 1 {
		burst = 1
	}

	bufferSizeKb := httpCfg.BufferSizeKb
	if bufferSizeKb < 1 {
		bufferSizeKb = 1024
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: src.Timeout(),
		},
		limiter:      rate.NewLimiter(limit, burst),
		helper:       utils.NewHTTPHelper(httpCfg.UserAgent),
		source:       src.Name,
		bufferSizeKb: bufferSizeKb,
	}
}

// Get fetches url and returns the body of a 200 response.
func (f *Fetcher) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		// rate.Limiter reports a wait that would outlive the deadline without wrapping ctx.Err().
		return nil, NewAdapterError(f.source, KindTimeout, fmt.Errorf("waiting for rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, NewAdapterError(f.source, KindUnavailable, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header = f.helper.BuildHeaders(headers)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, Classify(f.source, fmt.Errorf("request failed: %w", err))
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		ae := NewAdapterError(f.source, KindRateLimited, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode))
		ae.RetryAfter = parseRetryAfter(resp.Header, time.Now())

		return nil, ae
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewAdapterError(f.source, KindUnavailable, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode))
	}

	// bufferSizeKb is in KB, convert to bytes
	limit := int64(f.bufferSizeKb) * 1024

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, Classify(f.source, fmt.Errorf("failed to read response body: %w", err))
	}

	// A truncated page would parse into a silently partial result.
	if int64(len(body)) > limit {
		return nil, NewAdapterError(f.source, KindParseFailure, fmt.Errorf("%w: %d KB", ErrBodyTooLarge, f.bufferSizeKb))
	}

	return body, nil
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}

	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}

	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}

	return 0
}
