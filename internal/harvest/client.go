// Package harvest pulls paginated datasets from public registries.
package harvest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/prospect/internal/ratelimit"
	"github.com/you/prospect/internal/retry"
)

var (
	// ErrRateLimited signals a 429; the limiter has already slept out
	// the server-imposed delay by the time this is returned.
	ErrRateLimited = errors.New("harvest: rate limited")

	// ErrBadRequest signals a hard 400. After at least one successful
	// page this is the pagination ceiling, not a failure.
	ErrBadRequest = errors.New("harvest: bad request")
)

const (
	maxRetries   = 3
	retryBase    = 2 * time.Second
	fetchTimeout = 30 * time.Second
)

// Client is the shared transport for one external registry. A single
// instance per service serializes its pacing across concurrent jobs.
type Client struct {
	http    *http.Client
	limiter *ratelimit.Limiter
	log     *zap.Logger
}

func NewClient(limiter *ratelimit.Limiter, log *zap.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: fetchTimeout},
		limiter: limiter,
		log:     log,
	}
}

// getJSON performs one paced GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	u := rawURL
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		delay := retryAfter(resp)
		c.log.Warn("rate limited", zap.String("url", rawURL), zap.Duration("retry_after", delay))
		if err := c.limiter.Backoff(ctx, delay); err != nil {
			return err
		}
		return ErrRateLimited
	case resp.StatusCode == http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Wrapf(ErrBadRequest, "%s", string(body))
	case resp.StatusCode >= 500:
		return errors.Errorf("server error %d from %s", resp.StatusCode, rawURL)
	case resp.StatusCode != http.StatusOK:
		return errors.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// GetPage wraps getJSON with the shared retry policy: 429 and 5xx are
// retried, a hard 400 stops immediately.
func (c *Client) GetPage(ctx context.Context, op, rawURL string, query url.Values, out any) error {
	return retry.Do(ctx, op, maxRetries, retryBase, func() error {
		err := c.getJSON(ctx, rawURL, query, out)
		if errors.Is(err, ErrBadRequest) {
			return retry.Permanent(err)
		}
		return err
	})
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
