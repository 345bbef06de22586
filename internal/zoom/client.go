package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Zoom REST API root.
const DefaultBaseURL = "https://api.zoom.us/v2"

// TokenSource supplies bearer tokens and forced refreshes.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// ClientConfig tunes retry and pacing behavior of the API client.
type ClientConfig struct {
	BaseURL           string
	Retries           int
	RateLimitDelay    time.Duration // minimum spacing between requests
	RetryDelay        time.Duration // between failed attempts
	RateLimitSleep    time.Duration // after a 429
	TokenRefreshSleep time.Duration // after a 401-triggered refresh
	RequestTimeout    time.Duration
}

// Client issues paginated GET requests against the Zoom API with rate limiting,
// fixed-delay retry and 401/429 handling.
type Client struct {
	cfg     ClientConfig
	tokens  TokenSource
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration)
}

// NewClient creates an API client.
func NewClient(cfg ClientConfig, tokens TokenSource, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.RateLimitDelay
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &Client{
		cfg:     cfg,
		tokens:  tokens,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Get performs a paced GET against path with query params and returns the raw
// JSON body. A nil body with nil error means expected absence (phone endpoints
// answering 400/404 for unlicensed users). Exhausting the retry budget returns
// an error; callers treat it as "skip this user".
func (c *Client) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	reqURL := c.cfg.BaseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.Retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		c.logger.Debug("api request", zap.String("url", reqURL), zap.Int("attempt", attempt+1))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request %s: %w", path, err)
			c.logger.Error("api request failed", zap.String("url", reqURL), zap.Error(err))
			c.sleep(ctx, c.cfg.RetryDelay)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				lastErr = fmt.Errorf("read response: %w", readErr)
				c.sleep(ctx, c.cfg.RetryDelay)
				continue
			}
			return body, nil

		case resp.StatusCode == http.StatusUnauthorized:
			if attempt == c.cfg.Retries-1 {
				c.logger.Error("final 401 for request, user may not have permissions", zap.String("url", reqURL))
				return nil, fmt.Errorf("request %s: unauthorized after %d attempts", path, c.cfg.Retries)
			}
			c.logger.Warn("401 unauthorized, forcing token refresh", zap.String("url", reqURL))
			token, err = c.tokens.Refresh(ctx)
			if err != nil {
				return nil, fmt.Errorf("refresh token: %w", err)
			}
			c.sleep(ctx, c.cfg.TokenRefreshSleep)

		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("rate limited, backing off", zap.Duration("sleep", c.cfg.RateLimitSleep))
			lastErr = fmt.Errorf("request %s: rate limited", path)
			c.sleep(ctx, c.cfg.RateLimitSleep)

		case isPhonePath(path) && (resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound):
			// Users without a phone license answer 400/404 here; not an error.
			c.logger.Debug("phone endpoint has no data for user",
				zap.String("url", reqURL), zap.Int("status", resp.StatusCode))
			return nil, nil

		default:
			lastErr = fmt.Errorf("request %s: status %d", path, resp.StatusCode)
			c.logger.Error("api error",
				zap.String("url", reqURL),
				zap.Int("status", resp.StatusCode),
				zap.ByteString("body", truncate(body, 512)))
			c.sleep(ctx, c.cfg.RetryDelay)
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("request %s: retries exhausted", path)
	}
	return nil, lastErr
}

func isPhonePath(path string) bool {
	return strings.Contains(path, "/phone/")
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
