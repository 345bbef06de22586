package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTokenURL is the Zoom Server-to-Server OAuth token endpoint.
const DefaultTokenURL = "https://zoom.us/oauth/token"

// Credentials are the Server-to-Server OAuth account credentials.
type Credentials struct {
	AccountID    string
	ClientID     string
	ClientSecret string
}

// TokenProvider caches a bearer token and refreshes it lazily before expiry.
// All refreshes are serialized behind the mutex, so concurrent callers cannot
// trigger redundant refresh calls.
type TokenProvider struct {
	creds    Credentials
	tokenURL string
	buffer   time.Duration
	client   *http.Client
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// TokenProviderOption customizes a TokenProvider.
type TokenProviderOption func(*TokenProvider)

// WithTokenURL overrides the token endpoint (used by tests).
func WithTokenURL(url string) TokenProviderOption {
	return func(p *TokenProvider) { p.tokenURL = url }
}

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) TokenProviderOption {
	return func(p *TokenProvider) { p.now = now }
}

// NewTokenProvider creates a token provider. The buffer shortens the advertised
// token lifetime so a refresh happens before Zoom actually invalidates it.
func NewTokenProvider(creds Credentials, buffer time.Duration, timeout time.Duration, logger *zap.Logger, opts ...TokenProviderOption) (*TokenProvider, error) {
	if creds.AccountID == "" || creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("zoom: account id, client id and client secret are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &TokenProvider{
		creds:    creds,
		tokenURL: DefaultTokenURL,
		buffer:   buffer,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Token returns the cached token, refreshing it first if missing or expired.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && p.now().Before(p.expiresAt) {
		return p.token, nil
	}
	return p.refreshLocked(ctx)
}

// Refresh discards the cached token and mints a new one.
func (p *TokenProvider) Refresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshLocked(ctx)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (p *TokenProvider) refreshLocked(ctx context.Context) (string, error) {
	p.logger.Info("refreshing access token")

	url := fmt.Sprintf("%s?grant_type=account_credentials&account_id=%s", p.tokenURL, p.creds.AccountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(p.creds.ClientID, p.creds.ClientSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token request status %d: %s", resp.StatusCode, body)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	expiresIn := tok.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}
	p.token = tok.AccessToken
	p.expiresAt = p.now().Add(time.Duration(expiresIn)*time.Second - p.buffer)

	p.logger.Info("access token refreshed", zap.Time("expires_at", p.expiresAt))
	return p.token, nil
}
