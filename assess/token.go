package assess

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// tokenTTL is how long an STS token stays valid. The service issues
// ten-minute tokens; refresh a little early so an in-flight request
// never carries an expired one.
const (
	tokenTTL         = 10 * time.Minute
	tokenEarlySlack  = 5 * time.Second
	tokenFetchWindow = 10 * time.Second
)

// TokenCache holds one bearer token and refreshes it through fetch
// when the cached value is stale. Safe for concurrent use.
type TokenCache struct {
	mu      sync.Mutex
	token   string
	expires time.Time
	fetch   func(ctx context.Context) (string, error)
	now     func() time.Time
}

func NewTokenCache(fetch func(ctx context.Context) (string, error)) *TokenCache {
	return &TokenCache{fetch: fetch, now: time.Now}
}

// Token returns a cached token, fetching a fresh one when the cached
// copy expires within tokenEarlySlack.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(tokenEarlySlack).Before(c.expires) {
		return c.token, nil
	}

	token, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expires = c.now().Add(tokenTTL)
	return token, nil
}

// Invalidate drops the cached token so the next Token call fetches.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expires = time.Time{}
	c.mu.Unlock()
}

// STSFetcher exchanges a subscription key for a short-lived bearer
// token at the region's token endpoint.
func STSFetcher(client *http.Client, region, key string) func(ctx context.Context) (string, error) {
	url := fmt.Sprintf("https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken", region)
	return func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, tokenFetchWindow)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			return "", fmt.Errorf("building token request: %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", key)

		resp, err := client.Do(req)
		if err != nil {
			return "", NewError(KindNetworkFailure, fmt.Errorf("token request: %w", err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", NewError(KindNetworkFailure, fmt.Errorf("reading token: %w", err))
		}
		if resp.StatusCode != http.StatusOK {
			return "", NewError(KindUpstreamError, fmt.Errorf("token endpoint returned %d", resp.StatusCode))
		}
		token := strings.TrimSpace(string(body))
		if token == "" {
			return "", NewError(KindUpstreamError, fmt.Errorf("token endpoint returned empty body"))
		}
		return token, nil
	}
}
