package assess

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"shuoba/log"
)

const (
	requestTimeout = 30 * time.Second

	maxRetries   = 3
	maxBackoff   = 5 * time.Second
	firstBackoff = 1 * time.Second
)

// Client submits utterances to the Azure Speech pronunciation
// assessment REST endpoint and normalizes the response.
type Client struct {
	traced  *TracedClient
	baseURL string
	key     string
	tokens  *TokenCache
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient builds a client for the given region. Exactly one of key
// or tokens must be usable; when both are set the subscription key is
// sent and the token cache is ignored.
func NewClient(region, key string) *Client {
	baseURL := fmt.Sprintf("https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1", region)
	return &Client{
		traced:  NewTracedClient(baseURL),
		baseURL: baseURL,
		key:     key,
		sleep:   sleepCtx,
	}
}

// NewClientWithTokens is like NewClient but authenticates with
// short-lived bearer tokens from the cache instead of a raw key.
func NewClientWithTokens(region string, tokens *TokenCache) *Client {
	c := NewClient(region, "")
	c.tokens = tokens
	return c
}

// SetBaseURL overrides the endpoint. Tests point this at a local server.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
	c.traced.apiURL = u
}

// SetSleep replaces the inter-retry wait. Tests install an instant one.
func (c *Client) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	c.sleep = fn
}

// Warm pre-opens the HTTPS connection to the assessment endpoint.
func (c *Client) Warm() { c.traced.Warm() }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// assessmentConfig is the Pronunciation-Assessment header payload.
type assessmentConfig struct {
	ReferenceText   string `json:"ReferenceText"`
	GradingSystem   string `json:"GradingSystem"`
	Granularity     string `json:"Granularity"`
	Dimension       string `json:"Dimension"`
	EnableMiscue    bool   `json:"EnableMiscue"`
	EnableProsody   bool   `json:"EnableProsodyAssessment"`
	PhonemeAlphabet string `json:"PhonemeAlphabet"`
	NBestPhonemeCnt int    `json:"NBestPhonemeCount"`
}

// Assess submits one canonical WAV utterance, retrying only on 429.
func (c *Client) Assess(ctx context.Context, wav []byte, referenceText, locale string) (*Result, error) {
	if c.key == "" && c.tokens == nil {
		return nil, &Error{Kind: KindMissingCredentials, Err: fmt.Errorf("no subscription key or token source configured")}
	}

	retried := false
	for attempt := 0; ; attempt++ {
		resp, err := c.submit(ctx, wav, referenceText, locale)
		if err != nil {
			// Transport failures are not retried; the audio is
			// still on hand and the learner can resubmit.
			return nil, &Error{Kind: KindNetworkFailure, Retried: retried, Err: err}
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRetries {
			retried = true
			delay := firstBackoff << attempt
			if delay > maxBackoff {
				delay = maxBackoff
			}
			log.Warnf("assessment rate limited, retrying in %v (attempt %d/%d)", delay, attempt+1, maxRetries)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, &Error{Kind: KindNetworkFailure, Retried: true, Err: err}
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &Error{Kind: KindRateLimited, Status: resp.StatusCode, Retried: retried,
				Err: fmt.Errorf("rate limited after %d retries", maxRetries)}
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &Error{Kind: KindUpstreamError, Status: resp.StatusCode, Retried: retried,
				Err: fmt.Errorf("assessment endpoint returned %d: %s", resp.StatusCode, truncate(resp.Body, 200))}
		}

		result, err := normalize(resp.Body)
		if err != nil {
			return nil, &Error{Kind: KindMalformedResponse, Status: resp.StatusCode, Retried: retried, Err: err}
		}
		result.Retried = retried
		result.Metrics = resp.Metrics
		result.RateLimit = rateLimitInfo(resp.Header)
		return result, nil
	}
}

func (c *Client) submit(ctx context.Context, wav []byte, referenceText, locale string) (*TracedResponse, error) {
	cfg := assessmentConfig{
		ReferenceText:   referenceText,
		GradingSystem:   "HundredMark",
		Granularity:     "Word",
		Dimension:       "Comprehensive",
		EnableMiscue:    true,
		EnableProsody:   true,
		PhonemeAlphabet: "IPA",
		NBestPhonemeCnt: 5,
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding assessment config: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s?language=%s&format=detailed", c.baseURL, locale)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(wav))
	if err != nil {
		return nil, fmt.Errorf("building assessment request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav; codecs=audio/pcm; samplerate=16000")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Pronunciation-Assessment", base64.StdEncoding.EncodeToString(cfgJSON))

	if c.key != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	} else {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.traced.Do(req)
}

func rateLimitInfo(h http.Header) string {
	remaining := firstNonEmpty(h, "X-RateLimit-Remaining", "RateLimit-Remaining")
	limit := firstNonEmpty(h, "X-RateLimit-Limit", "RateLimit-Limit")
	if remaining == "?" && limit == "?" {
		return ""
	}
	return remaining + "/" + limit
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
