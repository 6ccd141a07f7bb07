package assess

import (
	"context"
	"fmt"
	"net/http"
)

// Assessment error kinds.
const (
	KindMissingCredentials = "missing-credentials"
	KindMalformedResponse  = "malformed-response"
	KindRateLimited        = "rate-limited"
	KindUpstreamError      = "upstream-error"
	KindNetworkFailure     = "network-failure"
)

// Error classifies an assessment failure. Retried reports whether any
// backoff attempts were made before giving up.
type Error struct {
	Kind    string
	Status  int // HTTP status when relevant, else 0
	Retried bool
	Err     error
}

func (e *Error) Error() string {
	msg := "assessment: " + e.Kind
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind string, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// WordScore is per-word assessment detail.
type WordScore struct {
	Token     string
	Accuracy  float64
	ErrorKind string // e.g. None, Mispronunciation, Omission
}

// Result is one normalized assessment. Score fields are independently
// optional; the boundary does not guarantee any of them.
type Result struct {
	Overall      *float64
	Accuracy     *float64
	Fluency      *float64
	Completeness *float64
	Prosody      *float64
	Words        []WordScore
	Recognized   string // recognizer's transcript of the utterance

	Retried   bool
	RateLimit string          // "remaining/limit" when reported, else empty
	Metrics   *NetworkMetrics // non-nil on real HTTP submissions
}

// Assessor scores one canonical WAV utterance against a reference text.
type Assessor interface {
	Assess(ctx context.Context, wav []byte, referenceText, locale string) (*Result, error)
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}
