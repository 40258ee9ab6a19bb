// Package session turns an account's credential into an authenticated
// platform handle.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"jobsweep-engine/internal/domain"
)

// Reason classifies an authentication failure.
type Reason string

const (
	ReasonInvalidCredential Reason = "invalid_credential"
	ReasonLocked            Reason = "locked"
	ReasonNetwork           Reason = "network"
	ReasonUnknown           Reason = "unknown"
)

// AuthFailure is returned by Provider.Open.
type AuthFailure struct {
	AccountID string
	Reason    Reason
	Err       error
}

func (e *AuthFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %s: %v", e.AccountID, e.Reason, e.Err)
	}
	return fmt.Sprintf("auth %s: %s", e.AccountID, e.Reason)
}

func (e *AuthFailure) Unwrap() error { return e.Err }

// Retryable reports whether a later attempt could succeed.
func (e *AuthFailure) Retryable() bool { return e.Reason == ReasonNetwork }

// IsRetryableAuth reports whether err carries a retryable *AuthFailure.
func IsRetryableAuth(err error) bool {
	var af *AuthFailure
	return errors.As(err, &af) && af.Retryable()
}

// Provider opens sessions. Implementations must be safe for concurrent use.
type Provider interface {
	Open(ctx context.Context, acct domain.Account) (*Session, error)
}

// Session is an authenticated handle owned by exactly one account for the
// run. Its cookie jar carries the platform's auth state.
type Session struct {
	Account  domain.Account
	UserID   string
	BaseURL  string
	Client   *http.Client
	Header   http.Header
	OpenedAt time.Time

	mu          sync.Mutex
	lastRequest time.Time
}

func (s *Session) LastRequest() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRequest
}

// Touch stamps the time of the most recent outbound request.
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	s.lastRequest = t
	s.mu.Unlock()
}

// NewRequest builds a request against the platform with the session's
// headers. A non-nil body is JSON encoded.
func (s *Session) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	for k, vs := range s.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// Do sends req with the session's client and stamps LastRequest.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	s.Touch(time.Now())
	return s.Client.Do(req)
}
