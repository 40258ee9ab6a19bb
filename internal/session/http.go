package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/util"
)

const (
	loginPath    = "/swan/auth/login/pwd"
	newInfoPath  = "/swan/auth/newinfo"
	settingsPath = "/swan/user-settings/get"
	abConfigPath = "/swan/ab/user"
)

// HTTPProvider logs in with email and password and then walks the
// onboarding requests the platform expects before it serves job lists.
type HTTPProvider struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	OnboardingStep time.Duration
	Resolve        func(ref string) (string, error)
	Transport      http.RoundTripper
}

type loginResponse struct {
	Success   bool            `json:"success"`
	ErrorCode util.FlexString `json:"errorCode"`
	ErrorMsg  string          `json:"errorMsg"`
	Result    struct {
		UserID util.FlexString `json:"userId"`
	} `json:"result"`
}

func (p *HTTPProvider) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Content-Type", "application/json")
	h.Set("X-Client-Type", "mobile_web")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	if p.UserAgent != "" {
		h.Set("User-Agent", p.UserAgent)
	}
	if u, err := url.Parse(p.BaseURL); err == nil && u.Host != "" {
		origin := u.Scheme + "://" + u.Host
		h.Set("Origin", origin)
		h.Set("Referer", origin+"/")
	}
	return h
}

func (p *HTTPProvider) Open(ctx context.Context, acct domain.Account) (*Session, error) {
	fail := func(r Reason, err error) (*Session, error) {
		return nil, &AuthFailure{AccountID: acct.ID, Reason: r, Err: err}
	}

	if p.Resolve == nil {
		return fail(ReasonUnknown, errors.New("no credential resolver configured"))
	}
	password, err := p.Resolve(acct.CredentialRef)
	if err != nil {
		return fail(ReasonInvalidCredential, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return fail(ReasonUnknown, err)
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	sess := &Session{
		Account: acct,
		BaseURL: strings.TrimRight(p.BaseURL, "/"),
		Client:  &http.Client{Timeout: timeout, Jar: jar, Transport: p.Transport},
		Header:  p.headers(),
	}

	req, err := sess.NewRequest(ctx, http.MethodPost, loginPath, map[string]string{
		"email":    acct.Email,
		"password": password,
	})
	if err != nil {
		return fail(ReasonUnknown, err)
	}
	resp, err := sess.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return fail(ReasonNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fail(ReasonInvalidCredential, fmt.Errorf("login status %s", resp.Status))
	case resp.StatusCode == http.StatusLocked:
		return fail(ReasonLocked, fmt.Errorf("login status %s", resp.Status))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fail(ReasonNetwork, fmt.Errorf("login status %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		return fail(ReasonUnknown, fmt.Errorf("login status %s", resp.Status))
	}

	var lr loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&lr); err != nil {
		return fail(ReasonNetwork, fmt.Errorf("decode login: %w", err))
	}
	if !lr.Success {
		return fail(classifyLoginMessage(lr.ErrorMsg), fmt.Errorf("login rejected code=%s msg=%q", lr.ErrorCode, lr.ErrorMsg))
	}

	sess.UserID = string(lr.Result.UserID)
	sess.OpenedAt = time.Now()
	p.onboard(ctx, sess)
	return sess, nil
}

func classifyLoginMessage(msg string) Reason {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "lock"), strings.Contains(m, "suspend"), strings.Contains(m, "disabled"), strings.Contains(m, "banned"):
		return ReasonLocked
	case strings.Contains(m, "password"), strings.Contains(m, "credential"), strings.Contains(m, "not exist"),
		strings.Contains(m, "not found"), strings.Contains(m, "invalid"), strings.Contains(m, "incorrect"):
		return ReasonInvalidCredential
	default:
		return ReasonUnknown
	}
}

// onboard is best effort: a failed step is logged and skipped.
func (p *HTTPProvider) onboard(ctx context.Context, sess *Session) {
	steps := []string{newInfoPath, settingsPath}
	if sess.UserID != "" {
		steps = append(steps, abConfigPath+"?user="+url.QueryEscape(sess.UserID))
	}

	for i, path := range steps {
		if i > 0 && p.OnboardingStep > 0 {
			t := time.NewTimer(p.OnboardingStep)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		req, err := sess.NewRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			continue
		}
		resp, err := sess.Do(req)
		if err != nil {
			logrus.WithFields(logrus.Fields{"account": sess.Account.ID, "path": path}).Debugf("[session] onboarding step failed: %v", err)
			continue
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
	}
}
