package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/javieralejandro89/beztshop-checkout/configs"
	domain "github.com/javieralejandro89/beztshop-checkout/internal/entity"
)

// ErrReauthRequired wraps the domain signal so callers up the stack can
// errors.Is against either.
var ErrReauthRequired = fmt.Errorf("upstream auth: %w", domain.ErrSessionExpired)

// HTTPError is a non-2xx upstream response that is not a credential
// problem.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// SessionClient issues authenticated requests against the storefront
// backend. It owns the single-flight token refresh: when concurrent
// requests hit an expired credential, exactly one performs the refresh
// while the rest queue behind it and replay with the new token. If the
// refresh fails, every queued caller is rejected uniformly with
// ErrReauthRequired.
type SessionClient struct {
	baseURL      string
	tokenPath    string
	clientID     string
	clientSecret string
	http         *http.Client

	mu         sync.Mutex
	token      string
	expiry     time.Time
	refreshing bool
	waiters    []chan error
}

func NewSessionClient(cfg configs.Config) *SessionClient {
	timeout := cfg.Upstream.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tokenPath := cfg.Upstream.TokenPath
	if tokenPath == "" {
		tokenPath = "/api/auth/token"
	}
	return &SessionClient{
		baseURL:      strings.TrimRight(cfg.Upstream.BaseURL, "/"),
		tokenPath:    tokenPath,
		clientID:     cfg.Upstream.ClientID,
		clientSecret: cfg.Upstream.ClientSecret,
		// Timeout covers the whole exchange; a timeout is handled like
		// any other network failure, never as a silent success.
		http: &http.Client{Timeout: timeout},
	}
}

// Do performs one authenticated JSON call. On a 401 it refreshes (or
// waits for the in-flight refresh) and replays once; a second 401 means
// the credential is beyond saving.
func (c *SessionClient) Do(ctx context.Context, method, path string, body, out any) error {
	tok, err := c.ensureToken(ctx, "")
	if err != nil {
		return err
	}
	status, raw, err := c.roundTrip(ctx, method, path, body, tok)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		tok, err = c.ensureToken(ctx, tok)
		if err != nil {
			return err
		}
		status, raw, err = c.roundTrip(ctx, method, path, body, tok)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return ErrReauthRequired
		}
	}
	if status >= http.StatusBadRequest {
		return &HTTPError{Status: status, Body: truncate(raw, 256)}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// ensureToken returns a token that is not the stale one the caller just
// failed with. At most one refresh runs at a time.
func (c *SessionClient) ensureToken(ctx context.Context, stale string) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.token != stale && time.Now().Before(c.expiry) {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	if c.refreshing {
		ch := make(chan error, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case err := <-ch:
			if err != nil {
				return "", err
			}
		}
		c.mu.Lock()
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.refreshing = true
	c.mu.Unlock()

	tok, exp, err := c.refresh(ctx)

	c.mu.Lock()
	c.refreshing = false
	waiters := c.waiters
	c.waiters = nil
	if err != nil {
		c.token = ""
		err = fmt.Errorf("token refresh: %w", ErrReauthRequired)
	} else {
		c.token = tok
		c.expiry = exp
	}
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
	}
	if err != nil {
		return "", err
	}
	return tok, nil
}

func (c *SessionClient) refresh(ctx context.Context) (string, time.Time, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", time.Time{}, err
	}
	if body.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("token endpoint returned empty token")
	}
	return body.AccessToken, tokenExpiry(body.AccessToken, body.ExpiresIn), nil
}

// tokenExpiry prefers the JWT exp claim, falls back to expires_in, and
// keeps a 30s safety margin so we refresh before the server rejects.
func tokenExpiry(token string, expiresIn int64) time.Time {
	if claims := unverifiedClaims(token); claims != nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time.Add(-30 * time.Second)
		}
	}
	if expiresIn > 0 {
		return time.Now().Add(time.Duration(expiresIn)*time.Second - 30*time.Second)
	}
	return time.Now().Add(5 * time.Minute)
}

func unverifiedClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	// Signature verification is the server's job; we only read exp.
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil
	}
	return claims
}

func (c *SessionClient) roundTrip(ctx context.Context, method, path string, body any, token string) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "beztshop-checkout/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
