package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/javieralejandro89/beztshop-checkout/configs"
	domain "github.com/javieralejandro89/beztshop-checkout/internal/entity"
)

func testClient(baseURL string) *SessionClient {
	cfg := configs.Config{}
	cfg.Upstream.BaseURL = baseURL
	cfg.Upstream.TokenPath = "/api/auth/token"
	cfg.Upstream.ClientID = "checkout"
	cfg.Upstream.ClientSecret = "secret"
	return NewSessionClient(cfg)
}

func tokenResponse(w http.ResponseWriter, token string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"expires_in":   3600,
	})
}

func TestDoRefreshesOnceUnderConcurrency(t *testing.T) {
	var refreshes, apiHits int32
	hold := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/token":
			atomic.AddInt32(&refreshes, 1)
			<-hold
			tokenResponse(w, "tok-1")
		case "/api/ping":
			atomic.AddInt32(&apiHits, 1)
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"ok":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Do(context.Background(), http.MethodGet, "/api/ping", nil, nil)
		}(i)
	}

	// let every caller reach the token gate before the refresh completes
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&refreshes) < 1 {
		if time.Now().After(deadline) {
			t.Fatal("refresh never started")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(hold)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&refreshes); got != 1 {
		t.Fatalf("expected exactly 1 refresh; got %d", got)
	}
	if got := atomic.LoadInt32(&apiHits); got != n {
		t.Fatalf("expected %d api calls; got %d", n, got)
	}
}

func TestDoReplaysOnceAfterStaleToken(t *testing.T) {
	var refreshes, apiHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/token":
			atomic.AddInt32(&refreshes, 1)
			tokenResponse(w, "fresh")
		case "/api/orders":
			atomic.AddInt32(&apiHits, 1)
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"id":"o-1"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	// a credential the server no longer honors
	c.token = "stale"
	c.expiry = time.Now().Add(time.Hour)

	var out struct {
		ID string `json:"id"`
	}
	if err := c.Do(context.Background(), http.MethodPost, "/api/orders", map[string]int{"x": 1}, &out); err != nil {
		t.Fatalf("do: %v", err)
	}
	if out.ID != "o-1" {
		t.Fatalf("expected o-1; got %q", out.ID)
	}
	if atomic.LoadInt32(&refreshes) != 1 || atomic.LoadInt32(&apiHits) != 2 {
		t.Fatalf("expected 1 refresh and 2 api calls; got %d and %d",
			atomic.LoadInt32(&refreshes), atomic.LoadInt32(&apiHits))
	}
}

func TestDoGivesUpAfterSecondUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/token" {
			tokenResponse(w, "tok-"+r.FormValue("client_id"))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	err := c.Do(context.Background(), http.MethodGet, "/api/ping", nil, nil)
	if !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("expected ErrReauthRequired; got %v", err)
	}
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected the domain expiry signal; got %v", err)
	}
}

func TestRefreshFailureRejectsAllWaitersUniformly(t *testing.T) {
	var refreshes int32
	hold := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/token" {
			atomic.AddInt32(&refreshes, 1)
			<-hold
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Do(context.Background(), http.MethodGet, "/api/ping", nil, nil)
		}(i)
	}
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&refreshes) < 1 {
		if time.Now().After(deadline) {
			t.Fatal("refresh never started")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(hold)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, domain.ErrSessionExpired) {
			t.Fatalf("caller %d: expected expiry signal; got %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&refreshes); got != 1 {
		t.Fatalf("expected exactly 1 refresh attempt for the queued batch; got %d", got)
	}
}

func TestDoWrapsUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/token" {
			tokenResponse(w, "tok")
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	err := c.Do(context.Background(), http.MethodGet, "/api/ping", nil, nil)
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected HTTPError; got %v", err)
	}
	if he.Status != http.StatusBadGateway {
		t.Fatalf("expected 502; got %d", he.Status)
	}
}

func TestTokenExpiryPrefersJWTClaim(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	}).SignedString([]byte("irrelevant"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got := tokenExpiry(tok, 3600)
	want := exp.Add(-30 * time.Second)
	if !got.Equal(want) {
		t.Fatalf("expected %v; got %v", want, got)
	}
}

func TestTokenExpiryFallsBackToExpiresIn(t *testing.T) {
	before := time.Now()
	got := tokenExpiry("opaque-token", 600)
	min := before.Add(600*time.Second - 31*time.Second)
	max := time.Now().Add(600*time.Second - 29*time.Second)
	if got.Before(min) || got.After(max) {
		t.Fatalf("expiry %v outside [%v, %v]", got, min, max)
	}
}
