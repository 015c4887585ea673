package oauth

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
)

// tokenServer serves refresh grants, rotating the refresh token on each call.
func tokenServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("client_id") != "cid" || r.Form.Get("client_secret") != "secret" {
			http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
			return
		}
		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-" + r.Form.Get("refresh_token"),
			"refresh_token": "rt" + string(rune('0'+n)),
			"expires_in":    3600,
			"token_type":    "bearer",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTwitchSourceRefreshGrant(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls)
	src := NewTwitchSource(Credentials{ClientID: "cid", ClientSecret: "secret", RefreshToken: "rt0", TokenURL: srv.URL})
	ctx := context.Background()

	if !src.Expiry().IsZero() {
		t.Error("Expiry() before the first fetch should be zero")
	}
	chat, err := src.ChatToken(ctx)
	if err != nil {
		t.Fatalf("ChatToken() error = %v", err)
	}
	if chat != "oauth:access-rt0" {
		t.Errorf("ChatToken() = %q, want oauth:access-rt0", chat)
	}
	if until := time.Until(src.Expiry()); until < 50*time.Minute {
		t.Errorf("expiry in %v, want about an hour", until)
	}

	// A valid cached token is reused.
	if _, err := src.Token(ctx); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("token endpoint called %d times, want 1", got)
	}

	// A forced refresh uses the rotated refresh token.
	tok, err := src.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if tok.AccessToken != "access-rt1" {
		t.Errorf("AccessToken = %q, want access-rt1", tok.AccessToken)
	}
}

func TestTwitchSourceOnRenew(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls)
	src := NewTwitchSource(Credentials{ClientID: "cid", ClientSecret: "secret", RefreshToken: "rt0", TokenURL: srv.URL})

	var mu sync.Mutex
	var got []string
	src.OnRenew(func(pw string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, pw)
	})

	ctx := context.Background()
	if err := src.Renew(ctx); err != nil {
		t.Fatalf("Renew() error = %v", err)
	}
	if err := src.Renew(ctx); err != nil {
		t.Fatalf("Renew() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{"oauth:access-rt0", "oauth:access-rt1"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("renew callbacks = %v, want %v", got, want)
	}
}

func TestTwitchSourceOnRenewSkippedOnFailure(t *testing.T) {
	src := NewTwitchSource(Credentials{ClientID: "cid", ClientSecret: "secret"})
	called := false
	src.OnRenew(func(string) { called = true })
	if err := src.Renew(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("Renew() error = %v, want ErrNoRefreshToken", err)
	}
	if called {
		t.Error("callback ran after a failed refresh")
	}
}

func TestTwitchSourceWithoutRefreshToken(t *testing.T) {
	src := NewTwitchSource(Credentials{ClientID: "cid", ClientSecret: "secret"})
	if _, err := src.ChatToken(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Errorf("ChatToken() error = %v, want ErrNoRefreshToken", err)
	}
}

func TestTwitchSourceRejectedGrant(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls)
	src := NewTwitchSource(Credentials{ClientID: "wrong", ClientSecret: "secret", RefreshToken: "rt0", TokenURL: srv.URL})
	if _, err := src.Refresh(context.Background()); err == nil {
		t.Error("expected an error for a rejected grant")
	}
}

func TestChatPassword(t *testing.T) {
	tests := map[string]string{
		"":          "",
		"abc":       "oauth:abc",
		"oauth:abc": "oauth:abc",
	}
	for in, want := range tests {
		if got := ChatPassword(in); got != want {
			t.Errorf("ChatPassword(%q) = %q, want %q", in, got, want)
		}
	}
}

type fakeRefreshable struct {
	mu      sync.Mutex
	expiry  time.Time
	renewed int
}

func (f *fakeRefreshable) Expiry() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expiry
}

func (f *fakeRefreshable) Renew(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewed++
	f.expiry = time.Now().Add(2 * time.Hour)
	return nil
}

func (f *fakeRefreshable) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renewed
}

func TestStartRefresherOutsideWindow(t *testing.T) {
	src := &fakeRefreshable{expiry: time.Now().Add(time.Hour)}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	StartRefresher(ctx, "test", src, 20*time.Millisecond, 30*time.Minute)
	<-ctx.Done()

	if src.count() != 0 {
		t.Error("refresh should not run for a token that expires in 1 hour with a 30 min window")
	}
}

func TestStartRefresherWithinWindow(t *testing.T) {
	src := &fakeRefreshable{expiry: time.Now().Add(5 * time.Minute)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartRefresher(ctx, "test", src, 20*time.Millisecond, 15*time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for src.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if src.count() != 1 {
		t.Errorf("renewed %d times, want exactly 1", src.count())
	}
}

func TestStartRefresherIgnoresUnfetchedToken(t *testing.T) {
	src := &fakeRefreshable{}
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	StartRefresher(ctx, "test", src, 20*time.Millisecond, time.Hour)
	<-ctx.Done()

	if src.count() != 0 {
		t.Error("a zero expiry must not trigger a refresh")
	}
}
