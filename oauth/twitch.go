package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/twitch"
)

// ErrNoRefreshToken is returned when a refresh is needed but no refresh token is held.
var ErrNoRefreshToken = errors.New("oauth: no refresh token")

// Credentials identify the bot's Twitch application and user grant.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	// TokenURL overrides the Twitch token endpoint. Used by tests.
	TokenURL string
}

// TwitchSource hands out chat tokens obtained with the refresh grant and
// remembers the latest one.
type TwitchSource struct {
	conf *oauth2.Config

	mu      sync.Mutex
	tok     *oauth2.Token
	onRenew []func(chatPassword string)
}

// NewTwitchSource returns a source that has not fetched a token yet.
func NewTwitchSource(c Credentials) *TwitchSource {
	endpoint := twitch.Endpoint
	if c.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: c.TokenURL, AuthStyle: oauth2.AuthStyleInParams}
	}
	return &TwitchSource{
		conf: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{"chat:read", "chat:edit"},
		},
		tok: &oauth2.Token{RefreshToken: c.RefreshToken},
	}
}

// Token returns the cached token while it is valid and refreshes it otherwise.
func (s *TwitchSource) Token(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	tok := s.tok
	s.mu.Unlock()
	if tok != nil && tok.Valid() {
		return tok, nil
	}
	return s.Refresh(ctx)
}

// Refresh performs a refresh grant regardless of the cached token's expiry.
// Twitch rotates refresh tokens; if the response carries none the old one is kept.
func (s *TwitchSource) Refresh(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	if s.tok == nil || s.tok.RefreshToken == "" {
		s.mu.Unlock()
		return nil, ErrNoRefreshToken
	}
	// A token without an access token is always refreshed by the oauth2 package.
	seed := &oauth2.Token{RefreshToken: s.tok.RefreshToken}
	tok, err := s.conf.TokenSource(ctx, seed).Token()
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("twitch refresh grant: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = s.tok.RefreshToken
	}
	s.tok = tok
	hooks := append(([]func(string))(nil), s.onRenew...)
	s.mu.Unlock()

	slog.Info("twitch token refreshed", slog.Time("expires_at", tok.Expiry), slog.String("component", "oauth"))
	for _, fn := range hooks {
		fn(ChatPassword(tok.AccessToken))
	}
	return tok, nil
}

// OnRenew registers fn to receive the chat password after every successful
// refresh. Callbacks run on the refreshing goroutine.
func (s *TwitchSource) OnRenew(fn func(chatPassword string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRenew = append(s.onRenew, fn)
}

// Renew is Refresh without the token, for StartRefresher.
func (s *TwitchSource) Renew(ctx context.Context) error {
	_, err := s.Refresh(ctx)
	return err
}

// Expiry is the cached token's expiry, zero before the first fetch.
func (s *TwitchSource) Expiry() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok == nil || s.tok.AccessToken == "" {
		return time.Time{}
	}
	return s.tok.Expiry
}

// ChatToken returns the access token in the "oauth:<token>" form IRC expects.
func (s *TwitchSource) ChatToken(ctx context.Context) (string, error) {
	tok, err := s.Token(ctx)
	if err != nil {
		return "", err
	}
	return ChatPassword(tok.AccessToken), nil
}

// ChatPassword adds the "oauth:" prefix to token if it is missing.
func ChatPassword(token string) string {
	if token == "" || strings.HasPrefix(token, "oauth:") {
		return token
	}
	return "oauth:" + token
}
