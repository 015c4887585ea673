package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/greeter/oauth"
)

type said struct{ channel, text string }

type fakeTwitch struct {
	mu           sync.Mutex
	said         []said
	token        string
	disconnected bool
}

func (f *fakeTwitch) SetIRCToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func (f *fakeTwitch) ircToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTwitch) Say(channel, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, said{channel, text})
}

func (f *fakeTwitch) Connect() error { return nil }

func (f *fakeTwitch) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	return nil
}

func TestTwitchSendMapsChannelMessages(t *testing.T) {
	fake := &fakeTwitch{}
	c := newTwitchConn(fake)

	for _, line := range []string{
		"PRIVMSG #SomeChannel :hello Ron",
		"PONG :tmi.twitch.tv",
		"PRIVMSG Ron :private reply",
	} {
		if err := c.Send(line); err != nil {
			t.Errorf("Send(%q) error = %v", line, err)
		}
	}
	want := []said{{"somechannel", "hello Ron"}}
	if len(fake.said) != 1 || fake.said[0] != want[0] {
		t.Errorf("said %v, want %v", fake.said, want)
	}
}

func TestTwitchFeedStripsTags(t *testing.T) {
	c := newTwitchConn(&fakeTwitch{})
	go c.feed("@badge-info=;emotes=25:0-4;user-id=1 :ron!ron@ron.tmi.twitch.tv PRIVMSG #room :Kappa hello greeter")

	select {
	case got := <-c.Incoming():
		want := ":ron!ron@ron.tmi.twitch.tv PRIVMSG #room :Kappa hello greeter\n"
		if got != want {
			t.Errorf("received %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no line received")
	}
}

func TestStripTags(t *testing.T) {
	tests := map[string]string{
		":a!a@a JOIN #room":              ":a!a@a JOIN #room",
		"@id=1 :a!a@a JOIN #room":        ":a!a@a JOIN #room",
		"@only-tags-and-nothing-else":    "",
		"PING :tmi.twitch.tv":            "PING :tmi.twitch.tv",
		"@a=b;c=d:e PING :tmi.twitch.tv": "PING :tmi.twitch.tv",
	}
	for in, want := range tests {
		if got := stripTags(in); got != want {
			t.Errorf("stripTags(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTwitchFinishClosesIncoming(t *testing.T) {
	c := newTwitchConn(&fakeTwitch{})
	c.finish(ErrServerClosed)
	c.finish(errors.New("ignored"))

	if _, ok := <-c.Incoming(); ok {
		t.Fatal("expected Incoming to be closed")
	}
	if !errors.Is(c.Err(), ErrServerClosed) {
		t.Errorf("Err() = %v, want ErrServerClosed", c.Err())
	}
	// Feeding after finish must not panic on the closed channel.
	c.feed(":a!a@a JOIN #room")
}

func TestTwitchClose(t *testing.T) {
	fake := &fakeTwitch{}
	c := newTwitchConn(fake)
	if c.Connected() {
		t.Error("a client that never connected should not report Connected")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !fake.disconnected {
		t.Error("Close should disconnect the client")
	}
	if err := c.Send("PRIVMSG #room :hi"); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close = %v, want ErrClosed", err)
	}
	if !errors.Is(c.Err(), ErrClosed) {
		t.Errorf("Err() = %v, want ErrClosed", c.Err())
	}
}

func TestDialTwitchRequiresCredentials(t *testing.T) {
	if _, err := DialTwitch(context.Background(), TwitchConfig{Username: "greeter"}); err == nil {
		t.Error("expected an error without a token")
	}
}

func TestTwitchSetTokenAddsPrefix(t *testing.T) {
	fake := &fakeTwitch{}
	c := newTwitchConn(fake)

	c.SetToken("abc")
	if got := fake.ircToken(); got != "oauth:abc" {
		t.Errorf("token = %q, want oauth:abc", got)
	}
	c.SetToken("oauth:def")
	if got := fake.ircToken(); got != "oauth:def" {
		t.Errorf("token = %q, want oauth:def", got)
	}
	c.SetToken("")
	if got := fake.ircToken(); got != "oauth:def" {
		t.Errorf("empty token replaced %q", got)
	}
}

func TestTwitchRenewedTokenReachesClient(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  []string{"first", "second"}[min(n, 2)-1],
			"refresh_token": "rt",
			"expires_in":    3600,
			"token_type":    "bearer",
		})
	}))
	defer srv.Close()

	src := oauth.NewTwitchSource(oauth.Credentials{ClientID: "cid", ClientSecret: "secret", RefreshToken: "rt", TokenURL: srv.URL})
	ctx := context.Background()
	token, err := src.ChatToken(ctx)
	if err != nil {
		t.Fatalf("ChatToken() error = %v", err)
	}
	if token != "oauth:first" {
		t.Fatalf("ChatToken() = %q, want oauth:first", token)
	}

	fake := &fakeTwitch{}
	c := newTwitchConn(fake)
	src.OnRenew(c.SetToken)

	if err := src.Renew(ctx); err != nil {
		t.Fatalf("Renew() error = %v", err)
	}
	if got := fake.ircToken(); got != "oauth:second" {
		t.Errorf("client token after renew = %q, want oauth:second", got)
	}
}
