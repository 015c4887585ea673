package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/greeter/irc"
	"github.com/onnwee/greeter/telemetry"
)

// TwitchConfig configures DialTwitch.
type TwitchConfig struct {
	Username string
	// Token is the chat OAuth token, with or without the "oauth:" prefix.
	Token    string
	Channels []string
	// Address overrides the IRC server, e.g. for a local test server.
	Address string
}

// twitchClient is the part of *twitch.Client the adapter drives.
type twitchClient interface {
	Say(channel, text string)
	SetIRCToken(token string)
	Connect() error
	Disconnect() error
}

// TwitchConn adapts a go-twitch-irc client to the greeter's line interface.
type TwitchConn struct {
	client twitchClient

	in       chan string
	done     chan struct{}
	stopOnce sync.Once

	connected atomic.Bool

	mu       sync.RWMutex
	err      error
	finished bool
}

// DialTwitch joins cfg.Channels and starts the client in the background.
// Cancelling ctx disconnects it.
func DialTwitch(ctx context.Context, cfg TwitchConfig) (*TwitchConn, error) {
	if cfg.Username == "" || cfg.Token == "" {
		return nil, errors.New("twitch: username and oauth token are required")
	}
	client := twitch.NewClient(strings.ToLower(cfg.Username), chatPassword(cfg.Token))
	if cfg.Address != "" {
		client.IrcAddress = cfg.Address
	}
	client.Capabilities = []string{twitch.TagsCapability, twitch.CommandsCapability, twitch.MembershipCapability}

	t := newTwitchConn(client)
	client.OnConnect(func() {
		t.connected.Store(true)
		telemetry.SetConnected(true)
		slog.Info("twitch chat connected", slog.Any("channels", cfg.Channels), slog.String("component", "chat"))
	})
	client.OnPrivateMessage(func(m twitch.PrivateMessage) { t.feed(m.Raw) })
	client.OnUserJoinMessage(func(m twitch.UserJoinMessage) { t.feed(m.Raw) })
	client.OnUserPartMessage(func(m twitch.UserPartMessage) { t.feed(m.Raw) })

	channels := make([]string, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		channels = append(channels, strings.ToLower(strings.TrimPrefix(ch, "#")))
	}
	client.Join(channels...)

	go func() {
		err := client.Connect()
		t.connected.Store(false)
		telemetry.SetConnected(false)
		switch {
		case errors.Is(err, twitch.ErrClientDisconnected):
			err = ErrClosed
		case err == nil:
			err = ErrServerClosed
		}
		t.finish(err)
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = t.Close()
		case <-t.done:
		}
	}()
	return t, nil
}

func newTwitchConn(client twitchClient) *TwitchConn {
	return &TwitchConn{client: client, in: make(chan string, 64), done: make(chan struct{})}
}

// stripTags removes a leading IRCv3 tag block. Tag values may contain ':'
// which would otherwise be taken for the start of the prefix.
func stripTags(raw string) string {
	if !strings.HasPrefix(raw, "@") {
		return raw
	}
	_, rest, found := strings.Cut(raw, " ")
	if !found {
		return ""
	}
	return rest
}

func (t *TwitchConn) feed(raw string) {
	line := stripTags(raw)
	if line == "" {
		return
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.finished {
		return
	}
	select {
	case t.in <- line + "\n":
	case <-t.done:
	}
}

func (t *TwitchConn) stop() { t.stopOnce.Do(func() { close(t.done) }) }

func (t *TwitchConn) finish(err error) {
	t.stop()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	t.finished = true
	if t.err == nil {
		t.err = err
	}
	close(t.in)
}

// SetToken replaces the chat token used on the next (re)connect.
func (t *TwitchConn) SetToken(token string) {
	if token == "" {
		return
	}
	t.client.SetIRCToken(chatPassword(token))
	slog.Debug("twitch chat token updated", slog.String("component", "chat"))
}

func chatPassword(token string) string {
	if strings.HasPrefix(token, "oauth:") {
		return token
	}
	return "oauth:" + token
}

// Send maps channel PRIVMSG lines onto Say. Everything else is dropped:
// the client answers PINGs itself and Twitch has no private messages over IRC.
func (t *TwitchConn) Send(line string) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	msg := irc.ParseMessage(line)
	target := msg.Target()
	if !msg.Is(irc.CmdPrivmsg) || !irc.IsChannel(target) {
		slog.Debug("twitch: dropping unsupported line", slog.String("line", line), slog.String("component", "chat"))
		return nil
	}
	t.client.Say(strings.ToLower(strings.TrimPrefix(target, "#")), msg.Param(1))
	return nil
}

// Incoming delivers received lines without IRCv3 tags.
func (t *TwitchConn) Incoming() <-chan string { return t.in }

// Err reports why Incoming was closed.
func (t *TwitchConn) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Connected reports whether the client has connected and not dropped since.
func (t *TwitchConn) Connected() bool { return t.connected.Load() && t.Err() == nil }

// Close disconnects the client.
func (t *TwitchConn) Close() error {
	t.stop()
	t.mu.Lock()
	if t.err == nil {
		t.err = ErrClosed
	}
	t.mu.Unlock()
	if err := t.client.Disconnect(); err != nil && !errors.Is(err, twitch.ErrConnectionIsNotOpen) {
		return err
	}
	return nil
}
