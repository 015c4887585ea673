// Package greeter watches IRC channels for newcomers and welcomes them once
// they have stayed for a room's wait time.
//
// A Greeter owns one Room per channel. Run drives it from a transport: every
// wake-up first graduates overdue newcomers (with a welcome), then dispatches
// any received lines to every room. Replies go out through a Sender passed in
// explicitly, so rooms never hold a reference to the connection.
package greeter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/greeter/irc"
	"github.com/onnwee/greeter/nicks"
	"github.com/onnwee/greeter/telemetry"
)

// Sender writes one protocol line (without terminator) to the transport.
type Sender interface {
	Send(line string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(line string) error

// Send calls f.
func (f SenderFunc) Send(line string) error { return f(line) }

// DefaultGreetings and DefaultHelpWords are the trigger vocabularies used when none are configured.
var (
	DefaultGreetings = []string{"hello", "hi", "hey", "yo", "sup"}
	DefaultHelpWords = []string{"help", "info", "faq", "explain_yourself"}
)

// Options configures a Greeter.
type Options struct {
	BotNick        string
	KnownBots      []string
	Greetings      []string
	HelpWords      []string
	WelcomeMessage string
	HelpMessage    string
	Chooser        Chooser
	// Store persists known nicks after each graduation pass. Optional.
	Store nicks.Store
	Now   func() time.Time
}

// Greeter routes protocol lines to its rooms.
type Greeter struct {
	bot       string
	knownBots map[string]struct{}
	greetings []string
	welcome   string
	help      string
	matcher   *Matcher
	chooser   Chooser
	store     nicks.Store
	now       func() time.Time
	rooms     []*Room
}

// New returns a Greeter for rooms.
func New(opts Options, rooms ...*Room) *Greeter {
	g := &Greeter{
		bot:       opts.BotNick,
		knownBots: make(map[string]struct{}, len(opts.KnownBots)),
		greetings: opts.Greetings,
		welcome:   opts.WelcomeMessage,
		help:      opts.HelpMessage,
		chooser:   opts.Chooser,
		store:     opts.Store,
		now:       opts.Now,
		rooms:     rooms,
	}
	for _, b := range opts.KnownBots {
		g.knownBots[irc.Canonicalize(b)] = struct{}{}
	}
	if len(g.greetings) == 0 {
		g.greetings = DefaultGreetings
	}
	helpWords := opts.HelpWords
	if len(helpWords) == 0 {
		helpWords = DefaultHelpWords
	}
	if g.welcome == "" {
		g.welcome = DefaultWelcomeMessage
	}
	if g.help == "" {
		g.help = DefaultHelpMessage
	}
	if g.chooser == nil {
		g.chooser = NewChooser(0)
	}
	if g.now == nil {
		g.now = time.Now
	}
	g.matcher = NewMatcher(g.bot, g.greetings, helpWords)
	return g
}

// Status returns a snapshot of every room.
func (g *Greeter) Status() []RoomStatus {
	out := make([]RoomStatus, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r.Snapshot())
	}
	return out
}

// LoadKnown seeds every room with the keys held by the store.
func (g *Greeter) LoadKnown(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	set, err := g.store.Load(ctx)
	if err != nil {
		telemetry.RecordStoreFailure()
		return fmt.Errorf("load known nicks: %w", err)
	}
	keys := set.Sorted()
	for _, r := range g.rooms {
		r.Learn(keys...)
	}
	slog.Info("known nicks loaded", slog.Int("count", len(keys)), slog.String("component", "greeter"))
	g.publish()
	return nil
}

func (g *Greeter) isBot(nick string) bool { return strings.EqualFold(nick, g.bot) }

func (g *Greeter) isKnownBot(nick string) bool {
	_, ok := g.knownBots[irc.Canonicalize(nick)]
	return ok
}

// Graduate moves every overdue newcomer of room to known, welcoming each one
// first when welcome is set. A failed welcome does not stop the graduation.
// It returns the number of graduated newcomers.
func (g *Greeter) Graduate(ctx context.Context, room *Room, out Sender, welcome bool) int {
	due := room.DueForGraduation(g.now())
	if len(due) == 0 {
		return 0
	}
	log := telemetry.LoggerWithCorr(ctx)
	for _, n := range due {
		if welcome {
			g.send(ctx, out, irc.Privmsg(room.Name(), FormatWelcome(g.welcome, n.Nick, room.Admins())))
		}
		if room.Graduate(n) {
			telemetry.RecordGraduation(room.Name(), welcome)
			log.Info("newcomer graduated",
				slog.String("room", room.Name()),
				slog.String("nick", n.Nick),
				slog.Bool("welcomed", welcome),
				slog.Duration("waited", n.Age(g.now())))
		}
	}
	g.persist(ctx, room)
	return len(due)
}

func (g *Greeter) persist(ctx context.Context, room *Room) {
	if g.store == nil {
		return
	}
	if err := g.store.Save(ctx, nicks.NewSet(room.KnownKeys()...)); err != nil {
		telemetry.RecordStoreFailure()
		telemetry.LoggerWithCorr(ctx).Error("failed to save known nicks",
			slog.String("room", room.Name()), slog.Any("err", err))
	}
}

func (g *Greeter) send(ctx context.Context, out Sender, line string) {
	if err := out.Send(line); err != nil {
		telemetry.RecordSendFailure()
		telemetry.LoggerWithCorr(ctx).Warn("send failed", slog.String("line", line), slog.Any("err", err))
	}
}

// publish pushes room gauges.
func (g *Greeter) publish() {
	for _, r := range g.rooms {
		s := r.Snapshot()
		telemetry.SetRoomState(s.Name, len(s.Pending), s.Known, r.WaitTime())
	}
}
