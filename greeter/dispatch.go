package greeter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/greeter/irc"
	"github.com/onnwee/greeter/telemetry"
)

// HandleLine parses one raw line and applies it to every room. Lines without an
// addressable actor are dropped. Keep-alive probes and private messages to the
// bot are answered once per line rather than once per room.
func (g *Greeter) HandleLine(ctx context.Context, raw string, out Sender) {
	log := telemetry.LoggerWithCorr(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("line handling panicked", slog.String("line", raw), slog.Any("panic", r))
		}
	}()

	line, ok := irc.Parse(raw)
	telemetry.RecordLine(!ok)
	if !ok {
		log.Debug("dropping unaddressable line", slog.String("line", raw))
		return
	}
	for _, room := range g.rooms {
		g.Dispatch(ctx, room, line, out)
	}

	msg := irc.ParseMessage(line.Text)
	if msg.Is(irc.CmdPrivmsg) && strings.EqualFold(msg.Target(), g.bot) {
		g.handlePrivate(ctx, line.Actor, msg.Param(1), out)
	}
	if msg.Is(irc.CmdPing) {
		g.send(ctx, out, irc.Pong(msg.Param(0)))
	}
}

// Dispatch applies one parsed line to room, in this order: silent catch-up
// when someone else speaks, admission on join, rename tracking, removal on
// part/quit/kick, then greeting/help replies and wait time changes for
// messages sent to the room.
func (g *Greeter) Dispatch(ctx context.Context, room *Room, line irc.Line, out Sender) {
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("room", room.Name()))
	msg := irc.ParseMessage(line.Text)
	actor := line.Actor
	fromBot := g.isBot(actor)
	public := msg.Is(irc.CmdPrivmsg) && strings.EqualFold(msg.Target(), room.Name())

	// Someone who is not waiting spoke: the channel is active, so overdue
	// newcomers are marked known without a welcome.
	if public && !fromBot && !g.isKnownBot(actor) && !room.IsPending(actor) {
		if n := g.Graduate(ctx, room, out, false); n > 0 {
			log.Debug("silent catch-up", slog.String("speaker", actor), slog.Int("graduated", n))
		}
	}

	if msg.Is(irc.CmdJoin) && addressesRoom(msg.Target(), room.Name()) && !fromBot && !g.isKnownBot(actor) {
		if room.Admit(actor) {
			telemetry.RecordAdmission(room.Name())
			log.Info("newcomer joined", slog.String("nick", actor))
		}
	}

	if msg.Is(irc.CmdNick) && !fromBot {
		if newNick := msg.Target(); newNick != "" && room.Rename(actor, newNick) {
			log.Debug("pending newcomer renamed", slog.String("from", actor), slog.String("to", newNick))
		}
	}

	var gone string
	switch {
	case msg.Is(irc.CmdPart) && addressesRoom(msg.Target(), room.Name()):
		gone = actor
	case msg.Is(irc.CmdQuit):
		gone = actor
	case msg.Is(irc.CmdKick) && addressesRoom(msg.Target(), room.Name()):
		gone = msg.Param(1)
	}
	if gone != "" && room.Remove(gone) {
		telemetry.RecordRemoval(room.Name())
		log.Info("newcomer left before welcome", slog.String("nick", gone))
	}

	if !public {
		return
	}
	text := msg.Param(1)
	g.reply(ctx, room.Name(), actor, text, out)
	if seconds, ok := g.waitTimeRequest(text); ok {
		accepted := g.changeWaitTime(ctx, room, actor, seconds, out)
		if !accepted {
			g.send(ctx, out, irc.Privmsg(room.Name(), waitTimeDenial(actor, room.Admins())))
		}
	}
}

// addressesRoom reports whether a comma separated target list names room.
func addressesRoom(targets, room string) bool {
	for _, t := range strings.Split(targets, ",") {
		if strings.EqualFold(t, room) {
			return true
		}
	}
	return false
}

// reply answers a greeting or help request addressed to the bot.
func (g *Greeter) reply(ctx context.Context, target, actor, text string, out Sender) {
	if !g.matcher.Mentioned(text) {
		return
	}
	switch {
	case g.matcher.Greeting(text):
		g.send(ctx, out, irc.Privmsg(target, g.chooser.Choose(g.greetings)+" "+actor))
	case g.matcher.Help(text):
		g.send(ctx, out, irc.Privmsg(target, g.help))
	}
}

// waitTimeRequest extracts the seconds of a wait time change aimed at the bot.
// Requests without a valid number are ignored.
func (g *Greeter) waitTimeRequest(text string) (int, bool) {
	if !g.matcher.WaitTimeRequested(text) {
		return 0, false
	}
	return g.matcher.WaitTime(text)
}

// changeWaitTime applies a request to room and announces it in the room when accepted.
func (g *Greeter) changeWaitTime(ctx context.Context, room *Room, actor string, seconds int, out Sender) bool {
	accepted := room.SetWaitTime(actor, time.Duration(seconds)*time.Second)
	telemetry.RecordWaitTimeChange(room.Name(), accepted)
	if !accepted {
		return false
	}
	telemetry.LoggerWithCorr(ctx).Info("wait time changed",
		slog.String("room", room.Name()), slog.String("by", actor), slog.Int("seconds", seconds))
	g.send(ctx, out, irc.Privmsg(room.Name(), waitTimeConfirmation(actor, seconds)))
	return true
}

// handlePrivate answers a message sent directly to the bot. A wait time
// request applies to every room that lists the sender as admin; if none does,
// the sender gets one denial naming the admins of all rooms.
func (g *Greeter) handlePrivate(ctx context.Context, actor, text string, out Sender) {
	g.reply(ctx, actor, actor, text, out)
	seconds, ok := g.waitTimeRequest(text)
	if !ok {
		return
	}
	accepted := false
	for _, room := range g.rooms {
		if g.changeWaitTime(ctx, room, actor, seconds, out) {
			accepted = true
		}
	}
	if !accepted {
		g.send(ctx, out, irc.Privmsg(actor, waitTimeDenial(actor, g.allAdmins())))
	}
}

func (g *Greeter) allAdmins() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range g.rooms {
		for _, a := range r.Admins() {
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// String describes the greeter for logs.
func (g *Greeter) String() string {
	names := make([]string, 0, len(g.rooms))
	for _, r := range g.rooms {
		names = append(names, r.Name())
	}
	return fmt.Sprintf("greeter(%s: %s)", g.bot, strings.Join(names, ","))
}
