// Package irc interprets raw IRC protocol text: it splits receive buffers into
// lines, extracts the acting nick from a line and canonicalizes nicks so that
// decorated or renamed variants of the same person compare equal.
//
// Parsing is deliberately forgiving. Lines that cannot be attributed to an
// actor are reported with ok == false and are meant to be skipped, not treated
// as errors.
package irc

import (
	"strings"
)

// Line is a normalized protocol line together with the nick that produced it.
type Line struct {
	Text  string
	Actor string
}

// SplitLines splits a raw receive buffer on CRLF or LF terminators and drops
// empty pieces.
func SplitLines(buf string) []string {
	if buf == "" {
		return nil
	}
	parts := strings.Split(strings.ReplaceAll(buf, "\r\n", "\n"), "\n")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimRight(p, "\r")
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Parse collapses internal whitespace of raw and extracts the actor: the text
// after the first ':' up to the first '!' (or the next ':'). For
// ":vader!darth@darkside.org PRIVMSG #deathstar :hi" the actor is "vader".
// A line without any ':' has no addressable origin and yields ok == false.
func Parse(raw string) (Line, bool) {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return Line{}, false
	}
	_, rest, found := strings.Cut(raw, ":")
	if !found {
		return Line{}, false
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}
	actor, _, _ := strings.Cut(rest, "!")
	return Line{Text: text, Actor: actor}, true
}
