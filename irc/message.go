package irc

import "strings"

// Commands the greeter reacts to.
const (
	CmdPrivmsg = "PRIVMSG"
	CmdJoin    = "JOIN"
	CmdPart    = "PART"
	CmdQuit    = "QUIT"
	CmdKick    = "KICK"
	CmdNick    = "NICK"
	CmdPing    = "PING"
	CmdPong    = "PONG"
)

// Message is the structured form of one normalized line.
type Message struct {
	Prefix      string
	Command     string
	Params      []string
	Trailing    string
	HasTrailing bool
}

// ParseMessage splits a normalized line into prefix, command, middle params
// and trailing text. It never fails; garbage in yields a Message whose
// Command matches nothing the greeter cares about.
func ParseMessage(line string) Message {
	var m Message
	s := strings.TrimSpace(line)
	if strings.HasPrefix(s, ":") {
		m.Prefix, s, _ = strings.Cut(s[1:], " ")
	}
	if strings.HasPrefix(s, ":") {
		// no command, only trailing text
		m.Trailing, m.HasTrailing = s[1:], true
		return m
	}
	if i := strings.Index(s, " :"); i >= 0 {
		m.Trailing, m.HasTrailing = s[i+2:], true
		s = s[:i]
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return m
	}
	m.Command = strings.ToUpper(fields[0])
	m.Params = fields[1:]
	return m
}

// Nick returns the nick part of the prefix.
func (m Message) Nick() string {
	nick, _, _ := strings.Cut(m.Prefix, "!")
	return nick
}

// Param returns the i-th middle param, falling back to the trailing text when
// i is the first missing index. Servers differ on whether e.g. JOIN carries
// the channel as a middle or a trailing param.
func (m Message) Param(i int) string {
	if i < len(m.Params) {
		return m.Params[i]
	}
	if i == len(m.Params) && m.HasTrailing {
		return m.Trailing
	}
	return ""
}

// Target is the first param: the channel or nick a PRIVMSG, JOIN or PART is
// addressed to.
func (m Message) Target() string { return m.Param(0) }

// Is reports whether the message has the given command.
func (m Message) Is(cmd string) bool { return m.Command == cmd }

// IsChannel reports whether name looks like a channel rather than a nick.
func IsChannel(name string) bool {
	return name != "" && strings.ContainsRune("#&+!", rune(name[0]))
}

// Privmsg formats a PRIVMSG line addressed to target.
func Privmsg(target, text string) string {
	return CmdPrivmsg + " " + target + " :" + text
}

// Pong formats the reply to a PING carrying payload.
func Pong(payload string) string {
	return CmdPong + " :" + payload
}
