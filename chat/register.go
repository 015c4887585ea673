package chat

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/onnwee/greeter/greeter"
	"github.com/onnwee/greeter/irc"
)

// Identity is what the bot announces during registration.
type Identity struct {
	Nick     string
	RealName string
	// Password identifies the nick with NickServ when Registered is set.
	Password   string
	Registered bool
}

// Register sends the registration handshake followed by a single JOIN for
// channels. An empty RealName defaults to the nick.
func Register(s greeter.Sender, id Identity, channels []string) error {
	realName := id.RealName
	if realName == "" {
		realName = id.Nick
	}
	lines := []string{
		fmt.Sprintf("USER %s %s %s :%s", id.Nick, id.Nick, id.Nick, realName),
		"NICK " + id.Nick,
	}
	if id.Registered && id.Password != "" {
		lines = append(lines, irc.Privmsg("NickServ", "IDENTIFY "+id.Nick+" "+id.Password))
	}
	if len(channels) > 0 {
		lines = append(lines, "JOIN "+strings.Join(channels, ","))
	}
	for _, l := range lines {
		if err := s.Send(l); err != nil {
			return fmt.Errorf("register %s: %w", id.Nick, err)
		}
	}
	slog.Info("irc registration sent",
		slog.String("nick", id.Nick),
		slog.Bool("identify", id.Registered && id.Password != ""),
		slog.Any("channels", channels),
		slog.String("component", "chat"))
	return nil
}
