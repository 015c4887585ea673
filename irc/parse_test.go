package irc

import (
	"reflect"
	"testing"
)

func TestParseGoodLine(t *testing.T) {
	raw := ":vader!darth@darkside.org PRIVMSG #deathstar : I find your lack of faith disturbing"
	line, ok := Parse(raw)
	if !ok {
		t.Fatalf("Parse(%q) ok = false", raw)
	}
	if line.Actor != "vader" {
		t.Errorf("actor = %q, want vader", line.Actor)
	}
	if line.Text != raw {
		t.Errorf("text = %q, want %q", line.Text, raw)
	}
}

func TestParseCollapsesWhitespace(t *testing.T) {
	line, ok := Parse("  :luke!l@tatooine   PRIVMSG  #rebels   :use  the\tforce ")
	if !ok {
		t.Fatal("expected ok")
	}
	want := ":luke!l@tatooine PRIVMSG #rebels :use the force"
	if line.Text != want {
		t.Errorf("text = %q, want %q", line.Text, want)
	}
	if line.Actor != "luke" {
		t.Errorf("actor = %q, want luke", line.Actor)
	}
}

func TestParseRejectsUnaddressable(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"we should probably replace this with a bad string more likely to occur",
	} {
		if line, ok := Parse(raw); ok {
			t.Errorf("Parse(%q) = %+v, want not ok", raw, line)
		}
	}
}

func TestParsePing(t *testing.T) {
	line, ok := Parse("PING :irc.example.net")
	if !ok {
		t.Fatal("PING lines must survive parsing so they can be answered")
	}
	if line.Text != "PING :irc.example.net" {
		t.Errorf("text = %q", line.Text)
	}
}

func TestSplitLines(t *testing.T) {
	got := SplitLines("PING :a\r\n:x!y@z JOIN #c\r\n\r\n:x!y@z PART #c\n")
	want := []string{"PING :a", ":x!y@z JOIN #c", ":x!y@z PART #c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitLines = %q, want %q", got, want)
	}
	if got := SplitLines(""); len(got) != 0 {
		t.Errorf("SplitLines(\"\") = %q, want empty", got)
	}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		line    string
		command string
		nick    string
		target  string
		param1  string
		trail   string
	}{
		{"PING :token", CmdPing, "", "token", "", "token"},
		{":bob!b@h JOIN #falcon", CmdJoin, "bob", "#falcon", "", ""},
		{":bob!b@h JOIN :#falcon", CmdJoin, "bob", "#falcon", "", "#falcon"},
		{":bob!b@h NICK :bobby", CmdNick, "bob", "bobby", "", "bobby"},
		{":op!o@h KICK #falcon bob :bye", CmdKick, "op", "#falcon", "bob", "bye"},
		{":bob!b@h privmsg #falcon :hi there", CmdPrivmsg, "bob", "#falcon", "hi there", "hi there"},
		{":bob!b@h QUIT :Quit: leaving", CmdQuit, "bob", "Quit: leaving", "", "Quit: leaving"},
		{":server.only", "", "server.only", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			m := ParseMessage(tt.line)
			if m.Command != tt.command {
				t.Errorf("command = %q, want %q", m.Command, tt.command)
			}
			if m.Nick() != tt.nick {
				t.Errorf("nick = %q, want %q", m.Nick(), tt.nick)
			}
			if m.Target() != tt.target {
				t.Errorf("target = %q, want %q", m.Target(), tt.target)
			}
			if m.Param(1) != tt.param1 {
				t.Errorf("param(1) = %q, want %q", m.Param(1), tt.param1)
			}
			if m.Trailing != tt.trail {
				t.Errorf("trailing = %q, want %q", m.Trailing, tt.trail)
			}
		})
	}
}

func TestLineBuilders(t *testing.T) {
	if got := Privmsg("#falcon", "hello bob"); got != "PRIVMSG #falcon :hello bob" {
		t.Errorf("Privmsg = %q", got)
	}
	if got := Pong("token"); got != "PONG :token" {
		t.Errorf("Pong = %q", got)
	}
	if !IsChannel("#falcon") || IsChannel("bob") || IsChannel("") {
		t.Error("IsChannel misclassified")
	}
}
