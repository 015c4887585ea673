package greeter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/greeter/testutil"
)

func runGreeter(t *testing.T, g *Greeter, conn Conn) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx, conn) }()
	t.Cleanup(cancel)
	return cancel, done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRunWelcomesAfterWaitTime(t *testing.T) {
	room := NewRoom(RoomConfig{Name: "#room", Admins: []string{"hagrid"}, WaitTime: 30 * time.Millisecond, MinWake: 5 * time.Millisecond})
	g := New(Options{BotNick: "greeter", WelcomeMessage: testWelcome}, room)
	conn := testutil.NewFakeConn()
	cancel, done := runGreeter(t, g, conn)

	conn.Push(":Harry!h@hogwarts.edu JOIN #room\r\n")
	sent := conn.WaitForSent(1, 2*time.Second)

	if len(sent) != 1 || sent[0] != "PRIVMSG #room :Welcome Harry! Ask hagrid." {
		t.Fatalf("sent %v, want a single welcome for Harry", sent)
	}
	if !room.IsKnown("Harry") {
		t.Error("Harry should be known after the welcome")
	}

	cancel()
	if err := waitRun(t, done); err != nil {
		t.Errorf("Run() after cancel = %v, want nil", err)
	}
}

func TestRunAnswersPing(t *testing.T) {
	g := New(Options{BotNick: "greeter"}, NewRoom(RoomConfig{Name: "#room"}))
	conn := testutil.NewFakeConn()
	runGreeter(t, g, conn)

	conn.Push("PING :irc.example.net\r\n")
	sent := conn.WaitForSent(1, 2*time.Second)
	if len(sent) != 1 || sent[0] != "PONG :irc.example.net" {
		t.Errorf("sent %v, want PONG", sent)
	}
}

func TestRunHandlesEveryLineOfAChunk(t *testing.T) {
	room := NewRoom(RoomConfig{Name: "#room", WaitTime: time.Hour})
	g := New(Options{BotNick: "greeter"}, room)
	conn := testutil.NewFakeConn()
	runGreeter(t, g, conn)

	conn.Push(":Fred!f@burrow JOIN #room\r\n:George!g@burrow JOIN #room\r\nPING :sync\r\n")
	conn.WaitForSent(1, 2*time.Second)

	if got := nicksOf(room.Pending()); len(got) != 2 {
		t.Errorf("pending = %v, want Fred and George", got)
	}
}

func TestRunReturnsTransportError(t *testing.T) {
	g := New(Options{BotNick: "greeter"}, NewRoom(RoomConfig{Name: "#room"}))
	conn := testutil.NewFakeConn()
	_, done := runGreeter(t, g, conn)

	boom := errors.New("connection reset by peer")
	conn.CloseWith(boom)
	if err := waitRun(t, done); !errors.Is(err, boom) {
		t.Errorf("Run() = %v, want %v", err, boom)
	}
}

func TestRunReturnsErrConnClosedOnCleanClose(t *testing.T) {
	g := New(Options{BotNick: "greeter"}, NewRoom(RoomConfig{Name: "#room"}))
	conn := testutil.NewFakeConn()
	_, done := runGreeter(t, g, conn)

	conn.CloseWith(nil)
	if err := waitRun(t, done); !errors.Is(err, ErrConnClosed) {
		t.Errorf("Run() = %v, want ErrConnClosed", err)
	}
}

func TestNextWake(t *testing.T) {
	clock := testutil.NewClock(epoch)
	a := NewRoom(RoomConfig{Name: "#a", WaitTime: 10 * time.Second, Now: clock.Now})
	b := NewRoom(RoomConfig{Name: "#b", WaitTime: 20 * time.Second, Now: clock.Now})
	g := New(Options{BotNick: "greeter", Now: clock.Now}, a, b)

	if got := g.NextWake(); got != 10*time.Second {
		t.Errorf("NextWake() = %v, want 10s", got)
	}
	b.Admit("Hannah")
	clock.Advance(15 * time.Second)
	if got := g.NextWake(); got != 5*time.Second {
		t.Errorf("NextWake() = %v, want 5s", got)
	}

	if got := New(Options{BotNick: "greeter"}).NextWake(); got != DefaultWaitTime {
		t.Errorf("NextWake() without rooms = %v, want %v", got, DefaultWaitTime)
	}
}
