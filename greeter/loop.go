package greeter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/greeter/irc"
	"github.com/onnwee/greeter/telemetry"
)

// ErrConnClosed is returned by Run when the transport closes without reporting an error.
var ErrConnClosed = errors.New("connection closed")

// Conn is the transport Run reads from and replies through.
type Conn interface {
	Sender
	// Incoming delivers raw received text; it is closed when the connection ends.
	Incoming() <-chan string
	// Err reports why Incoming was closed.
	Err() error
}

// NextWake is the shortest TimeToNextEvent across rooms.
func (g *Greeter) NextWake() time.Duration {
	now := g.now()
	next := time.Duration(-1)
	for _, r := range g.rooms {
		if d := r.TimeToNextEvent(now); next < 0 || d < next {
			next = d
		}
	}
	if next < 0 {
		next = DefaultWaitTime
	}
	return next
}

// Run blocks until ctx is done or conn closes. Each wake-up, whether caused by
// the timer or by incoming data, first graduates overdue newcomers in every
// room with a welcome and then handles the received lines.
func (g *Greeter) Run(ctx context.Context, conn Conn) error {
	in := conn.Incoming()
	timer := time.NewTimer(g.NextWake())
	defer timer.Stop()
	slog.Info("greeter loop started", slog.String("greeter", g.String()))

	for {
		var (
			chunk string
			data  bool
		)
		select {
		case <-ctx.Done():
			slog.Info("greeter loop stopping", slog.Any("reason", ctx.Err()))
			return nil
		case c, ok := <-in:
			if !ok {
				err := conn.Err()
				if err == nil {
					err = ErrConnClosed
				}
				return err
			}
			chunk, data = c, true
		case <-timer.C:
		}

		g.wake(ctx, conn, chunk, data)
		timer.Reset(g.NextWake())
	}
}

func (g *Greeter) wake(ctx context.Context, out Sender, chunk string, data bool) {
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "greeter", "greeter.wake", attribute.Bool("data", data))
	defer span.End()

	telemetry.RecordWake()
	telemetry.TimeFunc(telemetry.WakeDuration, func() {
		for _, room := range g.rooms {
			g.Graduate(ctx, room, out, true)
		}
		if data {
			lines := irc.SplitLines(chunk)
			span.SetAttributes(attribute.Int("lines", len(lines)))
			for _, raw := range lines {
				g.HandleLine(ctx, raw, out)
			}
		}
		g.publish()
	})
}
