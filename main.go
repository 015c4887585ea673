// Command greeter is the entrypoint for the channel greeter bot.
// It:
//   - Loads configuration (env, optional .env and YAML file) and initializes structured logging.
//   - Opens the known-nick store (JSON file, SQLite or Postgres) and seeds every room from it.
//   - Connects to the chat network (plain IRC or Twitch), registers and joins the rooms.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/greeter/chat"
	"github.com/onnwee/greeter/config"
	"github.com/onnwee/greeter/greeter"
	"github.com/onnwee/greeter/nicks"
	"github.com/onnwee/greeter/oauth"
	"github.com/onnwee/greeter/server"
	"github.com/onnwee/greeter/telemetry"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// transport is what both chat connections provide.
type transport interface {
	greeter.Conn
	Close() error
	Connected() bool
}

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()
	setupLogging()

	if err := run(); err != nil {
		slog.Error("greeter exited with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func setupLogging() {
	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		format = "text"
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("greeter", version)
	if err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := nicks.Open(ctx, cfg.NickSource)
	if err != nil {
		return fmt.Errorf("open nick store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close nick store", slog.Any("err", err))
		}
	}()

	g := greeter.New(greeter.Options{
		BotNick:        cfg.BotNick,
		KnownBots:      cfg.KnownBots,
		Greetings:      cfg.HelloList,
		HelpWords:      cfg.HelpList,
		WelcomeMessage: cfg.WelcomeMessage,
		HelpMessage:    cfg.HelpMessage,
		Chooser:        greeter.NewChooser(cfg.RandSeed),
		Store:          store,
	}, buildRooms(cfg)...)
	// A store that cannot be read only means some people may be welcomed twice.
	if err := g.LoadKnown(ctx); err != nil {
		slog.Error("failed to load known nicks; starting with none", slog.Any("err", err))
	}

	conn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Warn("failed to close transport", slog.Any("err", err))
		}
	}()

	// HTTP server (health/readiness/status/metrics)
	checks := []server.Check{{
		Name: "transport",
		Fn: func(context.Context) error {
			if !conn.Connected() {
				return errors.New("transport not connected")
			}
			return nil
		},
	}}
	if p, ok := store.(nicks.Pinger); ok {
		checks = append(checks, server.Check{Name: "store", Fn: p.Ping})
	}
	go func() {
		if err := server.Start(ctx, cfg.HTTPAddr, server.NewMux(server.NewHandlers(cfg.BotNick, g, checks...))); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	err = g.Run(ctx, conn)
	slog.Info("shutting down")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func buildRooms(cfg *config.Config) []*greeter.Room {
	rooms := make([]*greeter.Room, 0, len(cfg.Rooms))
	for _, r := range cfg.Rooms {
		rooms = append(rooms, greeter.NewRoom(greeter.RoomConfig{
			Name:     r.Name,
			Admins:   r.Greeters,
			WaitTime: cfg.RoomWaitTime(r),
			MinWake:  cfg.MinWake,
		}))
	}
	return rooms
}

func connect(ctx context.Context, cfg *config.Config) (transport, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if cfg.Transport == config.TransportTwitch {
		token, src, err := twitchToken(ctx, cfg)
		if err != nil {
			return nil, err
		}
		conn, err := chat.DialTwitch(ctx, chat.TwitchConfig{
			Username: cfg.BotNick,
			Token:    token,
			Channels: cfg.JoinChannels(),
		})
		if err != nil {
			return nil, fmt.Errorf("twitch connect: %w", err)
		}
		if src != nil {
			// Reconnects log in with the latest refreshed token.
			src.OnRenew(conn.SetToken)
			oauth.StartRefresher(ctx, "twitch", src, 5*time.Minute, 15*time.Minute)
		}
		return conn, nil
	}

	conn, err := chat.Dial(dialCtx, cfg.Server)
	if err != nil {
		return nil, err
	}
	id := chat.Identity{
		Nick:       cfg.BotNick,
		RealName:   cfg.RealName,
		Password:   cfg.NickServPassword,
		Registered: cfg.Registered,
	}
	if err := chat.Register(conn, id, cfg.JoinChannels()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// twitchToken prefers a static token and otherwise runs the refresh grant.
// The returned source is nil for a static token.
func twitchToken(ctx context.Context, cfg *config.Config) (string, *oauth.TwitchSource, error) {
	if cfg.TwitchOAuthToken != "" {
		return cfg.TwitchOAuthToken, nil, nil
	}
	src := oauth.NewTwitchSource(oauth.Credentials{
		ClientID:     cfg.TwitchClientID,
		ClientSecret: cfg.TwitchClientSecret,
		RefreshToken: cfg.TwitchRefreshToken,
	})
	ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	token, err := src.ChatToken(ctx2)
	if err != nil {
		return "", nil, fmt.Errorf("twitch token: %w", err)
	}
	return token, src, nil
}
