// Package config loads environment variables and an optional YAML file into a
// typed Config used across the service. It applies sensible defaults so the
// bot can run locally with only BOT_NICK and IRC_CHANNELS set. Call Validate
// before connecting.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/onnwee/greeter/irc"
)

// Transports.
const (
	TransportIRC    = "irc"
	TransportTwitch = "twitch"
)

// Defaults applied by Load.
const (
	DefaultServer     = "irc.libera.chat:6667"
	DefaultWaitTime   = 60 * time.Second
	DefaultMinWake    = time.Second
	DefaultNickSource = "nicks.json"
	DefaultHTTPAddr   = ":8080"
)

// Validation errors.
var (
	ErrMissingBotNick      = errors.New("missing bot nick (BOT_NICK)")
	ErrNoRooms             = errors.New("no rooms configured (IRC_CHANNELS or rooms in GREETER_CONFIG)")
	ErrInvalidRoom         = errors.New("invalid room name")
	ErrDuplicateRoom       = errors.New("duplicate room")
	ErrInvalidTransport    = errors.New("invalid transport")
	ErrMissingPassword     = errors.New("registered nick needs NICKSERV_PASSWORD or NICKSERV_PASSWORD_FILE")
	ErrNegativeWaitTime    = errors.New("wait time must not be negative")
	ErrMissingTwitchCreds  = errors.New("twitch transport needs TWITCH_OAUTH_TOKEN or TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET and TWITCH_REFRESH_TOKEN")
	errInvalidDurationText = errors.New("want seconds or a Go duration")
)

// Room configures one channel.
type Room struct {
	Name     string   `yaml:"name"`
	Greeters []string `yaml:"greeters"`
	// Join controls whether the bot joins the channel on connect. Defaults to true.
	Join *bool `yaml:"join"`
	// WaitTime overrides the global wait time for this room when non-zero.
	WaitTime time.Duration `yaml:"wait_time"`
}

// UnmarshalYAML decodes a room, reading a bare integer wait_time as seconds.
func (r *Room) UnmarshalYAML(n *yaml.Node) error {
	secondsAsDuration(n, "wait_time")
	type plain Room
	return n.Decode((*plain)(r))
}

// ShouldJoin reports whether the bot joins the room on connect.
func (r Room) ShouldJoin() bool { return r.Join == nil || *r.Join }

type Config struct {
	// IRC
	Server           string `yaml:"server"`
	Transport        string `yaml:"transport"`
	BotNick          string `yaml:"bot_nick"`
	RealName         string `yaml:"real_name"`
	Registered       bool   `yaml:"registered"`
	NickServPassword string `yaml:"-"`
	Rooms            []Room `yaml:"rooms"`

	// Behavior
	WaitTime   time.Duration `yaml:"wait_time"`
	MinWake    time.Duration `yaml:"min_wake"`
	NickSource string        `yaml:"nick_source"`
	KnownBots  []string      `yaml:"known_bots"`
	HelloList  []string      `yaml:"hello_list"`
	HelpList   []string      `yaml:"help_list"`
	RandSeed   int64         `yaml:"rand_seed"`

	// Text
	WelcomeMessage string `yaml:"welcome_message"`
	HelpMessage    string `yaml:"help_message"`

	// HTTP
	HTTPAddr string `yaml:"http_addr"`

	// Twitch
	TwitchOAuthToken   string `yaml:"-"`
	TwitchClientID     string `yaml:"-"`
	TwitchClientSecret string `yaml:"-"`
	TwitchRefreshToken string `yaml:"-"`
}

// Load applies defaults, then the YAML file named by GREETER_CONFIG (if any),
// then environment variables. Secrets are only read from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Server:     DefaultServer,
		Transport:  TransportIRC,
		WaitTime:   DefaultWaitTime,
		MinWake:    DefaultMinWake,
		NickSource: DefaultNickSource,
		HTTPAddr:   DefaultHTTPAddr,
	}

	if path := os.Getenv("GREETER_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	setString(&cfg.Server, "IRC_SERVER")
	setString(&cfg.Transport, "IRC_TRANSPORT")
	cfg.Transport = strings.ToLower(cfg.Transport)
	setString(&cfg.BotNick, "BOT_NICK")
	setString(&cfg.RealName, "BOT_REALNAME")
	if v := os.Getenv("BOT_REGISTERED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BOT_REGISTERED: %w", err)
		}
		cfg.Registered = b
	}

	cfg.NickServPassword = os.Getenv("NICKSERV_PASSWORD")
	if path := os.Getenv("NICKSERV_PASSWORD_FILE"); path != "" && cfg.NickServPassword == "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read NICKSERV_PASSWORD_FILE: %w", err)
		}
		cfg.NickServPassword = strings.TrimSpace(string(b))
	}

	if v := os.Getenv("IRC_CHANNELS"); v != "" {
		greeters := splitList(os.Getenv("IRC_GREETERS"))
		cfg.Rooms = nil
		for _, name := range splitList(v) {
			cfg.Rooms = append(cfg.Rooms, Room{Name: name, Greeters: greeters})
		}
	}

	var err error
	if cfg.WaitTime, err = envDuration("WAIT_TIME", cfg.WaitTime); err != nil {
		return nil, err
	}
	if cfg.MinWake, err = envDuration("MIN_WAKE", cfg.MinWake); err != nil {
		return nil, err
	}
	setString(&cfg.NickSource, "NICK_SOURCE")
	setList(&cfg.KnownBots, "KNOWN_BOTS")
	setList(&cfg.HelloList, "HELLO_LIST")
	setList(&cfg.HelpList, "HELP_LIST")
	setString(&cfg.WelcomeMessage, "WELCOME_MESSAGE")
	setString(&cfg.HelpMessage, "HELP_MESSAGE")
	if v := os.Getenv("RAND_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RAND_SEED: %w", err)
		}
		cfg.RandSeed = n
	}

	setString(&cfg.HTTPAddr, "HTTP_ADDR")

	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.TwitchRefreshToken = os.Getenv("TWITCH_REFRESH_TOKEN")

	return cfg, nil
}

// UnmarshalYAML decodes the file, reading bare integer durations as seconds
// like the WAIT_TIME and MIN_WAKE variables do.
func (c *Config) UnmarshalYAML(n *yaml.Node) error {
	secondsAsDuration(n, "wait_time", "min_wake")
	type plain Config
	return n.Decode((*plain)(c))
}

// secondsAsDuration rewrites integer values of keys in mapping n to "<n>s".
func secondsAsDuration(n *yaml.Node, keys ...string) {
	if n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode || v.ShortTag() != "!!int" || !slices.Contains(keys, k.Value) {
			continue
		}
		if _, err := strconv.ParseInt(v.Value, 10, 64); err != nil {
			continue
		}
		v.Value += "s"
		v.Tag = "!!str"
		v.Style = 0
	}
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the fields required to connect and greet.
func (c *Config) Validate() error {
	if c.BotNick == "" {
		return ErrMissingBotNick
	}
	switch c.Transport {
	case TransportIRC, TransportTwitch:
	default:
		return fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidTransport, c.Transport, TransportIRC, TransportTwitch)
	}
	if len(c.Rooms) == 0 {
		return ErrNoRooms
	}
	seen := make(map[string]struct{}, len(c.Rooms))
	for _, r := range c.Rooms {
		if !irc.IsChannel(r.Name) {
			return fmt.Errorf("%w: %q", ErrInvalidRoom, r.Name)
		}
		key := strings.ToLower(r.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateRoom, r.Name)
		}
		seen[key] = struct{}{}
		if r.WaitTime < 0 {
			return fmt.Errorf("%w: room %s", ErrNegativeWaitTime, r.Name)
		}
	}
	if c.WaitTime < 0 {
		return ErrNegativeWaitTime
	}
	if c.Registered && c.NickServPassword == "" {
		return ErrMissingPassword
	}
	if c.Transport == TransportTwitch && c.TwitchOAuthToken == "" &&
		(c.TwitchClientID == "" || c.TwitchClientSecret == "" || c.TwitchRefreshToken == "") {
		return ErrMissingTwitchCreds
	}
	return nil
}

// JoinChannels lists the rooms the bot joins on connect, in configured order.
func (c *Config) JoinChannels() []string {
	var out []string
	for _, r := range c.Rooms {
		if r.ShouldJoin() {
			out = append(out, r.Name)
		}
	}
	return out
}

// RoomWaitTime is r's override or the global wait time.
func (c *Config) RoomWaitTime(r Room) time.Duration {
	if r.WaitTime > 0 {
		return r.WaitTime
	}
	return c.WaitTime
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = splitList(v)
	}
}

// splitList splits a comma separated list, trimming blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envDuration reads key as whole seconds ("60") or a Go duration ("1m30s").
func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, errInvalidDurationText)
	}
	return d, nil
}
