// Package config loads the game server settings.
//
// Precedence (highest wins): command line flags, GAMESERVER_* environment
// variables, defaults.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	flag "github.com/spf13/pflag"

	"github.com/cyberinferno/go-gameserver/logger"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Games lists the values accepted for Config.Game.
var Games = []string{"guessmynumber"}

// Config holds every server setting.
type Config struct {
	Name    string `env:"GAMESERVER_NAME"    envDefault:"Games"`
	Addr    string `env:"GAMESERVER_ADDR"    envDefault:":6000"`
	Game    string `env:"GAMESERVER_GAME"    envDefault:"guessmynumber"`
	Players int    `env:"GAMESERVER_PLAYERS" envDefault:"2"`

	TurnTimeout     time.Duration `env:"GAMESERVER_TURN_TIMEOUT"     envDefault:"0s"`
	TickInterval    time.Duration `env:"GAMESERVER_TICK_INTERVAL"    envDefault:"10ms"`
	DisconnectGrace time.Duration `env:"GAMESERVER_DISCONNECT_GRACE" envDefault:"100ms"`
	AcceptGrace     time.Duration `env:"GAMESERVER_ACCEPT_GRACE"     envDefault:"1s"`
	SessionGrace    time.Duration `env:"GAMESERVER_SESSION_GRACE"    envDefault:"2s"`
	FrameTimeout    time.Duration `env:"GAMESERVER_FRAME_TIMEOUT"    envDefault:"1s"`
	ProbeTimeout    time.Duration `env:"GAMESERVER_PROBE_TIMEOUT"    envDefault:"1ms"`

	ReceiveFrameTimeout time.Duration `env:"GAMESERVER_RECEIVE_FRAME_TIMEOUT" envDefault:"50ms"`

	ThrottleLimit  int           `env:"GAMESERVER_THROTTLE_LIMIT"  envDefault:"0"`
	ThrottleWindow time.Duration `env:"GAMESERVER_THROTTLE_WINDOW" envDefault:"1m"`
	RedisAddr      string        `env:"GAMESERVER_REDIS_ADDR"`

	StatusAddr    string `env:"GAMESERVER_STATUS_ADDR"`
	LogLevel      string `env:"GAMESERVER_LOG_LEVEL"      envDefault:"info"`
	LogFormat     string `env:"GAMESERVER_LOG_FORMAT"     envDefault:"console"`
	LogDir        string `env:"GAMESERVER_LOG_DIR"`
	NotifyWebhook string `env:"GAMESERVER_NOTIFY_WEBHOOK"`
}

// Load reads the configuration from the environment on top of the defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// Default returns the defaults alone, ignoring the environment.
func Default() Config {
	var cfg Config
	_ = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

// BindFlags registers one flag per setting on fs. Flag defaults are taken
// from cfg, so parsing fs only overrides what was passed explicitly.
//
// Parameters:
//   - fs: The flag set to register on
//   - cfg: Receives parsed values; its current values become the defaults
func BindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.Name, "name", "n", cfg.Name, "Server name shown in the welcome message")
	fs.StringVarP(&cfg.Addr, "addr", "a", cfg.Addr, "TCP listen address")
	fs.StringVarP(&cfg.Game, "game", "g", cfg.Game, "Game to host")
	fs.IntVarP(&cfg.Players, "players", "p", cfg.Players, "Players per game")
	fs.DurationVar(&cfg.TurnTimeout, "turn-timeout", cfg.TurnTimeout, "Skip a player's turn after this long (0 waits forever)")

	fs.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "Server loop tick interval")
	fs.DurationVar(&cfg.DisconnectGrace, "disconnect-grace", cfg.DisconnectGrace, "Delay between a bye and closing the connection")
	fs.DurationVar(&cfg.AcceptGrace, "accept-grace", cfg.AcceptGrace, "Wait for in-flight handshakes at shutdown")
	fs.DurationVar(&cfg.SessionGrace, "session-grace", cfg.SessionGrace, "Wait for running games at shutdown")
	fs.DurationVar(&cfg.FrameTimeout, "frame-timeout", cfg.FrameTimeout, "Limit for reading the rest of a started frame")
	fs.DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "Wait used by non-blocking reads")
	fs.DurationVar(&cfg.ReceiveFrameTimeout, "receive-frame-timeout", cfg.ReceiveFrameTimeout, "Limit for reading the rest of a frame sent by a waiting client")

	fs.IntVar(&cfg.ThrottleLimit, "throttle-limit", cfg.ThrottleLimit, "Connections allowed per host per window (0 disables)")
	fs.DurationVar(&cfg.ThrottleWindow, "throttle-window", cfg.ThrottleWindow, "Throttle window")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address for a shared throttle")

	fs.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "HTTP address for /healthz, /status and /metrics")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: console or json")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for daily log files")
	fs.StringVar(&cfg.NotifyWebhook, "notify-webhook", cfg.NotifyWebhook, "Discord webhook for start and stop notices")
}

// Validate checks the settings and reports every problem found.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if c.Name == "" {
		invalid("name must not be empty")
	}

	if c.Addr == "" {
		invalid("addr must not be empty")
	}

	if !isGame(c.Game) {
		invalid("unknown game %q (available: %v)", c.Game, Games)
	}

	if c.Players < 1 {
		invalid("players must be at least 1, got %d", c.Players)
	}

	if c.TurnTimeout < 0 {
		invalid("turn timeout must not be negative")
	}

	for name, d := range map[string]time.Duration{
		"tick":                  c.TickInterval,
		"disconnect grace":      c.DisconnectGrace,
		"accept grace":          c.AcceptGrace,
		"session grace":         c.SessionGrace,
		"frame timeout":         c.FrameTimeout,
		"probe timeout":         c.ProbeTimeout,
		"receive frame timeout": c.ReceiveFrameTimeout,
	} {
		if d <= 0 {
			invalid("%s must be positive, got %s", name, d)
		}
	}

	if c.ThrottleLimit < 0 {
		invalid("throttle limit must not be negative")
	}

	if c.ThrottleLimit > 0 && c.ThrottleWindow <= 0 {
		invalid("throttle window must be positive when throttling")
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		invalid("log level: %v", err)
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		invalid("log format must be console or json, got %q", c.LogFormat)
	}

	return errors.Join(errs...)
}

func isGame(name string) bool {
	for _, g := range Games {
		if g == name {
			return true
		}
	}

	return false
}
