package config

import (
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Setenv("GAMESERVER_NAME", "ignored")
	cfg := Default()

	assert.Equal(t, "Games", cfg.Name)
	assert.Equal(t, ":6000", cfg.Addr)
	assert.Equal(t, "guessmynumber", cfg.Game)
	assert.Equal(t, 2, cfg.Players)
	assert.Equal(t, 10*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.DisconnectGrace)
	assert.Equal(t, time.Second, cfg.AcceptGrace)
	assert.Equal(t, 2*time.Second, cfg.SessionGrace)
	assert.Equal(t, time.Second, cfg.FrameTimeout)
	assert.Equal(t, time.Millisecond, cfg.ProbeTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.ReceiveFrameTimeout)
	assert.Equal(t, time.Minute, cfg.ThrottleWindow)
	assert.Zero(t, cfg.ThrottleLimit)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Empty(t, cfg.StatusAddr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("GAMESERVER_NAME", "Arcade")
	t.Setenv("GAMESERVER_ADDR", "127.0.0.1:7000")
	t.Setenv("GAMESERVER_PLAYERS", "3")
	t.Setenv("GAMESERVER_TICK_INTERVAL", "25ms")
	t.Setenv("GAMESERVER_THROTTLE_LIMIT", "5")
	t.Setenv("GAMESERVER_REDIS_ADDR", "localhost:6379")
	t.Setenv("GAMESERVER_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Arcade", cfg.Name)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	assert.Equal(t, 3, cfg.Players)
	assert.Equal(t, 25*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 5, cfg.ThrottleLimit)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, time.Second, cfg.AcceptGrace, "unset variables keep their default")
}

func TestLoad_BadValue(t *testing.T) {
	t.Setenv("GAMESERVER_PLAYERS", "many")

	_, err := Load()
	assert.ErrorContains(t, err, "parse env")
}

func TestBindFlags_OverrideEnv(t *testing.T) {
	t.Setenv("GAMESERVER_NAME", "FromEnv")
	t.Setenv("GAMESERVER_PLAYERS", "4")

	cfg, err := Load()
	require.NoError(t, err)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	BindFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"--name", "FromFlag", "--tick", "50ms"}))

	assert.Equal(t, "FromFlag", cfg.Name)
	assert.Equal(t, 4, cfg.Players, "env value survives when the flag is absent")
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval)
}

func TestBindFlags_Shorthands(t *testing.T) {
	cfg := Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	BindFlags(fs, &cfg)

	require.NoError(t, fs.Parse([]string{"-a", ":7000", "-p", "1", "-g", "guessmynumber", "-n", "Short"}))
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, 1, cfg.Players)
	assert.Equal(t, "Short", cfg.Name)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty name", func(c *Config) { c.Name = "" }, "name must not be empty"},
		{"empty addr", func(c *Config) { c.Addr = "" }, "addr must not be empty"},
		{"unknown game", func(c *Config) { c.Game = "chess" }, `unknown game "chess"`},
		{"no players", func(c *Config) { c.Players = 0 }, "players must be at least 1"},
		{"negative turn timeout", func(c *Config) { c.TurnTimeout = -time.Second }, "turn timeout"},
		{"zero tick", func(c *Config) { c.TickInterval = 0 }, "tick must be positive"},
		{"zero frame timeout", func(c *Config) { c.FrameTimeout = 0 }, "frame timeout must be positive"},
		{"zero receive frame timeout", func(c *Config) { c.ReceiveFrameTimeout = 0 }, "receive frame timeout must be positive"},
		{"negative throttle", func(c *Config) { c.ThrottleLimit = -1 }, "throttle limit"},
		{"throttle without window", func(c *Config) { c.ThrottleLimit = 3; c.ThrottleWindow = 0 }, "throttle window"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Name = ""
	cfg.Players = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name must not be empty")
	assert.Contains(t, err.Error(), "players must be at least 1")
}
