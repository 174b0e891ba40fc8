package main

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/go-gameserver/config"
	"github.com/cyberinferno/go-gameserver/logger"
	"github.com/cyberinferno/go-gameserver/throttle"
)

func TestServerOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Name = "Arcade"
	cfg.Addr = "127.0.0.1:0"
	cfg.FrameTimeout = 3 * time.Second
	cfg.TickInterval = 20 * time.Millisecond

	opts, cleanup, err := serverOptions(cfg, logger.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "Arcade", opts.Name)
	assert.Equal(t, "127.0.0.1:0", opts.Addr)
	assert.Equal(t, 20*time.Millisecond, opts.TickInterval)
	assert.Equal(t, 3*time.Second, opts.Connection.FrameTimeout)
	assert.NotNil(t, opts.Factory)
	assert.NotNil(t, opts.Metrics)
	assert.Nil(t, opts.Limiter, "throttling is off by default")
	assert.Nil(t, opts.Notify)
}

func TestServerOptions_Throttle(t *testing.T) {
	cfg := config.Default()
	cfg.ThrottleLimit = 2

	opts, cleanup, err := serverOptions(cfg, logger.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &throttle.Memory{}, opts.Limiter)

	cfg.RedisAddr = "127.0.0.1:6379"
	opts, cleanup, err = serverOptions(cfg, logger.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &throttle.Redis{}, opts.Limiter)
}

func TestServerOptions_Notify(t *testing.T) {
	cfg := config.Default()
	cfg.NotifyWebhook = "http://127.0.0.1:1/webhook"

	opts, cleanup, err := serverOptions(cfg, logger.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, opts.Notify)
}

func TestNewFactory(t *testing.T) {
	cfg := config.Default()
	cfg.Players = 3

	factory, err := newFactory(cfg, logger.Nop())
	require.NoError(t, err)

	g := factory(nil)
	assert.Equal(t, "Guess My Number", g.Name())
	assert.Equal(t, 3, g.RequiredPlayers())

	cfg.Game = "chess"
	_, err = newFactory(cfg, logger.Nop())
	assert.ErrorIs(t, err, errUnknownGame)
}

func TestRootCmd_RejectsInvalidFlags(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"--players", "0"})

	err := cmd.Execute()
	assert.ErrorIs(t, err, config.ErrInvalid)
}
