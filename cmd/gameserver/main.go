// Command gameserver hosts turn-based text games over TCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/go-gameserver/config"
	"github.com/cyberinferno/go-gameserver/connection"
	"github.com/cyberinferno/go-gameserver/game"
	"github.com/cyberinferno/go-gameserver/game/guessmynumber"
	"github.com/cyberinferno/go-gameserver/logger"
	"github.com/cyberinferno/go-gameserver/metrics"
	"github.com/cyberinferno/go-gameserver/server"
	"github.com/cyberinferno/go-gameserver/status"
	"github.com/cyberinferno/go-gameserver/throttle"
	"github.com/cyberinferno/go-gameserver/utils"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg, loadErr := config.Load()

	cmd := &cobra.Command{
		Use:   "gameserver",
		Short: "Host turn-based text games over TCP",
		Long: `gameserver accepts TCP clients, queues them in a lobby and starts a
game whenever enough players are waiting.

Every flag can also be set with a GAMESERVER_* environment variable;
flags win over the environment.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if loadErr != nil {
				return loadErr
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}

	config.BindFlags(cmd.Flags(), &cfg)
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	log, err := logger.New(logger.Options{
		Service: "gameserver",
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Dir:     cfg.LogDir,
	})
	if err != nil {
		return err
	}
	defer log.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts, cleanup, err := serverOptions(cfg, log, reg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(opts)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})

	if cfg.StatusAddr != "" {
		g.Go(func() error {
			err := status.Serve(ctx, cfg.StatusAddr, status.NewRouter(srv, reg), log.With(logger.F("component", "status")))
			if err != nil {
				return fmt.Errorf("status server: %w", err)
			}

			return nil
		})
	}

	return g.Wait()
}

// serverOptions turns cfg into server.Options. The returned cleanup releases
// whatever the options hold open.
func serverOptions(cfg config.Config, log logger.Logger, reg prometheus.Registerer) (server.Options, func(), error) {
	factory, err := newFactory(cfg, log.With(logger.F("component", "game")))
	if err != nil {
		return server.Options{}, nil, err
	}

	conn := connection.DefaultOptions()
	conn.FrameTimeout = cfg.FrameTimeout
	conn.ProbeTimeout = cfg.ProbeTimeout
	conn.ReceiveFrameTimeout = cfg.ReceiveFrameTimeout

	opts := server.Options{
		Name:            cfg.Name,
		Addr:            cfg.Addr,
		Factory:         factory,
		TickInterval:    cfg.TickInterval,
		DisconnectGrace: cfg.DisconnectGrace,
		AcceptGrace:     cfg.AcceptGrace,
		SessionGrace:    cfg.SessionGrace,
		Connection:      conn,
		Metrics:         metrics.New(metrics.DefaultNamespace, reg),
		Logger:          log,
	}

	cleanup := func() {}
	if cfg.ThrottleLimit > 0 {
		if cfg.RedisAddr != "" {
			client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			opts.Limiter = throttle.NewRedis(client, cfg.ThrottleLimit, cfg.ThrottleWindow)
			cleanup = func() { _ = client.Close() }
		} else {
			opts.Limiter = throttle.NewMemory(cfg.ThrottleLimit, cfg.ThrottleWindow)
		}
	}

	if cfg.NotifyWebhook != "" {
		webhook := cfg.NotifyWebhook
		opts.Notify = func(ctx context.Context, content string) error {
			return utils.SendDiscordNotification(ctx, webhook, content)
		}
	}

	return opts, cleanup, nil
}

var errUnknownGame = errors.New("unknown game")

func newFactory(cfg config.Config, log logger.Logger) (game.Factory, error) {
	switch cfg.Game {
	case "guessmynumber":
		return guessmynumber.NewFactory(guessmynumber.Options{
			Players:     cfg.Players,
			TurnTimeout: cfg.TurnTimeout,
		}, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownGame, cfg.Game)
	}
}
