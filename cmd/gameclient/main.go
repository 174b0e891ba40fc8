// Command gameclient is an interactive terminal client for gameserver.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/go-gameserver/gameclient"
	"github.com/cyberinferno/go-gameserver/packet"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:           "gameclient [address]",
		Short:         "Play on a game server from the terminal",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := "localhost:6000"
			if len(args) == 1 {
				addr = args[0]
			}

			cfg := gameclient.DefaultConfig(addr)
			cfg.ConnectionTimeout = timeout

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return play(ctx, gameclient.New(cfg), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "Connection timeout")
	return cmd
}

// play prints what the server says and answers input prompts with lines read
// from in. It returns when the server ends the connection or ctx is done, in
// which case a bye is sent first.
func play(ctx context.Context, c *gameclient.Client, in io.Reader, out io.Writer) error {
	prompts := make(chan struct{}, 1)
	c.OnPacket(func(e gameclient.PacketEvent) {
		switch e.Packet.Command {
		case packet.Input:
			fmt.Fprint(out, e.Packet.Message, " ")
			select {
			case prompts <- struct{}{}:
			default:
			}
		default:
			fmt.Fprintln(out, e.Packet.Message)
		}
	})

	if err := c.Connect(); err != nil {
		return err
	}
	defer c.Close()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-c.Done():
			return nil
		case <-ctx.Done():
			return c.Send(packet.New(packet.Bye, ""))
		case <-prompts:
		}

		select {
		case <-c.Done():
			return nil
		case <-ctx.Done():
			return c.Send(packet.New(packet.Bye, ""))
		case line, ok := <-lines:
			if !ok {
				return c.Send(packet.New(packet.Bye, ""))
			}

			if err := c.Send(packet.New(packet.Input, line)); err != nil {
				return err
			}
		}
	}
}
