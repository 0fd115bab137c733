package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-rpc-client/internal/app"
	"github.com/samvad-hq/samvad-rpc-client/internal/config"
	"github.com/samvad-hq/samvad-rpc-client/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s%v\n", app.ErrorPrefix, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rpcclient",
		Short: "Interactive client for binary RPC servers over HTTP",
		Long: `rpcclient reads one request per line from stdin, sends it to the RPC
server with an HTTP POST and prints the server answer. Failed calls are
printed as "Error: <message>" and the session continues.

Commands inside the session:
  \history [n]   show the last n recorded calls (needs --journal bbolt)
  \quit          leave the session`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, "session", func(ctx context.Context, s *app.Session) error {
				return s.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
	config.RegisterFlags(root.PersistentFlags())
	root.AddCommand(newSendCmd())
	return root
}

func newSendCmd() *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a single request and write the raw answer to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload := []byte(data)
			if !cmd.Flags().Changed("data") {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read request: %w", err)
				}
				payload = raw
			}
			return withSession(cmd, "send", func(ctx context.Context, s *app.Session) error {
				return s.SendOnce(ctx, payload, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "request payload (read from stdin when omitted)")
	return cmd
}

// withSession loads config, starts logging and runs fn against a fresh session.
func withSession(cmd *cobra.Command, mode string, fn func(context.Context, *app.Session) error) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.DebugObj("rpcclient starting", "config", map[string]any{"mode": mode, "config": cfg})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := app.NewSession(cfg, logger.Zap{})
	if err != nil {
		logger.ErrorObj("failed to initialize session", "error", err.Error())
		return err
	}
	defer session.Close()

	return fn(ctx, session)
}
