package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tubeguard/internal/bridge"
	"tubeguard/internal/settings"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the settings bridge over HTTP without a browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := ctx.store()
			if err != nil {
				return err
			}
			b := bridge.New(bridge.Config{Store: store, Logger: ctx.logger})
			if err := b.Start(sigCtx); err != nil {
				ctx.logger.Printf("SETTINGS %v", err)
			}
			defer b.Close()
			store.Watch(sigCtx, settings.WatchInterval())

			cfg := bridge.DefaultServerConfig()
			if addr != "" {
				cfg.Addr = addr
			}
			cfg.Logger = ctx.logger
			err = bridge.NewServer(b, cfg).ListenAndServe(sigCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default $TUBEGUARD_ADDR or 127.0.0.1:8765)")
	return cmd
}
