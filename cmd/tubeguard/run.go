package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tubeguard/internal/bridge"
	"tubeguard/internal/browser"
	"tubeguard/internal/engine"
	"tubeguard/internal/settings"
)

type runOptions struct {
	remote   string
	headless bool
	profile  string
	url      string
	addr     string
	noServer bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open YouTube in a browser and keep suppression applied until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err := runSession(sigCtx, ctx, cmd, opts)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	def := browser.DefaultConfig()
	cmd.Flags().StringVar(&opts.remote, "remote", def.RemoteURL, "DevTools websocket URL of a running browser")
	cmd.Flags().BoolVar(&opts.headless, "headless", def.Headless, "Launch the browser headless")
	cmd.Flags().StringVar(&opts.profile, "profile", def.UserDataDir, "Browser profile directory")
	cmd.Flags().StringVar(&opts.url, "url", def.StartURL, "Page to open")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Bridge listen address")
	cmd.Flags().BoolVar(&opts.noServer, "no-server", false, "Do not expose the settings bridge over HTTP")
	return cmd
}

func runSession(ctx context.Context, cc *commandContext, cmd *cobra.Command, opts runOptions) error {
	logger := cc.logger
	store, err := cc.store()
	if err != nil {
		return err
	}

	b := bridge.New(bridge.Config{Store: store, Logger: logger})
	if err := b.Start(ctx); err != nil {
		// Defaults stay in effect; the status endpoint reports the failure.
		logger.Printf("SETTINGS %v", err)
	}
	defer b.Close()
	store.Watch(ctx, settings.WatchInterval())

	bcfg := browser.DefaultConfig()
	bcfg.RemoteURL = opts.remote
	bcfg.Headless = opts.headless
	bcfg.UserDataDir = opts.profile
	bcfg.StartURL = opts.url
	bcfg.Logger = logger
	drv, err := browser.Launch(ctx, bcfg)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer drv.Close()
	b.AddFlagWriter(drv)

	ecfg := engine.DefaultConfig()
	ecfg.Logger = logger
	eng, err := engine.New(drv, b.Snapshot(), ecfg)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer b.Subscribe(func(settings.Settings) {
		eng.Post(engine.Event{Kind: engine.SettingsUpdated})
	})()
	// The toggle travels through the page as a custom event and comes back
	// on the binding as an endscreen event.
	defer b.OnEndscreen(func(ev bridge.EndscreenEvent) {
		if err := drv.DispatchEndscreen(ctx, ev.BlockEndscreen); err != nil {
			logger.Printf("BROWSER %v", err)
		}
	})()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go eng.Run(runCtx)
	go forwardEvents(runCtx, drv, b, eng, logger)

	serverErr := make(chan error, 1)
	if !opts.noServer {
		scfg := bridge.DefaultServerConfig()
		if opts.addr != "" {
			scfg.Addr = opts.addr
		}
		scfg.Logger = logger
		srv := bridge.NewServer(b, scfg)
		go func() { serverErr <- srv.ListenAndServe(runCtx) }()
	}

	if err := drv.Open(ctx, opts.url); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tubeguard running on %s (settings %s)\n", opts.url, store.Path())

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-drv.Done():
		logger.Printf("BROWSER session ended")
		return nil
	case err := <-serverErr:
		return err
	}
}

// flagSource is the part of the bridge the event forwarder reads.
type flagSource interface {
	Current() settings.Settings
}

// forwardEvents moves page signals into the engine. A fresh document also
// gets the local flag mirror so the next hard load paints correctly before
// any message round trip.
func forwardEvents(ctx context.Context, drv *browser.Driver, src flagSource, eng *engine.Engine, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-drv.Done():
			return
		case pe := <-drv.Events():
			if pe.Kind == browser.KindLoad {
				if err := drv.WriteLocalFlags(ctx, settings.LocalFlags(src.Current())); err != nil {
					logger.Printf("BROWSER %v", err)
				}
			}
			if ev, ok := translate(pe); ok {
				eng.Post(ev)
			}
		}
	}
}

// translate maps a page signal to an engine event.
func translate(pe browser.Event) (engine.Event, bool) {
	ev := engine.Event{URL: pe.URL}
	switch pe.Kind {
	case browser.KindLoad:
		ev.Kind = engine.HardLoad
	case browser.KindNavigateStart:
		ev.Kind = engine.NavigateStart
	case browser.KindNavigateFinish:
		ev.Kind = engine.NavigateFinish
	case browser.KindPageData:
		ev.Kind = engine.PageDataUpdated
	case browser.KindReadyState:
		ev.Kind = engine.ReadyState
		ev.ReadyState = pe.ReadyState
	case browser.KindMutations:
		ev.Kind = engine.Mutations
		ev.Batch = pe.Batch
	case browser.KindPlayerMutations:
		ev.Kind = engine.PlayerMutations
	case browser.KindPlaying:
		ev.Kind = engine.Playing
	case browser.KindGesture:
		ev.Kind = engine.Gesture
		ev.Trusted = pe.Trusted
	case browser.KindEndscreen:
		ev.Kind = engine.EndscreenToggled
		ev.On = pe.BlockEndscreen
	default:
		return engine.Event{}, false
	}
	return ev, true
}
