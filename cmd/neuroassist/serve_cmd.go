package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/neuroassist/neuroassist/pkg/bus"
	"github.com/neuroassist/neuroassist/pkg/dispatch"
	"github.com/neuroassist/neuroassist/pkg/engine"
	"github.com/neuroassist/neuroassist/pkg/gateway"
	"github.com/neuroassist/neuroassist/pkg/logger"
	"github.com/neuroassist/neuroassist/pkg/schedule"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept commands over WebSocket and run configured schedules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}
		if serveListen != "" {
			cfg.Gateway.Listen = serveListen
		}

		rt, err := engine.FromConfig(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		sched, err := schedule.New(cfg.Schedules, rt.Engine)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		messageBus := bus.NewMessageBus()
		defer messageBus.Close()
		dispatcher := dispatch.NewDispatcher(messageBus, rt.Engine)
		server := gateway.New(cfg.Gateway.Listen, messageBus, dispatcher)

		fmt.Printf("%s %s listening on ws://%s/ws\n", logo, displayName, cfg.Gateway.Listen)
		if n := len(sched.Entries()); n > 0 {
			fmt.Printf("  %d schedule(s) active\n", n)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return dispatcher.Run(gctx) })
		g.Go(func() error { return server.ListenAndServe(gctx) })
		g.Go(func() error { return sched.Run(gctx) })

		err = g.Wait()
		logger.InfoCF("serve", "Stopped", map[string]interface{}{"running": len(rt.Engine.Running())})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "override gateway listen address")
	rootCmd.AddCommand(serveCmd)
}
