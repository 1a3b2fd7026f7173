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
	"github.com/zulandar/obras/internal/backup"
	"github.com/zulandar/obras/internal/dashboard"
	"github.com/zulandar/obras/internal/fases"
	"github.com/zulandar/obras/internal/metrics"
)

func newDashboardCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Start the web dashboard",
		Long:  "Serves the contract overview and JSON API, streams phase events to chat channels and runs scheduled backups until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, configPath, port)
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	return cmd
}

func runDashboard(cmd *cobra.Command, configPath string, port int) error {
	m := metrics.New()
	cfg, store, err := openFromConfig(configPath, m)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.Dashboard.Port
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	events := dashboard.NewEvents()
	hooks := []func(fases.Event){events.Publish}

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}
	if notifier != nil {
		if err := notifier.Start(ctx); err != nil {
			log.Printf("obras: notifications disabled: %v", err)
		} else {
			defer notifier.Close()
			hooks = append(hooks, notifier.Hook)
		}
	}

	tracker := fases.New(store, fases.Options{
		Metrics: m,
		Hook: func(ev fases.Event) {
			for _, h := range hooks {
				h(ev)
			}
		},
	})

	if cfg.Backup.Schedule != "" {
		b, err := newBackup(ctx, cfg, store, m)
		if err != nil {
			return err
		}
		sched, err := backup.NewScheduler(b, cfg.Backup.Schedule)
		if err != nil {
			return err
		}
		go func() {
			if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("obras: backup scheduler: %v", err)
			}
		}()
	}

	err = dashboard.Start(ctx, dashboard.StartOpts{
		Store:   store,
		Tracker: tracker,
		Metrics: m,
		Events:  events,
		Port:    port,
		Out:     cmd.OutOrStdout(),
	})
	if store.Dirty() {
		if cerr := store.Commit(); cerr != nil {
			return errors.Join(err, cerr)
		}
	}
	return err
}
