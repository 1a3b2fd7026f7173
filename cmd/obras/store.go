package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/zulandar/obras/internal/config"
	"github.com/zulandar/obras/internal/docstore"
	"github.com/zulandar/obras/internal/fases"
	"github.com/zulandar/obras/internal/metrics"
	"github.com/zulandar/obras/internal/obra"
	"github.com/zulandar/obras/internal/telegraph"
	"github.com/zulandar/obras/internal/telegraph/discord"
	"github.com/zulandar/obras/internal/telegraph/slack"
)

const defaultConfigPath = "obras.yaml"

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to obras config file")
}

// openFromConfig loads the config and opens the record store it points at.
func openFromConfig(configPath string, m *metrics.Metrics) (*config.Config, *obra.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	backend, err := docstore.Open(cfg.Document)
	if err != nil {
		return nil, nil, fmt.Errorf("open document: %w", err)
	}

	store, err := obra.Open(backend, obra.Options{Firmantes: cfg.Firmantes, Metrics: m})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", backend.Name(), err)
	}
	return cfg, store, nil
}

// buildAdapters returns one chat adapter per configured channel.
func buildAdapters(cfg *config.Config) ([]telegraph.Adapter, error) {
	var adapters []telegraph.Adapter
	if cfg.Notify.Slack.Enabled() {
		a, err := slack.New(slack.AdapterOpts{
			BotToken:  cfg.Notify.Slack.BotToken,
			ChannelID: cfg.Notify.Slack.Channel,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	if cfg.Notify.Discord.Enabled() {
		a, err := discord.New(discord.AdapterOpts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Discord.Channel,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

// newNotifier returns nil when no chat channel is configured.
func newNotifier(cfg *config.Config) (*telegraph.Notifier, error) {
	adapters, err := buildAdapters(cfg)
	if err != nil {
		return nil, err
	}
	if len(adapters) == 0 {
		return nil, nil
	}
	return telegraph.NewNotifier(telegraph.NotifierOpts{Adapters: adapters})
}

// notifyEvents posts phase events to the configured channels. Delivery
// problems are logged; the phase change itself is already stored.
func notifyEvents(ctx context.Context, cfg *config.Config, events []fases.Event) {
	if len(events) == 0 {
		return
	}
	n, err := newNotifier(cfg)
	if err != nil {
		log.Printf("obras: notifications disabled: %v", err)
		return
	}
	if n == nil {
		return
	}
	defer n.Close()
	if err := n.Connect(ctx); err != nil {
		log.Printf("obras: %v", err)
		return
	}
	for _, ev := range events {
		if err := n.Send(ctx, ev); err != nil {
			log.Printf("obras: notify %s %s: %v", ev.Kind, ev.Phase, err)
		}
	}
}
