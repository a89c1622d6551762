package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/changeboard/internal/config"
	"github.com/zulandar/changeboard/internal/counters"
	"github.com/zulandar/changeboard/internal/events"
	"github.com/zulandar/changeboard/internal/notify"
	"github.com/zulandar/changeboard/internal/notify/discord"
	"github.com/zulandar/changeboard/internal/notify/slack"
	"github.com/zulandar/changeboard/internal/scheduler"
	"github.com/zulandar/changeboard/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web application",
		Long:  "Serves the Changeboard pages and JSON API, runs scheduled jobs, and posts chat notifications.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

// buildNotifier returns the chat targets enabled in cfg.
func buildNotifier(cfg config.NotifyConfig) (*notify.Multi, error) {
	var targets []notify.Named
	if cfg.Slack.Enabled() {
		n, err := slack.New(slack.Opts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		targets = append(targets, notify.Named{Name: "slack", Notifier: n})
	}
	if cfg.Discord.Enabled() {
		n, err := discord.New(discord.Opts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		targets = append(targets, notify.Named{Name: "discord", Notifier: n})
	}
	return notify.NewMulti(targets...), nil
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if port == 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	agg := counters.New(gormDB, cfg.Counters.TTL)
	observers := events.Observers{}

	multi, err := buildNotifier(cfg.Notify)
	if err != nil {
		return err
	}
	if multi.Len() > 0 {
		pub := notify.NewPublisher(multi, cfg.Server.BaseURL)
		go pub.Run(ctx)
		defer pub.Close()
		observers = append(observers, pub)
		fmt.Fprintf(out, "Chat notifications enabled (%d target(s))\n", multi.Len())
	}

	schedOpts := scheduler.Opts{
		DB:        gormDB,
		Schedule:  cfg.Schedule,
		SLA:       cfg.SLA,
		Counters:  agg,
		Observers: append(events.Observers{agg}, observers...),
		BaseURL:   cfg.Server.BaseURL,
	}
	if multi.Len() > 0 {
		schedOpts.Notifier = multi
	}
	sched, err := scheduler.New(schedOpts)
	if err != nil {
		return err
	}
	if sched.Jobs() > 0 {
		sched.Start()
		defer sched.Stop()
		fmt.Fprintf(out, "Scheduler running %d job(s)\n", sched.Jobs())
	}

	return web.Start(ctx, web.StartOpts{
		DB:        gormDB,
		Config:    cfg,
		Port:      port,
		Out:       out,
		Counters:  agg,
		Observers: observers,
	})
}
