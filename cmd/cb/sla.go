package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/changeboard/internal/bcr"
	"github.com/zulandar/changeboard/internal/events"
	"github.com/zulandar/changeboard/internal/models"
	"github.com/zulandar/changeboard/internal/notify"
	"github.com/zulandar/changeboard/internal/scheduler"
	"github.com/zulandar/changeboard/internal/sla"
)

func newSLACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sla",
		Short: "Service level commands",
	}

	cmd.AddCommand(newSLAReportCmd())
	cmd.AddCommand(newSLASweepCmd())
	cmd.AddCommand(newSLADigestCmd())
	return cmd
}

func newSLAReportCmd() *cobra.Command {
	var (
		configPath string
		breached   bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show SLA status of open change requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSLAReport(cmd, configPath, breached)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&breached, "breached", false, "only show requests with a red stage")
	return cmd
}

func runSLAReport(cmd *cobra.Command, configPath string, breachedOnly bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	list, err := bcr.List(gormDB, bcr.ListFilters{})
	if err != nil {
		return err
	}

	now := time.Now()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tSTATUS\tASSIGNMENT\tDECISION\tIMPLEMENTATION")
	rows := 0
	for i := range list {
		b := &list[i]
		if models.IsTerminalStatus(b.Status) {
			continue
		}
		res := sla.Calculate(sla.InputFor(b), cfg.SLA, now)
		if breachedOnly && !res.Assignment.Breached() && !res.Decision.Breached() && !res.Implementation.Breached() {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.BcrNumber, b.Status,
			res.Assignment.Status, res.Decision.Status, res.Implementation.Status)
		rows++
	}
	w.Flush()
	if rows == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No open change requests match.")
	}
	return nil
}

func newSLASweepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Record SLA breaches once",
		Long:  "Runs the SLA breach sweep that serve schedules, recording an alert per newly breached stage.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSLASweep(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runSLASweep(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	multi, err := buildNotifier(cfg.Notify)
	if err != nil {
		return err
	}
	// Deliver synchronously; the process exits right after the sweep.
	failed := 0
	deliver := events.ObserverFunc(func(ctx context.Context, ch events.Change) {
		if multi.Len() == 0 || !notify.Relevant(ch.Kind) {
			return
		}
		if err := multi.Notify(ctx, notify.FromChange(ch, cfg.Server.BaseURL)); err != nil {
			failed++
		}
	})

	n, err := scheduler.SweepSLA(context.Background(), gormDB, cfg.SLA, time.Now(), events.Observers{deliver})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d new SLA breach(es) recorded\n", n)
	if failed > 0 {
		fmt.Fprintf(out, "%d notification(s) failed\n", failed)
	}
	return nil
}

func newSLADigestCmd() *cobra.Command {
	var (
		configPath string
		send       bool
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Show the activity digest for the last 24 hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSLADigest(cmd, configPath, send)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&send, "send", false, "post the digest to the configured chat targets")
	return cmd
}

func runSLADigest(cmd *cobra.Command, configPath string, send bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	now := time.Now()

	d, err := scheduler.BuildDigest(ctx, gormDB, now.Add(-24*time.Hour), now)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ev := scheduler.FormatDigest(d, cfg.Server.BaseURL)
	fmt.Fprintf(out, "%s\n%s\n", ev.Title, ev.Summary)
	if !send {
		return nil
	}

	multi, err := buildNotifier(cfg.Notify)
	if err != nil {
		return err
	}
	if multi.Len() == 0 {
		return fmt.Errorf("no chat targets configured")
	}
	if err := multi.Notify(ctx, ev); err != nil {
		return err
	}
	fmt.Fprintln(out, "Digest sent.")
	return nil
}
