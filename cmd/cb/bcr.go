package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/changeboard/internal/bcr"
	"github.com/zulandar/changeboard/internal/refdata"
	"github.com/zulandar/changeboard/internal/sla"
	"github.com/zulandar/changeboard/internal/workflow"
)

func newBcrCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bcr",
		Short: "Business change request commands",
	}

	cmd.AddCommand(newBcrListCmd())
	cmd.AddCommand(newBcrShowCmd())
	cmd.AddCommand(newBcrSubmitCmd())
	cmd.AddCommand(newBcrApplyCmd())
	return cmd
}

func newBcrListCmd() *cobra.Command {
	var (
		configPath string
		filters    bcr.ListFilters
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List change requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBcrList(cmd, configPath, filters)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status")
	cmd.Flags().StringVar(&filters.Urgency, "urgency", "", "filter by urgency")
	cmd.Flags().StringVarP(&filters.Search, "search", "s", "", "match number or title")
	cmd.Flags().IntVarP(&filters.Limit, "limit", "n", 0, "maximum rows")
	return cmd
}

func runBcrList(cmd *cobra.Command, configPath string, filters bcr.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	list, err := bcr.List(gormDB, filters)
	if err != nil {
		return err
	}
	phases, err := workflow.AllPhases(gormDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No change requests found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tTITLE\tSTATUS\tPHASE\tURGENCY\tASSIGNEE")
	for _, b := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			b.BcrNumber, truncate(b.Title, 40), b.Status,
			workflow.PhaseName(phases, b.CurrentPhaseID), orDash(b.Urgency), orDash(b.AssignedTo))
	}
	w.Flush()
	return nil
}

func newBcrShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <number>",
		Short: "Show change request details",
		Long:  "Displays a change request with its submission, SLA status and workflow history.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBcrShow(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runBcrShow(cmd *cobra.Command, configPath, number string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	b, err := bcr.Get(gormDB, number)
	if err != nil {
		return err
	}
	phases, err := workflow.AllPhases(gormDB)
	if err != nil {
		return err
	}
	history, err := bcr.History(gormDB, b.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s\n", b.BcrNumber, b.Title)
	fmt.Fprintf(out, "Status:       %s\n", b.Status)
	fmt.Fprintf(out, "Phase:        %s (%s)\n", workflow.PhaseName(phases, b.CurrentPhaseID), workflow.CurrentStatus(phases, b, history))
	fmt.Fprintf(out, "Urgency:      %s (priority %d)\n", orDash(b.Urgency), b.Priority)
	fmt.Fprintf(out, "Impact:       %s\n", orDash(strings.Join(refdata.SplitList(b.ImpactAreas), ", ")))
	fmt.Fprintf(out, "Requested by: %s\n", orDash(b.RequestedBy))
	fmt.Fprintf(out, "Assigned to:  %s\n", orDash(b.AssignedTo))
	if b.TargetDate != nil {
		fmt.Fprintf(out, "Target date:  %s\n", b.TargetDate.Format("2006-01-02"))
	}
	if b.Submission != nil && b.Submission.Organisation != "" {
		fmt.Fprintf(out, "Organisation: %s\n", b.Submission.Organisation)
	}
	if b.Description != "" {
		fmt.Fprintf(out, "\n%s\n", b.Description)
	}

	fmt.Fprintln(out, "\nSLA:")
	for _, st := range sla.Calculate(sla.InputFor(b), cfg.SLA, time.Now()).Stages() {
		fmt.Fprintf(out, "  %-15s %-12s %s\n", st.Stage, st.Status, st.Elapsed.Round(time.Minute))
	}

	fmt.Fprintln(out, "\nHistory:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, e := range history {
		done := ""
		if e.Completed {
			done = "done"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04"), workflow.PhaseName(phases, e.PhaseID),
			e.Status, done, e.Actor, truncate(e.Comment, 50))
	}
	w.Flush()
	return nil
}

func newBcrSubmitCmd() *cobra.Command {
	var (
		configPath string
		form       bcr.SubmitForm
		impact     string
		target     string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new change request",
		RunE: func(cmd *cobra.Command, args []string) error {
			form.ImpactAreas = refdata.SplitList(impact)
			if target != "" {
				t, err := time.Parse("2006-01-02", target)
				if err != nil {
					return fmt.Errorf("--target-date must be YYYY-MM-DD: %w", err)
				}
				form.TargetDate = &t
			}
			return runBcrSubmit(cmd, configPath, form)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&form.Name, "name", "", "submitter name (required)")
	cmd.Flags().StringVar(&form.Email, "email", "", "submitter email (required)")
	cmd.Flags().StringVar(&form.Organisation, "org", "", "submitter organisation")
	cmd.Flags().StringVar(&form.Title, "title", "", "title (required)")
	cmd.Flags().StringVar(&form.Description, "description", "", "description (required)")
	cmd.Flags().StringVar(&form.Urgency, "urgency", "", "urgency level (required)")
	cmd.Flags().StringVar(&impact, "impact", "", "comma-separated impact areas (required)")
	cmd.Flags().StringVar(&form.Justification, "justification", "", "business justification")
	cmd.Flags().StringVar(&target, "target-date", "", "target date (YYYY-MM-DD)")
	return cmd
}

func runBcrSubmit(cmd *cobra.Command, configPath string, form bcr.SubmitForm) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	b, err := bcr.NewService(gormDB).Submit(context.Background(), form)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s: %s\n", b.BcrNumber, b.Title)
	return nil
}

func newBcrApplyCmd() *cobra.Command {
	var (
		configPath string
		req        workflow.Request
	)

	cmd := &cobra.Command{
		Use:   "apply <number>",
		Short: "Apply a workflow action to a change request",
		Long: `Applies one workflow action. Actions: transition (--phase), complete_phase,
decision (--decision approve|reject), assign (--assignee), implement,
withdraw, comment (--comment).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.BcrNumber = args[0]
			return runBcrApply(cmd, configPath, req)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&req.Action, "action", "a", "", "workflow action (required)")
	cmd.Flags().UintVar(&req.TargetPhaseID, "phase", 0, "target phase id for transition")
	cmd.Flags().StringVar(&req.Decision, "decision", "", "approve or reject")
	cmd.Flags().StringVar(&req.Assignee, "assignee", "", "assignee for assign")
	cmd.Flags().StringVarP(&req.Comment, "comment", "m", "", "comment")
	cmd.Flags().StringVar(&req.Actor, "actor", "cli", "identity recorded in history")
	cmd.MarkFlagRequired("action")
	return cmd
}

func runBcrApply(cmd *cobra.Command, configPath string, req workflow.Request) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	res, err := workflow.NewService(gormDB).Apply(context.Background(), req)
	if err != nil {
		return err
	}
	phases, err := workflow.AllPhases(gormDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", res.Bcr.BcrNumber, res.Kind)
	fmt.Fprintf(out, "Status: %s, phase: %s\n", res.Bcr.Status, workflow.PhaseName(phases, res.Bcr.CurrentPhaseID))
	if res.Reset {
		fmt.Fprintln(out, "Later phases were reset.")
	}
	return nil
}
