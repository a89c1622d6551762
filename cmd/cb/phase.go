package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/changeboard/internal/workflow"
)

func newPhaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phase",
		Short: "Workflow phase commands",
	}
	cmd.AddCommand(newPhaseListCmd())
	return cmd
}

func newPhaseListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflow phases in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhaseList(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runPhaseList(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	phases, err := workflow.AllPhases(gormDB)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(phases) == 0 {
		fmt.Fprintln(out, "No phases seeded. Run: cb db init")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tORDER\tNAME\tIN PROGRESS\tCOMPLETED\tDECISION")
	for _, p := range phases {
		decision := ""
		if p.DecisionPoint {
			decision = "yes"
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
			p.ID, p.DisplayOrder, p.Name, p.InProgressStatus, p.CompletedStatus, decision)
	}
	w.Flush()
	return nil
}
