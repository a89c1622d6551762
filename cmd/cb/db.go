package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/changeboard/internal/config"
	"github.com/zulandar/changeboard/internal/db"
	"github.com/zulandar/changeboard/internal/legacy"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	cmd.AddCommand(newDBImportCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Changeboard database",
		Long:  "Migrates all tables and seeds workflow phases and reference data from config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	if err := migrateAndSeed(cmd, gormDB, cfg); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nChangeboard database initialized successfully.")
	return nil
}

func migrateAndSeed(cmd *cobra.Command, gormDB *gorm.DB, cfg *config.Config) error {
	out := cmd.OutOrStdout()

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.Seed(gormDB, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d phases, %d impact areas, %d urgency levels\n",
		len(cfg.Phases), len(cfg.Reference.ImpactAreas), len(cfg.Reference.UrgencyLevels))
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Changeboard database",
		Long: `Drops every Changeboard table, then migrates and seeds again from config.
All change requests, history and users are lost.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if !skipConfirm && !confirmReset(cmd, cfg.Database.Driver) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	if err := db.Reset(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "Dropped all tables")

	if err := migrateAndSeed(cmd, gormDB, cfg); err != nil {
		return err
	}
	fmt.Fprintln(out, "\nChangeboard database reset and re-initialized successfully.")
	return nil
}

func confirmReset(cmd *cobra.Command, driver string) bool {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in the %s database.\n", driver)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}

func newDBImportCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import legacy BCR records",
		Long: `Imports every *.json record in dir. Phase and status annotations in the
notes field are converted into workflow history. Records whose BCR number
already exists are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBImport(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBImport(cmd *cobra.Command, configPath, dir string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	im := &legacy.Importer{DB: gormDB}
	report, err := im.ImportDir(context.Background(), dir)
	if err != nil {
		return err
	}
	return printImportReport(cmd, report)
}

func printImportReport(cmd *cobra.Command, report *legacy.Report) error {
	out := cmd.OutOrStdout()
	for _, n := range report.Imported {
		fmt.Fprintf(out, "Imported %s\n", n)
	}
	for _, n := range report.Skipped {
		fmt.Fprintf(out, "Skipped %s (already exists)\n", n)
	}
	for _, f := range report.Failed {
		fmt.Fprintf(out, "Failed %s: %v\n", f.File, f.Err)
	}
	fmt.Fprintf(out, "\n%d imported, %d skipped, %d failed\n",
		len(report.Imported), len(report.Skipped), len(report.Failed))
	if len(report.Failed) > 0 {
		return fmt.Errorf("import: %d file(s) failed", len(report.Failed))
	}
	return nil
}
