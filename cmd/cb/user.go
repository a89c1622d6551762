package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/changeboard/internal/access"
	"github.com/zulandar/changeboard/internal/models"
	"golang.org/x/term"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User account commands",
	}

	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserListCmd())
	cmd.AddCommand(newUserDeactivateCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var (
		configPath string
		in         access.RegisterInput
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user account",
		Long:  "Creates an active account. The password is prompted for when --password is not given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Password == "" {
				pw, err := readPassword(cmd)
				if err != nil {
					return err
				}
				in.Password = pw
			}
			return runUserAdd(cmd, configPath, in)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&in.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&in.Role, "role", models.RoleViewer, "role: "+strings.Join(access.Roles, ", "))
	cmd.Flags().StringVar(&in.Password, "password", "", "password (prompted when empty)")
	return cmd
}

// readPassword reads a password without echo from a terminal, or a single
// line from piped input.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runUserAdd(cmd *cobra.Command, configPath string, in access.RegisterInput) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	u, err := access.Register(gormDB, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %d: %s <%s> (%s)\n", u.ID, u.Name, u.Email, u.Role)
	return nil
}

func newUserListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runUserList(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	users, err := access.List(gormDB)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tACTIVE")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n", u.ID, u.Name, u.Email, u.Role, u.Active)
	}
	w.Flush()
	return nil
}

func newUserDeactivateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "deactivate <email>",
		Short: "Deactivate a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserDeactivate(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runUserDeactivate(cmd *cobra.Command, configPath, email string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	u, err := access.GetByEmail(gormDB, email)
	if err != nil {
		return err
	}
	// The CLI acts as no particular user, so self-modification never applies.
	if err := access.Deactivate(gormDB, 0, u.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %s\n", u.Email)
	return nil
}
