package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserListCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var (
		configPath string
		name       string
		email      string
	)

	cmd := &cobra.Command{
		Use:   "add <login>",
		Short: "Add a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserAdd(cmd, configPath, args[0], name, email)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func runUserAdd(cmd *cobra.Command, configPath, login, name, email string) error {
	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.store.CreateUser(cmd.Context(), login, name, email)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s)\n", user.ID, user.Login)
	return nil
}

func newUserListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	return cmd
}

func runUserList(cmd *cobra.Command, configPath string) error {
	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	users, err := a.store.ListUsers(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLOGIN\tNAME\tEMAIL")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Login, orDash(u.DisplayName), orDash(u.Email))
	}
	w.Flush()
	return nil
}
