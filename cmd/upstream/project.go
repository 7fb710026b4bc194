package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/upstream-pm/upstream/internal/host"
	"github.com/upstream-pm/upstream/internal/milestone"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects and their tasks",
	}

	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectActivityCmd())
	cmd.AddCommand(newProjectTaskCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	var (
		configPath string
		author     uint
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectCreate(cmd, configPath, args[0], author)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	cmd.Flags().UintVar(&author, "author", 0, "author user id (required)")
	cmd.MarkFlagRequired("author")
	return cmd
}

func runProjectCreate(cmd *cobra.Command, configPath, title string, author uint) error {
	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ok, err := a.store.Users().Exists(cmd.Context(), author)
	if err != nil {
		return err
	}
	if !ok {
		return host.Validationf("user %d does not exist", author)
	}

	project, err := a.store.CreateProject(cmd.Context(), title, author)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created project %d: %s\n", project.ID, project.Title)
	return nil
}

func newProjectActivityCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "activity <project-id>",
		Short: "Show a project's audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return err
			}
			return runProjectActivity(cmd, configPath, id)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	return cmd
}

func runProjectActivity(cmd *cobra.Command, configPath string, projectID uint) error {
	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.store.Activity().List(cmd.Context(), projectID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No activity recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tSUBJECT\tACTION\tPAYLOAD")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Subject, e.Action, truncate(string(e.Payload), 60))
	}
	w.Flush()
	return nil
}

func newProjectTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage a project's tasks",
	}

	cmd.AddCommand(newProjectTaskAddCmd())
	cmd.AddCommand(newProjectTaskListCmd())
	return cmd
}

func newProjectTaskAddCmd() *cobra.Command {
	var (
		configPath  string
		milestoneID uint
	)

	cmd := &cobra.Command{
		Use:   "add <project-id> <title>",
		Short: "Add a task to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return err
			}
			return runProjectTaskAdd(cmd, configPath, id, args[1], milestoneID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	cmd.Flags().UintVar(&milestoneID, "milestone", 0, "milestone the task belongs to")
	return cmd
}

func runProjectTaskAdd(cmd *cobra.Command, configPath string, projectID uint, title string, milestoneID uint) error {
	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	if _, err := a.store.Projects().Project(ctx, projectID); err != nil {
		return err
	}
	if milestoneID > 0 {
		if _, err := a.mgr.ByID(ctx, milestoneID); err != nil {
			return err
		}
	}

	tasks, err := a.store.Tasks().Tasks(ctx, projectID)
	if err != nil {
		return err
	}
	task := host.Task{"id": len(tasks) + 1, "title": title, milestone.TaskMilestoneKey: ""}
	if milestoneID > 0 {
		task[milestone.TaskMilestoneKey] = milestoneID
	}
	if err := a.store.Tasks().SaveTasks(ctx, projectID, append(tasks, task)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added task %d to project %d\n", len(tasks)+1, projectID)
	return nil
}

func newProjectTaskListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return err
			}
			return runProjectTaskList(cmd, configPath, id)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	return cmd
}

func runProjectTaskList(cmd *cobra.Command, configPath string, projectID uint) error {
	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	tasks, err := a.store.Tasks().Tasks(cmd.Context(), projectID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMILESTONE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%v\t%s\t%s\n", t["id"], truncate(fmt.Sprint(t["title"]), 40), orDash(fmt.Sprint(t[milestone.TaskMilestoneKey])))
	}
	w.Flush()
	return nil
}
