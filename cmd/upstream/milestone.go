package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/upstream-pm/upstream/internal/datefmt"
	"github.com/upstream-pm/upstream/internal/milestone"
	"gopkg.in/yaml.v3"
)

func newMilestoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "milestone",
		Aliases: []string{"ms"},
		Short:   "Manage project milestones",
	}

	cmd.AddCommand(newMilestoneCreateCmd())
	cmd.AddCommand(newMilestoneShowCmd())
	cmd.AddCommand(newMilestoneListCmd())
	cmd.AddCommand(newMilestoneSetCmd())
	cmd.AddCommand(newMilestoneDeleteCmd())
	cmd.AddCommand(newMilestoneRestoreCmd())
	cmd.AddCommand(newMilestoneExportCmd())
	cmd.AddCommand(newMilestoneCategoryCmd())
	return cmd
}

// fieldFlags are the editable milestone fields shared by create and set.
type fieldFlags struct {
	name       string
	notes      string
	start      string
	end        string
	assign     []uint
	order      int
	progress   float64
	color      string
	categories []uint
	legacyCode string
}

func (f *fieldFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.notes, "notes", "", "milestone notes")
	fs.StringVar(&f.start, "start", "", "start date (YYYY-MM-DD, any parseable date, or unix epoch)")
	fs.StringVar(&f.end, "end", "", "end date (YYYY-MM-DD, any parseable date, or unix epoch)")
	fs.UintSliceVar(&f.assign, "assign", nil, "assignee user ids")
	fs.IntVar(&f.order, "order", 0, "display order")
	fs.Float64Var(&f.progress, "progress", 0, "progress percentage")
	fs.StringVar(&f.color, "color", "", "display color")
	fs.UintSliceVar(&f.categories, "category", nil, "category term ids")
	fs.StringVar(&f.legacyCode, "legacy-code", "", "legacy milestone code")
}

// apply writes every flag the user set on cmd to ms.
func (f *fieldFlags) apply(ctx context.Context, cmd *cobra.Command, ms *milestone.Milestone) error {
	changed := cmd.Flags().Changed
	steps := []struct {
		flag string
		fn   func() error
	}{
		{"name", func() error { return ms.SetName(ctx, f.name) }},
		{"notes", func() error { return ms.SetNotes(ctx, f.notes) }},
		{"start", func() error { return ms.SetStartDate(ctx, f.start) }},
		{"end", func() error { return ms.SetEndDate(ctx, f.end) }},
		{"assign", func() error { return ms.SetAssignedTo(ctx, f.assign) }},
		{"order", func() error { return ms.SetOrder(ctx, f.order) }},
		{"progress", func() error { return ms.SetProgress(ctx, f.progress) }},
		{"color", func() error { return ms.SetColor(ctx, f.color) }},
		{"category", func() error { return ms.SetCategoryIDs(ctx, f.categories) }},
		{"legacy-code", func() error { return ms.SetLegacyMilestoneCode(ctx, f.legacyCode) }},
	}
	for _, s := range steps {
		if cmd.Flags().Lookup(s.flag) == nil || !changed(s.flag) {
			continue
		}
		if err := s.fn(); err != nil {
			return fmt.Errorf("set %s: %w", s.flag, err)
		}
	}
	return nil
}

func newMilestoneCreateCmd() *cobra.Command {
	var (
		configPath string
		author     uint
		fields     fieldFlags
	)

	cmd := &cobra.Command{
		Use:   "create <project-id> <title>",
		Short: "Create a milestone",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID("project", args[0])
			if err != nil {
				return err
			}
			return runMilestoneCreate(cmd, configPath, projectID, args[1], author, &fields)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	cmd.Flags().UintVar(&author, "author", 0, "author user id (required)")
	cmd.MarkFlagRequired("author")
	fields.register(cmd)
	return cmd
}

func runMilestoneCreate(cmd *cobra.Command, configPath string, projectID uint, title string, author uint, fields *fieldFlags) error {
	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	var id uint
	err = a.mgr.Transaction(ctx, func(tx *milestone.Manager) error {
		ms, err := tx.Create(ctx, title, author, projectID)
		if err != nil {
			return err
		}
		if err := fields.apply(ctx, cmd, ms); err != nil {
			return err
		}
		if err := ms.Save(ctx); err != nil {
			return err
		}
		id = ms.ID()
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created milestone %d in project %d\n", id, projectID)
	return nil
}

func newMilestoneShowCmd() *cobra.Command {
	var (
		configPath string
		dateFormat string
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show milestone details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("milestone", args[0])
			if err != nil {
				return err
			}
			return runMilestoneShow(cmd, configPath, id, dateFormat)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	cmd.Flags().StringVar(&dateFormat, "date-format", "upstream", "date rendering: mysql, unix or upstream")
	return cmd
}

func runMilestoneShow(cmd *cobra.Command, configPath string, id uint, dateFormat string) error {
	format, err := datefmt.ParseFormat(dateFormat)
	if err != nil {
		return err
	}

	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	ms, err := a.mgr.ByID(ctx, id)
	if err != nil {
		return err
	}
	d, err := describe(ctx, ms, format)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Milestone:   %d\n", ms.ID())
	fmt.Fprintf(out, "Name:        %s\n", d.name)
	fmt.Fprintf(out, "Project:     %d\n", d.projectID)
	fmt.Fprintf(out, "Created by:  %d\n", d.createdBy)
	fmt.Fprintf(out, "Created on:  %s\n", orDash(d.createdOn))
	fmt.Fprintf(out, "Start:       %s\n", orDash(d.start))
	fmt.Fprintf(out, "End:         %s\n", orDash(d.end))
	fmt.Fprintf(out, "Order:       %d\n", d.order)
	fmt.Fprintf(out, "Progress:    %s%%\n", strconv.FormatFloat(d.progress, 'f', -1, 64))
	fmt.Fprintf(out, "Assigned to: %s\n", orDash(joinIDs(d.assigned)))
	fmt.Fprintf(out, "Color:       %s\n", orDash(d.color))
	if len(d.categories) > 0 {
		fmt.Fprintf(out, "Categories:  %s\n", joinIDs(d.categories))
	}
	if d.legacyID != "" {
		fmt.Fprintf(out, "Legacy ID:   %s\n", d.legacyID)
	}
	fmt.Fprintf(out, "Tasks:       %d (%d open)\n", d.taskCount, d.taskOpen)
	if d.notes != "" {
		fmt.Fprintf(out, "\nNotes:\n%s\n", d.notes)
	}

	reminders, err := ms.Reminders(ctx)
	if err != nil {
		return err
	}
	if len(reminders) > 0 {
		fmt.Fprintln(out, "\nReminders:")
		for _, r := range reminders {
			state := "pending"
			if r.Sent {
				state = "sent"
			}
			fmt.Fprintf(out, "  %s  %dm before end  %s  %s\n", r.ID, r.OffsetMinutes, state, r.Message)
		}
	}
	return nil
}

// description is a milestone read out once for display.
type description struct {
	name       string
	notes      string
	projectID  uint
	createdBy  uint
	createdOn  string
	start      string
	end        string
	order      int
	progress   float64
	assigned   []uint
	color      string
	categories []uint
	legacyID   string
	taskCount  int
	taskOpen   int
}

func describe(ctx context.Context, ms *milestone.Milestone, format datefmt.Format) (*description, error) {
	var d description
	var err error
	date := func(get func(context.Context) (datefmt.Value, error), dst *string) func() error {
		return func() error {
			v, err := get(ctx)
			*dst = v.Format(format)
			return err
		}
	}
	reads := []func() error{
		func() error { d.name, err = ms.Name(ctx); return err },
		func() error { d.notes, err = ms.Notes(ctx); return err },
		func() error { d.projectID, err = ms.ProjectID(ctx); return err },
		func() error { d.createdBy, err = ms.CreatedBy(ctx); return err },
		date(ms.CreatedOn, &d.createdOn),
		date(ms.StartDate, &d.start),
		date(ms.EndDate, &d.end),
		func() error { d.order, err = ms.Order(ctx); return err },
		func() error { d.progress, err = ms.Progress(ctx); return err },
		func() error { d.assigned, err = ms.AssignedTo(ctx); return err },
		func() error { d.color, err = ms.Color(ctx); return err },
		func() error { d.categories, err = ms.CategoryIDs(ctx); return err },
		func() error { d.legacyID, err = ms.LegacyID(ctx); return err },
		func() error { d.taskCount, err = ms.TaskCount(ctx); return err },
		func() error { d.taskOpen, err = ms.TaskOpen(ctx); return err },
	}
	for _, read := range reads {
		if err := read(); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

func newMilestoneListCmd() *cobra.Command {
	var (
		configPath string
		projectID  uint
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List milestones",
		Long:  "Lists live milestones ordered by their order field, optionally limited to one project.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMilestoneList(cmd, configPath, projectID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	cmd.Flags().UintVarP(&projectID, "project", "p", 0, "only list milestones of this project")
	return cmd
}

func runMilestoneList(cmd *cobra.Command, configPath string, projectID uint) error {
	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	list, err := listMilestones(ctx, a.mgr, projectID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No milestones found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tORDER\tNAME\tSTART\tEND\tPROGRESS\tASSIGNED")
	for _, ms := range list {
		d, err := describe(ctx, ms, datefmt.MySQL)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%s\t%s%%\t%s\n",
			ms.ID(), d.projectID, d.order, truncate(d.name, 40), orDash(d.start), orDash(d.end),
			strconv.FormatFloat(d.progress, 'f', -1, 64), orDash(joinIDs(d.assigned)))
	}
	w.Flush()
	return nil
}

func listMilestones(ctx context.Context, mgr *milestone.Manager, projectID uint) ([]*milestone.Milestone, error) {
	if projectID > 0 {
		return mgr.ListByProject(ctx, projectID)
	}
	return mgr.List(ctx)
}

func newMilestoneSetCmd() *cobra.Command {
	var (
		configPath string
		projectID  uint
		fields     fieldFlags
	)

	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Update milestone fields",
		Long:  "Updates only the fields whose flags are given. Pass an empty --start or --end to clear a date.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("milestone", args[0])
			if err != nil {
				return err
			}
			return runMilestoneSet(cmd, configPath, id, projectID, &fields)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	cmd.Flags().StringVar(&fields.name, "name", "", "milestone name")
	cmd.Flags().UintVar(&projectID, "project", 0, "move the milestone to another project")
	fields.register(cmd)
	return cmd
}

func runMilestoneSet(cmd *cobra.Command, configPath string, id, projectID uint, fields *fieldFlags) error {
	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	err = a.mgr.Transaction(ctx, func(tx *milestone.Manager) error {
		ms, err := tx.ByID(ctx, id)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("project") {
			if err := ms.SetProjectID(ctx, projectID); err != nil {
				return err
			}
		}
		return fields.apply(ctx, cmd, ms)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated milestone %d\n", id)
	return nil
}

func newMilestoneDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Move a milestone to the trash",
		Long: `Moves a milestone to the trash, clears it from every task of its project and
records a "remove" entry with the milestone's legacy row in the project audit trail.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("milestone", args[0])
			if err != nil {
				return err
			}
			return runMilestoneDelete(cmd, configPath, id)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	return cmd
}

func runMilestoneDelete(cmd *cobra.Command, configPath string, id uint) error {
	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	ms, err := a.mgr.ByID(ctx, id)
	if err != nil {
		return err
	}
	if err := ms.Delete(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Milestone %d moved to trash\n", id)
	return nil
}

func newMilestoneRestoreCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a trashed milestone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("milestone", args[0])
			if err != nil {
				return err
			}
			return runMilestoneRestore(cmd, configPath, id)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	return cmd
}

func runMilestoneRestore(cmd *cobra.Command, configPath string, id uint) error {
	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ms, err := a.mgr.Restore(cmd.Context(), id)
	if err != nil {
		return err
	}
	name, err := ms.Name(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored milestone %d: %s\n", id, name)
	return nil
}

func newMilestoneExportCmd() *cobra.Command {
	var (
		configPath string
		projectID  uint
		output     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export milestones as legacy rows",
		Long:  "Writes milestones in the legacy rowset shape. The output can be read back by \"upstream import\".",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMilestoneExport(cmd, configPath, projectID, output)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	cmd.Flags().UintVarP(&projectID, "project", "p", 0, "only export milestones of this project")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml or json")
	return cmd
}

func runMilestoneExport(cmd *cobra.Command, configPath string, projectID uint, output string) error {
	output = strings.ToLower(output)
	if output != "yaml" && output != "json" {
		return fmt.Errorf("unknown output format %q (want yaml or json)", output)
	}

	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	list, err := listMilestones(ctx, a.mgr, projectID)
	if err != nil {
		return err
	}
	rows := make([]milestone.ExportRow, 0, len(list))
	for _, ms := range list {
		row, err := ms.ExportRow(ctx)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return writeRows(cmd.OutOrStdout(), output, rows)
}

func writeRows(w io.Writer, output string, rows []milestone.ExportRow) error {
	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return err
	}
	return enc.Close()
}

func newMilestoneCategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage milestone categories",
	}

	cmd.AddCommand(newMilestoneCategoryAddCmd())
	return cmd
}

func newMilestoneCategoryAddCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a milestone category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMilestoneCategoryAdd(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	return cmd
}

func runMilestoneCategoryAdd(cmd *cobra.Command, configPath, name string) error {
	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Site.DisableMilestoneCategories {
		return fmt.Errorf("milestone categories are disabled in %s", configPath)
	}
	term, err := a.store.CreateTerm(cmd.Context(), milestone.CategoryTaxonomy, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created category %d: %s\n", term.ID, term.Name)
	return nil
}
