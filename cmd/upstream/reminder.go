package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/upstream-pm/upstream/internal/milestone"
	"github.com/upstream-pm/upstream/internal/reminder"
)

func newReminderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminder",
		Short: "Milestone end-date reminders",
	}

	cmd.AddCommand(newReminderAddCmd())
	cmd.AddCommand(newReminderRunCmd())
	cmd.AddCommand(newReminderWatchCmd())
	return cmd
}

func newReminderAddCmd() *cobra.Command {
	var (
		configPath string
		before     int
		message    string
	)

	cmd := &cobra.Command{
		Use:   "add <milestone-id>",
		Short: "Add a reminder to a milestone",
		Long:  "Adds a reminder that fires the given number of minutes before the milestone's end date.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("milestone", args[0])
			if err != nil {
				return err
			}
			return runReminderAdd(cmd, configPath, id, before, message)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	cmd.Flags().IntVar(&before, "before", 24*60, "minutes before the end date")
	cmd.Flags().StringVarP(&message, "message", "m", "", "reminder text")
	return cmd
}

func runReminderAdd(cmd *cobra.Command, configPath string, id uint, before int, message string) error {
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
	r, err := ms.AddReminder(ctx, milestone.Reminder{OffsetMinutes: before, Message: message})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added reminder %s to milestone %d\n", r.ID, id)
	return nil
}

func newReminderRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send due reminders once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReminderRun(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	return cmd
}

func runReminderRun(cmd *cobra.Command, configPath string) error {
	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := newReminderRunner(a)
	if err != nil {
		return err
	}
	sent, err := runner.RunOnce(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %d reminders\n", sent)
	return err
}

func newReminderWatchCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Send due reminders on the configured schedule",
		Long:  "Runs in the foreground and delivers due reminders on the reminders.schedule cron expression until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReminderWatch(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	return cmd
}

func runReminderWatch(cmd *cobra.Command, configPath string) error {
	a, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	out := cmd.OutOrStdout()

	runner, err := newReminderRunner(a)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(out, "Watching reminders on schedule %q\n", a.cfg.Reminders.Schedule)
	return runner.Start(ctx, a.cfg.Reminders.Schedule)
}

// newReminderRunner posts to Slack when a webhook is configured and logs
// otherwise.
func newReminderRunner(a *app) (*reminder.Runner, error) {
	var notifier reminder.Notifier = reminder.NewLogNotifier(a.logger)
	if url := a.cfg.Reminders.SlackWebhookURL; url != "" {
		slackNotifier, err := reminder.NewSlackNotifier(url)
		if err != nil {
			return nil, err
		}
		notifier = slackNotifier
	}
	return reminder.NewRunner(a.mgr, notifier, a.logger), nil
}
