package reminder

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"github.com/upstream-pm/upstream/internal/logging"
	"go.uber.org/zap"
)

// Notifier delivers one due reminder.
type Notifier interface {
	Notify(ctx context.Context, d Due) error
}

// webhookPoster matches slack.PostWebhookContext so tests can intercept posts.
type webhookPoster func(ctx context.Context, url string, msg *slack.WebhookMessage) error

// SlackNotifier posts reminders to a Slack incoming webhook.
type SlackNotifier struct {
	url  string
	post webhookPoster
}

// NewSlackNotifier returns a notifier posting to the incoming webhook url.
func NewSlackNotifier(url string) (*SlackNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("reminder: slack webhook url is required")
	}
	return &SlackNotifier{url: url, post: slack.PostWebhookContext}, nil
}

// Notify posts d as a webhook message.
func (n *SlackNotifier) Notify(ctx context.Context, d Due) error {
	if err := n.post(ctx, n.url, FormatSlack(d)); err != nil {
		return fmt.Errorf("reminder: post milestone %d reminder to slack: %w", d.MilestoneID, err)
	}
	return nil
}

// FormatSlack renders d as a Slack webhook message.
func FormatSlack(d Due) *slack.WebhookMessage {
	text := fmt.Sprintf("Milestone *%s* ends on %s", d.Milestone, d.EndDate)
	fields := []slack.AttachmentField{
		{Title: "Milestone", Value: fmt.Sprintf("#%d", d.MilestoneID), Short: true},
		{Title: "Project", Value: fmt.Sprintf("#%d", d.ProjectID), Short: true},
	}
	att := slack.Attachment{
		Color:  "#f2c744",
		Text:   d.Reminder.Message,
		Fields: fields,
	}
	return &slack.WebhookMessage{
		Text:        text,
		Attachments: []slack.Attachment{att},
	}
}

// LogNotifier writes reminders to the log. It is used when no webhook is
// configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a notifier logging at Info level.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.OrNop(logger)}
}

// Notify logs d.
func (n *LogNotifier) Notify(_ context.Context, d Due) error {
	n.logger.Info("milestone reminder due",
		zap.Uint("milestone_id", d.MilestoneID),
		zap.Uint("project_id", d.ProjectID),
		zap.String("milestone", d.Milestone),
		zap.String("end_date", d.EndDate),
		zap.Time("fire_at", d.FireAt),
		zap.String("message", d.Reminder.Message),
	)
	return nil
}
