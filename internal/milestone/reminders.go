package milestone

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upstream-pm/upstream/internal/host"
	"github.com/upstream-pm/upstream/internal/sanitize"
)

// Reminder asks for a notification some time before a milestone ends.
type Reminder struct {
	ID            string     `json:"id"`
	OffsetMinutes int        `json:"offset_minutes"`
	Message       string     `json:"message,omitempty"`
	Sent          bool       `json:"sent"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

// FireAt returns when the reminder is due for a milestone ending at end.
func (r Reminder) FireAt(end time.Time) time.Time {
	return end.Add(-time.Duration(r.OffsetMinutes) * time.Minute)
}

// Reminders returns the milestone's reminders in the order they were added.
func (m *Milestone) Reminders(ctx context.Context) ([]Reminder, error) {
	vals, err := m.obj.Values(ctx, fieldReminders)
	if err != nil {
		return nil, err
	}
	out := make([]Reminder, 0, len(vals))
	for _, v := range vals {
		var r Reminder
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("milestone: decode reminder of %d: %w", m.ID(), err)
		}
		out = append(out, r)
	}
	return out, nil
}

// AddReminder appends a reminder and returns it with its id assigned.
func (m *Milestone) AddReminder(ctx context.Context, r Reminder) (Reminder, error) {
	if r.OffsetMinutes < 0 {
		return Reminder{}, host.Validationf("reminder offset %d is negative", r.OffsetMinutes)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Message = sanitize.TextField(r.Message)
	data, err := json.Marshal(r)
	if err != nil {
		return Reminder{}, fmt.Errorf("milestone: encode reminder: %w", err)
	}
	if err := m.obj.AddValue(ctx, fieldReminders, string(data)); err != nil {
		return Reminder{}, err
	}
	return r, nil
}

// MarkReminderSent flags the reminder with the given id as delivered at.
func (m *Milestone) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	reminders, err := m.Reminders(ctx)
	if err != nil {
		return err
	}
	found := false
	vals := make([]string, 0, len(reminders))
	for _, r := range reminders {
		if r.ID == id {
			sentAt := at.UTC()
			r.Sent, r.SentAt = true, &sentAt
			found = true
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("milestone: encode reminder: %w", err)
		}
		vals = append(vals, string(data))
	}
	if !found {
		return host.NotFoundf("reminder %s on milestone %d", id, m.ID())
	}
	return m.obj.SetValues(ctx, fieldReminders, vals)
}
