// Package reminder finds milestone reminders that are due and delivers them.
package reminder

import (
	"context"
	"sort"
	"time"

	"github.com/upstream-pm/upstream/internal/milestone"
)

// Due is a reminder whose fire time has passed.
type Due struct {
	MilestoneID uint
	ProjectID   uint
	Milestone   string
	EndDate     string
	FireAt      time.Time
	Reminder    milestone.Reminder

	ms *milestone.Milestone
}

// Scanner walks live milestones looking for due reminders.
type Scanner struct {
	mgr *milestone.Manager
}

// NewScanner returns a Scanner over the milestones mgr can see.
func NewScanner(mgr *milestone.Manager) *Scanner {
	return &Scanner{mgr: mgr}
}

// Due returns every unsent reminder whose fire time is at or before now,
// oldest first. A reminder fires its offset before midnight of the
// milestone's end date in the site timezone. Milestones without an end date
// never fire.
func (s *Scanner) Due(ctx context.Context, now time.Time) ([]Due, error) {
	list, err := s.mgr.List(ctx)
	if err != nil {
		return nil, err
	}

	var due []Due
	for _, ms := range list {
		end, err := ms.EndDate(ctx)
		if err != nil {
			return nil, err
		}
		endAt, ok := end.Time()
		if !ok {
			continue
		}
		reminders, err := ms.Reminders(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range reminders {
			if r.Sent {
				continue
			}
			fireAt := r.FireAt(endAt)
			if fireAt.After(now) {
				continue
			}
			d, err := newDue(ctx, ms, end.MySQL(), fireAt, r)
			if err != nil {
				return nil, err
			}
			due = append(due, d)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].FireAt.Before(due[j].FireAt)
	})
	return due, nil
}

func newDue(ctx context.Context, ms *milestone.Milestone, endDate string, fireAt time.Time, r milestone.Reminder) (Due, error) {
	name, err := ms.Name(ctx)
	if err != nil {
		return Due{}, err
	}
	projectID, err := ms.ProjectID(ctx)
	if err != nil {
		return Due{}, err
	}
	return Due{
		MilestoneID: ms.ID(),
		ProjectID:   projectID,
		Milestone:   name,
		EndDate:     endDate,
		FireAt:      fireAt,
		Reminder:    r,
		ms:          ms,
	}, nil
}
