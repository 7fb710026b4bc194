package milestone

import (
	"context"
	"strings"

	"github.com/upstream-pm/upstream/internal/host"
)

// LegacyRow is the flat milestone shape consumed by legacy reports and
// exports. Dates are unix epochs.
type LegacyRow struct {
	ID              uint    `json:"id" yaml:"id"`
	Milestone       string  `json:"milestone" yaml:"milestone"`
	MilestoneOrder  int     `json:"milestone_order" yaml:"milestone_order"`
	CreatedBy       uint    `json:"created_by" yaml:"created_by"`
	CreatedTime     int64   `json:"created_time" yaml:"created_time"`
	AssignedTo      []uint  `json:"assigned_to" yaml:"assigned_to"`
	AssignedToOrder string  `json:"assigned_to_order,omitempty" yaml:"assigned_to_order,omitempty"`
	Progress        float64 `json:"progress" yaml:"progress"`
	Notes           string  `json:"notes" yaml:"notes"`
	StartDate       int64   `json:"start_date" yaml:"start_date"`
	EndDate         int64   `json:"end_date" yaml:"end_date"`
	TaskCount       int     `json:"task_count" yaml:"task_count"`
	TaskOpen        int     `json:"task_open" yaml:"task_open"`
}

// Map returns the row as the legacy key/value mapping. assigned_to_order is
// present only when there are assignees.
func (r LegacyRow) Map() map[string]any {
	assigned := r.AssignedTo
	if assigned == nil {
		assigned = []uint{}
	}
	row := map[string]any{
		"id":              r.ID,
		"milestone":       r.Milestone,
		"milestone_order": r.MilestoneOrder,
		"created_by":      r.CreatedBy,
		"created_time":    r.CreatedTime,
		"assigned_to":     assigned,
		"progress":        r.Progress,
		"notes":           r.Notes,
		"start_date":      r.StartDate,
		"end_date":        r.EndDate,
		"task_count":      r.TaskCount,
		"task_open":       r.TaskOpen,
	}
	if len(r.AssignedTo) > 0 {
		row["assigned_to_order"] = r.AssignedToOrder
	}
	return row
}

// LegacyRow reads every field into the legacy shape. When there are
// assignees, AssignedToOrder carries the display names of those that still
// exist so old reports can sort by them.
func (m *Milestone) LegacyRow(ctx context.Context) (LegacyRow, error) {
	var (
		row LegacyRow
		err error
	)
	row.ID = m.ID()
	if row.Milestone, err = m.Name(ctx); err != nil {
		return LegacyRow{}, err
	}
	if row.MilestoneOrder, err = m.Order(ctx); err != nil {
		return LegacyRow{}, err
	}
	if row.CreatedBy, err = m.CreatedBy(ctx); err != nil {
		return LegacyRow{}, err
	}
	created, err := m.CreatedOn(ctx)
	if err != nil {
		return LegacyRow{}, err
	}
	row.CreatedTime = created.Unix()
	if row.AssignedTo, err = m.AssignedTo(ctx); err != nil {
		return LegacyRow{}, err
	}
	if row.Progress, err = m.Progress(ctx); err != nil {
		return LegacyRow{}, err
	}
	if row.Notes, err = m.Notes(ctx); err != nil {
		return LegacyRow{}, err
	}
	start, err := m.StartDate(ctx)
	if err != nil {
		return LegacyRow{}, err
	}
	row.StartDate = start.Unix()
	end, err := m.EndDate(ctx)
	if err != nil {
		return LegacyRow{}, err
	}
	row.EndDate = end.Unix()
	if row.TaskCount, err = m.TaskCount(ctx); err != nil {
		return LegacyRow{}, err
	}
	if row.TaskOpen, err = m.TaskOpen(ctx); err != nil {
		return LegacyRow{}, err
	}

	if len(row.AssignedTo) > 0 {
		users := m.obj.Host().Users()
		names := make([]string, 0, len(row.AssignedTo))
		for _, id := range row.AssignedTo {
			name, err := users.DisplayName(ctx, id)
			if host.IsNotFound(err) {
				continue
			}
			if err != nil {
				return LegacyRow{}, err
			}
			names = append(names, name)
		}
		row.AssignedToOrder = strings.Join(names, ", ")
	}
	return row, nil
}

// ConvertToLegacyRowset returns LegacyRow(ctx).Map().
func (m *Milestone) ConvertToLegacyRowset(ctx context.Context) (map[string]any, error) {
	row, err := m.LegacyRow(ctx)
	if err != nil {
		return nil, err
	}
	return row.Map(), nil
}

// ExportRow is a LegacyRow plus the fields "milestone export" writes so an
// import can restore them. Map keeps the legacy key set.
type ExportRow struct {
	LegacyRow           `yaml:",inline"`
	Color               string `json:"color,omitempty" yaml:"color,omitempty"`
	LegacyMilestoneCode string `json:"legacy_milestone_code,omitempty" yaml:"legacy_milestone_code,omitempty"`
}

// ExportRow reads the legacy row along with the color and legacy code.
func (m *Milestone) ExportRow(ctx context.Context) (ExportRow, error) {
	legacy, err := m.LegacyRow(ctx)
	if err != nil {
		return ExportRow{}, err
	}
	row := ExportRow{LegacyRow: legacy}
	if row.Color, err = m.Color(ctx); err != nil {
		return ExportRow{}, err
	}
	if row.LegacyMilestoneCode, err = m.LegacyMilestoneCode(ctx); err != nil {
		return ExportRow{}, err
	}
	return row, nil
}
