package milestone

import (
	"context"
	"fmt"

	"github.com/upstream-pm/upstream/internal/host"
	"go.uber.org/zap"
)

// TaskMilestoneKey is the task field that references a milestone id.
const TaskMilestoneKey = "milestone"

// Delete trashes the milestone in one transaction. Tasks of the owning
// project that reference it are cleared, the record is trashed, and a
// "remove" audit entry carrying the legacy rowset is recorded. The rowset is
// taken before the record is trashed. Any failure rolls every step back and
// is returned wrapped in a transaction failure.
func (m *Milestone) Delete(ctx context.Context) error {
	if m.state != Persisted {
		return host.Validationf("milestone %d cannot be deleted while %s", m.ID(), m.state)
	}

	id := m.ID()
	var projectID uint
	err := m.obj.Host().Transaction(ctx, func(tx host.Host) error {
		bound := m.bind(tx)

		var err error
		projectID, err = bound.ProjectID(ctx)
		if err != nil {
			return err
		}
		if projectID > 0 {
			if err := scrubTasks(ctx, tx.Tasks(), projectID, id); err != nil {
				return err
			}
		}

		row, err := bound.LegacyRow(ctx)
		if err != nil {
			return err
		}
		if err := tx.Records().Trash(ctx, id); err != nil {
			return err
		}
		return tx.Activity().Record(ctx, projectID, ActivitySubject, "remove", row.Map())
	})
	if err != nil {
		m.mgr.logger.Warn("milestone delete rolled back",
			zap.Uint("milestone_id", id),
			zap.Error(err),
		)
		return host.TransactionFailure(fmt.Sprintf("delete milestone %d", id), err)
	}

	m.state = Trashed
	m.obj.Reset()
	m.mgr.logger.Info("milestone deleted",
		zap.Uint("milestone_id", id),
		zap.Uint("project_id", projectID),
	)
	return nil
}

// Restore brings a trashed milestone back to the persisted state.
func (m *Milestone) Restore(ctx context.Context) error {
	if m.state != Trashed {
		return host.Validationf("milestone %d is not trashed", m.ID())
	}
	if err := m.obj.Host().Records().Restore(ctx, m.ID()); err != nil {
		return err
	}
	m.state = Persisted
	m.obj.Reset()
	m.mgr.logger.Info("milestone restored", zap.Uint("milestone_id", m.ID()))
	return nil
}

// scrubTasks clears every task reference to milestoneID and saves the task
// list when anything changed.
func scrubTasks(ctx context.Context, tasks host.TaskCollection, projectID, milestoneID uint) error {
	list, err := tasks.Tasks(ctx, projectID)
	if err != nil {
		return err
	}
	want := formatUint(milestoneID)
	updated := false
	for _, task := range list {
		ref, ok := task[TaskMilestoneKey]
		if !ok || ref == nil {
			continue
		}
		if fmt.Sprint(ref) == want {
			task[TaskMilestoneKey] = ""
			updated = true
		}
	}
	if !updated {
		return nil
	}
	return tasks.SaveTasks(ctx, projectID, list)
}
