// Package importer loads milestones from legacy rowset documents, the shape
// written by "upstream milestone export".
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/upstream-pm/upstream/internal/host"
	"github.com/upstream-pm/upstream/internal/logging"
	"github.com/upstream-pm/upstream/internal/milestone"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Row is one legacy milestone. Dates may be unix epochs or date strings.
// ID is the milestone's id in the source system and becomes its legacy id.
type Row struct {
	ID                  string   `yaml:"id"`
	Milestone           string   `yaml:"milestone"`
	MilestoneOrder      int      `yaml:"milestone_order"`
	CreatedBy           uint     `yaml:"created_by"`
	AssignedTo          []string `yaml:"assigned_to"`
	Progress            float64  `yaml:"progress"`
	Notes               string   `yaml:"notes"`
	StartDate           string   `yaml:"start_date"`
	EndDate             string   `yaml:"end_date"`
	TaskCount           int      `yaml:"task_count"`
	TaskOpen            int      `yaml:"task_open"`
	Color               string   `yaml:"color"`
	LegacyMilestoneCode string   `yaml:"legacy_milestone_code"`
}

// Decode reads a YAML or JSON list of rows.
func Decode(r io.Reader) ([]Row, error) {
	var rows []Row
	if err := yaml.NewDecoder(r).Decode(&rows); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("importer: decode rows: %w", err)
	}
	return rows, nil
}

// RowError reports a row that was skipped.
type RowError struct {
	Row      int
	LegacyID string
	Err      error
}

func (e *RowError) Error() string {
	if e.LegacyID != "" {
		return fmt.Sprintf("row %d (id %s): %v", e.Row, e.LegacyID, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Result summarizes an import.
type Result struct {
	Imported []uint
	Skipped  []*RowError
}

// Importer creates milestones from rows.
type Importer struct {
	host   host.Host
	mgr    *milestone.Manager
	logger *zap.Logger
}

// New returns an Importer writing through mgr. h resolves projects.
func New(h host.Host, mgr *milestone.Manager, logger *zap.Logger) *Importer {
	return &Importer{host: h, mgr: mgr, logger: logging.OrNop(logger)}
}

// Import creates one milestone per row in projectID, inside one transaction.
// Rows failing validation, including rows whose legacy id was already
// imported, are rolled back individually and reported in Result.Skipped.
// Any other error aborts the whole import. Rows without created_by are
// attributed to defaultAuthor.
func (im *Importer) Import(ctx context.Context, projectID, defaultAuthor uint, rows []Row) (*Result, error) {
	if _, err := im.host.Projects().Project(ctx, projectID); err != nil {
		return nil, err
	}

	res := &Result{}
	err := im.mgr.Transaction(ctx, func(tx *milestone.Manager) error {
		for i, row := range rows {
			var id uint
			err := tx.Transaction(ctx, func(rowTx *milestone.Manager) error {
				var err error
				id, err = importRow(ctx, rowTx, projectID, defaultAuthor, row)
				return err
			})
			switch {
			case err == nil:
				res.Imported = append(res.Imported, id)
			case host.IsValidation(err):
				res.Skipped = append(res.Skipped, &RowError{Row: i + 1, LegacyID: row.ID, Err: err})
			default:
				return fmt.Errorf("importer: row %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	im.logger.Info("milestones imported",
		zap.Uint("project_id", projectID),
		zap.Int("imported", len(res.Imported)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

func importRow(ctx context.Context, mgr *milestone.Manager, projectID, defaultAuthor uint, row Row) (uint, error) {
	if strings.TrimSpace(row.Milestone) == "" {
		return 0, host.Validationf("milestone name is empty")
	}
	legacyID := strings.TrimSpace(row.ID)
	if legacyID != "" {
		_, err := mgr.ByLegacyCode(ctx, legacyID)
		if err == nil {
			return 0, host.Validationf("legacy id %q was already imported", legacyID)
		}
		if !host.IsNotFound(err) {
			return 0, err
		}
	}

	author := row.CreatedBy
	if author == 0 {
		author = defaultAuthor
	}
	ms, err := mgr.Create(ctx, row.Milestone, author, projectID)
	if err != nil {
		return 0, err
	}

	steps := []func() error{
		func() error { return ms.SetOrder(ctx, row.MilestoneOrder) },
		func() error { return ms.SetProgress(ctx, row.Progress) },
		func() error { return ms.SetNotes(ctx, row.Notes) },
		func() error { return ms.SetStartDate(ctx, row.StartDate) },
		func() error { return ms.SetEndDate(ctx, row.EndDate) },
		func() error { return ms.SetAssignedTo(ctx, milestone.ParseIDs(row.AssignedTo)) },
		func() error { return ms.SetTaskCount(ctx, row.TaskCount) },
		func() error { return ms.SetTaskOpen(ctx, row.TaskOpen) },
	}
	if legacyID != "" {
		steps = append(steps, func() error { return ms.SetLegacyID(ctx, legacyID) })
	}
	if row.Color != "" {
		steps = append(steps, func() error { return ms.SetColor(ctx, row.Color) })
	}
	if row.LegacyMilestoneCode != "" {
		steps = append(steps, func() error { return ms.SetLegacyMilestoneCode(ctx, row.LegacyMilestoneCode) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return 0, err
		}
	}

	if err := ms.Save(ctx); err != nil {
		return 0, err
	}
	return ms.ID(), nil
}
