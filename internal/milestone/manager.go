// Package milestone implements the project milestone entity: typed field
// access on top of the entity base, legacy rowset export, and the
// transactional delete that scrubs task references and writes the audit log.
package milestone

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/upstream-pm/upstream/internal/datefmt"
	"github.com/upstream-pm/upstream/internal/entity"
	"github.com/upstream-pm/upstream/internal/host"
	"github.com/upstream-pm/upstream/internal/logging"
	"github.com/upstream-pm/upstream/internal/sanitize"
	"go.uber.org/zap"
)

// Manager creates and looks up milestones.
type Manager struct {
	host       host.Host
	dates      *datefmt.Formatter
	logger     *zap.Logger
	categories bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = logging.OrNop(l) }
}

// WithCategories enables or disables milestone categories.
func WithCategories(enabled bool) Option {
	return func(m *Manager) { m.categories = enabled }
}

// NewManager returns a Manager reading and writing through h. A nil dates
// formatter uses UTC and the default display layout.
func NewManager(h host.Host, dates *datefmt.Formatter, opts ...Option) *Manager {
	if dates == nil {
		dates = datefmt.NewFormatter(nil, "")
	}
	m := &Manager{
		host:       h,
		dates:      dates,
		logger:     zap.NewNop(),
		categories: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithHost returns a copy of m bound to h, typically a transaction.
func (m *Manager) WithHost(h host.Host) *Manager {
	c := *m
	c.host = h
	return &c
}

// Transaction runs fn with a Manager bound to one storage transaction.
func (m *Manager) Transaction(ctx context.Context, fn func(tx *Manager) error) error {
	return m.host.Transaction(ctx, func(tx host.Host) error {
		return fn(m.WithHost(tx))
	})
}

// Dates returns the date formatter used for milestone dates.
func (m *Manager) Dates() *datefmt.Formatter { return m.dates }

// Create returns a new unsaved milestone. createdBy must name an existing
// user. A non-zero projectID must name an existing project.
func (m *Manager) Create(ctx context.Context, title string, createdBy, projectID uint) (*Milestone, error) {
	ok, err := m.host.Users().Exists(ctx, createdBy)
	if err != nil {
		return nil, fmt.Errorf("milestone: check user %d: %w", createdBy, err)
	}
	if !ok {
		return nil, host.Validationf("user %d does not exist", createdBy)
	}

	obj := entity.New(m.host, Schema, host.Record{
		Title:    sanitize.TextField(title),
		AuthorID: createdBy,
		Status:   host.StatusPublish,
	})
	if projectID > 0 {
		project, err := m.host.Projects().Project(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if err := obj.Set(ctx, fieldProjectID, formatUint(project.ID)); err != nil {
			return nil, err
		}
	}
	return &Milestone{obj: obj, mgr: m, state: Unsaved}, nil
}

// ByID loads the live milestone with the given record id.
func (m *Manager) ByID(ctx context.Context, id uint) (*Milestone, error) {
	obj, err := entity.Load(ctx, m.host, Schema, id)
	if err != nil {
		return nil, err
	}
	return &Milestone{obj: obj, mgr: m, state: Persisted}, nil
}

// ByLegacyCode loads the milestone migrated from the old architecture under
// the given legacy id.
func (m *Manager) ByLegacyCode(ctx context.Context, code string) (*Milestone, error) {
	code = sanitize.TextField(code)
	if code == "" {
		return nil, host.Validationf("legacy milestone code is empty")
	}
	rec, err := m.host.Records().FindByMeta(ctx, host.TypeMilestone, MetaLegacyID, code)
	if err != nil {
		return nil, err
	}
	return m.ByID(ctx, rec.ID)
}

// ListByProject returns the live milestones of a project ordered by their
// order field, then id.
func (m *Manager) ListByProject(ctx context.Context, projectID uint) ([]*Milestone, error) {
	recs, err := m.host.Records().ListByMeta(ctx, host.TypeMilestone, MetaProjectID, formatUint(projectID))
	if err != nil {
		return nil, err
	}
	return m.sorted(ctx, recs)
}

// List returns every live milestone ordered by order, then id.
func (m *Manager) List(ctx context.Context) ([]*Milestone, error) {
	recs, err := m.host.Records().ListByMeta(ctx, host.TypeMilestone, "", "")
	if err != nil {
		return nil, err
	}
	return m.sorted(ctx, recs)
}

// Restore brings a trashed milestone back and returns it.
func (m *Manager) Restore(ctx context.Context, id uint) (*Milestone, error) {
	var restored *Milestone
	err := m.host.Transaction(ctx, func(tx host.Host) error {
		if err := tx.Records().Restore(ctx, id); err != nil {
			return err
		}
		ms, err := m.WithHost(tx).ByID(ctx, id)
		if err != nil {
			return err
		}
		restored = ms
		return nil
	})
	if err != nil {
		return nil, err
	}
	restored.rebind(m)
	m.logger.Info("milestone restored", zap.Uint("milestone_id", id))
	return restored, nil
}

func (m *Manager) sorted(ctx context.Context, recs []host.Record) ([]*Milestone, error) {
	type entry struct {
		ms    *Milestone
		order int
	}
	entries := make([]entry, 0, len(recs))
	for i := range recs {
		obj, err := entity.Load(ctx, m.host, Schema, recs[i].ID)
		if err != nil {
			return nil, err
		}
		ms := &Milestone{obj: obj, mgr: m, state: Persisted}
		order, err := ms.Order(ctx)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{ms: ms, order: order})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].order != entries[j].order {
			return entries[i].order < entries[j].order
		}
		return entries[i].ms.ID() < entries[j].ms.ID()
	})

	out := make([]*Milestone, len(entries))
	for i, e := range entries {
		out[i] = e.ms
	}
	return out, nil
}

func formatUint(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
