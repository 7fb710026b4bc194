package milestone

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/upstream-pm/upstream/internal/datefmt"
	"github.com/upstream-pm/upstream/internal/entity"
	"github.com/upstream-pm/upstream/internal/host"
	"github.com/upstream-pm/upstream/internal/sanitize"
	"go.uber.org/zap"
)

// State is a milestone's position in its lifecycle.
type State int

const (
	// Unsaved milestones exist only in memory.
	Unsaved State = iota
	// Persisted milestones have a live record.
	Persisted
	// Trashed milestones were deleted and can only be restored.
	Trashed
)

func (s State) String() string {
	switch s {
	case Unsaved:
		return "unsaved"
	case Persisted:
		return "persisted"
	case Trashed:
		return "trashed"
	default:
		return "unknown"
	}
}

// Milestone is one dated checkpoint of a project. Setters on a persisted
// milestone write through immediately. On an unsaved milestone they are
// staged until Save.
type Milestone struct {
	obj   *entity.Object
	mgr   *Manager
	state State

	// categories staged before the first Save.
	pendingCategories []uint
}

// ID returns the record id, 0 while unsaved.
func (m *Milestone) ID() uint { return m.obj.ID() }

// State returns the lifecycle state.
func (m *Milestone) State() State { return m.state }

// Save stores an unsaved milestone: the record, every staged field, and any
// staged categories, in one transaction.
func (m *Milestone) Save(ctx context.Context) error {
	switch m.state {
	case Persisted:
		return nil
	case Trashed:
		return host.Validationf("milestone %d is trashed", m.ID())
	}

	h := m.obj.Host()
	var stored *Milestone
	err := h.Transaction(ctx, func(tx host.Host) error {
		bound := m.bind(tx)
		if err := bound.obj.Store(ctx); err != nil {
			return err
		}
		bound.state = Persisted
		if m.pendingCategories != nil && m.mgr.categories {
			if err := tx.Terms().SetObjectTerms(ctx, bound.ID(), CategoryTaxonomy, m.pendingCategories); err != nil {
				return err
			}
		}
		stored = bound
		return nil
	})
	if err != nil {
		return err
	}

	m.obj = stored.obj.Bind(h)
	m.state = Persisted
	m.pendingCategories = nil
	m.mgr.logger.Info("milestone created", zap.Uint("milestone_id", m.ID()))
	return nil
}

// bind returns a copy of m that reads and writes through h.
func (m *Milestone) bind(h host.Host) *Milestone {
	return &Milestone{
		obj:               m.obj.Bind(h),
		mgr:               m.mgr.WithHost(h),
		state:             m.state,
		pendingCategories: m.pendingCategories,
	}
}

// rebind points m back at the manager's host after work done in a
// transaction.
func (m *Milestone) rebind(mgr *Manager) {
	m.obj = m.obj.Bind(mgr.host)
	m.mgr = mgr
}

func (m *Milestone) set(ctx context.Context, field, value string) error {
	if err := m.obj.Set(ctx, field, value); err != nil {
		return err
	}
	m.mgr.logger.Debug("milestone field written",
		zap.Uint("milestone_id", m.ID()),
		zap.String("field", field),
	)
	return nil
}

// Name returns the milestone title.
func (m *Milestone) Name(ctx context.Context) (string, error) {
	rec, err := m.obj.Record(ctx)
	if err != nil {
		return "", err
	}
	return rec.Title, nil
}

// SetName sanitizes and stores the title. The record is updated outside the
// save pipeline.
func (m *Milestone) SetName(ctx context.Context, name string) error {
	name = sanitize.TextField(name)
	return m.obj.UpdateRecord(ctx, host.RecordUpdate{Title: &name})
}

// Notes returns the milestone body text.
func (m *Milestone) Notes(ctx context.Context) (string, error) {
	rec, err := m.obj.Record(ctx)
	if err != nil {
		return "", err
	}
	return rec.Content, nil
}

// SetNotes sanitizes and stores the body text. The record is updated outside
// the save pipeline.
func (m *Milestone) SetNotes(ctx context.Context, notes string) error {
	notes = sanitize.TextareaField(notes)
	return m.obj.UpdateRecord(ctx, host.RecordUpdate{Content: &notes})
}

// ProjectID returns the owning project, 0 when unset.
func (m *Milestone) ProjectID(ctx context.Context) (uint, error) {
	v, err := m.obj.Value(ctx, fieldProjectID)
	if err != nil {
		return 0, err
	}
	return toUint(v), nil
}

// SetProjectID moves the milestone to another project. A non-zero id must
// name an existing project.
func (m *Milestone) SetProjectID(ctx context.Context, projectID uint) error {
	if projectID > 0 {
		if _, err := m.obj.Host().Projects().Project(ctx, projectID); err != nil {
			return err
		}
	}
	return m.set(ctx, fieldProjectID, formatUint(projectID))
}

// AssignedTo returns the assigned user ids. The result is never nil.
func (m *Milestone) AssignedTo(ctx context.Context) ([]uint, error) {
	vals, err := m.obj.Values(ctx, fieldAssignedTo)
	if err != nil {
		return nil, err
	}
	return ParseIDs(vals), nil
}

// SetAssignedTo replaces the assignees. Zero and duplicate ids are dropped.
func (m *Milestone) SetAssignedTo(ctx context.Context, ids []uint) error {
	ids = uniqueIDs(ids)
	vals := make([]string, len(ids))
	for i, id := range ids {
		vals[i] = formatUint(id)
	}
	return m.obj.SetValues(ctx, fieldAssignedTo, vals)
}

// StartDate returns the stored start date.
func (m *Milestone) StartDate(ctx context.Context) (datefmt.Value, error) {
	return m.date(ctx, fieldStartDate)
}

// SetStartDate normalizes v and stores it as the start date. See
// datefmt.Formatter.Normalize for the accepted inputs.
func (m *Milestone) SetStartDate(ctx context.Context, v any) error {
	return m.setDate(ctx, fieldStartDate, fieldStartDateYMD, v)
}

// EndDate returns the stored end date.
func (m *Milestone) EndDate(ctx context.Context) (datefmt.Value, error) {
	return m.date(ctx, fieldEndDate)
}

// SetEndDate normalizes v and stores it as the end date.
func (m *Milestone) SetEndDate(ctx context.Context, v any) error {
	return m.setDate(ctx, fieldEndDate, fieldEndDateYMD, v)
}

func (m *Milestone) date(ctx context.Context, field string) (datefmt.Value, error) {
	v, err := m.obj.Value(ctx, field)
	if err != nil {
		return datefmt.Value{}, err
	}
	return m.mgr.dates.Value(v), nil
}

func (m *Milestone) setDate(ctx context.Context, field, mirror string, v any) error {
	canonical, err := m.mgr.dates.Normalize(v)
	if err != nil {
		return err
	}
	if err := m.set(ctx, field, canonical); err != nil {
		return err
	}
	return m.obj.Set(ctx, mirror, canonical)
}

// Order returns the position among the project's milestones.
func (m *Milestone) Order(ctx context.Context) (int, error) {
	return m.intField(ctx, fieldOrder)
}

// SetOrder stores the position. Equal orders are allowed.
func (m *Milestone) SetOrder(ctx context.Context, order int) error {
	return m.set(ctx, fieldOrder, strconv.Itoa(order))
}

// Progress returns the completion percentage, 0 when never set.
func (m *Milestone) Progress(ctx context.Context) (float64, error) {
	v, err := m.obj.Value(ctx, fieldProgress)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || f < 0 {
		return 0, nil
	}
	return f, nil
}

// SetProgress stores the completion percentage.
func (m *Milestone) SetProgress(ctx context.Context, progress float64) error {
	if math.IsNaN(progress) || math.IsInf(progress, 0) || progress < 0 {
		return host.Validationf("progress %v is not a non-negative number", progress)
	}
	return m.set(ctx, fieldProgress, strconv.FormatFloat(progress, 'f', -1, 64))
}

// Color returns the color token.
func (m *Milestone) Color(ctx context.Context) (string, error) {
	return m.obj.Value(ctx, fieldColor)
}

// SetColor sanitizes and stores the color token.
func (m *Milestone) SetColor(ctx context.Context, color string) error {
	return m.set(ctx, fieldColor, sanitize.TextField(color))
}

// CreatedBy returns the authoring user.
func (m *Milestone) CreatedBy(ctx context.Context) (uint, error) {
	rec, err := m.obj.Record(ctx)
	if err != nil {
		return 0, err
	}
	return rec.AuthorID, nil
}

// CreatedOn returns the creation date in the site timezone. It is empty for
// an unsaved milestone.
func (m *Milestone) CreatedOn(ctx context.Context) (datefmt.Value, error) {
	rec, err := m.obj.Record(ctx)
	if err != nil {
		return datefmt.Value{}, err
	}
	if rec.CreatedAt.IsZero() {
		return m.mgr.dates.Value(""), nil
	}
	day := rec.CreatedAt.In(m.mgr.dates.Location()).Format(datefmt.Layout)
	return m.mgr.dates.Value(day), nil
}

// LegacyID returns the id the milestone had in the old architecture.
func (m *Milestone) LegacyID(ctx context.Context) (string, error) {
	return m.obj.Value(ctx, fieldLegacyID)
}

// SetLegacyID stores the old-architecture id.
func (m *Milestone) SetLegacyID(ctx context.Context, id string) error {
	return m.set(ctx, fieldLegacyID, sanitize.TextField(id))
}

// LegacyMilestoneCode returns the old-architecture milestone code.
func (m *Milestone) LegacyMilestoneCode(ctx context.Context) (string, error) {
	return m.obj.Value(ctx, fieldLegacyMilestoneCode)
}

// SetLegacyMilestoneCode stores the old-architecture milestone code.
func (m *Milestone) SetLegacyMilestoneCode(ctx context.Context, code string) error {
	return m.set(ctx, fieldLegacyMilestoneCode, sanitize.TextField(code))
}

// CreatedTimeInUTC reports whether the legacy created time was recorded in UTC.
func (m *Milestone) CreatedTimeInUTC(ctx context.Context) (bool, error) {
	v, err := m.obj.Value(ctx, fieldCreatedTimeInUTC)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b, nil
}

// SetCreatedTimeInUTC stores the legacy UTC flag.
func (m *Milestone) SetCreatedTimeInUTC(ctx context.Context, utc bool) error {
	v := "0"
	if utc {
		v = "1"
	}
	return m.set(ctx, fieldCreatedTimeInUTC, v)
}

// TaskCount returns the denormalized number of tasks.
func (m *Milestone) TaskCount(ctx context.Context) (int, error) {
	return m.intField(ctx, fieldTaskCount)
}

// SetTaskCount stores the denormalized number of tasks.
func (m *Milestone) SetTaskCount(ctx context.Context, n int) error {
	return m.set(ctx, fieldTaskCount, strconv.Itoa(n))
}

// TaskOpen returns the denormalized number of open tasks.
func (m *Milestone) TaskOpen(ctx context.Context) (int, error) {
	return m.intField(ctx, fieldTaskOpen)
}

// SetTaskOpen stores the denormalized number of open tasks.
func (m *Milestone) SetTaskOpen(ctx context.Context, n int) error {
	return m.set(ctx, fieldTaskOpen, strconv.Itoa(n))
}

func (m *Milestone) intField(ctx context.Context, field string) (int, error) {
	v, err := m.obj.Value(ctx, field)
	if err != nil {
		return 0, err
	}
	return int(leadingInt(v)), nil
}

// ParseIDs coerces raw values to user ids the way stored assignee rows are
// read: leading digits count, anything else is 0. Zero and repeated ids are
// dropped. The result is never nil.
func ParseIDs(values []string) []uint {
	ids := make([]uint, 0, len(values))
	for _, v := range values {
		n := leadingInt(v)
		if n <= 0 {
			continue
		}
		ids = append(ids, uint(n))
	}
	return uniqueIDs(ids)
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func toUint(s string) uint {
	n := leadingInt(s)
	if n <= 0 {
		return 0
	}
	return uint(n)
}

// leadingInt parses an optional sign and the leading digits of s, ignoring
// surrounding space. It returns 0 when there are no digits or on overflow.
func leadingInt(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
