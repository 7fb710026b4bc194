// Package host declares the storage, user, and audit capabilities that the
// entity layer consumes. Implementations live in internal/store.
package host

import (
	"context"
	"time"
)

// Post types and statuses shared by the record store and its callers.
const (
	TypeProject   = "project"
	TypeMilestone = "upst_milestone"

	StatusPublish = "publish"
	StatusDraft   = "draft"
	StatusTrash   = "trash"
)

// Host bundles every capability the entity layer talks to.
type Host interface {
	Meta() MetaStore
	Records() RecordStore
	Users() UserDirectory
	Projects() ProjectLookup
	Tasks() TaskCollection
	Activity() AuditLog
	Terms() TermStore

	// Transaction runs fn against a Host bound to a single storage
	// transaction. A non-nil error from fn rolls the transaction back.
	Transaction(ctx context.Context, fn func(tx Host) error) error
}

// MetaStore is a key-value store keyed by (record id, meta key). A key may
// hold several rows.
type MetaStore interface {
	// Get returns the first value stored under key.
	Get(ctx context.Context, id uint, key string) (value string, found bool, err error)
	// GetAll returns every value stored under key in insertion order.
	GetAll(ctx context.Context, id uint, key string) ([]string, error)
	// Set replaces all values stored under key with value.
	Set(ctx context.Context, id uint, key, value string) error
	// Add appends another value under key.
	Add(ctx context.Context, id uint, key, value string) error
	// Delete removes every value stored under key.
	Delete(ctx context.Context, id uint, key string) error
}

// Record is the content row behind an entity.
type Record struct {
	ID        uint
	Type      string
	Title     string
	Content   string
	Status    string
	AuthorID  uint
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecordUpdate lists the record columns to change. Nil fields are left alone.
type RecordUpdate struct {
	Title   *string
	Content *string
	Status  *string
}

// WriteMode selects whether a record write goes through the save pipeline.
type WriteMode int

const (
	// WriteNormal fires every registered SaveHook after the write.
	WriteNormal WriteMode = iota
	// WriteInternal skips the save pipeline. Entity mutators use it for
	// direct column updates so save hooks are never re-entered.
	WriteInternal
)

// SaveHook observes records written with WriteNormal.
type SaveHook func(ctx context.Context, rec *Record) error

// RecordStore persists content records and their trash state.
type RecordStore interface {
	Get(ctx context.Context, id uint) (*Record, error)
	Insert(ctx context.Context, rec *Record, mode WriteMode) (uint, error)
	Update(ctx context.Context, id uint, upd RecordUpdate, mode WriteMode) error
	Trash(ctx context.Context, id uint) error
	Restore(ctx context.Context, id uint) error
	// FindByMeta returns the first live record of recordType whose meta key
	// equals value.
	FindByMeta(ctx context.Context, recordType, key, value string) (*Record, error)
	// ListByMeta returns live records of recordType whose meta key equals
	// value. An empty key lists every live record of the type.
	ListByMeta(ctx context.Context, recordType, key, value string) ([]Record, error)
}

// UserDirectory resolves user ids.
type UserDirectory interface {
	Exists(ctx context.Context, id uint) (bool, error)
	DisplayName(ctx context.Context, id uint) (string, error)
}

// ProjectLookup resolves project records.
type ProjectLookup interface {
	Project(ctx context.Context, id uint) (*Record, error)
}

// Task is one entry of a project's task collection. Its shape is owned by
// the task management code, so it stays loosely typed here.
type Task map[string]any

// TaskCollection reads and writes the task list stored on a project.
type TaskCollection interface {
	Tasks(ctx context.Context, projectID uint) ([]Task, error)
	SaveTasks(ctx context.Context, projectID uint, tasks []Task) error
}

// ActivityEntry is one row of a project's audit trail.
type ActivityEntry struct {
	ID        string
	ProjectID uint
	Subject   string
	Action    string
	Payload   []byte
	CreatedAt time.Time
}

// AuditLog appends to and reads a project's audit trail.
type AuditLog interface {
	Record(ctx context.Context, projectID uint, subject, action string, payload any) error
	List(ctx context.Context, projectID uint) ([]ActivityEntry, error)
}

// TermStore manages taxonomy terms attached to records.
type TermStore interface {
	Exists(ctx context.Context, taxonomy string, id uint) (bool, error)
	ObjectTerms(ctx context.Context, objectID uint, taxonomy string) ([]uint, error)
	SetObjectTerms(ctx context.Context, objectID uint, taxonomy string, ids []uint) error
}
