// Package store implements the host capabilities on top of GORM. One Store
// serves MySQL in production and SQLite locally and in tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/upstream-pm/upstream/internal/host"
	"github.com/upstream-pm/upstream/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is a GORM-backed host.Host.
type Store struct {
	db     *gorm.DB
	hooks  *hookRegistry
	logger *zap.Logger
}

var _ host.Host = (*Store)(nil)

// New wraps db. A nil logger discards log output.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		hooks:  &hookRegistry{},
		logger: logging.OrNop(logger),
	}
}

// DB exposes the underlying connection, or the transaction when the Store
// was handed out by Transaction.
func (s *Store) DB() *gorm.DB { return s.db }

// OnSave registers a hook fired after every record write made with
// host.WriteNormal.
func (s *Store) OnSave(hook host.SaveHook) {
	s.hooks.add(hook)
}

func (s *Store) Meta() host.MetaStore { return &metaStore{db: s.db} }
func (s *Store) Records() host.RecordStore { return &recordStore{db: s.db, hooks: s.hooks} }
func (s *Store) Users() host.UserDirectory { return &userDirectory{db: s.db} }
func (s *Store) Projects() host.ProjectLookup { return &projectLookup{db: s.db} }
func (s *Store) Tasks() host.TaskCollection { return &taskCollection{meta: &metaStore{db: s.db}} }
func (s *Store) Activity() host.AuditLog { return &auditLog{db: s.db} }
func (s *Store) Terms() host.TermStore { return &termStore{db: s.db} }

// Transaction runs fn inside a single database transaction. Save hooks stay
// shared with the parent Store.
func (s *Store) Transaction(ctx context.Context, fn func(tx host.Host) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, hooks: s.hooks, logger: s.logger})
	})
}

// hookRegistry holds the save pipeline. Hooks are registered at startup and
// read on every normal write.
type hookRegistry struct {
	mu    sync.RWMutex
	hooks []host.SaveHook
}

func (r *hookRegistry) add(h host.SaveHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

func (r *hookRegistry) fire(ctx context.Context, rec *host.Record) error {
	r.mu.RLock()
	hooks := append([]host.SaveHook(nil), r.hooks...)
	r.mu.RUnlock()
	for _, h := range hooks {
		if err := h(ctx, rec); err != nil {
			return fmt.Errorf("store: save hook for record %d: %w", rec.ID, err)
		}
	}
	return nil
}

// notFound converts gorm.ErrRecordNotFound into a host not-found error.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &host.Error{Kind: host.ErrNotFound, Msg: fmt.Sprintf(format, args...), Err: err}
	}
	return nil
}
