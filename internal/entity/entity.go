// Package entity maps records and their meta fields onto in-memory objects.
//
// An Object is declared by a Schema listing its fields and the meta keys that
// back them. Fields load lazily on first read and are cached per field.
// Writes on a persisted Object go straight to the store; writes on an unsaved
// Object are staged and flushed by Store.
package entity

import (
	"context"
	"fmt"

	"github.com/upstream-pm/upstream/internal/host"
)

// Field binds a field name to the meta key that stores it.
type Field struct {
	Name     string
	Key      string
	Repeated bool
}

// Schema declares the record type and fields of an entity.
type Schema struct {
	PostType string
	Fields   []Field
}

// Field looks up a declared field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Object is one entity instance backed by a record and its meta rows.
type Object struct {
	h      host.Host
	schema Schema
	id     uint

	record  Lazy[*host.Record]
	pending host.Record
	cache   map[string]*Lazy[[]string]

	staged      map[string][]string
	stagedOrder []string
}

// New returns an unsaved Object. rec seeds the record written by Store.
func New(h host.Host, schema Schema, rec host.Record) *Object {
	rec.Type = schema.PostType
	return &Object{
		h:       h,
		schema:  schema,
		pending: rec,
		cache:   make(map[string]*Lazy[[]string]),
		staged:  make(map[string][]string),
	}
}

// Load returns the persisted Object with the given id. It fails with a
// not-found error when no live record of the schema's type exists.
func Load(ctx context.Context, h host.Host, schema Schema, id uint) (*Object, error) {
	if id == 0 {
		return nil, host.NotFoundf("%s 0", schema.PostType)
	}
	rec, err := h.Records().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Type != schema.PostType {
		return nil, host.NotFoundf("%s %d", schema.PostType, id)
	}
	o := New(h, schema, host.Record{})
	o.id = id
	o.record.Set(rec)
	return o, nil
}

// ID returns the record id, or 0 while the Object is unsaved.
func (o *Object) ID() uint { return o.id }

// Persisted reports whether the Object has a record in the store.
func (o *Object) Persisted() bool { return o.id != 0 }

// Host returns the host the Object reads and writes through.
func (o *Object) Host() host.Host { return o.h }

// Bind returns a copy of o that talks to h, typically a transaction-scoped
// host. Caches are copied so the two Objects do not share state.
func (o *Object) Bind(h host.Host) *Object {
	c := &Object{
		h:       h,
		schema:  o.schema,
		id:      o.id,
		record:  o.record,
		pending: o.pending,
		cache:   make(map[string]*Lazy[[]string], len(o.cache)),
		staged:  make(map[string][]string, len(o.staged)),
	}
	for k, v := range o.cache {
		cp := *v
		c.cache[k] = &cp
	}
	for k, v := range o.staged {
		c.staged[k] = append([]string(nil), v...)
	}
	c.stagedOrder = append([]string(nil), o.stagedOrder...)
	return c
}

// Reset drops every cached field value and the cached record.
func (o *Object) Reset() {
	o.record.Reset()
	o.cache = make(map[string]*Lazy[[]string])
}

// Record returns the backing record. For an unsaved Object it is the record
// that Store will insert.
func (o *Object) Record(ctx context.Context) (*host.Record, error) {
	if !o.Persisted() {
		rec := o.pending
		return &rec, nil
	}
	return o.record.Get(func() (*host.Record, error) {
		return o.h.Records().Get(ctx, o.id)
	})
}

// UpdateRecord changes record columns. Persisted Objects write with
// host.WriteInternal so save hooks are not re-entered.
func (o *Object) UpdateRecord(ctx context.Context, upd host.RecordUpdate) error {
	if !o.Persisted() {
		if upd.Title != nil {
			o.pending.Title = *upd.Title
		}
		if upd.Content != nil {
			o.pending.Content = *upd.Content
		}
		if upd.Status != nil {
			o.pending.Status = *upd.Status
		}
		return nil
	}
	if err := o.h.Records().Update(ctx, o.id, upd, host.WriteInternal); err != nil {
		return err
	}
	o.record.Reset()
	return nil
}

// Value returns the first value of a field, or "" when it has none.
func (o *Object) Value(ctx context.Context, name string) (string, error) {
	vals, err := o.Values(ctx, name)
	if err != nil || len(vals) == 0 {
		return "", err
	}
	return vals[0], nil
}

// Values returns every value of a field.
func (o *Object) Values(ctx context.Context, name string) ([]string, error) {
	f, err := o.field(name)
	if err != nil {
		return nil, err
	}
	l := o.lazy(name)
	vals, err := l.Get(func() ([]string, error) {
		if !o.Persisted() {
			return o.staged[name], nil
		}
		if f.Repeated {
			return o.h.Meta().GetAll(ctx, o.id, f.Key)
		}
		v, found, err := o.h.Meta().Get(ctx, o.id, f.Key)
		if err != nil || !found {
			return nil, err
		}
		return []string{v}, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), vals...), nil
}

// Set replaces the value of a single-valued field.
func (o *Object) Set(ctx context.Context, name, value string) error {
	f, err := o.field(name)
	if err != nil {
		return err
	}
	if f.Repeated {
		return o.SetValues(ctx, name, []string{value})
	}
	if !o.Persisted() {
		o.stage(name, []string{value})
		return nil
	}
	if err := o.h.Meta().Set(ctx, o.id, f.Key, value); err != nil {
		return err
	}
	o.lazy(name).Set([]string{value})
	return nil
}

// SetValues replaces every value of a field. Repeated fields are deleted and
// re-added one row per value.
func (o *Object) SetValues(ctx context.Context, name string, values []string) error {
	f, err := o.field(name)
	if err != nil {
		return err
	}
	if !f.Repeated {
		if len(values) == 0 {
			return o.Set(ctx, name, "")
		}
		return o.Set(ctx, name, values[0])
	}
	values = append([]string(nil), values...)
	if !o.Persisted() {
		o.stage(name, values)
		return nil
	}
	meta := o.h.Meta()
	if err := meta.Delete(ctx, o.id, f.Key); err != nil {
		return err
	}
	for _, v := range values {
		if err := meta.Add(ctx, o.id, f.Key, v); err != nil {
			o.lazy(name).Reset()
			return err
		}
	}
	o.lazy(name).Set(values)
	return nil
}

// AddValue appends one value to a repeated field.
func (o *Object) AddValue(ctx context.Context, name, value string) error {
	f, err := o.field(name)
	if err != nil {
		return err
	}
	if !f.Repeated {
		return fmt.Errorf("entity: field %q is not repeated", name)
	}
	if !o.Persisted() {
		o.stage(name, append(o.staged[name], value))
		return nil
	}
	if err := o.h.Meta().Add(ctx, o.id, f.Key, value); err != nil {
		return err
	}
	l := o.lazy(name)
	if cur, ok := l.Peek(); ok {
		l.Set(append(cur, value))
	}
	return nil
}

// Store inserts the record of an unsaved Object and flushes every staged
// field in one transaction. Nothing staged survives a successful call.
func (o *Object) Store(ctx context.Context) error {
	if o.Persisted() {
		return fmt.Errorf("entity: %s %d is already stored", o.schema.PostType, o.id)
	}
	rec := o.pending
	err := o.h.Transaction(ctx, func(tx host.Host) error {
		id, err := tx.Records().Insert(ctx, &rec, host.WriteNormal)
		if err != nil {
			return err
		}
		meta := tx.Meta()
		for _, name := range o.stagedOrder {
			f, _ := o.schema.Field(name)
			vals := o.staged[name]
			if !f.Repeated {
				if err := meta.Set(ctx, id, f.Key, vals[0]); err != nil {
					return err
				}
				continue
			}
			for _, v := range vals {
				if err := meta.Add(ctx, id, f.Key, v); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("entity: store %s: %w", o.schema.PostType, err)
	}

	o.id = rec.ID
	o.record.Set(&rec)
	o.staged = make(map[string][]string)
	o.stagedOrder = nil
	return nil
}

func (o *Object) field(name string) (Field, error) {
	f, ok := o.schema.Field(name)
	if !ok {
		return Field{}, fmt.Errorf("entity: %s has no field %q", o.schema.PostType, name)
	}
	return f, nil
}

func (o *Object) lazy(name string) *Lazy[[]string] {
	l, ok := o.cache[name]
	if !ok {
		l = &Lazy[[]string]{}
		o.cache[name] = l
	}
	return l
}

func (o *Object) stage(name string, values []string) {
	if _, ok := o.staged[name]; !ok {
		o.stagedOrder = append(o.stagedOrder, name)
	}
	o.staged[name] = values
	o.lazy(name).Set(values)
}
