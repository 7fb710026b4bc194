package entity

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/upstream-pm/upstream/internal/db"
	"github.com/upstream-pm/upstream/internal/host"
	"github.com/upstream-pm/upstream/internal/store"
)

var testSchema = Schema{
	PostType: "widget",
	Fields: []Field{
		{Name: "color", Key: "w_color"},
		{Name: "owners", Key: "w_owner", Repeated: true},
	},
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return store.New(gdb, nil)
}

func TestLazy(t *testing.T) {
	var l Lazy[string]
	calls := 0
	load := func() (string, error) {
		calls++
		return "", nil
	}

	if _, ok := l.Peek(); ok {
		t.Fatal("Peek on fresh Lazy reports loaded")
	}
	for i := 0; i < 3; i++ {
		if _, err := l.Get(load); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("load called %d times, want 1 (empty value must stay cached)", calls)
	}

	l.Reset()
	l.Get(load)
	if calls != 2 {
		t.Errorf("load after Reset called %d times total, want 2", calls)
	}
}

func TestLazy_FailedLoadRetries(t *testing.T) {
	var l Lazy[int]
	boom := errors.New("boom")
	if _, err := l.Get(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("Get error = %v, want boom", err)
	}
	v, err := l.Get(func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("Get after failure = %d, %v; want 7", v, err)
	}
}

func TestLoad_NotFound(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if _, err := Load(ctx, s, testSchema, 99); !host.IsNotFound(err) {
		t.Errorf("Load(99) error = %v, want not found", err)
	}
	if _, err := Load(ctx, s, testSchema, 0); !host.IsNotFound(err) {
		t.Errorf("Load(0) error = %v, want not found", err)
	}

	other, err := s.Records().Insert(ctx, &host.Record{Type: "gadget", Title: "x"}, host.WriteInternal)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Load(ctx, s, testSchema, other); !host.IsNotFound(err) {
		t.Errorf("Load of wrong type error = %v, want not found", err)
	}
}

func TestObject_StagedUntilStore(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	o := New(s, testSchema, host.Record{Title: "First", AuthorID: 4})
	if o.Persisted() || o.ID() != 0 {
		t.Fatal("new Object should be unsaved")
	}
	if err := o.Set(ctx, "color", "red"); err != nil {
		t.Fatal(err)
	}
	if err := o.SetValues(ctx, "owners", []string{"1", "2"}); err != nil {
		t.Fatal(err)
	}
	if err := o.AddValue(ctx, "owners", "3"); err != nil {
		t.Fatal(err)
	}
	if got, _ := o.Value(ctx, "color"); got != "red" {
		t.Errorf("staged color = %q", got)
	}

	if err := o.Store(ctx); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if o.ID() == 0 {
		t.Fatal("Store did not assign an id")
	}

	loaded, err := Load(ctx, s, testSchema, o.ID())
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := loaded.Value(ctx, "color"); got != "red" {
		t.Errorf("stored color = %q, want red", got)
	}
	owners, _ := loaded.Values(ctx, "owners")
	if !reflect.DeepEqual(owners, []string{"1", "2", "3"}) {
		t.Errorf("stored owners = %v", owners)
	}
	rec, err := loaded.Record(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Title != "First" || rec.AuthorID != 4 || rec.Type != "widget" {
		t.Errorf("record = %+v", rec)
	}

	if err := o.Store(ctx); err == nil {
		t.Error("second Store should fail")
	}
}

func TestObject_WriteThrough(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	o := New(s, testSchema, host.Record{Title: "W"})
	if err := o.Store(ctx); err != nil {
		t.Fatal(err)
	}
	if err := o.Set(ctx, "color", "blue"); err != nil {
		t.Fatal(err)
	}
	if err := o.SetValues(ctx, "owners", []string{"8", "9"}); err != nil {
		t.Fatal(err)
	}

	v, found, _ := s.Meta().Get(ctx, o.ID(), "w_color")
	if !found || v != "blue" {
		t.Errorf("meta w_color = %q, %v", v, found)
	}
	rows, _ := s.Meta().GetAll(ctx, o.ID(), "w_owner")
	if !reflect.DeepEqual(rows, []string{"8", "9"}) {
		t.Errorf("meta w_owner = %v", rows)
	}

	if err := o.SetValues(ctx, "owners", nil); err != nil {
		t.Fatal(err)
	}
	rows, _ = s.Meta().GetAll(ctx, o.ID(), "w_owner")
	if len(rows) != 0 {
		t.Errorf("owners after clear = %v", rows)
	}
}

func TestObject_ValuesCachedPerField(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	o := New(s, testSchema, host.Record{Title: "W"})
	if err := o.Store(ctx); err != nil {
		t.Fatal(err)
	}
	loaded, _ := Load(ctx, s, testSchema, o.ID())

	if got, _ := loaded.Value(ctx, "color"); got != "" {
		t.Fatalf("color = %q, want empty", got)
	}
	// Written behind the Object's back: the cached empty value wins.
	s.Meta().Set(ctx, o.ID(), "w_color", "green")
	if got, _ := loaded.Value(ctx, "color"); got != "" {
		t.Errorf("cached color = %q, want empty", got)
	}
	fresh, _ := Load(ctx, s, testSchema, o.ID())
	if got, _ := fresh.Value(ctx, "color"); got != "green" {
		t.Errorf("fresh color = %q, want green", got)
	}
}

func TestObject_UnknownField(t *testing.T) {
	ctx := context.Background()
	o := New(testStore(t), testSchema, host.Record{})
	if _, err := o.Value(ctx, "size"); err == nil {
		t.Error("Value of undeclared field should fail")
	}
	if err := o.Set(ctx, "size", "L"); err == nil {
		t.Error("Set of undeclared field should fail")
	}
	if err := o.AddValue(ctx, "color", "x"); err == nil {
		t.Error("AddValue on a single-valued field should fail")
	}
}

func TestObject_UpdateRecordSkipsHooks(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	fired := 0
	s.OnSave(func(context.Context, *host.Record) error {
		fired++
		return nil
	})

	o := New(s, testSchema, host.Record{Title: "Old"})
	if err := o.Store(ctx); err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Fatalf("hooks fired %d times on Store, want 1", fired)
	}

	title := "New"
	if err := o.UpdateRecord(ctx, host.RecordUpdate{Title: &title}); err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Errorf("UpdateRecord fired save hooks")
	}
	rec, _ := o.Record(ctx)
	if rec.Title != "New" {
		t.Errorf("Title = %q after update", rec.Title)
	}
}

func TestObject_StoreRollsBack(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	boom := errors.New("hook failed")
	s.OnSave(func(context.Context, *host.Record) error { return boom })

	o := New(s, testSchema, host.Record{Title: "Doomed"})
	o.Set(ctx, "color", "red")
	if err := o.Store(ctx); !errors.Is(err, boom) {
		t.Fatalf("Store error = %v, want hook error", err)
	}
	if o.Persisted() {
		t.Error("Object marked persisted after failed Store")
	}
	recs, _ := s.Records().ListByMeta(ctx, "widget", "", "")
	if len(recs) != 0 {
		t.Errorf("%d records left after rollback", len(recs))
	}
}

func TestObject_BindUsesTransaction(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	o := New(s, testSchema, host.Record{Title: "W"})
	if err := o.Store(ctx); err != nil {
		t.Fatal(err)
	}
	err := s.Transaction(ctx, func(tx host.Host) error {
		if err := o.Bind(tx).Set(ctx, "color", "violet"); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected abort error")
	}
	v, found, _ := s.Meta().Get(ctx, o.ID(), "w_color")
	if found {
		t.Errorf("rolled back write is visible: %q", v)
	}
	if got, _ := o.Value(ctx, "color"); got != "" {
		t.Errorf("bound write leaked into original cache: %q", got)
	}
}
