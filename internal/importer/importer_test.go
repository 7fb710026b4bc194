package importer

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/upstream-pm/upstream/internal/datefmt"
	"github.com/upstream-pm/upstream/internal/db"
	"github.com/upstream-pm/upstream/internal/host"
	"github.com/upstream-pm/upstream/internal/milestone"
	"github.com/upstream-pm/upstream/internal/store"
)

const rowsYAML = `
- id: 5c8f1e2a9b3d1
  milestone: Discovery
  milestone_order: 1
  assigned_to: ["1", "1", "0"]
  progress: 100
  notes: Interviews done
  start_date: 1709251200
  end_date: "2024-03-15"
- id: 5c8f1e2a9b3d2
  milestone: Build
  milestone_order: 2
  created_by: 999
- id: 5c8f1e2a9b3d3
  milestone: ""
- id: 5c8f1e2a9b3d4
  milestone: Launch
  milestone_order: 3
  end_date: "not a date"
- milestone: Retro
  milestone_order: 4
  color: "#336699"
`

func setup(t *testing.T) (*store.Store, *milestone.Manager, uint, uint) {
	t.Helper()
	ctx := context.Background()
	gdb, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	s := store.New(gdb, nil)
	user, err := s.CreateUser(ctx, "ops", "Ops", "")
	if err != nil {
		t.Fatal(err)
	}
	project, err := s.CreateProject(ctx, "Migration", user.ID)
	if err != nil {
		t.Fatal(err)
	}
	return s, milestone.NewManager(s, datefmt.NewFormatter(time.UTC, "")), user.ID, project.ID
}

func TestDecode(t *testing.T) {
	rows, err := Decode(strings.NewReader(rowsYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("rows = %d, want 5", len(rows))
	}
	if rows[0].StartDate != "1709251200" {
		t.Errorf("epoch start_date decoded as %q", rows[0].StartDate)
	}
	if !reflect.DeepEqual(rows[0].AssignedTo, []string{"1", "1", "0"}) {
		t.Errorf("assigned_to = %v", rows[0].AssignedTo)
	}
}

func TestDecode_JSON(t *testing.T) {
	doc := `[{"id": 12, "milestone": "Alpha", "start_date": 1709596800, "assigned_to": [3, 4]}]`
	rows, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "12" || rows[0].Milestone != "Alpha" {
		t.Errorf("rows = %+v", rows)
	}
	if !reflect.DeepEqual(rows[0].AssignedTo, []string{"3", "4"}) {
		t.Errorf("assigned_to = %v", rows[0].AssignedTo)
	}
}

func TestDecode_Empty(t *testing.T) {
	rows, err := Decode(strings.NewReader(""))
	if err != nil || len(rows) != 0 {
		t.Errorf("Decode(empty) = %v, %v", rows, err)
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	s, mgr, userID, projectID := setup(t)
	rows, _ := Decode(strings.NewReader(rowsYAML))

	res, err := New(s, mgr, nil).Import(ctx, projectID, userID, rows)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.Imported) != 2 {
		t.Fatalf("imported %d rows, want 2 (skipped: %v)", len(res.Imported), res.Skipped)
	}

	var skippedRows []int
	for _, se := range res.Skipped {
		if !host.IsValidation(se) {
			t.Errorf("skipped row %d error = %v, want validation error", se.Row, se.Err)
		}
		skippedRows = append(skippedRows, se.Row)
	}
	if !reflect.DeepEqual(skippedRows, []int{2, 3, 4}) {
		t.Errorf("skipped rows = %v, want [2 3 4]", skippedRows)
	}

	discovery, err := mgr.ByLegacyCode(ctx, "5c8f1e2a9b3d1")
	if err != nil {
		t.Fatalf("ByLegacyCode: %v", err)
	}
	if start, _ := discovery.StartDate(ctx); start.MySQL() != "2024-03-01" {
		t.Errorf("start date = %q", start.MySQL())
	}
	if end, _ := discovery.EndDate(ctx); end.MySQL() != "2024-03-15" {
		t.Errorf("end date = %q", end.MySQL())
	}
	if ids, _ := discovery.AssignedTo(ctx); !reflect.DeepEqual(ids, []uint{1}) {
		t.Errorf("assigned to = %v", ids)
	}
	if p, _ := discovery.Progress(ctx); p != 100 {
		t.Errorf("progress = %v", p)
	}
	if by, _ := discovery.CreatedBy(ctx); by != userID {
		t.Errorf("created by = %d, want default author %d", by, userID)
	}

	list, _ := mgr.ListByProject(ctx, projectID)
	if len(list) != 2 {
		t.Fatalf("project has %d milestones, want 2", len(list))
	}
	retro := list[1]
	if name, _ := retro.Name(ctx); name != "Retro" {
		t.Errorf("second milestone = %q, want Retro", name)
	}
	if c, _ := retro.Color(ctx); c != "#336699" {
		t.Errorf("color = %q", c)
	}

	// Launch failed after Create: nothing of it may survive.
	if _, err := mgr.ByLegacyCode(ctx, "5c8f1e2a9b3d4"); !host.IsNotFound(err) {
		t.Errorf("rejected row left a milestone behind: %v", err)
	}
}

func TestImport_SkipsAlreadyImported(t *testing.T) {
	ctx := context.Background()
	s, mgr, userID, projectID := setup(t)
	rows := []Row{{ID: "a1", Milestone: "Once"}, {ID: "a1", Milestone: "Twice"}}

	res, err := New(s, mgr, nil).Import(ctx, projectID, userID, rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Imported) != 1 || len(res.Skipped) != 1 {
		t.Fatalf("imported %d, skipped %d; want 1 and 1", len(res.Imported), len(res.Skipped))
	}
	if !strings.Contains(res.Skipped[0].Error(), "already imported") {
		t.Errorf("skip reason = %v", res.Skipped[0])
	}

	res, err = New(s, mgr, nil).Import(ctx, projectID, userID, rows[:1])
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Imported) != 0 {
		t.Errorf("re-import created %d milestones", len(res.Imported))
	}
}

func TestImport_UnknownProject(t *testing.T) {
	s, mgr, userID, _ := setup(t)
	_, err := New(s, mgr, nil).Import(context.Background(), 4040, userID, []Row{{Milestone: "X"}})
	if !host.IsNotFound(err) {
		t.Errorf("Import error = %v, want not found", err)
	}
}

func TestRowError(t *testing.T) {
	e := &RowError{Row: 3, LegacyID: "x9", Err: host.Validationf("bad")}
	if !strings.Contains(e.Error(), "row 3 (id x9)") {
		t.Errorf("Error() = %q", e.Error())
	}
	if !host.IsValidation(e) {
		t.Error("RowError should unwrap to its cause")
	}
}
