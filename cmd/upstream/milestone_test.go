package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/upstream-pm/upstream/internal/importer"
)

// seed creates user 1, category 1, project 1 and milestone 2.
func seed(t *testing.T, cfgPath string) {
	t.Helper()
	mustRun(t, "user", "add", "ada", "--name", "Ada Lovelace", "-c", cfgPath)
	mustRun(t, "milestone", "category", "add", "Research", "-c", cfgPath)
	mustRun(t, "project", "create", "Engine", "--author", "1", "-c", cfgPath)
	out := mustRun(t, "milestone", "create", "1", "Discovery", "--author", "1",
		"--start", "2024-03-01", "--end", "March 15, 2024", "--assign", "1",
		"--progress", "40", "--notes", "Kickoff <b>interviews</b>", "--category", "1",
		"-c", cfgPath)
	if !strings.Contains(out, "Created milestone 2 in project 1") {
		t.Fatalf("unexpected create output: %s", out)
	}
}

func TestMilestoneCmd_Help(t *testing.T) {
	out, err := runCmd(t, nil, "milestone", "--help")
	if err != nil {
		t.Fatalf("milestone --help failed: %v", err)
	}
	for _, sub := range []string{"create", "show", "list", "set", "delete", "restore", "export", "category"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q, got: %s", sub, out)
		}
	}
}

func TestMilestoneCreateAndShow(t *testing.T) {
	cfgPath := sqliteConfig(t, "")
	seed(t, cfgPath)

	out := mustRun(t, "milestone", "show", "2", "--date-format", "mysql", "-c", cfgPath)
	for _, want := range []string{
		"Name:        Discovery",
		"Project:     1",
		"Start:       2024-03-01",
		"End:         2024-03-15",
		"Progress:    40%",
		"Assigned to: 1",
		"Categories:  1",
		"Kickoff interviews",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, "milestone", "show", "2", "--date-format", "upstream", "-c", cfgPath)
	if !strings.Contains(out, "March 1, 2024") {
		t.Errorf("expected display date, got:\n%s", out)
	}
}

func TestMilestoneCreate_UnknownAuthor(t *testing.T) {
	cfgPath := sqliteConfig(t, "")
	seed(t, cfgPath)

	_, err := runCmd(t, nil, "milestone", "create", "1", "Ghost", "--author", "99", "-c", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "user 99 does not exist") {
		t.Errorf("error = %v, want unknown user", err)
	}
	if out := mustRun(t, "milestone", "list", "-c", cfgPath); strings.Contains(out, "Ghost") {
		t.Errorf("failed create left a milestone behind:\n%s", out)
	}
}

func TestMilestoneShow_Errors(t *testing.T) {
	cfgPath := sqliteConfig(t, "")
	seed(t, cfgPath)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"not a number", []string{"milestone", "show", "abc"}, "invalid milestone id"},
		{"missing", []string{"milestone", "show", "404"}, "not found"},
		{"project is not a milestone", []string{"milestone", "show", "1"}, "not found"},
		{"bad date format", []string{"milestone", "show", "2", "--date-format", "iso"}, "unknown date format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCmd(t, nil, append(tt.args, "-c", cfgPath)...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestMilestoneSetAndList(t *testing.T) {
	cfgPath := sqliteConfig(t, "")
	seed(t, cfgPath)
	mustRun(t, "milestone", "create", "1", "Build", "--author", "1", "--order", "1", "-c", cfgPath)

	mustRun(t, "milestone", "set", "2", "--name", "Discovery phase", "--order", "2", "--end", "", "-c", cfgPath)

	out := mustRun(t, "milestone", "list", "--project", "1", "-c", cfgPath)
	build := strings.Index(out, "Build")
	discovery := strings.Index(out, "Discovery phase")
	if build < 0 || discovery < 0 || build > discovery {
		t.Errorf("expected Build before Discovery phase:\n%s", out)
	}

	out = mustRun(t, "milestone", "show", "2", "--date-format", "mysql", "-c", cfgPath)
	if !strings.Contains(out, "End:         -") {
		t.Errorf("end date should be cleared:\n%s", out)
	}
	if !strings.Contains(out, "Start:       2024-03-01") {
		t.Errorf("untouched start date changed:\n%s", out)
	}

	if _, err := runCmd(t, nil, "milestone", "set", "2", "--progress", "-5", "-c", cfgPath); err == nil {
		t.Error("expected negative progress to be rejected")
	}
}

func TestMilestoneDeleteAndRestore(t *testing.T) {
	cfgPath := sqliteConfig(t, "")
	seed(t, cfgPath)
	mustRun(t, "project", "task", "add", "1", "Write brief", "--milestone", "2", "-c", cfgPath)

	out := mustRun(t, "project", "task", "list", "1", "-c", cfgPath)
	if !strings.Contains(out, "Write brief") || !strings.Contains(out, "2") {
		t.Fatalf("task not linked:\n%s", out)
	}

	out = mustRun(t, "milestone", "delete", "2", "-c", cfgPath)
	if !strings.Contains(out, "Milestone 2 moved to trash") {
		t.Errorf("unexpected delete output: %s", out)
	}

	out = mustRun(t, "project", "task", "list", "1", "-c", cfgPath)
	if !strings.Contains(out, "Write brief  -") {
		t.Errorf("task still references deleted milestone:\n%s", out)
	}

	out = mustRun(t, "project", "activity", "1", "-c", cfgPath)
	if !strings.Contains(out, "_upstream_project_milestones") || !strings.Contains(out, "remove") {
		t.Errorf("expected remove activity:\n%s", out)
	}

	if out := mustRun(t, "milestone", "list", "-c", cfgPath); !strings.Contains(out, "No milestones found.") {
		t.Errorf("trashed milestone still listed:\n%s", out)
	}

	out = mustRun(t, "milestone", "restore", "2", "-c", cfgPath)
	if !strings.Contains(out, "Restored milestone 2: Discovery") {
		t.Errorf("unexpected restore output: %s", out)
	}
}

func TestMilestoneExportImportRoundTrip(t *testing.T) {
	cfgPath := sqliteConfig(t, "")
	seed(t, cfgPath)
	mustRun(t, "milestone", "set", "2", "--color", "#336699", "--legacy-code", "M-7", "-c", cfgPath)

	exported := mustRun(t, "milestone", "export", "--project", "1", "-c", cfgPath)
	rows, err := importer.Decode(strings.NewReader(exported))
	if err != nil {
		t.Fatalf("exported YAML does not decode: %v\n%s", err, exported)
	}
	if len(rows) != 1 || rows[0].Milestone != "Discovery" || rows[0].ID != "2" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Color != "#336699" || rows[0].LegacyMilestoneCode != "M-7" {
		t.Errorf("export dropped color or legacy code: %+v", rows[0])
	}

	file := filepath.Join(t.TempDir(), "rows.yaml")
	if err := writeTestFile(file, exported); err != nil {
		t.Fatal(err)
	}
	mustRun(t, "project", "create", "Copy", "--author", "1", "-c", cfgPath)

	out := mustRun(t, "import", file, "--project", "3", "--author", "1", "-c", cfgPath)
	if !strings.Contains(out, "Imported 1 of 1 rows into project 3") {
		t.Fatalf("unexpected import output: %s", out)
	}

	out = mustRun(t, "import", file, "--project", "3", "--author", "1", "-c", cfgPath)
	if !strings.Contains(out, "Imported 0 of 1 rows") || !strings.Contains(out, "already imported") {
		t.Errorf("re-import should skip the row:\n%s", out)
	}

	out = mustRun(t, "milestone", "show", "4", "--date-format", "mysql", "-c", cfgPath)
	for _, want := range []string{"Project:     3", "Start:       2024-03-01", "End:         2024-03-15", "Color:       #336699", "Legacy ID:   2"} {
		if !strings.Contains(out, want) {
			t.Errorf("imported milestone missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, "milestone", "export", "-o", "json", "-p", "3", "-c", cfgPath)
	for _, want := range []string{`"milestone": "Discovery"`, `"color": "#336699"`, `"legacy_milestone_code": "M-7"`} {
		if !strings.Contains(out, want) {
			t.Errorf("JSON export missing %s:\n%s", want, out)
		}
	}
	if _, err := runCmd(t, nil, "milestone", "export", "-o", "csv", "-c", cfgPath); err == nil {
		t.Error("expected unknown output format error")
	}
}

func TestImportCmd_Stdin(t *testing.T) {
	cfgPath := sqliteConfig(t, "")
	seed(t, cfgPath)

	rows := "- milestone: Piped\n  end_date: 1710460800\n"
	out, err := runCmd(t, strings.NewReader(rows), "import", "-", "-p", "1", "--author", "1", "-c", cfgPath)
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Imported 1 of 1 rows") {
		t.Errorf("unexpected import output: %s", out)
	}
}

func TestMilestoneCategoryAdd_Disabled(t *testing.T) {
	cfgPath := sqliteConfig(t, "site:\n  disable_milestone_categories: true\n")
	_, err := runCmd(t, nil, "milestone", "category", "add", "Research", "-c", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Errorf("error = %v, want categories disabled", err)
	}
}
