package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/upstream-pm/upstream/internal/config"
	"github.com/upstream-pm/upstream/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		database string
		want     string
	}{
		{
			name:     "default local",
			cfg:      config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "root"},
			database: "upstream",
			want:     "root@tcp(127.0.0.1:3306)/upstream?parseTime=true",
		},
		{
			name:     "with password",
			cfg:      config.DatabaseConfig{Host: "10.0.0.5", Port: 3307, User: "up", Password: "pw"},
			database: "upstream_prod",
			want:     "up:pw@tcp(10.0.0.5:3307)/upstream_prod?parseTime=true",
		},
		{
			name:     "admin without database",
			cfg:      config.DatabaseConfig{Host: "db.internal", Port: 3306, User: "root"},
			database: "",
			want:     "root@tcp(db.internal:3306)/?parseTime=true",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 6 {
		t.Errorf("AllModels() returned %d models, want 6", got)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestConnect_Error(t *testing.T) {
	// Port 1 is unlikely to have a MySQL server; expect connection error.
	_, err := Connect(config.DatabaseConfig{Host: "127.0.0.1", Port: 1, User: "root", Name: "nonexistent"})
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: connect to")
	}
}

func TestOpenSQLite_MigrateAndReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upstream.db")
	gdb, err := Open(config.DatabaseConfig{Driver: config.DriverSQLite, Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("table for %T missing after migrate", m)
		}
	}

	if err := gdb.Create(&models.User{Login: "alice"}).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := Reset(gdb); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	var count int64
	gdb.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Errorf("users after reset = %d, want 0", count)
	}
}
