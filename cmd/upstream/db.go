package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/upstream-pm/upstream/internal/config"
	"github.com/upstream-pm/upstream/internal/db"
	"golang.org/x/term"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the UpStream database",
		Long:  "Creates the database (MySQL) or database file (SQLite) and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fmt.Fprintf(out, "Loaded config from %s\n", configPath)

	gormDB, err := prepareDatabase(cmd, cfg, false)
	if err != nil {
		return err
	}
	defer closeDB(gormDB)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nUpStream database initialized successfully.")
	return nil
}

// prepareDatabase makes sure the configured database exists, dropping it
// first when drop is set, and returns a connection to it.
func prepareDatabase(cmd *cobra.Command, cfg *config.Config, drop bool) (*gorm.DB, error) {
	out := cmd.OutOrStdout()
	dc := cfg.Database

	if dc.Driver == config.DriverSQLite {
		gormDB, err := db.OpenSQLite(dc.Path)
		if err != nil {
			return nil, err
		}
		if drop {
			if err := db.Reset(gormDB); err != nil {
				return nil, err
			}
			fmt.Fprintf(out, "Dropped tables in %s\n", dc.Path)
		}
		fmt.Fprintf(out, "Database %s ready\n", dc.Path)
		return gormDB, nil
	}

	adminDB, err := db.ConnectAdmin(dc)
	if err != nil {
		return nil, fmt.Errorf("connect to MySQL at %s:%d: %w", dc.Host, dc.Port, err)
	}
	fmt.Fprintf(out, "Connected to MySQL at %s:%d\n", dc.Host, dc.Port)

	if drop {
		if err := db.DropDatabase(adminDB, dc.Name); err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "Dropped database %s\n", dc.Name)
	}
	if err := db.CreateDatabase(adminDB, dc.Name); err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Database %s ready\n", dc.Name)

	gormDB, err := db.Connect(dc)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", dc.Name, err)
	}
	return gormDB, nil
}

func closeDB(gormDB *gorm.DB) {
	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the UpStream database",
		Long: `Drops every UpStream table and migrates them again.

For MySQL the whole database is dropped and re-created. Without --yes the
command asks for confirmation, and refuses to run when stdin is not a
terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to UpStream config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	target := cfg.Database.Name
	if cfg.Database.Driver == config.DriverSQLite {
		target = cfg.Database.Path
	}

	if !skipConfirm {
		if !interactive(cmd.InOrStdin()) {
			return fmt.Errorf("stdin is not a terminal; pass --yes to reset %s", target)
		}
		if !confirmReset(cmd, target) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	gormDB, err := prepareDatabase(cmd, cfg, true)
	if err != nil {
		return err
	}
	defer closeDB(gormDB)
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nUpStream database reset successfully.")
	return nil
}

// interactive reports whether in can prompt a person. Readers that are not
// files, such as a test's strings.Reader, count as interactive.
func interactive(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return true
	}
	return term.IsTerminal(int(f.Fd()))
}

func confirmReset(cmd *cobra.Command, target string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "WARNING: This will permanently delete all data in %q.\n", target)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
