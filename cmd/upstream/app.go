package main

import (
	"context"
	"fmt"

	"github.com/upstream-pm/upstream/internal/config"
	"github.com/upstream-pm/upstream/internal/datefmt"
	"github.com/upstream-pm/upstream/internal/db"
	"github.com/upstream-pm/upstream/internal/host"
	"github.com/upstream-pm/upstream/internal/logging"
	"github.com/upstream-pm/upstream/internal/milestone"
	"github.com/upstream-pm/upstream/internal/store"
	"go.uber.org/zap"
)

// app is everything a command needs once the config is loaded.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	mgr    *milestone.Manager
}

// connectFromConfig loads the config, opens the database and wires the
// milestone manager.
func connectFromConfig(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := store.New(gormDB, logger)
	s.OnSave(func(_ context.Context, rec *host.Record) error {
		logger.Debug("record saved",
			zap.Uint("id", rec.ID),
			zap.String("type", rec.Type),
			zap.String("title", rec.Title),
		)
		return nil
	})

	mgr := milestone.NewManager(s,
		datefmt.NewFormatter(cfg.Location(), cfg.Site.DateFormat),
		milestone.WithLogger(logger),
		milestone.WithCategories(!cfg.Site.DisableMilestoneCategories),
	)
	return &app{cfg: cfg, logger: logger, store: s, mgr: mgr}, nil
}

// Close flushes the logger and releases the database handle.
func (a *app) Close() {
	_ = a.logger.Sync()
	closeDB(a.store.DB())
}
