package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/daviddao/turnwheel/pkg/actionlog"
	"github.com/daviddao/turnwheel/pkg/config"
	"github.com/daviddao/turnwheel/pkg/metrics"
	"github.com/daviddao/turnwheel/pkg/model"
	"github.com/daviddao/turnwheel/pkg/scenario"
	"github.com/daviddao/turnwheel/pkg/store"
	"github.com/daviddao/turnwheel/pkg/turnwheel"
)

// app holds shared state for all CLI subcommands.
type app struct {
	cfg     config.Config
	store   store.StoreInterface
	logger  *zap.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics
}

// newApp loads the environment and opens the configured save backend.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	return openApp(cfg, logger)
}

// openApp opens the save backend named by cfg, creating the database
// directory if needed.
func openApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	if dir := filepath.Dir(cfg.DB); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}
	s, err := store.Open(cfg.Backend, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %q: %w", cfg.DB, err)
	}
	reg := prometheus.NewRegistry()
	return &app{
		cfg:     cfg,
		store:   s,
		logger:  logger,
		reg:     reg,
		metrics: metrics.New(reg),
	}, nil
}

// Close dumps metrics if enabled and releases the database.
func (a *app) Close() {
	if a.cfg.Metrics {
		a.writeMetrics()
	}
	a.store.Close()
	_ = a.logger.Sync()
}

func (a *app) writeMetrics() {
	families, err := a.reg.Gather()
	if err != nil {
		a.logger.Warn("gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stderr, mf); err != nil {
			a.logger.Warn("write metrics", zap.Error(err))
			return
		}
	}
}

// game is a save loaded back into live objects.
type game struct {
	save  *store.SaveFile
	sess  *scenario.Session
	wheel *turnwheel.Turnwheel
}

func (a *app) newLog() *actionlog.Log {
	return actionlog.New(
		actionlog.WithLogger(a.logger.Named("log")),
		actionlog.WithObserver(a.metrics),
	)
}

func (a *app) newWheel(sess *scenario.Session, usesSpent int) *turnwheel.Turnwheel {
	return turnwheel.New(sess.Log, sess.Game,
		turnwheel.WithLogger(a.logger.Named("turnwheel")),
		turnwheel.WithRecorder(a.metrics),
		turnwheel.WithMaxUses(a.cfg.MaxUses),
		turnwheel.WithUsesSpent(usesSpent),
	)
}

// loadGame restores the newest save in the configured slot. A save taken
// mid session reopens the session at its cursor.
func (a *app) loadGame(ctx context.Context) (*game, error) {
	f, err := a.store.Latest(ctx, a.cfg.Slot)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no save in slot %q: run 'tw demo' first", a.cfg.Slot)
	}
	if err != nil {
		return nil, err
	}
	w, err := model.FromSnapshot(f.World)
	if err != nil {
		return nil, fmt.Errorf("load world of save %s: %w", f.ID, err)
	}
	l, cursor, err := actionlog.Restore(f.Log, w,
		actionlog.WithLogger(a.logger.Named("log")),
		actionlog.WithObserver(a.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("load log of save %s: %w", f.ID, err)
	}
	sess := scenario.NewSession(w, l, a.logger)
	wheel := a.newWheel(sess, f.UsesSpent)
	if f.Active {
		if err := wheel.Resume(cursor); err != nil {
			return nil, fmt.Errorf("resume save %s: %w", f.ID, err)
		}
	}
	return &game{save: f, sess: sess, wheel: wheel}, nil
}

// persist writes g as a new save and rotates the slot.
func (a *app) persist(ctx context.Context, g *game) (string, error) {
	snap, err := g.sess.Log.Snapshot(g.wheel.Cursor())
	if err != nil {
		return "", err
	}
	f := &store.SaveFile{
		Slot:      a.cfg.Slot,
		World:     g.sess.World.Snapshot(),
		Log:       snap,
		UsesSpent: g.wheel.UsesSpent(),
		Active:    g.wheel.Active(),
	}
	id, err := a.store.Save(ctx, f)
	if err != nil {
		return "", err
	}
	if n, err := a.store.Rotate(ctx, a.cfg.Slot, a.cfg.KeepSaves); err != nil {
		a.logger.Warn("rotate saves", zap.String("slot", a.cfg.Slot), zap.Error(err))
	} else if n > 0 {
		a.logger.Debug("rotated saves", zap.String("slot", a.cfg.Slot), zap.Int("removed", n))
	}
	g.save = f
	return id, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
