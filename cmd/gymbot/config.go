package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/franz/gym-league/internal/report"
	"github.com/franz/gym-league/internal/store"
	"github.com/franz/gym-league/internal/util"
	"github.com/spf13/viper"
)

// envName turns a config key into its environment suffix (auto-recreate -> AUTO_RECREATE)
func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// storeOptions builds store options from flags, environment and config file
func storeOptions() *store.Options {
	return &store.Options{
		AutoRecreate: util.GetAutoRecreate(),
		AutoCleanup:  util.GetAutoCleanup(),
	}
}

// openEvents opens the schema event log when an events directory is
// configured. The returned logger is nil otherwise; its methods are nil-safe.
func openEvents() (*report.EventLogger, error) {
	dir := util.GetEventsDir()
	if dir == "" {
		return nil, nil
	}
	level := report.LevelInfo
	if viper.GetBool("verbose") {
		level = report.LevelDebug
	}
	events, err := report.NewEventLogger(dir, level)
	if err != nil {
		return nil, err
	}
	util.DebugLog("Writing schema events to %s", events.Path())
	return events, nil
}

// openStore opens the configured database. reconcile=false opens it without
// touching the schema, for diagnostics. The returned closer also closes the
// event log.
func openStore(ctx context.Context, reconcile bool) (*store.Store, func(), error) {
	events, err := openEvents()
	if err != nil {
		return nil, nil, err
	}
	opts := storeOptions()
	opts.Events = events
	opts.NoReconcile = !reconcile

	s, err := store.OpenWithOptions(ctx, util.GetDBPath(), opts)
	if err != nil {
		events.Close()
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return s, func() {
		s.Close()
		events.Close()
	}, nil
}
