package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/steipete/codelooper/internal/config"
	"github.com/steipete/codelooper/internal/discovery"
	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/event"
	"github.com/steipete/codelooper/internal/history"
	"github.com/steipete/codelooper/internal/logging"
	"github.com/steipete/codelooper/internal/persist"
	"github.com/steipete/codelooper/internal/platform"
	"github.com/steipete/codelooper/internal/rule"
	"github.com/steipete/codelooper/internal/supervisor"
)

// defaultHelperBinary is the accessibility helper looked up on PATH when
// no explicit path is given.
const defaultHelperBinary = "codelooper-axd"

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the supervision loop",
	Long: `Watch the configured applications and intervene when they loop or
lose their connection. Runs until interrupted.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("helper", defaultHelperBinary, "accessibility helper binary")
	watchCmd.Flags().StringSlice("app", nil, "bundle identifiers to observe (overrides config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if apps, _ := cmd.Flags().GetStringSlice("app"); len(apps) > 0 {
		cfg.Apps.BundleIDs = apps
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	helperPath, _ := cmd.Flags().GetString("helper")
	helper, err := platform.NewHelperCommand(helperPath, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to start accessibility helper: %w", err)
	}
	defer func() { _ = helper.Close() }()

	bus := event.NewBus()
	backend := element.WithTimeout(helper, cfg.Backend.QueryTimeout())

	registry := discovery.DefaultRegistry(backend, logger, cfg.Backend.MaxDepth)
	discoverer := discovery.NewDiscoverer(registry, logger, bus)
	locators := discovery.NewManager(backend, discoverer, logger, cfg.Backend.MaxDepth)

	processes := platform.NewProcesses(logger)
	monitor := supervisor.NewMonitor(backend, locators, processes, helper, bus, logger,
		optionsFrom(cfg), buildRules(cfg)...)
	monitor.UpdateObservedApplications(cfg.Apps.BundleIDs)

	ring := history.NewRing(cfg.History.Size)
	history.Attach(ring, bus)

	statePath := cfg.Persistence.ResolvePath()
	if cfg.Persistence.Enabled {
		restoreState(statePath, locators, monitor, logger)
	}

	watcher := watchConfig(cfg, monitor, logger)
	if watcher != nil {
		defer watcher.Stop()
	}

	monitor.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	monitor.Stop()

	if cfg.Persistence.Enabled {
		saveState(statePath, locators, monitor, logger)
	}
	return nil
}

// newLogger builds the logger from config; disabled logging still
// surfaces warnings and errors on stderr.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NewLogger("", "error")
	}
	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return logger, nil
}

// buildRules assembles the enabled intervention rules in priority order.
func buildRules(cfg *config.Config) []rule.Rule {
	var rules []rule.Rule
	if cfg.Rules.StopAfterLoops {
		rules = append(rules, rule.NewStopAfterLoops())
	}
	if cfg.Rules.ResumeConnection {
		rules = append(rules, rule.NewResumeConnection())
	}
	return rules
}

// optionsFrom maps configuration to supervisor options.
func optionsFrom(cfg *config.Config) supervisor.Options {
	return supervisor.Options{
		Interval:               cfg.Supervision.Interval(),
		MaxParallel:            cfg.Supervision.MaxParallel,
		GraceTicks:             cfg.Supervision.GraceTicks,
		ObservationTicks:       cfg.Supervision.ObservationTicks,
		IdleTicks:              cfg.Supervision.IdleTicks,
		UnrecoverableThreshold: cfg.Supervision.UnrecoverableThreshold,
		RemovalGraceTicks:      cfg.Supervision.RemovalGraceTicks,
		RuleCeiling:            cfg.Rules.Ceiling,
		WarnMargin:             cfg.Rules.WarnMargin,
	}
}

// restoreState warms the locator cache and rule counters from the last
// run's snapshot. Failures are logged and ignored.
func restoreState(path string, locators *discovery.Manager, monitor *supervisor.Monitor, logger *logging.Logger) {
	st, err := persist.Load(path)
	if err != nil {
		logger.Warn("failed to load state snapshot", "path", path, "error", err)
		return
	}
	if st == nil {
		return
	}
	seeded := st.SeedLocators(locators)
	monitor.SeedCounters(st.CounterSeeds())
	logger.Info("state snapshot restored",
		"path", path, "locators", seeded, "windows", len(st.Counters))
}

// saveState snapshots the locator cache and rule counters for the next
// run. Failures are logged and ignored.
func saveState(path string, locators *discovery.Manager, monitor *supervisor.Monitor, logger *logging.Logger) {
	st := persist.Capture(locators.Snapshot(), monitor.CounterSnapshots())
	if err := persist.Save(path, st); err != nil {
		logger.Warn("failed to save state snapshot", "path", path, "error", err)
		return
	}
	logger.Info("state snapshot saved", "path", path)
}

// watchConfig hot-reloads tunable settings while the supervisor runs.
// Only the watch list takes effect live; other changes are logged as
// needing a restart.
func watchConfig(current *config.Config, monitor *supervisor.Monitor, logger *logging.Logger) *config.Watcher {
	path := viper.ConfigFileUsed()
	if path == "" {
		return nil
	}

	interval := current.Supervision.IntervalMs
	watcher, err := config.NewWatcher(path,
		func(cfg *config.Config) {
			logger.Info("configuration reloaded", "path", path)
			monitor.UpdateObservedApplications(cfg.Apps.BundleIDs)
			if cfg.Supervision.IntervalMs != interval {
				logger.Warn("interval change requires a restart",
					"current_ms", interval, "new_ms", cfg.Supervision.IntervalMs)
			}
		},
		func(err error) {
			logger.Warn("configuration reload failed", "error", err)
		})
	if err != nil {
		logger.Warn("config watcher unavailable", "path", path, "error", err)
		return nil
	}
	return watcher
}
