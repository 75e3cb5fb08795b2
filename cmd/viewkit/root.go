package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/viewkit/aggregate"
	"github.com/kbukum/viewkit/collection"
	"github.com/kbukum/viewkit/config"
	"github.com/kbukum/viewkit/definition"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
	"github.com/kbukum/viewkit/store"
	"github.com/kbukum/viewkit/version"
	"github.com/kbukum/viewkit/view"

	_ "github.com/kbukum/viewkit/store/boltstore"
	_ "github.com/kbukum/viewkit/store/redisstore"
	_ "github.com/kbukum/viewkit/store/sqlstore"
)

const envPrefix = "viewkit"

type rootFlags struct {
	configFile  string
	envFile     string
	definitions []string
	data        []string
	workers     int
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cobra.EnableCommandSorting = false
	root := &cobra.Command{
		Use:           "viewkit",
		Short:         "Run aggregation-pipeline views over document collections",
		Version:       version.Get().Short(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "config file (default: search ./config.yml, ./config/config.yml)")
	pf.StringVar(&flags.envFile, "env-file", "", ".env file to load before binding VIEWKIT_* variables")
	pf.StringSliceVarP(&flags.definitions, "definitions", "d", nil, "definition files, directories or globs (.js, .json, .yaml)")
	pf.StringSliceVar(&flags.data, "data", nil, "collection data files, one JSON or YAML array per collection")
	pf.IntVarP(&flags.workers, "workers", "w", 0, "per-stage parallelism (overrides engine.workers)")

	root.AddCommand(runCmd(flags))
	root.AddCommand(viewsCmd(flags))
	root.AddCommand(explainCmd(flags))
	root.AddCommand(healthCmd(flags))
	root.AddCommand(versionCmd())
	return root
}

// env is everything a command needs once config, store and definitions
// have been loaded.
type env struct {
	cfg      *config.Config
	log      *logger.Logger
	backend  store.Backend
	catalog  *collection.Catalog
	registry *view.Registry

	closers []func(context.Context) error
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	if flags.configFile != "" {
		if _, err := os.Stat(flags.configFile); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	opts := []config.LoaderOption{config.WithEnvPrefix(envPrefix)}
	if flags.configFile != "" {
		opts = append(opts, config.WithConfigFile(flags.configFile))
	}
	if flags.envFile != "" {
		opts = append(opts, config.WithEnvFile(flags.envFile))
	}

	cfg := &config.Config{}
	if err := config.LoadConfig("viewkit", cfg, opts...); err != nil {
		return nil, err
	}
	if flags.workers > 0 {
		cfg.Engine.Workers = flags.workers
	}
	cfg.Definitions.Paths = append(cfg.Definitions.Paths, flags.definitions...)
	cfg.Definitions.Data = append(cfg.Definitions.Data, flags.data...)
	if cfg.Version == "" {
		cfg.Version = version.Get().Short()
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads config, opens the store, applies the definitions and
// builds the view registry. The caller must call close.
func setup(cmd *cobra.Command, flags *rootFlags) (*env, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	e := &env{
		cfg: cfg,
		log: logger.NewWithWriter(&cfg.Logging, cfg.Name, cmd.ErrOrStderr()),
	}
	logger.SetGlobalLogger(e.log)

	if err := e.build(ctx); err != nil {
		e.close(ctx)
		return nil, err
	}
	return e, nil
}

func (e *env) build(ctx context.Context) error {
	pipeOpts, err := e.cfg.Engine.PipelineOptions()
	if err != nil {
		return err
	}
	pipeOpts = append(pipeOpts, aggregate.WithLogger(e.log.WithComponent("aggregate")))

	if e.cfg.Telemetry.TracingEnabled {
		tp, err := observability.InitTracer(ctx, e.cfg.TracerConfig())
		if err != nil {
			return err
		}
		e.closers = append(e.closers, tp.Shutdown)
		pipeOpts = append(pipeOpts, aggregate.WithTracing(true))
	}
	if e.cfg.Telemetry.MetricsEnabled {
		mp, err := observability.InitMeter(ctx, e.cfg.MeterConfig())
		if err != nil {
			return err
		}
		e.closers = append(e.closers, mp.Shutdown)
		metrics, err := observability.NewMetrics(mp.Meter(envPrefix))
		if err != nil {
			return err
		}
		pipeOpts = append(pipeOpts, aggregate.WithMetrics(metrics))
	}

	backend, err := store.Open(e.cfg.Store, e.log)
	if err != nil {
		return err
	}
	e.backend = backend
	e.closers = append(e.closers, func(context.Context) error { return backend.Close() })

	e.catalog = collection.NewCatalog(collection.WithFactory(backend.Collection))
	names, err := backend.Names(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := e.catalog.Ensure(name); err != nil {
			return err
		}
	}

	e.registry = view.NewRegistry(e.catalog,
		view.WithMaxDepth(e.cfg.Engine.MaxDepth),
		view.WithPipelineOptions(pipeOpts...),
		view.WithLogger(e.log.WithComponent("view")),
	)

	defs, err := definition.Load(e.cfg.Definitions.Paths, e.cfg.Definitions.Data)
	if err != nil {
		return err
	}
	if err := definition.Apply(ctx, defs, e.catalog, e.registry); err != nil {
		return err
	}
	e.log.Debug("definitions applied", logger.Fields(
		"collections", len(e.catalog.Names()),
		"views", len(e.registry.Names()),
	))
	return nil
}

// close releases resources in reverse order of acquisition.
func (e *env) close(ctx context.Context) {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](ctx); err != nil {
			e.log.Warn("shutdown failed", logger.ErrorFields("close", err))
		}
	}
	e.closers = nil
}
