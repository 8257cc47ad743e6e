package cli

import (
	"time"

	"github.com/chattriggers/ctjs/internal/loader"
	"github.com/chattriggers/ctjs/internal/state"
	"github.com/chattriggers/ctjs/pkg/aggregator"
	"github.com/chattriggers/ctjs/pkg/config"
	"github.com/chattriggers/ctjs/pkg/interfaces"
	"github.com/chattriggers/ctjs/pkg/logger"
	"github.com/chattriggers/ctjs/pkg/notifier"
	"github.com/chattriggers/ctjs/pkg/resources"
	"github.com/chattriggers/ctjs/pkg/scripting"
	"github.com/chattriggers/ctjs/pkg/types"
)

// scriptCallTimeout bounds a single entry point call so a runaway script
// cannot stall the tick loop
const scriptCallTimeout = 2 * time.Second

// environment is the resolved configuration of one command invocation
type environment struct {
	manager    *config.Manager
	config     *types.LoaderConfig
	configPath string
	paths      config.Paths
	state      *state.StateManager
}

func (c *CLI) loadEnvironment() (*environment, error) {
	manager := config.NewManager()

	var (
		cfg  *types.LoaderConfig
		path string
		err  error
	)
	if c.config.ConfigFile != "" {
		path = c.config.ConfigFile
		cfg, err = manager.LoadConfig(path)
		if err == nil && cfg.ModRoot == "" {
			cfg.ModRoot = c.config.ModRoot
		}
	} else {
		cfg, path, err = manager.LoadOrDefault(c.config.ModRoot)
	}
	if err != nil {
		return nil, err
	}

	c.applyLogging(cfg.Logging)

	paths := manager.ResolvePaths(cfg)
	return &environment{
		manager:    manager,
		config:     cfg,
		configPath: path,
		paths:      paths,
		state:      state.NewStateManager(paths.ModRoot, c.logger),
	}, nil
}

// applyLogging lets the config file pick the log file, and the level unless
// one was given on the command line or in the environment
func (c *CLI) applyLogging(cfg *types.LoggingConfig) {
	if cfg == nil {
		return
	}

	level := c.config.Verbosity
	if !c.verbosityExplicit() && cfg.Level != "" {
		level = string(cfg.Level)
	}
	if cfg.File == "" && level == c.config.Verbosity {
		return
	}
	c.logger = logger.CreateLoggerWithOutput(cfg.File, level, c.errorOut)
}

func (e *environment) newAggregator() (*aggregator.Aggregator, error) {
	opts := aggregator.Options{
		IllegalLines: e.config.IllegalLines,
		Extensions:   e.config.ScriptExtensions,
	}
	if e.config.Cache != nil {
		opts.CacheSize = e.config.Cache.Size
	}
	return aggregator.New(opts)
}

func (c *CLI) newLoader(env *environment, registry interfaces.ListenerRegistry) (*loader.Loader, error) {
	agg, err := env.newAggregator()
	if err != nil {
		return nil, err
	}

	return loader.New(loader.Dependencies{
		Paths:         env.paths,
		Aggregator:    agg,
		Materializer:  resources.NewMaterializer(nil, c.logger),
		EngineFactory: scripting.NewGojaFactory(c.logger, scriptCallTimeout),
		Registry:      registry,
		State:         env.state,
		Notifier:      notifier.New(notifier.Config{Enabled: env.config.Notifications.IsEnabled()}, c.logger),
		Logger:        c.logger,
	})
}
