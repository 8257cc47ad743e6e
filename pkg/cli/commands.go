package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chattriggers/ctjs/internal/host"
	"github.com/chattriggers/ctjs/internal/state"
	"github.com/chattriggers/ctjs/pkg/config"
	"github.com/chattriggers/ctjs/pkg/discovery"
	"github.com/chattriggers/ctjs/pkg/logger"
	"github.com/chattriggers/ctjs/pkg/process"
	"github.com/chattriggers/ctjs/pkg/resources"
	"github.com/chattriggers/ctjs/pkg/utils"
	"github.com/chattriggers/ctjs/pkg/validation"
)

// hostHeartbeat is how often a running host logs that it is alive
const hostHeartbeat = time.Minute

func (c *CLI) newRunCmd() *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load scripts and drive them until interrupted",
		Long: `Load every import, then deliver tick and world load signals until
interrupted. SIGHUP reloads all scripts from disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runHost(cmd.Context(), duration)
		},
	}

	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (0 runs until interrupted)")

	return cmd
}

func (c *CLI) newLoadCmd() *cobra.Command {
	var ticks int
	var world bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load scripts once and print the result",
		Long: `Run a single load of every import, optionally deliver a world load
and a number of ticks, then print the load report and entry point states.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLoad(cmd.Context(), ticks, world)
		},
	}

	cmd.Flags().IntVar(&ticks, "ticks", 0, "number of ticks to deliver after loading")
	cmd.Flags().BoolVar(&world, "world", false, "deliver a world load after loading")

	return cmd
}

func (c *CLI) newImportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "imports",
		Short: "List discovered imports",
		Long:  `Discover and aggregate every import without evaluating it.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runImports()
		},
	}
}

func (c *CLI) newInitCmd() *cobra.Command {
	var force bool
	var format string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration and libraries",
		Long: `Write a default ctjs configuration into the mod root, create the
imports directory and materialize the bundled libraries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(force, format)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration")
	cmd.Flags().StringVar(&format, "format", "json", "configuration format (json, yaml)")

	return cmd
}

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last recorded load",
		Long:  `Display the persisted state of the most recent load, including entry point states and failures.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus()
		},
	}
}

func (c *CLI) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and mod root layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate()
		},
	}
}

// Implementation functions

func (c *CLI) runHost(ctx context.Context, duration time.Duration) error {
	env, err := c.loadEnvironment()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if active, err := env.state.IsActive(); err == nil && active {
		return fmt.Errorf("another ctjs process is running for %s", env.paths.ModRoot)
	}

	if duration > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, duration)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h := host.New(host.ConfigFrom(env.config.Host), c.logger)
	l, err := c.newLoader(env, h)
	if err != nil {
		return err
	}

	c.printReport(l.Load(ctx), l.EntryStates())

	pm := process.NewManager(c.logger)
	pm.RegisterShutdownHandler(cancel)
	pm.RegisterReloadHandler(func() {
		h.Submit(func() {
			report, err := l.Reload(ctx)
			if err != nil {
				c.logger.Error("Reload failed", logger.WithError(err))
				return
			}
			c.printReport(report, l.EntryStates())
		})
	})
	pm.SetHeartbeat(func() {
		c.logger.Debug("Host alive", logger.WithField("ticks", h.Ticks()))
	}, hostHeartbeat)
	pm.Start(ctx)
	defer pm.Stop()

	env.state.StartHeartbeat(ctx)
	defer func() {
		if err := env.state.Cleanup(); err != nil {
			c.logger.Warn("Failed to release loader state", logger.WithError(err))
		}
	}()

	g, gctx := host.NewSafeGroup(ctx, c.logger)
	g.Go(func() error {
		return h.Run(gctx)
	})
	return g.Wait()
}

func (c *CLI) runLoad(ctx context.Context, ticks int, world bool) error {
	env, err := c.loadEnvironment()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	h := host.New(host.ConfigFrom(env.config.Host), c.logger)
	l, err := c.newLoader(env, h)
	if err != nil {
		return err
	}

	report := l.Load(ctx)
	if world {
		h.FireWorldLoad()
	}
	for i := 0; i < ticks; i++ {
		h.FireTick()
	}

	c.printReport(report, l.EntryStates())

	if err := env.state.Cleanup(); err != nil {
		c.logger.Warn("Failed to release loader state", logger.WithError(err))
	}

	if !report.OK() {
		return fmt.Errorf("load finished with %d failure(s)", len(report.Failures))
	}
	return nil
}

func (c *CLI) runImports() error {
	env, err := c.loadEnvironment()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	agg, err := env.newAggregator()
	if err != nil {
		return err
	}

	imports, err := discovery.Discover(env.paths.Imports, agg)
	for _, e := range discovery.Errors(err) {
		c.printWarning(e.Error())
	}

	if len(imports) == 0 {
		fmt.Fprintf(c.output, "No imports found in %s\n", env.paths.Imports)
		return nil
	}

	w := newTable(c.output)
	fmt.Fprintln(w, "IMPORT\tLINES\tSIZE")
	fmt.Fprintln(w, "------\t-----\t----")
	for _, imp := range imports {
		writeImportRow(w, imp.Name, imp.Lines(), imp.Size())
	}
	return w.Flush()
}

func (c *CLI) runInit(force bool, format string) error {
	var name string
	switch format {
	case "json":
		name = config.ConfigFileNames[0]
	case "yaml", "yml":
		name = config.ConfigFileNames[1]
	default:
		return fmt.Errorf("unknown config format %q", format)
	}

	manager := config.NewManager()
	modRoot := c.config.ModRoot

	if existing, ok := manager.FindConfig(modRoot); ok && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", existing)
	}
	if err := utils.EnsureDirectory(modRoot); err != nil {
		return fmt.Errorf("failed to create mod root: %w", err)
	}

	cfg := manager.GetDefaultConfig()
	path := filepath.Join(modRoot, name)
	if err := manager.SaveConfig(path, cfg); err != nil {
		return err
	}

	cfg.ModRoot = modRoot
	paths := manager.ResolvePaths(cfg)
	if err := utils.EnsureDirectory(paths.Imports); err != nil {
		return fmt.Errorf("failed to create imports directory: %w", err)
	}

	materializer := resources.NewMaterializer(nil, c.logger)
	var errs []error
	if err := materializer.Materialize(paths.ProvidedLibsResource, paths.ProvidedLibsFile, true); err != nil {
		errs = append(errs, err)
	}
	if err := materializer.Materialize(paths.CustomLibsResource, paths.CustomLibsFile, false); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	c.printSuccess("Initialized " + modRoot)
	fmt.Fprintf(c.output, "Created %s\n", path)
	fmt.Fprintf(c.output, "Put imports in %s\n", paths.Imports)
	return nil
}

func (c *CLI) runStatus() error {
	env, err := c.loadEnvironment()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	s, err := env.state.Read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(c.output, "No load recorded in %s\n", env.paths.ModRoot)
			return nil
		}
		return fmt.Errorf("failed to read state: %w", err)
	}

	c.printState(s, state.IsAlive(s))
	return nil
}

func (c *CLI) runValidate() error {
	manager := config.NewManager()

	path := c.config.ConfigFile
	if path == "" {
		path, _ = manager.FindConfig(c.config.ModRoot)
	}

	cfg := manager.GetDefaultConfig()
	if path == "" {
		fmt.Fprintf(c.output, "No config file in %s, defaults apply\n", c.config.ModRoot)
	} else {
		loaded, err := manager.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("%s is invalid: %w", path, err)
		}
		cfg = loaded
		fmt.Fprintf(c.output, "%s %s is valid\n", color.GreenString("✓"), path)
	}
	if cfg.ModRoot == "" {
		cfg.ModRoot = c.config.ModRoot
	}

	paths := manager.ResolvePaths(cfg)
	c.printPaths(paths)

	env := &environment{config: cfg}
	agg, err := env.newAggregator()
	if err != nil {
		return err
	}

	result := validation.NewLayoutValidator(paths, agg).Validate()
	c.printValidation(result)
	return result.Err()
}
