// Package cli provides the command-line interface for ctjs
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chattriggers/ctjs/pkg/logger"
)

// EnvPrefix prefixes every environment variable read by the CLI
const EnvPrefix = "CTJS"

// CLI encapsulates the command-line interface. Each instance owns its own
// viper registry so several can run side by side in tests.
type CLI struct {
	config   *Config
	rootCmd  *cobra.Command
	viper    *viper.Viper
	logger   logger.Logger
	output   io.Writer
	errorOut io.Writer
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(config *Config) *CLI {
	if config == nil {
		config = NewConfig()
	}

	cli := &CLI{
		config:   config,
		viper:    viper.New(),
		logger:   logger.NewNopLogger(),
		output:   os.Stdout,
		errorOut: os.Stderr,
	}

	cli.setupCommands()
	return cli
}

// NewCLIWithOutput creates a CLI with custom output writers
func NewCLIWithOutput(config *Config, output, errorOut io.Writer) *CLI {
	cli := NewCLI(config)
	cli.output = output
	cli.errorOut = errorOut
	cli.rootCmd.SetOut(output)
	cli.rootCmd.SetErr(errorOut)
	return cli
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "ctjs",
		Short: "Load and run ChatTriggers script imports",
		Long: `ctjs discovers script imports under the mod root, aggregates and
sanitizes their sources, evaluates them in a shared JavaScript runtime and
drives their tick and world load callbacks.`,

		PersistentPreRunE: c.initializeConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("ctjs v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newRunCmd())
	c.rootCmd.AddCommand(c.newLoadCmd())
	c.rootCmd.AddCommand(c.newImportsCmd())
	c.rootCmd.AddCommand(c.newInitCmd())
	c.rootCmd.AddCommand(c.newStatusCmd())
	c.rootCmd.AddCommand(c.newValidateCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", c.config.ConfigFile, "config file (default: ctjs.config.json in the mod root)")
	flags.StringVar(&c.config.ModRoot, "root", c.config.ModRoot, "mod root directory")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", c.config.Verbosity, "log level (debug, info, warn, error)")
}

// initializeConfig resolves flags, the environment and <root>/.env into
// c.config. Flags win over the environment, which wins over .env.
func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	if err := loadDotEnv(filepath.Join(c.config.ModRoot, ".env")); err != nil {
		return err
	}

	c.viper.SetEnvPrefix(EnvPrefix)
	c.viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.viper.AutomaticEnv()

	for _, name := range []string{"config", "root", "verbosity"} {
		if err := c.viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	c.config.ConfigFile = c.viper.GetString("config")
	c.config.ModRoot = c.viper.GetString("root")
	c.config.Verbosity = c.viper.GetString("verbosity")

	c.logger = logger.CreateLoggerWithOutput("", c.config.Verbosity, c.errorOut)
	c.logger.Debug("Configuration resolved",
		logger.WithField("mod_root", c.config.ModRoot),
		logger.WithField("config", c.config.ConfigFile))

	return nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// verbosityExplicit reports whether the log level came from a flag or the
// environment rather than the default
func (c *CLI) verbosityExplicit() bool {
	return c.viper.IsSet("verbosity")
}

func (c *CLI) printSuccess(message string) {
	c.logger.Success(message)
}

func (c *CLI) printWarning(message string) {
	c.logger.Warn(message)
}

// ExecuteWithVersion builds a CLI for the running binary and executes it
func ExecuteWithVersion(version string) error {
	config := NewConfig()
	config.Version = version
	cli := NewCLI(config)
	return cli.Execute(os.Args[1:])
}
