// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chattriggers/ctjs/pkg/types"
	"github.com/chattriggers/ctjs/pkg/utils"
)

// ConfigFileNames are searched in order inside the mod root
var ConfigFileNames = []string{
	"ctjs.config.json",
	"ctjs.config.yaml",
	"ctjs.config.yml",
}

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Paths is the fully resolved on-disk layout
type Paths struct {
	ModRoot              string
	Imports              string
	Libs                 string
	Assets               string
	ProvidedLibsFile     string
	CustomLibsFile       string
	ProvidedLibsResource string
	CustomLibsResource   string
}

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// FindConfig returns the first config file present in modRoot
func (m *Manager) FindConfig(modRoot string) (string, bool) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(modRoot, name)
		if utils.FileExists(path) {
			return path, true
		}
	}
	return "", false
}

// LoadConfig loads configuration from a file, applies defaults and validates it
func (m *Manager) LoadConfig(path string) (*types.LoaderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg types.LoaderConfig

	// Try JSON first
	if err := json.Unmarshal(data, &cfg); err == nil {
		return m.validateConfig(&cfg)
	}

	cfg = types.LoaderConfig{}
	if err := yaml.Unmarshal(data, &cfg); err == nil {
		return m.validateConfig(&cfg)
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML")
}

// LoadOrDefault loads the config found in modRoot, or the defaults when none exists
func (m *Manager) LoadOrDefault(modRoot string) (*types.LoaderConfig, string, error) {
	path, ok := m.FindConfig(modRoot)
	if !ok {
		cfg := m.GetDefaultConfig()
		cfg.ModRoot = modRoot
		return cfg, "", nil
	}

	cfg, err := m.LoadConfig(path)
	if err != nil {
		return nil, path, err
	}
	if cfg.ModRoot == "" {
		cfg.ModRoot = modRoot
	}
	return cfg, path, nil
}

// SaveConfig writes cfg as JSON or YAML depending on the file extension
func (m *Manager) SaveConfig(path string, cfg *types.LoaderConfig) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := utils.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ValidateConfig validates a configuration
func (m *Manager) ValidateConfig(config *types.LoaderConfig) error {
	if config.Version != types.ConfigVersion {
		return fmt.Errorf("%w: unsupported config version: %q", ErrInvalidConfig, config.Version)
	}

	for i, illegal := range config.IllegalLines {
		if illegal == "" {
			return fmt.Errorf("%w: illegalLines[%d] is empty and would drop every line", ErrInvalidConfig, i)
		}
	}

	for i, ext := range config.ScriptExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("%w: scriptExtensions[%d] %q must start with a dot", ErrInvalidConfig, i, ext)
		}
	}

	if config.Resources != nil {
		for name, lib := range map[string]types.LibResource{
			"providedLibs": config.Resources.ProvidedLibs,
			"customLibs":   config.Resources.CustomLibs,
		} {
			if lib.File != "" && filepath.Base(lib.File) != lib.File {
				return fmt.Errorf("%w: resources.%s.file %q must be a file name", ErrInvalidConfig, name, lib.File)
			}
		}
	}

	if config.Host != nil && config.Host.TickIntervalMs < 0 {
		return fmt.Errorf("%w: host.tickIntervalMs must not be negative", ErrInvalidConfig)
	}

	if config.Cache != nil && config.Cache.Size < 0 {
		return fmt.Errorf("%w: cache.size must not be negative", ErrInvalidConfig)
	}

	if config.Logging != nil && config.Logging.Level != "" {
		switch config.Logging.Level {
		case types.LogLevelDebug, types.LogLevelInfo, types.LogLevelWarn, types.LogLevelError:
		default:
			return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, config.Logging.Level)
		}
	}

	return nil
}

// GetDefaultConfig returns the default configuration
func (m *Manager) GetDefaultConfig() *types.LoaderConfig {
	enabled := false

	return &types.LoaderConfig{
		Version:          types.ConfigVersion,
		ImportsDir:       types.DefaultImportsDir,
		LibsDir:          types.DefaultLibsDir,
		AssetsDir:        types.DefaultAssetsDir,
		ScriptExtensions: types.DefaultScriptExtensions(),
		IllegalLines:     types.DefaultIllegalLines(),
		Resources: &types.ResourcesConfig{
			ProvidedLibs: types.LibResource{
				Embedded: types.DefaultProvidedLibsRes,
				File:     types.DefaultProvidedLibs,
			},
			CustomLibs: types.LibResource{
				Embedded: types.DefaultCustomLibsRes,
				File:     types.DefaultCustomLibs,
			},
		},
		Host: &types.HostConfig{
			TickIntervalMs: int(types.DefaultTickInterval.Milliseconds()),
		},
		Cache: &types.CacheConfig{
			Size: types.DefaultCacheSize,
		},
		Notifications: &types.NotificationConfig{
			Enabled: &enabled,
		},
		Logging: &types.LoggingConfig{
			Level: types.LogLevelInfo,
		},
	}
}

// ApplyDefaults fills every unset field from the default configuration
func (m *Manager) ApplyDefaults(cfg *types.LoaderConfig) {
	def := m.GetDefaultConfig()

	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	if cfg.ImportsDir == "" {
		cfg.ImportsDir = def.ImportsDir
	}
	if cfg.LibsDir == "" {
		cfg.LibsDir = def.LibsDir
	}
	if cfg.AssetsDir == "" {
		cfg.AssetsDir = def.AssetsDir
	}
	if cfg.ScriptExtensions == nil {
		cfg.ScriptExtensions = def.ScriptExtensions
	}
	if cfg.IllegalLines == nil {
		cfg.IllegalLines = def.IllegalLines
	}
	if cfg.Resources == nil {
		cfg.Resources = def.Resources
	} else {
		fillLib(&cfg.Resources.ProvidedLibs, def.Resources.ProvidedLibs)
		fillLib(&cfg.Resources.CustomLibs, def.Resources.CustomLibs)
	}
	if cfg.Host == nil {
		cfg.Host = def.Host
	}
	if cfg.Cache == nil {
		cfg.Cache = def.Cache
	}
	if cfg.Notifications == nil {
		cfg.Notifications = def.Notifications
	}
	if cfg.Logging == nil {
		cfg.Logging = def.Logging
	} else if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}

// ResolvePaths turns the configured layout into concrete paths. Relative
// directories are joined onto the mod root.
func (m *Manager) ResolvePaths(cfg *types.LoaderConfig) Paths {
	resolved := *cfg
	if cfg.Resources != nil {
		resources := *cfg.Resources
		resolved.Resources = &resources
	}
	m.ApplyDefaults(&resolved)

	modRoot := resolved.ModRoot
	if modRoot == "" {
		modRoot = types.DefaultModRoot
	}

	libs := under(modRoot, resolved.LibsDir)
	return Paths{
		ModRoot:              modRoot,
		Imports:              under(modRoot, resolved.ImportsDir),
		Libs:                 libs,
		Assets:               under(modRoot, resolved.AssetsDir),
		ProvidedLibsFile:     filepath.Join(libs, resolved.Resources.ProvidedLibs.File),
		CustomLibsFile:       filepath.Join(libs, resolved.Resources.CustomLibs.File),
		ProvidedLibsResource: resolved.Resources.ProvidedLibs.Embedded,
		CustomLibsResource:   resolved.Resources.CustomLibs.Embedded,
	}
}

// Private methods

func (m *Manager) validateConfig(cfg *types.LoaderConfig) (*types.LoaderConfig, error) {
	m.ApplyDefaults(cfg)
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fillLib(lib *types.LibResource, def types.LibResource) {
	if lib.Embedded == "" {
		lib.Embedded = def.Embedded
	}
	if lib.File == "" {
		lib.File = def.File
	}
}

func under(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}
