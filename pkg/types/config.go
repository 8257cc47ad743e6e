package types

import "time"

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LoaderConfig is the root configuration of a ctjs installation
type LoaderConfig struct {
	Version          string              `json:"version" yaml:"version"`
	ModRoot          string              `json:"modRoot,omitempty" yaml:"modRoot,omitempty"`
	ImportsDir       string              `json:"importsDir,omitempty" yaml:"importsDir,omitempty"`
	LibsDir          string              `json:"libsDir,omitempty" yaml:"libsDir,omitempty"`
	AssetsDir        string              `json:"assetsDir,omitempty" yaml:"assetsDir,omitempty"`
	ScriptExtensions []string            `json:"scriptExtensions,omitempty" yaml:"scriptExtensions,omitempty"`
	IllegalLines     []string            `json:"illegalLines,omitempty" yaml:"illegalLines,omitempty"`
	Resources        *ResourcesConfig    `json:"resources,omitempty" yaml:"resources,omitempty"`
	Host             *HostConfig         `json:"host,omitempty" yaml:"host,omitempty"`
	Cache            *CacheConfig        `json:"cache,omitempty" yaml:"cache,omitempty"`
	Notifications    *NotificationConfig `json:"notifications,omitempty" yaml:"notifications,omitempty"`
	Logging          *LoggingConfig      `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// ResourcesConfig maps bundled library resources to files under the libs dir
type ResourcesConfig struct {
	ProvidedLibs LibResource `json:"providedLibs" yaml:"providedLibs"`
	CustomLibs   LibResource `json:"customLibs" yaml:"customLibs"`
}

// LibResource pairs an embedded resource path with its on-disk file name
type LibResource struct {
	Embedded string `json:"embedded" yaml:"embedded"`
	File     string `json:"file" yaml:"file"`
}

// HostConfig configures the signal source driving lifecycle dispatch
type HostConfig struct {
	TickIntervalMs   int  `json:"tickIntervalMs" yaml:"tickIntervalMs"`
	WorldLoadOnStart bool `json:"worldLoadOnStart" yaml:"worldLoadOnStart"`
}

// TickInterval returns the tick period as a duration
func (h *HostConfig) TickInterval() time.Duration {
	if h == nil || h.TickIntervalMs <= 0 {
		return DefaultTickInterval
	}
	return time.Duration(h.TickIntervalMs) * time.Millisecond
}

// CacheConfig configures the aggregation cache
type CacheConfig struct {
	Size int `json:"size" yaml:"size"`
}

// NotificationConfig represents notification settings
type NotificationConfig struct {
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled reports whether desktop notifications are on
func (n *NotificationConfig) IsEnabled() bool {
	return n != nil && n.Enabled != nil && *n.Enabled
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	File  string   `json:"file,omitempty" yaml:"file,omitempty"`
	Level LogLevel `json:"level,omitempty" yaml:"level,omitempty"`
}

// Defaults for the on-disk layout and runtime behaviour.
const (
	ConfigVersion          = "1.0"
	DefaultModRoot         = "./mods/ChatTriggers"
	DefaultImportsDir      = "Imports"
	DefaultLibsDir         = "libs"
	DefaultAssetsDir       = "assets"
	DefaultProvidedLibsRes = "/providedLibs.js"
	DefaultCustomLibsRes   = "/customLibs.js"
	DefaultProvidedLibs    = "chattriggers-provided-libs.js"
	DefaultCustomLibs      = "chattriggers-custom-libs.js"
	DefaultCacheSize       = 256
	DefaultTickInterval    = 50 * time.Millisecond
	StateDirName           = ".ctjs"
)

// DefaultIllegalLines are the substrings that drop a line from aggregated scripts.
func DefaultIllegalLines() []string {
	return []string{
		"module.export",
		`load("http`,
	}
}

// DefaultScriptExtensions are the file extensions aggregated into scripts.
func DefaultScriptExtensions() []string {
	return []string{".js"}
}
