package cli

import (
	"github.com/chattriggers/ctjs/pkg/types"
)

// Config holds all CLI configuration
type Config struct {
	ConfigFile string
	ModRoot    string
	Verbosity  string
	Version    string
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		ModRoot:   types.DefaultModRoot,
		Verbosity: string(types.LogLevelInfo),
	}
}
