package app

import (
	"fmt"
	"net"
)

// Config holds the process-level settings that do not come from config files.
type Config struct {
	ConfigPaths []string // .hcl / .yaml files or directories

	// Listen overrides transport.listen when set.
	Listen string

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
			return nil, fmt.Errorf("invalid listen address %q: %w", cfg.Listen, err)
		}
	}
	return &cfg, nil
}
