package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given files or directories, merges
	// them over Default in order and returns the validated model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}
