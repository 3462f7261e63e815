package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Provider   *ProviderBlock    `hcl:"provider,block"`
	Transports []*TransportBlock `hcl:"transport,block"`
	Scoring    *ScoringBlock     `hcl:"scoring,block"`
	Metrics    *MetricsBlock     `hcl:"metrics,block"`
	Remain     hcl.Body          `hcl:",remain"`
}

// ProviderBlock is the HCL schema of the `provider` block.
type ProviderBlock struct {
	Looper          *string `hcl:"looper,optional"`
	DrainOnShutdown *bool   `hcl:"drain_on_shutdown,optional"`
}

// TransportBlock is the HCL schema of a `transport "<kind>"` block.
type TransportBlock struct {
	Kind      string          `hcl:"kind,label"`
	Listen    *string         `hcl:"listen,optional"`
	Path      *string         `hcl:"path,optional"`
	Event     *string         `hcl:"event,optional"`
	RateLimit *RateLimitBlock `hcl:"rate_limit,block"`
}

// RateLimitBlock is the HCL schema of `transport.rate_limit`.
type RateLimitBlock struct {
	RPS   float64 `hcl:"rps"`
	Burst int     `hcl:"burst"`
}

// ScoringBlock is the HCL schema of the `scoring` block. Score is kept as an
// expression and evaluated per candidate network at request time.
type ScoringBlock struct {
	MinRSSI      *int           `hcl:"min_rssi,optional"`
	ExcludeSSIDs []string       `hcl:"exclude_ssids,optional"`
	Score        hcl.Expression `hcl:"score,optional"`
}

// MetricsBlock is the HCL schema of the `metrics` block.
type MetricsBlock struct {
	Enabled *bool   `hcl:"enabled,optional"`
	Path    *string `hcl:"path,optional"`
}
