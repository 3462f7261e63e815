// Package yaml_adapter loads the service configuration from YAML files. The
// score expression is still written in HCL syntax and parsed with hclsyntax.
package yaml_adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/netrec/internal/config"
	"github.com/specialistvlad/netrec/internal/ctxlog"
	"github.com/specialistvlad/netrec/internal/fsutil"
	"gopkg.in/yaml.v3"
)

// Extensions lists the file extensions this loader reads.
var Extensions = []string{".yaml", ".yml"}

type fileRoot struct {
	Provider  *providerSection  `yaml:"provider"`
	Transport *transportSection `yaml:"transport"`
	Scoring   *scoringSection   `yaml:"scoring"`
	Metrics   *metricsSection   `yaml:"metrics"`
}

type providerSection struct {
	Looper          *string `yaml:"looper"`
	DrainOnShutdown *bool   `yaml:"drain_on_shutdown"`
}

type transportSection struct {
	Kind      *string           `yaml:"kind"`
	Listen    *string           `yaml:"listen"`
	Path      *string           `yaml:"path"`
	Event     *string           `yaml:"event"`
	RateLimit *rateLimitSection `yaml:"rate_limit"`
}

type rateLimitSection struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type scoringSection struct {
	MinRSSI      *int     `yaml:"min_rssi"`
	ExcludeSSIDs []string `yaml:"exclude_ssids"`
	Score        string   `yaml:"score"`
}

type metricsSection struct {
	Enabled *bool   `yaml:"enabled"`
	Path    *string `yaml:"path"`
}

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads every YAML file found under paths, merges them over the
// defaults in order and validates the result.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path_count", len(paths))

	files, err := fsutil.ExpandPaths(paths, Extensions...)
	if err != nil {
		return nil, err
	}

	model := config.Default()
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read YAML file %s: %w", file, err)
		}
		overrides, err := parse(file, data)
		if err != nil {
			return nil, err
		}
		model.Apply(overrides)
	}

	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Debug("YAML loading complete.", "files", len(files), "looper", model.Provider.Looper, "listen", model.Transport.Listen)
	return model, nil
}

func parse(file string, data []byte) (config.Overrides, error) {
	var o config.Overrides

	var root fileRoot
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&root); err != nil && !errors.Is(err, io.EOF) {
		return o, fmt.Errorf("failed to decode YAML file %s: %w", file, err)
	}

	if p := root.Provider; p != nil {
		o.Looper = p.Looper
		o.DrainOnShutdown = p.DrainOnShutdown
	}
	if t := root.Transport; t != nil {
		o.TransportKind = t.Kind
		o.Listen = t.Listen
		o.Path = t.Path
		o.Event = t.Event
		if t.RateLimit != nil {
			o.RateLimit = &config.RateLimit{RPS: t.RateLimit.RPS, Burst: t.RateLimit.Burst}
		}
	}
	if s := root.Scoring; s != nil {
		o.MinRSSI = s.MinRSSI
		o.ExcludeSSIDs = s.ExcludeSSIDs
		if s.Score != "" {
			expr, diags := hclsyntax.ParseExpression([]byte(s.Score), file, hcl.InitialPos)
			if diags.HasErrors() {
				return o, fmt.Errorf("invalid scoring.score in %s: %w", file, diags)
			}
			o.Score = expr
		}
	}
	if m := root.Metrics; m != nil {
		o.MetricsEnabled = m.Enabled
		o.MetricsPath = m.Path
	}
	return o, nil
}
