package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// TransportSocketIO is the only transport kind shipped with the service.
const TransportSocketIO = "socketio"

// HealthPath is always served for liveness probes.
const HealthPath = "/health"

// Model is the unified, format-agnostic representation of the service
// configuration.
type Model struct {
	Provider  Provider
	Transport Transport
	Scoring   Scoring
	Metrics   Metrics
}

// Provider configures the dispatcher and its looper.
type Provider struct {
	// Looper names the execution context the evaluator is bound to.
	Looper string
	// DrainOnShutdown handles queued requests before the looper exits.
	DrainOnShutdown bool
}

// Transport configures the inbound binding.
type Transport struct {
	Kind      string
	Listen    string
	Path      string
	Event     string
	RateLimit *RateLimit
}

// RateLimit is a per-peer token bucket.
type RateLimit struct {
	RPS   float64
	Burst int
}

// Scoring configures the bundled evaluator.
type Scoring struct {
	MinRSSI      *int
	ExcludeSSIDs []string
	// Score is evaluated per candidate network. Nil means the default
	// expression `network.rssi`.
	Score hcl.Expression
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool
	Path    string
}

// Default returns the configuration used when no file overrides a value.
func Default() *Model {
	return &Model{
		Provider: Provider{
			Looper:          "recommendation",
			DrainOnShutdown: true,
		},
		Transport: Transport{
			Kind:   TransportSocketIO,
			Listen: ":8080",
			Path:   "/socket.io/",
			Event:  "request_recommendation",
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Overrides carries the values a single config source set explicitly. Nil
// fields leave the model untouched.
type Overrides struct {
	Looper          *string
	DrainOnShutdown *bool

	TransportKind *string
	Listen        *string
	Path          *string
	Event         *string
	RateLimit     *RateLimit

	MinRSSI      *int
	ExcludeSSIDs []string
	Score        hcl.Expression

	MetricsEnabled *bool
	MetricsPath    *string
}

// Apply merges o into m. Later sources win.
func (m *Model) Apply(o Overrides) {
	if o.Looper != nil {
		m.Provider.Looper = *o.Looper
	}
	if o.DrainOnShutdown != nil {
		m.Provider.DrainOnShutdown = *o.DrainOnShutdown
	}
	if o.TransportKind != nil {
		m.Transport.Kind = *o.TransportKind
	}
	if o.Listen != nil {
		m.Transport.Listen = *o.Listen
	}
	if o.Path != nil {
		m.Transport.Path = *o.Path
	}
	if o.Event != nil {
		m.Transport.Event = *o.Event
	}
	if o.RateLimit != nil {
		rl := *o.RateLimit
		m.Transport.RateLimit = &rl
	}
	if o.MinRSSI != nil {
		v := *o.MinRSSI
		m.Scoring.MinRSSI = &v
	}
	if o.ExcludeSSIDs != nil {
		m.Scoring.ExcludeSSIDs = append([]string(nil), o.ExcludeSSIDs...)
	}
	if o.Score != nil {
		m.Scoring.Score = o.Score
	}
	if o.MetricsEnabled != nil {
		m.Metrics.Enabled = *o.MetricsEnabled
	}
	if o.MetricsPath != nil {
		m.Metrics.Path = *o.MetricsPath
	}
}

// Validate reports every problem found in the model.
func (m *Model) Validate() error {
	var errs []error

	if strings.TrimSpace(m.Provider.Looper) == "" {
		errs = append(errs, errors.New("provider.looper must not be empty"))
	}

	t := m.Transport
	if t.Kind != TransportSocketIO {
		errs = append(errs, fmt.Errorf("transport %q is not supported, only %q", t.Kind, TransportSocketIO))
	}
	if t.Listen == "" {
		errs = append(errs, errors.New("transport.listen must not be empty"))
	}
	if !strings.HasPrefix(t.Path, "/") {
		errs = append(errs, fmt.Errorf("transport.path %q must start with '/'", t.Path))
	}
	if strings.TrimSuffix(t.Path, "/") == HealthPath {
		errs = append(errs, fmt.Errorf("transport.path %q is reserved for the health check", t.Path))
	}
	if strings.TrimSpace(t.Event) == "" {
		errs = append(errs, errors.New("transport.event must not be empty"))
	}
	if rl := t.RateLimit; rl != nil {
		if rl.RPS <= 0 {
			errs = append(errs, fmt.Errorf("transport.rate_limit.rps must be positive, got %v", rl.RPS))
		}
		if rl.Burst < 1 {
			errs = append(errs, fmt.Errorf("transport.rate_limit.burst must be at least 1, got %d", rl.Burst))
		}
	}

	if m.Metrics.Enabled {
		if !strings.HasPrefix(m.Metrics.Path, "/") {
			errs = append(errs, fmt.Errorf("metrics.path %q must start with '/'", m.Metrics.Path))
		}
		if strings.TrimSuffix(m.Metrics.Path, "/") == strings.TrimSuffix(t.Path, "/") {
			errs = append(errs, fmt.Errorf("metrics.path %q collides with transport.path", m.Metrics.Path))
		}
		if m.Metrics.Path == HealthPath {
			errs = append(errs, fmt.Errorf("metrics.path %q is reserved for the health check", m.Metrics.Path))
		}
	}

	return errors.Join(errs...)
}
