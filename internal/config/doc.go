// Package config defines the format-agnostic configuration model of the
// recommendation service and the Loader interface implemented by the
// format-specific adapters (HCL, YAML).
//
// The `config.Model` is the single source of truth for the `app`, `scorer`
// and transport packages. Adapters only parse and merge; defaults and
// validation live here.
package config
