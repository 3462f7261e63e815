// This file translates the HCL schema structs into config.Overrides, the
// format-agnostic merge unit of the config package.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/specialistvlad/netrec/internal/config"
	"github.com/specialistvlad/netrec/internal/ctxlog"
)

// translateFile converts one decoded file into overrides.
func (l *Loader) translateFile(ctx context.Context, root *fileRoot) (config.Overrides, error) {
	var o config.Overrides

	if p := root.Provider; p != nil {
		o.Looper = p.Looper
		o.DrainOnShutdown = p.DrainOnShutdown
	}

	if len(root.Transports) > 1 {
		return o, fmt.Errorf("only one transport block is allowed, found %d", len(root.Transports))
	}
	for _, t := range root.Transports {
		kind := t.Kind
		o.TransportKind = &kind
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
		if isExprDefined(ctx, s.Score, "score") {
			o.Score = s.Score
		} else {
			ctxlog.FromContext(ctx).Debug("`score` attribute is not defined. Keeping the current expression.")
		}
	}

	if m := root.Metrics; m != nil {
		o.MetricsEnabled = m.Enabled
		o.MetricsPath = m.Path
	}

	return o, nil
}
