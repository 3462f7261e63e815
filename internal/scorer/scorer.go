// Package scorer is the bundled recommendation evaluator. It ranks the
// networks of a scan with a user-configurable HCL expression and returns the
// best one.
package scorer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/netrec/internal/config"
	"github.com/specialistvlad/netrec/internal/ctxlog"
	"github.com/specialistvlad/netrec/internal/recommendation"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// DefaultScore ranks networks by signal strength alone.
const DefaultScore = "network.rssi"

// ErrNonNumericScore is returned when the score expression does not produce
// a number.
var ErrNonNumericScore = errors.New("score expression must evaluate to a number")

// functions available to score expressions.
var functions = map[string]function.Function{
	"abs":    stdlib.AbsoluteFunc,
	"max":    stdlib.MaxFunc,
	"min":    stdlib.MinFunc,
	"lower":  stdlib.LowerFunc,
	"upper":  stdlib.UpperFunc,
	"strlen": stdlib.StrlenFunc,
}

// Scorer implements dispatcher.Evaluator for recommendation requests. It
// holds no mutable state and is safe to share.
type Scorer struct {
	minRSSI *int
	exclude map[string]struct{}
	score   hcl.Expression
}

// New compiles cfg into a scorer. The score expression is checked against a
// probe network so configuration mistakes surface at startup.
func New(cfg config.Scoring) (*Scorer, error) {
	expr := cfg.Score
	if expr == nil {
		var diags hcl.Diagnostics
		expr, diags = hclsyntax.ParseExpression([]byte(DefaultScore), "default", hcl.InitialPos)
		if diags.HasErrors() {
			return nil, diags
		}
	}

	vars, funcs := references(expr)
	for _, v := range vars {
		if v != "network" && !strings.HasPrefix(v, "network.") {
			return nil, fmt.Errorf("score expression references unknown variable %q, only network.* is available", v)
		}
	}
	for _, f := range funcs {
		if _, ok := functions[f]; !ok {
			return nil, fmt.Errorf("score expression calls unknown function %q", f)
		}
	}

	s := &Scorer{
		minRSSI: cfg.MinRSSI,
		exclude: make(map[string]struct{}, len(cfg.ExcludeSSIDs)),
		score:   expr,
	}
	for _, ssid := range cfg.ExcludeSSIDs {
		s.exclude[ssid] = struct{}{}
	}

	if _, err := s.scoreOf(candidate{scan: recommendation.ScanResult{}}); err != nil {
		return nil, fmt.Errorf("invalid score expression: %w", err)
	}
	return s, nil
}

// candidate is a scan result matched to the caller's network list.
type candidate struct {
	scan         recommendation.ScanResult
	networkID    int
	connected    bool
	lastSelected bool
}

// Evaluate picks the highest scoring network. Ties keep scan order. When no
// network qualifies the request's default config is returned.
func (s *Scorer) Evaluate(ctx context.Context, req recommendation.Request) (recommendation.Result, error) {
	logger := ctxlog.FromContext(ctx)

	cands := s.candidates(req)
	logger.Debug("Scoring candidates.", "scan_results", len(req.ScanResults), "candidates", len(cands))

	var best *candidate
	var bestScore float64
	for i := range cands {
		c := &cands[i]
		score, err := s.scoreOf(*c)
		if err != nil {
			return recommendation.Result{}, fmt.Errorf("scoring %q (%s): %w", c.scan.SSID, c.scan.BSSID, err)
		}
		if best == nil || score > bestScore {
			best, bestScore = c, score
		}
	}

	if best == nil {
		logger.Debug("No candidate network, falling back to the default config.")
		return recommendation.Result{WifiConfig: req.DefaultConfig}, nil
	}

	logger.Debug("Network selected.", "ssid", best.scan.SSID, "bssid", best.scan.BSSID, "score", bestScore)
	return recommendation.Result{WifiConfig: &recommendation.WifiConfig{
		NetworkID: best.networkID,
		SSID:      best.scan.SSID,
		BSSID:     best.scan.BSSID,
	}}, nil
}

func (s *Scorer) candidates(req recommendation.Request) []candidate {
	byName := make(map[string]int, len(req.ConnectableConfigs))
	for _, cfg := range req.ConnectableConfigs {
		if _, dup := byName[cfg.SSID]; !dup {
			byName[cfg.SSID] = cfg.NetworkID
		}
	}

	var out []candidate
	for _, scan := range req.ScanResults {
		if _, skip := s.exclude[scan.SSID]; skip {
			continue
		}
		if s.minRSSI != nil && scan.RSSI < *s.minRSSI {
			continue
		}

		networkID := recommendation.NoNetworkID
		if len(req.ConnectableConfigs) > 0 {
			id, ok := byName[scan.SSID]
			if !ok {
				continue
			}
			networkID = id
		}

		out = append(out, candidate{
			scan:         scan,
			networkID:    networkID,
			connected:    isConnected(req.ConnectedConfig, scan),
			lastSelected: networkID != recommendation.NoNetworkID && networkID == req.LastSelectedNetworkID,
		})
	}
	return out
}

func isConnected(cfg *recommendation.WifiConfig, scan recommendation.ScanResult) bool {
	if cfg == nil || cfg.SSID != scan.SSID {
		return false
	}
	return cfg.BSSID == "" || strings.EqualFold(cfg.BSSID, scan.BSSID)
}

func (s *Scorer) scoreOf(c candidate) (float64, error) {
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"network": networkValue(c)},
		Functions: functions,
	}

	val, diags := s.score.Value(evalCtx)
	if diags.HasErrors() {
		return 0, diags
	}
	if val.IsNull() || !val.IsKnown() || !val.Type().Equals(cty.Number) {
		return 0, fmt.Errorf("%w, got %s", ErrNonNumericScore, val.Type().FriendlyName())
	}
	f, _ := val.AsBigFloat().Float64()
	return f, nil
}

func networkValue(c candidate) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"ssid":          cty.StringVal(c.scan.SSID),
		"bssid":         cty.StringVal(c.scan.BSSID),
		"rssi":          cty.NumberIntVal(int64(c.scan.RSSI)),
		"frequency":     cty.NumberIntVal(int64(c.scan.Frequency)),
		"is_5ghz":       cty.BoolVal(c.scan.Is5GHz()),
		"secure":        cty.BoolVal(c.scan.Secure()),
		"connected":     cty.BoolVal(c.connected),
		"last_selected": cty.BoolVal(c.lastSelected),
	})
}
