package scorer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/netrec/internal/config"
	"github.com/specialistvlad/netrec/internal/recommendation"
	"github.com/specialistvlad/netrec/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustExpr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())
	return expr
}

func intPtr(v int) *int { return &v }

var (
	home5  = recommendation.ScanResult{SSID: "home", BSSID: "aa:01", RSSI: -65, Frequency: 5180, Capabilities: "[WPA2-PSK]"}
	home24 = recommendation.ScanResult{SSID: "home", BSSID: "aa:02", RSSI: -50, Frequency: 2437, Capabilities: "[WPA2-PSK]"}
	cafe   = recommendation.ScanResult{SSID: "cafe", BSSID: "bb:01", RSSI: -40, Frequency: 2412, Capabilities: "[ESS]"}
	guest  = recommendation.ScanResult{SSID: "guest", BSSID: "cc:01", RSSI: -30, Frequency: 2412}
)

func TestScorer_DefaultScorePicksStrongestSignal(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)

	s, err := New(config.Scoring{})
	require.NoError(t, err)

	res, err := s.Evaluate(ctx, recommendation.Request{ScanResults: []recommendation.ScanResult{home5, home24, cafe}})

	require.NoError(t, err)
	want := &recommendation.WifiConfig{NetworkID: recommendation.NoNetworkID, SSID: "cafe", BSSID: "bb:01"}
	if diff := cmp.Diff(want, res.WifiConfig); diff != "" {
		t.Errorf("unexpected recommendation (-want +got):\n%s", diff)
	}
}

func TestScorer_OnlyConnectableNetworksAreCandidates(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)

	s, err := New(config.Scoring{})
	require.NoError(t, err)

	res, err := s.Evaluate(ctx, recommendation.Request{
		ScanResults:        []recommendation.ScanResult{home5, home24, cafe},
		ConnectableConfigs: []recommendation.WifiConfig{{NetworkID: 3, SSID: "home"}},
	})

	require.NoError(t, err)
	want := &recommendation.WifiConfig{NetworkID: 3, SSID: "home", BSSID: "aa:02"}
	if diff := cmp.Diff(want, res.WifiConfig); diff != "" {
		t.Errorf("unexpected recommendation (-want +got):\n%s", diff)
	}
}

func TestScorer_CustomExpression(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)

	// --- Arrange ---
	// A 5 GHz bonus of 20 outweighs the 15 dB gap to the 2.4 GHz radio.
	s, err := New(config.Scoring{
		Score: mustExpr(t, `network.rssi + (network.is_5ghz ? 20 : 0) + (network.secure ? 0 : -100)`),
	})
	require.NoError(t, err)

	// --- Act ---
	res, err := s.Evaluate(ctx, recommendation.Request{ScanResults: []recommendation.ScanResult{cafe, home24, home5}})

	// --- Assert ---
	require.NoError(t, err)
	require.False(t, res.Empty())
	assert.Equal(t, "aa:01", res.WifiConfig.BSSID)
}

func TestScorer_ConnectedAndLastSelectedAttributes(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)

	s, err := New(config.Scoring{
		Score: mustExpr(t, `(network.connected ? 100 : 0) + (network.last_selected ? 1000 : 0)`),
	})
	require.NoError(t, err)
	req := recommendation.Request{
		ScanResults: []recommendation.ScanResult{home24, cafe},
		ConnectableConfigs: []recommendation.WifiConfig{
			{NetworkID: 1, SSID: "home"},
			{NetworkID: 2, SSID: "cafe"},
		},
		ConnectedConfig: &recommendation.WifiConfig{NetworkID: 1, SSID: "home"},
	}

	res, err := s.Evaluate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.WifiConfig.NetworkID, "connected network wins")

	req.LastSelectedNetworkID = 2
	res, err = s.Evaluate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, res.WifiConfig.NetworkID, "last selected network wins")
}

func TestScorer_FiltersAndFallback(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)

	fallback := &recommendation.WifiConfig{NetworkID: 9, SSID: "fallback"}

	testCases := []struct {
		name string
		cfg  config.Scoring
		req  recommendation.Request
		want *recommendation.WifiConfig
	}{
		{
			name: "excluded ssid is skipped",
			cfg:  config.Scoring{ExcludeSSIDs: []string{"guest"}},
			req:  recommendation.Request{ScanResults: []recommendation.ScanResult{guest, cafe}},
			want: &recommendation.WifiConfig{NetworkID: -1, SSID: "cafe", BSSID: "bb:01"},
		},
		{
			name: "weak signal is skipped",
			cfg:  config.Scoring{MinRSSI: intPtr(-60)},
			req:  recommendation.Request{ScanResults: []recommendation.ScanResult{home5}, DefaultConfig: fallback},
			want: fallback,
		},
		{
			name: "no scan results without default",
			cfg:  config.Scoring{},
			req:  recommendation.Request{},
			want: nil,
		},
		{
			name: "ties keep scan order",
			cfg:  config.Scoring{Score: nil},
			req: recommendation.Request{ScanResults: []recommendation.ScanResult{
				{SSID: "a", RSSI: -50}, {SSID: "b", RSSI: -50},
			}},
			want: &recommendation.WifiConfig{NetworkID: -1, SSID: "a"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(tc.cfg)
			require.NoError(t, err)

			res, err := s.Evaluate(ctx, tc.req)

			require.NoError(t, err)
			assert.Equal(t, tc.want, res.WifiConfig)
		})
	}
}

func TestNew_RejectsBadExpressions(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{name: "unknown variable", src: `var.bonus + network.rssi`, wantErr: `unknown variable "var.bonus"`},
		{name: "unknown function", src: `floor(network.rssi)`, wantErr: `unknown function "floor"`},
		{name: "unknown attribute", src: `network.noise`, wantErr: "invalid score expression"},
		{name: "string result", src: `network.ssid`, wantErr: "must evaluate to a number"},
		{name: "bool result", src: `network.secure`, wantErr: "must evaluate to a number"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, err := New(config.Scoring{Score: mustExpr(t, tc.src)})

			require.Error(t, err)
			assert.Nil(t, s)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNew_AllowsStdlibFunctions(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)

	s, err := New(config.Scoring{
		Score: mustExpr(t, `max(network.rssi, -70) - abs(min(0, network.rssi)) + strlen(lower(upper(network.ssid)))`),
	})
	require.NoError(t, err)

	res, err := s.Evaluate(ctx, recommendation.Request{ScanResults: []recommendation.ScanResult{cafe}})
	require.NoError(t, err)
	assert.Equal(t, "cafe", res.WifiConfig.SSID)
}
