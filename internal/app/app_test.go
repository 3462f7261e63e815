package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/netrec/internal/client"
	"github.com/specialistvlad/netrec/internal/config"
	"github.com/specialistvlad/netrec/internal/dispatcher"
	"github.com/specialistvlad/netrec/internal/hcl_adapter"
	"github.com/specialistvlad/netrec/internal/provider"
	"github.com/specialistvlad/netrec/internal/recommendation"
	"github.com/specialistvlad/netrec/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestApp writes hclSrc into a temp dir and builds an App from it.
func newTestApp(t *testing.T, hclSrc string) (*App, *testutil.SafeBuffer) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "netrec.hcl")
	require.NoError(t, os.WriteFile(path, []byte(hclSrc), 0o600))

	logs := &testutil.SafeBuffer{}
	a := NewApp(logs, &Config{ConfigPaths: []string{path}, LogLevel: "debug", LogFormat: "text"}, hcl_adapter.NewLoader())

	t.Cleanup(func() {
		if os.Getenv("NETREC_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
	return a, logs
}

// startApp runs a until the test ends and waits for the listener.
func startApp(t *testing.T, a *App) (baseURL string, stop func() error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	select {
	case <-a.Ready():
	case err := <-runErr:
		cancel()
		t.Fatalf("app exited before listening: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("app did not start listening")
	}

	var stopped bool
	stop = func() error {
		if stopped {
			return nil
		}
		stopped = true
		cancel()
		select {
		case err := <-runErr:
			return err
		case <-time.After(10 * time.Second):
			return fmt.Errorf("app did not stop")
		}
	}
	t.Cleanup(func() { _ = stop() })

	return "http://" + a.Addr().String(), stop
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestNewApp_PanicsOnBrokenConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`provider {`), 0o600))

	assert.Panics(t, func() {
		NewApp(io.Discard, &Config{ConfigPaths: []string{path}}, hcl_adapter.NewLoader())
	})
}

func TestNewApp_ListenOverride(t *testing.T) {
	t.Parallel()

	a := NewApp(io.Discard, &Config{Listen: "127.0.0.1:0"}, hcl_adapter.NewLoader())

	assert.Equal(t, "127.0.0.1:0", a.Config().Transport.Listen)
	assert.Equal(t, "request_recommendation", a.Config().Transport.Event, "defaults apply without config files")
}

func TestNewConfig_RejectsBadListen(t *testing.T) {
	t.Parallel()

	_, err := NewConfig(Config{Listen: "8080"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid listen address")

	cfg, err := NewConfig(Config{Listen: ":8080"})
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
}

func TestRun_ServesRecommendations(t *testing.T) {
	t.Parallel()
	if testing.Short() {
		t.Skip("starts a real server")
	}

	// --- Arrange ---
	a, logs := newTestApp(t, `
transport "socketio" {
  listen = "127.0.0.1:0"
}

scoring {
  exclude_ssids = ["guest"]
  score         = network.rssi + (network.is_5ghz ? 20 : 0)
}
`)
	baseURL, stop := startApp(t, a)
	ctx, _ := testutil.Context(t)

	c, err := client.Dial(ctx, baseURL+"/socket.io/", client.Options{DialTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer c.Close()

	req := recommendation.Request{
		ScanResults: []recommendation.ScanResult{
			{SSID: "guest", BSSID: "cc:01", RSSI: -20, Frequency: 2412},
			{SSID: "home", BSSID: "aa:02", RSSI: -50, Frequency: 2437},
			{SSID: "home", BSSID: "aa:01", RSSI: -60, Frequency: 5180},
		},
		ConnectableConfigs: []recommendation.WifiConfig{
			{NetworkID: 1, SSID: "home"},
			{NetworkID: 2, SSID: "guest"},
		},
	}

	// --- Act ---
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := c.Request(reqCtx, req)

	// --- Assert ---
	require.NoError(t, err)
	require.False(t, res.Empty())
	assert.Equal(t, recommendation.WifiConfig{NetworkID: 1, SSID: "home", BSSID: "aa:01"}, *res.WifiConfig)

	status, body := get(t, baseURL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK\n", body)

	// The delivery is counted after the ack has been sent.
	assert.Eventually(t, func() bool {
		status, body := get(t, baseURL+"/metrics")
		return status == http.StatusOK &&
			strings.Contains(body, "netrec_requests_submitted_total 1") &&
			strings.Contains(body, `netrec_deliveries_total{outcome="ok"} 1`)
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, stop())
	assert.Contains(t, logs.String(), "Recommendation provider listening.")
	assert.Contains(t, logs.String(), "Draining queued requests...")
}

func TestRun_DrainDeliversQueuedRequests(t *testing.T) {
	t.Parallel()
	if testing.Short() {
		t.Skip("starts a real server")
	}

	// --- Arrange ---
	a, logs := newTestApp(t, `
transport "socketio" {
  listen = "127.0.0.1:0"
}
`)
	gate := make(chan struct{})
	entered := make(chan string, 4)
	a.newEvaluator = func(config.Scoring) (provider.Evaluator, error) {
		return dispatcher.EvaluatorFunc[recommendation.Request, recommendation.Result](
			func(_ context.Context, req recommendation.Request) (recommendation.Result, error) {
				ssid := req.ScanResults[0].SSID
				entered <- ssid
				<-gate
				return recommendation.Result{WifiConfig: &recommendation.WifiConfig{NetworkID: 1, SSID: ssid}}, nil
			}), nil
	}
	baseURL, stop := startApp(t, a)
	ctx, _ := testutil.Context(t)

	type outcome struct {
		res recommendation.Result
		err error
	}
	request := func(ssid string) <-chan outcome {
		c, err := client.Dial(ctx, baseURL+"/socket.io/", client.Options{DialTimeout: 5 * time.Second})
		require.NoError(t, err)
		t.Cleanup(c.Close)

		done := make(chan outcome, 1)
		go func() {
			reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			res, err := c.Request(reqCtx, recommendation.Request{
				ScanResults: []recommendation.ScanResult{{SSID: ssid, BSSID: "aa:01", RSSI: -50, Frequency: 2412}},
			})
			done <- outcome{res: res, err: err}
		}()
		return done
	}

	first := request("first")
	select {
	case ssid := <-entered:
		require.Equal(t, "first", ssid)
	case <-time.After(5 * time.Second):
		t.Fatal("first request was not evaluated")
	}
	second := request("second")
	require.Eventually(t, func() bool {
		_, body := get(t, baseURL+"/metrics")
		return strings.Contains(body, "netrec_requests_submitted_total 2")
	}, 5*time.Second, 20*time.Millisecond, "second request should be queued")

	// --- Act ---
	stopErr := make(chan error, 1)
	go func() { stopErr <- stop() }()
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "Draining queued requests...")
	}, 5*time.Second, 10*time.Millisecond)
	close(gate)

	// --- Assert ---
	for name, done := range map[string]<-chan outcome{"first": first, "second": second} {
		select {
		case got := <-done:
			require.NoError(t, got.err, name)
			require.NotNil(t, got.res.WifiConfig, name)
			assert.Equal(t, name, got.res.WifiConfig.SSID)
		case <-time.After(10 * time.Second):
			t.Fatalf("%s request got no reply during shutdown", name)
		}
	}
	require.NoError(t, <-stopErr)
	assert.NotContains(t, logs.String(), "Failed to deliver recommendation result.")
}

func TestRun_MetricsDisabled(t *testing.T) {
	t.Parallel()

	a, _ := newTestApp(t, `
transport "socketio" {
  listen = "127.0.0.1:0"
}

metrics {
  enabled = false
}
`)
	baseURL, stop := startApp(t, a)

	status, _ := get(t, baseURL+"/metrics")
	assert.Equal(t, http.StatusNotFound, status)
	require.NoError(t, stop())
}

func TestRun_StartupFailures(t *testing.T) {
	t.Parallel()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { busy.Close() })

	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name: "address in use",
			src: fmt.Sprintf(`
transport "socketio" {
  listen = %q
}
`, busy.Addr().String()),
			wantErr: "failed to listen",
		},
		{
			name: "non numeric score",
			src: `
scoring {
  score = network.ssid
}
`,
			wantErr: "failed to build scorer",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, _ := newTestApp(t, tc.src)

			err := a.Run(context.Background())

			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.wantErr), err.Error())
		})
	}
}
