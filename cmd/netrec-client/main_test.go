package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specialistvlad/netrec/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRequest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "scan_results": [{"ssid": "home", "bssid": "aa:01", "rssi": -50, "frequency": 5180}],
  "last_selected_network_id": 3
}`), 0o600))

	req, err := readRequest(path, nil)

	require.NoError(t, err)
	require.Len(t, req.ScanResults, 1)
	assert.Equal(t, "home", req.ScanResults[0].SSID)
	assert.Equal(t, 3, req.LastSelectedNetworkID)
}

func TestReadRequest_Stdin(t *testing.T) {
	t.Parallel()

	req, err := readRequest("-", strings.NewReader(`{"scan_results": []}`))

	require.NoError(t, err)
	assert.Empty(t, req.ScanResults)
}

func TestReadRequest_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := readRequest("-", strings.NewReader(`{"scans": []}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode request")
}

func TestRun_FlagErrors(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), nil, &bytes.Buffer{}, &bytes.Buffer{}, []string{"-timeout", "0s"})

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestRun_Help(t *testing.T) {
	t.Parallel()
	stderr := &bytes.Buffer{}

	err := run(context.Background(), nil, &bytes.Buffer{}, stderr, []string{"-h"})

	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "-request")
}

func TestRun_BadURL(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), strings.NewReader(`{}`), &bytes.Buffer{}, &bytes.Buffer{}, []string{"-url", "not a url"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse URL")
}
