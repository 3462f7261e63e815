package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, shouldExit, err := Parse(nil, &bytes.Buffer{})

	require.NoError(t, err)
	assert.False(t, shouldExit)
	assert.Empty(t, cfg.ConfigPaths)
	assert.Empty(t, cfg.Listen)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_ConfigPathsKeepOrder(t *testing.T) {
	t.Parallel()

	cfg, _, err := Parse([]string{"-config", "base.hcl", "-c", "site.yaml", "-listen", "127.0.0.1:9000", "-log-level", "DEBUG", "-log-format", "text", "extra/"}, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Equal(t, []string{"base.hcl", "site.yaml", "extra/"}, cfg.ConfigPaths)
	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestParse_Help(t *testing.T) {
	t.Parallel()
	out := &bytes.Buffer{}

	cfg, shouldExit, err := Parse([]string{"-h"}, out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "-listen")
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{name: "unknown flag", args: []string{"-nope"}, wantMsg: "flag provided but not defined: -nope"},
		{name: "bad log format", args: []string{"-log-format", "xml"}, wantMsg: "invalid log-format"},
		{name: "bad log level", args: []string{"-log-level", "trace"}, wantMsg: "invalid log-level"},
		{name: "bad listen", args: []string{"-listen", "8080"}, wantMsg: "invalid listen address"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg, shouldExit, err := Parse(tc.args, &bytes.Buffer{})

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.False(t, shouldExit)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
		})
	}
}
