package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-sync/pkg/types"
)

// Default() returns a Config that already passes Validate on its own.
func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, types.ModeLazy, cfg.RequestMode())
}

// Load merges a partial YAML file over Default() rather than zeroing out
// omitted fields.
func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	const partial = "repository:\n  block_request_mode: greedy\n"
	require.NoError(t, os.WriteFile(path, []byte(partial), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "greedy", cfg.Repository.BlockRequestMode)
	require.Equal(t, types.ModeGreedy, cfg.RequestMode())
	// Untouched sections keep their defaults.
	require.Equal(t, Default().Network, cfg.Network)
	require.Equal(t, Default().Repository.DataDir, cfg.Repository.DataDir)
}

// Load surfaces a read error for a missing file rather than silently
// falling back to defaults.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

// Validate rejects an unrecognized block_request_mode.
func TestValidateRejectsBadRequestMode(t *testing.T) {
	cfg := Default()
	cfg.Repository.BlockRequestMode = "eager"
	require.Error(t, cfg.Validate())
}

// Validate rejects an empty data directory and an empty listen-address
// list.
func TestValidateRejectsEmptyRequiredFields(t *testing.T) {
	cfg := Default()
	cfg.Repository.DataDir = ""
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Network.ListenAddresses = nil
	require.Error(t, cfg.Validate())
}

// ToLogConfig carries the level and JSON-output flag through unchanged.
func TestLoggingConfigToLogConfig(t *testing.T) {
	lc := LoggingConfig{Level: "debug", JSON: true}
	out := lc.ToLogConfig()
	require.Equal(t, "debug", string(out.Level))
	require.True(t, out.JSONOutput)
}
