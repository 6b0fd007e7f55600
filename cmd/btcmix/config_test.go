package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcmix/coinjoin"
	flags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/require"
)

// TestConfigValidate checks the derived paths and the rejected option
// combinations.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg := defaultConfig()
	cfg.AppDataDir = dir
	require.NoError(t, cfg.validate())
	require.Equal(t, filepath.Join(dir, defaultLogDirname), cfg.LogDir)
	require.Equal(t, filepath.Join(dir, defaultDBFilename), cfg.DBPath)

	selectorCfg := cfg.selectorConfig()
	require.Equal(t, coinjoin.DefaultTrials, selectorCfg.Trials)
	require.Equal(t, coinjoin.DefaultMinCoins, selectorCfg.MinCoins)
	require.Equal(t, coinjoin.DefaultMaxCoins, selectorCfg.MaxCoins)
	require.NotNil(t, selectorCfg.NewRand)

	cfg = defaultConfig()
	cfg.AppDataDir = dir
	cfg.DBBackend = dbBackendPostgres
	require.ErrorContains(t, cfg.validate(), "--pgdsn")

	cfg = defaultConfig()
	cfg.AppDataDir = dir
	cfg.MinCoins = 20
	cfg.MaxCoins = 5
	require.ErrorIs(t, cfg.validate(), coinjoin.ErrInvalidCoinRange)
}

// TestCleanAndExpandPath checks home and environment expansion.
func TestCleanAndExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("BTCMIX_TEST_DIR", "/tmp/btcmix")

	require.Empty(t, cleanAndExpandPath(""))
	require.Equal(t, filepath.Join(home, "data"),
		cleanAndExpandPath("~/data/"))
	require.Equal(t, "/tmp/btcmix/ledger.db",
		cleanAndExpandPath("$BTCMIX_TEST_DIR/./ledger.db"))
}

// TestParseAndSetDebugLevels checks the accepted debug level notations.
func TestParseAndSetDebugLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		wantErr bool
	}{
		{name: "global", level: "debug"},
		{name: "per subsystem", level: "BMIX=trace,LDGR=info"},
		{name: "invalid level", level: "loud", wantErr: true},
		{name: "unknown subsystem", level: "FOO=debug", wantErr: true},
		{name: "missing level", level: "BMIX,LDGR=info", wantErr: true},
		{name: "invalid subsystem level", level: "BMIX=loud",
			wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := parseAndSetDebugLevels(tc.level)
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
		})
	}

	require.NoError(t, parseAndSetDebugLevels(defaultLogLevel))
}

// TestLoadConfig runs a command through the full configuration process.
func TestLoadConfig(t *testing.T) {
	t.Cleanup(closeLogRotator)

	dir := t.TempDir()
	ctx := context.Background()

	// Without a config file the defaults apply.
	err := loadConfig(ctx, []string{
		"-A", dir, "history", "--wallet", "alice",
	})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, defaultDBFilename))
	require.DirExists(t, filepath.Join(dir, defaultLogDirname))

	// Options of the config file are validated.
	conf := "[Application Options]\nmincoins=20\nmaxcoins=5\n"
	err = os.WriteFile(
		filepath.Join(dir, defaultConfigFilename), []byte(conf), 0600,
	)
	require.NoError(t, err)

	err = loadConfig(ctx, []string{
		"-A", dir, "history", "--wallet", "alice",
	})
	require.ErrorIs(t, err, coinjoin.ErrInvalidCoinRange)

	// Command line options take precedence.
	err = loadConfig(ctx, []string{
		"-A", dir, "--maxcoins", "30", "history", "--wallet", "alice",
	})
	require.NoError(t, err)

	// A config file given explicitly must exist.
	err = loadConfig(ctx, []string{
		"-C", filepath.Join(dir, "missing.conf"), "history",
		"--wallet", "alice",
	})
	require.ErrorContains(t, err, "error parsing config file")

	// Help is reported as a flags error.
	err = loadConfig(ctx, []string{"-h"})
	var flagsErr *flags.Error
	require.ErrorAs(t, err, &flagsErr)
	require.Equal(t, flags.ErrHelp, flagsErr.Type)

	// A command is required.
	err = loadConfig(ctx, []string{"-A", dir})
	require.Error(t, err)
}
