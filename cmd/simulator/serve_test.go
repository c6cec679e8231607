package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/config"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/pset"
)

func TestApplyFlagOverrides_OnlyChangedFlagsOverride(t *testing.T) {
	cmd := serveCmd

	require.NoError(t, cmd.Flags().Set("tcp-port", "7777"))
	require.NoError(t, cmd.Flags().Set("controller-name", "Rig42"))

	cfg := config.Defaults()
	applyFlagOverrides(cmd, &cfg)

	assert.Equal(t, 7777, cfg.TCPPort)
	assert.Equal(t, "Rig42", cfg.ControllerName)
	// Untouched fields keep the defaults' values.
	assert.Equal(t, config.Defaults().HTTPPort, cfg.HTTPPort)
	assert.Equal(t, config.Defaults().BindAddress, cfg.BindAddress)
}

func TestOpenPsetRepository_EmptyPathUsesInMemory(t *testing.T) {
	repo, err := openPsetRepository("")
	require.NoError(t, err)
	_, ok := repo.(*pset.InMemoryRepository)
	assert.True(t, ok)
}

func TestOpenPsetRepository_PathUsesSqlite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "psets.db")
	repo, err := openPsetRepository(dbPath)
	require.NoError(t, err)
	_, ok := repo.(*pset.SqliteRepository)
	assert.True(t, ok)
}
