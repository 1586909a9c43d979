package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holocene.dev/holod/archiving"
	"holocene.dev/holod/config"
	"holocene.dev/holod/plugin"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.DatabasePath = filepath.Join(dir, "holod.db")
	cfg.ArchiveRoot = filepath.Join(dir, "archives")
	cfg.HTTPAddr = "127.0.0.1:0"
	return cfg
}

func TestIsRunningFalseWithoutPIDFile(t *testing.T) {
	d := New(testConfig(t), "test")
	assert.False(t, d.IsRunning())
}

func TestIsRunningCleansUpStalePIDFile(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg, "test")
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o755))
	// PID 999999 is assumed not to correspond to a live process.
	require.NoError(t, os.WriteFile(d.pidFile, []byte(strconv.Itoa(999999)), 0o644))

	assert.False(t, d.IsRunning())
	_, err := os.Stat(d.pidFile)
	assert.True(t, os.IsNotExist(err))
}

func TestStartWritesPIDFileAndStopRemovesIt(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg, "test")

	err := d.Start([]plugin.Plugin{}, archiving.Providers{MaxAttempts: 10})
	require.NoError(t, err)

	_, err = os.Stat(d.pidFile)
	require.NoError(t, err)
	assert.True(t, d.IsRunning())

	d.Stop()
	_, err = os.Stat(d.pidFile)
	assert.True(t, os.IsNotExist(err))
}

func TestGetStatusReportsNotRunning(t *testing.T) {
	d := New(testConfig(t), "test")
	status := d.GetStatus()
	assert.False(t, status.Running)
}
