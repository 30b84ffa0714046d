package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleetrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	d, err := loadDefaults(writeConfig(t, "forks: 20\nconnect_timeout: 5s\nno_color: true\n"))
	require.NoError(t, err)
	assert.Equal(t, 20, d.Forks)
	assert.Equal(t, "5s", d.ConnectTimeout)
	assert.True(t, d.NoColor)
}

func TestLoadDefaultsMissingFile(t *testing.T) {
	_, err := loadDefaults(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadDefaultsBadYAML(t *testing.T) {
	_, err := loadDefaults(writeConfig(t, "forks: [\n"))
	assert.Error(t, err)
}

func TestApplyDefaultsRespectsExplicitFlags(t *testing.T) {
	t.Cleanup(func() { forks = 0 })
	require.NoError(t, rootCmd.Flags().Set("forks", "3"))
	forks = 3

	require.NoError(t, applyDefaults(rootCmd, &defaults{Forks: 50}))
	assert.Equal(t, 3, forks, "explicit flag wins over config file")
}

func TestApplyDefaultsFillsUnsetFlags(t *testing.T) {
	t.Cleanup(func() {
		connectTimeout = 0
		noColor = false
	})
	require.NoError(t, applyDefaults(rootCmd, &defaults{ConnectTimeout: "5s", NoColor: true}))
	assert.Equal(t, 5*time.Second, connectTimeout)
	assert.True(t, noColor)
}

func TestApplyDefaultsBadDuration(t *testing.T) {
	assert.Error(t, applyDefaults(rootCmd, &defaults{ConnectTimeout: "soon"}))
}
