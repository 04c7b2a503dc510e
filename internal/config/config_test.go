package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "otp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	c, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
dir: /srv/otp
minimumFreeGB: 2
logLevel: debug
workers: 3
cipherfile: out.bin
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Dir:           "/srv/otp",
		MinimumFreeGB: 2,
		LogLevel:      "debug",
		Workers:       3,
		PlainFile:     "plainfile",
		CipherFile:    "out.bin",
	}, c)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "dri: typo\n"))
	assert.Error(t, err)
}

func TestLoadRejectsNegativeWorkers(t *testing.T) {
	_, err := Load(writeConfig(t, "workers: -1\n"))
	assert.Error(t, err)
}
