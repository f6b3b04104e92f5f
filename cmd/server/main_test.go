package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetConfigString(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("session:\n  max_retry_attempts: 5\n"), 0o644))

	tests := []struct {
		name       string
		configFile string
		configBody string
		expected   string
	}{
		{"nothing set", "", "", ""},
		{"body only", "", "server:\n  port: 8000\n", "server:\n  port: 8000\n"},
		{"body wins over file", configFile, "server:\n  port: 8000\n", "server:\n  port: 8000\n"},
		{"file", configFile, "", "session:\n  max_retry_attempts: 5\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			configBody, err := getConfigString(test.configFile, test.configBody)
			require.NoError(t, err)
			require.Equal(t, test.expected, configBody)
		})
	}
}

func TestShouldReturnErrorIfConfigFileDoesNotExist(t *testing.T) {
	configBody, err := getConfigString(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.Error(t, err)
	require.Empty(t, configBody)
}
