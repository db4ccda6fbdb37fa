package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetupHome points HOME at a fresh temp directory and returns it. It uses
// t.Setenv, so callers must not run in parallel.
func SetupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

// WriteConfigFile writes name into the attotool configuration directory
// under home.
func WriteConfigFile(t *testing.T, home, name, content string) string {
	t.Helper()
	return WriteTestFile(t, home, filepath.Join(".config", "attotool", name), content)
}

// WriteTestFile writes content to a file under base, creating parent
// directories as needed, and returns the full path.
func WriteTestFile(t *testing.T, base, relativePath, content string) string {
	t.Helper()
	fullPath := filepath.Join(base, relativePath)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	return fullPath
}

// Chdir changes the working directory for the rest of the test. Tests
// using it must not run in parallel.
func Chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(prev)
	})
}
