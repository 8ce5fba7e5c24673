package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warden.yaml")
	writeConfig(t, path, "hosts:\n  editor:\n    paste_delay_ms: 10\n")

	w, err := Watch(path, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	reloaded := make(chan Config, 1)
	w.Subscribe(func(cfg Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	writeConfig(t, path, "hosts:\n  editor:\n    paste_delay_ms: 75\n")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 75, cfg.ProfileFor("editor").PasteDelayMs)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatchKeepsLastGoodOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "warden.yaml")
	writeConfig(t, path, "hosts:\n  editor:\n    paste_delay_ms: 10\n")

	w, err := Watch(path, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	reloaded := make(chan Config, 4)
	w.Subscribe(func(cfg Config) { reloaded <- cfg })

	writeConfig(t, path, "hosts: [broken\n")
	writeConfig(t, path, "hosts:\n  editor:\n    paste_delay_ms: 20\n")

	// Only the valid write produces a notification.
	select {
	case cfg := <-reloaded:
		assert.Equal(t, 20, cfg.ProfileFor("editor").PasteDelayMs)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatchRejectsMissingFile(t *testing.T) {
	_, err := Watch(filepath.Join(t.TempDir(), "absent.yaml"), zap.NewNop())
	assert.Error(t, err)
}
