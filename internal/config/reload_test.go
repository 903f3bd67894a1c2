package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_ReloadSwapsAndNotifies(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "logLevel: info\n")
	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader, path)
	ch := make(chan AppConfig, 1)
	h.Subscribe(ch)

	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, "debug", h.Get().LogLevel)
	select {
	case cfg := <-ch:
		assert.Equal(t, "debug", cfg.LogLevel)
	default:
		t.Fatal("listener not notified")
	}
}

func TestHolder_ReloadKeepsCurrentOnInvalidFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "logLevel: warn\n")
	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader, path)

	require.NoError(t, os.WriteFile(path, []byte("bogusKey: 1\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, "warn", h.Get().LogLevel)
}

func TestHolder_NotifyDoesNotBlock(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "logLevel: info\n")
	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader, path)
	h.Subscribe(make(chan AppConfig)) // unbuffered, never read

	require.NoError(t, h.Reload(context.Background()))
}

func TestHolder_WatchReloadsOnWrite(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "logLevel: info\n")
	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader, path)
	h.Debounce = 20 * time.Millisecond
	ch := make(chan AppConfig, 4)
	h.Subscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()

	// The watcher registers asynchronously; keep writing until a reload lands.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("logLevel: error\n"), 0o600)
		select {
		case cfg := <-ch:
			return cfg.LogLevel == "error"
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestHolder_WatchWithoutPathWaitsForContext(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", "test"), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, h.Watch(ctx))
}
