package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestManagerLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickmux.yaml")
	writeConfig(t, path, sampleYAML)

	m := NewManager(path)
	assert.Nil(t, m.Get())

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())
	assert.Equal(t, path, m.Path())

	_, err = NewManager(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPublishKeepsNewest(t *testing.T) {
	m := NewManager("unused.json")
	ch := m.Subscribe(1)

	first, second := &Config{}, &Config{}
	m.publish(first)
	m.publish(second)

	require.Len(t, ch, 1)
	assert.Same(t, second, <-ch)

	m.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)

	// unknown and nil channels are ignored
	m.Unsubscribe(nil)
	m.Unsubscribe(make(chan *Config))
	m.publish(first)
}

func TestReloadSkipsUnchangedAndRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickmux.json")
	writeConfig(t, path, `{"hive":{"groups":[{"name":"a","period":"10ms"}]}}`)

	m := NewManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(4)

	ctx := context.Background()
	assert.False(t, m.reload(ctx), "unchanged content must not publish")

	writeConfig(t, path, `{"hive":{"groups":[{"name":"a","period":"20ms"}]}}`)
	m.SetValidator(func(context.Context, *Config) error { return errors.New("nope") })
	assert.False(t, m.reload(ctx))
	assert.Equal(t, "10ms", m.Get().Hive.Groups[0].Period)

	m.SetValidator(func(_ context.Context, cfg *Config) error { return Validate(cfg) })
	assert.True(t, m.reload(ctx))
	assert.Equal(t, "20ms", m.Get().Hive.Groups[0].Period)
	require.Len(t, ch, 1)

	writeConfig(t, path, `{not json`)
	assert.False(t, m.reload(ctx))
}

func TestWatchPublishesChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickmux.yaml")
	writeConfig(t, path, "hive:\n  groups:\n    - {name: a, period: 10ms}\n")

	m := NewManager(path)
	m.debounce = 10 * time.Millisecond
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// the watcher may not be registered yet; keep rewriting until it notices
	var got *Config
	require.Eventually(t, func() bool {
		writeConfig(t, path, "hive:\n  groups:\n    - {name: a, period: 30ms}\n")
		select {
		case got = <-ch:
			return true
		default:
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, "30ms", got.Hive.Groups[0].Period)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
