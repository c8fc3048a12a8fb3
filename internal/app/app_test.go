package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickmux/internal/storage"
	"tickmux/pkg/hive"
	logx "tickmux/pkg/logx"
)

type recordingNotifier struct {
	mu     sync.Mutex
	states []string
}

func (n *recordingNotifier) Notify(state string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
	return true, nil
}

func (n *recordingNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.states...)
}

const appConfig = `
logging:
  level: error
hive:
  groups:
    - {name: a, period: 20ms}
    - {name: b, period: 30ms, callbacks: 2}
report:
  enabled: true
  schedule: "@every 1s"
storage:
  driver: file
  path: %s
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newTestApp(t *testing.T) (*App, string, *recordingNotifier) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tickmux.yaml")
	writeFile(t, path, fmt.Sprintf(appConfig, filepath.Join(dir, "runs")))

	h := hive.New(hive.WithFatalHandler(func(err error) { t.Errorf("unexpected fatal: %v", err) }))
	t.Cleanup(h.Shutdown)

	n := &recordingNotifier{}
	a, err := NewApp(path, h, WithNotifier(n))
	require.NoError(t, err)
	return a, path, n
}

func TestAppLifecycleAndReload(t *testing.T) {
	a, path, n := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.Start(ctx))
	assert.True(t, a.Hive().Running())
	assert.Equal(t, 10*time.Millisecond, a.Hive().Tick())
	first := a.Probe().RunID()

	reloaded := "hive:\n  groups:\n    - {name: a, period: 40ms}\n    - {name: c, period: 100ms}\n" +
		"logging:\n  level: error\nreport:\n  enabled: false\nstorage:\n  driver: file\n  path: " +
		filepath.Join(filepath.Dir(path), "runs") + "\n"
	writeFile(t, path, reloaded)
	lastWrite := time.Now()
	require.Eventually(t, func() bool {
		if a.Hive().Tick() == 20*time.Millisecond {
			return true
		}
		// every write restarts the reload debounce, so only rewrite when the
		// first one was likely missed by a watcher still being registered
		if time.Since(lastWrite) > time.Second {
			writeFile(t, path, reloaded)
			lastWrite = time.Now()
		}
		return false
	}, 10*time.Second, 50*time.Millisecond)
	assert.NotEqual(t, first, a.Probe().RunID())
	assert.Equal(t, 2, a.Hive().Len())

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(stopCtx))
	assert.False(t, a.Hive().Running())

	select {
	case <-a.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}

	states := n.seen()
	require.NotEmpty(t, states)
	assert.Equal(t, sdReady, states[0])
	assert.Contains(t, states, sdReloading)
	assert.Equal(t, sdStopping, states[len(states)-1])
}

func TestAppRecordsRuns(t *testing.T) {
	a, _, _ := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, a.Start(ctx))
	run := a.Probe().RunID()
	require.Eventually(t, func() bool { return a.Hive().Stats().Ticks >= 3 }, 2*time.Second, 5*time.Millisecond)

	store := a.Store()
	require.NotNil(t, store)
	require.NoError(t, a.Stop(ctx))

	// Stop closes the store; reopen through the same path to inspect it
	runs, err := reopen(t, a).ListRuns(ctx, run, 0)
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	last := runs[len(runs)-1]
	assert.Equal(t, storage.EventStop, last.Event)
	assert.GreaterOrEqual(t, last.Ticks, uint64(3))
}

// reopen opens the run history a stopped app was writing to.
func reopen(t *testing.T, a *App) storage.Store {
	t.Helper()
	sc, enabled, err := mapStorageConfig(a.cfgm.Get())
	require.NoError(t, err)
	require.True(t, enabled)
	st, err := storage.Open(sc, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"no groups", "hive:\n  groups: []\n"},
		{"bad schedule", "hive:\n  groups:\n    - {name: a, period: 10ms}\nreport:\n  enabled: true\n  schedule: sometimes\n"},
		{"bad timezone", "hive:\n  groups:\n    - {name: a, period: 10ms}\nreport:\n  timezone: Nowhere/Land\n"},
		{"unknown field", "hive:\n  groups:\n    - {name: a, period: 10ms}\nextra: 1\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "c.yaml")
			writeFile(t, path, tt.body)
			_, err := NewApp(path, hive.New())
			assert.Error(t, err)
		})
	}

	_, err := NewApp(filepath.Join(t.TempDir(), "missing.yaml"), hive.New())
	assert.Error(t, err)
	_, err = NewApp("unused.yaml", nil)
	assert.Error(t, err)
}
