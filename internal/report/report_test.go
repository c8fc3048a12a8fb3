package report

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickmux/internal/storage"
	logx "tickmux/pkg/logx"
)

type fakeSource struct {
	calls atomic.Int64
	rec   storage.RunRecord
	ok    bool
}

func (s *fakeSource) Snapshot() (storage.RunRecord, bool) {
	s.calls.Add(1)
	return s.rec, s.ok
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func openStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "runs")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	for _, spec := range []string{"", "@every 1s", "@hourly", "*/5 * * * *", "30 */5 * * * *"} {
		_, err := ParseSchedule(spec)
		assert.NoError(t, err, spec)
	}
	for _, spec := range []string{"soon", "* * *", "@every nope"} {
		_, err := ParseSchedule(spec)
		assert.Error(t, err, spec)
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{}, nil, nil, logx.Nop())
	assert.Error(t, err)

	_, err = New(Config{Timezone: "Mars/Olympus"}, &fakeSource{}, nil, logx.Nop())
	assert.Error(t, err)

	r, err := New(Config{Timezone: "UTC"}, &fakeSource{}, nil, logx.Logger{})
	require.NoError(t, err)
	assert.Equal(t, "UTC", r.loc.String())
}

func TestReportAppendsAndWarns(t *testing.T) {
	var buf syncBuffer
	log := logx.New(zerolog.New(&buf))
	st := openStore(t)

	src := &fakeSource{ok: true, rec: storage.RunRecord{
		RunID: "run-1",
		Event: storage.EventReport,
		Tick:  10 * time.Millisecond,
		Ticks: 100,
		Groups: []storage.GroupRecord{
			{Name: "ok", PeriodMS: 10, Expected: 100, Fired: 99},
			{Name: "late", PeriodMS: 20, Expected: 50, Fired: 40},
		},
	}}
	r, err := New(Config{}, src, st, log)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Report(ctx))

	runs, err := st.ListRuns(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, uint64(100), runs[0].Ticks)

	out := buf.String()
	assert.Contains(t, out, `"group":"late"`)
	assert.NotContains(t, out, `"group":"ok"`)
	assert.Contains(t, out, `"lagging":1`)

	src.ok = false
	require.NoError(t, r.Report(ctx))
	runs, err = st.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStartRunsOnSchedule(t *testing.T) {
	src := &fakeSource{ok: true, rec: storage.RunRecord{RunID: "r"}}
	r, err := New(Config{Schedule: "@every 1s"}, src, nil, logx.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	r.Start(ctx)
	r.Start(ctx)
	require.Eventually(t, func() bool { return src.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	r.Stop(stopCtx)
	r.Stop(stopCtx)

	n := src.calls.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, n, src.calls.Load())
}

func TestCronLoggerFields(t *testing.T) {
	var buf syncBuffer
	l := cronLogger{log: logx.New(zerolog.New(&buf).Level(zerolog.DebugLevel))}
	l.Info("schedule", "entry", 1, "dangling")
	l.Error(assert.AnError, "panic", "job", "x")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"entry":1`)
	assert.Contains(t, lines[1], `"job":"x"`)
	assert.Contains(t, lines[1], `cron: panic`)
}
