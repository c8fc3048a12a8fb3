// Package report periodically logs probe snapshots and appends them to the
// run history.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tickmux/internal/storage"
	logx "tickmux/pkg/logx"
)

const DefaultSchedule = "@every 10s"

// Source provides the snapshot to report. ok is false when there is nothing
// running.
type Source interface {
	Snapshot() (rec storage.RunRecord, ok bool)
}

type Config struct {
	Schedule string // cron expression (seconds optional) or descriptor
	Timezone string // IANA name; empty means local time
}

// Reporter runs one report per schedule activation. Overlapping runs are
// skipped, not queued.
type Reporter struct {
	src   Source
	store storage.Store
	log   logx.Logger

	parser   cron.Parser
	schedule cron.Schedule
	loc      *time.Location

	mu sync.Mutex
	c  *cron.Cron
}

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a report schedule. Empty means DefaultSchedule.
func ParseSchedule(raw string) (cron.Schedule, error) {
	spec := strings.TrimSpace(raw)
	if spec == "" {
		spec = DefaultSchedule
	}
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("report.schedule %q: %w", raw, err)
	}
	return sched, nil
}

// New validates cfg. store may be nil, in which case reports are only logged.
func New(cfg Config, src Source, store storage.Store, log logx.Logger) (*Reporter, error) {
	if src == nil {
		return nil, errors.New("report: nil source")
	}
	sched, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("report.timezone %q: %w", tz, err)
		}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reporter{
		src:      src,
		store:    store,
		log:      log,
		parser:   parser,
		schedule: sched,
		loc:      loc,
	}, nil
}

// Start begins scheduling. Calling Start on a started reporter is a no-op.
func (r *Reporter) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return
	}
	cl := cronLogger{log: r.log}
	r.c = cron.New(
		cron.WithParser(r.parser),
		cron.WithLocation(r.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	r.c.Schedule(r.schedule, cron.FuncJob(func() {
		if err := r.Report(ctx); err != nil {
			r.log.Warn("report failed", logx.Err(err))
		}
	}))
	r.c.Start()
	r.log.Debug("reporter started", logx.String("tz", r.loc.String()))
}

// Stop halts scheduling and waits for a running report to finish or for ctx
// to expire.
func (r *Reporter) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	r.log.Debug("reporter stopped")
}

// Report logs one snapshot and appends it to the store.
func (r *Reporter) Report(ctx context.Context) error {
	rec, ok := r.src.Snapshot()
	if !ok {
		r.log.Debug("report skipped: hive inactive")
		return nil
	}

	var lagging int
	for _, g := range rec.Groups {
		// a firing may be in flight while the snapshot is taken
		if g.Expected > g.Fired+1 {
			lagging++
			r.log.Warn("group behind schedule",
				logx.Run(rec.RunID),
				logx.Group(g.Name),
				logx.Uint64("expected", g.Expected),
				logx.Uint64("fired", g.Fired),
			)
		}
	}
	r.log.Info("hive report",
		logx.Run(rec.RunID),
		logx.Tick(rec.Tick),
		logx.Duration("uptime", rec.Uptime),
		logx.Uint64("ticks", rec.Ticks),
		logx.Uint64("lost_ticks", rec.LostTicks),
		logx.Int("groups", len(rec.Groups)),
		logx.Int("lagging", lagging),
	)

	if r.store == nil {
		return nil
	}
	return r.store.AppendRun(ctx, rec)
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
