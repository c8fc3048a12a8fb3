// Package probe turns the hive section of the config into live groups of
// counting callbacks and measures how faithfully the hive fires them.
package probe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"tickmux/internal/config"
	"tickmux/internal/storage"
	"tickmux/pkg/hive"
	logx "tickmux/pkg/logx"
)

// counter is a callback that counts its invocations.
type counter struct {
	n atomic.Uint64
}

func (c *counter) Fire() { c.n.Add(1) }

type probeGroup struct {
	group     *hive.Group
	callbacks []*counter
}

func (pg *probeGroup) calls() uint64 {
	var total uint64
	for _, c := range pg.callbacks {
		total += c.n.Load()
	}
	return total
}

// Options configures a Probe. Zero values pick defaults.
type Options struct {
	Clock clockwork.Clock
	Log   logx.Logger
	Store storage.Store
}

// Probe drives one hive. Every Apply starts a new run with a fresh run id.
type Probe struct {
	hive  *hive.Hive
	clock clockwork.Clock
	log   logx.Logger
	store storage.Store

	mu     sync.Mutex
	runID  string
	groups map[string]*probeGroup
}

func New(h *hive.Hive, opts Options) *Probe {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log.IsZero() {
		opts.Log = logx.Nop()
	}
	return &Probe{
		hive:   h,
		clock:  opts.Clock,
		log:    opts.Log,
		store:  opts.Store,
		groups: map[string]*probeGroup{},
	}
}

// buildGroups creates one hive group per configured group, each holding
// Callbacks counters (at least one).
func buildGroups(cfg config.HiveConfig) (map[string]*probeGroup, error) {
	out := make(map[string]*probeGroup, len(cfg.Groups))
	for i, gc := range cfg.Groups {
		name := strings.TrimSpace(gc.Name)
		if name == "" {
			return nil, fmt.Errorf("hive.groups[%d].name: must not be blank", i)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("hive.groups[%d]: duplicate group %q", i, name)
		}
		periodMS, err := config.ParsePeriodMS(fmt.Sprintf("hive.groups[%d].period", i), gc.Period)
		if err != nil {
			return nil, err
		}
		g, err := hive.NewNamedGroup(name, periodMS)
		if err != nil {
			return nil, err
		}
		n := gc.Callbacks
		if n <= 0 {
			n = 1
		}
		pg := &probeGroup{group: g, callbacks: make([]*counter, n)}
		for j := range pg.callbacks {
			pg.callbacks[j] = &counter{}
			g.AddCallbackFunction(pg.callbacks[j])
		}
		out[g.Name()] = pg
	}
	return out, nil
}

// Apply replaces the running configuration: the current run (if any) is
// recorded and stopped, the registry is rebuilt from cfg and the hive is
// started again. It returns the new tick.
func (p *Probe) Apply(ctx context.Context, cfg config.HiveConfig) (time.Duration, error) {
	groups, err := buildGroups(cfg)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.stopLocked(ctx); err != nil {
		return 0, err
	}
	if err := p.hive.Clear(); err != nil {
		return 0, err
	}
	for _, pg := range groups {
		if err := p.hive.Add(pg.group); err != nil {
			return 0, err
		}
	}
	p.groups = groups
	tick, err := p.hive.Start()
	if err != nil {
		return 0, err
	}
	p.runID = uuid.NewString()
	p.log.Info("probe run started",
		logx.Run(p.runID),
		logx.Tick(tick),
		logx.Int("groups", len(groups)),
	)
	return tick, nil
}

// Stop records the final snapshot of the current run and stops the hive.
// It is a no-op when nothing is running.
func (p *Probe) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked(ctx)
}

func (p *Probe) stopLocked(ctx context.Context) error {
	if !p.hive.Running() {
		return nil
	}
	if err := p.hive.Stop(); err != nil {
		return err
	}
	rec := p.snapshotLocked(storage.EventStop)
	p.log.Info("probe run stopped",
		logx.Run(rec.RunID),
		logx.Uint64("ticks", rec.Ticks),
		logx.Uint64("lost_ticks", rec.LostTicks),
	)
	if p.store != nil {
		if err := p.store.AppendRun(ctx, rec); err != nil {
			p.log.Warn("run history append failed", logx.Run(rec.RunID), logx.Err(err))
		}
	}
	return nil
}

// RunID returns the id of the current or last run, empty before the first.
func (p *Probe) RunID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runID
}

// Snapshot returns the current run's counters. ok is false when the hive is
// not running.
func (p *Probe) Snapshot() (rec storage.RunRecord, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hive.Running() {
		return storage.RunRecord{}, false
	}
	return p.snapshotLocked(storage.EventReport), true
}

func (p *Probe) snapshotLocked(event string) storage.RunRecord {
	st := p.hive.Stats()
	now := p.clock.Now()
	rec := storage.RunRecord{
		RunID:     p.runID,
		At:        now,
		Event:     event,
		Tick:      st.Tick,
		Ticks:     st.Ticks,
		LostTicks: st.LostTicks,
		Groups:    make([]storage.GroupRecord, 0, len(st.Groups)),
	}
	if !st.StartedAt.IsZero() {
		rec.Uptime = now.Sub(st.StartedAt)
	}
	for _, gs := range st.Groups {
		gr := storage.GroupRecord{
			Name:      gs.Name,
			PeriodMS:  uint64(gs.Period.Milliseconds()),
			Callbacks: gs.Callbacks,
			Fired:     gs.Fired,
		}
		if gs.Every > 0 {
			gr.Expected = st.Ticks / gs.Every
		}
		if pg, ok := p.groups[gs.Name]; ok {
			gr.Calls = pg.calls()
		}
		rec.Groups = append(rec.Groups, gr)
	}
	sortGroups(rec.Groups)
	return rec
}

// sortGroups orders records by period, then name.
func sortGroups(gs []storage.GroupRecord) {
	sort.Slice(gs, func(i, j int) bool {
		if gs[i].PeriodMS != gs[j].PeriodMS {
			return gs[i].PeriodMS < gs[j].PeriodMS
		}
		return gs[i].Name < gs[j].Name
	})
}
