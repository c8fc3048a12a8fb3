// Package app wires config, logging, storage, the probe and the reporter
// around one hive and keeps them in step with the config file.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tickmux/internal/config"
	"tickmux/internal/probe"
	"tickmux/internal/report"
	"tickmux/internal/storage"
	"tickmux/pkg/hive"
	logx "tickmux/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	log  logx.Logger
	logs *logx.Service

	store storage.Store
	hive  *hive.Hive
	probe *probe.Probe

	repMu    sync.Mutex
	reporter *report.Reporter

	notify Notifier

	cancel context.CancelFunc
	g      *errgroup.Group
	gctx   context.Context
}

// Option customizes NewApp.
type Option func(*App)

// WithNotifier replaces the systemd notifier.
func WithNotifier(n Notifier) Option {
	return func(a *App) { a.notify = n }
}

// NewApp loads and validates the config at cfgPath and builds every
// component. Nothing runs until Start.
func NewApp(cfgPath string, h *hive.Hive, opts ...Option) (*App, error) {
	if h == nil {
		return nil, errors.New("app: nil hive")
	}
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.NewService(mapLogConfig(cfg))
	a := &App{
		cfgm:   cfgm,
		log:    log.With(logx.Component("app")),
		logs:   logSvc,
		hive:   h,
		notify: systemdNotifier{},
	}
	for _, o := range opts {
		o(a)
	}

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.Component("storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	lostEvery, _ := config.ParseDurationOrDefault("hive.lost_tick_log_every", cfg.Hive.LostTickLogEvery, 10*time.Second)
	h.SetLogger(log.With(logx.Component("hive")))
	h.SetLostTickLogEvery(lostEvery)
	a.probe = probe.New(h, probe.Options{
		Log:   log.With(logx.Component("probe")),
		Store: a.store,
	})
	if err := a.swapReporter(context.Background(), cfg.Report); err != nil {
		a.closeStores()
		return nil, err
	}
	return a, nil
}

// validate is the check applied to the initial config and to every reload.
func validate(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if _, err := report.ParseSchedule(cfg.Report.Schedule); err != nil {
		return err
	}
	if tz := strings.TrimSpace(cfg.Report.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("report.timezone: invalid %q: %w", tz, err)
		}
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return nil
}

func (a *App) Hive() *hive.Hive { return a.hive }

func (a *App) Probe() *probe.Probe { return a.probe }

// Store returns the run history, nil when storage is disabled.
func (a *App) Store() storage.Store { return a.store }

// Done is closed once the background goroutines have been asked to stop.
func (a *App) Done() <-chan struct{} {
	if a.gctx == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.gctx.Done()
}

// Start activates the hive with the loaded config, then follows the config
// file until ctx is done or Stop is called.
func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()
	a.cfgm.SetLogger(a.log.With(logx.Component("config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if _, err := a.probe.Apply(ctx, cfg.Hive); err != nil {
		return fmt.Errorf("start hive: %w", err)
	}
	a.startReporter(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.g, a.gctx = errgroup.WithContext(runCtx)

	sub := a.cfgm.Subscribe(8)
	a.g.Go(func() error { return a.cfgm.Watch(a.gctx) })
	a.g.Go(func() error {
		defer a.cfgm.Unsubscribe(sub)
		return a.reloadLoop(a.gctx, sub)
	})

	a.sdNotify(sdReady)
	a.log.Info("tickmux started", logx.String("config", a.cfgm.Path()), logx.Tick(a.hive.Tick()))
	return nil
}

// Stop shuts everything down in reverse order and records the last run.
// A reload in progress is allowed to finish first.
func (a *App) Stop(ctx context.Context) error {
	start := time.Now()

	var err error
	if a.cancel != nil {
		a.cancel()
		err = a.g.Wait()
	}
	a.sdNotify(sdStopping)
	a.repMu.Lock()
	if a.reporter != nil {
		a.reporter.Stop(ctx)
	}
	a.repMu.Unlock()
	if perr := a.probe.Stop(ctx); perr != nil && err == nil {
		err = perr
	}
	a.log.Info("tickmux stopped", logx.Duration("took", time.Since(start)))
	a.closeStores()
	return err
}

func (a *App) closeStores() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	_ = a.logs.Close()
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) error {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case newCfg, ok := <-sub:
			if !ok {
				return nil
			}
			// keep only the newest of a burst
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			if newCfg == nil {
				continue
			}
			a.apply(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// apply moves the running components from oldCfg to newCfg. A rejected hive
// section leaves the previous run active.
func (a *App) apply(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs, groups := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.sdNotify(sdReloading)
	defer a.sdNotify(sdReady)

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config change summary", fields...)

	if slices.Contains(sections, "logging") {
		a.logs.Apply(mapLogConfig(newCfg))
	}
	if slices.Contains(sections, "storage") {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if slices.Contains(sections, "hive") {
		every, _ := config.ParseDurationOrDefault("hive.lost_tick_log_every", newCfg.Hive.LostTickLogEvery, 10*time.Second)
		a.hive.SetLostTickLogEvery(every)
		tick, err := a.probe.Apply(ctx, newCfg.Hive)
		if err != nil {
			a.log.Error("hive reload failed", logx.Err(err))
		} else {
			a.log.Info("hive reloaded", logx.Tick(tick), logx.Any("groups", groups))
		}
	}
	if slices.Contains(sections, "report") {
		if err := a.swapReporter(ctx, newCfg.Report); err != nil {
			a.log.Warn("invalid report config; keeping previous", logx.Err(err))
		} else {
			a.startReporter(ctx)
		}
	}
}

// swapReporter replaces the reporter (stopped) according to cfg. A disabled
// report section leaves no reporter.
func (a *App) swapReporter(ctx context.Context, cfg config.ReportConfig) error {
	var next *report.Reporter
	if cfg.Enabled {
		r, err := report.New(report.Config{Schedule: cfg.Schedule, Timezone: cfg.Timezone},
			a.probe, a.store, a.log.With(logx.Component("report")))
		if err != nil {
			return err
		}
		next = r
	}

	a.repMu.Lock()
	prev := a.reporter
	a.reporter = next
	a.repMu.Unlock()
	if prev != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		prev.Stop(stopCtx)
		cancel()
	}
	return nil
}

func (a *App) startReporter(ctx context.Context) {
	a.repMu.Lock()
	defer a.repMu.Unlock()
	if a.reporter != nil {
		a.reporter.Start(ctx)
	}
}
