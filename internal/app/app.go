// Package app wires the playback controller to its config files, host
// hooks, health checks and status snapshot.
package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/afero"

	"github.com/zsiec/theater/internal/config"
	"github.com/zsiec/theater/internal/errors"
	"github.com/zsiec/theater/internal/health"
	"github.com/zsiec/theater/internal/lifecycle"
	"github.com/zsiec/theater/internal/logger"
	"github.com/zsiec/theater/internal/media"
	"github.com/zsiec/theater/internal/playback"
	"github.com/zsiec/theater/internal/tick"
	"github.com/zsiec/theater/internal/videoconfig"
)

const (
	taskConfigReload tick.Kind = "config_reload"

	commandQueueSize = 32
)

// Host is what the embedding game provides.
type Host struct {
	Backend media.Backend
	Audio   lifecycle.AudioResolver
	Preview lifecycle.PreviewPlayer
	// GPUVendor selects hints in playback error messages.
	GPUVendor string
}

type Options struct {
	Fs  afero.Fs
	Now func() time.Time
	// WatchConfigs enables the fsnotify watcher. It needs a real filesystem.
	WatchConfigs bool
}

// App owns the engine. Tick, and every hub publish, must happen on one
// goroutine; Status and the command methods are safe from any goroutine.
type App struct {
	cfg    *config.Config
	logger logger.Logger

	loader     *videoconfig.Loader
	watcher    *videoconfig.Watcher
	hub        *lifecycle.Hub
	controller *playback.Controller
	sched      *tick.Scheduler
	health     *health.Manager
	tickCheck  *health.TickChecker

	commands     chan func()
	watchedLevel string

	mu        sync.RWMutex
	status    playback.Status
	hasStatus bool
}

func New(ctx context.Context, cfg *config.Config, l logger.Logger, host Host, opts Options) (*App, error) {
	if l == nil {
		l = logger.NewNullLogger()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	l = logger.WithComponent(l, "app")

	loader := videoconfig.NewLoader(opts.Fs, &cfg.Plugin, videoconfig.NewCache(), l)
	hub := lifecycle.NewHub()

	controller := playback.New(ctx, playback.Deps{
		Backend:   host.Backend,
		Configs:   loader,
		Audio:     host.Audio,
		Preview:   host.Preview,
		Sync:      &cfg.Sync,
		Plugin:    &cfg.Plugin,
		Logger:    l,
		Now:       opts.Now,
		GPUVendor: host.GPUVendor,
	})
	controller.Attach(hub)

	a := &App{
		cfg:        cfg,
		logger:     l,
		loader:     loader,
		hub:        hub,
		controller: controller,
		sched:      tick.NewScheduler(ctx, l),
		health:     health.NewManager(l),
		tickCheck:  health.NewTickChecker(tickDeadline(cfg.Simulation.TickRate)),
		commands:   make(chan func(), commandQueueSize),
	}

	if opts.WatchConfigs {
		w, err := videoconfig.NewWatcher(loader, l)
		if err != nil {
			controller.Close()
			return nil, errors.WrapInternalError(err, "failed to create config watcher")
		}
		a.watcher = w
	}

	a.health.Register(a.tickCheck)
	a.health.Register(health.NewVideoDirChecker(opts.Fs, cfg.Plugin.VideoDir))
	return a, nil
}

// tickDeadline is how late a tick may be before the loop counts as
// degraded.
func tickDeadline(rate int) time.Duration {
	if rate <= 0 {
		return time.Second
	}
	return lo.Max([]time.Duration{10 * time.Second / time.Duration(rate), 250 * time.Millisecond})
}

func (a *App) Hub() *lifecycle.Hub { return a.hub }
func (a *App) Controller() *playback.Controller { return a.controller }
func (a *App) Loader() *videoconfig.Loader { return a.loader }
func (a *App) Health() *health.Manager { return a.health }
func (a *App) TickChecker() *health.TickChecker { return a.tickCheck }
func (a *App) Watcher() *videoconfig.Watcher { return a.watcher }

// Run forwards config file events until ctx is done.
func (a *App) Run(ctx context.Context) {
	if a.watcher == nil {
		<-ctx.Done()
		return
	}
	a.watcher.Run(ctx)
}

// Tick runs queued commands, applies config changes, advances the
// controller and records a status snapshot.
func (a *App) Tick(dt time.Duration) {
	a.drainCommands()
	a.drainChanges()
	a.sched.Step(dt)
	a.controller.Tick(dt)
	a.followLevel()
	a.snapshot()
	a.tickCheck.Beat()
}

func (a *App) drainCommands() {
	for {
		select {
		case cmd := <-a.commands:
			a.run(cmd)
		default:
			return
		}
	}
}

func (a *App) run(cmd func()) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.WithField("panic", r).Error("Playback command panicked")
		}
	}()
	cmd()
}

func (a *App) drainChanges() {
	if a.watcher == nil {
		return
	}
	for {
		select {
		case change := <-a.watcher.Changes():
			a.ApplyConfigChange(change)
		default:
			return
		}
	}
}

// SelectLevel is the host's level selection in the menu.
func (a *App) SelectLevel(level lifecycle.Level) {
	a.controller.SetSelectedLevel(mo.Some(level), a.loader.ForLevel(level))
}

// ApplyConfigChange reloads the changed config file, waiting for its writer
// to release it, and hands the result to the controller.
func (a *App) ApplyConfigChange(change videoconfig.Change) {
	a.logger.WithField("path", change.Path).Debug("Reloading video config")
	a.sched.Start(taskConfigReload, a.loader.ReloadTask(change, a.cfg.Plugin.ConfigLockTimeout, a.onConfigLoaded))
}

func (a *App) onConfigLoaded(vc *videoconfig.VideoConfig) {
	if vc != nil {
		if level, ok := a.controller.Level().Get(); ok {
			a.loader.Cache().Add(level.ID, vc)
		}
	}
	a.controller.OnConfigResolved(vc)
}

// followLevel keeps the watcher on the folder of the selected level.
func (a *App) followLevel() {
	level, ok := a.controller.Level().Get()
	if !ok || level.ID == a.watchedLevel {
		return
	}
	a.watchedLevel = level.ID
	if a.watcher == nil {
		return
	}
	if err := a.watcher.Watch(a.loader.LevelDir(level)); err != nil {
		a.logger.WithError(err).WithField("level_id", level.ID).Warn("Failed to watch level directory")
	}
}

func (a *App) snapshot() {
	st := a.controller.Status()
	a.mu.Lock()
	a.status = st
	a.hasStatus = true
	a.mu.Unlock()
}

// Status returns the snapshot of the last tick.
func (a *App) Status() (playback.Status, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status, a.hasStatus
}

// ApplyOffset queues an offset change and saves the config once applied.
func (a *App) ApplyOffset(deltaMs int) error {
	return a.enqueue(func() {
		a.hub.Offset.Publish(deltaMs)
		vc := a.controller.VideoConfig()
		if vc == nil {
			return
		}
		if err := a.loader.Save(vc); err != nil {
			a.logger.WithError(err).Warn("Failed to save video config")
		}
	})
}

func (a *App) TogglePreview() error {
	return a.enqueue(a.controller.TogglePreview)
}

// DeleteConfig queues removal of the selected level's video config. The
// video is unloaded first; the level stays selected without one.
func (a *App) DeleteConfig() error {
	return a.enqueue(func() {
		level, ok := a.controller.Level().Get()
		vc := a.controller.VideoConfig()
		if !ok || vc == nil {
			a.logger.Debug("No video config to delete")
			return
		}
		a.controller.StopAndUnload()
		if err := a.loader.Delete(vc, level); err != nil {
			a.logger.WithError(err).Warn("Failed to delete video config")
			return
		}
		a.controller.OnConfigResolved(nil)
	})
}

func (a *App) enqueue(cmd func()) error {
	select {
	case a.commands <- cmd:
		return nil
	default:
		return errors.New(errors.ErrorTypeTimeout, "playback command queue is full", http.StatusServiceUnavailable)
	}
}

// Close stops the watcher and the controller.
func (a *App) Close() {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close config watcher")
		}
	}
	a.sched.Close()
	a.controller.Close()
}
