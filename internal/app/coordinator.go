// Package app owns application lifetime: startup, the single-instance
// contract, second-launch behaviors, and termination. It composes the
// registry, geometry assembler, bridge, router and lifecycle binder around
// one run loop.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/mullionhq/mullion/internal/bridge"
	"github.com/mullionhq/mullion/internal/config"
	"github.com/mullionhq/mullion/internal/devices"
	"github.com/mullionhq/mullion/internal/geometry"
	"github.com/mullionhq/mullion/internal/instance"
	"github.com/mullionhq/mullion/internal/lifecycle"
	"github.com/mullionhq/mullion/internal/logger"
	"github.com/mullionhq/mullion/internal/platform"
	"github.com/mullionhq/mullion/internal/registry"
	"github.com/mullionhq/mullion/internal/router"
	"github.com/mullionhq/mullion/internal/runloop"
	"github.com/rs/zerolog"
)

// State is the coordinator lifecycle phase.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// Coordinator drives the whole application. All state transitions and
// window mutations happen on the run loop.
type Coordinator struct {
	cfg     *config.Config
	backend platform.Backend
	loop    *runloop.Loop
	reg     *registry.Registry
	asm     *geometry.Assembler
	server  *bridge.Server
	router  *router.Router
	binder  *lifecycle.Binder
	watcher *devices.Watcher
	lock    *instance.Lock
	log     *zerolog.Logger

	state State
	goos  string

	// secondInstance marks windows spawned by later launches, surfaced
	// through the environment descriptor.
	secondInstance map[int]bool

	shutdownPosted bool
}

// New composes a coordinator around cfg and backend.
func New(cfg *config.Config, backend platform.Backend) *Coordinator {
	c := &Coordinator{
		cfg:            cfg,
		backend:        backend,
		loop:           runloop.New(),
		reg:            registry.New(),
		goos:           runtime.GOOS,
		secondInstance: make(map[int]bool),
		log:            logger.WithComponent("app"),
	}

	c.asm = geometry.New(c.reg, backend, cfg.Production)
	c.server = bridge.NewServer(c.env)
	c.router = router.New(c.reg, backend, c.server, c)
	c.binder = lifecycle.New(c.reg, backend, c.server, c, c.loop, c.onAllWindowsClosed)

	c.server.SetInbound(func(windowID int, msg bridge.Message) {
		c.loop.Post(func() {
			c.router.Dispatch(windowID, msg)
		})
	})
	return c
}

// SetGOOS overrides the platform policy target. Tests only.
func (c *Coordinator) SetGOOS(goos string) { c.goos = goos }

// Registry exposes the window index for tests and commands.
func (c *Coordinator) Registry() *registry.Registry { return c.reg }

// Loop exposes the run loop so collaborators can post work.
func (c *Coordinator) Loop() *runloop.Loop { return c.loop }

// State returns the current lifecycle phase. Must run on the run loop.
func (c *Coordinator) State() State { return c.state }

// Run starts everything and blocks until termination. When another
// coordinator already holds the instance lock, the argv is handed over and
// Run returns immediately.
func (c *Coordinator) Run() error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sockPath := instance.SocketPath()
	lock, err := instance.Acquire(sockPath, func(args []string) {
		c.loop.Post(func() { c.handleSecondLaunch(args) })
	})
	if err == instance.ErrAlreadyRunning {
		c.log.Info().Msg("Instance already running, handing over")
		return instance.NotifyRunning(sockPath, os.Args[1:])
	}
	if err != nil {
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	c.lock = lock

	if err := c.backend.Connect(); err != nil {
		c.lock.Release()
		return fmt.Errorf("failed to connect %s backend: %w", c.backend.Name(), err)
	}

	if err := c.server.Start(c.cfg.ServerPort); err != nil {
		c.lock.Release()
		return fmt.Errorf("failed to start bridge server: %w", err)
	}

	c.startDeviceWatcher()
	c.handleSignals()

	c.loop.Post(func() {
		c.state = StateRunning
		c.log.Info().Str("state", c.state.String()).Str("backend", c.backend.Name()).Msg("Coordinator running")
		if c.cfg.DefaultWindow != nil {
			opts := config.Options{}
			if c.cfg.DefaultOptions != nil {
				opts = c.cfg.DefaultOptions.Clone()
			}
			if _, err := c.CreateWindow(c.cfg.DefaultWindow.Clone(), opts); err != nil {
				c.log.Error().Err(err).Msg("Initial window creation failed")
			}
		}
	})

	c.loop.Run()
	return nil
}

// CreateWindow runs the managed creation flow and returns the new id. Must
// run on the run loop.
func (c *Coordinator) CreateWindow(cfg *config.WindowConfig, opts config.Options) (int, error) {
	if !cfg.HasContent() {
		return 0, fmt.Errorf("window config names no url or route")
	}

	// A one-window config reuses the live window with the same content
	// instead of opening a duplicate.
	if cfg.IsOneWindow {
		if e := c.findByContent(cfg); e != nil {
			e.Window.Restore()
			e.Window.Focus()
			return e.ID, nil
		}
	}

	placement := c.asm.Assemble(cfg, opts)

	win, err := c.backend.CreateWindow(placement.Options)
	if err != nil {
		return 0, fmt.Errorf("failed to create window: %w", err)
	}

	e := c.reg.Register(win, cfg)

	// Destroying a child returns focus to its parent. One-shot, resolved
	// at link time against the anchor that placement actually used.
	if placement.AnchorIsParent {
		parent := placement.Anchor
		c.reg.OnClosed(e.ID, func() {
			if p := c.reg.Get(parent.ID); p != nil {
				p.Window.Focus()
			}
		})
	}

	c.binder.Bind(e)

	locator := cfg.URL
	if locator == "" {
		locator = cfg.Route
	}
	win.Load(locator)

	c.log.Info().Int("window", e.ID).Str("title", cfg.Title).
		Int("parent", cfg.ParentID).Msg("Window created")
	return e.ID, nil
}

// findByContent returns the live entry loading the same url or route.
func (c *Coordinator) findByContent(cfg *config.WindowConfig) *registry.Entry {
	for _, e := range c.reg.All() {
		if e.Config == nil {
			continue
		}
		if cfg.URL != "" && e.Config.URL == cfg.URL {
			return e
		}
		if cfg.URL == "" && cfg.Route != "" && e.Config.Route == cfg.Route {
			return e
		}
	}
	return nil
}

// handleSecondLaunch applies the configured second-launch behavior. Must
// run on the run loop.
func (c *Coordinator) handleSecondLaunch(args []string) {
	if c.state != StateRunning {
		return
	}

	switch c.cfg.SecondInstance {
	case config.SecondInstanceFocusMain:
		e := c.reg.Main()
		if e == nil {
			c.log.Warn().Msg("Second launch with no live windows")
			return
		}
		e.Window.Restore()
		e.Window.Focus()

	case config.SecondInstanceSpawnWindow:
		cfg := c.cfg.DefaultWindow.Clone()
		cfg.ProcessArgs = args
		id, err := c.CreateWindow(cfg, c.cfg.DefaultOptions.Clone())
		if err != nil {
			c.log.Error().Err(err).Msg("Second-launch window creation failed")
			return
		}
		c.secondInstance[id] = true
	}
}

// onAllWindowsClosed applies the last-window-close policy. Must run on the
// run loop.
func (c *Coordinator) onAllWindowsClosed() {
	if c.goos == "darwin" {
		c.log.Debug().Msg("Last window closed, staying resident")
		return
	}
	c.log.Info().Msg("Last window closed, terminating")
	c.Shutdown()
}

// Shutdown transitions to Terminating, closes every window and stops the
// run loop. Safe to call from any goroutine; the work runs on the loop.
func (c *Coordinator) Shutdown() {
	c.loop.Post(func() {
		if c.shutdownPosted {
			return
		}
		c.shutdownPosted = true
		c.state = StateTerminating
		c.log.Info().Str("state", c.state.String()).Msg("Shutting down")

		for _, e := range c.reg.All() {
			e.Window.Close()
		}

		if c.watcher != nil {
			c.watcher.Close()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.server.Shutdown(ctx)

		if c.lock != nil {
			c.lock.Release()
		}
		if err := c.backend.Close(); err != nil {
			c.log.Warn().Err(err).Msg("Backend close error")
		}
		c.loop.Stop()
	})
}

// env builds the environment descriptor for one window. Invoked on an HTTP
// goroutine; the second-instance flag is read on the loop.
func (c *Coordinator) env(windowID int) bridge.Env {
	eol := "\n"
	if c.goos == "windows" {
		eol = "\r\n"
	}

	second := false
	c.loop.PostWait(func() {
		second = c.secondInstance[windowID]
	})

	return bridge.Env{
		Platform:       c.goos,
		OSVersion:      c.backend.OSVersion(),
		EOL:            eol,
		SecondInstance: second,
	}
}

func (c *Coordinator) startDeviceWatcher() {
	if c.goos != "linux" {
		return
	}
	watcher, err := devices.NewWatcher(func(change devices.Change) {
		c.server.Broadcast(lifecycle.ChannelDeviceChange, change)
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("Device watcher unavailable")
		return
	}
	c.watcher = watcher
}

func (c *Coordinator) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		c.log.Info().Str("signal", sig.String()).Msg("Signal received")
		c.Shutdown()
	}()
}
