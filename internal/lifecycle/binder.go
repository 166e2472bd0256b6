// Package lifecycle wires per-window OS events to content processes:
// outbound event forwarding, navigation interception and raw device-change
// relay. Binding happens once per window, right after registration.
package lifecycle

import (
	"github.com/mullionhq/mullion/internal/config"
	"github.com/mullionhq/mullion/internal/logger"
	"github.com/mullionhq/mullion/internal/platform"
	"github.com/mullionhq/mullion/internal/registry"
	"github.com/mullionhq/mullion/internal/runloop"
	"github.com/rs/zerolog"
)

// Outbound channels, one per forwarded event.
const (
	ChannelLoaded       = "window-loaded"
	ChannelMaximize     = "window-maximize"
	ChannelUnmaximize   = "window-unmaximize"
	ChannelBlur         = "window-blur"
	ChannelFocus        = "window-focus"
	ChannelDeviceChange = "window-device-change"
)

// Sender delivers outbound messages to one window's content process.
type Sender interface {
	Send(id int, channel string, payload any)
	DropWindow(id int)
}

// Creator issues a managed window creation request; used when intercepted
// navigation re-routes into a new child window.
type Creator interface {
	CreateWindow(cfg *config.WindowConfig, opts config.Options) (int, error)
}

// Binder subscribes to each window's OS events and translates them into
// bridge messages and registry updates.
type Binder struct {
	reg     *registry.Registry
	backend platform.Backend
	sender  Sender
	creator Creator
	loop    *runloop.Loop
	log     *zerolog.Logger

	// onAllClosed fires after the last live window deregisters. The
	// coordinator decides whether that terminates the process.
	onAllClosed func()
}

// New creates a binder. onAllClosed may be nil.
func New(reg *registry.Registry, backend platform.Backend, sender Sender, creator Creator, loop *runloop.Loop, onAllClosed func()) *Binder {
	return &Binder{
		reg:         reg,
		backend:     backend,
		sender:      sender,
		creator:     creator,
		loop:        loop,
		onAllClosed: onAllClosed,
		log:         logger.WithComponent("lifecycle"),
	}
}

// Bind subscribes to the entry's OS events. The subscription callback runs
// on the backend's event goroutine; each event is posted to the run loop
// before any shared state is touched.
func (b *Binder) Bind(e *registry.Entry) {
	id := e.ID
	e.Window.Subscribe(func(ev platform.Event) {
		b.loop.Post(func() {
			b.HandleEvent(id, ev)
		})
	})
}

// HandleEvent processes one OS event for window id. Must run on the run
// loop. Exposed so tests and the coordinator can inject events directly.
func (b *Binder) HandleEvent(id int, ev platform.Event) {
	e := b.reg.Get(id)
	if e == nil && ev.Kind != platform.EventDestroyed {
		// The handle already deregistered; late events are dropped.
		return
	}

	switch ev.Kind {
	case platform.EventLoadFinished:
		b.sender.Send(id, ChannelLoaded, e.Config)

	case platform.EventLoadFailed:
		// The window stays open with no content; never retried.
		b.log.Error().Err(ev.Err).Int("window", id).Msg("Content load failed")

	case platform.EventMaximize:
		b.sender.Send(id, ChannelMaximize, nil)

	case platform.EventUnmaximize:
		b.sender.Send(id, ChannelUnmaximize, nil)

	case platform.EventFocus:
		b.sender.Send(id, ChannelFocus, nil)
		if err := b.backend.GrabReloadKey(); err != nil {
			b.log.Warn().Err(err).Msg("Reload accelerator grab failed")
		}

	case platform.EventBlur:
		b.sender.Send(id, ChannelBlur, nil)
		b.backend.UngrabReloadKey()

	case platform.EventNavigate:
		b.handleNavigate(e, ev.URL)

	case platform.EventContentCrashed:
		b.log.Error().Err(ev.Err).Int("window", id).Msg("Content process crashed")

	case platform.EventDeviceChange:
		b.sender.Send(id, ChannelDeviceChange, ev.Raw)

	case platform.EventDestroyed:
		b.handleDestroyed(id)
	}
}

// handleNavigate turns a denied top-level navigation into a managed child
// window carrying the target destination.
func (b *Binder) handleNavigate(e *registry.Entry, url string) {
	b.log.Debug().Int("window", e.ID).Str("url", url).Msg("Navigation intercepted")

	cfg := &config.WindowConfig{URL: url, ParentID: e.ID}
	if e.Config != nil {
		cfg.Title = e.Config.Title
	}
	if _, err := b.creator.CreateWindow(cfg, config.Options{}); err != nil {
		b.log.Error().Err(err).Int("parent", e.ID).Msg("Navigation window creation failed")
	}
}

func (b *Binder) handleDestroyed(id int) {
	b.reg.Deregister(id)
	b.sender.DropWindow(id)

	if b.reg.Count() == 0 && b.onAllClosed != nil {
		b.onAllClosed()
	}
}
