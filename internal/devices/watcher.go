// Package devices watches the system bus for storage device hot-plug and
// relays the raw signal payloads to content processes. The payloads are not
// interpreted; the coordinator is a conduit, not a policy layer.
package devices

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/mullionhq/mullion/internal/logger"
	"github.com/rs/zerolog"
)

const (
	udisksSender    = "org.freedesktop.UDisks2"
	udisksPath      = "/org/freedesktop/UDisks2"
	ifaceAdded      = "org.freedesktop.DBus.ObjectManager.InterfacesAdded"
	ifaceRemoved    = "org.freedesktop.DBus.ObjectManager.InterfacesRemoved"
	objectManagerIf = "org.freedesktop.DBus.ObjectManager"
)

// Change is one hot-plug notification, relayed verbatim.
type Change struct {
	Action string `json:"action"` // "added" or "removed"
	Path   string `json:"path"`
	Body   []any  `json:"body,omitempty"`
}

// ChangeFunc receives hot-plug notifications on a watcher goroutine.
type ChangeFunc func(Change)

// Watcher subscribes to UDisks2 ObjectManager signals on the system bus.
type Watcher struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal
	done    chan struct{}
	log     *zerolog.Logger
}

// NewWatcher connects to the system bus and starts relaying hot-plug
// signals to fn. Callers on platforms without a system bus get an error and
// run without device notifications.
func NewWatcher(fn ChangeFunc) (*Watcher, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchSender(udisksSender),
		dbus.WithMatchObjectPath(udisksPath),
		dbus.WithMatchInterface(objectManagerIf),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to add signal match: %w", err)
	}

	w := &Watcher{
		conn:    conn,
		signals: make(chan *dbus.Signal, 16),
		done:    make(chan struct{}),
		log:     logger.WithComponent("devices"),
	}
	conn.Signal(w.signals)

	go w.run(fn)
	w.log.Debug().Msg("Device hot-plug watcher started")
	return w, nil
}

// Close stops the watcher and releases the bus connection.
func (w *Watcher) Close() {
	close(w.done)
	w.conn.RemoveSignal(w.signals)
	w.conn.Close()
}

func (w *Watcher) run(fn ChangeFunc) {
	for {
		select {
		case sig, ok := <-w.signals:
			if !ok {
				return
			}
			change, ok := w.translate(sig)
			if !ok {
				continue
			}
			w.log.Debug().Str("action", change.Action).Str("path", change.Path).Msg("Device change")
			fn(change)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) translate(sig *dbus.Signal) (Change, bool) {
	var action string
	switch sig.Name {
	case ifaceAdded:
		action = "added"
	case ifaceRemoved:
		action = "removed"
	default:
		return Change{}, false
	}

	path := ""
	if len(sig.Body) > 0 {
		if p, ok := sig.Body[0].(dbus.ObjectPath); ok {
			path = string(p)
		}
	}
	return Change{Action: action, Path: path, Body: sig.Body}, true
}
