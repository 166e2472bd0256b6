// Package router dispatches content process messages onto window
// operations. Every channel is resolved through an explicit table; an
// unknown channel or a dead window id is logged and dropped, never surfaced
// as an error across the process boundary.
package router

import (
	"encoding/json"

	"github.com/mullionhq/mullion/internal/bridge"
	"github.com/mullionhq/mullion/internal/config"
	"github.com/mullionhq/mullion/internal/logger"
	"github.com/mullionhq/mullion/internal/platform"
	"github.com/mullionhq/mullion/internal/registry"
	"github.com/rs/zerolog"
)

// Sender delivers messages back to content processes.
type Sender interface {
	Send(id int, channel string, payload any)
	Reply(id int, requestID uint64, result any, errMsg string)
}

// WindowCreator runs the managed window creation flow. Implemented by the
// app coordinator; the router never creates handles itself.
type WindowCreator interface {
	CreateWindow(cfg *config.WindowConfig, opts config.Options) (int, error)
}

type notifyHandler func(senderID int, payload json.RawMessage)
type invokeHandler func(senderID int, payload json.RawMessage) (any, error)

// Router owns the channel dispatch tables. Dispatch must run on the
// coordinator run loop; the registry is not safe anywhere else.
type Router struct {
	reg     *registry.Registry
	backend platform.Backend
	sender  Sender
	creator WindowCreator
	log     *zerolog.Logger

	notify map[string]notifyHandler
	invoke map[string]invokeHandler
}

// New builds a router with the full channel catalogue wired.
func New(reg *registry.Registry, backend platform.Backend, sender Sender, creator WindowCreator) *Router {
	r := &Router{
		reg:     reg,
		backend: backend,
		sender:  sender,
		creator: creator,
		log:     logger.WithComponent("router"),
	}

	r.notify = map[string]notifyHandler{
		ChannelWindowFunc:         r.handleFunc,
		ChannelWindowUpdate:       r.handleUpdate,
		ChannelWindowMaxMinSize:   r.handleMaxMinSize,
		ChannelWindowSizeSet:      r.handleSizeSet,
		ChannelWindowMinSizeSet:   r.handleMinSizeSet,
		ChannelWindowMaxSizeSet:   r.handleMaxSizeSet,
		ChannelWindowBgColorSet:   r.handleBgColorSet,
		ChannelWindowAlwaysTopSet: r.handleAlwaysTopSet,
		ChannelWindowMessageSend:  r.handleMessageSend,
	}
	r.invoke = map[string]invokeHandler{
		ChannelWindowNew:    r.handleNew,
		ChannelWindowStatus: r.handleStatus,
		ChannelWindowIDGet:  r.handleIDGet,
	}
	return r
}

// Dispatch routes one inbound message. Invoke channels always produce a
// reply for the request id; notify channels never do.
func (r *Router) Dispatch(senderID int, msg bridge.Message) {
	if h, ok := r.invoke[msg.Channel]; ok {
		result, err := h(senderID, msg.Payload)
		if msg.RequestID == 0 {
			// Invoked as fire-and-forget; nothing to answer.
			return
		}
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		r.sender.Reply(senderID, msg.RequestID, result, errMsg)
		return
	}
	if h, ok := r.notify[msg.Channel]; ok {
		h(senderID, msg.Payload)
		return
	}
	r.log.Warn().Str("channel", msg.Channel).Int("window", senderID).Msg("Unknown channel, message dropped")
}

// resolve returns the live entry for id, logging the miss otherwise.
func (r *Router) resolve(channel string, id int) *registry.Entry {
	e := r.reg.Get(id)
	if e == nil {
		r.log.Warn().Str("channel", channel).Int("window", id).Msg("Window id not live, message dropped")
	}
	return e
}

func (r *Router) decode(channel string, raw json.RawMessage, out any) bool {
	if err := json.Unmarshal(raw, out); err != nil {
		r.log.Warn().Err(err).Str("channel", channel).Msg("Malformed payload, message dropped")
		return false
	}
	return true
}

// Invoke handlers

func (r *Router) handleNew(senderID int, raw json.RawMessage) (any, error) {
	var p NewPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Config == nil {
		p.Config = &config.WindowConfig{}
	}
	id, err := r.creator.CreateWindow(p.Config, p.Options)
	if err != nil {
		return nil, err
	}
	return id, nil
}

func (r *Router) handleStatus(senderID int, raw json.RawMessage) (any, error) {
	var p StatusPayload
	if !r.decode(ChannelWindowStatus, raw, &p) {
		return nil, nil
	}
	q, ok := statusQueries[p.Type]
	if !ok {
		r.log.Warn().Str("type", p.Type).Msg("Unknown status query")
		return nil, nil
	}
	e := r.resolve(ChannelWindowStatus, p.ID)
	if e == nil {
		return nil, nil
	}
	return e.Window.Query(q), nil
}

func (r *Router) handleIDGet(senderID int, raw json.RawMessage) (any, error) {
	var p IDGetPayload
	if len(raw) > 0 && !r.decode(ChannelWindowIDGet, raw, &p) {
		return nil, nil
	}
	if p.Route == "" {
		return r.reg.IDs(), nil
	}
	ids := make([]int, 0)
	for _, e := range r.reg.All() {
		if e.Config != nil && e.Config.Route == p.Route {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

// Notify handlers

func (r *Router) handleFunc(senderID int, raw json.RawMessage) {
	var p FuncPayload
	if !r.decode(ChannelWindowFunc, raw, &p) {
		return
	}
	op, ok := funcOps[p.Type]
	if !ok {
		r.log.Warn().Str("type", string(p.Type)).Msg("Unknown window operation")
		return
	}
	if p.ID != 0 {
		if e := r.resolve(ChannelWindowFunc, p.ID); e != nil {
			op(e.Window)
		}
		return
	}
	// No target means every live window. Close mutates the set, so the
	// snapshot from All keeps the walk stable.
	for _, e := range r.reg.All() {
		op(e.Window)
	}
}

func (r *Router) handleUpdate(senderID int, raw json.RawMessage) {
	var p UpdatePayload
	if !r.decode(ChannelWindowUpdate, raw, &p) {
		return
	}
	e := r.resolve(ChannelWindowUpdate, p.ID)
	if e == nil {
		return
	}
	cfg := p.WindowConfig
	r.reg.UpdateConfig(p.ID, &cfg)
	// Title is the one config field with an immediate OS-visible surface.
	e.Window.SetTitle(cfg.Title)
}

func (r *Router) handleMaxMinSize(senderID int, raw json.RawMessage) {
	var p TargetPayload
	if !r.decode(ChannelWindowMaxMinSize, raw, &p) {
		return
	}
	e := r.resolve(ChannelWindowMaxMinSize, p.ID)
	if e == nil {
		return
	}
	if e.Window.Query(platform.QueryMaximized) {
		e.Window.Unmaximize()
	} else {
		e.Window.Maximize()
	}
}

func (r *Router) handleSizeSet(senderID int, raw json.RawMessage) {
	var p SizeSetPayload
	if !r.decode(ChannelWindowSizeSet, raw, &p) {
		return
	}
	e := r.resolve(ChannelWindowSizeSet, p.ID)
	if e == nil {
		return
	}
	w, h := p.Size[0], p.Size[1]
	cur := e.Window.Bounds()
	if w == cur.Width && h == cur.Height {
		return
	}

	// Default placement keeps the visual center fixed; explicit centering
	// recenters in the primary work area instead.
	x := cur.X + floorDiv(cur.Width-w, 2)
	y := cur.Y + floorDiv(cur.Height-h, 2)
	if p.Center {
		if wa, err := r.backend.WorkArea(); err == nil {
			x = floorDiv(wa.Width-w, 2)
			y = floorDiv(wa.Height-h, 2)
		} else {
			r.log.Warn().Err(err).Msg("Work area unavailable, keeping computed coordinates")
		}
	}

	e.Window.SetResizable(p.Resizable)
	e.Window.SetMinSize(w, h)
	e.Window.SetBounds(platform.Rect{X: x, Y: y, Width: w, Height: h})
}

func (r *Router) handleMinSizeSet(senderID int, raw json.RawMessage) {
	var p LimitSizePayload
	if !r.decode(ChannelWindowMinSizeSet, raw, &p) {
		return
	}
	e := r.resolve(ChannelWindowMinSizeSet, p.ID)
	if e == nil {
		return
	}
	w, h, ok := r.limitSize(p.Size)
	if !ok {
		return
	}
	e.Window.SetMinSize(w, h)
}

func (r *Router) handleMaxSizeSet(senderID int, raw json.RawMessage) {
	var p LimitSizePayload
	if !r.decode(ChannelWindowMaxSizeSet, raw, &p) {
		return
	}
	e := r.resolve(ChannelWindowMaxSizeSet, p.ID)
	if e == nil {
		return
	}
	w, h, ok := r.limitSize(p.Size)
	if !ok {
		return
	}
	e.Window.SetMaxSize(w, h)
}

// limitSize resolves a min/max size payload, falling back to the primary
// display work area when no size is given.
func (r *Router) limitSize(size []int) (int, int, bool) {
	if len(size) >= 2 {
		return size[0], size[1], true
	}
	wa, err := r.backend.WorkArea()
	if err != nil {
		r.log.Warn().Err(err).Msg("Work area unavailable, size limit unchanged")
		return 0, 0, false
	}
	return wa.Width, wa.Height, true
}

func (r *Router) handleBgColorSet(senderID int, raw json.RawMessage) {
	var p BgColorPayload
	if !r.decode(ChannelWindowBgColorSet, raw, &p) {
		return
	}
	e := r.resolve(ChannelWindowBgColorSet, p.ID)
	if e == nil {
		return
	}
	e.Window.SetBackgroundColor(p.Color)
}

func (r *Router) handleAlwaysTopSet(senderID int, raw json.RawMessage) {
	var p AlwaysTopPayload
	if !r.decode(ChannelWindowAlwaysTopSet, raw, &p) {
		return
	}
	e := r.resolve(ChannelWindowAlwaysTopSet, p.ID)
	if e == nil {
		return
	}
	e.Window.SetAlwaysOnTop(p.Is, p.Type)
}

func (r *Router) handleMessageSend(senderID int, raw json.RawMessage) {
	var p MessageSendPayload
	if !r.decode(ChannelWindowMessageSend, raw, &p) {
		return
	}
	origin := p.ID
	if origin == 0 {
		origin = senderID
	}
	echo := bridge.EchoChannel(p.Channel)

	var targets []int
	switch {
	case len(p.AcceptIDs) > 0:
		for _, id := range p.AcceptIDs {
			if r.reg.Get(id) == nil {
				r.log.Warn().Str("channel", p.Channel).Int("window", id).Msg("Echo target not live, skipped")
				continue
			}
			targets = append(targets, id)
		}
	case p.IsBack:
		targets = r.reg.IDs()
	default:
		for _, id := range r.reg.IDs() {
			if id != origin {
				targets = append(targets, id)
			}
		}
	}

	for _, id := range targets {
		r.sender.Send(id, echo, p.Value)
	}
}

// floorDiv is integer division rounding toward negative infinity, so that
// recentering stays correct at negative multi-monitor coordinates.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
