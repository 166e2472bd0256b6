package router

import (
	"encoding/json"

	"github.com/mullionhq/mullion/internal/config"
	"github.com/mullionhq/mullion/internal/platform"
)

// Channel catalogue. Each name follows exactly one contract: notify
// (fire-and-forget), invoke (request/response), or echo-back.
const (
	ChannelWindowNew          = "window-new"          // invoke
	ChannelWindowFunc         = "window-func"         // notify
	ChannelWindowStatus       = "window-status"       // invoke
	ChannelWindowUpdate       = "window-update"       // notify
	ChannelWindowMaxMinSize   = "window-max-min-size" // notify
	ChannelWindowSizeSet      = "window-size-set"     // notify
	ChannelWindowMinSizeSet   = "window-min-size-set" // notify
	ChannelWindowMaxSizeSet   = "window-max-size-set" // notify
	ChannelWindowBgColorSet   = "window-bg-color-set" // notify
	ChannelWindowAlwaysTopSet = "window-always-top-set"
	ChannelWindowMessageSend  = "window-message-send" // echo-back
	ChannelWindowIDGet        = "window-id-get"       // invoke
)

// FuncType is the closed set of lifecycle operations dispatched through
// window-func.
type FuncType string

const (
	FuncClose    FuncType = "close"
	FuncHide     FuncType = "hide"
	FuncShow     FuncType = "show"
	FuncMinimize FuncType = "minimize"
	FuncMaximize FuncType = "maximize"
	FuncRestore  FuncType = "restore"
	FuncReload   FuncType = "reload"
)

// funcOps is the explicit dispatch table for window-func; there is no
// dynamic method lookup.
var funcOps = map[FuncType]func(platform.Window){
	FuncClose:    func(w platform.Window) { w.Close() },
	FuncHide:     func(w platform.Window) { w.Hide() },
	FuncShow:     func(w platform.Window) { w.Show() },
	FuncMinimize: func(w platform.Window) { w.Minimize() },
	FuncMaximize: func(w platform.Window) { w.Maximize() },
	FuncRestore:  func(w platform.Window) { w.Restore() },
	FuncReload:   func(w platform.Window) { w.Reload() },
}

// statusQueries maps window-status type tags to OS state queries.
var statusQueries = map[string]platform.StateQuery{
	"maximized":   platform.QueryMaximized,
	"minimized":   platform.QueryMinimized,
	"fullscreen":  platform.QueryFullscreen,
	"alwaysontop": platform.QueryAlwaysOnTop,
	"visible":     platform.QueryVisible,
	"focused":     platform.QueryFocused,
	"modal":       platform.QueryModal,
}

// Payloads

// NewPayload creates a managed window.
type NewPayload struct {
	Config  *config.WindowConfig `json:"config"`
	Options config.Options       `json:"options"`
}

// FuncPayload dispatches a lifecycle operation; a zero ID targets every
// live window.
type FuncPayload struct {
	Type FuncType        `json:"type"`
	ID   int             `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// StatusPayload queries one boolean window state.
type StatusPayload struct {
	Type string `json:"type"`
	ID   int    `json:"id"`
}

// UpdatePayload replaces a window's config wholesale.
type UpdatePayload struct {
	ID int `json:"id"`
	config.WindowConfig
}

// TargetPayload addresses a single window.
type TargetPayload struct {
	ID int `json:"id"`
}

// SizeSetPayload resizes a window.
type SizeSetPayload struct {
	ID        int    `json:"id"`
	Size      [2]int `json:"size"`
	Resizable bool   `json:"resizable"`
	Center    bool   `json:"center"`
}

// LimitSizePayload sets a min or max size; an absent size falls back to the
// primary display work area.
type LimitSizePayload struct {
	ID   int   `json:"id"`
	Size []int `json:"size,omitempty"`
}

// BgColorPayload sets the window background color.
type BgColorPayload struct {
	ID    int    `json:"id"`
	Color string `json:"color"`
}

// AlwaysTopPayload toggles the always-on-top state.
type AlwaysTopPayload struct {
	ID   int    `json:"id"`
	Is   bool   `json:"is"`
	Type string `json:"type,omitempty"`
}

// MessageSendPayload redirects a content message to other windows. The
// request's own fields select the targets: AcceptIDs when set, everyone
// including the sender when IsBack, everyone except the sender otherwise.
type MessageSendPayload struct {
	Channel   string          `json:"channel"`
	ID        int             `json:"id,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	AcceptIDs []int           `json:"acceptIds,omitempty"`
	IsBack    bool            `json:"isback,omitempty"`
}

// IDGetPayload filters live window ids by logical route.
type IDGetPayload struct {
	Route string `json:"route,omitempty"`
}
