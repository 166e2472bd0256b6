package config

import "encoding/json"

// SecondInstanceMode selects how a second launch of the application is handled
type SecondInstanceMode string

const (
	// SecondInstanceFocusMain raises and focuses the current main window
	SecondInstanceFocusMain SecondInstanceMode = "focus-main"
	// SecondInstanceSpawnWindow creates a new window seeded with the default
	// window configuration plus the second launch's arguments
	SecondInstanceSpawnWindow SecondInstanceMode = "spawn-window"
)

// WindowConfig is the per-window metadata kept by the registry. It is
// replaceable wholesale via the window-update channel.
type WindowConfig struct {
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Content locator: a URL or a logical route. At least one is required
	// at creation time.
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
	Route string `json:"route,omitempty" yaml:"route,omitempty"`

	// LoadOptions are passed through to the content load (query string,
	// extra headers and the like); the coordinator does not interpret them.
	LoadOptions map[string]string `json:"loadOptions,omitempty" yaml:"load_options,omitempty"`

	// ParentID names at most one ancestor. Zero means no parent.
	ParentID int `json:"parentId,omitempty" yaml:"parent_id,omitempty"`

	IsOneWindow bool `json:"isOneWindow,omitempty" yaml:"is_one_window,omitempty"`
	IsMainWin   bool `json:"isMainWin,omitempty" yaml:"is_main_win,omitempty"`

	ProcessArgs []string `json:"processArgs,omitempty" yaml:"process_args,omitempty"`

	// Data is opaque caller data echoed back to the content process.
	Data json.RawMessage `json:"data,omitempty" yaml:"-"`

	// Fields below are captured from the anchor window at creation time
	// and never recomputed afterwards.
	AnchorWidth     int  `json:"anchorWidth,omitempty" yaml:"-"`
	AnchorHeight    int  `json:"anchorHeight,omitempty" yaml:"-"`
	AnchorMaximized bool `json:"anchorMaximized,omitempty" yaml:"-"`
}

// HasContent reports whether the config names anything to load.
func (c *WindowConfig) HasContent() bool {
	return c != nil && (c.URL != "" || c.Route != "")
}

// Clone returns a deep copy of the config.
func (c *WindowConfig) Clone() *WindowConfig {
	if c == nil {
		return nil
	}
	out := *c
	if c.LoadOptions != nil {
		out.LoadOptions = make(map[string]string, len(c.LoadOptions))
		for k, v := range c.LoadOptions {
			out.LoadOptions[k] = v
		}
	}
	if c.ProcessArgs != nil {
		out.ProcessArgs = append([]string(nil), c.ProcessArgs...)
	}
	if c.Data != nil {
		out.Data = append(json.RawMessage(nil), c.Data...)
	}
	return &out
}

// BridgePrefs are the security-relevant settings of the privileged bridge
// surface. Nil pointers mean "not set by the caller" and receive defaults
// from the geometry assembler.
type BridgePrefs struct {
	Isolation          *bool `json:"isolation,omitempty" yaml:"isolation,omitempty"`
	AllowCodeExecution *bool `json:"allowCodeExecution,omitempty" yaml:"allow_code_execution,omitempty"`
	DevTools           *bool `json:"devTools,omitempty" yaml:"dev_tools,omitempty"`
}

// Options are the raw window creation options before the geometry assembler
// finalizes them. X and Y are pointers so "unset" is distinguishable from 0.
type Options struct {
	Width  int  `json:"width,omitempty" yaml:"width,omitempty"`
	Height int  `json:"height,omitempty" yaml:"height,omitempty"`
	X      *int `json:"x,omitempty" yaml:"x,omitempty"`
	Y      *int `json:"y,omitempty" yaml:"y,omitempty"`

	MinWidth  int `json:"minWidth,omitempty" yaml:"min_width,omitempty"`
	MinHeight int `json:"minHeight,omitempty" yaml:"min_height,omitempty"`
	MaxWidth  int `json:"maxWidth,omitempty" yaml:"max_width,omitempty"`
	MaxHeight int `json:"maxHeight,omitempty" yaml:"max_height,omitempty"`

	Resizable       *bool  `json:"resizable,omitempty" yaml:"resizable,omitempty"`
	Modal           bool   `json:"modal,omitempty" yaml:"modal,omitempty"`
	Show            *bool  `json:"show,omitempty" yaml:"show,omitempty"`
	AlwaysOnTop     bool   `json:"alwaysOnTop,omitempty" yaml:"always_on_top,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty" yaml:"background_color,omitempty"`

	Bridge BridgePrefs `json:"bridge,omitempty" yaml:"bridge,omitempty"`
}

// Clone returns a deep copy of the options.
func (o Options) Clone() Options {
	out := o
	out.X = clonePtr(o.X)
	out.Y = clonePtr(o.Y)
	out.Resizable = clonePtr(o.Resizable)
	out.Show = clonePtr(o.Show)
	out.Bridge.Isolation = clonePtr(o.Bridge.Isolation)
	out.Bridge.AllowCodeExecution = clonePtr(o.Bridge.AllowCodeExecution)
	out.Bridge.DevTools = clonePtr(o.Bridge.DevTools)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Bool is a convenience for building optional flags in literals.
func Bool(v bool) *bool { return &v }

// Int is a convenience for building optional coordinates in literals.
func Int(v int) *int { return &v }

// Config is the application configuration.
type Config struct {
	ServerPort int    `json:"server_port" yaml:"server_port"`
	LogLevel   string `json:"log_level" yaml:"log_level"`

	// Production disables developer tools defaults on the bridge surface.
	Production bool `json:"production" yaml:"production"`

	SecondInstance SecondInstanceMode `json:"second_instance" yaml:"second_instance"`

	// DefaultWindow and DefaultOptions seed windows created for second
	// launches (spawn-window mode) and the initial window.
	DefaultWindow  *WindowConfig `json:"default_window" yaml:"default_window"`
	DefaultOptions *Options      `json:"default_options" yaml:"default_options"`
}
