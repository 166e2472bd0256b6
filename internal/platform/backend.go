// Package platform abstracts the OS window system. The coordinator owns no
// window pixels; it references OS window resources through the Window
// interface and drives them through fire-and-forget primitives, matching the
// way the underlying window protocols behave. Failed OS calls are logged by
// the backend, never surfaced to callers.
package platform

// Rect is a window position and size in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// EventKind discriminates window lifecycle events.
type EventKind int

const (
	// EventLoadFinished fires when the hosted content finished loading.
	EventLoadFinished EventKind = iota
	// EventLoadFailed fires when a content load failed (network or file).
	EventLoadFailed
	EventMaximize
	EventUnmaximize
	EventFocus
	EventBlur
	// EventDestroyed fires when the OS reports the window gone.
	EventDestroyed
	// EventNavigate fires when hosted content (including an embedded
	// sub-view) attempts to open a new top-level destination. The backend
	// always denies the default action; the URL travels in the event.
	EventNavigate
	// EventContentCrashed reports a crashed content process.
	EventContentCrashed
	// EventDeviceChange carries a raw device hot-plug notification.
	EventDeviceChange
)

// String returns the channel-friendly name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventLoadFinished:
		return "load-finished"
	case EventLoadFailed:
		return "load-failed"
	case EventMaximize:
		return "maximize"
	case EventUnmaximize:
		return "unmaximize"
	case EventFocus:
		return "focus"
	case EventBlur:
		return "blur"
	case EventDestroyed:
		return "destroyed"
	case EventNavigate:
		return "navigate"
	case EventContentCrashed:
		return "content-crashed"
	case EventDeviceChange:
		return "device-change"
	default:
		return "unknown"
	}
}

// Event is a window lifecycle notification. Events are delivered on a
// backend goroutine; subscribers hand them to the run loop themselves.
type Event struct {
	Kind EventKind
	URL  string // EventNavigate: the denied destination
	Err  error  // EventLoadFailed
	Raw  []byte // EventDeviceChange: verbatim platform payload
}

// EventFunc receives window events.
type EventFunc func(Event)

// StateQuery selects one boolean-valued OS window state.
type StateQuery string

const (
	QueryMaximized   StateQuery = "maximized"
	QueryMinimized   StateQuery = "minimized"
	QueryFullscreen  StateQuery = "fullscreen"
	QueryAlwaysOnTop StateQuery = "alwaysontop"
	QueryVisible     StateQuery = "visible"
	QueryFocused     StateQuery = "focused"
	QueryModal       StateQuery = "modal"
)

// CreateOptions are fully resolved creation options as produced by the
// geometry assembler. Unlike config.Options there is nothing optional left.
type CreateOptions struct {
	Title  string
	Bounds Rect

	MinWidth  int
	MinHeight int
	MaxWidth  int
	MaxHeight int

	Resizable       bool
	Modal           bool
	Show            bool
	AlwaysOnTop     bool
	BackgroundColor string

	// Privileged bridge surface settings for the hosted content.
	Isolation          bool
	AllowCodeExecution bool
	DevTools           bool
}

// Window is an OS-level window resource. All mutators are asynchronous with
// respect to the OS; state queries reflect the last known OS state.
type Window interface {
	// Subscribe attaches the lifecycle event callback. At most one
	// subscriber is supported; the lifecycle binder owns it.
	Subscribe(fn EventFunc)

	Bounds() Rect
	SetBounds(r Rect)
	SetTitle(title string)
	SetMinSize(width, height int)
	SetMaxSize(width, height int)
	SetResizable(resizable bool)
	SetAlwaysOnTop(onTop bool, level string)
	SetBackgroundColor(color string)

	Show()
	Hide()
	Close()
	Focus()
	Minimize()
	Maximize()
	Unmaximize()
	Restore()

	// Load publishes a content locator to the hosted view. The call
	// returns before content finishes loading; completion or failure is
	// reported through events.
	Load(url string)
	Reload()

	Query(q StateQuery) bool
}

// Backend is the OS window system entry point.
type Backend interface {
	Name() string
	Connect() error
	Close() error

	CreateWindow(opts CreateOptions) (Window, error)

	// WorkArea returns the primary display's work area.
	WorkArea() (Rect, error)

	// GrabReloadKey installs a transient override suppressing the reload
	// accelerator; UngrabReloadKey removes it.
	GrabReloadKey() error
	UngrabReloadKey()

	// OSVersion reports the host OS version string for the environment
	// descriptor.
	OSVersion() string
}
