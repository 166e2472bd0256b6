package platform

import (
	"fmt"
	"sync"

	"github.com/mullionhq/mullion/internal/logger"
)

// StubBackend is an in-memory window system. It backs unsupported platforms
// and every component test: window state is tracked faithfully (bounds,
// map state, stacking, focus) and events can be injected with Emit.
type StubBackend struct {
	mu        sync.Mutex
	windows   []*StubWindow
	workArea  Rect
	reloadKey bool
	closed    bool
}

// NewStub creates a stub backend with a 1920x1040 primary work area.
func NewStub() *StubBackend {
	return &StubBackend{workArea: Rect{X: 0, Y: 0, Width: 1920, Height: 1040}}
}

func (b *StubBackend) Name() string   { return "stub" }
func (b *StubBackend) Connect() error { return nil }

func (b *StubBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *StubBackend) CreateWindow(opts CreateOptions) (Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("backend closed")
	}
	w := &StubWindow{
		Opts:      opts,
		bounds:    opts.Bounds,
		title:     opts.Title,
		resizable: opts.Resizable,
		visible:   opts.Show,
		onTop:     opts.AlwaysOnTop,
		modal:     opts.Modal,
		minW:      opts.MinWidth,
		minH:      opts.MinHeight,
		maxW:      opts.MaxWidth,
		maxH:      opts.MaxHeight,
	}
	b.windows = append(b.windows, w)
	return w, nil
}

func (b *StubBackend) WorkArea() (Rect, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.workArea, nil
}

// SetWorkArea overrides the primary work area for tests.
func (b *StubBackend) SetWorkArea(r Rect) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.workArea = r
}

func (b *StubBackend) GrabReloadKey() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reloadKey = true
	return nil
}

func (b *StubBackend) UngrabReloadKey() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reloadKey = false
}

// ReloadKeyGrabbed reports whether the reload accelerator is suppressed.
func (b *StubBackend) ReloadKeyGrabbed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reloadKey
}

func (b *StubBackend) OSVersion() string { return "stub 0.0" }

// Windows returns every window created so far, in creation order.
func (b *StubBackend) Windows() []*StubWindow {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*StubWindow(nil), b.windows...)
}

// StubWindow is an in-memory Window.
type StubWindow struct {
	// Opts are the creation options as received, kept for assertions.
	Opts CreateOptions

	mu        sync.Mutex
	fn        EventFunc
	bounds    Rect
	title     string
	bgColor   string
	resizable bool
	visible   bool
	focused   bool
	maximized bool
	minimized bool
	onTop     bool
	modal     bool
	closed    bool
	minW      int
	minH      int
	maxW      int
	maxH      int

	loadedURL  string
	loadCount  int
	resizes    int
	events     []Event
	savedRect  Rect // pre-maximize bounds
}

func (w *StubWindow) Subscribe(fn EventFunc) {
	w.mu.Lock()
	w.fn = fn
	w.mu.Unlock()
}

// Emit injects a lifecycle event, recording it and invoking the subscriber
// the way a real backend would (on the caller's goroutine).
func (w *StubWindow) Emit(ev Event) {
	w.mu.Lock()
	w.events = append(w.events, ev)
	fn := w.fn
	w.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (w *StubWindow) Bounds() Rect {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds
}

func (w *StubWindow) SetBounds(r Rect) {
	w.mu.Lock()
	resized := r.Width != w.bounds.Width || r.Height != w.bounds.Height
	w.bounds = r
	if resized {
		w.resizes++
	}
	w.mu.Unlock()
}

func (w *StubWindow) SetTitle(title string) {
	w.mu.Lock()
	w.title = title
	w.mu.Unlock()
}

func (w *StubWindow) SetMinSize(width, height int) {
	w.mu.Lock()
	w.minW, w.minH = width, height
	w.mu.Unlock()
}

func (w *StubWindow) SetMaxSize(width, height int) {
	w.mu.Lock()
	w.maxW, w.maxH = width, height
	w.mu.Unlock()
}

func (w *StubWindow) SetResizable(resizable bool) {
	w.mu.Lock()
	w.resizable = resizable
	w.mu.Unlock()
}

func (w *StubWindow) SetAlwaysOnTop(onTop bool, level string) {
	w.mu.Lock()
	w.onTop = onTop
	w.mu.Unlock()
}

func (w *StubWindow) SetBackgroundColor(color string) {
	w.mu.Lock()
	w.bgColor = color
	w.mu.Unlock()
}

func (w *StubWindow) Show() {
	w.mu.Lock()
	w.visible = true
	w.minimized = false
	w.mu.Unlock()
}

func (w *StubWindow) Hide() {
	w.mu.Lock()
	w.visible = false
	w.mu.Unlock()
}

func (w *StubWindow) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.visible = false
	w.mu.Unlock()
	w.Emit(Event{Kind: EventDestroyed})
}

func (w *StubWindow) Focus() {
	w.mu.Lock()
	w.focused = true
	w.minimized = false
	w.mu.Unlock()
	w.Emit(Event{Kind: EventFocus})
}

func (w *StubWindow) Minimize() {
	w.mu.Lock()
	w.minimized = true
	w.focused = false
	w.mu.Unlock()
}

func (w *StubWindow) Maximize() {
	w.mu.Lock()
	if w.maximized {
		w.mu.Unlock()
		return
	}
	w.savedRect = w.bounds
	w.maximized = true
	w.mu.Unlock()
	w.Emit(Event{Kind: EventMaximize})
}

func (w *StubWindow) Unmaximize() {
	w.mu.Lock()
	if !w.maximized {
		w.mu.Unlock()
		return
	}
	w.maximized = false
	w.bounds = w.savedRect
	w.mu.Unlock()
	w.Emit(Event{Kind: EventUnmaximize})
}

func (w *StubWindow) Restore() {
	w.mu.Lock()
	w.minimized = false
	w.visible = true
	w.mu.Unlock()
}

func (w *StubWindow) Load(url string) {
	w.mu.Lock()
	w.loadedURL = url
	w.loadCount++
	w.mu.Unlock()
}

func (w *StubWindow) Reload() {
	w.mu.Lock()
	w.loadCount++
	w.mu.Unlock()
}

func (w *StubWindow) Query(q StateQuery) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch q {
	case QueryMaximized:
		return w.maximized
	case QueryMinimized:
		return w.minimized
	case QueryFullscreen:
		return false
	case QueryAlwaysOnTop:
		return w.onTop
	case QueryVisible:
		return w.visible
	case QueryFocused:
		return w.focused
	case QueryModal:
		return w.modal
	default:
		logger.WithComponent("stub").Warn().Str("query", string(q)).Msg("Unknown state query")
		return false
	}
}

// Test accessors.

func (w *StubWindow) Title() string { return w.locked(func() any { return w.title }).(string) }

// LoadedURL returns the last locator passed to Load.
func (w *StubWindow) LoadedURL() string {
	return w.locked(func() any { return w.loadedURL }).(string)
}

// LoadCount counts Load and Reload calls.
func (w *StubWindow) LoadCount() int { return w.locked(func() any { return w.loadCount }).(int) }

// ResizeCount counts SetBounds calls that changed width or height.
func (w *StubWindow) ResizeCount() int { return w.locked(func() any { return w.resizes }).(int) }

// IsClosed reports whether Close was called.
func (w *StubWindow) IsClosed() bool { return w.locked(func() any { return w.closed }).(bool) }

// IsResizable reports the current resizable constraint.
func (w *StubWindow) IsResizable() bool { return w.locked(func() any { return w.resizable }).(bool) }

// MinSize returns the current minimum size constraint.
func (w *StubWindow) MinSize() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.minW, w.minH
}

// MaxSize returns the current maximum size constraint.
func (w *StubWindow) MaxSize() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maxW, w.maxH
}

// BackgroundColor returns the last applied background color.
func (w *StubWindow) BackgroundColor() string {
	return w.locked(func() any { return w.bgColor }).(string)
}

// Events returns every event emitted so far.
func (w *StubWindow) Events() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Event(nil), w.events...)
}

func (w *StubWindow) locked(get func() any) any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return get()
}
