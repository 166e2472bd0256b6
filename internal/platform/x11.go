//go:build linux

package platform

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
	"github.com/mullionhq/mullion/internal/logger"
	"golang.org/x/sys/unix"
)

// Property carrying the content locator for the hosted view, and the
// property the view acks load completion on.
const (
	contentProp      = "_MULLION_CONTENT"
	contentStateProp = "_MULLION_CONTENT_STATE"
)

// X11Backend implements Backend on top of an X server via xgb/xgbutil.
type X11Backend struct {
	xu   *xgbutil.XUtil
	root xproto.Window

	mu      sync.Mutex
	windows map[xproto.Window]*x11Window
	grabbed bool
}

func newX11Backend() (*X11Backend, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	return &X11Backend{
		xu:      xu,
		root:    xu.RootWin(),
		windows: make(map[xproto.Window]*x11Window),
	}, nil
}

func (b *X11Backend) Name() string { return "x11" }

// Connect initializes key binding support and starts the X event loop.
func (b *X11Backend) Connect() error {
	keybind.Initialize(b.xu)
	go xevent.Main(b.xu)
	return nil
}

func (b *X11Backend) Close() error {
	xevent.Quit(b.xu)
	return nil
}

func (b *X11Backend) CreateWindow(opts CreateOptions) (Window, error) {
	log := logger.WithComponent("x11")

	win, err := xwindow.Generate(b.xu)
	if err != nil {
		return nil, fmt.Errorf("failed to generate window id: %w", err)
	}

	bg, _ := parseColor(opts.BackgroundColor)
	err = win.CreateChecked(
		b.root,
		opts.Bounds.X, opts.Bounds.Y, opts.Bounds.Width, opts.Bounds.Height,
		xproto.CwBackPixel|xproto.CwEventMask,
		bg,
		xproto.EventMaskStructureNotify|xproto.EventMaskFocusChange|xproto.EventMaskPropertyChange,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	if opts.Title != "" {
		if err := ewmh.WmNameSet(b.xu, win.Id, opts.Title); err != nil {
			log.Warn().Err(err).Msg("Failed to set window title")
		}
	}

	w := &x11Window{
		backend: b,
		xu:      b.xu,
		win:     win,
		opts:    opts,
		bounds:  opts.Bounds,
	}
	w.applyNormalHints(opts.Resizable, opts.MinWidth, opts.MinHeight, opts.MaxWidth, opts.MaxHeight)

	if opts.Modal {
		// Modal children are dialogs for the window manager's purposes.
		if err := ewmh.WmWindowTypeSet(b.xu, win.Id, []string{"_NET_WM_WINDOW_TYPE_DIALOG"}); err != nil {
			log.Warn().Err(err).Msg("Failed to set dialog window type")
		}
		ewmh.WmStateReq(b.xu, win.Id, 1, "_NET_WM_STATE_MODAL")
	}

	w.connectEvents()

	if opts.Show {
		win.Map()
	}
	if opts.AlwaysOnTop {
		ewmh.WmStateReq(b.xu, win.Id, 1, "_NET_WM_STATE_ABOVE")
	}

	b.mu.Lock()
	b.windows[win.Id] = w
	b.mu.Unlock()

	log.Debug().
		Uint32("xid", uint32(win.Id)).
		Int("width", opts.Bounds.Width).
		Int("height", opts.Bounds.Height).
		Msg("Window created")

	return w, nil
}

// WorkArea returns the primary display's work area via _NET_WORKAREA,
// falling back to the root window geometry.
func (b *X11Backend) WorkArea() (Rect, error) {
	if areas, err := ewmh.WorkareaGet(b.xu); err == nil && len(areas) > 0 {
		idx := 0
		if desktop, err := ewmh.CurrentDesktopGet(b.xu); err == nil && int(desktop) < len(areas) {
			idx = int(desktop)
		}
		wa := areas[idx]
		return Rect{X: int(wa.X), Y: int(wa.Y), Width: int(wa.Width), Height: int(wa.Height)}, nil
	}

	geom, err := xwindow.New(b.xu, b.root).Geometry()
	if err != nil {
		return Rect{}, fmt.Errorf("failed to get root geometry: %w", err)
	}
	return Rect{X: geom.X(), Y: geom.Y(), Width: geom.Width(), Height: geom.Height()}, nil
}

// GrabReloadKey swallows ctrl+r while installed. The grab is transient and
// removed again on blur via UngrabReloadKey.
func (b *X11Backend) GrabReloadKey() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.grabbed {
		return nil
	}
	err := keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		// Swallowed on purpose.
	}).Connect(b.xu, b.root, "control-r", true)
	if err != nil {
		return fmt.Errorf("failed to grab reload key: %w", err)
	}
	b.grabbed = true
	return nil
}

func (b *X11Backend) UngrabReloadKey() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.grabbed {
		return
	}
	keybind.Detach(b.xu, b.root)
	b.grabbed = false
}

func (b *X11Backend) OSVersion() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "linux"
	}
	return fmt.Sprintf("%s %s", trimNul(uts.Sysname[:]), trimNul(uts.Release[:]))
}

func trimNul(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func (b *X11Backend) forget(id xproto.Window) {
	b.mu.Lock()
	delete(b.windows, id)
	b.mu.Unlock()
}

// x11Window implements Window for one X window.
type x11Window struct {
	backend *X11Backend
	xu      *xgbutil.XUtil
	win     *xwindow.Window
	opts    CreateOptions

	mu        sync.Mutex
	fn        EventFunc
	bounds    Rect
	maximized bool
	minW      int
	minH      int
	maxW      int
	maxH      int
	resizable bool
	locator   string
}

func (w *x11Window) Subscribe(fn EventFunc) {
	w.mu.Lock()
	w.fn = fn
	w.mu.Unlock()
}

func (w *x11Window) emit(ev Event) {
	w.mu.Lock()
	fn := w.fn
	w.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// connectEvents translates X events into lifecycle events. Maximize state
// changes arrive as _NET_WM_STATE property updates, so the previous state is
// diffed to decide which edge fired.
func (w *x11Window) connectEvents() {
	stateAtom, _ := xprop.Atm(w.xu, "_NET_WM_STATE")
	ackAtom, _ := xprop.Atm(w.xu, contentStateProp)

	xevent.FocusInFun(func(xu *xgbutil.XUtil, ev xevent.FocusInEvent) {
		w.emit(Event{Kind: EventFocus})
	}).Connect(w.xu, w.win.Id)

	xevent.FocusOutFun(func(xu *xgbutil.XUtil, ev xevent.FocusOutEvent) {
		w.emit(Event{Kind: EventBlur})
	}).Connect(w.xu, w.win.Id)

	xevent.DestroyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.DestroyNotifyEvent) {
		w.backend.forget(w.win.Id)
		w.emit(Event{Kind: EventDestroyed})
	}).Connect(w.xu, w.win.Id)

	xevent.ConfigureNotifyFun(func(xu *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
		w.mu.Lock()
		w.bounds = Rect{X: int(ev.X), Y: int(ev.Y), Width: int(ev.Width), Height: int(ev.Height)}
		w.mu.Unlock()
	}).Connect(w.xu, w.win.Id)

	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		switch ev.Atom {
		case stateAtom:
			now := w.queryMaximized()
			w.mu.Lock()
			was := w.maximized
			w.maximized = now
			w.mu.Unlock()
			if now && !was {
				w.emit(Event{Kind: EventMaximize})
			} else if !now && was {
				w.emit(Event{Kind: EventUnmaximize})
			}
		case ackAtom:
			w.handleContentAck()
		}
	}).Connect(w.xu, w.win.Id)
}

// handleContentAck reads the hosted view's load acknowledgment. The view
// writes "loaded" or "failed:<reason>".
func (w *x11Window) handleContentAck() {
	state, err := xprop.PropValStr(xprop.GetProperty(w.xu, w.win.Id, contentStateProp))
	if err != nil {
		return
	}
	if state == "loaded" {
		w.emit(Event{Kind: EventLoadFinished})
		return
	}
	if reason, ok := strings.CutPrefix(state, "failed:"); ok {
		w.emit(Event{Kind: EventLoadFailed, Err: fmt.Errorf("content load failed: %s", reason)})
	}
}

func (w *x11Window) Bounds() Rect {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds
}

func (w *x11Window) SetBounds(r Rect) {
	if err := ewmh.MoveresizeWindow(w.xu, w.win.Id, r.X, r.Y, r.Width, r.Height); err != nil {
		// Some window managers reject the EWMH request; configure directly.
		w.win.MoveResize(r.X, r.Y, r.Width, r.Height)
	}
	w.mu.Lock()
	w.bounds = r
	w.mu.Unlock()
}

func (w *x11Window) SetTitle(title string) {
	if err := ewmh.WmNameSet(w.xu, w.win.Id, title); err != nil {
		logger.WithComponent("x11").Warn().Err(err).Msg("Failed to set title")
	}
}

func (w *x11Window) SetMinSize(width, height int) {
	w.mu.Lock()
	w.minW, w.minH = width, height
	resizable, maxW, maxH := w.resizable, w.maxW, w.maxH
	w.mu.Unlock()
	w.applyNormalHints(resizable, width, height, maxW, maxH)
}

func (w *x11Window) SetMaxSize(width, height int) {
	w.mu.Lock()
	w.maxW, w.maxH = width, height
	resizable, minW, minH := w.resizable, w.minW, w.minH
	w.mu.Unlock()
	w.applyNormalHints(resizable, minW, minH, width, height)
}

func (w *x11Window) SetResizable(resizable bool) {
	w.mu.Lock()
	w.resizable = resizable
	minW, minH, maxW, maxH := w.minW, w.minH, w.maxW, w.maxH
	w.mu.Unlock()
	w.applyNormalHints(resizable, minW, minH, maxW, maxH)
}

// applyNormalHints sets WM_NORMAL_HINTS. A non-resizable window pins min and
// max to the current size, the ICCCM way of freezing geometry.
func (w *x11Window) applyNormalHints(resizable bool, minW, minH, maxW, maxH int) {
	w.mu.Lock()
	w.resizable = resizable
	w.minW, w.minH, w.maxW, w.maxH = minW, minH, maxW, maxH
	cur := w.bounds
	w.mu.Unlock()

	hints := icccm.NormalHints{}
	if !resizable {
		hints.Flags = icccm.SizeHintPMinSize | icccm.SizeHintPMaxSize
		hints.MinWidth, hints.MinHeight = uint(cur.Width), uint(cur.Height)
		hints.MaxWidth, hints.MaxHeight = uint(cur.Width), uint(cur.Height)
	} else {
		if minW > 0 || minH > 0 {
			hints.Flags |= icccm.SizeHintPMinSize
			hints.MinWidth, hints.MinHeight = uint(minW), uint(minH)
		}
		if maxW > 0 || maxH > 0 {
			hints.Flags |= icccm.SizeHintPMaxSize
			hints.MaxWidth, hints.MaxHeight = uint(maxW), uint(maxH)
		}
	}
	if err := icccm.WmNormalHintsSet(w.xu, w.win.Id, &hints); err != nil {
		logger.WithComponent("x11").Warn().Err(err).Msg("Failed to set normal hints")
	}
}

func (w *x11Window) SetAlwaysOnTop(onTop bool, level string) {
	action := 0
	if onTop {
		action = 1
	}
	ewmh.WmStateReq(w.xu, w.win.Id, action, "_NET_WM_STATE_ABOVE")
}

func (w *x11Window) SetBackgroundColor(color string) {
	pixel, err := parseColor(color)
	if err != nil {
		logger.WithComponent("x11").Warn().Str("color", color).Msg("Unparseable background color")
		return
	}
	xproto.ChangeWindowAttributes(w.xu.Conn(), w.win.Id, xproto.CwBackPixel, []uint32{pixel})
	xproto.ClearArea(w.xu.Conn(), true, w.win.Id, 0, 0, 0, 0)
}

func (w *x11Window) Show() { w.win.Map() }
func (w *x11Window) Hide() { w.win.Unmap() }

func (w *x11Window) Close() {
	if err := ewmh.CloseWindow(w.xu, w.win.Id); err != nil {
		w.win.Destroy()
	}
}

func (w *x11Window) Focus() {
	if err := ewmh.ActiveWindowReq(w.xu, w.win.Id); err != nil {
		w.win.Focus()
	}
}

func (w *x11Window) Minimize() {
	if err := icccm.WmStateSet(w.xu, w.win.Id, &icccm.WmState{State: icccm.StateIconic}); err != nil {
		logger.WithComponent("x11").Warn().Err(err).Msg("Failed to iconify window")
	}
}

func (w *x11Window) Maximize() {
	ewmh.WmStateReqExtra(w.xu, w.win.Id, 1,
		"_NET_WM_STATE_MAXIMIZED_VERT", "_NET_WM_STATE_MAXIMIZED_HORZ", 1)
}

func (w *x11Window) Unmaximize() {
	ewmh.WmStateReqExtra(w.xu, w.win.Id, 0,
		"_NET_WM_STATE_MAXIMIZED_VERT", "_NET_WM_STATE_MAXIMIZED_HORZ", 1)
}

func (w *x11Window) Restore() {
	w.win.Map()
	ewmh.ActiveWindowReq(w.xu, w.win.Id)
}

func (w *x11Window) Load(url string) {
	w.mu.Lock()
	w.locator = url
	w.mu.Unlock()
	err := xprop.ChangeProp(w.xu, w.win.Id, 8, contentProp, "UTF8_STRING", []byte(url))
	if err != nil {
		w.emit(Event{Kind: EventLoadFailed, Err: fmt.Errorf("failed to publish content locator: %w", err)})
	}
}

func (w *x11Window) Reload() {
	w.mu.Lock()
	locator := w.locator
	w.mu.Unlock()
	if locator != "" {
		w.Load(locator)
	}
}

func (w *x11Window) Query(q StateQuery) bool {
	switch q {
	case QueryMaximized:
		return w.queryMaximized()
	case QueryMinimized:
		return w.hasState("_NET_WM_STATE_HIDDEN")
	case QueryFullscreen:
		return w.hasState("_NET_WM_STATE_FULLSCREEN")
	case QueryAlwaysOnTop:
		return w.hasState("_NET_WM_STATE_ABOVE")
	case QueryModal:
		return w.hasState("_NET_WM_STATE_MODAL")
	case QueryVisible:
		attrs, err := xproto.GetWindowAttributes(w.xu.Conn(), w.win.Id).Reply()
		return err == nil && attrs.MapState == xproto.MapStateViewable
	case QueryFocused:
		active, err := ewmh.ActiveWindowGet(w.xu)
		return err == nil && active == w.win.Id
	default:
		return false
	}
}

func (w *x11Window) queryMaximized() bool {
	return w.hasState("_NET_WM_STATE_MAXIMIZED_VERT") && w.hasState("_NET_WM_STATE_MAXIMIZED_HORZ")
}

func (w *x11Window) hasState(atom string) bool {
	states, err := ewmh.WmStateGet(w.xu, w.win.Id)
	if err != nil {
		return false
	}
	for _, s := range states {
		if s == atom {
			return true
		}
	}
	return false
}

// parseColor converts "#RRGGBB" (or "RRGGBB") to an X pixel value.
func parseColor(color string) (uint32, error) {
	s := strings.TrimPrefix(color, "#")
	if s == "" {
		return 0xffffff, nil
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", color, err)
	}
	return uint32(v), nil
}
