// Package geometry computes finalized window creation options: size
// defaulting, platform policy, bridge security defaults and anchor-relative
// placement. Geometry is computed once, at creation; it is never recomputed
// when an anchor later moves.
package geometry

import (
	"runtime"

	"github.com/mullionhq/mullion/internal/config"
	"github.com/mullionhq/mullion/internal/logger"
	"github.com/mullionhq/mullion/internal/platform"
	"github.com/mullionhq/mullion/internal/registry"
	"github.com/rs/zerolog"
)

const (
	defaultWidth  = 800
	defaultHeight = 600
)

// Placement is the assembler's output: resolved creation options plus the
// anchor reference used for centering, if any.
type Placement struct {
	Options platform.CreateOptions

	// Anchor is the window the placement was centered on: the live parent
	// when the config names one, otherwise the current main window.
	Anchor *registry.Entry

	// AnchorIsParent reports that the anchor was resolved from the
	// config's parent id; only then does the close-focus rule apply.
	AnchorIsParent bool
}

// Assembler finalizes creation options against the registry and display.
type Assembler struct {
	reg     *registry.Registry
	backend platform.Backend

	// goos is injectable for tests; the modal strip is platform policy.
	goos       string
	production bool
	log        *zerolog.Logger
}

// New creates an assembler. production disables the devtools default.
func New(reg *registry.Registry, backend platform.Backend, production bool) *Assembler {
	return &Assembler{
		reg:        reg,
		backend:    backend,
		goos:       runtime.GOOS,
		production: production,
		log:        logger.WithComponent("geometry"),
	}
}

// SetGOOS overrides the platform policy target. Tests only.
func (a *Assembler) SetGOOS(goos string) { a.goos = goos }

// Assemble resolves raw creation options into final ones and captures the
// anchor's current bounds and maximized state into cfg.
func (a *Assembler) Assemble(cfg *config.WindowConfig, raw config.Options) Placement {
	opts := platform.CreateOptions{
		Title:           cfg.Title,
		MinWidth:        raw.MinWidth,
		MinHeight:       raw.MinHeight,
		MaxWidth:        raw.MaxWidth,
		MaxHeight:       raw.MaxHeight,
		Modal:           raw.Modal,
		AlwaysOnTop:     raw.AlwaysOnTop,
		BackgroundColor: raw.BackgroundColor,
		Resizable:       raw.Resizable == nil || *raw.Resizable,
		Show:            raw.Show == nil || *raw.Show,
	}

	width, height := raw.Width, raw.Height

	// Unset minimum sizes default to the requested size.
	if opts.MinWidth == 0 {
		opts.MinWidth = width
	}
	if opts.MinHeight == 0 {
		opts.MinHeight = height
	}

	// A modal child closing the entire window tree is a known defect on
	// Linux window managers; the flag is stripped unconditionally there.
	if opts.Modal && a.goos == "linux" {
		a.log.Debug().Msg("Stripping modal flag on linux")
		opts.Modal = false
	}

	// Security defaults for the privileged bridge surface; explicit
	// caller values win.
	opts.Isolation = raw.Bridge.Isolation == nil || *raw.Bridge.Isolation
	opts.AllowCodeExecution = raw.Bridge.AllowCodeExecution != nil && *raw.Bridge.AllowCodeExecution
	if raw.Bridge.DevTools != nil {
		opts.DevTools = *raw.Bridge.DevTools
	} else {
		opts.DevTools = !a.production
	}

	anchor, anchorIsParent := a.resolveAnchor(cfg)

	x, y := 0, 0
	if raw.X != nil {
		x = *raw.X
	}
	if raw.Y != nil {
		y = *raw.Y
	}

	if anchor != nil {
		ab := anchor.Window.Bounds()
		maximized := anchor.Window.Query(platform.QueryMaximized)

		// Captured for downstream consumers; part of the config from
		// here on.
		cfg.AnchorWidth = ab.Width
		cfg.AnchorHeight = ab.Height
		cfg.AnchorMaximized = maximized

		// An unset size inherits the anchor's.
		if width == 0 {
			width = ab.Width
		}
		if height == 0 {
			height = ab.Height
		}

		if maximized {
			// Center within the primary display's work area.
			if wa, err := a.backend.WorkArea(); err == nil {
				x = floorDiv(wa.Width-width, 2)
				y = floorDiv(wa.Height-height, 2)
			} else {
				a.log.Warn().Err(err).Msg("Work area unavailable, keeping explicit coordinates")
			}
		} else {
			// Center relative to the anchor's current position and size.
			x = ab.X + floorDiv(ab.Width-width, 2)
			y = ab.Y + floorDiv(ab.Height-height, 2)
		}
	}

	if width == 0 {
		width = defaultWidth
	}
	if height == 0 {
		height = defaultHeight
	}
	if opts.MinWidth == 0 {
		opts.MinWidth = width
	}
	if opts.MinHeight == 0 {
		opts.MinHeight = height
	}

	opts.Bounds = platform.Rect{X: x, Y: y, Width: width, Height: height}

	return Placement{Options: opts, Anchor: anchor, AnchorIsParent: anchorIsParent}
}

// resolveAnchor prefers a live parent, then the current main window.
func (a *Assembler) resolveAnchor(cfg *config.WindowConfig) (*registry.Entry, bool) {
	if cfg.ParentID != 0 {
		if e := a.reg.Get(cfg.ParentID); e != nil {
			return e, true
		}
		a.log.Warn().Int("parent", cfg.ParentID).Msg("Parent id not live, falling back to main window anchor")
	}
	if e := a.reg.Main(); e != nil {
		return e, false
	}
	return nil, false
}

// floorDiv is integer division rounding toward negative infinity. Plain Go
// division truncates toward zero, which misplaces windows at negative
// multi-monitor coordinates.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
