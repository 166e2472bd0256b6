package geometry

import (
	"testing"

	"github.com/mullionhq/mullion/internal/config"
	"github.com/mullionhq/mullion/internal/platform"
	"github.com/mullionhq/mullion/internal/registry"
)

func newFixture(t *testing.T) (*registry.Registry, *platform.StubBackend, *Assembler) {
	t.Helper()
	reg := registry.New()
	backend := platform.NewStub()
	asm := New(reg, backend, false)
	asm.SetGOOS("linux")
	return reg, backend, asm
}

func addWindow(t *testing.T, reg *registry.Registry, backend *platform.StubBackend, cfg *config.WindowConfig, bounds platform.Rect) *registry.Entry {
	t.Helper()
	win, err := backend.CreateWindow(platform.CreateOptions{Bounds: bounds, Show: true})
	if err != nil {
		t.Fatalf("create window: %v", err)
	}
	return reg.Register(win, cfg)
}

func TestMinSizeDefaultsToSize(t *testing.T) {
	_, _, asm := newFixture(t)

	p := asm.Assemble(&config.WindowConfig{URL: "https://example.test"}, config.Options{Width: 640, Height: 480})

	if p.Options.MinWidth != 640 || p.Options.MinHeight != 480 {
		t.Errorf("min size %dx%d, want 640x480", p.Options.MinWidth, p.Options.MinHeight)
	}
}

func TestExplicitMinSizeKept(t *testing.T) {
	_, _, asm := newFixture(t)

	p := asm.Assemble(&config.WindowConfig{}, config.Options{Width: 640, Height: 480, MinWidth: 100, MinHeight: 50})

	if p.Options.MinWidth != 100 || p.Options.MinHeight != 50 {
		t.Errorf("min size %dx%d, want 100x50", p.Options.MinWidth, p.Options.MinHeight)
	}
}

func TestDefaultSize(t *testing.T) {
	_, _, asm := newFixture(t)

	p := asm.Assemble(&config.WindowConfig{}, config.Options{})

	if p.Options.Bounds.Width != 800 || p.Options.Bounds.Height != 600 {
		t.Errorf("size %dx%d, want 800x600", p.Options.Bounds.Width, p.Options.Bounds.Height)
	}
}

func TestModalStrip(t *testing.T) {
	tests := []struct {
		goos string
		want bool
	}{
		{"linux", false},
		{"darwin", true},
		{"windows", true},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			_, _, asm := newFixture(t)
			asm.SetGOOS(tt.goos)

			p := asm.Assemble(&config.WindowConfig{}, config.Options{Modal: true})
			if p.Options.Modal != tt.want {
				t.Errorf("modal = %v on %s, want %v", p.Options.Modal, tt.goos, tt.want)
			}
		})
	}
}

func TestBridgeSecurityDefaults(t *testing.T) {
	_, _, asm := newFixture(t)

	p := asm.Assemble(&config.WindowConfig{}, config.Options{})

	if !p.Options.Isolation {
		t.Error("isolation off by default")
	}
	if p.Options.AllowCodeExecution {
		t.Error("code execution on by default")
	}
	if !p.Options.DevTools {
		t.Error("devtools off outside production")
	}
}

func TestBridgeSecurityProduction(t *testing.T) {
	reg := registry.New()
	asm := New(reg, platform.NewStub(), true)

	p := asm.Assemble(&config.WindowConfig{}, config.Options{})
	if p.Options.DevTools {
		t.Error("devtools on in production")
	}
}

func TestBridgeSecurityExplicitWins(t *testing.T) {
	_, _, asm := newFixture(t)

	p := asm.Assemble(&config.WindowConfig{}, config.Options{Bridge: config.BridgePrefs{
		Isolation:          config.Bool(false),
		AllowCodeExecution: config.Bool(true),
		DevTools:           config.Bool(false),
	}})

	if p.Options.Isolation || !p.Options.AllowCodeExecution || p.Options.DevTools {
		t.Errorf("explicit bridge prefs not honored: %+v", p.Options)
	}
}

func TestCenterOnParent(t *testing.T) {
	reg, backend, asm := newFixture(t)
	parent := addWindow(t, reg, backend, &config.WindowConfig{}, platform.Rect{X: 100, Y: 100, Width: 800, Height: 600})

	cfg := &config.WindowConfig{ParentID: parent.ID}
	p := asm.Assemble(cfg, config.Options{Width: 400, Height: 300})

	if p.Options.Bounds.X != 300 || p.Options.Bounds.Y != 250 {
		t.Errorf("placed at (%d,%d), want (300,250)", p.Options.Bounds.X, p.Options.Bounds.Y)
	}
	if p.Anchor == nil || p.Anchor.ID != parent.ID {
		t.Error("anchor not resolved to parent")
	}
	if !p.AnchorIsParent {
		t.Error("anchor not flagged as parent")
	}
	if cfg.AnchorWidth != 800 || cfg.AnchorHeight != 600 || cfg.AnchorMaximized {
		t.Errorf("anchor capture %+v", cfg)
	}
}

func TestCenterOnMaximizedAnchor(t *testing.T) {
	reg, backend, asm := newFixture(t)
	backend.SetWorkArea(platform.Rect{Width: 1920, Height: 1040})
	parent := addWindow(t, reg, backend, &config.WindowConfig{}, platform.Rect{X: 50, Y: 50, Width: 700, Height: 500})
	parent.Window.Maximize()

	cfg := &config.WindowConfig{ParentID: parent.ID}
	p := asm.Assemble(cfg, config.Options{Width: 400, Height: 300})

	// floor((1920-400)/2), floor((1040-300)/2)
	if p.Options.Bounds.X != 760 || p.Options.Bounds.Y != 370 {
		t.Errorf("placed at (%d,%d), want (760,370)", p.Options.Bounds.X, p.Options.Bounds.Y)
	}
	if !cfg.AnchorMaximized {
		t.Error("maximized state not captured")
	}
}

func TestSizeInheritsAnchor(t *testing.T) {
	reg, backend, asm := newFixture(t)
	parent := addWindow(t, reg, backend, &config.WindowConfig{}, platform.Rect{X: 0, Y: 0, Width: 640, Height: 480})

	p := asm.Assemble(&config.WindowConfig{ParentID: parent.ID}, config.Options{})

	if p.Options.Bounds.Width != 640 || p.Options.Bounds.Height != 480 {
		t.Errorf("size %dx%d, want anchor's 640x480", p.Options.Bounds.Width, p.Options.Bounds.Height)
	}
}

func TestDeadParentFallsBackToMain(t *testing.T) {
	reg, backend, asm := newFixture(t)
	main := addWindow(t, reg, backend, &config.WindowConfig{IsMainWin: true}, platform.Rect{X: 200, Y: 200, Width: 400, Height: 400})

	p := asm.Assemble(&config.WindowConfig{ParentID: 99}, config.Options{Width: 200, Height: 200})

	if p.Anchor == nil || p.Anchor.ID != main.ID {
		t.Fatal("dead parent did not fall back to main window")
	}
	if p.AnchorIsParent {
		t.Error("fallback anchor flagged as parent")
	}
	if p.Options.Bounds.X != 300 || p.Options.Bounds.Y != 300 {
		t.Errorf("placed at (%d,%d), want (300,300)", p.Options.Bounds.X, p.Options.Bounds.Y)
	}
}

func TestNoAnchorKeepsExplicitCoordinates(t *testing.T) {
	_, _, asm := newFixture(t)

	p := asm.Assemble(&config.WindowConfig{}, config.Options{
		Width: 300, Height: 200, X: config.Int(-50), Y: config.Int(40),
	})

	if p.Options.Bounds.X != -50 || p.Options.Bounds.Y != 40 {
		t.Errorf("placed at (%d,%d), want (-50,40)", p.Options.Bounds.X, p.Options.Bounds.Y)
	}
	if p.Anchor != nil {
		t.Error("anchor resolved with empty registry")
	}
}

func TestFloorDiv(t *testing.T) {
	tests := []struct {
		a, b, want int
	}{
		{7, 2, 3},
		{-7, 2, -4},
		{6, 2, 3},
		{-6, 2, -3},
		{1, 2, 0},
		{-1, 2, -1},
	}
	for _, tt := range tests {
		if got := floorDiv(tt.a, tt.b); got != tt.want {
			t.Errorf("floorDiv(%d,%d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCenterOnNegativeAnchor(t *testing.T) {
	reg, backend, asm := newFixture(t)
	parent := addWindow(t, reg, backend, &config.WindowConfig{}, platform.Rect{X: -1920, Y: 0, Width: 801, Height: 600})

	p := asm.Assemble(&config.WindowConfig{ParentID: parent.ID}, config.Options{Width: 400, Height: 300})

	// -1920 + floor(401/2) = -1920 + 200
	if p.Options.Bounds.X != -1720 {
		t.Errorf("x = %d, want -1720", p.Options.Bounds.X)
	}
}
