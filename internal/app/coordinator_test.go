package app

import (
	"testing"
	"time"

	"github.com/mullionhq/mullion/internal/config"
	"github.com/mullionhq/mullion/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(mode config.SecondInstanceMode) *config.Config {
	return &config.Config{
		ServerPort:     7430,
		LogLevel:       "error",
		SecondInstance: mode,
		DefaultWindow:  &config.WindowConfig{Title: "main", Route: "/", IsMainWin: true},
		DefaultOptions: &config.Options{Width: 640, Height: 480},
	}
}

// newRunning builds a coordinator with a stub backend and its run loop
// already draining, without the bridge server or instance lock.
func newRunning(t *testing.T, cfg *config.Config, goos string) (*Coordinator, *platform.StubBackend) {
	t.Helper()
	backend := platform.NewStub()
	c := New(cfg, backend)
	c.SetGOOS(goos)

	go c.loop.Run()
	t.Cleanup(func() {
		c.loop.Stop()
		select {
		case <-c.loop.Done():
		case <-time.After(2 * time.Second):
			t.Error("run loop did not stop")
		}
	})

	c.loop.PostWait(func() { c.state = StateRunning })
	return c, backend
}

func createWindow(t *testing.T, c *Coordinator, cfg *config.WindowConfig, opts config.Options) int {
	t.Helper()
	var id int
	var err error
	c.loop.PostWait(func() {
		id, err = c.CreateWindow(cfg, opts)
	})
	require.NoError(t, err)
	return id
}

func TestCreateWindowFlow(t *testing.T) {
	c, backend := newRunning(t, testConfig(config.SecondInstanceFocusMain), "darwin")

	id := createWindow(t, c, &config.WindowConfig{Title: "main", Route: "/home"}, config.Options{Width: 400, Height: 300})

	assert.Equal(t, 1, id)
	require.NotNil(t, c.reg.Get(id))

	wins := backend.Windows()
	require.Len(t, wins, 1)
	assert.Equal(t, "/home", wins[0].LoadedURL())
	assert.Equal(t, 1, wins[0].LoadCount())

	minW, minH := wins[0].MinSize()
	assert.Equal(t, 400, minW)
	assert.Equal(t, 300, minH)
}

func TestCreateWindowURLWinsOverRoute(t *testing.T) {
	c, backend := newRunning(t, testConfig(config.SecondInstanceFocusMain), "darwin")

	createWindow(t, c, &config.WindowConfig{URL: "https://example.test", Route: "/ignored"}, config.Options{})

	assert.Equal(t, "https://example.test", backend.Windows()[0].LoadedURL())
}

func TestCreateWindowRequiresContent(t *testing.T) {
	c, _ := newRunning(t, testConfig(config.SecondInstanceFocusMain), "darwin")

	var err error
	c.loop.PostWait(func() {
		_, err = c.CreateWindow(&config.WindowConfig{Title: "empty"}, config.Options{})
	})

	require.Error(t, err)
	assert.Zero(t, c.reg.Count())
}

func TestSecondLaunchFocusMainNeverGrowsCount(t *testing.T) {
	c, backend := newRunning(t, testConfig(config.SecondInstanceFocusMain), "darwin")
	createWindow(t, c, &config.WindowConfig{Route: "/", IsMainWin: true}, config.Options{})
	createWindow(t, c, &config.WindowConfig{Route: "/child"}, config.Options{})

	for i := 0; i < 5; i++ {
		c.loop.PostWait(func() { c.handleSecondLaunch([]string{"--flag"}) })
	}

	assert.Equal(t, 2, c.reg.Count())
	assert.True(t, backend.Windows()[0].Query(platform.QueryFocused), "main window not focused")
}

func TestSecondLaunchSpawnWindow(t *testing.T) {
	c, _ := newRunning(t, testConfig(config.SecondInstanceSpawnWindow), "darwin")
	createWindow(t, c, &config.WindowConfig{Route: "/"}, config.Options{})

	c.loop.PostWait(func() { c.handleSecondLaunch([]string{"open", "file.txt"}) })
	c.loop.PostWait(func() { c.handleSecondLaunch([]string{"open", "other.txt"}) })

	assert.Equal(t, 3, c.reg.Count())

	var last *config.WindowConfig
	var flagged bool
	c.loop.PostWait(func() {
		entries := c.reg.All()
		last = entries[len(entries)-1].Config
		flagged = c.secondInstance[entries[len(entries)-1].ID]
	})
	assert.Equal(t, []string{"open", "other.txt"}, last.ProcessArgs)
	assert.True(t, flagged, "window not marked as second-instance spawned")
}

func TestOneWindowReusesExisting(t *testing.T) {
	c, backend := newRunning(t, testConfig(config.SecondInstanceFocusMain), "darwin")

	first := createWindow(t, c, &config.WindowConfig{Route: "/settings", IsOneWindow: true}, config.Options{})
	second := createWindow(t, c, &config.WindowConfig{Route: "/settings", IsOneWindow: true}, config.Options{})

	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.reg.Count())
	assert.True(t, backend.Windows()[0].Query(platform.QueryFocused))
}

func TestChildCloseReturnsFocusToParent(t *testing.T) {
	c, backend := newRunning(t, testConfig(config.SecondInstanceFocusMain), "darwin")
	parentID := createWindow(t, c, &config.WindowConfig{Route: "/", IsMainWin: true}, config.Options{Width: 800, Height: 600})
	childID := createWindow(t, c, &config.WindowConfig{Route: "/dialog", ParentID: parentID}, config.Options{Width: 400, Height: 300})

	wins := backend.Windows()
	require.Len(t, wins, 2)

	// Child is centered on its parent.
	childBounds := wins[1].Bounds()
	parentBounds := wins[0].Bounds()
	assert.Equal(t, parentBounds.X+200, childBounds.X)
	assert.Equal(t, parentBounds.Y+150, childBounds.Y)

	wins[1].Close()
	c.loop.PostWait(func() {}) // drain the destroy event

	assert.Nil(t, c.reg.Get(childID))
	assert.True(t, wins[0].Query(platform.QueryFocused), "parent did not regain focus")
}

func TestLastWindowCloseTerminates(t *testing.T) {
	c, backend := newRunning(t, testConfig(config.SecondInstanceFocusMain), "linux")
	createWindow(t, c, &config.WindowConfig{Route: "/"}, config.Options{})

	backend.Windows()[0].Close()

	select {
	case <-c.loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not terminate after last window closed")
	}
}

func TestLastWindowCloseDarwinStaysResident(t *testing.T) {
	c, backend := newRunning(t, testConfig(config.SecondInstanceFocusMain), "darwin")
	createWindow(t, c, &config.WindowConfig{Route: "/"}, config.Options{})

	backend.Windows()[0].Close()
	c.loop.PostWait(func() {})

	var state State
	c.loop.PostWait(func() { state = c.state })
	assert.Equal(t, StateRunning, state)
	assert.Zero(t, c.reg.Count())
}

func TestEnvDescriptor(t *testing.T) {
	c, _ := newRunning(t, testConfig(config.SecondInstanceSpawnWindow), "windows")
	createWindow(t, c, &config.WindowConfig{Route: "/"}, config.Options{})
	c.loop.PostWait(func() { c.handleSecondLaunch([]string{"doc.txt"}) })

	first := c.env(1)
	assert.Equal(t, "windows", first.Platform)
	assert.Equal(t, "\r\n", first.EOL)
	assert.False(t, first.SecondInstance)

	second := c.env(2)
	assert.True(t, second.SecondInstance)
	assert.Equal(t, "stub 0.0", second.OSVersion)
}

func TestValidateSpawnWindowRequiresDefaults(t *testing.T) {
	cfg := testConfig(config.SecondInstanceSpawnWindow)
	cfg.DefaultWindow = nil
	assert.Error(t, cfg.Validate())

	cfg = testConfig(config.SecondInstanceSpawnWindow)
	cfg.DefaultWindow = &config.WindowConfig{Title: "no content"}
	assert.Error(t, cfg.Validate())

	assert.NoError(t, testConfig(config.SecondInstanceSpawnWindow).Validate())
	assert.NoError(t, testConfig(config.SecondInstanceFocusMain).Validate())
}
