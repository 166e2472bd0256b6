package lifecycle

import (
	"fmt"
	"testing"

	"github.com/mullionhq/mullion/internal/config"
	"github.com/mullionhq/mullion/internal/platform"
	"github.com/mullionhq/mullion/internal/registry"
	"github.com/mullionhq/mullion/internal/runloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	id      int
	channel string
	payload any
}

type fakeSender struct {
	sent    []sentMessage
	dropped []int
}

func (f *fakeSender) Send(id int, channel string, payload any) {
	f.sent = append(f.sent, sentMessage{id: id, channel: channel, payload: payload})
}

func (f *fakeSender) DropWindow(id int) {
	f.dropped = append(f.dropped, id)
}

type fakeCreator struct {
	configs []*config.WindowConfig
	err     error
}

func (f *fakeCreator) CreateWindow(cfg *config.WindowConfig, opts config.Options) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.configs = append(f.configs, cfg)
	return 100 + len(f.configs), nil
}

type fixture struct {
	reg       *registry.Registry
	backend   *platform.StubBackend
	sender    *fakeSender
	creator   *fakeCreator
	loop      *runloop.Loop
	binder    *Binder
	allClosed int
}

func newFixture() *fixture {
	f := &fixture{
		reg:     registry.New(),
		backend: platform.NewStub(),
		sender:  &fakeSender{},
		creator: &fakeCreator{},
		loop:    runloop.New(),
	}
	f.binder = New(f.reg, f.backend, f.sender, f.creator, f.loop, func() { f.allClosed++ })
	return f
}

func (f *fixture) addWindow(t *testing.T, cfg *config.WindowConfig) (*registry.Entry, *platform.StubWindow) {
	t.Helper()
	win, err := f.backend.CreateWindow(platform.CreateOptions{Show: true})
	require.NoError(t, err)
	e := f.reg.Register(win, cfg)
	return e, win.(*platform.StubWindow)
}

func TestLoadFinishedForwardsConfig(t *testing.T) {
	f := newFixture()
	cfg := &config.WindowConfig{Title: "main", Route: "/"}
	e, _ := f.addWindow(t, cfg)

	f.binder.HandleEvent(e.ID, platform.Event{Kind: platform.EventLoadFinished})

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, ChannelLoaded, f.sender.sent[0].channel)
	assert.Equal(t, e.ID, f.sender.sent[0].id)
	assert.Same(t, cfg, f.sender.sent[0].payload)
}

func TestLoadFailedKeepsWindow(t *testing.T) {
	f := newFixture()
	e, win := f.addWindow(t, &config.WindowConfig{})

	f.binder.HandleEvent(e.ID, platform.Event{Kind: platform.EventLoadFailed, Err: fmt.Errorf("dns failure")})

	assert.False(t, win.IsClosed())
	assert.NotNil(t, f.reg.Get(e.ID))
	assert.Empty(t, f.sender.sent)
	assert.Zero(t, win.LoadCount(), "load must not be retried")
}

func TestMaximizeUnmaximizeForwarded(t *testing.T) {
	f := newFixture()
	e, _ := f.addWindow(t, &config.WindowConfig{})

	f.binder.HandleEvent(e.ID, platform.Event{Kind: platform.EventMaximize})
	f.binder.HandleEvent(e.ID, platform.Event{Kind: platform.EventUnmaximize})

	require.Len(t, f.sender.sent, 2)
	assert.Equal(t, ChannelMaximize, f.sender.sent[0].channel)
	assert.Equal(t, ChannelUnmaximize, f.sender.sent[1].channel)
}

func TestFocusGrabsReloadKey(t *testing.T) {
	f := newFixture()
	e, _ := f.addWindow(t, &config.WindowConfig{})

	f.binder.HandleEvent(e.ID, platform.Event{Kind: platform.EventFocus})
	assert.True(t, f.backend.ReloadKeyGrabbed())
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, ChannelFocus, f.sender.sent[0].channel)

	f.binder.HandleEvent(e.ID, platform.Event{Kind: platform.EventBlur})
	assert.False(t, f.backend.ReloadKeyGrabbed())
	require.Len(t, f.sender.sent, 2)
	assert.Equal(t, ChannelBlur, f.sender.sent[1].channel)
}

func TestNavigateCreatesManagedChild(t *testing.T) {
	f := newFixture()
	e, _ := f.addWindow(t, &config.WindowConfig{Title: "origin"})

	f.binder.HandleEvent(e.ID, platform.Event{Kind: platform.EventNavigate, URL: "https://elsewhere.test"})

	require.Len(t, f.creator.configs, 1)
	child := f.creator.configs[0]
	assert.Equal(t, "https://elsewhere.test", child.URL)
	assert.Equal(t, e.ID, child.ParentID)
	assert.Equal(t, "origin", child.Title)
}

func TestDeviceChangeRelayedVerbatim(t *testing.T) {
	f := newFixture()
	e, _ := f.addWindow(t, &config.WindowConfig{})

	raw := []byte(`{"action":"added","path":"/dev/sdb"}`)
	f.binder.HandleEvent(e.ID, platform.Event{Kind: platform.EventDeviceChange, Raw: raw})

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, ChannelDeviceChange, f.sender.sent[0].channel)
	assert.Equal(t, raw, f.sender.sent[0].payload)
}

func TestDestroyedDeregistersAndDrops(t *testing.T) {
	f := newFixture()
	a, _ := f.addWindow(t, &config.WindowConfig{})
	b, _ := f.addWindow(t, &config.WindowConfig{})

	f.binder.HandleEvent(a.ID, platform.Event{Kind: platform.EventDestroyed})

	assert.Nil(t, f.reg.Get(a.ID))
	assert.Equal(t, []int{a.ID}, f.sender.dropped)
	assert.Zero(t, f.allClosed, "windows remain")

	f.binder.HandleEvent(b.ID, platform.Event{Kind: platform.EventDestroyed})
	assert.Equal(t, 1, f.allClosed)
}

func TestChildDestroyFocusesParentOnly(t *testing.T) {
	f := newFixture()
	parent, pwin := f.addWindow(t, &config.WindowConfig{})
	_, swin := f.addWindow(t, &config.WindowConfig{})
	child, _ := f.addWindow(t, &config.WindowConfig{ParentID: parent.ID})

	f.reg.OnClosed(child.ID, func() {
		if p := f.reg.Get(parent.ID); p != nil {
			p.Window.Focus()
		}
	})

	f.binder.HandleEvent(child.ID, platform.Event{Kind: platform.EventDestroyed})

	assert.True(t, pwin.Query(platform.QueryFocused))
	assert.False(t, swin.Query(platform.QueryFocused))
}

func TestLateEventForDeadWindowDropped(t *testing.T) {
	f := newFixture()
	e, _ := f.addWindow(t, &config.WindowConfig{})
	f.reg.Deregister(e.ID)

	f.binder.HandleEvent(e.ID, platform.Event{Kind: platform.EventFocus})

	assert.Empty(t, f.sender.sent)
}

func TestBindRoutesThroughRunLoop(t *testing.T) {
	f := newFixture()
	e, win := f.addWindow(t, &config.WindowConfig{})

	f.binder.Bind(e)
	win.Emit(platform.Event{Kind: platform.EventMaximize})

	// The event is queued, not handled inline.
	assert.Empty(t, f.sender.sent)

	f.loop.Post(f.loop.Stop)
	f.loop.Run()

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, ChannelMaximize, f.sender.sent[0].channel)
}
