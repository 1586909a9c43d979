package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holocene.dev/holod/config"
	"holocene.dev/holod/core"
	"holocene.dev/holod/eventbus"
)

type fakePlugin struct {
	name        string
	runsOn      []string
	requires    []string
	loadErr     error
	enableErr   error
	enabled     bool
	subscribeAt func(subscribe SubscribeFunc)
}

func (p *fakePlugin) Name() string        { return p.name }
func (p *fakePlugin) Version() string     { return "1.0.0" }
func (p *fakePlugin) Description() string { return "fake" }
func (p *fakePlugin) RunsOn() []string    { return p.runsOn }
func (p *fakePlugin) Requires() []string  { return p.requires }
func (p *fakePlugin) OnLoad(c *core.Core) error { return p.loadErr }
func (p *fakePlugin) OnEnable(c *core.Core, subscribe SubscribeFunc) error {
	if p.enableErr != nil {
		return p.enableErr
	}
	p.enabled = true
	if p.subscribeAt != nil {
		p.subscribeAt(subscribe)
	}
	return nil
}
func (p *fakePlugin) OnDisable(c *core.Core) error {
	p.enabled = false
	return nil
}

func newTestCore(t *testing.T) *core.Core {
	t.Helper()
	cfg := config.Default()
	cfg.DatabasePath = t.TempDir() + "/test.db"
	c, err := core.New(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return c
}

func TestRegistry_FiltersByDevice(t *testing.T) {
	c := newTestCore(t)
	a := &fakePlugin{name: "a", runsOn: []string{"rei"}}
	b := &fakePlugin{name: "b", runsOn: []string{"both"}}

	r := New(c, "desktop", []Plugin{a, b})
	names := []string{}
	for _, info := range r.List() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"b"}, names)
}

func TestLoadAll_SkipsPluginWithUnmetDependency(t *testing.T) {
	c := newTestCore(t)
	a := &fakePlugin{name: "a", runsOn: []string{"both"}, requires: []string{"missing"}}

	r := New(c, "desktop", []Plugin{a})
	r.LoadAll()

	assert.Equal(t, "declared", r.List()[0].State)
}

func TestEnableDisable_Lifecycle(t *testing.T) {
	c := newTestCore(t)
	var gotSub eventbus.Subscription
	a := &fakePlugin{
		name:   "a",
		runsOn: []string{"both"},
		subscribeAt: func(subscribe SubscribeFunc) {
			subscribe("links.added", func(eventbus.Message) {})
		},
	}

	r := New(c, "desktop", []Plugin{a})
	r.LoadAll()
	require.NoError(t, r.Enable("a"))
	assert.True(t, a.enabled)
	assert.Equal(t, 1, c.Bus.SubscriberCount("links.added"))

	require.NoError(t, r.Disable("a"))
	assert.False(t, a.enabled)
	assert.Equal(t, 0, c.Bus.SubscriberCount("links.added"))
	_ = gotSub
}

func TestEnable_MarksDisabledOnError(t *testing.T) {
	c := newTestCore(t)
	a := &fakePlugin{name: "a", runsOn: []string{"both"}, enableErr: assertErr()}

	r := New(c, "desktop", []Plugin{a})
	r.LoadAll()
	err := r.Enable("a")
	assert.Error(t, err)
	assert.Equal(t, "disabled", r.List()[0].State)
}

func assertErr() error { return assertErrValue }

var assertErrValue = fakeErr("boom")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
