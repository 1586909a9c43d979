// Package plugin implements the daemon's plugin lifecycle, grounded on
// original_source/core/plugin_registry.py's PluginRegistry. Per spec.md
// §9's redesign note, plugins here are a closed, build-time-enumerated
// Go slice rather than dynamically discovered files — "discovery"
// filters that fixed slice by device instead of scanning a directory.
package plugin

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"holocene.dev/holod/common"
	"holocene.dev/holod/core"
	"holocene.dev/holod/eventbus"
)

func logger() *logrus.Entry {
	return common.Logger.WithField("component", "plugin_registry")
}

// State is a plugin's position in the Declared → Loaded → Enabled ↔
// Disabled lifecycle. Enabled → Loaded is not a valid transition;
// re-enabling goes straight from Disabled.
type State int

const (
	Declared State = iota
	Loaded
	Enabled
	Disabled
)

func (s State) String() string {
	switch s {
	case Declared:
		return "declared"
	case Loaded:
		return "loaded"
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Plugin is one self-describing unit of the daemon's plugin system.
type Plugin interface {
	Name() string
	Version() string
	Description() string
	// RunsOn lists devices this plugin may load on; "both" matches any
	// device.
	RunsOn() []string
	// Requires lists plugin names that must already be loaded.
	Requires() []string

	OnLoad(c *core.Core) error
	OnEnable(c *core.Core, subscribe SubscribeFunc) error
	OnDisable(c *core.Core) error
}

// SubscribeFunc lets a plugin subscribe to the event bus while letting
// the registry track the subscription for forced cleanup on disable.
type SubscribeFunc func(channel string, handler eventbus.Handler)

type entry struct {
	plugin Plugin
	state  State
	subs   []eventbus.Subscription
}

// Registry holds the closed set of plugins passed to New, filtered to
// those matching device.
type Registry struct {
	core    *core.Core
	device  string
	entries []*entry
	byName  map[string]*entry
}

// New builds a registry over the given plugins scoped to device. The
// plugin set is whatever the caller passes at startup — a closed,
// enumerated list, not something discovered at runtime.
func New(c *core.Core, device string, plugins []Plugin) *Registry {
	r := &Registry{core: c, device: device, byName: make(map[string]*entry)}
	for _, p := range plugins {
		if !matchesDevice(p.RunsOn(), device) {
			continue
		}
		e := &entry{plugin: p, state: Declared}
		r.entries = append(r.entries, e)
		r.byName[p.Name()] = e
	}
	return r
}

func matchesDevice(runsOn []string, device string) bool {
	for _, d := range runsOn {
		if d == device || d == "both" {
			return true
		}
	}
	return false
}

// LoadAll loads every declared plugin in registration order. A plugin
// whose OnLoad returns an error is skipped and the registry continues
// with the rest.
func (r *Registry) LoadAll() {
	for _, e := range r.entries {
		r.load(e)
	}
}

func (r *Registry) load(e *entry) {
	if e.state != Declared {
		return
	}
	for _, dep := range e.plugin.Requires() {
		depEntry, ok := r.byName[dep]
		if !ok || depEntry.state == Declared {
			logger().WithField("plugin", e.plugin.Name()).Errorf("missing required dependency %q, skipping load", dep)
			return
		}
	}
	if err := e.plugin.OnLoad(r.core); err != nil {
		logger().WithField("plugin", e.plugin.Name()).WithError(err).Error("plugin on_load failed, skipping")
		return
	}
	e.state = Loaded
}

// EnableAll enables every loaded plugin in load order.
func (r *Registry) EnableAll() {
	for _, e := range r.entries {
		r.Enable(e.plugin.Name())
	}
}

// Enable transitions a Loaded or Disabled plugin to Enabled.
func (r *Registry) Enable(name string) error {
	e, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("plugin %q not found", name)
	}
	if e.state != Loaded && e.state != Disabled {
		return fmt.Errorf("plugin %q cannot be enabled from state %s", name, e.state)
	}

	subscribe := func(channel string, handler eventbus.Handler) {
		sub := r.core.Bus.Subscribe(channel, handler)
		e.subs = append(e.subs, sub)
	}
	if err := e.plugin.OnEnable(r.core, subscribe); err != nil {
		logger().WithField("plugin", name).WithError(err).Error("plugin on_enable failed")
		e.state = Disabled
		return err
	}
	e.state = Enabled
	return nil
}

// DisableAll disables every enabled plugin in reverse load order.
func (r *Registry) DisableAll() {
	for i := len(r.entries) - 1; i >= 0; i-- {
		r.Disable(r.entries[i].plugin.Name())
	}
}

// Disable transitions an Enabled plugin to Disabled, force-unsubscribing
// any channels it registered. on_disable errors are logged and
// swallowed so shutdown is never blocked.
func (r *Registry) Disable(name string) error {
	e, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("plugin %q not found", name)
	}
	if e.state != Enabled {
		return nil
	}
	if err := e.plugin.OnDisable(r.core); err != nil {
		logger().WithField("plugin", name).WithError(err).Error("plugin on_disable failed")
	}
	for _, sub := range e.subs {
		r.core.Bus.Unsubscribe(sub)
	}
	e.subs = nil
	e.state = Disabled
	return nil
}

// PluginInfo is the JSON-facing summary of one plugin's state.
type PluginInfo struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	RunsOn      []string `json:"runs_on"`
	Requires    []string `json:"requires"`
	State       string   `json:"state"`
}

// List returns every plugin scoped to this registry's device.
func (r *Registry) List() []PluginInfo {
	out := make([]PluginInfo, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, PluginInfo{
			Name:        e.plugin.Name(),
			Version:     e.plugin.Version(),
			Description: e.plugin.Description(),
			RunsOn:      e.plugin.RunsOn(),
			Requires:    e.plugin.Requires(),
			State:       e.state.String(),
		})
	}
	return out
}

// Shutdown disables every plugin still enabled, in reverse load order.
func (r *Registry) Shutdown() {
	r.DisableAll()
}
