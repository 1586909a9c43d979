// Package core is the daemon's composition root: it owns the
// long-lived dependencies (Config, Store, EventBus, BackgroundRunner)
// and a settable back-reference to the PluginRegistry so plugins can
// enumerate peers once the registry exists.
package core

import (
	"sync"

	"holocene.dev/holod/config"
	"holocene.dev/holod/eventbus"
	"holocene.dev/holod/runner"
	"holocene.dev/holod/store"
)

// Registry is the minimal surface Core needs from a plugin registry,
// avoiding an import cycle with package plugin (which itself depends on
// Core).
type Registry interface {
	Shutdown()
}

// Core holds every long-lived daemon dependency.
type Core struct {
	Config  config.Config
	Store   *store.Store
	Bus     *eventbus.Bus
	Runner  *runner.Pool
	Plugins Registry

	shutdownOnce sync.Once
}

// New builds Core's store, event bus, and background runner from cfg.
// Plugins is left nil; the caller sets it immediately after building the
// registry via SetPlugins.
func New(cfg config.Config) (*Core, error) {
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return &Core{
		Config: cfg,
		Store:  st,
		Bus:    eventbus.New(100),
		Runner: runner.New(cfg.BackgroundWorkers),
	}, nil
}

// SetPlugins wires the registry back-reference, done once the registry
// has been constructed with this Core.
func (c *Core) SetPlugins(registry Registry) {
	c.Plugins = registry
}

// Shutdown stops the runner and closes the store. Idempotent.
func (c *Core) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.Runner.Shutdown(c.Config.DrainBudget)
		_ = c.Store.Close()
	})
}
