package plugin

import (
	"holocene.dev/holod/core"
	"holocene.dev/holod/linkhealth"
)

// LinkHealthPlugin hosts the scheduled link prober as a plugin, per
// spec.md §4.7 ("a plugin-hosted worker"). OnEnable starts the worker's
// loop and ad-hoc-check subscriptions; OnDisable stops it.
type LinkHealthPlugin struct {
	tuning linkhealth.Tuning
	pinger linkhealth.HealthPinger
	worker *linkhealth.Worker
}

// NewLinkHealthPlugin builds a LinkHealthPlugin. pinger may be nil to
// disable the external healthcheck push.
func NewLinkHealthPlugin(tuning linkhealth.Tuning, pinger linkhealth.HealthPinger) *LinkHealthPlugin {
	return &LinkHealthPlugin{tuning: tuning, pinger: pinger}
}

func (p *LinkHealthPlugin) Name() string        { return "link_health" }
func (p *LinkHealthPlugin) Version() string     { return "1.0.0" }
func (p *LinkHealthPlugin) Description() string { return "scheduled batch link-health prober" }
func (p *LinkHealthPlugin) RunsOn() []string    { return []string{"both"} }
func (p *LinkHealthPlugin) Requires() []string  { return nil }

func (p *LinkHealthPlugin) OnLoad(c *core.Core) error {
	p.worker = linkhealth.New(c.Store, c.Bus, p.tuning, p.pinger)
	return nil
}

// OnEnable starts the worker, routing its ad-hoc-check subscriptions
// through the registry's tracking wrapper so Disable force-unsubscribes
// them.
func (p *LinkHealthPlugin) OnEnable(c *core.Core, subscribe SubscribeFunc) error {
	p.worker.Start(subscribe)
	return nil
}

func (p *LinkHealthPlugin) OnDisable(c *core.Core) error {
	p.worker.Stop(c.Config.DrainBudget)
	return nil
}
