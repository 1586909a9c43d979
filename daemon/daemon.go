// Package daemon is the process supervisor: PID file, signal handling,
// start/stop ordering, and the healthcheck ticker. Grounded on
// original_source/daemon/holod.py's HoloceneDaemon for lifecycle shape,
// and http/runner.go (teacher) for the signal.Notify/graceful-shutdown
// idiom.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"holocene.dev/holod/api"
	"holocene.dev/holod/archiving"
	"holocene.dev/holod/auth"
	"holocene.dev/holod/common"
	"holocene.dev/holod/config"
	"holocene.dev/holod/core"
	"holocene.dev/holod/linkhealth"
	"holocene.dev/holod/plugin"
)

func logger() *logrus.Entry { return common.Logger.WithField("component", "daemon") }

// Daemon owns the process: PID file, signal handling, and the ordered
// start/stop of Core, PluginRegistry, APIServer, and the healthcheck
// ticker.
type Daemon struct {
	cfg    config.Config
	device string

	core     *core.Core
	registry *plugin.Registry
	apiSrv   *api.Server
	auth     *auth.Service

	pidFile string
	running bool

	healthStop chan struct{}
	healthDone chan struct{}
}

// New builds a Daemon for the given config and device identifier. It
// does not start anything; call Start.
func New(cfg config.Config, device string) *Daemon {
	return &Daemon{
		cfg:     cfg,
		device:  device,
		pidFile: filepath.Join(cfg.DataDir, "holod.pid"),
	}
}

// IsRunning reports whether a live process currently owns the PID file,
// cleaning up a stale file if the recorded PID is dead.
func (d *Daemon) IsRunning() bool {
	data, err := os.ReadFile(d.pidFile)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		_ = os.Remove(d.pidFile)
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		_ = os.Remove(d.pidFile)
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 is the liveness probe.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		_ = os.Remove(d.pidFile)
		return false
	}
	return true
}

func (d *Daemon) writePIDFile() error {
	if err := os.MkdirAll(filepath.Dir(d.pidFile), 0o755); err != nil {
		return err
	}
	return os.WriteFile(d.pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (d *Daemon) removePIDFile() {
	_ = os.Remove(d.pidFile)
}

// Start acquires the PID file, builds Core and the plugin registry,
// loads/enables plugins, and starts the API server (in its own
// goroutine) and the healthcheck ticker. It returns once everything is
// started; Run installs the signal handlers and blocks until a stop
// signal arrives.
func (d *Daemon) Start(plugins []plugin.Plugin, providers archiving.Providers) error {
	if d.IsRunning() {
		return fmt.Errorf("holod is already running")
	}
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}

	c, err := core.New(d.cfg)
	if err != nil {
		d.removePIDFile()
		return fmt.Errorf("init core: %w", err)
	}
	d.core = c

	registry := plugin.New(c, d.device, plugins)
	c.SetPlugins(registry)
	d.registry = registry

	registry.LoadAll()
	registry.EnableAll()
	for _, p := range registry.List() {
		logger().Infof("plugin %s v%s: %s", p.Name, p.Version, p.State)
	}

	authSvc, err := auth.NewService(c.Store, d.cfg.MagicLinkTTL)
	if err != nil {
		d.shutdownPartial()
		return fmt.Errorf("init auth: %w", err)
	}
	d.auth = authSvc

	archSvc := providers.Build(c.Store)

	apiCfg := api.DefaultConfig()
	apiCfg.Addr = d.cfg.HTTPAddr
	apiCfg.ArchiveRoot = d.cfg.ArchiveRoot
	d.apiSrv = api.New(apiCfg, c.Store, c.Bus, registry, authSvc, archSvc)

	go func() {
		if err := d.apiSrv.Start(d.cfg.HTTPAddr); err != nil {
			logger().WithError(err).Error("api server stopped with error")
		}
	}()
	logger().Infof("REST API listening on %s", d.cfg.HTTPAddr)

	d.startHealthcheck()
	d.running = true
	return nil
}

// Run blocks, installing SIGTERM/SIGINT handlers, until a stop signal
// arrives, then calls Stop.
func (d *Daemon) Run() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger().Info("received shutdown signal")
	d.Stop()
}

func (d *Daemon) startHealthcheck() {
	if d.cfg.HealthcheckURL == "" {
		return
	}
	d.healthStop = make(chan struct{})
	d.healthDone = make(chan struct{})
	go func() {
		defer close(d.healthDone)
		pinger := linkhealth.NewUptimeKumaPinger(d.cfg.HealthcheckURL)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := pinger.Push(context.Background(), 1, 1); err != nil {
					logger().WithError(err).Warn("healthcheck ping failed")
				}
			case <-d.healthStop:
				return
			}
		}
	}()
}

func (d *Daemon) stopHealthcheck() {
	if d.healthStop == nil {
		return
	}
	close(d.healthStop)
	select {
	case <-d.healthDone:
	case <-time.After(5 * time.Second):
		logger().Warn("healthcheck worker stop timed out")
	}
}

// Stop reverses Start's order: healthcheck, API, plugins (reverse load
// order, handled internally by Registry.DisableAll), Core, PID file.
// Safe to call once; a second call is a no-op.
func (d *Daemon) Stop() {
	if !d.running {
		return
	}
	d.running = false

	d.stopHealthcheck()

	if d.apiSrv != nil {
		if err := d.apiSrv.Shutdown(d.cfg.DrainBudget); err != nil {
			logger().WithError(err).Warn("api shutdown error")
		}
	}
	if d.registry != nil {
		d.registry.DisableAll()
	}
	if d.core != nil {
		d.core.Shutdown()
	}
	d.removePIDFile()
	logger().Info("holod stopped")
}

// shutdownPartial tears down whatever was already built when Start
// fails midway, so a failed start never leaves the PID file or Core
// dangling.
func (d *Daemon) shutdownPartial() {
	if d.registry != nil {
		d.registry.DisableAll()
	}
	if d.core != nil {
		d.core.Shutdown()
	}
	d.removePIDFile()
}

// Status mirrors HoloceneDaemon.status()'s dict shape.
type Status struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	Device  string `json:"device,omitempty"`
	Plugins int    `json:"plugins,omitempty"`
	API     string `json:"api,omitempty"`
	Message string `json:"message"`
}

// GetStatus reports whether holod is running and, if so, its PID,
// device, plugin count, and API address.
func (d *Daemon) GetStatus() Status {
	if !d.IsRunning() {
		return Status{Running: false, Message: "holod is not running"}
	}
	data, _ := os.ReadFile(d.pidFile)
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))

	pluginCount := 0
	if d.registry != nil {
		pluginCount = len(d.registry.List())
	}
	apiAddr := ""
	if d.apiSrv != nil {
		apiAddr = d.cfg.HTTPAddr
	}
	return Status{
		Running: true,
		PID:     pid,
		Device:  d.device,
		Plugins: pluginCount,
		API:     apiAddr,
		Message: "holod is running",
	}
}
