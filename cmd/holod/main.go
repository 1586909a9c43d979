// Command holod is the daemon entrypoint: it builds a Config, assembles
// the built-in plugin set and archiving providers, and runs Daemon in
// the foreground until a termination signal arrives.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/client"

	"holocene.dev/holod/archiving"
	"holocene.dev/holod/common"
	"holocene.dev/holod/config"
	"holocene.dev/holod/daemon"
	"holocene.dev/holod/linkhealth"
	"holocene.dev/holod/plugin"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "holod:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := buildConfig()

	device := os.Getenv("HOLOD_DEVICE")
	if device == "" {
		device = cfg.Device
	}

	providers := buildArchivingProviders(cfg)

	var pinger linkhealth.HealthPinger
	if cfg.HealthcheckURL != "" {
		pinger = linkhealth.NewUptimeKumaPinger(cfg.HealthcheckURL)
	}
	tuning := linkhealth.Tuning{
		BatchSize:          cfg.LinkHealthBatchSize,
		CheckInterval:      cfg.LinkHealthCheckInterval,
		DelayBetweenChecks: cfg.LinkHealthDelayBetween,
		RequestTimeout:     cfg.LinkHealthRequestTimeout,
		MaxLinkAge:         cfg.LinkHealthMaxAge,
	}
	plugins := []plugin.Plugin{
		plugin.NewLinkHealthPlugin(tuning, pinger),
	}

	d := daemon.New(cfg, device)
	if err := d.Start(plugins, providers); err != nil {
		return err
	}
	common.Logger.WithField("component", "main").Infof("holod started (device=%s, http=%s)", device, cfg.HTTPAddr)

	d.Run()
	return nil
}

// buildConfig applies environment overrides on top of config.Default.
// Full config-file loading is out of scope for the core per spec.md §6;
// this is the thin front-end that owns that seam.
func buildConfig() config.Config {
	cfg := config.Default()
	if dir := os.Getenv("HOLOD_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
		cfg.DatabasePath = filepath.Join(dir, "holocene.db")
		cfg.ArchiveRoot = filepath.Join(dir, "archives")
	}
	if addr := os.Getenv("HOLOD_HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if url := os.Getenv("HOLOD_HEALTHCHECK_URL"); url != "" {
		cfg.HealthcheckURL = url
	}
	if url := os.Getenv("HOLOD_REDIS_URL"); url != "" {
		cfg.RedisURL = url
	}
	cfg.ArchiveBoxSSHHost = os.Getenv("HOLOD_ARCHIVEBOX_HOST")
	cfg.ArchiveBoxSSHUser = os.Getenv("HOLOD_ARCHIVEBOX_USER")
	cfg.ArchiveBoxSSHKeyFile = os.Getenv("HOLOD_ARCHIVEBOX_KEY_FILE")
	cfg.ArchiveBoxDataDir = os.Getenv("HOLOD_ARCHIVEBOX_DATA_DIR")
	cfg.S3MirrorBucket = os.Getenv("HOLOD_S3_BUCKET")
	cfg.S3MirrorRegion = os.Getenv("HOLOD_S3_REGION")
	return cfg
}

// buildArchivingProviders wires up whichever archive providers the
// environment has credentials for; any leg left unconfigured is simply
// omitted (ArchivingService tolerates nil providers). Store is supplied
// later by Daemon.Start, once Core has opened it.
func buildArchivingProviders(cfg config.Config) archiving.Providers {
	local := map[string]archiving.Provider{}
	if dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation()); err == nil {
		// LocalProvider adds the format subdirectory ("monolith") itself.
		local["monolith"] = archiving.NewLocalProvider(dockerClient, "monolith-archiver:latest", "monolith", cfg.ArchiveRoot)
	} else {
		common.Logger.WithField("component", "main").WithError(err).Warn("docker client unavailable, local archiving disabled")
	}

	var abox *archiving.ArchiveBoxProvider
	if cfg.ArchiveBoxSSHHost != "" {
		cache, err := archiving.NewQueueDepthCache(cfg.RedisURL, "archivebox:queue_depth", time.Minute)
		if err != nil {
			common.Logger.WithField("component", "main").WithError(err).Warn("queue-depth cache unavailable, probing live each time")
		}
		abox = archiving.NewArchiveBoxProvider(
			cfg.ArchiveBoxSSHHost, cfg.ArchiveBoxSSHUser, cfg.ArchiveBoxSSHKeyFile,
			cfg.ArchiveBoxKnownHosts, cfg.ArchiveBoxDataDir, cache, cfg.ArchiveBoxQueueThreshold,
		)
	}

	// No in-core Internet Archive client is implemented; spec.md §6
	// treats the IA save endpoint as an external collaborator the
	// deployer supplies.
	var ia *archiving.IAProvider

	return archiving.Providers{Local: local, IA: ia, ArchiveBox: abox, MaxAttempts: cfg.ArchiveRetryMaxAttempts}
}
