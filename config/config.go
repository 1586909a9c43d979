// Package config describes the shape of the daemon's configuration
// surface. Loading is out of scope for the core (spec §6): some other
// process front-end reads files/env/secrets and hands Core a fully
// populated, immutable Config at construction time.
package config

import "time"

// Config is the immutable configuration snapshot Daemon passes to Core.
// No core package reads an environment variable or a config file
// directly; this struct is the only seam. The cmd/holod entrypoint
// applies HOLOD_* environment overrides on top of Default.
type Config struct {
	// DataDir is the host data directory (default ~/.holocene/).
	DataDir string
	// Device identifies the current host for plugin runs_on filtering.
	Device string

	// HTTPAddr is the address APIServer listens on, e.g. ":5555".
	HTTPAddr string

	// BaseURL prefixes magic-link URLs handed to the messaging side-channel.
	BaseURL string

	// ArchiveRoot is the filesystem root local snapshots are written
	// under and served from; every archive-viewer path resolution must
	// stay a descendant of this directory.
	ArchiveRoot string

	// DatabasePath is the SQLite file path under DataDir.
	DatabasePath string

	// BackgroundWorkers sizes the BackgroundRunner pool.
	BackgroundWorkers int

	// LinkHealth tunes LinkHealthWorker.
	LinkHealthBatchSize       int
	LinkHealthCheckInterval   time.Duration
	LinkHealthDelayBetween    time.Duration
	LinkHealthRequestTimeout  time.Duration
	LinkHealthMaxAge          time.Duration
	HealthcheckURL            string

	// Archiving tunes ArchivingService.
	ArchiveBoxQueueThreshold int
	ArchiveRetryMaxAttempts  int
	ArchiveRetryBatchLimit   int

	// ArchiveBox connection, reached over SSH.
	ArchiveBoxSSHHost     string
	ArchiveBoxSSHUser     string
	ArchiveBoxSSHKeyFile  string
	ArchiveBoxDataDir     string
	ArchiveBoxKnownHosts  string

	// RedisURL backs the ArchiveBox queue-depth probe cache; empty disables caching.
	RedisURL string

	// S3Mirror optionally mirrors local archive files off-site.
	S3MirrorBucket string
	S3MirrorRegion string

	// MagicLinkTTL bounds auth token lifetime (default 5 minutes).
	MagicLinkTTL time.Duration

	// Shutdown bounds worker drain time on stop (default 5s per worker).
	DrainBudget time.Duration
}

// Default returns sensible defaults for local development; a real
// deployment overrides fields from its own config loader.
func Default() Config {
	return Config{
		DataDir:                  "~/.holocene",
		Device:                   "default",
		HTTPAddr:                 ":5555",
		BaseURL:                  "http://localhost:5555",
		ArchiveRoot:              "~/.holocene/archives",
		DatabasePath:             "~/.holocene/holocene.db",
		BackgroundWorkers:        4,
		LinkHealthBatchSize:      50,
		LinkHealthCheckInterval:  time.Hour,
		LinkHealthDelayBetween:   1500 * time.Millisecond,
		LinkHealthRequestTimeout: 15 * time.Second,
		LinkHealthMaxAge:         21 * 24 * time.Hour,
		ArchiveBoxQueueThreshold: 20,
		ArchiveRetryMaxAttempts:  10,
		ArchiveRetryBatchLimit:   50,
		MagicLinkTTL:             5 * time.Minute,
		DrainBudget:              5 * time.Second,
	}
}
