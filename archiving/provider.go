// Package archiving coordinates local and remote web-archiving
// providers and the persistent retry ledger, grounded on
// original_source/storage/archiving.py's ArchivingService.
package archiving

import (
	"context"
	"time"
)

// Result is one provider's outcome for a single archive attempt.
type Result struct {
	Status      string // "success" or "failed"
	ArtifactRef string // filesystem path for local providers, URL for remote
	Metadata    map[string]any
	Error       string
}

// Provider archives one URL. Every provider must honor ctx's deadline.
type Provider interface {
	Name() string
	Archive(ctx context.Context, url string, timeout time.Duration) (Result, error)
}
