package archiving

import (
	"context"
	"fmt"
	"time"
)

// IASaveClient is the out-of-scope Internet Archive Save Page Now
// client (spec.md §6 names it an external collaborator); this module
// only defines the interface its provider depends on.
type IASaveClient interface {
	Save(ctx context.Context, url string) (snapshotURL string, err error)
}

// IAProvider wraps an IASaveClient. It submits every URL it is given;
// the skip-on-prior-success policy for (link_id, internet_archive) is
// applied by Service.ArchiveURL, not by the provider.
type IAProvider struct {
	client IASaveClient
}

// NewIAProvider builds a provider over client.
func NewIAProvider(client IASaveClient) *IAProvider {
	return &IAProvider{client: client}
}

func (p *IAProvider) Name() string { return "internet_archive" }

// Archive submits url to the Internet Archive. Dedup-on-prior-success is
// applied by the caller (Service.ArchiveURL), not here, since only the
// caller knows the link's snapshot history.
func (p *IAProvider) Archive(ctx context.Context, rawURL string, timeout time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	snapshotURL, err := p.client.Save(ctx, rawURL)
	if err != nil {
		return Result{Status: "failed", Error: fmt.Sprintf("internet archive save: %v", err)}, nil
	}
	return Result{Status: "success", ArtifactRef: snapshotURL}, nil
}
