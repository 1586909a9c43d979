package archiving

import (
	"context"
	"time"

	"holocene.dev/holod/common"
	"holocene.dev/holod/store"
)

// Options tunes one archive_url call.
type Options struct {
	RunLocal    bool
	LocalFormat string // "monolith" (default) or "warc"
	SubmitIA    bool
	ForceIA     bool
	UseArchiveBox bool
	Force       bool
	Timeout     time.Duration
}

// DefaultOptions matches spec.md §4.6 step 1's policy default: run
// local archiving first, in monolith format.
func DefaultOptions() Options {
	return Options{RunLocal: true, LocalFormat: "monolith", SubmitIA: true, UseArchiveBox: true, Timeout: 60 * time.Second}
}

// ServiceResult is archive_url's structured response.
type ServiceResult struct {
	Success  bool
	Services map[string]Result
	Errors   []string
}

// Service is the unified façade over the three archive providers,
// grounded on original_source/storage/archiving.py's ArchivingService:
// local → Internet Archive → ArchiveBox, recording snapshots and
// scheduling retries through Store.
type Service struct {
	store  *store.Store
	local  map[string]Provider // keyed by format: "monolith", "warc"
	ia     *IAProvider
	abox   *ArchiveBoxProvider
	maxAttempts int
}

// NewService builds a Service. Any provider may be nil to disable that
// leg of the orchestration (e.g. no ArchiveBox configured).
func NewService(st *store.Store, local map[string]Provider, ia *IAProvider, abox *ArchiveBoxProvider, maxAttempts int) *Service {
	return &Service{store: st, local: local, ia: ia, abox: abox, maxAttempts: maxAttempts}
}

// Providers bundles the provider set buildable before Store exists
// (e.g. from a daemon entrypoint during flag/env parsing); NewService
// is called once Core has opened its Store.
type Providers struct {
	Local       map[string]Provider
	IA          *IAProvider
	ArchiveBox  *ArchiveBoxProvider
	MaxAttempts int
}

// Build finalizes a Service once st is available.
func (p Providers) Build(st *store.Store) *Service {
	return NewService(st, p.Local, p.IA, p.ArchiveBox, p.MaxAttempts)
}

// ArchiveURL runs the configured providers for one link, in order:
// local, Internet Archive (skipping on prior success unless forced),
// ArchiveBox (skipping over threshold unless forced). Every attempt —
// success or failure — is recorded via Store before moving to the next
// provider.
func (s *Service) ArchiveURL(ctx context.Context, linkID uint, rawURL string, opts Options) ServiceResult {
	result := ServiceResult{Services: make(map[string]Result)}

	if opts.RunLocal {
		if provider, ok := s.local[opts.LocalFormat]; ok && provider != nil {
			s.runProvider(ctx, linkID, provider, rawURL, opts.Timeout, &result)
		}
	}

	if opts.SubmitIA && s.ia != nil {
		if !opts.ForceIA {
			if prior, ok := s.lastSuccess(linkID, s.ia.Name()); ok {
				result.Services[s.ia.Name()] = Result{Status: "already_archived", ArtifactRef: prior.SnapshotURL}
				result.Success = true
			} else {
				s.runProvider(ctx, linkID, s.ia, rawURL, opts.Timeout, &result)
			}
		} else {
			s.runProvider(ctx, linkID, s.ia, rawURL, opts.Timeout, &result)
		}
	}

	if opts.UseArchiveBox && s.abox != nil {
		depth, err := s.abox.QueueDepth(ctx)
		if err == nil && depth > s.abox.queueThreshold && !opts.Force {
			result.Errors = append(result.Errors, "archivebox queue depth exceeds threshold, skipped")
		} else {
			s.runProvider(ctx, linkID, s.abox, rawURL, opts.Timeout, &result)
		}
	}

	return result
}

func (s *Service) runProvider(ctx context.Context, linkID uint, provider Provider, rawURL string, timeout time.Duration, result *ServiceResult) {
	res, err := provider.Archive(ctx, rawURL, timeout)
	if err != nil {
		res = Result{Status: "failed", Error: err.Error()}
	}
	result.Services[provider.Name()] = res

	if res.Status == "success" {
		result.Success = true
		archiveDate := time.Now().UTC()
		if uerr := s.store.RecordSnapshotSuccess(linkID, provider.Name(), res.ArtifactRef, archiveDate); uerr != nil {
			common.Logger.WithField("component", "archiving.service").WithError(uerr).Error("failed to record snapshot success")
		}
		return
	}

	attempts, nextRetry, uerr := s.store.RecordSnapshotFailure(linkID, provider.Name(), res.Error)
	if uerr != nil {
		common.Logger.WithField("component", "archiving.service").WithError(uerr).Error("failed to record snapshot failure")
		result.Errors = append(result.Errors, uerr.Error())
		return
	}
	common.Logger.WithField("component", "archiving.service").
		WithField("service", provider.Name()).
		WithField("attempts", attempts).
		WithField("next_retry_after", nextRetry).
		Warn("archive attempt failed")
	result.Errors = append(result.Errors, res.Error)
}

// lastSuccess finds the most recent successful snapshot for
// (linkID, service), if any.
func (s *Service) lastSuccess(linkID uint, service string) (store.ArchiveSnapshot, bool) {
	snaps, err := s.store.GetArchiveSnapshots(linkID)
	if err != nil {
		return store.ArchiveSnapshot{}, false
	}
	for _, snap := range snaps {
		if snap.Service == service && snap.Status == "success" {
			return snap, true
		}
	}
	return store.ArchiveSnapshot{}, false
}

// RetryFailed re-runs eligible failed snapshots via the matching
// provider, bounded to limit rows per invocation, mirroring
// archiving.py's retry_failed_archives.
func (s *Service) RetryFailed(ctx context.Context, limit int) ServiceResult {
	result := ServiceResult{Services: make(map[string]Result)}

	eligible, err := s.store.GetRetryEligibleSnapshots(s.maxAttempts, limit)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	for _, snap := range eligible {
		provider := s.providerFor(snap.Service)
		if provider == nil {
			continue
		}
		link, err := s.store.GetLink(snap.LinkID)
		if err != nil {
			continue
		}
		s.runProvider(ctx, link.ID, provider, link.URL, 60*time.Second, &result)
	}
	return result
}

func (s *Service) providerFor(service string) Provider {
	switch service {
	case "local_monolith":
		return s.local["monolith"]
	case "local_warc":
		return s.local["warc"]
	case "internet_archive":
		return s.ia
	case "archivebox":
		return s.abox
	default:
		return nil
	}
}

// GetArchiveStatus aggregates every snapshot for a link into
// has_local/has_cloud flags plus the raw snapshot list, per
// archiving.py's get_archive_status.
type ArchiveStatus struct {
	HasLocal  bool
	HasCloud  bool
	Snapshots []store.ArchiveSnapshot
}

func (s *Service) GetArchiveStatus(linkID uint) (ArchiveStatus, error) {
	snaps, err := s.store.GetArchiveSnapshots(linkID)
	if err != nil {
		return ArchiveStatus{}, err
	}
	status := ArchiveStatus{Snapshots: snaps}
	for _, snap := range snaps {
		if snap.Status != "success" {
			continue
		}
		switch snap.Service {
		case "local_monolith", "local_warc":
			status.HasLocal = true
		case "internet_archive", "archivebox":
			status.HasCloud = true
		}
	}
	return status, nil
}

// ToolInfo describes which archive providers are configured, per
// archiving.py's get_tool_info.
type ToolInfo struct {
	LocalFormats    []string
	IAConfigured    bool
	ArchiveBoxHost  string
}

func (s *Service) GetToolInfo() ToolInfo {
	info := ToolInfo{IAConfigured: s.ia != nil}
	for format, provider := range s.local {
		if provider != nil {
			info.LocalFormats = append(info.LocalFormats, format)
		}
	}
	if s.abox != nil {
		info.ArchiveBoxHost = s.abox.host
	}
	return info
}
