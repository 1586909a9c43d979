// Package linkhealth implements the scheduled batch link prober,
// grounded on original_source/plugins/link_status_checker.py's
// LinkStatusCheckerPlugin.
package linkhealth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"holocene.dev/holod/common"
	"holocene.dev/holod/eventbus"
	"holocene.dev/holod/store"
)

// Tuning mirrors link_status_checker.py's class constants.
type Tuning struct {
	BatchSize          int
	CheckInterval      time.Duration
	DelayBetweenChecks time.Duration
	RequestTimeout     time.Duration
	MaxLinkAge         time.Duration
}

// DefaultTuning matches the Python plugin's defaults.
func DefaultTuning() Tuning {
	return Tuning{
		BatchSize:          50,
		CheckInterval:      time.Hour,
		DelayBetweenChecks: 1500 * time.Millisecond,
		RequestTimeout:     15 * time.Second,
		MaxLinkAge:         21 * 24 * time.Hour,
	}
}

// HealthPinger reports aggregate link-health stats to an external
// monitor (e.g. Uptime Kuma), generalizing
// _report_health_to_uptime_kuma. A nil pinger disables reporting.
type HealthPinger interface {
	Push(ctx context.Context, alive, total int) error
}

// Stats is one batch's outcome, mirroring batch_stats/session_stats.
type Stats struct {
	Checked int
	Alive   int
	Dead    int
	Errors  int
}

// Worker probes stored links on a schedule and on ad-hoc EventBus
// requests.
type Worker struct {
	store   *store.Store
	bus     *eventbus.Bus
	client  *http.Client
	tuning  Tuning
	pinger  HealthPinger
	stop    chan struct{}
	stopped chan struct{}
}

// New builds a Worker. Start launches its scheduled loop; it also
// subscribes to links.check_batch and link.check_requested.
func New(st *store.Store, bus *eventbus.Bus, tuning Tuning, pinger HealthPinger) *Worker {
	return &Worker{
		store:  st,
		bus:    bus,
		tuning: tuning,
		pinger: pinger,
		client: &http.Client{},
		stop:   make(chan struct{}),
	}
}

// Start subscribes to ad-hoc check events and launches the scheduled
// batch-check loop in a new goroutine. subscribe registers the two
// ad-hoc channels; passing the bus's own Subscribe works, but callers
// hosting the worker as a plugin should pass a tracking wrapper so
// disabling the plugin force-unsubscribes these handlers.
func (w *Worker) Start(subscribe func(channel string, handler eventbus.Handler)) {
	if subscribe == nil {
		subscribe = func(channel string, handler eventbus.Handler) { w.bus.Subscribe(channel, handler) }
	}
	subscribe("links.check_batch", func(msg eventbus.Message) {
		batchSize := w.tuning.BatchSize
		if data, ok := msg.Data.(map[string]any); ok {
			if v, ok := data["batch_size"].(int); ok && v > 0 {
				batchSize = v
			}
		}
		w.RunBatchCheck(context.Background(), batchSize)
	})
	subscribe("link.check_requested", func(msg eventbus.Message) {
		data, ok := msg.Data.(map[string]any)
		if !ok {
			return
		}
		linkID, ok := data["link_id"].(uint)
		if !ok {
			return
		}
		w.checkOne(context.Background(), linkID)
	})

	w.stopped = make(chan struct{})
	go w.loop()
}

// Stop signals the scheduled loop to exit and waits for it, bounded by
// budget.
func (w *Worker) Stop(budget time.Duration) {
	close(w.stop)
	select {
	case <-w.stopped:
	case <-time.After(budget):
		common.Logger.WithField("component", "linkhealth").Warn("worker stop timed out")
	}
}

func (w *Worker) loop() {
	defer close(w.stopped)

	// Initial settle delay, matching the 30s wait before the first batch.
	select {
	case <-time.After(30 * time.Second):
	case <-w.stop:
		return
	}

	for {
		w.RunBatchCheck(context.Background(), w.tuning.BatchSize)

		select {
		case <-time.After(w.tuning.CheckInterval):
		case <-w.stop:
			return
		}
	}
}

func (w *Worker) checkOne(ctx context.Context, linkID uint) {
	link, err := w.store.GetLink(linkID)
	if err != nil {
		common.Logger.WithField("component", "linkhealth").WithError(err).Warnf("link %d not found for check", linkID)
		return
	}
	result := w.checkLink(ctx, link.URL)
	w.updateLinkStatus(link.ID, result)
}

// RunBatchCheck fetches up to batchSize due links, probes each, and
// emits a links.batch_checked event plus an optional healthcheck push.
func (w *Worker) RunBatchCheck(ctx context.Context, batchSize int) Stats {
	links, err := w.store.GetLinksDueForCheck(batchSize, w.tuning.MaxLinkAge)
	if err != nil {
		common.Logger.WithField("component", "linkhealth").WithError(err).Error("failed to fetch links due for check")
		return Stats{}
	}
	if len(links) == 0 {
		w.reportHealth(ctx)
		return Stats{}
	}

	var stats Stats
	for _, link := range links {
		select {
		case <-w.stop:
			return stats
		default:
		}

		result := w.checkLink(ctx, link.URL)
		w.updateLinkStatus(link.ID, result)
		stats.Checked++
		if result.IsAlive {
			stats.Alive++
		} else {
			stats.Dead++
		}

		time.Sleep(w.tuning.DelayBetweenChecks)
	}

	w.bus.Publish("links.batch_checked", map[string]any{"stats": stats}, "linkhealth")
	w.reportHealth(ctx)
	return stats
}

// checkResult mirrors _check_link's result dict.
type checkResult struct {
	StatusCode    int
	IsAlive       bool
	Error         string
	ResponseTime  time.Duration
}

// checkLink issues a HEAD request with redirect-following, falling back
// to a streamed GET closed before the body is consumed when the server
// rejects HEAD.
func (w *Worker) checkLink(ctx context.Context, rawURL string) checkResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, w.tuning.RequestTimeout)
	defer cancel()

	resp, err := w.doRequest(ctx, http.MethodHead, rawURL)
	if err == nil && resp.StatusCode == http.StatusMethodNotAllowed {
		resp.Body.Close()
		resp, err = w.doRequest(ctx, http.MethodGet, rawURL)
		if err == nil {
			resp.Body.Close()
		}
	}
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	return checkResult{
		StatusCode:   resp.StatusCode,
		IsAlive:      resp.StatusCode >= 200 && resp.StatusCode < 400,
		ResponseTime: time.Since(start),
	}
}

func (w *Worker) doRequest(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; HoloceneBot/1.0)")
	return w.client.Do(req)
}

func classifyError(err error) checkResult {
	var urlErr *url.Error
	switch {
	case errors.As(err, &urlErr) && urlErr.Timeout():
		return checkResult{Error: "timeout"}
	case errors.As(err, &urlErr) && strings.Contains(urlErr.Error(), "too many redirects"):
		return checkResult{Error: "too_many_redirects"}
	case errors.As(err, &urlErr) && (strings.Contains(urlErr.Error(), "no such host") || strings.Contains(urlErr.Error(), "server misbehaving")):
		return checkResult{Error: "dns_error"}
	default:
		return checkResult{Error: "connection_error"}
	}
}

// classifyStatus maps an outcome to the status string spec.md §4.7
// names: alive, not_found, forbidden, server_error, dead, timeout,
// connection_error, dns_error, too_many_redirects.
func classifyStatus(result checkResult) string {
	switch {
	case result.IsAlive:
		return "alive"
	case result.Error == "timeout", result.Error == "connection_error", result.Error == "dns_error", result.Error == "too_many_redirects":
		return result.Error
	case result.StatusCode == http.StatusNotFound:
		return "not_found"
	case result.StatusCode == http.StatusForbidden:
		return "forbidden"
	case result.StatusCode >= 500:
		return "server_error"
	default:
		return "dead"
	}
}

func (w *Worker) updateLinkStatus(linkID uint, result checkResult) {
	status := classifyStatus(result)
	if err := w.store.RecordLinkCheck(linkID, result.StatusCode, status); err != nil {
		common.Logger.WithField("component", "linkhealth").WithError(err).Warnf("failed to update link %d status", linkID)
	}
}

func (w *Worker) reportHealth(ctx context.Context) {
	if w.pinger == nil {
		return
	}
	total, alive, err := w.healthCounts()
	if err != nil {
		return
	}
	if err := w.pinger.Push(ctx, alive, total); err != nil {
		common.Logger.WithField("component", "linkhealth").WithError(err).Warn("healthcheck push failed")
	}
}

func (w *Worker) healthCounts() (total, alive int, err error) {
	stats, err := w.store.GetLinkHealthStats()
	if err != nil {
		return 0, 0, err
	}
	return stats.Total, stats.Alive, nil
}
