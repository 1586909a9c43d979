package linkhealth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// UptimeKumaPinger pushes a health summary to a configured Uptime
// Kuma-style push monitor URL, generalizing
// _report_health_to_uptime_kuma to any compatible endpoint per
// spec.md §6.
type UptimeKumaPinger struct {
	PushURL string
	client  *http.Client
}

// NewUptimeKumaPinger builds a pinger targeting pushURL.
func NewUptimeKumaPinger(pushURL string) *UptimeKumaPinger {
	return &UptimeKumaPinger{PushURL: pushURL, client: &http.Client{}}
}

// Push reports alive/total as an "up" or "down" status depending on
// whether at least 90% of links are alive, matching the original's
// health_pct >= 90 threshold.
func (p *UptimeKumaPinger) Push(ctx context.Context, alive, total int) error {
	if p.PushURL == "" {
		return nil
	}
	status := "up"
	healthPct := 100.0
	if total > 0 {
		healthPct = float64(alive) / float64(total) * 100
		if healthPct < 90 {
			status = "down"
		}
	}
	msg := fmt.Sprintf("%d/%d alive (%.1f%%)", alive, total, healthPct)

	u := fmt.Sprintf("%s?status=%s&msg=%s", p.PushURL, status, url.QueryEscape(msg))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
