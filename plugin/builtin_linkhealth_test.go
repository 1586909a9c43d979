package plugin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holocene.dev/holod/linkhealth"
)

func TestLinkHealthPluginLifecycle(t *testing.T) {
	c := newTestCore(t)
	lhp := NewLinkHealthPlugin(linkhealth.Tuning{
		BatchSize:          1,
		CheckInterval:      time.Hour,
		DelayBetweenChecks: time.Millisecond,
		RequestTimeout:     time.Second,
		MaxLinkAge:         21 * 24 * time.Hour,
	}, nil)

	r := New(c, "default", []Plugin{lhp})
	r.LoadAll()
	require.NoError(t, r.Enable("link_health"))

	// Ad-hoc check channels were registered through the tracked subscribe
	// wrapper, so disabling force-unsubscribes them.
	assert.Equal(t, 2, c.Bus.SubscriberCount("links.check_batch")+c.Bus.SubscriberCount("link.check_requested"))

	require.NoError(t, r.Disable("link_health"))
	assert.Equal(t, 0, c.Bus.SubscriberCount("links.check_batch")+c.Bus.SubscriberCount("link.check_requested"))
}
