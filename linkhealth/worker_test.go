package linkhealth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holocene.dev/holod/eventbus"
	"holocene.dev/holod/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunBatchCheck_ClassifiesAliveAndDead(t *testing.T) {
	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer alive.Close()
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer dead.Close()

	st := newTestStore(t)
	_, _, err := st.UpsertLink(alive.URL+"/a", "test", "")
	require.NoError(t, err)
	_, _, err = st.UpsertLink(dead.URL+"/b", "test", "")
	require.NoError(t, err)

	bus := eventbus.New(10)
	tuning := DefaultTuning()
	tuning.DelayBetweenChecks = time.Millisecond
	tuning.RequestTimeout = 2 * time.Second
	w := New(st, bus, tuning, nil)

	stats := w.RunBatchCheck(context.Background(), 10)
	assert.Equal(t, 2, stats.Checked)
	assert.Equal(t, 1, stats.Alive)
	assert.Equal(t, 1, stats.Dead)
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, "alive", classifyStatus(checkResult{IsAlive: true}))
	assert.Equal(t, "not_found", classifyStatus(checkResult{StatusCode: 404}))
	assert.Equal(t, "forbidden", classifyStatus(checkResult{StatusCode: 403}))
	assert.Equal(t, "server_error", classifyStatus(checkResult{StatusCode: 503}))
	assert.Equal(t, "timeout", classifyStatus(checkResult{Error: "timeout"}))
	assert.Equal(t, "dead", classifyStatus(checkResult{StatusCode: 401}))
}
