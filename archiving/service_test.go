package archiving

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holocene.dev/holod/store"
)

type fakeProvider struct {
	name   string
	result Result
	err    error
	calls  int
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Archive(ctx context.Context, url string, timeout time.Duration) (Result, error) {
	f.calls++
	return f.result, f.err
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestArchiveURL_RunsLocalThenRecordsSuccess(t *testing.T) {
	st := newTestStore(t)
	id, _, err := st.UpsertLink("https://example.com/x", "test", "")
	require.NoError(t, err)

	local := &fakeProvider{name: "local_monolith", result: Result{Status: "success", ArtifactRef: "/archives/x.html"}}
	svc := NewService(st, map[string]Provider{"monolith": local}, nil, nil, 10)

	result := svc.ArchiveURL(context.Background(), id, "https://example.com/x", Options{RunLocal: true, LocalFormat: "monolith", Timeout: time.Second})
	assert.True(t, result.Success)
	assert.Equal(t, 1, local.calls)

	link, err := st.GetLink(id)
	require.NoError(t, err)
	assert.True(t, link.Archived)
}

func TestArchiveURL_SkipsIAWhenPriorSuccessExists(t *testing.T) {
	st := newTestStore(t)
	id, _, err := st.UpsertLink("https://example.com/y", "test", "")
	require.NoError(t, err)
	require.NoError(t, st.RecordSnapshotSuccess(id, "internet_archive", "https://web.archive.org/y", time.Now().UTC()))

	ia := NewIAProvider(fakeIAClient{})
	svc := NewService(st, nil, ia, nil, 10)

	result := svc.ArchiveURL(context.Background(), id, "https://example.com/y", Options{SubmitIA: true, Timeout: time.Second})
	assert.Equal(t, "already_archived", result.Services["internet_archive"].Status)
}

type fakeIAClient struct{}

func (fakeIAClient) Save(ctx context.Context, url string) (string, error) {
	return "https://web.archive.org/fresh", nil
}

func TestArchiveURL_RecordsFailureAndBackoff(t *testing.T) {
	st := newTestStore(t)
	id, _, err := st.UpsertLink("https://example.com/z", "test", "")
	require.NoError(t, err)

	local := &fakeProvider{name: "local_monolith", result: Result{Status: "failed", Error: "timeout"}}
	svc := NewService(st, map[string]Provider{"monolith": local}, nil, nil, 10)

	result := svc.ArchiveURL(context.Background(), id, "https://example.com/z", Options{RunLocal: true, LocalFormat: "monolith", Timeout: time.Second})
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)

	link, err := st.GetLink(id)
	require.NoError(t, err)
	assert.Equal(t, 1, link.ArchiveAttempts)
}

func TestGetArchiveStatus_AggregatesLocalAndCloud(t *testing.T) {
	st := newTestStore(t)
	id, _, err := st.UpsertLink("https://example.com/w", "test", "")
	require.NoError(t, err)
	require.NoError(t, st.RecordSnapshotSuccess(id, "local_monolith", "/archives/w.html", time.Now().UTC()))
	require.NoError(t, st.RecordSnapshotSuccess(id, "internet_archive", "https://web.archive.org/w", time.Now().UTC()))

	svc := NewService(st, nil, nil, nil, 10)
	status, err := svc.GetArchiveStatus(id)
	require.NoError(t, err)
	assert.True(t, status.HasLocal)
	assert.True(t, status.HasCloud)
}
