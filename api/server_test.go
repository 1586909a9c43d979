package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holocene.dev/holod/archiving"
	"holocene.dev/holod/auth"
	"holocene.dev/holod/eventbus"
	"holocene.dev/holod/store"
)

type testServer struct {
	*Server
	store       *store.Store
	archiveRoot string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	bus := eventbus.New(50)
	authSvc, err := auth.NewService(st, time.Minute)
	require.NoError(t, err)
	archSvc := archiving.NewService(st, nil, nil, nil, 10)

	archiveRoot := filepath.Join(dir, "archives")
	require.NoError(t, os.MkdirAll(archiveRoot, 0o755))

	cfg := DefaultConfig()
	cfg.ArchiveRoot = archiveRoot
	srv := New(cfg, st, bus, nil, authSvc, archSvc)

	return &testServer{Server: srv, store: st, archiveRoot: archiveRoot}
}

func TestHealthIsUnauthenticated(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLinksRequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/links", nil)
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLinksCreateAndListWithBearer(t *testing.T) {
	ts := newTestServer(t)
	user, err := ts.store.GetOrCreateUser(42, "tester")
	require.NoError(t, err)
	token, err := ts.auth.IssueApiToken(user.ID, "test")
	require.NoError(t, err)

	createReq := httptest.NewRequest(http.MethodPost, "/links", strings.NewReader(`{"url":"https://example.com/a","source":"test"}`))
	createReq.Header.Set("Content-Type", "application/json")
	createReq.Header.Set("Authorization", "Bearer "+token)
	createRec := httptest.NewRecorder()
	ts.echo.ServeHTTP(createRec, createReq)
	require.Equal(t, http.StatusOK, createRec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/links", nil)
	listReq.Header.Set("Authorization", "Bearer "+token)
	listRec := httptest.NewRecorder()
	ts.echo.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)
	assert.Contains(t, listRec.Body.String(), "example.com")
}

func TestServeSnapshotFileStripsEmbeddedCSPMetaTag(t *testing.T) {
	ts := newTestServer(t)

	monoDir := filepath.Join(ts.archiveRoot, "monolith")
	require.NoError(t, os.MkdirAll(monoDir, 0o755))
	page := `<html><head><meta http-equiv="Content-Security-Policy" content="default-src *"><title>x</title></head><body>hi</body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(monoDir, "a.html"), []byte(page), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	c := ts.echo.NewContext(req, rec)

	snap := store.ArchiveSnapshot{Service: "local_monolith", SnapshotURL: "monolith/a.html"}
	require.NoError(t, ts.serveSnapshotFile(c, snap))

	assert.Equal(t, "default-src 'self'", rec.Header().Get("Content-Security-Policy"))
	assert.NotContains(t, strings.ToLower(rec.Body.String()), "content-security-policy")
	assert.Contains(t, rec.Body.String(), "hi")
}

func TestResolveArchivePathRejectsEscape(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.resolveArchivePath("../../etc/passwd")
	assert.Error(t, err)

	ok, err := ts.resolveArchivePath("monolith/example.html")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ok, ts.archiveRoot))
}
