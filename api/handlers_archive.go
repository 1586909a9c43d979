package api

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"

	"holocene.dev/holod/store"
)

// metaCSPTag matches an embedded <meta http-equiv="Content-Security-Policy" ...>
// tag, which monolith bakes into every snapshot it produces and which
// would otherwise override the CSP header this server sets on serving.
var metaCSPTag = regexp.MustCompile(`(?is)<meta\s+http-equiv=["']?content-security-policy["']?[^>]*>`)

// resolveArchivePath joins the configured archive root with a
// caller-influenced relative path and confirms the resolved, symlink-
// evaluated path is still a descendant of the root, per spec.md §4.9
// and §8's path-traversal testable property. Every file-serving handler
// in this package routes through here rather than joining paths itself.
func (s *Server) resolveArchivePath(rel string) (string, error) {
	root, err := filepath.Abs(s.archiveRoot)
	if err != nil {
		return "", err
	}
	joined := filepath.Join(root, rel)

	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolvedRoot = root
	}
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		// File may not exist yet under its symlink-resolved form; fall
		// back to the lexically-cleaned path for the containment check.
		resolved = filepath.Clean(joined)
	}

	if resolved != resolvedRoot && !strings.HasPrefix(resolved, resolvedRoot+string(filepath.Separator)) {
		return "", errPathEscape
	}
	return resolved, nil
}

var errPathEscape = &pathEscapeError{}

type pathEscapeError struct{}

func (*pathEscapeError) Error() string { return "resolved path escapes archive root" }

// handleMonoLatest serves the most recent local_monolith snapshot for a link.
func (s *Server) handleMonoLatest(c echo.Context) error {
	return s.serveMono(c, "latest")
}

// handleMono serves a local_monolith snapshot by "latest", "first", or
// a 1-based index N.
func (s *Server) handleMono(c echo.Context) error {
	return s.serveMono(c, c.Param("which"))
}

func (s *Server) serveMono(c echo.Context, which string) error {
	id, err := parseID(c.Param("link_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid link id"})
	}
	snaps, err := s.store.GetArchiveSnapshots(id)
	if err != nil {
		return err
	}
	monoSnaps := filterService(snaps, "local_monolith")
	snap, ok := pickSnapshot(monoSnaps, which)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "no monolith snapshot found"})
	}
	return s.serveSnapshotFile(c, snap)
}

// handleSnapshot serves an ArchiveSnapshot's local artifact by snapshot ID.
func (s *Server) handleSnapshot(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid snapshot id"})
	}
	snap, err := s.store.GetSnapshot(id)
	if err != nil {
		return err
	}
	return s.serveSnapshotFile(c, snap)
}

// handleBox renders a banner page pointing at an ArchiveBox-hosted
// snapshot rather than proxying the remote archive and rewriting its
// body, since the remote ArchiveBox instance is an external
// collaborator out of scope per spec.md §6 (unlike local_monolith
// snapshots, which this process owns end-to-end in serveSnapshotFile
// and can read/rewrite directly).
func (s *Server) handleBox(c echo.Context) error {
	id, err := parseID(c.Param("snapshot_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid snapshot id"})
	}
	snap, err := s.store.GetSnapshot(id)
	if err != nil {
		return err
	}
	if snap.Service != "archivebox" {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not an archivebox snapshot"})
	}
	banner := `<div style="background:#222;color:#fff;padding:8px;font:13px sans-serif">` +
		`Archived copy served via ArchiveBox &mdash; original: ` + snap.SnapshotURL + `</div>`
	return c.HTML(http.StatusOK, "<html><body>"+banner+"<p>See "+snap.SnapshotURL+"</p></body></html>")
}

func (s *Server) serveSnapshotFile(c echo.Context, snap store.ArchiveSnapshot) error {
	resolved, err := s.resolveArchivePath(snap.SnapshotURL)
	if err != nil {
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	}

	if snap.Service != "local_monolith" {
		return c.File(resolved)
	}

	// monolith embeds its own <meta http-equiv="content-security-policy">
	// tag in every snapshot; per spec.md §4.9 that tag must be stripped
	// so the header set below is the only CSP in effect, rather than
	// the page's own (typically far looser) baked-in policy.
	raw, err := os.ReadFile(resolved)
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "snapshot file not found"})
	}
	cleaned := metaCSPTag.ReplaceAll(raw, nil)

	c.Response().Header().Set("Content-Security-Policy", "default-src 'self'")
	return c.HTMLBlob(http.StatusOK, cleaned)
}

func filterService(snaps []store.ArchiveSnapshot, service string) []store.ArchiveSnapshot {
	var out []store.ArchiveSnapshot
	for _, snap := range snaps {
		if snap.Service == service {
			out = append(out, snap)
		}
	}
	return out
}

// pickSnapshot selects from snaps (ordered newest-first by the store)
// per the "latest" | "first" | 1-based-index selector spec.md §4.9 names.
func pickSnapshot(snaps []store.ArchiveSnapshot, which string) (store.ArchiveSnapshot, bool) {
	if len(snaps) == 0 {
		return store.ArchiveSnapshot{}, false
	}
	switch which {
	case "", "latest":
		return snaps[0], true
	case "first":
		return snaps[len(snaps)-1], true
	default:
		idx, err := parseID(which)
		if err != nil || int(idx) < 1 || int(idx) > len(snaps) {
			return store.ArchiveSnapshot{}, false
		}
		// snaps is newest-first; index 1 means oldest to match "first".
		return snaps[len(snaps)-int(idx)], true
	}
}
