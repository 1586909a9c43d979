package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

func TestUpsertLink_CreatesThenUpdates(t *testing.T) {
	s := newTestStore(t)

	id1, wasNew1, err := s.UpsertLink("https://example.com/post?utm_source=x", "telegram", "A Post")
	require.NoError(t, err)
	assert.True(t, wasNew1)

	id2, wasNew2, err := s.UpsertLink("https://example.com/post?utm_campaign=y", "web", "")
	require.NoError(t, err)
	assert.False(t, wasNew2)
	assert.Equal(t, id1, id2)

	link, err := s.GetLink(id1)
	require.NoError(t, err)
	assert.Equal(t, "A Post", link.Title)
}

func TestRecordSnapshotSuccess_SetsTrustTier(t *testing.T) {
	s := newTestStore(t)
	id, _, err := s.UpsertLink("https://example.org/a", "telegram", "")
	require.NoError(t, err)

	err = s.RecordSnapshotSuccess(id, "internet_archive", "https://web.archive.org/x", time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	link, err := s.GetLink(id)
	require.NoError(t, err)
	assert.True(t, link.Archived)
	assert.Equal(t, string(TrustTierPreLLM), link.TrustTier)
}

func TestRecordSnapshotFailure_IncrementsAttemptsAndSchedulesRetry(t *testing.T) {
	s := newTestStore(t)
	id, _, err := s.UpsertLink("https://example.org/b", "telegram", "")
	require.NoError(t, err)

	attempts, nextRetry, err := s.RecordSnapshotFailure(id, "local_monolith", "connection refused")
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, nextRetry.After(time.Now().UTC()))

	snaps, err := s.GetArchiveSnapshots(id)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "failed", snaps[0].Status)
}

func TestGetTrustTier_Boundaries(t *testing.T) {
	assert.Equal(t, TrustTierPreLLM, GetTrustTier(time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, TrustTierEarlyLLM, GetTrustTier(time.Date(2022, 11, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, TrustTierRecent, GetTrustTier(time.Date(2022, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func TestGetLinksDueForCheck_SkipsRecentlyChecked(t *testing.T) {
	s := newTestStore(t)
	id, _, err := s.UpsertLink("https://example.org/c", "telegram", "")
	require.NoError(t, err)
	require.NoError(t, s.RecordLinkCheck(id, 200, "ok"))

	due, err := s.GetLinksDueForCheck(10, 21*24*time.Hour)
	require.NoError(t, err)
	for _, l := range due {
		assert.NotEqual(t, id, l.ID)
	}
}

func TestAuthTokenLifecycle(t *testing.T) {
	s := newTestStore(t)
	user, err := s.GetOrCreateUser(42, "alice")
	require.NoError(t, err)

	at, err := s.CreateAuthToken(user.ID, "tok-123", 5*time.Minute)
	require.NoError(t, err)
	assert.Nil(t, at.UsedAt)

	redeemed, err := s.RedeemAuthToken("tok-123", "203.0.113.7", "curl/8.0")
	require.NoError(t, err)
	assert.NotNil(t, redeemed.UsedAt)
	assert.Equal(t, "203.0.113.7", redeemed.IPAddress)
	assert.Equal(t, "curl/8.0", redeemed.UserAgent)

	_, err = s.RedeemAuthToken("tok-123", "203.0.113.7", "curl/8.0")
	assert.Error(t, err)
}

func TestSettingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.GetSetting("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSetting("theme", "dark"))
	require.NoError(t, s.SetSetting("theme", "light"))

	val, ok, err := s.GetSetting("theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "light", val)
}
