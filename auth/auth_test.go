package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holocene.dev/holod/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	svc, err := NewService(st, time.Hour)
	require.NoError(t, err)
	return svc, st
}

func TestIsLinkPreviewBot(t *testing.T) {
	assert.True(t, IsLinkPreviewBot("TelegramBot (like TwitterBot)"))
	assert.True(t, IsLinkPreviewBot("Mozilla/5.0 (compatible; Discordbot/2.0;)"))
	assert.False(t, IsLinkPreviewBot("Mozilla/5.0 (Windows NT 10.0; Win64; x64)"))
}

func TestSigningKeyPersistsAcrossServices(t *testing.T) {
	st := newTestStore(t)
	svc1, err := NewService(st, time.Hour)
	require.NoError(t, err)

	svc2, err := NewService(st, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, svc1.SignSession(42), svc2.SignSession(42))
}

func TestMagicLinkIssueAndRedeem(t *testing.T) {
	svc, st := newTestService(t)
	user, err := st.GetOrCreateUser(1001, "alice")
	require.NoError(t, err)

	token, err := svc.IssueMagicLink(user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	redeemed, err := svc.RedeemMagicLink(token, "127.0.0.1", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, user.ID, redeemed.UserID)
	assert.Equal(t, "127.0.0.1", redeemed.IPAddress)
	assert.Equal(t, "test-agent", redeemed.UserAgent)

	_, err = svc.RedeemMagicLink(token, "127.0.0.1", "test-agent")
	assert.Error(t, err)
}

func TestApiTokenIssueAndValidate(t *testing.T) {
	svc, st := newTestService(t)
	user, err := st.GetOrCreateUser(1002, "bob")
	require.NoError(t, err)

	token, err := svc.IssueApiToken(user.ID, "cli")
	require.NoError(t, err)

	userID, err := svc.ValidateBearer(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	stored, err := st.FindApiToken(token)
	require.NoError(t, err)
	require.NotNil(t, stored.LastUsedAt)

	_, err = svc.ValidateBearer("not-a-real-token")
	assert.Error(t, err)
}

func TestSessionSignAndVerifyRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	value := svc.SignSession(7)
	userID, err := svc.VerifySession(value)
	require.NoError(t, err)
	assert.EqualValues(t, 7, userID)

	_, err = svc.VerifySession(value + "tampered")
	assert.Error(t, err)

	_, err = svc.VerifySession("not-even-formatted-right")
	assert.Error(t, err)
}

func TestAuthenticatePrefersSessionThenBearer(t *testing.T) {
	svc, st := newTestService(t)
	user, err := st.GetOrCreateUser(1003, "carol")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName(), Value: svc.SignSession(user.ID)})
	gotID, err := svc.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, user.ID, gotID)

	token, err := svc.IssueApiToken(user.ID, "cli")
	require.NoError(t, err)
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.Header.Set("Authorization", "Bearer "+token)
	gotID2, err := svc.Authenticate(req2)
	require.NoError(t, err)
	assert.Equal(t, user.ID, gotID2)

	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = svc.Authenticate(req3)
	assert.Error(t, err)
}

func TestBootstrapAdminSecretAndClaim(t *testing.T) {
	svc, _ := newTestService(t)

	secret, generated, err := svc.BootstrapAdminSecret()
	require.NoError(t, err)
	assert.True(t, generated)
	assert.NotEmpty(t, secret)

	// Second call is a no-op; the plaintext is never recoverable again.
	again, generated2, err := svc.BootstrapAdminSecret()
	require.NoError(t, err)
	assert.False(t, generated2)
	assert.Empty(t, again)

	user, err := svc.ClaimAdmin(secret, 2001)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)

	_, err = svc.ClaimAdmin("wrong-secret", 2002)
	assert.Error(t, err)
}
