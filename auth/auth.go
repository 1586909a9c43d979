// Package auth implements the daemon's magic-link and bearer-token
// authentication, grounded on spec.md §4.8 and auth/auth.go (teacher)
// for token-handling and audit-log texture; the teacher's actual
// username/password login flow is replaced outright since spec.md
// §4.8 has no such concept.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"holocene.dev/holod/apperr"
	"holocene.dev/holod/security"
	"holocene.dev/holod/store"
)

// botUserAgentSubstrings are known link-preview-bot User-Agent
// fragments; requests carrying one are served a static page without
// touching the token, per spec.md §4.8.
var botUserAgentSubstrings = []string{
	"telegrambot", "whatsapp", "facebookexternalhit", "slackbot",
	"discordbot", "twitterbot", "linkedinbot",
}

// IsLinkPreviewBot reports whether userAgent looks like an automated
// link-unfurling crawler rather than a genuine visit.
func IsLinkPreviewBot(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	for _, substr := range botUserAgentSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}

// Service issues and validates magic-link and bearer credentials.
type Service struct {
	store        *store.Store
	magicLinkTTL time.Duration
	signingKey   []byte
}

// NewService builds a Service, loading (or generating and persisting on
// first run) the session signing key from
// DaemonSetting("flask_secret_key").
func NewService(st *store.Store, magicLinkTTL time.Duration) (*Service, error) {
	key, err := loadOrCreateSigningKey(st)
	if err != nil {
		return nil, err
	}
	return &Service{store: st, magicLinkTTL: magicLinkTTL, signingKey: key}, nil
}

func loadOrCreateSigningKey(st *store.Store) ([]byte, error) {
	existing, ok, err := st.GetSetting("flask_secret_key")
	if err != nil {
		return nil, err
	}
	if ok {
		return hex.DecodeString(existing)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "generate signing key", err)
	}
	if err := st.SetSetting("flask_secret_key", hex.EncodeToString(key)); err != nil {
		return nil, err
	}
	return key, nil
}

// IssueMagicLink generates a 256-bit URL-safe token and persists a
// single-use AuthToken for userID, valid for the service's configured
// TTL.
func (s *Service) IssueMagicLink(userID uint) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", apperr.Wrap(apperr.Internal, "generate magic link token", err)
	}
	token := base64.RawURLEncoding.EncodeToString(tokenBytes)

	if _, err := s.store.CreateAuthToken(userID, token, s.magicLinkTTL); err != nil {
		return "", err
	}
	return token, nil
}

// RedeemMagicLink atomically validates and consumes token, recording
// the visitor's IP/user-agent.
func (s *Service) RedeemMagicLink(token, ipAddress, userAgent string) (store.AuthToken, error) {
	return s.store.RedeemAuthToken(token, ipAddress, userAgent)
}

// IssueApiToken mints a new long-lived bearer token for userID.
func (s *Service) IssueApiToken(userID uint, name string) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", apperr.Wrap(apperr.Internal, "generate api token", err)
	}
	token := base64.RawURLEncoding.EncodeToString(tokenBytes)

	if _, err := s.store.CreateApiToken(userID, token, name); err != nil {
		return "", err
	}
	return token, nil
}

// ValidateBearer checks an Authorization: Bearer token, returning the
// owning user ID. A successful match stamps the token's last_used_at.
func (s *Service) ValidateBearer(token string) (uint, error) {
	apiToken, err := s.store.FindApiToken(token)
	if err != nil {
		return 0, err
	}
	return apiToken.UserID, nil
}

const sessionCookieName = "holod_session"

// SignSession produces a signed cookie value carrying userID, using an
// HMAC over the signing key.
func (s *Service) SignSession(userID uint) string {
	payload := uintToString(userID)
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(payload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return payload + "." + sig
}

// VerifySession checks a signed session cookie value and returns the
// carried user ID.
func (s *Service) VerifySession(value string) (uint, error) {
	parts := strings.SplitN(value, ".", 2)
	if len(parts) != 2 {
		return 0, apperr.New(apperr.AuthInvalid, "malformed session cookie")
	}
	payload, sig := parts[0], parts[1]

	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(payload))
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return 0, apperr.New(apperr.AuthInvalid, "session signature mismatch")
	}
	return stringToUint(payload)
}

// Authenticate accepts either a valid session cookie or an
// Authorization: Bearer header, returning the authenticated user ID.
func (s *Service) Authenticate(r *http.Request) (uint, error) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if userID, err := s.VerifySession(cookie.Value); err == nil {
			return userID, nil
		}
	}

	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimPrefix(header, "Bearer ")
		return s.ValidateBearer(token)
	}

	return 0, apperr.New(apperr.AuthRequired, "authentication required")
}

// SessionCookieName is the name of the signed session cookie.
func SessionCookieName() string { return sessionCookieName }

const adminBootstrapSettingKey = "admin_bootstrap_secret_hash"

// BootstrapAdminSecret generates and persists (bcrypt-hashed, never
// stored in plaintext) a one-time secret an operator uses to claim the
// first admin account, returning the plaintext exactly once. Calling
// this when a secret already exists is a no-op that returns
// ("", false, nil).
func (s *Service) BootstrapAdminSecret() (secret string, generated bool, err error) {
	if _, ok, err := s.store.GetSetting(adminBootstrapSettingKey); err != nil {
		return "", false, err
	} else if ok {
		return "", false, nil
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", false, apperr.Wrap(apperr.Internal, "generate admin bootstrap secret", err)
	}
	secret = base64.RawURLEncoding.EncodeToString(raw)

	hash, err := security.HashSecret(secret)
	if err != nil {
		return "", false, apperr.Wrap(apperr.Internal, "hash admin bootstrap secret", err)
	}
	if err := s.store.SetSetting(adminBootstrapSettingKey, hash); err != nil {
		return "", false, err
	}
	return secret, true, nil
}

// ClaimAdmin verifies secret against the persisted bootstrap hash and,
// on success, promotes the given user to admin.
func (s *Service) ClaimAdmin(secret string, telegramUserID int64) (store.User, error) {
	hash, ok, err := s.store.GetSetting(adminBootstrapSettingKey)
	if err != nil {
		return store.User{}, err
	}
	if !ok {
		return store.User{}, apperr.New(apperr.NotFound, "no admin bootstrap secret configured")
	}
	if err := security.VerifySecret(hash, secret); err != nil {
		return store.User{}, apperr.New(apperr.AuthInvalid, "invalid admin bootstrap secret")
	}

	user, err := s.store.GetOrCreateUser(telegramUserID, "")
	if err != nil {
		return store.User{}, err
	}
	if err := s.store.PromoteAdmin(user.ID); err != nil {
		return store.User{}, err
	}
	user.IsAdmin = true
	return user, nil
}

func uintToString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func stringToUint(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}
