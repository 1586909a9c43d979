package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"holocene.dev/holod/auth"
)

// handleAuthLogin completes a magic-link login. Requests whose
// User-Agent matches a known link-preview bot are served a static page
// without touching the token, per spec.md §4.8.
func (s *Server) handleAuthLogin(c echo.Context) error {
	if auth.IsLinkPreviewBot(c.Request().UserAgent()) {
		return c.HTML(http.StatusOK, "<html><body>holod login link</body></html>")
	}

	token := c.QueryParam("token")
	if token == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing token"})
	}

	redeemed, err := s.auth.RedeemMagicLink(token, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid or expired token"})
	}

	cookie := &http.Cookie{
		Name:     auth.SessionCookieName(),
		Value:    s.auth.SignSession(redeemed.UserID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	}
	c.SetCookie(cookie)
	return c.HTML(http.StatusOK, "<html><body>Login successful.</body></html>")
}

// handleAuthStatus reports whether the caller currently carries a valid
// credential.
func (s *Server) handleAuthStatus(c echo.Context) error {
	userID, err := s.auth.Authenticate(c.Request())
	if err != nil {
		return c.JSON(http.StatusOK, map[string]any{"authenticated": false})
	}
	return c.JSON(http.StatusOK, map[string]any{"authenticated": true, "user_id": userID})
}

// handleAuthLogout clears the session cookie. Bearer-token clients have
// nothing to clear server-side; revocation is out of this endpoint's
// scope.
func (s *Server) handleAuthLogout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookieName(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
	})
	return c.JSON(http.StatusOK, map[string]any{"status": "logged_out"})
}

// requireAuth is Echo middleware enforcing either a signed session
// cookie or an Authorization: Bearer token, per spec.md §4.8.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := s.auth.Authenticate(c.Request())
		if err != nil {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		}
		c.Set("user_id", userID)
		return next(c)
	}
}
