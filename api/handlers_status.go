package api

import "github.com/labstack/echo/v4"

// handleIndex serves a minimal HTML landing page, unauthenticated.
func (s *Server) handleIndex(c echo.Context) error {
	return c.HTML(200, "<html><body><h1>holod</h1><p>Personal knowledge-management daemon.</p></body></html>")
}

// handleHealth is a liveness probe: always 200 while the process answers.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(200, map[string]any{"status": "healthy"})
}

// handleStatus surfaces aggregate daemon state: link health stats,
// channels with subscribers, and the plugin list when a registry is set.
func (s *Server) handleStatus(c echo.Context) error {
	stats, err := s.store.GetLinkHealthStats()
	if err != nil {
		return err
	}
	resp := map[string]any{
		"status":   "ok",
		"links":    stats,
		"channels": s.bus.ListChannels(),
	}
	if s.plugins != nil {
		resp["plugins"] = s.plugins.List()
	}
	return c.JSON(200, resp)
}
