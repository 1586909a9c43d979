package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handlePluginsList returns every known plugin and its current state.
func (s *Server) handlePluginsList(c echo.Context) error {
	return c.JSON(http.StatusOK, s.plugins.List())
}

// handlePluginInfo returns a single plugin's info, or 404.
func (s *Server) handlePluginInfo(c echo.Context) error {
	name := c.Param("name")
	for _, p := range s.plugins.List() {
		if p.Name == name {
			return c.JSON(http.StatusOK, p)
		}
	}
	return c.JSON(http.StatusNotFound, ErrorResponse{Error: "plugin not found"})
}

// handlePluginEnable enables a plugin by name.
func (s *Server) handlePluginEnable(c echo.Context) error {
	if err := s.plugins.Enable(c.Param("name")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "enabled"})
}

// handlePluginDisable disables a plugin by name.
func (s *Server) handlePluginDisable(c echo.Context) error {
	if err := s.plugins.Disable(c.Param("name")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "disabled"})
}
