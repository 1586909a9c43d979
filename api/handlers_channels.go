package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleChannelsList returns every channel with at least one subscriber.
// Channels that only have history are not listed.
func (s *Server) handleChannelsList(c echo.Context) error {
	return c.JSON(http.StatusOK, s.bus.ListChannels())
}

// handleChannelHistory returns a channel's recent message history.
func (s *Server) handleChannelHistory(c echo.Context) error {
	limit, _ := parsePagination(c)
	history := s.bus.History(c.Param("name"), limit)
	return c.JSON(http.StatusOK, history)
}

// publishRequest is the JSON body accepted by POST /channels/{c}/publish.
type publishRequest struct {
	Data any `json:"data"`
}

// handleChannelPublish publishes a caller-supplied payload onto a
// channel, attributed to "api".
func (s *Server) handleChannelPublish(c echo.Context) error {
	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	s.bus.Publish(c.Param("name"), req.Data, "api")
	return c.JSON(http.StatusOK, map[string]any{"status": "published"})
}
