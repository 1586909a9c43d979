// Package api implements the daemon's REST/HTML surface, binding Store,
// EventBus, PluginRegistry, AuthSubsystem and ArchivingService together.
// Grounded on http/server.go (teacher): same middleware stack, same
// ErrorResponse shape (narrowed to {error}), same graceful-shutdown
// pattern.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"holocene.dev/holod/apperr"
	"holocene.dev/holod/archiving"
	"holocene.dev/holod/auth"
	"holocene.dev/holod/eventbus"
	"holocene.dev/holod/plugin"
	"holocene.dev/holod/store"
)

// Server hosts the daemon's HTTP surface.
type Server struct {
	echo *echo.Echo

	store     *store.Store
	bus       *eventbus.Bus
	plugins   *plugin.Registry
	auth      *auth.Service
	archiving *archiving.Service

	archiveRoot string
}

// Config tunes the Echo server itself, independent of the daemon Config
// struct so this package stays decoupled from package config.
type Config struct {
	Addr            string
	BodyLimit       string
	AllowedOrigins  []string
	RateLimit       float64 // requests/sec; 0 disables
	ShutdownTimeout time.Duration
	ArchiveRoot     string
}

// DefaultConfig mirrors the teacher's DefaultServerConfig defaults,
// adapted to this daemon's fixed default port.
func DefaultConfig() Config {
	return Config{
		Addr:            ":5555",
		BodyLimit:       "10M",
		AllowedOrigins:  []string{"*"},
		RateLimit:       0,
		ShutdownTimeout: 10 * time.Second,
	}
}

// New builds a Server and registers every route family.
func New(cfg Config, st *store.Store, bus *eventbus.Bus, plugins *plugin.Registry, authSvc *auth.Service, archSvc *archiving.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))
	e.Use(middleware.Recover())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
	e.Use(middleware.RequestID())
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))))
	}
	e.HTTPErrorHandler = CustomHTTPErrorHandler

	s := &Server{
		echo:        e,
		store:       st,
		bus:         bus,
		plugins:     plugins,
		auth:        authSvc,
		archiving:   archSvc,
		archiveRoot: cfg.ArchiveRoot,
	}
	s.routes()
	return s
}

// Start begins serving; blocks until Shutdown stops it or a fatal error
// occurs.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, bounded by timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/", s.handleIndex)
	e.GET("/health", s.handleHealth)
	e.GET("/status", s.handleStatus)

	e.GET("/auth/login", s.handleAuthLogin)
	e.GET("/auth/status", s.handleAuthStatus)
	e.POST("/auth/logout", s.handleAuthLogout)

	authed := e.Group("", s.requireAuth)

	authed.GET("/plugins", s.handlePluginsList)
	authed.GET("/plugins/:name", s.handlePluginInfo)
	authed.POST("/plugins/:name/enable", s.handlePluginEnable)
	authed.POST("/plugins/:name/disable", s.handlePluginDisable)

	authed.GET("/channels", s.handleChannelsList)
	authed.GET("/channels/:name/history", s.handleChannelHistory)
	authed.POST("/channels/:name/publish", s.handleChannelPublish)

	authed.GET("/links", s.handleLinksList)
	authed.POST("/links", s.handleLinksCreate)
	authed.GET("/links/:id", s.handleLinkGet)

	authed.GET("/books", s.handleBooksList)
	authed.POST("/books", s.handleBooksCreate)
	authed.GET("/books/:id", s.handleBookGet)

	authed.GET("/papers", s.handlePapersList)
	authed.POST("/papers", s.handlePapersCreate)
	authed.GET("/papers/:id", s.handlePaperGet)

	authed.GET("/mono/:link_id", s.handleMonoLatest)
	authed.GET("/mono/:link_id/:which", s.handleMono)
	authed.GET("/snapshot/:id", s.handleSnapshot)
	authed.GET("/box/:snapshot_id", s.handleBox)
}

// ErrorResponse is the daemon's uniform JSON error shape, narrowed from
// the teacher's {error, message, details} to the single field spec.md
// §4.9 names.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CustomHTTPErrorHandler maps apperr.Kind and echo.HTTPError into the
// daemon's flat JSON error shape, never leaking stack traces to clients.
func CustomHTTPErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "internal error"

	switch {
	case apperr.Is(err, apperr.Validation):
		code, message = http.StatusBadRequest, err.Error()
	case apperr.Is(err, apperr.NotFound):
		code, message = http.StatusNotFound, err.Error()
	case apperr.Is(err, apperr.AuthRequired), apperr.Is(err, apperr.AuthInvalid):
		code, message = http.StatusUnauthorized, err.Error()
	case apperr.Is(err, apperr.Conflict):
		code, message = http.StatusConflict, err.Error()
	default:
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			}
		} else if apperr.KindOf(err) != apperr.Internal {
			message = err.Error()
		}
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, ErrorResponse{Error: message})
}

func parsePagination(c echo.Context) (limit, offset int) {
	limit, offset = 100, 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := fmt.Sscanf(v, "%d", &limit); err != nil || n != 1 || limit <= 0 {
			limit = 100
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := fmt.Sscanf(v, "%d", &offset); err != nil || n != 1 || offset < 0 {
			offset = 0
		}
	}
	return limit, offset
}
