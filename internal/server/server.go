// file: internal/server/server.go
// version: 2.0.0
// guid: 4c5d6e7f-8a9b-0c1d-2e3f-4a5b6c7d8e9f

// Package server exposes the media library over HTTP: catalog pages, file
// streaming, archive downloads, metadata, and the watch-party websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jdfalk/mediashare/internal/archive"
	"github.com/jdfalk/mediashare/internal/catalog"
	"github.com/jdfalk/mediashare/internal/logging"
	"github.com/jdfalk/mediashare/internal/metadata"
	"github.com/jdfalk/mediashare/internal/metrics"
	"github.com/jdfalk/mediashare/internal/operations"
	"github.com/jdfalk/mediashare/internal/realtime"
	servermiddleware "github.com/jdfalk/mediashare/internal/server/middleware"
	"github.com/jdfalk/mediashare/internal/visitors"
)

// Deps are the services the HTTP layer serves. Library, Metadata, Archives,
// Queue, Visitors and Hub are required.
type Deps struct {
	Library   *catalog.Library
	Favorites *catalog.Index
	Metadata  *metadata.Cache
	Archives  *archive.Engine
	Queue     *operations.OperationQueue
	Visitors  *visitors.Registry
	Hub       *realtime.Hub
	PIN       *servermiddleware.PINChecker
	Sessions  *servermiddleware.SessionManager
	// RateLimitPerMinute caps requests per client IP. Zero disables it.
	RateLimitPerMinute int
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	upgrader   websocket.Upgrader
	started    time.Time

	library   *catalog.Library
	favorites *catalog.Index
	meta      *metadata.Cache
	archives  *archive.Engine
	queue     *operations.OperationQueue
	visitors  *visitors.Registry
	hub       *realtime.Hub
	pin       *servermiddleware.PINChecker
	sessions  *servermiddleware.SessionManager
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// GetDefaultServerConfig returns the listener settings used by serve. Write
// timeout stays zero: streams and archive downloads can run for hours.
func GetDefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            "8000",
		Host:            "0.0.0.0",
		ReadTimeout:     30 * time.Second,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
	}
}

// NewServer creates a new server instance
func NewServer(deps Deps) (*Server, error) {
	if deps.Library == nil || deps.Metadata == nil || deps.Archives == nil || deps.Visitors == nil || deps.Hub == nil {
		return nil, errors.New("server: missing required dependency")
	}
	if deps.PIN.Enabled() && deps.Sessions == nil {
		return nil, errors.New("server: a PIN requires a session manager")
	}
	if deps.Favorites == nil {
		deps.Favorites = catalog.NewIndex(deps.Library, catalog.DefaultIndexTTL)
	}

	// Register metrics (idempotent)
	metrics.Register()

	s := &Server{
		router:    gin.New(),
		upgrader:  realtime.NewUpgrader(),
		started:   time.Now(),
		library:   deps.Library,
		favorites: deps.Favorites,
		meta:      deps.Metadata,
		archives:  deps.Archives,
		queue:     deps.Queue,
		visitors:  deps.Visitors,
		hub:       deps.Hub,
		pin:       deps.PIN,
		sessions:  deps.Sessions,
	}

	if err := s.setupTemplates(); err != nil {
		return nil, err
	}

	s.router.Use(gin.Recovery())
	s.router.Use(RequestLogger("/api/zip_status/", "/download/", "/metadata_img/", "/static/"))
	s.router.Use(servermiddleware.MaxRequestBodySize(servermiddleware.DefaultBodyLimit))
	if deps.RateLimitPerMinute > 0 {
		limiter := servermiddleware.NewIPRateLimiter(deps.RateLimitPerMinute, deps.RateLimitPerMinute/2+1,
			"/download/", "/metadata_img/", "/static/", "/ws")
		s.router.Use(limiter.Middleware())
	}
	s.router.Use(servermiddleware.TrackVisitors(s.visitors))

	s.setupRoutes()
	return s, nil
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is canceled, then drains in-flight requests and
// closes the relay.
func (s *Server) Start(ctx context.Context, cfg ServerConfig) error {
	log := logging.With("http")
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("starting server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	s.hub.Close()

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("server exited")
	return nil
}

// setupRoutes configures all the routes
func (s *Server) setupRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/api/health", s.healthCheck)
	s.setupStaticFiles()

	s.router.GET(servermiddleware.LoginPath, s.showLogin)
	s.router.POST(servermiddleware.LoginPath, s.submitLogin)
	s.router.GET("/logout", s.logout)

	// Reachable without a session; both are scoped to one image or job
	s.router.GET("/metadata_img/*path", s.serveMetadataImage)
	s.router.GET("/api/zip_status/:id", s.zipStatus)

	gated := s.router.Group("/")
	gated.Use(servermiddleware.PINGate(s.pin, s.sessions))
	{
		gated.GET("/", s.viewDirectory)
		gated.GET("/view/*subpath", s.viewDirectory)
		gated.GET("/play/*filepath", s.playFile)
		gated.GET("/download/*filepath", s.downloadFile)
		gated.GET("/my-list", s.myList)

		gated.GET("/api/metadata", s.getMetadata)
		gated.DELETE("/api/metadata", s.invalidateMetadata)
		gated.GET("/api/start_zip/*subpath", s.startZip)
		gated.GET("/api/download_zip_result/:id", s.downloadZipResult)
		gated.GET("/api/clients", s.listClients)

		gated.GET("/ws", s.serveWS)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	resp := StatusResponse{
		Status:      "ok",
		LibraryDir:  s.library.Root(),
		Uptime:      uptimeString(s.started),
		ArchiveJobs: len(s.archives.Jobs()),
		Relay:       s.hub.ClientCount(),
		Visitors:    s.visitors.Len(),
	}
	if s.queue != nil {
		resp.Archive = s.queue.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listClients(c *gin.Context) {
	clients := s.visitors.Snapshot()
	c.JSON(http.StatusOK, ClientsResponse{Count: len(clients), Clients: clients})
}

func (s *Server) serveWS(c *gin.Context) {
	s.hub.ServeWS(s.upgrader, c.Writer, c.Request)
}
