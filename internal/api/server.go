package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"archivist/internal/catalog"
	"archivist/internal/config"
	"archivist/internal/facets"
	"archivist/internal/logging"
	"archivist/internal/metrics"
	"archivist/internal/search"
	"archivist/internal/stage"
)

// Deps are the collaborators the routes read from.
type Deps struct {
	Store   *catalog.Store
	Search  *search.Engine
	Facets  *facets.Cache
	Metrics *metrics.Recorder
	// Health reports stage readiness for /healthz; nil reports the database only.
	Health func(ctx context.Context) []stage.Health
	// MirrorURL resolves public addresses of mirrored PDFs; may be nil.
	MirrorURL func(key string) string
	// Reocr re-extracts one item with OCR forced; nil disables the route.
	Reocr func(ctx context.Context, nodeID int64) (*catalog.Item, error)
}

// Server owns the gin engine and its HTTP listener.
type Server struct {
	cfg    config.API
	deps   Deps
	urls   URLs
	logger *slog.Logger
	engine *gin.Engine

	listener net.Listener
	server   *http.Server
}

// NewServer builds the router. It does not listen until Start.
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if cfg == nil || deps.Store == nil || deps.Search == nil || deps.Facets == nil {
		return nil, errors.New("api server: config, store, search and facets are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:    cfg.API,
		deps:   deps,
		urls:   URLs{PDFBaseURL: cfg.Source.PDFBaseURL, Mirror: deps.MirrorURL},
		logger: logging.NewComponentLogger(logger, "api"),
	}
	s.engine = s.routes()
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery(s.logger), RequestLogger(s.logger), RateLimit(s.cfg.RatePerSecond, s.cfg.Burst, s.logger))

	r.GET("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		r.GET("/metrics", s.handleMetrics)
	}

	api := r.Group("/api")
	api.GET("/search", s.handleSearch)
	api.GET("/facets", s.handleFacets)
	api.GET("/items/:id", s.handleItem)
	api.GET("/items/:id/text", s.handleText)
	api.GET("/items/:id/related", s.handleRelated)
	api.GET("/starred", s.handleStarred)
	api.GET("/summaries", s.handleSummaries)
	api.GET("/archive", s.handleArchive)
	api.GET("/archive/:box", s.handleFolders)
	api.GET("/folders/:box", s.handleFolders)
	api.GET("/stats", s.handleStats)

	mutating := api.Group("", RequireToken(s.cfg.Token))
	mutating.POST("/items/:id/star", s.handleStar(true))
	mutating.DELETE("/items/:id/star", s.handleStar(false))
	mutating.POST("/items/:id/reocr", s.handleReocr)

	r.NoRoute(func(c *gin.Context) {
		s.writeError(c, http.StatusNotFound, "route not found")
	})
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured bind address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Bind)
	if bind == "" {
		return fmt.Errorf("api listen: api.bind is empty")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}
