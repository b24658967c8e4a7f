package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"archivist/internal/catalog"
	"archivist/internal/logging"
	"archivist/internal/search"
	"archivist/internal/services"
)

const relatedLimit = 10

func (s *Server) handleSearch(c *gin.Context) {
	req, err := ParseSearchRequest(c.Request.URL.Query())
	if err != nil {
		s.writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.deps.Search.Search(c.Request.Context(), req)
	if err != nil {
		s.writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleFacets(c *gin.Context) {
	snapshot, err := s.deps.Facets.Get(c.Request.Context())
	if err != nil {
		s.writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleItem(c *gin.Context) {
	id, ok := s.nodeID(c)
	if !ok {
		return
	}
	item, err := s.deps.Store.Get(c.Request.Context(), id)
	if err != nil {
		s.writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, ItemResponse{Item: FromItem(item, s.urls)})
}

func (s *Server) handleText(c *gin.Context) {
	id, ok := s.nodeID(c)
	if !ok {
		return
	}
	text, err := s.deps.Search.GetText(c.Request.Context(), id)
	if err != nil {
		s.writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, TextResponse{NodeID: id, Text: text})
}

func (s *Server) handleRelated(c *gin.Context) {
	id, ok := s.nodeID(c)
	if !ok {
		return
	}
	limit := relatedLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			s.writeError(c, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	related, err := s.deps.Store.Related(c.Request.Context(), id, limit)
	if err != nil {
		s.writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, FromRelated(id, related, s.urls))
}

func (s *Server) handleStar(starred bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.nodeID(c)
		if !ok {
			return
		}
		if err := s.deps.Store.SetStarred(c.Request.Context(), id, starred); err != nil {
			s.writeFailure(c, err)
			return
		}
		c.JSON(http.StatusOK, StarResponse{NodeID: id, Starred: starred})
	}
}

func (s *Server) handleStarred(c *gin.Context) {
	items, err := s.deps.Store.Starred(c.Request.Context())
	if err != nil {
		s.writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, ItemListResponse{Items: FromItems(items, s.urls)})
}

func (s *Server) handleSummaries(c *gin.Context) {
	summaries, err := s.deps.Store.Summaries(c.Request.Context())
	if err != nil {
		s.writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, FromSummaries(summaries))
}

func (s *Server) handleArchive(c *gin.Context) {
	ctx := c.Request.Context()
	boxes, err := s.deps.Store.ArchiveStructure(ctx)
	if err != nil {
		s.writeFailure(c, err)
		return
	}
	summaries, err := s.deps.Store.Summaries(ctx)
	if err != nil {
		s.writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, FromArchive(boxes, summaries))
}

func (s *Server) handleFolders(c *gin.Context) {
	box, err := strconv.Atoi(c.Param("box"))
	if err != nil || box <= 0 {
		s.writeError(c, http.StatusBadRequest, "invalid box number")
		return
	}
	ctx := c.Request.Context()
	folders, err := s.deps.Store.FoldersForBox(ctx, box)
	if err != nil {
		s.writeFailure(c, err)
		return
	}
	summaries, err := s.deps.Store.Summaries(ctx)
	if err != nil {
		s.writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, FromFolders(box, folders, summaries))
}

func (s *Server) handleReocr(c *gin.Context) {
	id, ok := s.nodeID(c)
	if !ok {
		return
	}
	if s.deps.Reocr == nil {
		s.writeError(c, http.StatusServiceUnavailable, "re-extraction is not available on this server")
		return
	}
	item, err := s.deps.Reocr(c.Request.Context(), id)
	if err != nil {
		s.writeFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, FromReocr(item))
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.deps.Store.StageStats(c.Request.Context())
	if err != nil {
		s.writeFailure(c, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveStats(stats)
	}
	c.JSON(http.StatusOK, FromStats(stats))
}

func (s *Server) handleMetrics(c *gin.Context) {
	if stats, err := s.deps.Store.StageStats(c.Request.Context()); err == nil {
		s.deps.Metrics.ObserveStats(stats)
	} else {
		s.logger.Warn("stats refresh failed", logging.Error(err))
	}
	s.deps.Metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK
	if err := s.deps.Store.Ping(c.Request.Context()); err != nil {
		resp.Status, resp.Database = "unavailable", err.Error()
		status = http.StatusServiceUnavailable
	}
	if s.deps.Health != nil {
		resp.Stages = StageHealthSlice(s.deps.Health(c.Request.Context()))
	}
	c.JSON(status, resp)
}

func (s *Server) nodeID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(c, http.StatusBadRequest, "invalid item id")
		return 0, false
	}
	return id, true
}

// writeFailure maps domain errors onto status codes.
func (s *Server) writeFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		s.writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		s.writeError(c, http.StatusNotFound, "item not found")
	case errors.Is(err, services.ErrValidation):
		s.writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrExternalTool):
		logging.WithContext(c.Request.Context(), s.logger).Warn("upstream tool failed",
			logging.String("path", c.FullPath()),
			logging.Error(err),
		)
		s.writeError(c, http.StatusBadGateway, err.Error())
	default:
		logging.WithContext(c.Request.Context(), s.logger).Error("request failed",
			logging.String("path", c.FullPath()),
			logging.Error(err),
		)
		s.writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: strings.TrimSpace(message), RequestID: GetRequestID(c)})
}
