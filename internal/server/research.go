package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/helicon-labs/researchd/internal/store"
)

// ResearchRequest is the body of POST /research.
type ResearchRequest struct {
	Query string `json:"query"`
}

// ResearchResponse is the success payload of POST /research.
type ResearchResponse struct {
	Topic          string   `json:"topic"`
	Summary        string   `json:"summary"` // HTML rendered from markdown
	Sources        []string `json:"sources"`
	Tools          []string `json:"tools"`
	DownloadLink   string   `json:"download_link"`
	ProcessingTime float64  `json:"processing_time"` // seconds, 2 decimals
}

// research drives the full pipeline: orchestration, validation, rendering,
// persistence, response assembly. The caller is already authenticated.
func (s *Server) research(c echo.Context) error {
	var req ResearchRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No query provided"})
	}

	start := time.Now()
	result, err := s.runner.Run(c.Request().Context(), req.Query)
	if err != nil {
		return s.pipelineError(c, err)
	}

	htmlSummary, err := s.renderMarkdown(result.Answer.Summary)
	if err != nil {
		return s.pipelineError(c, err)
	}

	artifact, err := s.artifacts.Persist(result.Answer)
	if err != nil {
		return s.pipelineError(c, err)
	}

	return c.JSON(http.StatusOK, ResearchResponse{
		Topic:          result.Answer.Topic,
		Summary:        htmlSummary,
		Sources:        result.Answer.Sources,
		Tools:          result.Answer.ToolsUsed,
		DownloadLink:   "/download/" + artifact.Filename,
		ProcessingTime: math.Round(time.Since(start).Seconds()*100) / 100,
	})
}

// pipelineError logs the failure server-side and returns the generic 500
// shape. The error string is diagnostic, not a stable contract.
func (s *Server) pipelineError(c echo.Context, err error) error {
	s.logger.Printf("error in /research: %v", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error":   err.Error(),
		"details": "Check server logs for more information",
	})
}

// download streams a persisted report as an attachment.
func (s *Server) download(c echo.Context) error {
	filename := c.Param("filename")
	path, err := s.artifacts.Resolve(filename)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		return err
	}
	return c.Attachment(path, filename)
}

// reports lists or searches persisted reports.
func (s *Server) reports(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	hits, err := s.artifacts.Search(c.QueryParam("q"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"reports": hits})
}
