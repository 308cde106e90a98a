// Package server wires the HTTP surface: authentication, the research
// pipeline, artifact downloads and the login flow.
package server

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/helicon-labs/researchd/config"
	"github.com/helicon-labs/researchd/internal/auth"
	"github.com/helicon-labs/researchd/internal/orchestrator"
	"github.com/helicon-labs/researchd/internal/store"
	"github.com/helicon-labs/researchd/internal/telemetry"
	"github.com/helicon-labs/researchd/internal/tools"
	openai_provider "github.com/helicon-labs/researchd/provider/openai"
	"github.com/helicon-labs/researchd/tools/websearch"
	"github.com/helicon-labs/researchd/web"
)

// Runner abstracts the orchestration loop so handlers can be exercised with
// a stubbed engine.
type Runner interface {
	Run(ctx context.Context, query string) (*orchestrator.Result, error)
}

// Server holds the request pipeline's collaborators.
type Server struct {
	echo      *echo.Echo
	gate      *auth.Gate
	runner    Runner
	artifacts *store.Store
	markdown  goldmark.Markdown
	templates *template.Template
	logger    *log.Logger
}

// New assembles the HTTP server from its collaborators.
func New(gate *auth.Gate, runner Runner, artifacts *store.Store, metrics http.Handler) (*Server, error) {
	templates, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		gate:      gate,
		runner:    runner,
		artifacts: artifacts,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		templates: templates,
		logger:    log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))
	e.HTTPErrorHandler = s.errorHandler

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}

	e.GET("/", s.home)
	e.GET("/login", s.loginForm)
	e.POST("/login", s.login)

	protected := e.Group("", gate.Middleware())
	protected.POST("/research", s.research)
	protected.GET("/download/:filename", s.download)
	protected.GET("/reports", s.reports)

	s.echo = e
	return s, nil
}

// errorHandler renders every error as structured JSON and logs it with the
// request context. Internal details never reach the caller beyond the
// error string itself.
func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]interface{}{"error": msg})
	}
}

// Handler exposes the assembled routes; tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start runs the server until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Printf("listening on %s", addr)
	return s.echo.Start(addr)
}

func (s *Server) render(c echo.Context, code int, name string, data interface{}) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return s.templates.ExecuteTemplate(c.Response(), name, data)
}

func (s *Server) renderMarkdown(md string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Run builds the full production pipeline from config and serves it.
func Run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var tele *telemetry.Telemetry
	var metricsHandler http.Handler
	if cfg.Telemetry.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		tele = telemetry.New(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	searcher, err := websearch.NewSearcher(websearch.Provider(cfg.Tools.SearchProvider), cfg.Tools.SearchAPIKey)
	if err != nil {
		return err
	}
	registry, err := tools.NewRegistry(
		tools.NewSearchTool(searcher, cfg.Tools.SearchResults),
		tools.NewSaveTool(cfg.Storage.OutputDir, cfg.Tools.SaveFile),
		tools.NewReadPageTool(cfg.Tools.FetchMaxChars),
	)
	if err != nil {
		return err
	}

	eng := openai_provider.NewClient(cfg.LLM)
	orch := orchestrator.New(eng, registry, cfg.LLM.MaxIterations, nil, tele)

	artifacts, err := store.New(cfg.Storage.OutputDir, cfg.Storage.Overwrite, nil)
	if err != nil {
		return err
	}
	defer artifacts.Close()

	srv, err := New(auth.NewGate(cfg.Auth), orch, artifacts, metricsHandler)
	if err != nil {
		return err
	}
	return srv.Start(cfg.Server.Address)
}
