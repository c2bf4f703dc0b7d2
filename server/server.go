// Package server exposes an Orchestrator and its graph over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/warriorguo/canvasflow/runtime"
	"github.com/warriorguo/canvasflow/types"
)

const serviceName = "canvasflow"

// Server holds the dependencies for the HTTP handlers.
type Server struct {
	Orchestrator types.Orchestrator
	Graph        types.Graph

	e *echo.Echo
}

// NewServer creates a Server with every route registered.
func NewServer(orch types.Orchestrator, graph types.Graph) *Server {
	s := &Server{Orchestrator: orch, Graph: graph}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware(serviceName))
	e.Use(requestLogger())

	v1 := e.Group("/v1")
	v1.POST("/analyze", s.Analyze)
	v1.POST("/workflows", s.ExecuteWorkflow)
	v1.POST("/run", s.Run)
	v1.GET("/progress", s.Progress)
	v1.POST("/reset", s.Reset)
	v1.GET("/sessions", s.ListSessions)
	v1.GET("/sessions/:id", s.GetSession)
	v1.GET("/graph", s.GetGraph)
	v1.GET("/graph.dot", s.GetGraphDot)

	s.e = e
	return s
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start(addr string) error {
	log.Infof("http server listening on %s", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Trace(err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Trace(s.e.Shutdown(ctx))
}

type textRequest struct {
	Text     string         `json:"text"`
	Position types.Position `json:"position"`
}

type workflowRequest struct {
	Plan     *types.Plan    `json:"plan"`
	Position types.Position `json:"position"`
}

type runResponse struct {
	Plan   *types.Plan   `json:"plan"`
	Result *types.Result `json:"result"`
	Error  string        `json:"error,omitempty"`
}

type graphResponse struct {
	Nodes []*types.Node `json:"nodes"`
	Edges []*types.Edge `json:"edges"`
}

// Analyze classifies the request text into a plan.
// (POST /v1/analyze)
func (s *Server) Analyze(c echo.Context) error {
	var req textRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	return c.JSON(http.StatusOK, s.Orchestrator.AnalyzeIntent(c.Request().Context(), req.Text))
}

/**
 * ExecuteWorkflow runs the plan to completion. A failed execution still
 * answers with the partial result; the status code carries the failure.
 * (POST /v1/workflows)
 */
func (s *Server) ExecuteWorkflow(c echo.Context) error {
	var req workflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.Plan == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "plan is required")
	}

	result, err := s.Orchestrator.ExecuteWorkflow(c.Request().Context(), req.Plan, req.Position)
	return s.respondRun(c, req.Plan, result, err)
}

// Run analyzes and executes in one call.
// (POST /v1/run)
func (s *Server) Run(c echo.Context) error {
	var req textRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	plan, result, err := s.Orchestrator.Run(c.Request().Context(), req.Text, req.Position)
	return s.respondRun(c, plan, result, err)
}

func (s *Server) respondRun(c echo.Context, plan *types.Plan, result *types.Result, err error) error {
	resp := &runResponse{Plan: plan, Result: result}
	if err == nil {
		return c.JSON(http.StatusOK, resp)
	}
	if result == nil {
		return err
	}
	resp.Error = err.Error()
	return c.JSON(statusOf(err), resp)
}

// (GET /v1/progress)
func (s *Server) Progress(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Orchestrator.Progress())
}

// (POST /v1/reset)
func (s *Server) Reset(c echo.Context) error {
	s.Orchestrator.Reset()
	return c.NoContent(http.StatusNoContent)
}

// (GET /v1/sessions)
func (s *Server) ListSessions(c echo.Context) error {
	ids, err := s.Orchestrator.ListSessions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ids)
}

// (GET /v1/sessions/:id)
func (s *Server) GetSession(c echo.Context) error {
	record, err := s.Orchestrator.GetSessionRecord(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

// (GET /v1/graph)
func (s *Server) GetGraph(c echo.Context) error {
	ctx := c.Request().Context()
	nodes, err := s.Graph.Nodes(ctx)
	if err != nil {
		return err
	}
	edges, err := s.Graph.Edges(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &graphResponse{Nodes: nodes, Edges: edges})
}

// (GET /v1/graph.dot)
func (s *Server) GetGraphDot(c echo.Context) error {
	dot, err := runtime.RenderGraph(c.Request().Context(), s.Graph)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "text/vnd.graphviz; charset=utf-8", []byte(dot))
}

func statusOf(err error) int {
	switch {
	case types.IsBackendError(err):
		return http.StatusBadGateway
	case types.IsStageTimeout(err):
		return http.StatusGatewayTimeout
	case types.IsAbandoned(err):
		return http.StatusConflict
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsNotValid(err), errors.IsBadRequest(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := statusOf(err)
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = cast.ToString(he.Message)
	}
	if code >= http.StatusInternalServerError {
		log.Errorf("%s %s failed: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, &errorResponse{Error: msg})
	}
	if err != nil {
		log.Warnf("failed to write error response: %v", err)
	}
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			log.WithFields(log.Fields{
				"method":  c.Request().Method,
				"path":    c.Path(),
				"status":  c.Response().Status,
				"latency": time.Since(start),
			}).Debug("http request")
			return nil
		}
	}
}
