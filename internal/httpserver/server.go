package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/querylens/internal/logparse"
	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/timerange"
)

var log = logrus.WithField("component", "httpserver")

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Server provides an HTTP API over a query-log provider.
type Server struct {
	addr      string
	provider  model.Provider
	gatherer  prometheus.Gatherer
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server. A nil gatherer disables /metrics.
func NewServer(addr string, p model.Provider, gatherer prometheus.Gatherer) *Server {
	if addr == "" {
		addr = "127.0.0.1:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:     addr,
		provider: p,
		gatherer: gatherer,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Handler returns the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestID())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/logs", s.handleLogs)

	stats := r.Group("/api/stats")
	stats.GET("/24h", s.handleStats24h)
	stats.GET("/queries-over-time", s.handleQueriesOverTime)
	stats.GET("/top-domains", s.handleTopDomains)
	stats.GET("/top-clients", s.handleTopClients)
	stats.GET("/query-types", s.handleQueryTypes)
	stats.GET("/search/domains", s.handleSearch(s.provider.SearchDomains))
	stats.GET("/search/clients", s.handleSearch(s.provider.SearchClients))

	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped")
		}
	}()
	log.WithField("addr", listener.Addr().String()).Info("http api listening")
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)

		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"duration":   time.Since(start),
		}).Debug("request")
	}
}

type rangeParams struct {
	Range string `form:"range,default=24h"`
}

type pageParams struct {
	rangeParams
	Limit  int    `form:"limit,default=10" binding:"min=1,max=100"`
	Offset int    `form:"offset,default=0" binding:"min=0"`
	Filter string `form:"filter,default=all" binding:"oneof=all blocked"`
}

type logsParams struct {
	Limit        int    `form:"limit,default=10" binding:"min=1,max=100"`
	Offset       int    `form:"offset,default=0" binding:"min=0"`
	Search       string `form:"search"`
	ResponseType string `form:"responseType"`
	Client       string `form:"client"`
	QuestionType string `form:"questionType"`
}

type overTimeParams struct {
	rangeParams
	Domain string `form:"domain"`
	Client string `form:"client"`
}

type searchParams struct {
	rangeParams
	Query string `form:"q"`
	Limit int    `form:"limit,default=10" binding:"min=1,max=50"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// respond writes v, mapping option errors to 400 and anything else to 500.
func respond(c *gin.Context, v any, err error) {
	if err != nil {
		if errors.Is(err, model.ErrInvalidOptions) || errors.Is(err, timerange.ErrInvalidRange) {
			badRequest(c, err)
			return
		}
		log.WithError(err).WithField("request_id", c.GetString("request_id")).Error("provider call failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read query logs"})
		return
	}
	c.JSON(http.StatusOK, v)
}

func bindRange(c *gin.Context, p rangeParams) (timerange.Range, bool) {
	r, err := timerange.Parse(p.Range)
	if err != nil {
		badRequest(c, err)
		return "", false
	}
	return r, true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleLogs(c *gin.Context) {
	var p logsParams
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err)
		return
	}
	opts := model.QueryLogsOptions{
		Limit:  p.Limit,
		Offset: p.Offset,
		Search: p.Search,
		Client: p.Client,
	}
	if p.ResponseType != "" {
		opts.ResponseType = logparse.NormalizeResponseType(p.ResponseType)
		if opts.ResponseType == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown response type " + p.ResponseType})
			return
		}
	}
	if p.QuestionType != "" {
		qt, ok := logparse.NormalizeQuestionType(p.QuestionType)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown question type " + p.QuestionType})
			return
		}
		opts.QuestionType = qt
	}
	page, err := s.provider.QueryLogs(c.Request.Context(), opts)
	respond(c, page, err)
}

func (s *Server) handleStats24h(c *gin.Context) {
	stats, err := s.provider.Stats24h(c.Request.Context())
	respond(c, stats, err)
}

func (s *Server) handleQueriesOverTime(c *gin.Context) {
	var p overTimeParams
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err)
		return
	}
	r, ok := bindRange(c, p.rangeParams)
	if !ok {
		return
	}
	series, err := s.provider.QueriesOverTime(c.Request.Context(), model.OverTimeOptions{
		Range: r, Domain: p.Domain, Client: p.Client,
	})
	respond(c, series, err)
}

func (s *Server) bindTop(c *gin.Context) (model.TopOptions, bool) {
	var p pageParams
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err)
		return model.TopOptions{}, false
	}
	r, ok := bindRange(c, p.rangeParams)
	if !ok {
		return model.TopOptions{}, false
	}
	mode, err := model.ParseFilterMode(p.Filter)
	if err != nil {
		badRequest(c, err)
		return model.TopOptions{}, false
	}
	return model.TopOptions{Range: r, Limit: p.Limit, Offset: p.Offset, Filter: mode}, true
}

func (s *Server) handleTopDomains(c *gin.Context) {
	opts, ok := s.bindTop(c)
	if !ok {
		return
	}
	page, err := s.provider.TopDomains(c.Request.Context(), opts)
	respond(c, page, err)
}

func (s *Server) handleTopClients(c *gin.Context) {
	opts, ok := s.bindTop(c)
	if !ok {
		return
	}
	page, err := s.provider.TopClients(c.Request.Context(), opts)
	respond(c, page, err)
}

func (s *Server) handleQueryTypes(c *gin.Context) {
	var p rangeParams
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err)
		return
	}
	r, ok := bindRange(c, p)
	if !ok {
		return
	}
	types, err := s.provider.QueryTypesBreakdown(c.Request.Context(), r)
	respond(c, types, err)
}

func (s *Server) handleSearch(search func(context.Context, model.SearchOptions) ([]model.SearchHit, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p searchParams
		if err := c.ShouldBindQuery(&p); err != nil {
			badRequest(c, err)
			return
		}
		r, ok := bindRange(c, p.rangeParams)
		if !ok {
			return
		}
		hits, err := search(c.Request.Context(), model.SearchOptions{Range: r, Query: p.Query, Limit: p.Limit})
		respond(c, hits, err)
	}
}
