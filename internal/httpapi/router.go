// Package httpapi is the gin HTTP surface: the webhook ingestion endpoint,
// health/metrics reads, and risk-limit administration.
// Router assembly and middleware ordering (recovery, request logging, auth)
// follow the teacher's cmd/dashboard (gin.New + explicit middleware stack)
// rather than gin.Default, so logging goes through zerolog instead of gin's
// own writer.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/optionpulse/signalengine/internal/observability"
	"github.com/optionpulse/signalengine/internal/parsers"
	"github.com/optionpulse/signalengine/internal/pipeline"
	"github.com/optionpulse/signalengine/internal/store"
	"github.com/optionpulse/signalengine/internal/types"
)

// Server wires the router against the pipeline, store, and observability
// singletons.
type Server struct {
	engine     *gin.Engine
	pipeline   *pipeline.Pipeline
	store      *store.Store
	health     *observability.HealthCheckService
	metrics    *observability.MetricsService
	auditQuery *observability.AuditQueryService
	jwtSecret  string
	hmacSecret string
}

// NewServer builds the gin engine and registers every route.
func NewServer(p *pipeline.Pipeline, st *store.Store, health *observability.HealthCheckService, metrics *observability.MetricsService, auditQuery *observability.AuditQueryService, jwtSecret, hmacSecret string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		engine:     engine,
		pipeline:   p,
		store:      st,
		health:     health,
		metrics:    metrics,
		auditQuery: auditQuery,
		jwtSecret:  jwtSecret,
		hmacSecret: hmacSecret,
	}
	s.routes()
	return s
}

// Handler returns the http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.POST("/webhook", s.hmacVerify(), s.handleWebhook)

	health := s.engine.Group("/health")
	health.GET("", s.handleHealth)
	health.GET("/context", s.handleHealthOne(observability.SubsystemContext))
	health.GET("/gex", s.handleHealthOne(observability.SubsystemGEX))
	health.GET("/database", s.handleHealthOne(observability.SubsystemDatabase))

	authed := s.engine.Group("")
	authed.Use(s.requireAuth())
	authed.GET("/metrics/signals", s.handleMetricsSignals)
	authed.GET("/metrics/positions", s.handleMetricsPositions)
	authed.GET("/metrics/latency", s.handleMetricsLatency)
	authed.GET("/risk-limits", s.handleGetRiskLimits)
	authed.PUT("/risk-limits", s.handlePutRiskLimits)
	authed.GET("/exit-signals", s.handleExitSignals)
	authed.GET("/audit", s.handleAuditQuery)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}

func (s *Server) handleWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	start := time.Now()
	result := s.pipeline.Accept(raw)
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordLatency("signal_processing", elapsed)
	}

	go s.pipeline.ProcessAsync(context.Background(), raw)

	// Only a genuine JSON syntax error gets 400; anything parseable — even
	// a payload this parser ultimately can't act on — is acknowledged 200
	// so the sender doesn't retry. Validation happens downstream in
	// ProcessAsync, which runs regardless of this response.
	if !result.Accepted && result.Rejection != nil && result.Rejection.Kind == parsers.RejectInvalidJSON {
		c.JSON(http.StatusBadRequest, gin.H{
			"correlation_id": result.CorrelationID,
			"reason":         result.Rejection.Reason,
		})
		return
	}

	if !result.Accepted && s.metrics != nil {
		s.metrics.RecordSignalRejected("normalization")
	}

	c.JSON(http.StatusOK, gin.H{
		"correlation_id":     result.CorrelationID,
		"status":             "ACCEPTED",
		"processing_time_ms": elapsed.Milliseconds(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	status := s.health.Check()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (s *Server) handleHealthOne(subsystem observability.Subsystem) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := s.health.CheckOne(subsystem)
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
}

func (s *Server) handleMetricsSignals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"note": "this endpoint returns no counters; see /metrics (Prometheus) for accepted and rejected signal counters by reason"})
}

func (s *Server) handleMetricsPositions(c *gin.Context) {
	positions, err := s.store.ListOpenPositions(c.Request.Context(), 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"open_positions": len(positions), "positions": positions})
}

func (s *Server) handleMetricsLatency(c *gin.Context) {
	if s.metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	out := gin.H{}
	for _, series := range []string{"signal_processing", "decision", "execution"} {
		out[series] = s.metrics.LatencyStatsFor(series)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetRiskLimits(c *gin.Context) {
	mode := types.OrderMode(c.DefaultQuery("mode", string(types.ModePaper)))
	limits, err := s.store.ActiveRiskLimits(c.Request.Context(), mode)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, limits)
}

type riskLimitsUpdate struct {
	Mode                     types.OrderMode `json:"mode" binding:"required"`
	MaxOpenPositions         int             `json:"max_open_positions"`
	MaxDailyLoss             float64         `json:"max_daily_loss"`
	MaxVixForEntry           float64         `json:"max_vix_for_entry"`
	VixHardReject            bool            `json:"vix_hard_reject"`
	VixPositionSizeReduction float64         `json:"vix_position_size_reduction"`
	MTFGatingEnabled         bool            `json:"mtf_gating_enabled"`
	AutoCloseEnabled         bool            `json:"auto_close_enabled"`
}

func (s *Server) handlePutRiskLimits(c *gin.Context) {
	var in riskLimitsUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated := riskLimitsFromUpdate(in)
	if err := s.store.SaveRiskLimits(c.Request.Context(), &updated); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleExitSignals(c *gin.Context) {
	mode := types.OrderMode(c.DefaultQuery("mode", string(types.ModePaper)))
	rules, err := s.store.ActiveExitRules(c.Request.Context(), mode)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (s *Server) handleAuditQuery(c *gin.Context) {
	q := observability.AuditQuery{
		EventType:       types.AuditEventType(c.Query("event_type")),
		Symbol:          c.Query("symbol"),
		SignalID:        c.Query("signal_id"),
		DecisionType:    types.DecisionType(c.Query("decision_type")),
		DecisionVerdict: types.DecisionVerdict(c.Query("decision")),
		Limit:           queryInt(c, "limit", 0),
		Offset:          queryInt(c, "offset", 0),
	}
	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		q.From = from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		q.To = to
	}

	entries, err := s.auditQuery.Query(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func queryInt(c *gin.Context, key string, defaultValue int) int {
	v := c.Query(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}
