package httpserver

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/callstat/internal/model"
)

// Server exposes the finished report over a small read-only JSON API.
type Server struct {
	addr      string
	reports   model.ReportReader
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, reports model.ReportReader) *Server {
	if addr == "" {
		addr = "127.0.0.1:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		reports: reports,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/report", s.handleReport)
	r.GET("/api/report/:hour", s.handleHour)
	r.GET("/api/sources", s.handleSources)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
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

	go s.server.Serve(listener)
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

type rowJSON struct {
	Hour    int                `json:"hour"`
	Label   string             `json:"label"`
	Metrics map[string]float64 `json:"metrics"`
}

func toRowJSON(row model.HourRow) rowJSON {
	return rowJSON{Hour: row.Hour, Label: row.Label, Metrics: row.Metrics}
}

func (s *Server) current(c *gin.Context) (*model.Report, bool) {
	report := s.reports.Report()
	if report == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report not ready"})
		return nil, false
	}
	return report, true
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
		"ready":  false,
	}
	if report := s.reports.Report(); report != nil {
		status["ready"] = true
		status["run_id"] = report.RunID
		status["hours"] = len(report.Rows)
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleReport(c *gin.Context) {
	report, ok := s.current(c)
	if !ok {
		return
	}

	rows := make([]rowJSON, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, toRowJSON(row))
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":       report.RunID,
		"generated_at": report.GeneratedAt,
		"metrics":      report.Metrics,
		"rows":         rows,
	})
}

func (s *Server) handleHour(c *gin.Context) {
	report, ok := s.current(c)
	if !ok {
		return
	}

	hour, err := parseHour(c.Param("hour"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hour must be 0-23 or HH:00"})
		return
	}
	row, found := report.Row(hour)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data for hour"})
		return
	}
	c.JSON(http.StatusOK, toRowJSON(row))
}

func (s *Server) handleSources(c *gin.Context) {
	report, ok := s.current(c)
	if !ok {
		return
	}
	sources := report.Sources
	if sources == nil {
		sources = []model.SourceSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

// parseHour accepts "7", "07" or "07:00".
func parseHour(raw string) (int, error) {
	raw = strings.TrimSuffix(raw, ":00")
	hour, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if hour < 0 || hour > 23 {
		return 0, strconv.ErrRange
	}
	return hour, nil
}
