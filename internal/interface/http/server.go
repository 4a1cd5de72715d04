// Package http implements the REST API of the dashboard on gin.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/internal/application/command"
	"github.com/eduhub/eduhub-dashboard/internal/application/query"
	"github.com/eduhub/eduhub-dashboard/internal/domain/dashboard"
	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/job"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
	"github.com/eduhub/eduhub-dashboard/internal/infrastructure/external/verification"
	"github.com/eduhub/eduhub-dashboard/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds the context of every request.
	RequestTimeout time.Duration

	// AllowedOrigins - allowed origins for CORS. "*" allows all.
	AllowedOrigins []string

	// Version is reported in the response meta.
	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 5 * time.Second,
		AllowedOrigins: []string{"*"},
		Version:        "v1",
	}
}

// Address returns the full address string.
func (c Config) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// DashboardReader serves GET /overview.
type DashboardReader interface {
	Handle(ctx context.Context, q query.GetDashboardSummaryQuery) (*dashboard.Summary, error)
}

// JobsReader serves GET /jobs. It never fails.
type JobsReader interface {
	Handle(ctx context.Context) []job.Posting
}

// Enroller serves POST /enrollments.
type Enroller interface {
	Handle(ctx context.Context, cmd command.EnrollCommand) (*enrollment.Enrollment, error)
}

// ProgressRecorder serves POST /progress.
type ProgressRecorder interface {
	Handle(ctx context.Context, cmd command.RecordProgressCommand) (*command.RecordProgressResult, error)
}

// StudentRegistrar serves POST /students.
type StudentRegistrar interface {
	Handle(ctx context.Context, cmd command.RegisterStudentCommand) (*student.Student, error)
}

// Dependencies contains all dependencies required by HTTP handlers.
// Nil student-store handlers make their routes answer 503.
type Dependencies struct {
	Dashboard DashboardReader
	Jobs      JobsReader
	Enroll    Enroller
	Progress  ProgressRecorder
	Register  StudentRegistrar

	Verifier verification.Verifier

	HealthChecker handlers.HealthChecker

	Logger *zap.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	engine     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Jobs == nil {
		deps.Jobs = query.NewGetJobsHandler(job.EmptyFeed{}, nil, 0, deps.Logger)
	}
	if deps.Verifier == nil {
		deps.Verifier = verification.Unconfigured{}
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = handlers.NewCompositeHealthChecker(config.Version)
	}

	s := &Server{
		config: config,
		deps:   deps,
		logger: deps.Logger.Named("http"),
	}

	s.engine = s.buildEngine()
	s.httpServer = &http.Server{
		Addr:         config.Address(),
		Handler:      s.engine,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Handler returns the root handler. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) buildEngine() *gin.Engine {
	r := gin.New()

	corsConfig := cors.DefaultConfig()
	if len(s.config.AllowedOrigins) == 0 || containsWildcard(s.config.AllowedOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.config.AllowedOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, studentEmailHeader, handlers.RequestIDHeader)
	corsConfig.ExposeHeaders = []string{handlers.RequestIDHeader}

	r.Use(
		cors.New(corsConfig),
		handlers.RequestID(),
		handlers.Logger(s.logger),
		handlers.Recovery(s.logger, s.writeError),
		handlers.Timeout(s.config.RequestTimeout),
		handlers.SecurityHeaders(),
	)

	r.GET("/", s.handleRoot)

	// Health
	r.GET("/health", s.handleHealth)
	r.GET("/health/live", s.handleLive)
	r.GET("/health/ready", s.handleReady)

	// Dashboard
	r.GET("/overview", s.handleOverview)
	r.GET("/jobs", s.handleJobs)
	r.POST("/verify-company", s.handleVerifyCompany)

	// Writes
	r.POST("/enrollments", s.handleEnroll)
	r.POST("/progress", s.handleRecordProgress)
	r.POST("/students", s.handleRegisterStudent)

	r.NoRoute(func(c *gin.Context) {
		s.writeError(c, http.StatusNotFound, codeNotFound, "route not found")
	})

	return r
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", zap.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	Count     int       `json:"count,omitempty"`
}

func (s *Server) meta() *ResponseMeta {
	return &ResponseMeta{Timestamp: time.Now().UTC(), Version: s.config.Version}
}

// writeJSON writes a success envelope.
func (s *Server) writeJSON(c *gin.Context, status int, data any) {
	s.writeJSONWithMeta(c, status, data, s.meta())
}

func (s *Server) writeJSONWithMeta(c *gin.Context, status int, data any, meta *ResponseMeta) {
	c.JSON(status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: handlers.GetRequestID(c),
	})
}

// writeError writes an error envelope.
func (s *Server) writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		Meta:      s.meta(),
		RequestID: handlers.GetRequestID(c),
	})
}
