package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/internal/application/command"
	"github.com/eduhub/eduhub-dashboard/internal/application/query"
	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
	"github.com/eduhub/eduhub-dashboard/internal/infrastructure/external/verification"
	"github.com/eduhub/eduhub-dashboard/pkg/logger"
)

const studentEmailHeader = "X-Student-Email"

// Error codes of the envelope.
const (
	codeNotFound         = "not_found"
	codeAlreadyEnrolled  = "already_enrolled"
	codeAlreadyExists    = "already_exists"
	codeInvalidInput     = "invalid_input"
	codeStoreUnavailable = "store_unavailable"
	codeNotImplemented   = "not_implemented"
	codeUpstreamError    = "upstream_error"
	codeInternal         = "internal_error"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// statusFor maps a domain error to an HTTP status and code. AlreadyEnrolled
// wraps AlreadyExists, so it is checked first.
func statusFor(err error) (int, string) {
	switch {
	case shared.IsNotFound(err):
		return http.StatusNotFound, codeNotFound
	case shared.IsAlreadyEnrolled(err):
		return http.StatusConflict, codeAlreadyEnrolled
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, codeAlreadyExists
	case shared.IsValidation(err):
		return http.StatusBadRequest, codeInvalidInput
	case shared.IsStoreUnavailable(err):
		return http.StatusServiceUnavailable, codeStoreUnavailable
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// messageFor hides internals of unexpected errors.
func messageFor(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "An unexpected error occurred"
	}
	if status == http.StatusServiceUnavailable {
		return "A backing store is unavailable, try again later"
	}
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

func (s *Server) writeDomainError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	s.writeError(c, status, code, messageFor(err, status))
}

func (s *Server) storeUnavailable(c *gin.Context) {
	s.writeError(c, http.StatusServiceUnavailable, codeStoreUnavailable, "student store is not configured")
}

// bindJSON decodes the body and answers 400 on failure.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.writeError(c, http.StatusBadRequest, codeInvalidInput, "malformed JSON body")
		return false
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(c *gin.Context) {
	s.writeJSON(c, http.StatusOK, gin.H{
		"name":    "EduHub Dashboard API",
		"version": s.config.Version,
		"endpoints": gin.H{
			"health":   "/health",
			"overview": "/overview",
			"jobs":     "/jobs",
		},
	})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(c *gin.Context) {
	status := s.deps.HealthChecker.Check(c.Request.Context())
	if !status.Healthy {
		s.writeJSON(c, http.StatusServiceUnavailable, status)
		return
	}
	s.writeJSON(c, http.StatusOK, status)
}

// handleReady handles GET /health/ready.
func (s *Server) handleReady(c *gin.Context) {
	status := s.deps.HealthChecker.Check(c.Request.Context())
	if !status.Ready {
		s.writeJSON(c, http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}
	s.writeJSON(c, http.StatusOK, gin.H{"status": "ready"})
}

// handleLive handles GET /health/live.
func (s *Server) handleLive(c *gin.Context) {
	s.writeJSON(c, http.StatusOK, gin.H{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// studentEmail resolves the caller identity: the X-Student-Email header,
// then the email query parameter.
func studentEmail(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader(studentEmailHeader)); v != "" {
		return v
	}
	return strings.TrimSpace(c.Query("email"))
}

// handleOverview handles GET /overview.
func (s *Server) handleOverview(c *gin.Context) {
	if s.deps.Dashboard == nil {
		s.storeUnavailable(c)
		return
	}

	email := studentEmail(c)
	if email == "" {
		s.writeError(c, http.StatusBadRequest, codeInvalidInput, "student identity is required")
		return
	}

	summary, err := s.deps.Dashboard.Handle(c.Request.Context(), query.GetDashboardSummaryQuery{StudentEmail: email})
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	s.writeJSON(c, http.StatusOK, summary)
}

// handleJobs handles GET /jobs. Upstream failures give an empty list.
func (s *Server) handleJobs(c *gin.Context) {
	postings := s.deps.Jobs.Handle(c.Request.Context())

	meta := s.meta()
	meta.Count = len(postings)
	s.writeJSONWithMeta(c, http.StatusOK, postings, meta)
}

// handleVerifyCompany handles POST /verify-company.
func (s *Server) handleVerifyCompany(c *gin.Context) {
	var req verification.Request
	if !s.bindJSON(c, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.writeDomainError(c, err)
		return
	}

	result, err := s.deps.Verifier.Verify(c.Request.Context(), req)
	switch {
	case errors.Is(err, verification.ErrNotConfigured):
		s.writeError(c, http.StatusNotImplemented, codeNotImplemented, "company verification is not configured")
		return
	case shared.IsValidation(err):
		s.writeDomainError(c, err)
		return
	case err != nil:
		logger.FromContext(c.Request.Context(), s.logger).Warn("company verification failed",
			zap.String("company", req.CompanyName),
			zap.Error(err),
		)
		s.writeError(c, http.StatusBadGateway, codeUpstreamError, "verification service failed")
		return
	}

	s.writeJSON(c, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type enrollRequest struct {
	StudentEmail string `json:"studentEmail"`
	CourseID     string `json:"courseId"`
}

type enrollmentResponse struct {
	ID              string    `json:"id"`
	StudentEmail    string    `json:"studentEmail"`
	CourseID        string    `json:"courseId"`
	EnrolledAt      time.Time `json:"enrolledAt"`
	Completed       bool      `json:"completed"`
	ProgressPercent float64   `json:"progressPercent"`
}

func toEnrollmentResponse(e *enrollment.Enrollment) enrollmentResponse {
	return enrollmentResponse{
		ID:              e.ID,
		StudentEmail:    e.StudentEmail.String(),
		CourseID:        e.CourseID.String(),
		EnrolledAt:      e.EnrolledAt,
		Completed:       e.Completed,
		ProgressPercent: e.ProgressPercent,
	}
}

// handleEnroll handles POST /enrollments.
func (s *Server) handleEnroll(c *gin.Context) {
	if s.deps.Enroll == nil {
		s.storeUnavailable(c)
		return
	}

	var req enrollRequest
	if !s.bindJSON(c, &req) {
		return
	}

	e, err := s.deps.Enroll.Handle(c.Request.Context(), command.EnrollCommand{
		StudentEmail: req.StudentEmail,
		CourseID:     req.CourseID,
	})
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	s.writeJSON(c, http.StatusCreated, toEnrollmentResponse(e))
}

type progressRequest struct {
	StudentEmail string `json:"studentEmail"`
	CourseID     string `json:"courseId"`
	ModuleID     string `json:"moduleId"`
	Completed    bool   `json:"completed"`
	QuizScore    *int   `json:"quizScore"`
}

type progressEntryResponse struct {
	CourseID    string     `json:"courseId"`
	ModuleID    string     `json:"moduleId"`
	Completed   bool       `json:"completed"`
	QuizScore   *int       `json:"quizScore"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	RecordedAt  time.Time  `json:"recordedAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type courseProgressResponse struct {
	CourseID        string  `json:"courseId"`
	ProgressPercent float64 `json:"progressPercent"`
	Completed       bool    `json:"completed"`
}

type recordProgressResponse struct {
	Entry    progressEntryResponse   `json:"entry"`
	Progress *courseProgressResponse `json:"progress,omitempty"`
	Warnings []string                `json:"warnings"`
}

func toRecordProgressResponse(r *command.RecordProgressResult) recordProgressResponse {
	resp := recordProgressResponse{Warnings: r.Warnings}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if r.Entry != nil {
		resp.Entry = progressEntryResponse{
			CourseID:    r.Entry.CourseID.String(),
			ModuleID:    r.Entry.ModuleID.String(),
			Completed:   r.Entry.Completed,
			QuizScore:   r.Entry.QuizScore,
			CompletedAt: r.Entry.CompletedAt,
			RecordedAt:  r.Entry.RecordedAt,
			UpdatedAt:   r.Entry.UpdatedAt,
		}
	}
	if r.Progress != nil {
		resp.Progress = &courseProgressResponse{
			CourseID:        r.Progress.CourseID.String(),
			ProgressPercent: r.Progress.ProgressPercent,
			Completed:       r.Progress.Completed,
		}
	}
	return resp
}

// handleRecordProgress handles POST /progress.
func (s *Server) handleRecordProgress(c *gin.Context) {
	if s.deps.Progress == nil {
		s.storeUnavailable(c)
		return
	}

	var req progressRequest
	if !s.bindJSON(c, &req) {
		return
	}

	result, err := s.deps.Progress.Handle(c.Request.Context(), command.RecordProgressCommand{
		StudentEmail: req.StudentEmail,
		CourseID:     req.CourseID,
		ModuleID:     req.ModuleID,
		Completed:    req.Completed,
		QuizScore:    req.QuizScore,
	})
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	s.writeJSON(c, http.StatusOK, toRecordProgressResponse(result))
}

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Cohort      string `json:"cohort"`
	Password    string `json:"password"`
}

// studentResponse never carries the password hash.
type studentResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Cohort      string    `json:"cohort,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toStudentResponse(st *student.Student) studentResponse {
	return studentResponse{
		ID:          st.ID,
		Email:       st.Email.String(),
		DisplayName: st.DisplayName,
		Cohort:      st.Cohort.String(),
		Status:      string(st.Status),
		CreatedAt:   st.CreatedAt,
	}
}

// handleRegisterStudent handles POST /students.
func (s *Server) handleRegisterStudent(c *gin.Context) {
	if s.deps.Register == nil {
		s.storeUnavailable(c)
		return
	}

	var req registerRequest
	if !s.bindJSON(c, &req) {
		return
	}

	st, err := s.deps.Register.Handle(c.Request.Context(), command.RegisterStudentCommand{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Cohort:      req.Cohort,
		Password:    req.Password,
	})
	if err != nil {
		s.writeDomainError(c, err)
		return
	}

	s.writeJSON(c, http.StatusCreated, toStudentResponse(st))
}
