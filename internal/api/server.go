// Package api exposes run history, record validation and heteroplasmy
// normalization over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mito-cohort-pipeline/internal/domain"
	"github.com/mito-cohort-pipeline/internal/middleware"
	"github.com/mito-cohort-pipeline/internal/service"
	"github.com/mito-cohort-pipeline/pkg/mito"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
	maxRecordBytes  = 10 << 20
)

// Dependencies are the optional collaborators of the HTTP server. A nil
// RunStore or Resolver disables the routes that need it.
type Dependencies struct {
	RunStore domain.RunStore
	Resolver domain.OntologyResolver
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	loader        *service.RecordLoader
	validator     *service.RecordValidator
	normalizer    *service.TissueNormalizer
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestLogger(logger))

	server := &Server{
		configManager: configManager,
		deps:          deps,
		loader:        service.NewRecordLoader(logger),
		validator:     service.NewRecordValidator(logger),
		normalizer:    service.NewTissueNormalizer(logger),
		logger:        logger,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Handler returns the HTTP handler, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:id", s.handleGetRun)
		v1.POST("/records/validate", s.handleValidateRecord)
		v1.POST("/heteroplasmy/normalize", s.handleNormalize)
		v1.GET("/hpo/:id", s.handleResolveHPO)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"run_store": s.deps.RunStore != nil,
		"ontology":  s.deps.Resolver != nil,
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.deps.RunStore == nil {
		s.unavailable(c, "run store is not configured")
		return
	}

	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		s.badRequest(c, fmt.Sprintf("limit must be between 1 and %d", maxPageSize))
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		s.badRequest(c, "offset must be a non-negative integer")
		return
	}

	runs, err := s.deps.RunStore.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if runs == nil {
		runs = []*domain.RunReport{}
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":   runs,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.deps.RunStore == nil {
		s.unavailable(c, "run store is not configured")
		return
	}

	report, err := s.deps.RunStore.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ValidationIssue is one failed check of a record
type ValidationIssue struct {
	Code    domain.ErrorCode `json:"code"`
	Field   string           `json:"field,omitempty"`
	Message string           `json:"message"`
}

// ValidationResponse is returned by POST /api/v1/records/validate
type ValidationResponse struct {
	RecordID string            `json:"record_id"`
	Valid    bool              `json:"valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []string          `json:"warnings"`
}

// NewValidationResponse flattens a validation result for JSON clients
func NewValidationResponse(result *service.ValidationResult) ValidationResponse {
	response := ValidationResponse{
		RecordID: result.RecordID,
		Valid:    result.Valid(),
		Errors:   []ValidationIssue{},
		Warnings: result.Warnings,
	}
	if response.Warnings == nil {
		response.Warnings = []string{}
	}

	for _, err := range result.Errors {
		issue := ValidationIssue{Code: domain.CodeOf(err), Message: err.Error()}
		var recordErr *domain.RecordError
		if errors.As(err, &recordErr) {
			issue.Field = recordErr.Field
			issue.Message = recordErr.Message
		}
		response.Errors = append(response.Errors, issue)
	}
	return response
}

// handleValidateRecord validates the posted record JSON. Targets and the
// threshold come from the query string: ?targets=A3243G,A73G&threshold=5.
func (s *Server) handleValidateRecord(c *gin.Context) {
	targets, err := mito.ParseTargets(c.Query("targets"))
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}

	threshold := 0.0
	if raw := c.Query("threshold"); raw != "" {
		threshold, err = strconv.ParseFloat(raw, 64)
		if err != nil || threshold < 0 || threshold > 100 {
			s.badRequest(c, "threshold must be a number within [0, 100]")
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRecordBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("record exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		s.badRequest(c, "failed to read request body")
		return
	}

	recordID := c.DefaultQuery("record_id", "request.json")
	record, err := s.loader.Decode(recordID, body)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ValidationResponse{
			RecordID: recordID,
			Errors:   []ValidationIssue{{Code: domain.CodeOf(err), Message: err.Error()}},
			Warnings: []string{},
		})
		return
	}

	result := s.validator.Validate(record, targets, threshold)
	c.JSON(http.StatusOK, NewValidationResponse(result))
}

// NormalizeRequest is the body of POST /api/v1/heteroplasmy/normalize
type NormalizeRequest struct {
	Heteroplasmy  *float64 `json:"heteroplasmy" binding:"required"`
	Tissue        string   `json:"tissue"`
	Sex           string   `json:"sex"`
	AgeAtSampling int      `json:"age_at_sampling"`
	Mode          string   `json:"mode"`
}

// NormalizeResponse reports the canonical tissue and both percentages
type NormalizeResponse = service.NormalizedReading

func (s *Server) handleNormalize(c *gin.Context) {
	var req NormalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}

	response, err := Normalize(s.normalizer, req)
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, response)
}

// Normalize applies the tissue models to a request. An empty mode means "yes".
func Normalize(normalizer *service.TissueNormalizer, req NormalizeRequest) (NormalizeResponse, error) {
	if req.Heteroplasmy == nil {
		return NormalizeResponse{}, fmt.Errorf("heteroplasmy is required")
	}
	return normalizer.NormalizeReading(service.Reading{
		Heteroplasmy:  *req.Heteroplasmy,
		Tissue:        req.Tissue,
		Sex:           req.Sex,
		AgeAtSampling: req.AgeAtSampling,
		Mode:          req.Mode,
	})
}

func (s *Server) handleResolveHPO(c *gin.Context) {
	if s.deps.Resolver == nil {
		s.unavailable(c, "ontology resolver is not configured")
		return
	}

	id := c.Param("id")
	name, err := s.deps.Resolver.ResolveName(c.Request.Context(), id)
	if err != nil {
		s.logger.WithError(err).WithField("hpo_term", id).Warn("HPO lookup failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if name == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown HPO term %s", id)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"hpo_term": id, "hpo_name": name})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func (s *Server) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func (s *Server) unavailable(c *gin.Context, message string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": message})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.WithFields(logrus.Fields{
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
		"error":          err.Error(),
	}).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
