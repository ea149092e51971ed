package transport

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

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/analyzer"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/config"
	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/logger"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/repository"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/service"
	"github.com/Hyllesen/scamvenge-telegram-bot/pkg/models"
	"github.com/Hyllesen/scamvenge-telegram-bot/pkg/validation"
)

const (
	Version = "1.0.0"

	defaultPageSize = 50
	maxPageSize     = 500
)

type handler struct {
	svc        service.DedupService
	cfg        *config.Config
	detections *validation.DetectionValidator
	urls       *validation.URLValidator
}

// NewHandler builds the HTTP API
func NewHandler(svc service.DedupService, cfg *config.Config) http.Handler {
	h := &handler{
		svc:        svc,
		cfg:        cfg,
		detections: validation.NewDetectionValidator(),
		urls:       validation.NewURLValidator(),
	}

	r := gin.New()

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", h.healthCheck)

	v1 := r.Group("/v1")
	v1.POST("/detections/evaluate", h.evaluate)
	v1.POST("/detections/register", h.register)
	v1.POST("/screenshots", h.uploadScreenshot)
	v1.POST("/screenshots/fetch", h.fetchScreenshot)
	v1.GET("/stores", h.listStores)
	v1.GET("/stats", h.stats)

	return r
}

func (h *handler) evaluate(c *gin.Context) {
	h.detectionVerdict(c, h.svc.Evaluate)
}

func (h *handler) register(c *gin.Context) {
	h.detectionVerdict(c, h.svc.Register)
}

type verdictFunc func(ctx context.Context, set analyzer.OcrResultSet, ref string) (*service.Verdict, error)

func (h *handler) detectionVerdict(c *gin.Context, run verdictFunc) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	var req models.DetectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindStatus(err), "invalid request format", err)
		return
	}
	if err := h.detections.Validate(req); err != nil {
		respondError(c, apperrors.GetStatusCode(err), "invalid detections", err)
		return
	}

	v, err := run(ctx, req.ResultSet(), req.Reference)
	h.respondVerdict(c, req.Reference, v, err)
}

func (h *handler) uploadScreenshot(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, bindStatus(err), "multipart field \"image\" is required", err)
		return
	}
	ref := c.PostForm("reference")
	if ref == "" {
		ref = file.Filename
	}

	f, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to open upload", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read upload", err)
		return
	}

	logger.WithFields(logrus.Fields{
		"reference": ref,
		"bytes":     len(data),
	}).Debug("Screenshot uploaded")

	v, err := h.svc.ProcessImage(ctx, data, ref)
	h.respondVerdict(c, ref, v, err)
}

func (h *handler) fetchScreenshot(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	var req models.FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindStatus(err), "invalid request format", err)
		return
	}
	if err := h.urls.ValidateImageURL(req.URL); err != nil {
		respondError(c, apperrors.GetStatusCode(err), "invalid image URL", err)
		return
	}

	v, err := h.svc.FetchAndProcess(ctx, req.URL, req.Reference)
	ref := req.Reference
	if ref == "" {
		ref = req.URL
	}
	h.respondVerdict(c, ref, v, err)
}

func (h *handler) listStores(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		respondError(c, http.StatusBadRequest, "invalid limit",
			fmt.Errorf("limit must be within 1..%d", maxPageSize))
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		respondError(c, http.StatusBadRequest, "invalid offset", fmt.Errorf("offset must be >= 0"))
		return
	}

	records, err := h.svc.ListStores(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to list stores", err)
		return
	}

	resp := models.StoresResponse{Stores: make([]models.StoreResponse, 0, len(records)), Limit: limit, Offset: offset}
	for i := range records {
		resp.Stores = append(resp.Stores, *storeResponse(&records[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to read stats", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "available",
		Version:   Version,
		OCREngine: h.cfg.OCREngine,
		DryRun:    h.cfg.TestMode,
	})
}

func (h *handler) respondVerdict(c *gin.Context, ref string, v *service.Verdict, err error) {
	if err != nil {
		if appErr, ok := apperrors.As(err); ok && apperrors.IsSkip(err) {
			c.JSON(appErr.StatusCode, models.SkippedResponse{
				Skipped:   true,
				Reason:    string(appErr.Type),
				Message:   appErr.Message,
				Reference: ref,
			})
			return
		}
		respondError(c, apperrors.GetStatusCode(err), "screenshot processing failed", err)
		return
	}

	c.JSON(http.StatusOK, models.VerdictResponse{
		Reference:   v.Reference,
		StoreName:   v.StoreName,
		IsDuplicate: v.IsDuplicate,
		MatchedName: v.MatchedName,
		Score:       v.Score,
		Record:      storeResponse(v.Record),
		DryRun:      v.DryRun,
	})
}

func storeResponse(rec *repository.StoreRecord) *models.StoreResponse {
	if rec == nil {
		return nil
	}
	return &models.StoreResponse{
		ID:              rec.ID,
		Name:            rec.Name,
		SourceMessageID: rec.SourceMessageID,
		CreatedAt:       rec.CreatedAt,
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func bindStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request completed")
			return
		}
		entry.Info("Request completed")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	fields := logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}
	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	}
	if appErr, ok := apperrors.As(err); ok {
		fields["error_type"] = appErr.Type
		if appErr.Reference != "" {
			fields["reference"] = appErr.Reference
			resp.Reference = appErr.Reference
		}
		if appErr.Candidate != "" {
			fields["candidate"] = appErr.Candidate
		}
	}
	logger.WithError(err).WithFields(fields).Error("Request failed")

	c.AbortWithStatusJSON(code, resp)
}
