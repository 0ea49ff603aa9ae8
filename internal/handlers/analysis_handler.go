package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stwalsh4118/reval/internal/cama"
	apierrors "github.com/stwalsh4118/reval/internal/errors"
	"github.com/stwalsh4118/reval/internal/quality"
	"github.com/stwalsh4118/reval/internal/services"
	"github.com/stwalsh4118/reval/internal/valuation"
)

// AnalysisHandler handles valuation analysis HTTP requests.
type AnalysisHandler struct {
	service services.AnalysisService
}

// NewAnalysisHandler creates a new AnalysisHandler instance.
func NewAnalysisHandler(service services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

// Register wires the analysis routes under the given job-scoped group.
func (h *AnalysisHandler) Register(jobs *gin.RouterGroup) {
	jobs.POST("/analysis/overall", h.Overall)
	jobs.POST("/analysis/conditions", h.Conditions)
	jobs.POST("/analysis/attributes", h.Attributes)
	jobs.POST("/analysis/land/rates", h.LandRates)
	jobs.POST("/analysis/land/allocation", h.Allocation)
	jobs.POST("/analysis/ccf", h.CCF)
	jobs.POST("/analysis/quality", h.Quality)
}

// OverallRequest is the body for the overall analysis endpoint.
type OverallRequest struct {
	BaselineOverride string `json:"baselineOverride,omitempty" binding:"omitempty,max=10"`
}

// ConditionsRequest is the body for the condition cascade endpoint.
type ConditionsRequest struct {
	TypeClass string             `json:"typeClass,omitempty" binding:"omitempty,oneof=single_family semi_detached townhouse multifamily conversion condominium all_residential all"`
	Actual    map[string]float64 `json:"actual,omitempty"`
}

// AttributesRequest is the body for the custom attribute endpoint.
type AttributesRequest struct {
	Field      string `json:"field" binding:"required,min=1,max=100"`
	MatchValue string `json:"matchValue,omitempty" binding:"omitempty,max=100"`
}

// SaleOverridesRequest carries per-sale categorization and exclusion for
// the land endpoints.
type SaleOverridesRequest struct {
	Categories map[string]string `json:"categories,omitempty"`
	Excluded   []string          `json:"excluded,omitempty"`
}

// CCFRequest is the body for the cost-conversion-factor endpoint.
type CCFRequest struct {
	WindowStart string   `json:"windowStart,omitempty" binding:"omitempty,datetime=2006-01-02"`
	WindowEnd   string   `json:"windowEnd,omitempty" binding:"omitempty,datetime=2006-01-02"`
	MaxAge      int      `json:"maxAge,omitempty" binding:"omitempty,min=1,max=100"`
	TypeClass   string   `json:"typeClass,omitempty" binding:"omitempty,oneof=single_family semi_detached townhouse multifamily conversion condominium all_residential all"`
	Excluded    []string `json:"excluded,omitempty"`
}

// QualityRequest optionally carries ad hoc checks to run alongside the
// job's saved ones.
type QualityRequest struct {
	Checks []quality.CustomCheck `json:"checks,omitempty"`
}

// Overall handles POST /api/v1/jobs/:jobID/analysis/overall.
func (h *AnalysisHandler) Overall(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	var req OverallRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.service.RunOverallAnalysis(c.Request.Context(), jobID, req.BaselineOverride)
	if err != nil {
		h.serviceError(c, err, "Failed to run overall analysis")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Conditions handles POST /api/v1/jobs/:jobID/analysis/conditions.
func (h *AnalysisHandler) Conditions(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	var req ConditionsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	opts := valuation.ConditionOptions{TypeClass: valuation.TypeUseClass(req.TypeClass)}
	if len(req.Actual) > 0 {
		opts.Actual = make(map[cama.Condition]float64, len(req.Actual))
		for cond, pct := range req.Actual {
			opts.Actual[cama.Condition(cond)] = pct
		}
	}

	result, err := h.service.RunConditionCascades(c.Request.Context(), jobID, opts)
	if err != nil {
		h.serviceError(c, err, "Failed to run condition cascade analysis")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Attributes handles POST /api/v1/jobs/:jobID/analysis/attributes.
func (h *AnalysisHandler) Attributes(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	var req AttributesRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.service.RunAttributeComparison(c.Request.Context(), jobID, req.Field, req.MatchValue)
	if err != nil {
		h.serviceError(c, err, "Failed to run attribute comparison")
		return
	}
	c.JSON(http.StatusOK, result)
}

// LandRates handles POST /api/v1/jobs/:jobID/analysis/land/rates.
func (h *AnalysisHandler) LandRates(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	var req SaleOverridesRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.service.RunLandAnalysis(c.Request.Context(), jobID, saleOverrides(req))
	if err != nil {
		h.serviceError(c, err, "Failed to run land rate analysis")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Allocation handles POST /api/v1/jobs/:jobID/analysis/land/allocation.
func (h *AnalysisHandler) Allocation(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	var req SaleOverridesRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.service.RunAllocationStudy(c.Request.Context(), jobID, saleOverrides(req))
	if err != nil {
		h.serviceError(c, err, "Failed to run allocation study")
		return
	}
	c.JSON(http.StatusOK, result)
}

// CCF handles POST /api/v1/jobs/:jobID/analysis/ccf.
func (h *AnalysisHandler) CCF(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	var req CCFRequest
	if !h.bindJSON(c, &req) {
		return
	}

	opts := valuation.CCFOptions{
		MaxAge:    req.MaxAge,
		TypeClass: valuation.TypeUseClass(req.TypeClass),
	}
	// Dates are pre-validated by the datetime binding tag.
	if req.WindowStart != "" {
		opts.Window.Start, _ = time.Parse("2006-01-02", req.WindowStart)
	}
	if req.WindowEnd != "" {
		opts.Window.End, _ = time.Parse("2006-01-02", req.WindowEnd)
	}
	if len(req.Excluded) > 0 {
		opts.Excluded = make(map[string]bool, len(req.Excluded))
		for _, key := range req.Excluded {
			opts.Excluded[key] = true
		}
	}

	result, err := h.service.RunCCFAnalysis(c.Request.Context(), jobID, opts)
	if err != nil {
		h.serviceError(c, err, "Failed to run CCF analysis")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Quality handles POST /api/v1/jobs/:jobID/analysis/quality.
func (h *AnalysisHandler) Quality(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	var req QualityRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.service.RunQualityChecks(c.Request.Context(), jobID, req.Checks)
	if err != nil {
		h.serviceError(c, err, "Failed to run quality checks")
		return
	}
	c.JSON(http.StatusOK, result)
}

// jobID parses and validates the :jobID path parameter.
func (h *AnalysisHandler) jobID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("jobID"), 10, 64)
	if err != nil || id <= 0 {
		apierrors.BadRequest(c, "jobID must be a positive integer", map[string]interface{}{
			"jobID": c.Param("jobID"),
		})
		return 0, false
	}
	return id, true
}

// bindJSON binds the request body, tolerating an empty body for requests
// whose fields are all optional.
func (h *AnalysisHandler) bindJSON(c *gin.Context, dest any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dest); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apierrors.ValidationError(c, validationErrors)
		} else {
			apierrors.BadRequest(c, "Invalid request body", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return false
	}
	return true
}

// serviceError maps service sentinel errors onto the API error envelope.
func (h *AnalysisHandler) serviceError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, services.ErrJobNotFound):
		apierrors.NotFound(c, "Job not found")
	case errors.Is(err, services.ErrNoProperties):
		apierrors.BadRequest(c, "Job has no property records to analyze", nil)
	default:
		apierrors.InternalServerError(c, message, err)
	}
}

// saleOverrides converts the request DTO to the engine's override value.
func saleOverrides(req SaleOverridesRequest) valuation.VacantSaleOverrides {
	overrides := valuation.VacantSaleOverrides{}
	if len(req.Categories) > 0 {
		overrides.Categories = make(map[string]valuation.SaleCategory, len(req.Categories))
		for key, cat := range req.Categories {
			overrides.Categories[key] = valuation.SaleCategory(cat)
		}
	}
	if len(req.Excluded) > 0 {
		overrides.Excluded = make(map[string]bool, len(req.Excluded))
		for _, key := range req.Excluded {
			overrides.Excluded[key] = true
		}
	}
	return overrides
}
