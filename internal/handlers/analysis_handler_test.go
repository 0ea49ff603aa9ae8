package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/reval/internal/quality"
	"github.com/stwalsh4118/reval/internal/services"
	"github.com/stwalsh4118/reval/internal/valuation"
)

// MockAnalysisService is a mock implementation of services.AnalysisService.
type MockAnalysisService struct {
	mock.Mock
}

func (m *MockAnalysisService) RunOverallAnalysis(ctx context.Context, jobID int64, baselineOverride string) (*valuation.OverallResult, error) {
	args := m.Called(ctx, jobID, baselineOverride)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*valuation.OverallResult), args.Error(1)
}

func (m *MockAnalysisService) RunConditionCascades(ctx context.Context, jobID int64, opts valuation.ConditionOptions) (*valuation.ConditionCascadeResult, error) {
	args := m.Called(ctx, jobID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*valuation.ConditionCascadeResult), args.Error(1)
}

func (m *MockAnalysisService) RunAttributeComparison(ctx context.Context, jobID int64, field, matchValue string) (*valuation.AttributeComparison, error) {
	args := m.Called(ctx, jobID, field, matchValue)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*valuation.AttributeComparison), args.Error(1)
}

func (m *MockAnalysisService) RunLandAnalysis(ctx context.Context, jobID int64, overrides valuation.VacantSaleOverrides) (*services.LandRateResult, error) {
	args := m.Called(ctx, jobID, overrides)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LandRateResult), args.Error(1)
}

func (m *MockAnalysisService) RunAllocationStudy(ctx context.Context, jobID int64, overrides valuation.VacantSaleOverrides) (*valuation.AllocationStudyResult, error) {
	args := m.Called(ctx, jobID, overrides)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*valuation.AllocationStudyResult), args.Error(1)
}

func (m *MockAnalysisService) RunCCFAnalysis(ctx context.Context, jobID int64, opts valuation.CCFOptions) (*valuation.CCFResult, error) {
	args := m.Called(ctx, jobID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*valuation.CCFResult), args.Error(1)
}

func (m *MockAnalysisService) RunQualityChecks(ctx context.Context, jobID int64, extraChecks []quality.CustomCheck) (*services.QualityResult, error) {
	args := m.Called(ctx, jobID, extraChecks)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.QualityResult), args.Error(1)
}

func setupAnalysisRouter(svc services.AnalysisService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewAnalysisHandler(svc)
	handler.Register(router.Group("/api/v1/jobs/:jobID"))
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAnalysisHandler_Overall(t *testing.T) {
	t.Run("returns the analysis result", func(t *testing.T) {
		svc := new(MockAnalysisService)
		svc.On("RunOverallAnalysis", mock.Anything, int64(1), "10").
			Return(&valuation.OverallResult{PropertyCount: 42}, nil)
		router := setupAnalysisRouter(svc)

		w := postJSON(t, router, "/api/v1/jobs/1/analysis/overall", OverallRequest{BaselineOverride: "10"})

		assert.Equal(t, http.StatusOK, w.Code)
		var result valuation.OverallResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
		assert.Equal(t, 42, result.PropertyCount)
		svc.AssertExpectations(t)
	})

	t.Run("empty body runs with defaults", func(t *testing.T) {
		svc := new(MockAnalysisService)
		svc.On("RunOverallAnalysis", mock.Anything, int64(1), "").
			Return(&valuation.OverallResult{}, nil)
		router := setupAnalysisRouter(svc)

		w := postJSON(t, router, "/api/v1/jobs/1/analysis/overall", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("unknown job returns 404", func(t *testing.T) {
		svc := new(MockAnalysisService)
		svc.On("RunOverallAnalysis", mock.Anything, int64(99), "").
			Return(nil, services.ErrJobNotFound)
		router := setupAnalysisRouter(svc)

		w := postJSON(t, router, "/api/v1/jobs/99/analysis/overall", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("empty job returns 400", func(t *testing.T) {
		svc := new(MockAnalysisService)
		svc.On("RunOverallAnalysis", mock.Anything, int64(1), "").
			Return(nil, services.ErrNoProperties)
		router := setupAnalysisRouter(svc)

		w := postJSON(t, router, "/api/v1/jobs/1/analysis/overall", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unexpected error returns 500", func(t *testing.T) {
		svc := new(MockAnalysisService)
		svc.On("RunOverallAnalysis", mock.Anything, int64(1), "").
			Return(nil, assert.AnError)
		router := setupAnalysisRouter(svc)

		w := postJSON(t, router, "/api/v1/jobs/1/analysis/overall", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("non-numeric job id returns 400 without hitting the service", func(t *testing.T) {
		svc := new(MockAnalysisService)
		router := setupAnalysisRouter(svc)

		w := postJSON(t, router, "/api/v1/jobs/abc/analysis/overall", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "RunOverallAnalysis")
	})

	t.Run("negative job id returns 400", func(t *testing.T) {
		svc := new(MockAnalysisService)
		router := setupAnalysisRouter(svc)

		w := postJSON(t, router, "/api/v1/jobs/-5/analysis/overall", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAnalysisHandler_Conditions(t *testing.T) {
	t.Run("maps the request onto engine options", func(t *testing.T) {
		svc := new(MockAnalysisService)
		svc.On("RunConditionCascades", mock.Anything, int64(1), mock.MatchedBy(func(opts valuation.ConditionOptions) bool {
			return opts.TypeClass == valuation.TypeSingleFamily && len(opts.Actual) == 1
		})).Return(&valuation.ConditionCascadeResult{}, nil)
		router := setupAnalysisRouter(svc)

		body := ConditionsRequest{
			TypeClass: "single_family",
			Actual:    map[string]float64{"GOOD": 7.5},
		}
		w := postJSON(t, router, "/api/v1/jobs/1/analysis/conditions", body)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("rejects an unknown type class", func(t *testing.T) {
		svc := new(MockAnalysisService)
		router := setupAnalysisRouter(svc)

		w := postJSON(t, router, "/api/v1/jobs/1/analysis/conditions", ConditionsRequest{TypeClass: "mansion"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "RunConditionCascades")
	})
}

func TestAnalysisHandler_Attributes(t *testing.T) {
	t.Run("requires a field", func(t *testing.T) {
		svc := new(MockAnalysisService)
		router := setupAnalysisRouter(svc)

		w := postJSON(t, router, "/api/v1/jobs/1/analysis/attributes", AttributesRequest{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "RunAttributeComparison")
	})

	t.Run("passes field and match value through", func(t *testing.T) {
		svc := new(MockAnalysisService)
		svc.On("RunAttributeComparison", mock.Anything, int64(1), "raw_data.POOL", "Y").
			Return(&valuation.AttributeComparison{Field: "raw_data.POOL"}, nil)
		router := setupAnalysisRouter(svc)

		body := AttributesRequest{Field: "raw_data.POOL", MatchValue: "Y"}
		w := postJSON(t, router, "/api/v1/jobs/1/analysis/attributes", body)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})
}

func TestAnalysisHandler_LandRates(t *testing.T) {
	svc := new(MockAnalysisService)
	svc.On("RunLandAnalysis", mock.Anything, int64(1), mock.MatchedBy(func(o valuation.VacantSaleOverrides) bool {
		return o.Categories["101-1"] == valuation.CategoryRawLand && o.Excluded["101-2"]
	})).Return(&services.LandRateResult{}, nil)
	router := setupAnalysisRouter(svc)

	body := SaleOverridesRequest{
		Categories: map[string]string{"101-1": "raw_land"},
		Excluded:   []string{"101-2"},
	}
	w := postJSON(t, router, "/api/v1/jobs/1/analysis/land/rates", body)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestAnalysisHandler_Allocation(t *testing.T) {
	svc := new(MockAnalysisService)
	svc.On("RunAllocationStudy", mock.Anything, int64(1), valuation.VacantSaleOverrides{}).
		Return(&valuation.AllocationStudyResult{}, nil)
	router := setupAnalysisRouter(svc)

	w := postJSON(t, router, "/api/v1/jobs/1/analysis/land/allocation", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestAnalysisHandler_CCF(t *testing.T) {
	t.Run("maps window and exclusions onto options", func(t *testing.T) {
		svc := new(MockAnalysisService)
		svc.On("RunCCFAnalysis", mock.Anything, int64(1), mock.MatchedBy(func(opts valuation.CCFOptions) bool {
			return opts.MaxAge == 15 &&
				opts.Window.Start.Year() == 2022 &&
				opts.Excluded["101-9"]
		})).Return(&valuation.CCFResult{}, nil)
		router := setupAnalysisRouter(svc)

		body := CCFRequest{
			WindowStart: "2022-01-01",
			MaxAge:      15,
			Excluded:    []string{"101-9"},
		}
		w := postJSON(t, router, "/api/v1/jobs/1/analysis/ccf", body)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("rejects a malformed window date", func(t *testing.T) {
		svc := new(MockAnalysisService)
		router := setupAnalysisRouter(svc)

		w := postJSON(t, router, "/api/v1/jobs/1/analysis/ccf", CCFRequest{WindowStart: "01/01/2022"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "RunCCFAnalysis")
	})
}

func TestAnalysisHandler_Quality(t *testing.T) {
	svc := new(MockAnalysisService)
	svc.On("RunQualityChecks", mock.Anything, int64(1), mock.MatchedBy(func(checks []quality.CustomCheck) bool {
		return len(checks) == 1 && checks[0].ID == "adhoc"
	})).Return(&services.QualityResult{}, nil)
	router := setupAnalysisRouter(svc)

	body := QualityRequest{Checks: []quality.CustomCheck{{
		ID:       "adhoc",
		Name:     "Ad hoc",
		Severity: quality.SeverityInfo,
	}}}
	w := postJSON(t, router, "/api/v1/jobs/1/analysis/quality", body)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}
