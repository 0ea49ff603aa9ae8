package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stwalsh4118/reval/internal/cama"
	"github.com/stwalsh4118/reval/internal/config"
	"github.com/stwalsh4118/reval/internal/logger"
	"github.com/stwalsh4118/reval/internal/models"
	"github.com/stwalsh4118/reval/internal/quality"
	"github.com/stwalsh4118/reval/internal/repository"
	"github.com/stwalsh4118/reval/internal/valuation"
)

// Service-level errors
var (
	ErrJobNotFound  = errors.New("job not found")
	ErrNoProperties = errors.New("job has no property records")
)

// QualityResult is the persisted data-quality output: full issue list
// plus summary counts and score.
type QualityResult struct {
	GeneratedAt   time.Time       `json:"generatedAt"`
	PropertyCount int             `json:"propertyCount"`
	Issues        []quality.Issue `json:"issues"`
	Summary       quality.Summary `json:"summary"`
}

// LandRateResult bundles all land-rate evidence with the engine's
// recommendation.
type LandRateResult struct {
	GeneratedAt time.Time                               `json:"generatedAt"`
	VacantSales []valuation.VacantSale                  `json:"vacantSales"`
	RateStats   valuation.RateStats                     `json:"rateStats"`
	Brackets    map[string]valuation.VCSBracketAnalysis `json:"brackets"`
	Recommended valuation.RateRecommendation            `json:"recommended"`
}

// AnalysisService runs the valuation analyses for a job: it loads the
// frozen property snapshot, invokes the pure calculation engine, persists
// the serialized result, and returns it.
type AnalysisService interface {
	// RunOverallAnalysis runs the type/use, design/style and VCS pattern
	// analyses. baselineOverride optionally pins the type/use baseline.
	RunOverallAnalysis(ctx context.Context, jobID int64, baselineOverride string) (*valuation.OverallResult, error)

	// RunConditionCascades tests the exterior and interior condition
	// cascades.
	RunConditionCascades(ctx context.Context, jobID int64, opts valuation.ConditionOptions) (*valuation.ConditionCascadeResult, error)

	// RunAttributeComparison partitions valid sales by a raw-data field.
	RunAttributeComparison(ctx context.Context, jobID int64, field, matchValue string) (*valuation.AttributeComparison, error)

	// RunLandAnalysis derives vacant-sale rates, bracket evidence and the
	// cascade rate recommendation.
	RunLandAnalysis(ctx context.Context, jobID int64, overrides valuation.VacantSaleOverrides) (*LandRateResult, error)

	// RunAllocationStudy tests the configured cascade rates against
	// vacant and improved sales.
	RunAllocationStudy(ctx context.Context, jobID int64, overrides valuation.VacantSaleOverrides) (*valuation.AllocationStudyResult, error)

	// RunCCFAnalysis computes the cost conversion factor study.
	RunCCFAnalysis(ctx context.Context, jobID int64, opts valuation.CCFOptions) (*valuation.CCFResult, error)

	// RunQualityChecks runs the built-in and saved custom checks.
	RunQualityChecks(ctx context.Context, jobID int64, extraChecks []quality.CustomCheck) (*QualityResult, error)
}

type analysisService struct {
	properties repository.PropertyRepository
	jobs       repository.JobRepository
	results    repository.AnalysisRepository
	defaults   config.AnalysisConfig
	log        *logger.Logger
}

// NewAnalysisService creates a new instance of AnalysisService. defaults
// fills in job configuration fields the job itself leaves unset.
func NewAnalysisService(
	properties repository.PropertyRepository,
	jobs repository.JobRepository,
	results repository.AnalysisRepository,
	defaults config.AnalysisConfig,
	log *logger.Logger,
) AnalysisService {
	return &analysisService{
		properties: properties,
		jobs:       jobs,
		results:    results,
		defaults:   defaults,
		log:        log,
	}
}

// snapshot loads the job's config, adapter and frozen property set. Every
// analysis works from this one load; nothing mutates it mid-run.
func (s *analysisService) snapshot(ctx context.Context, jobID int64) (*models.JobConfig, cama.Adapter, []*models.PropertyRecord, error) {
	cfg, err := s.jobs.GetConfig(ctx, jobID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load job config: %w", err)
	}
	if cfg == nil {
		return nil, nil, nil, ErrJobNotFound
	}
	s.applyDefaults(cfg)

	adapter, err := cama.New(cfg.Vendor, cfg.CodeDefinitions)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build vendor adapter: %w", err)
	}

	records, err := s.properties.ListByJob(ctx, jobID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load property snapshot: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil, ErrNoProperties
	}

	return cfg, adapter, records, nil
}

// applyDefaults fills unset job configuration from the service-level
// analysis defaults. The sales window, when absent, spans WindowYears
// full calendar years ending December 31 of the valuation year.
func (s *analysisService) applyDefaults(cfg *models.JobConfig) {
	if cfg.Vendor == "" {
		cfg.Vendor = models.VendorType(s.defaults.Vendor)
	}
	if cfg.CurrentYear == 0 {
		cfg.CurrentYear = s.defaults.ValuationYear
		if cfg.CurrentYear == 0 {
			cfg.CurrentYear = time.Now().Year()
		}
	}
	if cfg.SalesWindow.Start.IsZero() && cfg.SalesWindow.End.IsZero() && s.defaults.WindowYears > 0 {
		end := time.Date(cfg.CurrentYear, time.December, 31, 0, 0, 0, 0, time.UTC)
		cfg.SalesWindow = models.DateRange{
			Start: time.Date(cfg.CurrentYear-s.defaults.WindowYears+1, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   end,
		}
	}
}

func (s *analysisService) RunOverallAnalysis(ctx context.Context, jobID int64, baselineOverride string) (*valuation.OverallResult, error) {
	cfg, adapter, records, err := s.snapshot(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.log.WithJob(jobID).Info("Running overall analysis", map[string]interface{}{
		"property_count":    len(records),
		"baseline_override": baselineOverride,
	})

	result := valuation.AnalyzeOverall(records, cfg, adapter, baselineOverride)

	if err := s.results.SaveResult(ctx, jobID, repository.ResultOverall, result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *analysisService) RunConditionCascades(ctx context.Context, jobID int64, opts valuation.ConditionOptions) (*valuation.ConditionCascadeResult, error) {
	cfg, adapter, records, err := s.snapshot(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.log.WithJob(jobID).Info("Running condition cascade analysis", map[string]interface{}{
		"property_count": len(records),
		"type_class":     string(opts.TypeClass),
	})

	result := valuation.AnalyzeConditionCascades(records, cfg, adapter, opts)

	if err := s.results.SaveResult(ctx, jobID, repository.ResultConditions, result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *analysisService) RunAttributeComparison(ctx context.Context, jobID int64, field, matchValue string) (*valuation.AttributeComparison, error) {
	cfg, _, records, err := s.snapshot(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.log.WithJob(jobID).Info("Running attribute comparison", map[string]interface{}{
		"field":       field,
		"match_value": matchValue,
	})

	result := valuation.CompareAttribute(records, cfg, field, matchValue)

	if err := s.results.SaveResult(ctx, jobID, repository.ResultAttributes, result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *analysisService) RunLandAnalysis(ctx context.Context, jobID int64, overrides valuation.VacantSaleOverrides) (*LandRateResult, error) {
	cfg, _, records, err := s.snapshot(ctx, jobID)
	if err != nil {
		return nil, err
	}

	sales := valuation.CollectVacantSales(records, cfg.SalesWindow, overrides)
	brackets := valuation.AnalyzeBrackets(records, cfg)
	recommended := valuation.RecommendRates(sales, brackets)

	s.log.WithJob(jobID).Info("Land rate analysis complete", map[string]interface{}{
		"vacant_sales": len(sales),
		"bracket_vcs":  len(brackets),
		"confidence":   string(recommended.Confidence),
	})

	result := &LandRateResult{
		GeneratedAt: time.Now().UTC(),
		VacantSales: sales,
		RateStats:   valuation.CalculateRates(sales),
		Brackets:    brackets,
		Recommended: recommended,
	}

	if err := s.results.SaveResult(ctx, jobID, repository.ResultLandRates, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *analysisService) RunAllocationStudy(ctx context.Context, jobID int64, overrides valuation.VacantSaleOverrides) (*valuation.AllocationStudyResult, error) {
	cfg, _, records, err := s.snapshot(ctx, jobID)
	if err != nil {
		return nil, err
	}

	sales := valuation.CollectVacantSales(records, cfg.SalesWindow, overrides)
	result := valuation.RunAllocationStudy(records, sales, cfg)

	s.log.WithJob(jobID).Info("Allocation study complete", map[string]interface{}{
		"vacant_tested":   len(result.VacantSales),
		"improved_tested": len(result.ImprovedSales),
	})

	if err := s.results.SaveResult(ctx, jobID, repository.ResultAllocation, result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *analysisService) RunCCFAnalysis(ctx context.Context, jobID int64, opts valuation.CCFOptions) (*valuation.CCFResult, error) {
	cfg, _, records, err := s.snapshot(ctx, jobID)
	if err != nil {
		return nil, err
	}

	result := valuation.AnalyzeCCF(records, cfg, opts)

	s.log.WithJob(jobID).Info("CCF analysis complete", map[string]interface{}{
		"comparables": len(result.Comparables),
	})

	if err := s.results.SaveResult(ctx, jobID, repository.ResultCCF, result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *analysisService) RunQualityChecks(ctx context.Context, jobID int64, extraChecks []quality.CustomCheck) (*QualityResult, error) {
	_, _, records, err := s.snapshot(ctx, jobID)
	if err != nil {
		return nil, err
	}

	saved, err := s.jobs.ListCustomChecks(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load custom checks: %w", err)
	}
	checks := append(saved, extraChecks...)

	issues := quality.RunBuiltinChecks(records)
	issues = append(issues, quality.RunCustomChecks(records, checks)...)

	result := &QualityResult{
		GeneratedAt:   time.Now().UTC(),
		PropertyCount: len(records),
		Issues:        issues,
		Summary:       quality.Summarize(issues, len(records)),
	}

	s.log.WithJob(jobID).Info("Quality checks complete", map[string]interface{}{
		"issues": result.Summary.Total,
		"score":  result.Summary.Score,
	})

	if err := s.results.SaveResult(ctx, jobID, repository.ResultQuality, result); err != nil {
		return nil, err
	}
	return result, nil
}
