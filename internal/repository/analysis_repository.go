package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/reval/internal/database"
	"github.com/stwalsh4118/reval/internal/models"
)

// Analysis result columns on the market_land_valuation table. Column names
// are whitelisted here because they are interpolated into SQL.
const (
	ResultOverall    = "overall_analysis_results"
	ResultConditions = "condition_cascade_results"
	ResultAttributes = "attribute_analysis_results"
	ResultLandRates  = "land_rate_results"
	ResultAllocation = "allocation_study_results"
	ResultCCF        = "ccf_results"
	ResultQuality    = "quality_results"
)

var resultColumns = map[string]bool{
	ResultOverall:    true,
	ResultConditions: true,
	ResultAttributes: true,
	ResultLandRates:  true,
	ResultAllocation: true,
	ResultCCF:        true,
	ResultQuality:    true,
}

// ErrUnknownResultColumn guards the column whitelist.
var ErrUnknownResultColumn = errors.New("unknown analysis result column")

// AnalysisRepository persists job-scoped analysis results as JSONB state.
// Results are plain serializable data; they are re-hydrated across
// sessions rather than recomputed.
type AnalysisRepository interface {
	// SaveResult upserts one analysis result column for the job.
	SaveResult(ctx context.Context, jobID int64, column string, payload any) error

	// LoadResult reads one analysis result column into dest. Returns
	// false when the job has no saved state for that column (not an
	// error).
	LoadResult(ctx context.Context, jobID int64, column string, dest any) (bool, error)
}

type analysisRepository struct {
	db *database.Database
}

// NewAnalysisRepository creates a new instance of AnalysisRepository.
func NewAnalysisRepository(db *database.Database) AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) SaveResult(ctx context.Context, jobID int64, column string, payload any) error {
	if !resultColumns[column] {
		return fmt.Errorf("%w: %q", ErrUnknownResultColumn, column)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize %s for job %d: %w", column, jobID, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO market_land_valuation (job_id, %[1]s, %[1]s_updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id)
		DO UPDATE SET %[1]s = $2, %[1]s_updated_at = $3
	`, column)

	if _, err := r.db.Pool.Exec(ctx, query, jobID, body, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save %s for job %d: %w", column, jobID, err)
	}
	return nil
}

func (r *analysisRepository) LoadResult(ctx context.Context, jobID int64, column string, dest any) (bool, error) {
	if !resultColumns[column] {
		return false, fmt.Errorf("%w: %q", ErrUnknownResultColumn, column)
	}

	query := fmt.Sprintf(`SELECT %s FROM market_land_valuation WHERE job_id = $1`, column)

	var body []byte
	err := r.db.Pool.QueryRow(ctx, query, jobID).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load %s for job %d: %w", column, jobID, err)
	}
	if len(body) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s for job %d: %w", column, jobID, err)
	}
	return true, nil
}

// parseWindow converts the job row's date strings to a DateRange. NULL
// ends stay open.
func parseWindow(start, end *string) (models.DateRange, error) {
	var window models.DateRange
	if start != nil && *start != "" {
		t, err := time.Parse("2006-01-02", *start)
		if err != nil {
			return window, fmt.Errorf("bad window start %q: %w", *start, err)
		}
		window.Start = t
	}
	if end != nil && *end != "" {
		t, err := time.Parse("2006-01-02", *end)
		if err != nil {
			return window, fmt.Errorf("bad window end %q: %w", *end, err)
		}
		window.End = t
	}
	return window, nil
}
