package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/reval/internal/database"
	"github.com/stwalsh4118/reval/internal/models"
	"github.com/stwalsh4118/reval/internal/quality"
)

// PropertyRepository defines data access for a job's property snapshot.
type PropertyRepository interface {
	// ListByJob loads the full property snapshot for a job. Returns an
	// empty slice when the job has no records (not an error).
	ListByJob(ctx context.Context, jobID int64) ([]*models.PropertyRecord, error)
}

// JobRepository defines data access for job-scoped configuration.
type JobRepository interface {
	// GetConfig loads the job's analysis configuration. Returns nil, nil
	// when the job does not exist.
	GetConfig(ctx context.Context, jobID int64) (*models.JobConfig, error)

	// ListCustomChecks loads the job's saved user-authored quality
	// checks. Returns an empty slice when none are saved.
	ListCustomChecks(ctx context.Context, jobID int64) ([]quality.CustomCheck, error)
}

type propertyRepository struct {
	db *database.Database
}

// NewPropertyRepository creates a new instance of PropertyRepository.
func NewPropertyRepository(db *database.Database) PropertyRepository {
	return &propertyRepository{db: db}
}

// ListByJob reads every property record for the job, including the vendor
// raw-data bag. Each analysis run works on this frozen snapshot for its
// whole computation.
func (r *propertyRepository) ListByJob(ctx context.Context, jobID int64) ([]*models.PropertyRecord, error) {
	query := `
		SELECT
			id,
			property_composite_key,
			property_block,
			property_lot,
			property_qualifier,
			property_addl_card,
			property_location,
			property_m4_class,
			property_cama_class,
			asset_type_use,
			asset_design_style,
			asset_building_class,
			asset_sfla,
			asset_lot_acre,
			asset_lot_sf,
			asset_year_built,
			asset_bedrooms,
			asset_bathrooms,
			asset_ext_cond,
			asset_int_cond,
			inspection_info_by,
			values_mod_land,
			values_mod_improvement,
			values_mod_total,
			values_base_cost,
			values_det_items,
			sales_date,
			sales_price,
			sales_nu,
			sales_book,
			sales_page,
			values_norm_time,
			values_norm_size,
			new_vcs,
			raw_data,
			created_at,
			updated_at
		FROM property_records
		WHERE job_id = $1
		ORDER BY property_composite_key
	`

	rows, err := r.db.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties for job %d: %w", jobID, err)
	}
	defer rows.Close()

	var records []*models.PropertyRecord
	for rows.Next() {
		var p models.PropertyRecord
		err := rows.Scan(
			&p.ID,
			&p.CompositeKey,
			&p.Block,
			&p.Lot,
			&p.Qualifier,
			&p.AddlCard,
			&p.Location,
			&p.M4Class,
			&p.CAMAClass,
			&p.TypeUse,
			&p.DesignStyle,
			&p.BuildingClass,
			&p.LivingArea,
			&p.LotAcre,
			&p.LotSF,
			&p.YearBuilt,
			&p.Bedrooms,
			&p.Bathrooms,
			&p.ExteriorCondition,
			&p.InteriorCondition,
			&p.InfoByCode,
			&p.LandValue,
			&p.ImprovementValue,
			&p.TotalValue,
			&p.BaseReplacementCost,
			&p.DetachedItemsValue,
			&p.SaleDate,
			&p.SalePrice,
			&p.SaleNU,
			&p.SaleBook,
			&p.SalePage,
			&p.TimeNormPrice,
			&p.SizeNormPrice,
			&p.VCS,
			&p.RawData,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		records = append(records, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating property rows: %w", err)
	}

	if records == nil {
		records = []*models.PropertyRecord{}
	}
	return records, nil
}

type jobRepository struct {
	db *database.Database
}

// NewJobRepository creates a new instance of JobRepository.
func NewJobRepository(db *database.Database) JobRepository {
	return &jobRepository{db: db}
}

// GetConfig reads the job row's configuration columns into an immutable
// JobConfig value.
func (r *jobRepository) GetConfig(ctx context.Context, jobID int64) (*models.JobConfig, error) {
	query := `
		SELECT
			id,
			vendor_type,
			infoby_category_config,
			parsed_code_definitions,
			cascade_rate_config,
			price_basis,
			sales_window_start,
			sales_window_end,
			accepted_ccf,
			assessment_year
		FROM jobs
		WHERE id = $1
	`

	cfg := models.JobConfig{}
	var windowStart, windowEnd *string
	err := r.db.Pool.QueryRow(ctx, query, jobID).Scan(
		&cfg.JobID,
		&cfg.Vendor,
		&cfg.InfoBy,
		&cfg.CodeDefinitions,
		&cfg.Cascade,
		&cfg.PriceBasis,
		&windowStart,
		&windowEnd,
		&cfg.AcceptedCCF,
		&cfg.CurrentYear,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query config for job %d: %w", jobID, err)
	}

	if cfg.PriceBasis == "" {
		cfg.PriceBasis = models.BasisTimeNormalized
	}
	if cfg.Cascade.Breaks.PrimeMax <= 0 {
		cfg.Cascade.Breaks = models.DefaultCascadeBreaks()
	}
	window, err := parseWindow(windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid sales window for job %d: %w", jobID, err)
	}
	cfg.SalesWindow = window

	return &cfg, nil
}

// ListCustomChecks reads the job's saved custom quality checks from the
// jobs row's JSONB column.
func (r *jobRepository) ListCustomChecks(ctx context.Context, jobID int64) ([]quality.CustomCheck, error) {
	query := `SELECT COALESCE(custom_checks, '[]'::jsonb) FROM jobs WHERE id = $1`

	var checks []quality.CustomCheck
	err := r.db.Pool.QueryRow(ctx, query, jobID).Scan(&checks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []quality.CustomCheck{}, nil
		}
		return nil, fmt.Errorf("failed to query custom checks for job %d: %w", jobID, err)
	}
	if checks == nil {
		checks = []quality.CustomCheck{}
	}
	return checks, nil
}
