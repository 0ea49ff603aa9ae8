package valuation

import (
	"time"

	"github.com/stwalsh4118/reval/internal/models"
)

// defaultMaxComparableAge restricts CCF comparables to new or near-new
// improvements, where replacement cost still tracks market cost.
const defaultMaxComparableAge = 20

// CCFOptions narrows which sales qualify as CCF comparables.
type CCFOptions struct {
	// Window bounds the sale dates considered; zero ends are open.
	Window models.DateRange
	// MaxAge overrides the default 20-year new-construction cutoff.
	MaxAge int
	// TypeClass restricts to one property-type group; empty means all
	// residential.
	TypeClass TypeUseClass
	// Excluded carries the user's unchecked comparables by property key.
	Excluded map[string]bool
}

// CCFComparable is one qualifying sale with its computed cost conversion
// factor and back-calculated adjusted value.
type CCFComparable struct {
	PropertyKey         string    `json:"propertyKey"`
	VCS                 string    `json:"vcs,omitempty"`
	SaleDate            time.Time `json:"saleDate"`
	YearBuilt           int       `json:"yearBuilt"`
	EffectivePrice      float64   `json:"effectivePrice"`
	DeprFactor          float64   `json:"deprFactor"`
	ReplacementWithDepr float64   `json:"replacementWithDepr"`
	ImprovementPortion  float64   `json:"improvementPortion"`
	CCF                 float64   `json:"ccf"`
	AdjustedValue       float64   `json:"adjustedValue"`
	AdjustedRatio       float64   `json:"adjustedRatio"`
	Included            bool      `json:"included"`
}

// CCFResult is the cost-conversion-factor study output: per-comparable
// detail plus the mean recommendation and the median for robustness
// reporting.
type CCFResult struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Comparables []CCFComparable `json:"comparables"`
	MeanCCF     *float64        `json:"meanCcf"`
	MedianCCF   *float64        `json:"medianCcf"`
	AppliedCCF  *float64        `json:"appliedCcf"`
	Message     string          `json:"message,omitempty"`
}

// AnalyzeCCF computes the depreciation-adjusted replacement-cost-to-price
// ratio over qualifying comparables. Comparables whose depreciated
// replacement cost is non-positive are skipped outright, never treated as
// CCF zero. A job-level accepted CCF, when present, supersedes the
// computed mean for the adjusted-value back-calculation.
func AnalyzeCCF(records []*models.PropertyRecord, cfg *models.JobConfig, opts CCFOptions) CCFResult {
	result := CCFResult{GeneratedAt: time.Now().UTC()}

	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = defaultMaxComparableAge
	}
	typeClass := opts.TypeClass
	if typeClass == "" {
		typeClass = TypeAllResidential
	}
	currentYear := cfg.CurrentYear
	if currentYear == 0 {
		currentYear = time.Now().Year()
	}

	var included []float64
	for _, p := range records {
		if !HasValidSale(p, cfg) || p.SaleDate == nil {
			continue
		}
		if !opts.Window.Contains(*p.SaleDate) {
			continue
		}
		if !MatchesTypeUse(p.TypeUse, typeClass) {
			continue
		}
		if p.YearBuilt <= 0 || currentYear-p.YearBuilt > maxAge {
			continue
		}

		depr := DepreciationFactor(p.YearBuilt, currentYear)
		replacement := (p.DetachedItemsValue + p.BaseReplacementCost) * depr
		if replacement <= 0 {
			// Zero replacement cost means missing cost data, not a free
			// improvement; the ratio is undefined for this record.
			continue
		}

		price := cfg.EffectiveSalePrice(p)
		improvement := price - p.LandValue - p.DetachedItemsValue
		ccf := improvement / replacement

		comp := CCFComparable{
			PropertyKey:         p.CompositeKey,
			VCS:                 p.VCS,
			SaleDate:            *p.SaleDate,
			YearBuilt:           p.YearBuilt,
			EffectivePrice:      price,
			DeprFactor:          depr,
			ReplacementWithDepr: replacement,
			ImprovementPortion:  improvement,
			CCF:                 ccf,
			Included:            !opts.Excluded[p.CompositeKey],
		}
		result.Comparables = append(result.Comparables, comp)

		if comp.Included {
			included = append(included, ccf)
		}
	}

	if len(included) > 0 {
		result.MeanCCF = floatPtr(mean(included))
		result.MedianCCF = floatPtr(median(included))
	} else {
		result.Message = "No qualifying comparables with positive depreciated replacement cost; no factor can be recommended"
	}

	// The accepted job-level factor, once saved, drives all adjusted
	// values; otherwise the freshly computed mean does.
	applied := cfg.AcceptedCCF
	if applied == nil {
		applied = result.MeanCCF
	}
	result.AppliedCCF = applied

	if applied != nil {
		byKey := make(map[string]*models.PropertyRecord, len(records))
		for _, p := range records {
			byKey[p.CompositeKey] = p
		}
		for i := range result.Comparables {
			comp := &result.Comparables[i]
			rec := byKey[comp.PropertyKey]
			if rec == nil {
				continue
			}
			comp.AdjustedValue = rec.LandValue +
				rec.BaseReplacementCost*comp.DeprFactor**applied +
				rec.DetachedItemsValue
			if comp.EffectivePrice > 0 {
				comp.AdjustedRatio = comp.AdjustedValue / comp.EffectivePrice
			}
		}
	}

	return result
}
