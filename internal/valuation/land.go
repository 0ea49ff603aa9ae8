package valuation

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/stwalsh4118/reval/internal/models"
)

// SaleCategory is the user's classification of a vacant-land sale.
type SaleCategory string

const (
	CategoryRawLand      SaleCategory = "raw_land"
	CategoryBuildingLot  SaleCategory = "building_lot"
	CategoryTeardown     SaleCategory = "teardown"
	CategoryWetlands     SaleCategory = "wetlands"
	CategoryConservation SaleCategory = "conservation"
	CategoryGreenAcres   SaleCategory = "green_acres"
	CategoryLandlocked   SaleCategory = "landlocked"
	CategoryOther        SaleCategory = "other"
)

// rateExcludedCategories never feed rate statistics: their prices reflect
// encumbrances, not market land value.
var rateExcludedCategories = map[SaleCategory]bool{
	CategoryWetlands:     true,
	CategoryConservation: true,
	CategoryLandlocked:   true,
}

// PackageSale flags a sale recorded across multiple parcels under one deed
// book/page; its per-parcel price is not a standalone market observation.
type PackageSale struct {
	Count      int      `json:"count"`
	TotalPrice float64  `json:"totalPrice"`
	Keys       []string `json:"keys"`
}

// VacantSale is one vacant-land sale enriched for rate derivation.
type VacantSale struct {
	PropertyKey  string       `json:"propertyKey"`
	VCS          string       `json:"vcs,omitempty"`
	Location     string       `json:"location,omitempty"`
	SaleDate     time.Time    `json:"saleDate"`
	SalePrice    float64      `json:"salePrice"`
	TotalAcres   float64      `json:"totalAcres"`
	PricePerAcre float64      `json:"pricePerAcre"`
	Category     SaleCategory `json:"category"`
	Included     bool         `json:"included"`
	Package      *PackageSale `json:"package,omitempty"`
}

// VacantSaleOverrides carries the user's per-sale categorization and
// inclusion toggles, keyed by property composite key.
type VacantSaleOverrides struct {
	Categories map[string]SaleCategory
	Excluded   map[string]bool
}

// CollectVacantSales filters the snapshot to usable vacant-land sales in
// the window, derives $/acre, applies overrides, and flags package sales
// recorded under a shared deed book/page.
func CollectVacantSales(records []*models.PropertyRecord, window models.DateRange, overrides VacantSaleOverrides) []VacantSale {
	byBookPage := make(map[string][]*models.PropertyRecord)
	for _, p := range records {
		if p.SaleBook != "" && p.SalePage != "" && p.SalePrice > 0 {
			key := p.SaleBook + "/" + p.SalePage
			byBookPage[key] = append(byBookPage[key], p)
		}
	}

	var sales []VacantSale
	for _, p := range records {
		if !IsVacantLandSale(p, window) {
			continue
		}

		acres := p.TotalAcres()
		perAcre := 0.0
		if acres > 0 {
			perAcre = math.Round(p.SalePrice / acres)
		}

		sale := VacantSale{
			PropertyKey:  p.CompositeKey,
			VCS:          strings.TrimSpace(p.VCS),
			Location:     p.Location,
			SaleDate:     *p.SaleDate,
			SalePrice:    p.SalePrice,
			TotalAcres:   acres,
			PricePerAcre: perAcre,
			Category:     overrides.Categories[p.CompositeKey],
			Included:     !overrides.Excluded[p.CompositeKey],
			Package:      packageSale(p, byBookPage),
		}
		sales = append(sales, sale)
	}

	sort.Slice(sales, func(i, j int) bool { return sales[i].PropertyKey < sales[j].PropertyKey })
	return sales
}

// packageSale reports the deed-mates of a sale, or nil when it stands
// alone.
func packageSale(p *models.PropertyRecord, byBookPage map[string][]*models.PropertyRecord) *PackageSale {
	if p.SaleBook == "" || p.SalePage == "" {
		return nil
	}
	mates := byBookPage[p.SaleBook+"/"+p.SalePage]
	if len(mates) < 2 {
		return nil
	}

	pkg := &PackageSale{Count: len(mates)}
	for _, m := range mates {
		pkg.TotalPrice += m.SalePrice
		if m.CompositeKey != p.CompositeKey {
			pkg.Keys = append(pkg.Keys, m.CompositeKey)
		}
	}
	return pkg
}

// RateStats summarizes $/acre over included vacant sales.
type RateStats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// CalculateRates computes rate statistics over the included, non-excluded-
// category sales with a positive per-acre rate.
func CalculateRates(sales []VacantSale) RateStats {
	var rates []float64
	for _, s := range sales {
		if !s.Included || rateExcludedCategories[s.Category] {
			continue
		}
		if s.PricePerAcre > 0 {
			rates = append(rates, s.PricePerAcre)
		}
	}
	if len(rates) == 0 {
		return RateStats{}
	}

	sort.Float64s(rates)
	return RateStats{
		Count:   len(rates),
		Average: math.Round(mean(rates)),
		Median:  math.Round(median(rates)),
		Min:     rates[0],
		Max:     rates[len(rates)-1],
	}
}

// BracketStats summarizes one acreage bucket of a VCS's improved sales.
type BracketStats struct {
	Count    int      `json:"count"`
	AvgAcres *float64 `json:"avgAcres"`
	AvgPrice *float64 `json:"avgPrice"`
}

// VCSBracketAnalysis is the lot-size bracket evidence for one zone. The
// implied rate is the finite-difference marginal price per acre between
// the under-1-acre and 1-to-5-acre buckets.
type VCSBracketAnalysis struct {
	VCS            string       `json:"vcs"`
	TotalSales     int          `json:"totalSales"`
	Small          BracketStats `json:"small"`  // < 1 acre
	Medium         BracketStats `json:"medium"` // 1-5 acres
	Large          BracketStats `json:"large"`  // 5-10 acres
	XLarge         BracketStats `json:"xlarge"` // > 10 acres
	ImpliedRate    *float64     `json:"impliedRate"`
	StrongEvidence bool         `json:"strongEvidence"`
}

// Bracket analysis thresholds: a VCS reports only with 5+ sales, and its
// implied rate counts as strong evidence at 10+.
const (
	minBracketSales     = 5
	strongEvidenceSales = 10
)

// AnalyzeBrackets buckets each zone's improved residential sales (class 2
// and 3A) by acreage and derives the implied land rate where both the
// small and medium buckets have sales. Negative implied rates are dropped
// so they cannot poison downstream averages.
func AnalyzeBrackets(records []*models.PropertyRecord, cfg *models.JobConfig) map[string]VCSBracketAnalysis {
	type obs struct {
		acres, price float64
	}
	byVCS := make(map[string][]obs)

	for _, p := range records {
		if p.M4Class != "2" && p.M4Class != "3A" {
			continue
		}
		vcs := strings.TrimSpace(p.VCS)
		if vcs == "" || p.SalePrice <= 0 {
			continue
		}
		price := p.SizeNormPrice
		if price <= 0 {
			price = p.SalePrice
		}
		byVCS[vcs] = append(byVCS[vcs], obs{acres: p.TotalAcres(), price: price})
	}

	analysis := make(map[string]VCSBracketAnalysis)
	for vcs, sales := range byVCS {
		if len(sales) < minBracketSales {
			continue
		}

		var small, medium, large, xlarge []obs
		for _, s := range sales {
			switch {
			case s.acres < 1:
				small = append(small, s)
			case s.acres < 5:
				medium = append(medium, s)
			case s.acres < 10:
				large = append(large, s)
			default:
				xlarge = append(xlarge, s)
			}
		}

		stats := func(bucket []obs) BracketStats {
			bs := BracketStats{Count: len(bucket)}
			if len(bucket) == 0 {
				return bs
			}
			var acres, price float64
			for _, s := range bucket {
				acres += s.acres
				price += s.price
			}
			bs.AvgAcres = floatPtr(acres / float64(len(bucket)))
			bs.AvgPrice = floatPtr(price / float64(len(bucket)))
			return bs
		}

		a := VCSBracketAnalysis{
			VCS:        vcs,
			TotalSales: len(sales),
			Small:      stats(small),
			Medium:     stats(medium),
			Large:      stats(large),
			XLarge:     stats(xlarge),
		}

		if a.Small.Count > 0 && a.Medium.Count > 0 {
			priceDiff := *a.Medium.AvgPrice - *a.Small.AvgPrice
			acresDiff := *a.Medium.AvgAcres - *a.Small.AvgAcres
			if acresDiff > 0 && priceDiff > 0 {
				a.ImpliedRate = floatPtr(math.Round(priceDiff / acresDiff))
			}
		}
		a.StrongEvidence = a.ImpliedRate != nil && a.TotalSales >= strongEvidenceSales

		analysis[vcs] = a
	}
	return analysis
}

// Confidence grades a rate recommendation's evidentiary basis.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Secondary/excess/residual rates default to these fractions of prime
// unless manually overridden. Fixed heuristic ratios, not derived.
const (
	secondaryRatio = 0.67
	excessRatio    = 0.33
	residualRatio  = 0.15
)

// fallbackPrimeRate backs the recommendation when no evidence of any kind
// exists; the caller still receives a result, just a low-confidence one.
const fallbackPrimeRate = 50000.0

// Recommendation evidence thresholds.
const (
	minRawLandSalesForHigh  = 5
	minStrongZonesForMedium = 3
)

// RateRecommendation is the engine's suggested cascade rates with the
// confidence grade and its reasoning.
type RateRecommendation struct {
	Confidence Confidence `json:"confidence"`
	Prime      float64    `json:"prime"`
	Secondary  float64    `json:"secondary"`
	Excess     float64    `json:"excess"`
	Residual   float64    `json:"residual"`
	Message    string     `json:"message"`
}

// RecommendRates evaluates the decision table in order: enough raw-land
// vacant sales give HIGH confidence on the vacant average; enough strong
// bracket zones give MEDIUM on the mean implied rate; anything else is
// LOW, on the vacant average when one exists, else the hardcoded
// fallback. It always returns a usable recommendation.
func RecommendRates(sales []VacantSale, brackets map[string]VCSBracketAnalysis) RateRecommendation {
	rawLand := 0
	for _, s := range sales {
		if s.Included && s.Category == CategoryRawLand {
			rawLand++
		}
	}

	var strongRates []float64
	for _, a := range brackets {
		if a.StrongEvidence {
			strongRates = append(strongRates, *a.ImpliedRate)
		}
	}

	stats := CalculateRates(sales)

	var rec RateRecommendation
	switch {
	case rawLand >= minRawLandSalesForHigh:
		rec.Confidence = ConfidenceHigh
		rec.Prime = stats.Average
		rec.Message = fmt.Sprintf("%d categorized raw land sales support the vacant-sale average", rawLand)
	case len(strongRates) >= minStrongZonesForMedium:
		rec.Confidence = ConfidenceMedium
		rec.Prime = math.Round(mean(strongRates))
		rec.Message = fmt.Sprintf("%d VCS zones with strong lot-size evidence; using their mean implied rate", len(strongRates))
	case stats.Count > 0:
		rec.Confidence = ConfidenceLow
		rec.Prime = stats.Average
		rec.Message = fmt.Sprintf("Only %d usable vacant sales and insufficient bracket evidence; verify manually", stats.Count)
	default:
		rec.Confidence = ConfidenceLow
		rec.Prime = fallbackPrimeRate
		rec.Message = "No vacant sales or bracket evidence available; falling back to the standard starting rate"
	}

	rec.Secondary = math.Round(rec.Prime * secondaryRatio)
	rec.Excess = math.Round(rec.Prime * excessRatio)
	rec.Residual = math.Round(rec.Prime * residualRatio)
	return rec
}

// CascadeBreakdown is the tiered acreage split and the resulting raw land
// value.
type CascadeBreakdown struct {
	PrimeAcres     float64 `json:"primeAcres"`
	SecondaryAcres float64 `json:"secondaryAcres"`
	ExcessAcres    float64 `json:"excessAcres"`
	ResidualAcres  float64 `json:"residualAcres"`
	RawLandValue   float64 `json:"rawLandValue"`
}

// CascadeValue prices acreage through the four tiers progressively, the
// same way tax brackets apply: the first tier's span at prime, the next
// at secondary, and so on, with everything past the last break at
// residual.
func CascadeValue(acres float64, cfg models.CascadeRateConfig) CascadeBreakdown {
	breaks := cfg.Breaks
	if breaks.PrimeMax <= 0 {
		breaks = models.DefaultCascadeBreaks()
	}

	var b CascadeBreakdown
	remaining := acres

	b.PrimeAcres = math.Min(remaining, breaks.PrimeMax)
	remaining -= b.PrimeAcres

	if remaining > 0 {
		b.SecondaryAcres = math.Min(remaining, breaks.SecondaryMax-breaks.PrimeMax)
		remaining -= b.SecondaryAcres
	}
	if remaining > 0 {
		b.ExcessAcres = math.Min(remaining, breaks.ExcessMax-breaks.SecondaryMax)
		remaining -= b.ExcessAcres
	}
	if remaining > 0 {
		b.ResidualAcres = remaining
	}

	b.RawLandValue = b.PrimeAcres*cfg.Prime +
		b.SecondaryAcres*cfg.Secondary +
		b.ExcessAcres*cfg.Excess +
		b.ResidualAcres*cfg.Residual
	return b
}

// RatioStatus bands a ratio for flagging. The bands color results in the
// review UI; they never reject data.
type RatioStatus string

const (
	RatioGood    RatioStatus = "good"
	RatioWarning RatioStatus = "warning"
	RatioError   RatioStatus = "error"
)

func ratioStatus(ratio, goodLo, goodHi, warnLo, warnHi float64) RatioStatus {
	switch {
	case ratio >= goodLo && ratio <= goodHi:
		return RatioGood
	case ratio >= warnLo && ratio <= warnHi:
		return RatioWarning
	default:
		return RatioError
	}
}

// VacantAllocation is one vacant sale tested against the cascade rates:
// the residual between sale price and raw land value is the site value.
type VacantAllocation struct {
	PropertyKey string           `json:"propertyKey"`
	VCS         string           `json:"vcs,omitempty"`
	SaleYear    int              `json:"saleYear"`
	SalePrice   float64          `json:"salePrice"`
	Acres       float64          `json:"acres"`
	Cascade     CascadeBreakdown `json:"cascade"`
	SiteValue   float64          `json:"siteValue"`
	TotalLand   float64          `json:"totalLandValue"`
	Ratio       float64          `json:"ratio"`
	Status      RatioStatus      `json:"status"`
}

// VCSSiteValue aggregates the site values of a zone's vacant sales.
type VCSSiteValue struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
}

// ImprovedAllocation tests an improved sale's land allocation: cascade raw
// land plus the zone's site value against the sale price.
type ImprovedAllocation struct {
	PropertyKey      string           `json:"propertyKey"`
	VCS              string           `json:"vcs"`
	SaleYear         int              `json:"saleYear"`
	SalePrice        float64          `json:"salePrice"`
	Acres            float64          `json:"acres"`
	Cascade          CascadeBreakdown `json:"cascade"`
	SiteValue        float64          `json:"siteValue"`
	CalculatedLand   float64          `json:"calculatedLandValue"`
	RecommendedRatio float64          `json:"recommendedAllocation"`
	CurrentRatio     float64          `json:"currentAllocation"`
	AllocationDelta  float64          `json:"allocationDelta"`
	Status           RatioStatus      `json:"status"`
}

// AllocationStudyResult rolls up the allocation test across vacant and
// improved sales.
type AllocationStudyResult struct {
	GeneratedAt   time.Time               `json:"generatedAt"`
	VacantSales   []VacantAllocation      `json:"vacantSales"`
	SiteValues    map[string]VCSSiteValue `json:"siteValuesByVcs"`
	ImprovedSales []ImprovedAllocation    `json:"improvedSales"`
	AvgAllocation *float64                `json:"avgAllocation"`
	Message       string                  `json:"message,omitempty"`
}

// RunAllocationStudy processes the included vacant sales through the
// cascade calculator to derive per-zone site values, then tests improved
// sales in those zones against the implied land allocation ratio.
func RunAllocationStudy(records []*models.PropertyRecord, sales []VacantSale, cfg *models.JobConfig) AllocationStudyResult {
	result := AllocationStudyResult{
		GeneratedAt: time.Now().UTC(),
		SiteValues:  make(map[string]VCSSiteValue),
	}
	if cfg.Cascade.Prime <= 0 {
		result.Message = "Cascade rates are not configured; set a prime rate before running the allocation study"
		return result
	}

	siteByVCS := make(map[string][]float64)
	for _, s := range sales {
		if !s.Included {
			continue
		}
		cascade := CascadeValue(s.TotalAcres, cfg.Cascade)
		siteValue := s.SalePrice - cascade.RawLandValue
		totalLand := cascade.RawLandValue + math.Max(0, siteValue)

		ratio := 0.0
		if s.SalePrice > 0 {
			ratio = totalLand / s.SalePrice
		}

		result.VacantSales = append(result.VacantSales, VacantAllocation{
			PropertyKey: s.PropertyKey,
			VCS:         s.VCS,
			SaleYear:    s.SaleDate.Year(),
			SalePrice:   s.SalePrice,
			Acres:       s.TotalAcres,
			Cascade:     cascade,
			SiteValue:   siteValue,
			TotalLand:   totalLand,
			Ratio:       ratio,
			Status:      ratioStatus(ratio, 0.9, 1.1, 0.8, 1.2),
		})

		if s.VCS != "" && siteValue > 0 {
			siteByVCS[s.VCS] = append(siteByVCS[s.VCS], siteValue)
		}
	}

	for vcs, values := range siteByVCS {
		result.SiteValues[vcs] = VCSSiteValue{
			Count:   len(values),
			Average: mean(values),
			Median:  median(values),
		}
	}

	var allocations []float64
	for _, p := range records {
		if p.M4Class != "2" && p.M4Class != "3A" {
			continue
		}
		vcs := strings.TrimSpace(p.VCS)
		site, ok := result.SiteValues[vcs]
		if !ok {
			continue
		}
		if p.SaleDate == nil || p.SalePrice <= 0 || p.YearBuilt <= 0 {
			continue
		}
		if p.LandValue <= 0 || p.TotalValue <= 0 {
			continue
		}

		cascade := CascadeValue(p.TotalAcres(), cfg.Cascade)
		calculated := cascade.RawLandValue + site.Average

		salePrice := p.SizeNormPrice
		if salePrice <= 0 {
			salePrice = p.SalePrice
		}
		recommended := 0.0
		if salePrice > 0 {
			recommended = calculated / salePrice
		}
		current := p.LandValue / p.TotalValue

		allocations = append(allocations, recommended)
		result.ImprovedSales = append(result.ImprovedSales, ImprovedAllocation{
			PropertyKey:      p.CompositeKey,
			VCS:              vcs,
			SaleYear:         p.SaleYear(),
			SalePrice:        salePrice,
			Acres:            p.TotalAcres(),
			Cascade:          cascade,
			SiteValue:        site.Average,
			CalculatedLand:   calculated,
			RecommendedRatio: recommended,
			CurrentRatio:     current,
			AllocationDelta:  recommended - current,
			Status:           ratioStatus(recommended, 0.25, 0.40, 0.20, 0.45),
		})
	}

	if len(allocations) > 0 {
		result.AvgAllocation = floatPtr(mean(allocations))
	} else if result.Message == "" {
		result.Message = "No improved sales fall in zones with derived site values; allocation evidence is vacant-sale only"
	}
	return result
}
