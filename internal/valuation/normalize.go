// Package valuation implements the market and land valuation calculation
// engine: size/time normalization, grouped aggregation with baseline
// deltas, condition-adjustment cascades, cascading land rates, allocation
// testing and cost-conversion-factor analysis. Every function is pure:
// records in, plain serializable results out.
package valuation

import "sort"

// sizeElasticity is the fixed share of the marginal value of a size
// difference attributed to size itself. Domain heuristic, not a derived
// statistic; not configurable.
const sizeElasticity = 0.5

// sizeNoiseBandSqFt is the band within which some call sites skip the size
// adjustment entirely, to avoid amplifying noise on small denominators.
// The band applies per call site, never inside AdjustPrice itself.
const sizeNoiseBandSqFt = 100.0

// AdjustPrice returns the sale price adjusted to what it would be at
// baselineSize, attributing half of the per-unit price to the size
// difference. Unknown (non-positive) sizes return the price unadjusted.
func AdjustPrice(salePrice, propertySize, baselineSize float64) float64 {
	if propertySize <= 0 || baselineSize <= 0 {
		return salePrice
	}
	pricePerUnit := salePrice / propertySize
	delta := baselineSize - propertySize
	return salePrice + delta*pricePerUnit*sizeElasticity
}

// adjustPriceBanded applies AdjustPrice unless the two sizes are within
// the noise band of each other.
func adjustPriceBanded(salePrice, propertySize, baselineSize float64) float64 {
	if propertySize > 0 && baselineSize > 0 {
		diff := baselineSize - propertySize
		if diff < 0 {
			diff = -diff
		}
		if diff <= sizeNoiseBandSqFt {
			return salePrice
		}
	}
	return AdjustPrice(salePrice, propertySize, baselineSize)
}

// DepreciationFactor returns the straight-line 100-year depreciation
// multiplier for an improvement built in yearBuilt, clamped to [0, 1].
// An unknown year built yields 0.
func DepreciationFactor(yearBuilt, currentYear int) float64 {
	if yearBuilt <= 0 {
		return 0
	}
	factor := 1 - float64(currentYear-yearBuilt)/100
	if factor < 0 {
		return 0
	}
	if factor > 1 {
		return 1
	}
	return factor
}

// mean returns the arithmetic mean of values, or 0 for an empty slice.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// median returns the middle value of values, averaging the two middle
// values for even counts. Returns 0 for an empty slice.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// floatPtr is a convenience for nullable numeric result fields.
func floatPtr(v float64) *float64 { return &v }
