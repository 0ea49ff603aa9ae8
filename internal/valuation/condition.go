package valuation

import (
	"fmt"
	"strings"
	"time"

	"github.com/stwalsh4118/reval/internal/cama"
	"github.com/stwalsh4118/reval/internal/models"
)

// ConditionStep is one row of a condition cascade: the engine's tested
// percent alongside any user override. AVERAGE is the fixed 0% baseline.
type ConditionStep struct {
	Condition cama.Condition `json:"condition"`
	Tested    float64        `json:"tested"`
	Actual    *float64       `json:"actual,omitempty"`
	SaleCount int            `json:"saleCount"`
}

// ConditionCascadeResult carries the exterior and interior cascades for a
// job.
type ConditionCascadeResult struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Exterior    []ConditionStep `json:"exterior"`
	Interior    []ConditionStep `json:"interior"`
	Message     string          `json:"message,omitempty"`
}

// ConditionOptions narrows which sales feed the cascade.
type ConditionOptions struct {
	TypeClass TypeUseClass
	// Actual carries user overrides keyed by condition, copied onto the
	// output steps.
	Actual map[cama.Condition]float64
}

// AnalyzeConditionCascades tests the exterior and interior condition
// cascades independently. For each surface, sales are grouped by
// (VCS, condition) and every condition bucket is size-normalized to the
// same VCS's AVERAGE-condition sales size, so size differences between
// condition classes fold into the adjustment instead of canceling out.
// Tested percents aggregate across zones weighted by sale count.
func AnalyzeConditionCascades(records []*models.PropertyRecord, cfg *models.JobConfig, adapter cama.Adapter, opts ConditionOptions) ConditionCascadeResult {
	typeClass := opts.TypeClass
	if typeClass == "" {
		typeClass = TypeAllResidential
	}

	result := ConditionCascadeResult{GeneratedAt: time.Now().UTC()}
	result.Exterior = cascadeForSurface(records, cfg, adapter, typeClass, false, opts.Actual)
	result.Interior = cascadeForSurface(records, cfg, adapter, typeClass, true, opts.Actual)

	if cascadeEmpty(result.Exterior) && cascadeEmpty(result.Interior) {
		result.Message = "No qualifying sales carry condition codes; cascade defaults to 0% at every step"
	}
	return result
}

// cascadeForSurface runs one surface's cascade. interior=true additionally
// requires the record to have passed an interior inspection.
func cascadeForSurface(records []*models.PropertyRecord, cfg *models.JobConfig, adapter cama.Adapter, typeClass TypeUseClass, interior bool, actual map[cama.Condition]float64) []ConditionStep {
	condOf := adapter.ExteriorCondition
	if interior {
		condOf = adapter.InteriorCondition
	}

	var qualified []*models.PropertyRecord
	for _, p := range records {
		if !HasValidSale(p, cfg) || condOf(p) == "" {
			continue
		}
		if !MatchesTypeUse(p.TypeUse, typeClass) {
			continue
		}
		if !PassesEntryFilter(p, cfg, adapter) {
			continue
		}
		if interior && !InteriorInspected(p, cfg, adapter) {
			continue
		}
		qualified = append(qualified, p)
	}

	keyFn := func(p *models.PropertyRecord) (string, string, bool) {
		vcs := strings.TrimSpace(p.VCS)
		if vcs == "" {
			return "", "", false
		}
		return fmt.Sprintf("%s|%s", vcs, condOf(p)), "", true
	}
	saleFn := func(p *models.PropertyRecord) (float64, bool) {
		return cfg.EffectiveSalePrice(p), true
	}
	groups := Aggregate(qualified, keyFn, saleFn)

	// Re-baseline every condition bucket to its VCS's AVERAGE-condition
	// sales size, then aggregate the size-adjusted averages across zones
	// weighted by sale count.
	type accum struct {
		weighted float64
		count    int
	}
	totals := make(map[cama.Condition]*accum)
	avgTotals := &accum{}

	for key, g := range groups {
		vcs, cond := splitCascadeKey(key)
		if cond == "" || g.SaleCount == 0 {
			continue
		}

		baselineSize := 0.0
		if avg, ok := groups[fmt.Sprintf("%s|%s", vcs, cama.ConditionAverage)]; ok && avg.AvgSizeSales != nil {
			baselineSize = *avg.AvgSizeSales
		}

		sales, prices := g.Sales()
		var adjSum float64
		for i, p := range sales {
			adjSum += adjustPriceBanded(prices[i], p.LivingArea, baselineSize)
		}
		adjAvg := adjSum / float64(g.SaleCount)

		t := totals[cond]
		if t == nil {
			t = &accum{}
			totals[cond] = t
		}
		t.weighted += adjAvg * float64(g.SaleCount)
		t.count += g.SaleCount

		if cond == cama.ConditionAverage {
			avgTotals.weighted += adjAvg * float64(g.SaleCount)
			avgTotals.count += g.SaleCount
		}
	}

	var avgBase float64
	if avgTotals.count > 0 {
		avgBase = avgTotals.weighted / float64(avgTotals.count)
	}

	steps := make([]ConditionStep, 0, len(cama.CascadeOrder))
	for _, cond := range cama.CascadeOrder {
		step := ConditionStep{Condition: cond}
		if override, ok := actual[cond]; ok {
			step.Actual = floatPtr(override)
		}

		if t := totals[cond]; t != nil {
			step.SaleCount = t.count
		}

		// AVERAGE is the baseline at exactly 0 by construction.
		if cond == cama.ConditionAverage {
			steps = append(steps, step)
			continue
		}

		if t := totals[cond]; t != nil && t.count > 0 && avgBase > 0 {
			condAvg := t.weighted / float64(t.count)
			tested := (condAvg/avgBase - 1) * 100
			// A nicer condition testing below AVERAGE is a data anomaly;
			// clamp it rather than recommending a negative adjustment.
			if cond.AboveAverage() && tested < 0 {
				tested = 0
			}
			step.Tested = tested
		}
		steps = append(steps, step)
	}
	return steps
}

func splitCascadeKey(key string) (vcs string, cond cama.Condition) {
	parts := strings.SplitN(key, "|", 2)
	if len(parts) != 2 {
		return key, ""
	}
	return parts[0], cama.Condition(parts[1])
}

func cascadeEmpty(steps []ConditionStep) bool {
	for _, s := range steps {
		if s.SaleCount > 0 {
			return false
		}
	}
	return true
}

// AttributeStats summarizes one side of a custom attribute comparison.
type AttributeStats struct {
	Count    int      `json:"count"`
	AvgPrice *float64 `json:"avgPrice"`
	AvgSize  *float64 `json:"avgSize"`
}

// AttributeComparison is the output of a user-defined attribute analysis:
// valid sales partitioned into "has attribute" vs "lacks attribute" with
// the implied flat and percent adjustments.
type AttributeComparison struct {
	Field             string         `json:"field"`
	MatchValue        string         `json:"matchValue,omitempty"`
	With              AttributeStats `json:"with"`
	Without           AttributeStats `json:"without"`
	FlatAdjustment    *float64       `json:"flatAdjustment"`
	PercentAdjustment *float64       `json:"percentAdjustment"`
	SizeNormalized    bool           `json:"sizeNormalized"`
	Message           string         `json:"message,omitempty"`
}

// attributeSizeGate is the relative size difference between partitions
// above which the "has" partition is renormalized to the "lacks"
// partition's average size. Below the gate sizes are comparable and
// normalizing would only amplify noise.
const attributeSizeGate = 0.10

// CompareAttribute partitions the job's valid sales by a raw-data field.
// An empty matchValue tests presence; otherwise equality, numeric-tolerant
// so "2" matches 2.0.
func CompareAttribute(records []*models.PropertyRecord, cfg *models.JobConfig, field, matchValue string) AttributeComparison {
	out := AttributeComparison{Field: field, MatchValue: matchValue}

	var with, without []*models.PropertyRecord
	var withPrices, withoutPrices []float64
	for _, p := range records {
		if !HasValidSale(p, cfg) {
			continue
		}
		price := cfg.EffectiveSalePrice(p)
		if attributeMatches(p.Field(field), matchValue) {
			with = append(with, p)
			withPrices = append(withPrices, price)
		} else {
			without = append(without, p)
			withoutPrices = append(withoutPrices, price)
		}
	}

	out.With = attributeStats(with, withPrices)
	out.Without = attributeStats(without, withoutPrices)

	if out.With.Count == 0 || out.Without.Count == 0 {
		out.Message = "Both partitions need at least one valid sale to derive an adjustment"
		return out
	}

	withPrice := *out.With.AvgPrice
	// Renormalize the "has" partition to the "lacks" partition's average
	// size only when the sizes differ enough to distort the comparison.
	if out.With.AvgSize != nil && out.Without.AvgSize != nil && *out.Without.AvgSize > 0 {
		relDiff := (*out.With.AvgSize - *out.Without.AvgSize) / *out.Without.AvgSize
		if relDiff < 0 {
			relDiff = -relDiff
		}
		if relDiff > attributeSizeGate {
			var adjSum float64
			for i, p := range with {
				adjSum += adjustPriceBanded(withPrices[i], p.LivingArea, *out.Without.AvgSize)
			}
			withPrice = adjSum / float64(len(with))
			out.SizeNormalized = true
		}
	}

	flat := withPrice - *out.Without.AvgPrice
	out.FlatAdjustment = floatPtr(flat)
	if *out.Without.AvgPrice != 0 {
		out.PercentAdjustment = floatPtr(flat / *out.Without.AvgPrice * 100)
	}
	return out
}

func attributeStats(records []*models.PropertyRecord, prices []float64) AttributeStats {
	stats := AttributeStats{Count: len(records)}
	if len(records) == 0 {
		return stats
	}
	stats.AvgPrice = floatPtr(mean(prices))

	var sizeSum float64
	var sizeN int
	for _, p := range records {
		if p.LivingArea > 0 {
			sizeSum += p.LivingArea
			sizeN++
		}
	}
	if sizeN > 0 {
		stats.AvgSize = floatPtr(sizeSum / float64(sizeN))
	}
	return stats
}

// attributeMatches implements the presence/equality test. Presence means
// a non-nil, non-empty value. Equality compares numerically when both
// sides parse as numbers, else as trimmed case-insensitive strings.
func attributeMatches(value any, matchValue string) bool {
	if value == nil {
		return false
	}
	str := strings.TrimSpace(fmt.Sprintf("%v", value))
	if matchValue == "" {
		return str != ""
	}

	if vn, vok := models.ParseNumeric(value); vok {
		if mn, mok := models.ParseNumeric(matchValue); mok {
			return vn == mn
		}
	}
	return strings.EqualFold(str, strings.TrimSpace(matchValue))
}
