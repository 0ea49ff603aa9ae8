package valuation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stwalsh4118/reval/internal/cama"
	"github.com/stwalsh4118/reval/internal/models"
)

// OverallResult bundles the three market-wide analyses run together from
// the overall analysis workflow.
type OverallResult struct {
	GeneratedAt   time.Time        `json:"generatedAt"`
	PropertyCount int              `json:"propertyCount"`
	TypeUse       CategoryAnalysis `json:"typeUseAnalysis"`
	DesignStyle   CategoryAnalysis `json:"designStyleAnalysis"`
	VCSPatterns   []VCSPattern     `json:"vcsPatterns"`
	Insights      []string         `json:"marketInsights"`
}

// CategoryAnalysis holds the aggregation output for one grouping key
// (type/use or design/style), with its chosen baseline.
type CategoryAnalysis struct {
	Baseline            string   `json:"baseline"`
	BaselineDescription string   `json:"baselineDescription"`
	Groups              []*Group `json:"groups"`
}

// VCSPattern is the per-neighborhood breakdown with any notable patterns
// spotted inside the zone.
type VCSPattern struct {
	Code        string            `json:"code"`
	Description string            `json:"description"`
	TotalCount  int               `json:"totalCount"`
	ByType      []*Group          `json:"typeBreakdown"`
	Patterns    []PatternFinding  `json:"patterns,omitempty"`
	ByBedrooms  []BedroomBreakout `json:"byBedrooms,omitempty"`
}

// PatternFinding is one spotted market pattern with its reality check.
type PatternFinding struct {
	Type         string  `json:"type"`
	Finding      string  `json:"finding"`
	RealityCheck string  `json:"realityCheck"`
	Difference   float64 `json:"difference"`
	PercentDiff  float64 `json:"percentDiff"`
}

// BedroomBreakout summarizes condo sales by bedroom count within a VCS.
type BedroomBreakout struct {
	Bedrooms int     `json:"bedrooms"`
	Count    int     `json:"count"`
	AvgPrice float64 `json:"avgPrice"`
}

// Interior and end-row townhouse type codes, for the row-position pattern.
const (
	interiorRowCode = "30"
	endRowCode      = "31"
)

// Detached single-family and twin type codes, for the twin-vs-single
// pattern.
const (
	detachedSingleCode = "10"
	twinCode           = "20"
)

// minCondoSalesForBreakout is the condo presence needed before a bedroom
// breakdown is worth reporting.
const minCondoSalesForBreakout = 5

// AnalyzeOverall runs the type/use, design/style and VCS pattern analyses
// over the job's valid sales and derives market insight summaries.
// baselineOverride, when non-empty, pins the type/use baseline to that
// code.
func AnalyzeOverall(records []*models.PropertyRecord, cfg *models.JobConfig, adapter cama.Adapter, baselineOverride string) OverallResult {
	saleFn := func(p *models.PropertyRecord) (float64, bool) {
		if !HasValidSale(p, cfg) {
			return 0, false
		}
		return cfg.EffectiveSalePrice(p), true
	}

	typeUse := analyzeTypeUse(records, adapter, saleFn, baselineOverride)
	design := analyzeDesignStyle(records, adapter, saleFn)
	patterns := analyzeVCSPatterns(records, cfg, adapter, saleFn)

	return OverallResult{
		GeneratedAt:   time.Now().UTC(),
		PropertyCount: len(records),
		TypeUse:       typeUse,
		DesignStyle:   design,
		VCSPatterns:   patterns,
		Insights:      marketInsights(typeUse, design, patterns),
	}
}

// analyzeTypeUse groups sales by type-use code. Baseline chain: explicit
// override, then any single-family-classified group with sales, then the
// highest-adjusted-price group.
func analyzeTypeUse(records []*models.PropertyRecord, adapter cama.Adapter, saleFn SaleFunc, override string) CategoryAnalysis {
	keyFn := func(p *models.PropertyRecord) (string, string, bool) {
		code := strings.TrimSpace(p.TypeUse)
		if code == "" {
			return "", "", false
		}
		return code, adapter.TypeUseDescription(code), true
	}
	groups := Aggregate(records, keyFn, saleFn)

	var preferred []string
	for _, key := range sortedKeys(groups) {
		if MatchesTypeUse(key, TypeSingleFamily) {
			preferred = append(preferred, key)
		}
	}

	baseline := SelectBaseline(groups, BaselinePolicy{Override: override, Preferred: preferred})
	ApplyDeltas(groups, baseline)
	return categoryAnalysis(groups, baseline)
}

// analyzeDesignStyle groups sales by design code. Unlike type/use, design
// has no domain-preferred category: the baseline is the most populous
// group with sales, matching the established workflow.
func analyzeDesignStyle(records []*models.PropertyRecord, adapter cama.Adapter, saleFn SaleFunc) CategoryAnalysis {
	keyFn := func(p *models.PropertyRecord) (string, string, bool) {
		code := strings.TrimSpace(p.DesignStyle)
		if code == "" {
			return "", "", false
		}
		return code, adapter.DesignDescription(code), true
	}
	groups := Aggregate(records, keyFn, saleFn)

	baseline := ""
	maxCount := 0
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		if g.SaleCount > 0 && g.Count > maxCount {
			maxCount = g.Count
			baseline = key
		}
	}
	if baseline == "" {
		baseline = SelectBaseline(groups, BaselinePolicy{})
	}

	ApplyDeltas(groups, baseline)
	return categoryAnalysis(groups, baseline)
}

// analyzeVCSPatterns builds a per-VCS type breakdown and scans each zone
// for row-position and twin-vs-single pricing patterns plus condo bedroom
// breakdowns. Zones with nothing to report and only one property type are
// omitted.
func analyzeVCSPatterns(records []*models.PropertyRecord, cfg *models.JobConfig, adapter cama.Adapter, saleFn SaleFunc) []VCSPattern {
	byVCS := make(map[string][]*models.PropertyRecord)
	for _, p := range records {
		vcs := strings.TrimSpace(p.VCS)
		if vcs == "" {
			continue
		}
		byVCS[vcs] = append(byVCS[vcs], p)
	}

	codes := make([]string, 0, len(byVCS))
	for vcs := range byVCS {
		codes = append(codes, vcs)
	}
	sort.Strings(codes)

	patterns := make([]VCSPattern, 0, len(codes))
	for _, vcs := range codes {
		zone := byVCS[vcs]

		keyFn := func(p *models.PropertyRecord) (string, string, bool) {
			code := strings.TrimSpace(p.TypeUse)
			if code == "" {
				return "", "", false
			}
			return code, adapter.TypeUseDescription(code), true
		}
		byType := Aggregate(zone, keyFn, saleFn)

		vp := VCSPattern{
			Code:        vcs,
			Description: adapter.VCSDescription(vcs),
			TotalCount:  len(zone),
			ByType:      groupList(byType),
		}

		if finding, ok := rowPositionPattern(byType); ok {
			vp.Patterns = append(vp.Patterns, finding)
		}
		if finding, ok := twinVsSinglePattern(byType); ok {
			vp.Patterns = append(vp.Patterns, finding)
		}
		vp.ByBedrooms = condoBedroomBreakout(byType, cfg)

		// Single-type zones with no findings are left out of the report.
		if len(vp.Patterns) == 0 && len(vp.ByBedrooms) == 0 && len(byType) <= 1 {
			continue
		}
		patterns = append(patterns, vp)
	}
	return patterns
}

// rowPositionPattern compares interior-row against end-row townhouse sales
// within one zone. Both positions need at least one sale.
func rowPositionPattern(byType map[string]*Group) (PatternFinding, bool) {
	interior, iok := byType[interiorRowCode]
	end, eok := byType[endRowCode]
	if !iok || !eok || interior.AvgAdjPrice == nil || end.AvgAdjPrice == nil {
		return PatternFinding{}, false
	}

	diff := *end.AvgAdjPrice - *interior.AvgAdjPrice
	pct := 0.0
	if *interior.AvgAdjPrice != 0 {
		pct = diff / *interior.AvgAdjPrice * 100
	}

	direction := "premium"
	if pct < 0 {
		direction = "discount"
	}
	abs := pct
	if abs < 0 {
		abs = -abs
	}

	check := "Market shows negligible difference - consider skipping adjustment"
	if abs >= 5 {
		magnitude := "moderate"
		if abs > 10 {
			magnitude = "significant"
		}
		check = fmt.Sprintf("Market supports %s adjustment", magnitude)
	}

	return PatternFinding{
		Type:         "ROW_POSITION",
		Finding:      fmt.Sprintf("End units %s: %.1f%%", direction, pct),
		RealityCheck: check,
		Difference:   diff,
		PercentDiff:  pct,
	}, true
}

// twinVsSinglePattern compares twin against detached single-family sales
// within one zone. Both types need at least one sale.
func twinVsSinglePattern(byType map[string]*Group) (PatternFinding, bool) {
	singles, sok := byType[detachedSingleCode]
	twins, tok := byType[twinCode]
	if !sok || !tok || singles.AvgAdjPrice == nil || twins.AvgAdjPrice == nil {
		return PatternFinding{}, false
	}

	diff := *twins.AvgAdjPrice - *singles.AvgAdjPrice
	pct := 0.0
	if *singles.AvgAdjPrice != 0 {
		pct = diff / *singles.AvgAdjPrice * 100
	}

	direction := "premium"
	if pct < 0 {
		direction = "discount"
	}

	return PatternFinding{
		Type:        "TWIN_VS_SINGLE",
		Finding:     fmt.Sprintf("Twins trade at %.1f%% %s to singles", pct, direction),
		Difference:  diff,
		PercentDiff: pct,
	}, true
}

// condoBedroomBreakout splits a zone's condo sales by bedroom count when
// the zone has meaningful condo presence.
func condoBedroomBreakout(byType map[string]*Group, cfg *models.JobConfig) []BedroomBreakout {
	var condoSales []*models.PropertyRecord
	var condoPrices []float64
	for key, g := range byType {
		if !MatchesTypeUse(key, TypeCondominium) {
			continue
		}
		sales, prices := g.Sales()
		condoSales = append(condoSales, sales...)
		condoPrices = append(condoPrices, prices...)
	}
	if len(condoSales) <= minCondoSalesForBreakout {
		return nil
	}

	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, p := range condoSales {
		if p.Bedrooms <= 0 {
			continue
		}
		sums[p.Bedrooms] += condoPrices[i]
		counts[p.Bedrooms]++
	}

	bedrooms := make([]int, 0, len(counts))
	for b := range counts {
		bedrooms = append(bedrooms, b)
	}
	sort.Ints(bedrooms)

	out := make([]BedroomBreakout, 0, len(bedrooms))
	for _, b := range bedrooms {
		out = append(out, BedroomBreakout{
			Bedrooms: b,
			Count:    counts[b],
			AvgPrice: sums[b] / float64(counts[b]),
		})
	}
	return out
}

// categoryAnalysis packages a grouped run into its serializable form.
func categoryAnalysis(groups map[string]*Group, baseline string) CategoryAnalysis {
	ca := CategoryAnalysis{Baseline: baseline, Groups: groupList(groups)}
	if g, ok := groups[baseline]; ok {
		ca.BaselineDescription = g.Description
	}
	return ca
}

// groupList flattens a group map into key order for stable serialization.
func groupList(groups map[string]*Group) []*Group {
	out := make([]*Group, 0, len(groups))
	for _, key := range sortedKeys(groups) {
		out = append(out, groups[key])
	}
	return out
}

// marketInsights derives headline strings from the aggregated results.
func marketInsights(typeUse, design CategoryAnalysis, patterns []VCSPattern) []string {
	var insights []string

	for _, g := range typeUse.Groups {
		if g.IsBaseline || g.SaleCount == 0 || g.DeltaPercent == 0 {
			continue
		}
		direction := "above"
		pct := g.DeltaPercent
		if pct < 0 {
			direction = "below"
			pct = -pct
		}
		if pct > 20 {
			insights = append(insights, fmt.Sprintf(
				"%s sells %.1f%% %s the %s baseline",
				g.Description, pct, direction, typeUse.BaselineDescription))
		}
	}

	for _, vp := range patterns {
		for _, f := range vp.Patterns {
			insights = append(insights, fmt.Sprintf("VCS %s: %s", vp.Code, f.Finding))
		}
	}

	if len(insights) == 0 {
		insights = append(insights, "No category deviates more than 20% from its baseline")
	}
	return insights
}
