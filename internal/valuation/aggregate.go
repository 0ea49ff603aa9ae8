package valuation

import (
	"sort"

	"github.com/stwalsh4118/reval/internal/models"
)

// Group is one aggregation bucket. It is created fresh on every analysis
// run; only the numeric summary is serialized, the member lists stay
// internal to the run.
type Group struct {
	Key         string `json:"key"`
	Description string `json:"description"`

	Count     int `json:"count"`
	SaleCount int `json:"saleCount"`

	// Sales-only price statistics. Nil when the group has no sales;
	// zero-sale groups still appear in output for inventory counts.
	AvgPrice    *float64 `json:"avgPrice"`
	AvgAdjPrice *float64 `json:"avgAdjPrice"`

	// Size and year-built averages over all members and over the sales
	// subset separately.
	AvgSizeAll   *float64 `json:"avgSizeAll"`
	AvgSizeSales *float64 `json:"avgSizeSales"`
	AvgYearAll   *float64 `json:"avgYearAll"`
	AvgYearSales *float64 `json:"avgYearSales"`

	// Delta of AvgAdjPrice relative to the baseline group. Zero for the
	// baseline itself and for zero-sale groups.
	Delta        float64 `json:"delta"`
	DeltaPercent float64 `json:"deltaPercent"`

	IsBaseline bool `json:"isBaseline"`

	members []*models.PropertyRecord
	sales   []*models.PropertyRecord
	prices  []float64
}

// Members returns the group's full member list. The slice is shared, not
// copied; callers must not mutate it.
func (g *Group) Members() []*models.PropertyRecord { return g.members }

// Sales returns the members that passed the sale predicate, paired with
// the prices the predicate produced.
func (g *Group) Sales() ([]*models.PropertyRecord, []float64) { return g.sales, g.prices }

// KeyFunc derives a grouping key and display description from a record.
// ok=false excludes the record from the run entirely; returning ok=false
// for "Unknown"/placeholder keys is call-site policy, not engine policy.
type KeyFunc func(p *models.PropertyRecord) (key, description string, ok bool)

// SaleFunc decides whether a record counts as a sale and yields the price
// that represents it.
type SaleFunc func(p *models.PropertyRecord) (price float64, ok bool)

// Aggregate partitions records by keyFn and computes per-group counts,
// sums and averages, with sales accumulated separately via saleFn. Each
// sale's adjusted price is normalized to the group's own sales-average
// size, so every group self-normalizes before cross-group comparison.
func Aggregate(records []*models.PropertyRecord, keyFn KeyFunc, saleFn SaleFunc) map[string]*Group {
	groups := make(map[string]*Group)

	for _, p := range records {
		key, desc, ok := keyFn(p)
		if !ok {
			continue
		}
		g := groups[key]
		if g == nil {
			g = &Group{Key: key, Description: desc}
			groups[key] = g
		}
		g.members = append(g.members, p)
		g.Count++

		if price, isSale := saleFn(p); isSale {
			g.sales = append(g.sales, p)
			g.prices = append(g.prices, price)
			g.SaleCount++
		}
	}

	for _, g := range groups {
		finalizeGroup(g)
	}

	return groups
}

// finalizeGroup computes the group's averages and size-adjusted price.
func finalizeGroup(g *Group) {
	var sizeAll, yearAll float64
	var sizeAllN, yearAllN int
	for _, p := range g.members {
		if p.LivingArea > 0 {
			sizeAll += p.LivingArea
			sizeAllN++
		}
		if p.YearBuilt > 0 {
			yearAll += float64(p.YearBuilt)
			yearAllN++
		}
	}
	if sizeAllN > 0 {
		g.AvgSizeAll = floatPtr(sizeAll / float64(sizeAllN))
	}
	if yearAllN > 0 {
		g.AvgYearAll = floatPtr(yearAll / float64(yearAllN))
	}

	if g.SaleCount == 0 {
		return
	}

	var priceSum, sizeSales, yearSales float64
	var sizeSalesN, yearSalesN int
	for i, p := range g.sales {
		priceSum += g.prices[i]
		if p.LivingArea > 0 {
			sizeSales += p.LivingArea
			sizeSalesN++
		}
		if p.YearBuilt > 0 {
			yearSales += float64(p.YearBuilt)
			yearSalesN++
		}
	}
	g.AvgPrice = floatPtr(priceSum / float64(g.SaleCount))

	var baselineSize float64
	if sizeSalesN > 0 {
		baselineSize = sizeSales / float64(sizeSalesN)
		g.AvgSizeSales = floatPtr(baselineSize)
	}
	if yearSalesN > 0 {
		g.AvgYearSales = floatPtr(yearSales / float64(yearSalesN))
	}

	var adjSum float64
	for i, p := range g.sales {
		adjSum += AdjustPrice(g.prices[i], p.LivingArea, baselineSize)
	}
	g.AvgAdjPrice = floatPtr(adjSum / float64(g.SaleCount))
}

// BaselinePolicy controls baseline group selection. The chain is: explicit
// override when that group exists with sales, then the first preferred key
// that exists with sales, then the group with the highest adjusted price
// among groups with at least one sale.
type BaselinePolicy struct {
	Override  string
	Preferred []string
}

// SelectBaseline applies the policy to the aggregated groups and returns
// the chosen key, or "" when no group has a sale.
func SelectBaseline(groups map[string]*Group, policy BaselinePolicy) string {
	eligible := func(key string) bool {
		g, ok := groups[key]
		return ok && g.SaleCount > 0 && g.AvgAdjPrice != nil
	}

	if policy.Override != "" && eligible(policy.Override) {
		return policy.Override
	}
	for _, key := range policy.Preferred {
		if eligible(key) {
			return key
		}
	}

	best := ""
	var bestPrice float64
	for _, key := range sortedKeys(groups) {
		g := groups[key]
		if g.SaleCount == 0 || g.AvgAdjPrice == nil {
			continue
		}
		if best == "" || *g.AvgAdjPrice > bestPrice {
			best = key
			bestPrice = *g.AvgAdjPrice
		}
	}
	return best
}

// ApplyDeltas computes every group's delta against the baseline group.
// The baseline and zero-sale groups get delta 0.
func ApplyDeltas(groups map[string]*Group, baselineKey string) {
	baseline, ok := groups[baselineKey]
	if !ok || baseline.AvgAdjPrice == nil {
		return
	}
	base := *baseline.AvgAdjPrice
	for key, g := range groups {
		if key == baselineKey {
			g.IsBaseline = true
			continue
		}
		if g.AvgAdjPrice == nil {
			continue
		}
		g.Delta = *g.AvgAdjPrice - base
		if base != 0 {
			g.DeltaPercent = g.Delta / base * 100
		}
	}
}

// sortedKeys gives deterministic iteration order so baseline ties and
// serialized output are stable across runs.
func sortedKeys(groups map[string]*Group) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
