package valuation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/reval/internal/models"
)

// overallSale builds a valid sale with the given classification codes.
func overallSale(vcs, typeUse, design string, size, price float64) *models.PropertyRecord {
	return &models.PropertyRecord{
		VCS:         vcs,
		TypeUse:     typeUse,
		DesignStyle: design,
		LivingArea:  size,
		SalePrice:   price,
	}
}

func TestAnalyzeOverall(t *testing.T) {
	records := []*models.PropertyRecord{
		overallSale("A1", "10", "CL", 1500, 300000),
		overallSale("A1", "10", "CL", 1500, 320000),
		overallSale("A1", "60", "RA", 1000, 400000),
		overallSale("A1", "", "", 1400, 0), // unsold
	}

	result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "")

	assert.Equal(t, 4, result.PropertyCount)
	assert.False(t, result.GeneratedAt.IsZero())

	// Single-family groups are preferred as the type/use baseline even
	// though the condo group carries the higher adjusted price.
	assert.Equal(t, "10", result.TypeUse.Baseline)

	require.Len(t, result.VCSPatterns, 1)
	assert.Equal(t, "A1", result.VCSPatterns[0].Code)
	assert.Equal(t, 4, result.VCSPatterns[0].TotalCount)
	assert.NotEmpty(t, result.Insights)
}

func TestAnalyzeOverall_BaselineOverride(t *testing.T) {
	records := []*models.PropertyRecord{
		overallSale("A1", "10", "CL", 1500, 300000),
		overallSale("A1", "60", "RA", 1000, 400000),
	}

	result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "60")
	assert.Equal(t, "60", result.TypeUse.Baseline)
}

func TestAnalyzeDesignStyle_MostPopulousBaseline(t *testing.T) {
	// Colonial is the most populous design even though ranch sales price
	// higher; the design baseline follows headcount, not price.
	records := []*models.PropertyRecord{
		overallSale("A1", "10", "CL", 1500, 300000),
		overallSale("A1", "10", "CL", 1500, 310000),
		overallSale("A1", "10", "CL", 1500, 0),
		overallSale("A1", "10", "RA", 1500, 500000),
	}

	result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "")
	assert.Equal(t, "CL", result.DesignStyle.Baseline)

	for _, g := range result.DesignStyle.Groups {
		if g.Key == "CL" {
			assert.True(t, g.IsBaseline)
			assert.Equal(t, 3, g.Count)
			assert.Equal(t, 2, g.SaleCount)
		}
	}
}

func TestRowPositionPattern(t *testing.T) {
	t.Run("end row premium is reported", func(t *testing.T) {
		records := []*models.PropertyRecord{
			overallSale("A1", "30", "TH", 1200, 200000),
			overallSale("A1", "31", "TH", 1200, 230000),
		}

		result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "")
		require.Len(t, result.VCSPatterns, 1)
		require.Len(t, result.VCSPatterns[0].Patterns, 1)

		finding := result.VCSPatterns[0].Patterns[0]
		assert.Equal(t, "ROW_POSITION", finding.Type)
		assert.InDelta(t, 15, finding.PercentDiff, 1e-6)
		assert.Contains(t, finding.RealityCheck, "significant")
	})

	t.Run("negligible difference flagged as skippable", func(t *testing.T) {
		records := []*models.PropertyRecord{
			overallSale("A1", "30", "TH", 1200, 200000),
			overallSale("A1", "31", "TH", 1200, 204000),
		}

		result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "")
		finding := result.VCSPatterns[0].Patterns[0]
		assert.Contains(t, finding.RealityCheck, "negligible")
	})

	t.Run("one position missing drops the quiet zone", func(t *testing.T) {
		records := []*models.PropertyRecord{
			overallSale("A1", "30", "TH", 1200, 200000),
		}

		// A single-type zone with no findings does not make the report.
		result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "")
		assert.Empty(t, result.VCSPatterns)
	})
}

func TestTwinVsSinglePattern(t *testing.T) {
	t.Run("twin premium is reported", func(t *testing.T) {
		records := []*models.PropertyRecord{
			overallSale("A1", "10", "CL", 1500, 300000),
			overallSale("A1", "20", "CL", 1500, 330000),
		}

		result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "")
		require.Len(t, result.VCSPatterns, 1)
		require.Len(t, result.VCSPatterns[0].Patterns, 1)

		finding := result.VCSPatterns[0].Patterns[0]
		assert.Equal(t, "TWIN_VS_SINGLE", finding.Type)
		assert.InDelta(t, 10, finding.PercentDiff, 1e-6)
		assert.Contains(t, finding.Finding, "premium")
	})

	t.Run("twin discount is reported", func(t *testing.T) {
		records := []*models.PropertyRecord{
			overallSale("A1", "10", "CL", 1500, 300000),
			overallSale("A1", "20", "CL", 1500, 270000),
		}

		result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "")
		finding := result.VCSPatterns[0].Patterns[0]
		assert.InDelta(t, -10, finding.PercentDiff, 1e-6)
		assert.Contains(t, finding.Finding, "discount")
	})

	t.Run("unsold twins report nothing", func(t *testing.T) {
		records := []*models.PropertyRecord{
			overallSale("A1", "10", "CL", 1500, 300000),
			overallSale("A1", "20", "CL", 1500, 0),
		}

		result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "")
		require.Len(t, result.VCSPatterns, 1)
		assert.Empty(t, result.VCSPatterns[0].Patterns)
	})
}

func TestCondoBedroomBreakout(t *testing.T) {
	var records []*models.PropertyRecord
	for i := 0; i < 4; i++ {
		p := overallSale("A1", "60", "RA", 900, 250000)
		p.Bedrooms = 1
		records = append(records, p)
	}
	for i := 0; i < 4; i++ {
		p := overallSale("A1", "60", "RA", 900, 320000)
		p.Bedrooms = 2
		records = append(records, p)
	}

	result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "")
	require.Len(t, result.VCSPatterns, 1)

	breakout := result.VCSPatterns[0].ByBedrooms
	require.Len(t, breakout, 2)
	assert.Equal(t, 1, breakout[0].Bedrooms)
	assert.Equal(t, 4, breakout[0].Count)
	assert.InDelta(t, 250000, breakout[0].AvgPrice, 1e-6)
	assert.Equal(t, 2, breakout[1].Bedrooms)
	assert.InDelta(t, 320000, breakout[1].AvgPrice, 1e-6)
}

func TestCondoBedroomBreakout_BelowThreshold(t *testing.T) {
	var records []*models.PropertyRecord
	for i := 0; i < 5; i++ {
		p := overallSale("A1", "60", "RA", 900, 250000)
		p.Bedrooms = 1
		records = append(records, p)
	}

	// Too few condos for a breakout, and a single-type zone without one
	// is dropped from the report entirely.
	result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "")
	assert.Empty(t, result.VCSPatterns)
}

func TestMarketInsights(t *testing.T) {
	// A 25% condo premium over single family crosses the 20% insight
	// threshold and surfaces as a headline.
	var records []*models.PropertyRecord
	for i := 0; i < 3; i++ {
		records = append(records, overallSale("A1", "10", "CL", 1500, 300000))
	}
	for i := 0; i < 3; i++ {
		records = append(records, overallSale("A1", "60", "RA", 1500, 375000))
	}

	result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "")
	require.NotEmpty(t, result.Insights)
	assert.Contains(t, result.Insights[0], "25.0%")
	assert.Contains(t, result.Insights[0], "above")
}

func TestMarketInsights_BelowThreshold(t *testing.T) {
	// A 15% premium stays under the 20% threshold; only the fallback
	// headline appears.
	var records []*models.PropertyRecord
	for i := 0; i < 3; i++ {
		records = append(records, overallSale("A1", "10", "CL", 1500, 300000))
	}
	for i := 0; i < 3; i++ {
		records = append(records, overallSale("A1", "60", "RA", 1500, 345000))
	}

	result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "")
	require.Len(t, result.Insights, 1)
	assert.Contains(t, result.Insights[0], "No category deviates")
}

func TestGroupList_StableOrder(t *testing.T) {
	records := []*models.PropertyRecord{
		overallSale("A1", "30", "B", 1200, 200000),
		overallSale("A1", "10", "A", 1200, 200000),
		overallSale("A1", "60", "C", 1200, 200000),
	}

	result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "")
	keys := make([]string, 0, len(result.TypeUse.Groups))
	for _, g := range result.TypeUse.Groups {
		keys = append(keys, g.Key)
	}
	assert.Equal(t, []string{"10", "30", "60"}, keys)
}

func TestAnalyzeOverall_ManyZones(t *testing.T) {
	var records []*models.PropertyRecord
	for i := 0; i < 3; i++ {
		records = append(records, overallSale(fmt.Sprintf("Z%d", i), "10", "CL", 1500, 300000))
		records = append(records, overallSale(fmt.Sprintf("Z%d", i), "60", "RA", 1000, 250000))
	}

	result := AnalyzeOverall(records, saleCfg(), microAdapter(t), "")
	require.Len(t, result.VCSPatterns, 3)
	assert.Equal(t, "Z0", result.VCSPatterns[0].Code)
	assert.Equal(t, "Z2", result.VCSPatterns[2].Code)
}
