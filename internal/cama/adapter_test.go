package cama

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/reval/internal/models"
)

func TestNew(t *testing.T) {
	t.Run("builds BRT adapter", func(t *testing.T) {
		adapter, err := New(models.VendorBRT, models.CodeDefinitions{})
		require.NoError(t, err)
		assert.Equal(t, models.VendorBRT, adapter.Vendor())
	})

	t.Run("builds Microsystems adapter", func(t *testing.T) {
		adapter, err := New(models.VendorMicrosystems, models.CodeDefinitions{})
		require.NoError(t, err)
		assert.Equal(t, models.VendorMicrosystems, adapter.Vendor())
	})

	t.Run("rejects unknown vendor", func(t *testing.T) {
		adapter, err := New("Vision", models.CodeDefinitions{})
		assert.Error(t, err)
		assert.Nil(t, adapter)
	})
}

func TestCondition_AboveAverage(t *testing.T) {
	assert.True(t, ConditionExcellent.AboveAverage())
	assert.True(t, ConditionVeryGood.AboveAverage())
	assert.True(t, ConditionGood.AboveAverage())
	assert.False(t, ConditionAverage.AboveAverage())
	assert.False(t, ConditionFair.AboveAverage())
	assert.False(t, ConditionPoor.AboveAverage())
	assert.False(t, ConditionVeryPoor.AboveAverage())
	assert.False(t, Condition("").AboveAverage())
}

func TestCascadeOrder_IncludesAverage(t *testing.T) {
	found := false
	for _, c := range CascadeOrder {
		if c == ConditionAverage {
			found = true
		}
	}
	assert.True(t, found, "AVERAGE must be part of every cascade")
	assert.Len(t, CascadeOrder, 7)
}

func TestBRTAdapter_Condition(t *testing.T) {
	tests := []struct {
		name     string
		defs     map[string]string
		code     string
		expected Condition
	}{
		{
			name:     "numeric scale fallback",
			code:     "3",
			expected: ConditionGood,
		},
		{
			name:     "zero padded code uses scale",
			code:     "04",
			expected: ConditionAverage,
		},
		{
			name:     "job definition wins over scale",
			defs:     map[string]string{"3": "FAIR"},
			code:     "3",
			expected: ConditionFair,
		},
		{
			name:     "loose description matching",
			defs:     map[string]string{"2": "V.GOOD"},
			code:     "2",
			expected: ConditionVeryGood,
		},
		{
			name:     "very poor matched before poor",
			defs:     map[string]string{"9": "VERY POOR"},
			code:     "9",
			expected: ConditionVeryPoor,
		},
		{
			name:     "unrecognized description falls back to scale",
			defs:     map[string]string{"5": "UNUSUAL"},
			code:     "5",
			expected: ConditionFair,
		},
		{
			name:     "empty code means no condition",
			code:     "",
			expected: "",
		},
		{
			name:     "00 placeholder means no condition",
			code:     "00",
			expected: "",
		},
		{
			name:     "unknown code without metadata",
			code:     "9",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := New(models.VendorBRT, models.CodeDefinitions{Conditions: tt.defs})
			require.NoError(t, err)

			p := &models.PropertyRecord{ExteriorCondition: tt.code, InteriorCondition: tt.code}
			assert.Equal(t, tt.expected, adapter.ExteriorCondition(p))
			assert.Equal(t, tt.expected, adapter.InteriorCondition(p))
		})
	}
}

func TestBRTAdapter_DefaultInfoByCodes(t *testing.T) {
	adapter, err := New(models.VendorBRT, models.CodeDefinitions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"01", "02", "03", "04"}, adapter.DefaultEntryCodes())
	assert.Equal(t, []string{"05"}, adapter.DefaultRefusalCodes())
	assert.Equal(t, []string{"06", "07"}, adapter.DefaultEstimationCodes())
}

func TestMicrosystemsAdapter_Condition(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected Condition
	}{
		{name: "excellent", code: "E", expected: ConditionExcellent},
		{name: "very good", code: "V", expected: ConditionVeryGood},
		{name: "good", code: "G", expected: ConditionGood},
		{name: "average", code: "A", expected: ConditionAverage},
		{name: "fair", code: "F", expected: ConditionFair},
		{name: "poor", code: "P", expected: ConditionPoor},
		{name: "unsound", code: "U", expected: ConditionVeryPoor},
		{name: "lowercase normalizes", code: "g", expected: ConditionGood},
		{name: "space padded", code: " A ", expected: ConditionAverage},
		{name: "empty means no condition", code: "", expected: ""},
		{name: "unknown letter", code: "X", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := New(models.VendorMicrosystems, models.CodeDefinitions{})
			require.NoError(t, err)

			p := &models.PropertyRecord{ExteriorCondition: tt.code}
			assert.Equal(t, tt.expected, adapter.ExteriorCondition(p))
		})
	}
}

func TestMicrosystemsAdapter_TableIsAuthoritative(t *testing.T) {
	// Job definitions refine descriptions only; they never remap the
	// letter-to-condition table.
	adapter, err := New(models.VendorMicrosystems, models.CodeDefinitions{
		Conditions: map[string]string{"G": "POOR"},
	})
	require.NoError(t, err)

	p := &models.PropertyRecord{ExteriorCondition: "G"}
	assert.Equal(t, ConditionGood, adapter.ExteriorCondition(p))
}

func TestMicrosystemsAdapter_DefaultInfoByCodes(t *testing.T) {
	adapter, err := New(models.VendorMicrosystems, models.CodeDefinitions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"O", "S", "T", "A"}, adapter.DefaultEntryCodes())
	assert.Equal(t, []string{"R"}, adapter.DefaultRefusalCodes())
	assert.Equal(t, []string{"E", "V"}, adapter.DefaultEstimationCodes())
}

func TestAdapter_Descriptions(t *testing.T) {
	defs := models.CodeDefinitions{
		TypeUse: map[string]string{"10": "Single Family"},
		Design:  map[string]string{"CL": "Colonial"},
		VCS:     map[string]string{"A1": "Downtown"},
	}
	adapter, err := New(models.VendorBRT, defs)
	require.NoError(t, err)

	assert.Equal(t, "Single Family", adapter.TypeUseDescription("10"))
	assert.Equal(t, "Colonial", adapter.DesignDescription("CL"))
	assert.Equal(t, "Downtown", adapter.VCSDescription("A1"))

	// Unmapped codes fall back to themselves.
	assert.Equal(t, "99", adapter.TypeUseDescription("99"))
}
