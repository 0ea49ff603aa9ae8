// Package cama abstracts over the two supported CAMA vendors (BRT and
// Microsystems). The valuation engine depends only on the Adapter
// interface; everything vendor-conditional lives behind it.
package cama

import (
	"fmt"

	"github.com/stwalsh4118/reval/internal/models"
)

// Condition is the canonical condition vocabulary shared by both vendors.
// The empty string means "no condition recorded" and must never default to
// ConditionAverage.
type Condition string

const (
	ConditionExcellent Condition = "EXCELLENT"
	ConditionVeryGood  Condition = "VERY_GOOD"
	ConditionGood      Condition = "GOOD"
	ConditionAverage   Condition = "AVERAGE"
	ConditionFair      Condition = "FAIR"
	ConditionPoor      Condition = "POOR"
	ConditionVeryPoor  Condition = "VERY_POOR"
)

// CascadeOrder lists the canonical conditions from best to worst. AVERAGE
// is the mandatory baseline of every cascade.
var CascadeOrder = []Condition{
	ConditionExcellent,
	ConditionVeryGood,
	ConditionGood,
	ConditionAverage,
	ConditionFair,
	ConditionPoor,
	ConditionVeryPoor,
}

// AboveAverage reports whether c ranks better than AVERAGE.
func (c Condition) AboveAverage() bool {
	switch c {
	case ConditionExcellent, ConditionVeryGood, ConditionGood:
		return true
	default:
		return false
	}
}

// Adapter exposes typed accessors over a property record's vendor-specific
// codes. Implementations are stateless aside from the job's code
// definition tables.
type Adapter interface {
	// Vendor returns the vendor this adapter decodes for.
	Vendor() models.VendorType

	// ExteriorCondition and InteriorCondition canonicalize the record's
	// condition codes. They return "" when no condition is recorded
	// (blank or the "00" placeholder) or the code cannot be resolved.
	ExteriorCondition(p *models.PropertyRecord) Condition
	InteriorCondition(p *models.PropertyRecord) Condition

	// DefaultEntryCodes, DefaultRefusalCodes and DefaultEstimationCodes
	// return the vendor's hardcoded info-by categorization, used when the
	// job carries no configured lists.
	DefaultEntryCodes() []string
	DefaultRefusalCodes() []string
	DefaultEstimationCodes() []string

	// TypeUseDescription, DesignDescription and VCSDescription resolve
	// codes against the job's code definition tables, falling back to the
	// code itself when no description exists.
	TypeUseDescription(code string) string
	DesignDescription(code string) string
	VCSDescription(code string) string
}

// New returns the adapter for the given vendor, bound to the job's code
// definitions.
func New(vendor models.VendorType, defs models.CodeDefinitions) (Adapter, error) {
	switch vendor {
	case models.VendorBRT:
		return &brtAdapter{defs: defs}, nil
	case models.VendorMicrosystems:
		return &microsystemsAdapter{defs: defs}, nil
	default:
		return nil, fmt.Errorf("unsupported vendor type %q", vendor)
	}
}

// lookup resolves a code against a definition table, returning the code
// itself when the table has no entry.
func lookup(table map[string]string, code string) string {
	if desc, ok := table[code]; ok && desc != "" {
		return desc
	}
	return code
}

// noCondition reports whether a raw condition code means "not recorded".
func noCondition(code string) bool {
	return code == "" || code == "00" || code == " "
}
