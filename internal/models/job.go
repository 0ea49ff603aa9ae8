package models

import "time"

// VendorType identifies which CAMA vendor produced the job's source export.
type VendorType string

const (
	VendorBRT          VendorType = "BRT"
	VendorMicrosystems VendorType = "Microsystems"
)

// PriceBasis selects which price field drives sales-based aggregation.
// TimeNormalized falls back to the raw sale price per record when no
// normalized price is present.
type PriceBasis string

const (
	BasisTimeNormalized PriceBasis = "time_normalized"
	BasisSalePrice      PriceBasis = "sale_price"
)

// DateRange bounds a sales window. Zero-valued ends are open.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range, inclusive on both ends.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// InfoByConfig holds the job's "information by" code categorization. Empty
// lists mean the vendor's hardcoded defaults apply.
type InfoByConfig struct {
	Entry      []string `json:"entry"`
	Refusal    []string `json:"refusal"`
	Estimation []string `json:"estimation"`
}

// CodeDefinitions maps vendor codes to descriptions, per job. BRT jobs
// carry numeric condition codes that only resolve against these tables;
// Microsystems letter codes are stable across jobs.
type CodeDefinitions struct {
	Conditions map[string]string `json:"conditions,omitempty"`
	TypeUse    map[string]string `json:"typeUse,omitempty"`
	Design     map[string]string `json:"design,omitempty"`
	VCS        map[string]string `json:"vcs,omitempty"`
	InfoBy     map[string]string `json:"infoBy,omitempty"`
}

// CascadeBreaks holds the acreage breakpoints separating the four land-rate
// tiers.
type CascadeBreaks struct {
	PrimeMax     float64 `json:"primeMax"`
	SecondaryMax float64 `json:"secondaryMax"`
	ExcessMax    float64 `json:"excessMax"`
}

// DefaultCascadeBreaks are the standard 1/5/10 acre tier boundaries.
func DefaultCascadeBreaks() CascadeBreaks {
	return CascadeBreaks{PrimeMax: 1, SecondaryMax: 5, ExcessMax: 10}
}

// CascadeRateConfig holds the four $/acre land rates in decreasing order of
// importance, plus the breakpoints separating them. Persisted per job and
// mutated through the land valuation workflow.
type CascadeRateConfig struct {
	Prime     float64       `json:"prime"`
	Secondary float64       `json:"secondary"`
	Excess    float64       `json:"excess"`
	Residual  float64       `json:"residual"`
	Breaks    CascadeBreaks `json:"breaks"`
}

// JobConfig is the immutable job-scoped configuration threaded into every
// computation. It replaces the ambient per-job state the UI mutates: a
// calculation sees one frozen value for its whole run.
type JobConfig struct {
	JobID           int64             `json:"jobId"`
	Vendor          VendorType        `json:"vendor"`
	InfoBy          InfoByConfig      `json:"infoBy"`
	CodeDefinitions CodeDefinitions   `json:"codeDefinitions"`
	Cascade         CascadeRateConfig `json:"cascade"`
	PriceBasis      PriceBasis        `json:"priceBasis"`
	SalesWindow     DateRange         `json:"salesWindow"`
	AcceptedCCF     *float64          `json:"acceptedCcf,omitempty"`
	CurrentYear     int               `json:"currentYear"`
}

// EffectiveSalePrice resolves a record's valuation-basis price: the
// time-normalized price when the basis prefers it and one is present,
// otherwise the raw sale price. Returns 0 when the record has no usable
// price.
func (c *JobConfig) EffectiveSalePrice(p *PropertyRecord) float64 {
	if c.PriceBasis != BasisSalePrice && p.TimeNormPrice > 0 {
		return p.TimeNormPrice
	}
	if p.SalePrice > 0 {
		return p.SalePrice
	}
	return 0
}
